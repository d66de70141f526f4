package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/internal/batch"
	"github.com/AssetVal/HeatMap/internal/ingest"
	"github.com/AssetVal/HeatMap/internal/region"
	"github.com/AssetVal/HeatMap/internal/resolve"
	"github.com/AssetVal/HeatMap/pkg/share"
	"github.com/AssetVal/HeatMap/pkg/verify"
	"github.com/AssetVal/HeatMap/pkg/zipcentroid"
)

var (
	runOutput    string
	runShare     bool
	runRegionSrc string
)

var runCmd = &cobra.Command{
	Use:   "run <addresses.csv|addresses.xlsx>",
	Short: "Resolve a file of addresses and enrich with county density",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		inputs, err := ingest.ReadFile(args[0])
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return eris.Errorf("no usable address rows in %s", args[0])
		}
		zap.L().Info("addresses loaded", zap.String("file", args[0]), zap.Int("count", len(inputs)))

		engine := newEngine()

		// A missing region dataset degrades to unenriched points rather than
		// failing the whole run.
		var regions batch.RegionLookup
		source := runRegionSrc
		if source == "" {
			source = cfg.Region.Source
		}
		if ix, err := region.Load(ctx, source, region.ParseUnit(cfg.Region.Units)); err != nil {
			zap.L().Warn("county dataset unavailable, skipping density enrichment",
				zap.String("source", source),
				zap.Error(err),
			)
		} else {
			regions = ix
		}

		processor := batch.NewProcessor(engine, regions, cfg.Batch.ItemsPerSecond,
			batch.WithObserver(logProgress))

		result, err := processor.Run(ctx, inputs)
		if err != nil {
			return err
		}

		state := result.State
		if runShare {
			state = submitShare(ctx, state, result.Points)
		}

		return writeOutput(state, result.Points)
	},
}

func newEngine() *resolve.Engine {
	primary := verify.NewGoogle(cfg.Providers.Google.Key,
		verify.WithGoogleBaseURL(cfg.Providers.Google.BaseURL))
	secondary := verify.NewLob(cfg.Providers.Lob.Key,
		verify.WithLobBaseURL(cfg.Providers.Lob.BaseURL))
	centroids := zipcentroid.NewClient(zipcentroid.WithBaseURL(cfg.Centroid.BaseURL))
	return resolve.NewEngine(primary, secondary, centroids)
}

func logProgress(s batch.State) {
	if !s.IsLoading || s.Progress == 0 {
		return
	}
	zap.L().Info("progress",
		zap.Int("done", s.Progress),
		zap.Int("total", s.Total),
		zap.Int("failed", s.Failed),
		zap.String("eta", s.ETA),
	)
}

// submitShare pushes the resolved point-set to the share store and folds the
// outcome into the state. Share failure never fails the run.
func submitShare(ctx context.Context, state batch.State, points map[string]batch.Point) batch.State {
	client := share.NewClient(cfg.Share.APIURL)
	id, err := client.Save(ctx, pointsToShareAddresses(points))
	if err != nil {
		zap.L().Error("share submission failed", zap.Error(err))
		return state.WithShareError(err.Error())
	}
	zap.L().Info("point-set shared", zap.String("id", id))
	return state.WithShare(id)
}

func writeOutput(state batch.State, points map[string]batch.Point) error {
	out := struct {
		Points          []batch.Point    `json:"points"`
		FailedAddresses []verify.Address `json:"failedAddresses"`
		Total           int              `json:"total"`
		Failed          int              `json:"failed"`
		IsSuccess       bool             `json:"isSuccess"`
		ShareID         string           `json:"shareId,omitempty"`
		ShareError      string           `json:"shareError,omitempty"`
	}{
		Points:          make([]batch.Point, 0, len(points)),
		FailedAddresses: state.FailedAddresses,
		Total:           state.Total,
		Failed:          state.Failed,
		IsSuccess:       state.IsSuccess,
		ShareID:         state.ShareID,
		ShareError:      state.ShareError,
	}
	for _, pt := range points {
		out.Points = append(out.Points, pt)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	if runOutput == "" || runOutput == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(runOutput, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", runOutput)
	}
	zap.L().Info("results written", zap.String("file", runOutput), zap.Int("points", len(out.Points)))
	return nil
}

func pointsToShareAddresses(points map[string]batch.Point) []share.Address {
	addrs := make([]share.Address, 0, len(points))
	for _, pt := range points {
		a := share.Address{
			Geocode: share.Geocode{Latitude: pt.Latitude, Longitude: pt.Longitude},
		}
		if pt.Resolved != nil {
			a.Street = pt.Resolved.Validated.Street
			a.City = pt.Resolved.Validated.City
			a.State = pt.Resolved.Validated.State
			a.Zip = pt.Resolved.Validated.Zip
		}
		addrs = append(addrs, a)
	}
	return addrs
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output file for resolved points (default stdout)")
	runCmd.Flags().BoolVar(&runShare, "share", false, "persist the resolved point-set and print its share id")
	runCmd.Flags().StringVar(&runRegionSrc, "region", "", "county dataset path or URL (default from config)")
	rootCmd.AddCommand(runCmd)
}
