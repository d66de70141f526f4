package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/pkg/share"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Save or load shared heatmap point-sets",
}

var shareSaveCmd = &cobra.Command{
	Use:   "save <points.json>",
	Short: "Persist a resolved point-set and print its share id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var addrs []share.Address
		if err := json.Unmarshal(data, &addrs); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		client := share.NewClient(cfg.Share.APIURL)
		id, err := client.Save(cmd.Context(), addrs)
		if err != nil {
			return err
		}
		zap.L().Info("point-set shared", zap.String("id", id), zap.Int("addresses", len(addrs)))
		cmd.Println(id)
		return nil
	},
}

var shareLoadCmd = &cobra.Command{
	Use:   "load <share-id>",
	Short: "Retrieve a shared point-set by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := share.NewClient(cfg.Share.APIURL)
		addrs, err := client.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(addrs, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode point-set")
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	shareCmd.AddCommand(shareSaveCmd, shareLoadCmd)
	rootCmd.AddCommand(shareCmd)
}
