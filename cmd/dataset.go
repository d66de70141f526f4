package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AssetVal/HeatMap/internal/census"
)

var (
	datasetBoundary string
	datasetOut      string
	datasetYear     int
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build the county density dataset from ACS population estimates",
	Long:  "Joins Census ACS 5-year county population totals onto a county boundary GeoJSON, computing area and density per county, and writes the enriched collection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		year := datasetYear
		if year == 0 {
			parsed, err := strconv.Atoi(cfg.Census.Year)
			if err != nil {
				return eris.Wrapf(err, "invalid census year %q", cfg.Census.Year)
			}
			year = parsed
		}

		client := census.NewClient(cfg.Census.Key)
		return census.BuildDataset(cmd.Context(), client, datasetBoundary, datasetOut, year)
	},
}

func init() {
	datasetCmd.Flags().StringVar(&datasetBoundary, "boundaries", "data/cb_2023_us_county_20m.geojson", "county boundary GeoJSON input")
	datasetCmd.Flags().StringVarP(&datasetOut, "output", "o", "data/counties-with-population.geojson", "enriched dataset output path")
	datasetCmd.Flags().IntVar(&datasetYear, "year", 0, "ACS vintage year (default from config)")
	rootCmd.AddCommand(datasetCmd)
}
