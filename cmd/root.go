package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Address resolution and density heatmap pipeline",
	Long:  "Resolves postal addresses to coordinates through a two-provider validation chain, enriches each point with county population density, and persists shareable point-sets.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
