package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "b2b-intel",
	Short: "B2B company enrichment pipeline",
	Long:  "Resolves Russian B2B companies from marketplace exports into scored sales leads: registry lookup, website discovery, site crawl, AI research, Bitrix24 push.",
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
