package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <slug>...",
	Short: "Run a full enrichment pass for one or more companies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrich(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		var failed int
		for _, slug := range args {
			if ctx.Err() != nil {
				break
			}
			if err := env.Service.Company(ctx, slug); err != nil {
				failed++
				zap.L().Error("enrichment failed",
					zap.String("slug", slug), zap.Error(err))
				continue
			}
			zap.L().Info("enrichment complete", zap.String("slug", slug))
		}

		if failed > 0 {
			return eris.Errorf("%d of %d companies failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
