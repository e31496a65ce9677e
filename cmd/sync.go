package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/crm"
	"github.com/aragant-group/b2b-intel/pkg/bitrix"
)

var (
	syncLimit  int
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push enriched companies to Bitrix24",
	Long:  "Mirrors enriched companies into Bitrix24 over the configured webhook, highest lead score first. Companies are found or created by title; stored persons become CRM contacts. Local data is never modified.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		bx := bitrix.NewClient(cfg.Bitrix.WebhookURL,
			bitrix.WithHTTPClient(newHTTPClient()),
		)
		sum, err := crm.NewPusher(st, bx).Push(ctx, syncLimit, syncDryRun)
		if err != nil {
			return err
		}
		zap.L().Info("sync complete",
			zap.Int("companies", sum.Companies),
			zap.Int("contacts", sum.Contacts),
			zap.Int("failed", sum.Failed),
			zap.Bool("dry_run", syncDryRun),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", 50, "maximum companies pushed per run")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "log what would be pushed without writing to Bitrix")
	rootCmd.AddCommand(syncCmd)
}
