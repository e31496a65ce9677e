package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <workbook.xlsx>",
	Short: "Load companies from an STM MASTER workbook",
	Long:  "Reads the MASTER sheet of an STM analytics workbook and creates a company row per key, with marketplace-link facts and seed persons. Keys already in the store are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ingest"); err != nil {
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

		rows, err := ingest.ReadMaster(args[0])
		if err != nil {
			return err
		}
		sum, err := ingest.Import(ctx, st, rows, filepath.Base(args[0]))
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("file", filepath.Base(args[0])),
			zap.Int("created", sum.Created),
			zap.Int("skipped", sum.Skipped),
			zap.Int("facts", sum.Facts),
			zap.Int("persons", sum.Persons),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
