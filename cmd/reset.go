package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
)

var resetCmd = &cobra.Command{
	Use:   "reset <provenance>",
	Short: "Delete facts and persons of one provenance and reset statuses",
	Long:  "Clears every fact and person carrying the given provenance tag (registry, site_crawl, web_search, ai_research) and moves all companies back to status new so the next batch re-enriches them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("reset"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		provenance := args[0]
		facts, err := st.DeleteFactsByProvenance(ctx, provenance)
		if err != nil {
			return err
		}
		persons, err := st.DeletePersonsByProvenance(ctx, provenance)
		if err != nil {
			return err
		}
		companies, err := st.ResetStatuses(ctx, model.StatusNew)
		if err != nil {
			return err
		}

		zap.L().Info("reset complete",
			zap.String("provenance", provenance),
			zap.Int("facts_deleted", facts),
			zap.Int("persons_deleted", persons),
			zap.Int("companies_reset", companies),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
