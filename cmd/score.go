package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/score"
	"github.com/aragant-group/b2b-intel/internal/store"
)

var scoreFix bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute lead scores and report drift",
	Long:  "Recomputes the score for every company from current data and reports rows whose stored score differs. With --fix the recomputed scores are written back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("score"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Snapshot the full list first so --fix rewrites cannot shuffle
		// rows between pages mid-walk.
		const pageSize = 200
		var all []model.Company
		for offset := 0; ; offset += pageSize {
			page, err := st.ListCompanies(ctx, store.CompanyFilter{
				Limit:  pageSize,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			all = append(all, page...)
			if len(page) < pageSize {
				break
			}
		}

		var drifted int
		for i := range all {
			c := &all[i]

			contacts, err := st.CountFactsOfKind(ctx, c.ID, model.FactEmail, model.FactPhone)
			if err != nil {
				return err
			}
			want := score.Lead(score.Inputs{Company: c, ContactsCount: contacts})
			if want == c.LeadScore {
				continue
			}

			drifted++
			fmt.Printf("%-40s stored=%3d recomputed=%3d\n", c.Slug, c.LeadScore, want)
			if scoreFix {
				if err := st.UpdateLeadScore(ctx, c.ID, want); err != nil {
					return err
				}
			}
		}

		zap.L().Info("score audit complete",
			zap.Int("companies", len(all)),
			zap.Int("drifted", drifted),
			zap.Bool("fixed", scoreFix),
		)
		return nil
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreFix, "fix", false, "write recomputed scores back")
	rootCmd.AddCommand(scoreCmd)
}
