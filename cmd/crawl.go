package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aragant-group/b2b-intel/internal/crawl"
)

var (
	crawlMaxDepth int
	crawlMaxPages int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a single site and print the extracted signals as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		maxDepth := crawlMaxDepth
		if maxDepth == 0 {
			maxDepth = cfg.Crawl.MaxDepth
		}
		maxPages := crawlMaxPages
		if maxPages == 0 {
			maxPages = cfg.Crawl.MaxPages
		}

		crawler := crawl.New(newHTTPClient(), crawl.Options{
			MaxDepth: maxDepth,
			MaxPages: maxPages,
			Delay:    time.Duration(cfg.Crawl.DelayMS) * time.Millisecond,
		})

		signals, err := crawler.Site(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "crawl site")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(signals)
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "depth", 0, "max link depth (default from config)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "pages", 0, "max page budget (default from config)")
	rootCmd.AddCommand(crawlCmd)
}
