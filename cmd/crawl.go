package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdcarver/brrts-pipeline/internal/crawler"
	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// newCrawlCmd creates the 'crawl' subcommand. The crawl resumes from the
// ledger: only sites still pending (or, with --retry-failed, previously
// failed) are fetched, so interrupted runs pick up where they left off.
func newCrawlCmd() *cobra.Command {
	var (
		limit       int
		retryFailed bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl pending sites for document links",
		Long: `Fetches each pending site's detail fragments through the worker proxy,
extracts document links, and records them. One request is in flight at a
time with a fixed delay between sites. Progress is persisted per site, so
the crawl can be stopped and resumed at any point.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Crawl.WorkerURL == "" {
				return errors.New("crawl.worker_url must be configured")
			}

			st, err := store.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			client := crawler.NewProxyClient(cfg.Crawl.WorkerURL, cfg.Crawl.FetchTimeout(), logger)
			policy := crawler.NewLinearRetryPolicy(cfg.Crawl.MaxAttempts, cfg.Crawl.RetryBaseDelay())

			c := crawler.New(client, st, policy, crawler.NewTimerSleeper(), crawler.Config{
				BaseURL:          cfg.Crawl.BaseURL,
				RequestDelay:     cfg.Crawl.RequestDelay(),
				ProgressInterval: cfg.Crawl.ProgressInterval,
			}, logger)

			var stats crawler.Stats
			if retryFailed {
				stats, err = c.RetryFailed(cmd.Context(), limit)
			} else {
				stats, err = c.Run(cmd.Context(), limit)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("crawl: %w", err)
			}
			if errors.Is(err, context.Canceled) {
				logger.Info("crawl interrupted; progress saved",
					zap.Int("processed", stats.Processed))
			}

			fmt.Printf("Processed %d sites (%d with documents, %d empty, %d failed), %d documents in %s\n",
				stats.Processed, stats.WithDocs, stats.Empty, stats.Failed,
				stats.Documents, stats.Elapsed.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of sites to process this run (0 = all)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "reprocess sites whose last attempt failed instead of pending sites")
	return cmd
}
