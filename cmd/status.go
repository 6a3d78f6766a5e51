package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// newStatusCmd creates the 'status' subcommand, a read-only snapshot of
// the crawl ledger.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show crawl progress",

		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			p, err := st.Progress(cmd.Context())
			if err != nil {
				return fmt.Errorf("read progress: %w", err)
			}

			fmt.Printf("Crawlable sites:      %d\n", p.Total)
			fmt.Printf("  done:               %d (%.1f%%)\n", p.Done, p.Percent())
			fmt.Printf("  failed:             %d\n", p.Failed)
			fmt.Printf("  pending:            %d\n", p.Pending)
			fmt.Printf("Documents collected:  %d\n", p.TotalDocuments)
			fmt.Printf("Sites with documents: %d (avg %.1f docs/site)\n",
				p.SitesWithDocs, p.AvgDocsPerSite())
			return nil
		},
	}
}
