package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdcarver/brrts-pipeline/internal/importer"
	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// newImportCmd creates the 'import' subcommand. Importing rebuilds the
// database from scratch; any existing store at the configured path is
// replaced, crawl progress included.
func newImportCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Rebuild the database from the bulk extracts",
		Long: `Streams the tab-delimited bulk extracts into a freshly created SQLite
database. The primary extract is loaded first; role, action, and substance
extracts are joined to it through the internal sequence number. This is a
destructive full rebuild: the previous database file is removed.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataDir != "" {
				cfg.Import.DataDir = dataDir
			}

			st, err := store.Create(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("create database: %w", err)
			}
			defer st.Close()

			imp := importer.New(st, importer.Config{
				DataDir:   cfg.Import.DataDir,
				BaseURL:   cfg.Crawl.BaseURL,
				BatchSize: cfg.Import.BatchSize,
			}, logger)

			sum, err := imp.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			logger.Info("database rebuilt",
				zap.String("path", st.Path()),
				zap.Int("sites", sum.Sites),
				zap.Int("actions", sum.Actions),
				zap.Int("substances", sum.Substances),
			)
			fmt.Printf("Imported %d sites, %d actions, %d substances in %s\n",
				sum.Sites, sum.Actions, sum.Substances, sum.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the bulk extract files (overrides config)")
	return cmd
}
