// Package cmd defines and implements the CLI commands for the
// brrts-pipeline executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdcarver/brrts-pipeline/internal/config"
	"github.com/jdcarver/brrts-pipeline/internal/logging"
)

var (
	cfgFile string

	// Populated by the root PersistentPreRunE before any subcommand runs.
	cfg    config.Config
	logger *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brrts-pipeline",
		Short: "Data acquisition pipeline for contaminated-site records",
		Long: `brrts-pipeline ingests the state cleanup-tracking database: it imports
the bulk tab-delimited extracts into a local SQLite store and then crawls
each site's detail page through the worker proxy to collect document
links, resumably and at a polite rate.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; environment variables override with prefix BRRTS_)")

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute is the main entry point. Interrupts cancel the command context so
// long crawls stop cleanly between sites.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
