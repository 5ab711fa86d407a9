// Package cmd defines the CLI commands for the cesregistry executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/app"
	"github.com/cesdata/ces-registry-crawler/internal/config"
	"github.com/cesdata/ces-registry-crawler/internal/logging"
	"github.com/cesdata/ces-registry-crawler/internal/registry"
)

var (
	cfgFile string
	runDate string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cesregistry",
		Short: "Scrapes and consolidates the CES certification registry",
		Long: `cesregistry downloads the public CES (Certificación Edificio
Sustentable) registry: it enumerates the certification categories,
fetches every project's detail page concurrently, and consolidates the
results into one de-duplicated CSV. A second pipeline normalizes the
accredited assessor registry.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&runDate, "date", "", "run date as YYYY_MM_DD (default: today)")

	cmd.AddCommand(newProjectsCmd())
	cmd.AddCommand(newAssessorsCmd())
	cmd.AddCommand(newConsolidateCmd())
	return cmd
}

// Execute is the main entry point. A SIGINT or SIGTERM cancels the run
// context: dispatch of new work stops and already-written partials stay
// on disk for a later `consolidate` or re-run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger, and wires the pipeline.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init application: %w", err)
	}
	return application, logger, nil
}

// resolveRunDate parses the --date flag, defaulting to today.
func resolveRunDate() (registry.RunDate, error) {
	if runDate == "" {
		return registry.NewRunDate(time.Now()), nil
	}
	return registry.ParseRunDate(runDate)
}
