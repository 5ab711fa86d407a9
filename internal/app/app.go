// Package app wires the pipeline components together and orchestrates
// full runs: enumerate categories, fetch and extract concurrently,
// stage partials, consolidate, and report.
package app

import (
	"context"
	"fmt"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/assessors"
	"github.com/cesdata/ces-registry-crawler/internal/config"
	"github.com/cesdata/ces-registry-crawler/internal/metrics"
	"github.com/cesdata/ces-registry-crawler/internal/ratelimit"
	"github.com/cesdata/ces-registry-crawler/internal/registry"
	"github.com/cesdata/ces-registry-crawler/internal/staging"
	"github.com/cesdata/ces-registry-crawler/internal/storage"
	"github.com/cesdata/ces-registry-crawler/internal/storage/gcs"
	"github.com/cesdata/ces-registry-crawler/internal/storage/local"
	"github.com/cesdata/ces-registry-crawler/internal/worker"
)

// App owns the constructed pipeline for one process lifetime.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	stats        *metrics.Run
	fetcher      registry.Fetcher
	catalog      *registry.Catalog
	pool         *worker.Pool
	writer       *staging.Writer
	consolidator *staging.Consolidator
	normalizer   *assessors.Normalizer
	gcsClient    *gstorage.Client
}

// New builds the full pipeline from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	stats := metrics.NewRun()

	retry := registry.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Registry.RateLimitRPS,
		Burst: cfg.Registry.RateBurst,
	})
	robots := registry.NewRobotsEnforcer(cfg.Registry.RespectRobots, cfg.Registry.UserAgent, logger)

	fetcher, err := registry.NewCollyFetcher(
		registry.FetcherConfig{
			UserAgent:      cfg.Registry.UserAgent,
			RequestTimeout: cfg.RequestTimeout(),
			Concurrency:    cfg.Pipeline.Concurrency,
		},
		retry,
		limiter,
		robots,
		stats,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		stats:   stats,
		fetcher: fetcher,
		catalog: registry.NewCatalog(cfg.Registry.BaseURL, fetcher, logger),
		pool:    worker.New(cfg.Pipeline.Concurrency, fetcher, stats, logger),
		writer:  staging.NewWriter(cfg.Storage.StagingDir, stats, logger),
	}

	export, err := a.buildExport(ctx)
	if err != nil {
		return nil, err
	}
	a.consolidator = staging.NewConsolidator(cfg.Storage.StagingDir, cfg.Storage.OutputDir, export, stats, logger)
	a.normalizer = assessors.New(cfg.Assessors.Source, cfg.Storage.OutputDir, fetcher, logger)
	return a, nil
}

func (a *App) buildExport(ctx context.Context) (storage.BlobStore, error) {
	switch {
	case a.cfg.Storage.ExportBucket != "":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.ExportBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs export: %w", err)
		}
		return store, nil
	case a.cfg.Storage.ExportDir != "":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.ExportDir})
		if err != nil {
			return nil, fmt.Errorf("init local export: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// Close releases any long-lived clients.
func (a *App) Close() {
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("close gcs client", zap.Error(err))
		}
	}
}

// CategoryOutcome summarizes one category's contribution to a run.
type CategoryOutcome struct {
	Category  registry.Category
	Items     int
	Succeeded int
	Failed    int
	Err       error
}

// RunProjects executes the full project pipeline for the run date.
// Item-level failures are tolerated and summarized; only a fatal
// persistence failure (or full cancellation) returns an error.
func (a *App) RunProjects(ctx context.Context, runDate registry.RunDate) error {
	var outcomes []CategoryOutcome
	for _, cat := range registry.Categories() {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, a.runCategory(ctx, cat, runDate))
	}
	a.reportOutcomes(runDate, outcomes)

	if err := ctx.Err(); err != nil {
		// Written partials stay on disk; `consolidate --date` or a full
		// re-run picks the work back up.
		return fmt.Errorf("run interrupted: %w", err)
	}

	summary, err := a.consolidator.Consolidate(ctx, runDate)
	if err != nil {
		return fmt.Errorf("consolidate run %s: %w", runDate, err)
	}
	a.logger.Info("run complete",
		zap.String("run", runDate.String()),
		zap.String("final", summary.FinalPath),
		zap.Int("records", summary.Records),
		zap.Int("conflicts", summary.Conflicts),
	)
	a.dumpStats()
	return nil
}

func (a *App) runCategory(ctx context.Context, cat registry.Category, runDate registry.RunDate) CategoryOutcome {
	outcome := CategoryOutcome{Category: cat}

	items, err := a.catalog.ListItems(ctx, cat)
	if err != nil {
		// Enumeration failure is isolated to the category.
		a.logger.Error("category enumeration failed", zap.String("category", string(cat)), zap.Error(err))
		outcome.Err = err
		return outcome
	}
	outcome.Items = len(items)
	a.logger.Info("category enumerated",
		zap.String("category", string(cat)),
		zap.Int("items", len(items)),
	)

	report := a.pool.Process(ctx, items)
	outcome.Succeeded = report.Succeeded
	outcome.Failed = report.Failed
	if report.Canceled {
		outcome.Err = ctx.Err()
		return outcome
	}

	if _, err := a.writer.Write(cat, runDate, report.Records); err != nil {
		// The category's contribution is lost for this run; the rest of
		// the run keeps going.
		a.logger.Error("partial write failed", zap.String("category", string(cat)), zap.Error(err))
		outcome.Err = err
	}
	return outcome
}

func (a *App) reportOutcomes(runDate registry.RunDate, outcomes []CategoryOutcome) {
	for _, o := range outcomes {
		fields := []zap.Field{
			zap.String("run", runDate.String()),
			zap.String("category", string(o.Category)),
			zap.Int("items", o.Items),
			zap.Int("succeeded", o.Succeeded),
			zap.Int("failed", o.Failed),
		}
		if o.Err != nil {
			fields = append(fields, zap.Error(o.Err))
		}
		a.logger.Info("category summary", fields...)
	}
}

// RunAssessors executes the assessor normalization pipeline.
func (a *App) RunAssessors(ctx context.Context, runDate registry.RunDate) error {
	summary, err := a.normalizer.Normalize(ctx, runDate)
	if err != nil {
		return fmt.Errorf("normalize assessors: %w", err)
	}
	a.logger.Info("assessors complete",
		zap.String("run", runDate.String()),
		zap.String("output", summary.OutputPath),
		zap.Int("rows", summary.RowsWritten),
		zap.Int("bad_dates", summary.BadDates),
	)
	return nil
}

// RunConsolidate re-runs consolidation over a run's surviving partials,
// the recovery path after an interrupted or failed run.
func (a *App) RunConsolidate(ctx context.Context, runDate registry.RunDate) error {
	summary, err := a.consolidator.Consolidate(ctx, runDate)
	if err != nil {
		return fmt.Errorf("consolidate run %s: %w", runDate, err)
	}
	a.logger.Info("consolidation complete",
		zap.String("run", runDate.String()),
		zap.String("final", summary.FinalPath),
		zap.Int("records", summary.Records),
	)
	return nil
}

func (a *App) dumpStats() {
	for _, total := range a.stats.Totals() {
		a.logger.Info("run metric",
			zap.String("name", total.Name),
			zap.String("labels", total.Labels),
			zap.Float64("value", total.Value),
		)
	}
}
