// Package worker runs the fetch-and-extract stage over a shared queue
// of detail pages with a fixed number of concurrent workers.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/metrics"
	"github.com/cesdata/ces-registry-crawler/internal/registry"
)

// Failure records one item that produced no record.
type Failure struct {
	Item registry.WorkItem
	Err  error
}

// Report aggregates the outcomes of one pool run. Records carry no
// ordering guarantee; consolidation is order-independent downstream.
type Report struct {
	Records   []registry.ProjectRecord
	Failures  []Failure
	Succeeded int
	Failed    int
	Canceled  bool
}

// Pool processes work items with a fixed concurrency level. Each worker
// performs fetch then extract sequentially for its item and appends to a
// private buffer; buffers are merged once all workers finish, so no
// result structure is shared while the pool runs.
type Pool struct {
	workers int
	fetcher registry.Fetcher
	stats   *metrics.Run
	logger  *zap.Logger
}

// New builds a Pool. A non-positive worker count falls back to 5, the
// concurrency level the registry tolerates comfortably.
func New(workers int, fetcher registry.Fetcher, stats *metrics.Run, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 5
	}
	return &Pool{
		workers: workers,
		fetcher: fetcher,
		stats:   stats,
		logger:  logger,
	}
}

// Process drains the items through the pool and returns every outcome.
// Item failures are isolated: an exhausted retry budget on one URL never
// aborts the rest. Cancellation stops dispatch of new items promptly;
// in-flight items resolve or abandon via the context.
func (p *Pool) Process(ctx context.Context, items []registry.WorkItem) Report {
	queue := make(chan registry.WorkItem)
	go func() {
		defer close(queue)
		for _, item := range items {
			select {
			case <-ctx.Done():
				return
			case queue <- item:
			}
		}
	}()

	buffers := make([]workerBuffer, p.workers)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(buf *workerBuffer) {
			defer wg.Done()
			p.drain(ctx, queue, buf)
		}(&buffers[i])
	}
	wg.Wait()

	var report Report
	for i := range buffers {
		report.Records = append(report.Records, buffers[i].records...)
		report.Failures = append(report.Failures, buffers[i].failures...)
	}
	report.Succeeded = len(report.Records)
	report.Failed = len(report.Failures)
	report.Canceled = ctx.Err() != nil
	return report
}

type workerBuffer struct {
	records  []registry.ProjectRecord
	failures []Failure
}

func (p *Pool) drain(ctx context.Context, queue <-chan registry.WorkItem, buf *workerBuffer) {
	for item := range queue {
		record, err := p.processItem(ctx, item)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			buf.failures = append(buf.failures, Failure{Item: item, Err: err})
			continue
		}
		buf.records = append(buf.records, record)
	}
}

func (p *Pool) processItem(ctx context.Context, item registry.WorkItem) (registry.ProjectRecord, error) {
	page, err := p.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		p.logger.Warn("item fetch failed",
			zap.String("category", string(item.Category)),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return registry.ProjectRecord{}, err
	}

	record, err := registry.ExtractProject(page.Body, item.URL, item.Category)
	if err != nil {
		p.stats.ExtractFailed()
		p.logger.Warn("item extraction failed",
			zap.String("category", string(item.Category)),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return registry.ProjectRecord{}, err
	}
	return record, nil
}
