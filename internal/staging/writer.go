package staging

import (
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/metrics"
	"github.com/cesdata/ces-registry-crawler/internal/registry"
	"github.com/cesdata/ces-registry-crawler/internal/storage"
)

// Writer persists one partial dataset per category per run into the
// staging directory. File names encode both the run date and the
// category so concurrent categories of one run never collide.
type Writer struct {
	dir    string
	stats  *metrics.Run
	logger *zap.Logger
}

// NewWriter builds a Writer rooted at the staging directory.
func NewWriter(dir string, stats *metrics.Run, logger *zap.Logger) *Writer {
	return &Writer{
		dir:    dir,
		stats:  stats,
		logger: logger,
	}
}

// PartialPath returns the artifact path for one category in one run.
func (w *Writer) PartialPath(runDate registry.RunDate, cat registry.Category) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.csv", runDate, cat))
}

// Write persists a category's records for the run. The write is atomic:
// the consolidator never observes a half-written partial.
func (w *Writer) Write(cat registry.Category, runDate registry.RunDate, records []registry.ProjectRecord) (string, error) {
	path := w.PartialPath(runDate, cat)
	err := storage.WriteAtomic(path, func(out io.Writer) error {
		return writeRecords(out, records)
	})
	if err != nil {
		return "", fmt.Errorf("write partial for %s: %w", cat, err)
	}

	w.stats.RecordsStaged(string(cat), len(records))
	w.logger.Info("partial dataset written",
		zap.String("category", string(cat)),
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return path, nil
}
