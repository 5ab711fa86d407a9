package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/metrics"
	"github.com/cesdata/ces-registry-crawler/internal/registry"
	"github.com/cesdata/ces-registry-crawler/internal/storage"
)

// FinalName returns the consolidated dataset filename for a run.
func FinalName(runDate registry.RunDate) string {
	return fmt.Sprintf("[CES]_Projects_Full_List-%s.csv", runDate)
}

// Summary reports what one consolidation produced.
type Summary struct {
	Partials  []string
	Records   int
	Conflicts int
	FinalPath string
	ExportURI string
}

// Consolidator merges a run's partial datasets into the final project
// list, then retires the partials.
type Consolidator struct {
	stagingDir string
	outputDir  string
	export     storage.BlobStore
	stats      *metrics.Run
	logger     *zap.Logger
}

// NewConsolidator builds a Consolidator. export may be nil to skip the
// post-write upload.
func NewConsolidator(stagingDir, outputDir string, export storage.BlobStore, stats *metrics.Run, logger *zap.Logger) *Consolidator {
	return &Consolidator{
		stagingDir: stagingDir,
		outputDir:  outputDir,
		export:     export,
		stats:      stats,
		logger:     logger,
	}
}

// Consolidate discovers the run's partials, merges them de-duplicated by
// identity key, writes the final dataset, and deletes the consumed
// partials. The merge is order-independent: partials are processed in
// canonical category order and the output is sorted by (category rank,
// identity key), so re-running over the same partials yields a
// byte-identical file no matter how the workers interleaved.
//
// Tie-break rule: when one identity key appears in several partials, the
// record from the later category in canonical order wins; within one
// partial, the later row wins. Conflicting duplicates are counted, never
// silently dropped.
func (c *Consolidator) Consolidate(ctx context.Context, runDate registry.RunDate) (Summary, error) {
	partials, err := c.discover(runDate)
	if err != nil {
		return Summary{}, err
	}
	if len(partials) == 0 {
		return Summary{}, fmt.Errorf("no partial datasets for run %s in %s", runDate, c.stagingDir)
	}

	merged, conflicts, err := c.merge(partials)
	if err != nil {
		return Summary{}, err
	}

	finalPath := filepath.Join(c.outputDir, FinalName(runDate))
	err = storage.WriteAtomic(finalPath, func(out io.Writer) error {
		return writeRecords(out, merged)
	})
	if err != nil {
		// Leave every partial in place so the run can be retried
		// without re-fetching.
		return Summary{}, fmt.Errorf("write final dataset: %w", err)
	}
	c.stats.RecordsFinalized(len(merged))

	summary := Summary{
		Records:   len(merged),
		Conflicts: conflicts,
		FinalPath: finalPath,
	}
	for _, p := range partials {
		summary.Partials = append(summary.Partials, p.path)
	}

	if c.export != nil {
		summary.ExportURI = c.exportFinal(ctx, finalPath, runDate)
	}

	c.cleanup(partials)
	c.logger.Info("consolidation complete",
		zap.String("run", runDate.String()),
		zap.String("path", finalPath),
		zap.Int("records", len(merged)),
		zap.Int("conflicts", conflicts),
		zap.Int("partials", len(partials)),
	)
	return summary, nil
}

type partialFile struct {
	path     string
	category registry.Category
}

// discover lists the run's partials, canonical category order first.
// Partials from other runs never match the run-date prefix, so stale
// files are ignored rather than consumed.
func (c *Consolidator) discover(runDate registry.RunDate) ([]partialFile, error) {
	pattern := filepath.Join(c.stagingDir, runDate.String()+"-*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob partials: %w", err)
	}

	var partials []partialFile
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		cat := registry.Category(strings.TrimPrefix(name, runDate.String()+"-"))
		if cat.Rank() < 0 {
			c.logger.Warn("ignoring unrecognized staging file", zap.String("path", path))
			continue
		}
		partials = append(partials, partialFile{path: path, category: cat})
	}
	sort.Slice(partials, func(i, j int) bool {
		return partials[i].category.Rank() < partials[j].category.Rank()
	})
	return partials, nil
}

func (c *Consolidator) merge(partials []partialFile) ([]registry.ProjectRecord, int, error) {
	byKey := make(map[string]registry.ProjectRecord)
	conflicts := 0
	for _, partial := range partials {
		records, err := readRecords(partial.path)
		if err != nil {
			return nil, 0, err
		}
		for _, record := range records {
			key := record.Key()
			if prev, dup := byKey[key]; dup && prev != record {
				conflicts++
				c.stats.MergeConflict()
				c.logger.Warn("duplicate identity key, keeping later category",
					zap.String("key", key),
					zap.String("kept_category", string(record.Category)),
					zap.String("dropped_category", string(prev.Category)),
				)
			}
			byKey[key] = record
		}
	}

	merged := make([]registry.ProjectRecord, 0, len(byKey))
	for _, record := range byKey {
		merged = append(merged, record)
	}
	sort.Slice(merged, func(i, j int) bool {
		ri, rj := merged[i].Category.Rank(), merged[j].Category.Rank()
		if ri != rj {
			return ri < rj
		}
		return merged[i].Key() < merged[j].Key()
	})
	return merged, conflicts, nil
}

func (c *Consolidator) exportFinal(ctx context.Context, finalPath string, runDate registry.RunDate) string {
	f, err := os.Open(finalPath)
	if err != nil {
		c.logger.Warn("export skipped, cannot reopen final dataset", zap.Error(err))
		return ""
	}
	defer f.Close()

	uri, err := c.export.PutObject(ctx, FinalName(runDate), "text/csv; charset=utf-8", f)
	if err != nil {
		// The local artifact is already durable; a failed upload is
		// reported but does not fail the run.
		c.logger.Warn("export failed", zap.String("path", finalPath), zap.Error(err))
		return ""
	}
	c.logger.Info("final dataset exported", zap.String("uri", uri))
	return uri
}

// cleanup deletes consumed partials. Deletion failure is logged and
// non-fatal: stale files cannot leak into later runs because discovery
// is scoped by run date.
func (c *Consolidator) cleanup(partials []partialFile) {
	for _, partial := range partials {
		if err := os.Remove(partial.path); err != nil {
			c.logger.Warn("could not delete partial", zap.String("path", partial.path), zap.Error(err))
		}
	}
}
