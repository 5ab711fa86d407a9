// Package metrics exposes Prometheus collectors for one scrape run.
// There is no long-lived server to scrape them, so the run gathers its
// own registry at the end and logs the totals as the statistics dump.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Run holds the collectors for a single pipeline execution. A nil *Run
// is valid and counts nothing, which keeps call sites unconditional.
type Run struct {
	registry         *prometheus.Registry
	pagesFetched     prometheus.Counter
	fetchRetries     prometheus.Counter
	fetchFailures    prometheus.Counter
	extractFailures  prometheus.Counter
	recordsStaged    *prometheus.CounterVec
	recordsFinalized prometheus.Counter
	mergeConflicts   prometheus.Counter
}

// NewRun builds collectors on a private registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	r := &Run{
		registry: reg,
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_pages_fetched_total",
			Help: "Pages fetched successfully.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_fetch_retries_total",
			Help: "Fetch attempts retried after a transient failure.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_fetch_failures_total",
			Help: "Fetches abandoned after exhausting the retry budget.",
		}),
		extractFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_extract_failures_total",
			Help: "Pages fetched but rejected by the extractor.",
		}),
		recordsStaged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ces_records_staged_total",
				Help: "Project records written to partial datasets, labeled by category.",
			},
			[]string{"category"},
		),
		recordsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_records_finalized_total",
			Help: "Project records written to the consolidated dataset.",
		}),
		mergeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ces_merge_conflicts_total",
			Help: "Identity keys seen in more than one partial with differing data.",
		}),
	}
	reg.MustRegister(
		r.pagesFetched,
		r.fetchRetries,
		r.fetchFailures,
		r.extractFailures,
		r.recordsStaged,
		r.recordsFinalized,
		r.mergeConflicts,
	)
	return r
}

// PageFetched counts one successful fetch.
func (r *Run) PageFetched() {
	if r == nil {
		return
	}
	r.pagesFetched.Inc()
}

// FetchRetried counts one retried attempt.
func (r *Run) FetchRetried() {
	if r == nil {
		return
	}
	r.fetchRetries.Inc()
}

// FetchFailed counts one exhausted retry budget.
func (r *Run) FetchFailed() {
	if r == nil {
		return
	}
	r.fetchFailures.Inc()
}

// ExtractFailed counts one extraction rejection.
func (r *Run) ExtractFailed() {
	if r == nil {
		return
	}
	r.extractFailures.Inc()
}

// RecordsStaged counts records persisted to a category's partial.
func (r *Run) RecordsStaged(category string, n int) {
	if r == nil {
		return
	}
	r.recordsStaged.WithLabelValues(category).Add(float64(n))
}

// RecordsFinalized counts records in the consolidated dataset.
func (r *Run) RecordsFinalized(n int) {
	if r == nil {
		return
	}
	r.recordsFinalized.Add(float64(n))
}

// MergeConflict counts one conflicting duplicate key.
func (r *Run) MergeConflict() {
	if r == nil {
		return
	}
	r.mergeConflicts.Inc()
}

// Total is one gathered metric series.
type Total struct {
	Name   string
	Labels string
	Value  float64
}

// Totals gathers the registry into a flat, sorted list for the
// end-of-run log line.
func (r *Run) Totals() []Total {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return nil
	}
	var out []Total
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if labels != "" {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			out = append(out, Total{
				Name:   fam.GetName(),
				Labels: labels,
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out
}
