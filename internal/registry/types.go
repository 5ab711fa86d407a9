// Package registry defines the core types shared across the CES scraping
// pipeline: certification categories, project records, and the typed
// failures produced by the fetch and extraction stages.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Category names one certification stage in the CES registry. The set is
// fixed by the site and known at design time.
type Category string

// Certification stages, in canonical order. Consolidation tie-breaks
// follow this order, so it must stay stable.
const (
	CategoryEnProceso        Category = "en-proceso"
	CategoryPreCertificacion Category = "pre-certificacion"
	CategoryCertificacion    Category = "certificacion"
	CategorySelloPlus        Category = "sello-plus"
)

// Categories returns every certification stage in canonical order.
func Categories() []Category {
	return []Category{
		CategoryEnProceso,
		CategoryPreCertificacion,
		CategoryCertificacion,
		CategorySelloPlus,
	}
}

// Rank returns the category's position in the canonical order, or -1 for
// an unknown category.
func (c Category) Rank() int {
	for i, known := range Categories() {
		if c == known {
			return i
		}
	}
	return -1
}

// ProjectRecord is one certification project extracted from a detail
// page. Records are immutable once extracted.
type ProjectRecord struct {
	Name                              string
	Category                          Category
	URL                               string
	ImageURL                          string
	EntryDate                         string
	Mandante                          string
	Arquitecto                        string
	UnidadTecnica                     string
	Asesor                            string
	EntidadEvaluadora                 string
	Region                            string
	Comuna                            string
	VersionCertificacion              string
	NivelObtenido                     string
	FechaLogroObtenido                string
	PuntajeObtenido                   string
	AsesorPrecertificacion            string
	EntidadEvaluadoraPrecertificacion string
	AsesorCertificacion               string
	EntidadEvaluadoraCertificacion    string
}

// Key returns the record's identity key used for de-duplication: the
// site-assigned URL slug, or name plus category when the slug is empty.
func (r ProjectRecord) Key() string {
	if slug := URLSlug(r.URL); slug != "" {
		return slug
	}
	return r.Name + "|" + string(r.Category)
}

// URLSlug extracts the last non-empty path segment of a project URL.
func URLSlug(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if strings.Contains(trimmed, ":") {
		// The whole URL had no path; a bare scheme or host is not a slug.
		return ""
	}
	return trimmed
}

// Page is the raw result of one successful fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// WorkItem identifies one detail page to fetch within a category.
type WorkItem struct {
	URL      string
	ID       string
	Category Category
}

// ListingItem is one project entry on a category listing page.
type ListingItem struct {
	Name       string
	URL        string
	Mandante   string
	Arquitecto string
}

// FetchFailure reports a URL whose retry budget was exhausted. It wraps
// the last underlying cause.
type FetchFailure struct {
	URL      string
	Attempts int
	Cause    error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", f.URL, f.Attempts, f.Cause)
}

func (f *FetchFailure) Unwrap() error { return f.Cause }

// StatusError reports a non-2xx HTTP response. 5xx statuses are treated
// as transient by the retry policy.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// ExtractionError names the field that could not be extracted from an
// otherwise fetched page.
type ExtractionError struct {
	URL   string
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: missing field %q", e.URL, e.Field)
}

// Fetcher retrieves one page, applying timeout, retry, and backoff.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}
