package registry

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Catalog enumerates the registry's categories and the detail pages
// listed under each. Enumeration is a small sequential scrape of the
// category's listing pages; it reuses the Fetcher but stays outside the
// concurrent core.
type Catalog struct {
	baseURL string
	fetcher Fetcher
	logger  *zap.Logger
}

// NewCatalog builds a Catalog rooted at the registry's base URL.
func NewCatalog(baseURL string, fetcher Fetcher, logger *zap.Logger) *Catalog {
	return &Catalog{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		fetcher: fetcher,
		logger:  logger,
	}
}

// CategoryURL returns the first listing page for a category.
func (c *Catalog) CategoryURL(cat Category) string {
	return c.baseURL + string(cat) + "/"
}

// pageURL returns the listing URL for page n of a category.
func (c *Catalog) pageURL(cat Category, n int) string {
	if n <= 1 {
		return c.CategoryURL(cat)
	}
	return fmt.Sprintf("%spage/%d/", c.CategoryURL(cat), n)
}

// ListItems walks every listing page of a category and returns the
// detail pages to visit, de-duplicated by URL slug in listing order.
func (c *Catalog) ListItems(ctx context.Context, cat Category) ([]WorkItem, error) {
	first, err := c.fetcher.Fetch(ctx, c.CategoryURL(cat))
	if err != nil {
		return nil, fmt.Errorf("list category %s: %w", cat, err)
	}
	pages := PageCount(first.Body)
	c.logger.Info("enumerating category",
		zap.String("category", string(cat)),
		zap.Int("pages", pages),
	)

	var items []WorkItem
	seen := make(map[string]struct{})
	appendPage := func(body []byte) error {
		listed, err := ExtractListing(body)
		if err != nil {
			return err
		}
		for _, entry := range listed {
			if entry.URL == "" {
				continue
			}
			id := URLSlug(entry.URL)
			if id == "" {
				id = entry.Name
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			items = append(items, WorkItem{URL: entry.URL, ID: id, Category: cat})
		}
		return nil
	}

	if err := appendPage(first.Body); err != nil {
		return nil, fmt.Errorf("list category %s: %w", cat, err)
	}
	for n := 2; n <= pages; n++ {
		page, err := c.fetcher.Fetch(ctx, c.pageURL(cat, n))
		if err != nil {
			return nil, fmt.Errorf("list category %s page %d: %w", cat, n, err)
		}
		if err := appendPage(page.Body); err != nil {
			return nil, fmt.Errorf("list category %s page %d: %w", cat, n, err)
		}
	}
	return items, nil
}
