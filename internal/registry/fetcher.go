package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/metrics"
)

// FetcherConfig captures the knobs for the HTTP layer.
type FetcherConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	Concurrency    int
}

// Limiter blocks until the politeness budget allows the next request.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RobotsPolicy reports whether a URL may be fetched at all.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// CollyFetcher implements Fetcher on a Colly collector with retry,
// backoff, and politeness applied around each request.
type CollyFetcher struct {
	baseCollector *colly.Collector
	retry         RetryPolicy
	limiter       Limiter
	robots        RobotsPolicy
	stats         *metrics.Run
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher. The
// limiter and robots policy may be nil, disabling the respective gate.
func NewCollyFetcher(
	cfg FetcherConfig,
	retry RetryPolicy,
	limiter Limiter,
	robots RobotsPolicy,
	stats *metrics.Run,
	logger *zap.Logger,
) (*CollyFetcher, error) {
	if retry == nil {
		return nil, fmt.Errorf("retry policy is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	// Robots handling lives in the RobotsPolicy gate, not in colly.
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{
		baseCollector: base,
		retry:         retry,
		limiter:       limiter,
		robots:        robots,
		stats:         stats,
		logger:        logger,
	}, nil
}

// Fetch retrieves a page, retrying transient failures until the policy's
// attempt budget runs out. Exhaustion yields a *FetchFailure wrapping
// the last cause; the caller decides disposition.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, rawURL) {
		return Page{}, &FetchFailure{URL: rawURL, Attempts: 0, Cause: errors.New("disallowed by robots.txt")}
	}

	var lastErr error
	attempts := 0
loop:
	for attempt := 0; attempt < f.retry.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				lastErr = err
				break
			}
		}

		page, err := f.fetchOnce(ctx, rawURL)
		attempts++
		if err == nil {
			f.stats.PageFetched()
			return page, nil
		}
		lastErr = err

		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		f.stats.FetchRetried()
		wait := f.retry.Backoff(attempt)
		f.logger.Warn("fetch attempt failed, backing off",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break loop
		case <-time.After(wait):
		}
	}

	f.stats.FetchFailed()
	return Page{}, &FetchFailure{URL: rawURL, Attempts: attempts, Cause: lastErr}
}

// fetchOnce performs a single request on a cloned collector so handler
// registration stays request-local.
func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string) (Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			send(fetchResult{err: &StatusError{URL: rawURL, StatusCode: r.StatusCode}})
			return
		}
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
			Duration:   time.Since(start),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			send(fetchResult{err: &StatusError{URL: rawURL, StatusCode: r.StatusCode}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	page Page
	err  error
}
