package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T, maxAttempts int) *CollyFetcher {
	t.Helper()
	policy := NewExponentialRetryPolicy(maxAttempts, time.Millisecond, 5*time.Millisecond)
	fetcher, err := NewCollyFetcher(
		FetcherConfig{UserAgent: "ces-test", RequestTimeout: 5 * time.Second, Concurrency: 2},
		policy,
		nil,
		nil,
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)
	return fetcher
}

func TestCollyFetcher_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, 3)
	page, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "ok")
}

func TestCollyFetcher_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, 5)
	page, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Contains(t, string(page.Body), "recovered")
	require.EqualValues(t, 3, hits.Load())
}

func TestCollyFetcher_ExhaustsConfiguredAttempts(t *testing.T) {
	t.Parallel()

	const maxAttempts = 4
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, maxAttempts)
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, maxAttempts, failure.Attempts)
	require.EqualValues(t, maxAttempts, hits.Load())

	var status *StatusError
	require.ErrorAs(t, failure.Cause, &status)
	require.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
}

func TestCollyFetcher_ClientErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, 5)
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 1, failure.Attempts)
	require.EqualValues(t, 1, hits.Load())
}

func TestCollyFetcher_CanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newTestFetcher(t, 5)
	_, err := fetcher.Fetch(ctx, server.URL)

	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	require.ErrorIs(t, err, context.Canceled)
}

type denyAllRobots struct{}

func (denyAllRobots) Allowed(context.Context, string) bool { return false }

func TestCollyFetcher_RobotsDisallowed(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	policy := NewExponentialRetryPolicy(3, time.Millisecond, 5*time.Millisecond)
	fetcher, err := NewCollyFetcher(
		FetcherConfig{UserAgent: "ces-test", RequestTimeout: time.Second, Concurrency: 1},
		policy,
		nil,
		denyAllRobots{},
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), server.URL)
	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 0, failure.Attempts)
	require.EqualValues(t, 0, hits.Load())
}
