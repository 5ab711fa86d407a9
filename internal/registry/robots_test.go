package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobotsEnforcer(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		robotsHits.Add(1)
		fmt.Fprint(w, "User-agent: *\nDisallow: /privado/\n")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	policy := NewRobotsEnforcer(true, "ces-registry-crawler-test", zap.NewNop())
	ctx := context.Background()

	require.True(t, policy.Allowed(ctx, server.URL+"/certificacion/"))
	require.False(t, policy.Allowed(ctx, server.URL+"/privado/informe"))

	// Group data is cached per host for the run.
	require.True(t, policy.Allowed(ctx, server.URL+"/sello-plus/"))
	require.Equal(t, int64(1), robotsHits.Load())
}

func TestRobotsEnforcer_FetchFailureAllows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	unreachable := server.URL
	server.Close()

	policy := NewRobotsEnforcer(true, "ces-registry-crawler-test", zap.NewNop())
	require.True(t, policy.Allowed(context.Background(), unreachable+"/certificacion/"))
}

func TestRobotsEnforcer_UnparsableURLDenied(t *testing.T) {
	t.Parallel()

	policy := NewRobotsEnforcer(true, "ces-registry-crawler-test", zap.NewNop())
	require.False(t, policy.Allowed(context.Background(), "http://exa mple.cl/"))
}

func TestRobotsDisabledAllowsEverything(t *testing.T) {
	t.Parallel()

	policy := NewRobotsEnforcer(false, "ces-registry-crawler-test", zap.NewNop())
	require.True(t, policy.Allowed(context.Background(), "https://example.cl/privado/"))
}
