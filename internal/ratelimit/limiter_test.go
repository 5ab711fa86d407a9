package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedDoesNotBlock(t *testing.T) {
	t.Parallel()

	limiter := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, limiter.Wait(context.Background(), "https://example.cl/p/"))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestWaitPacesPerHost(t *testing.T) {
	t.Parallel()

	// Burst 1 at 20 rps: the second request on the same host waits
	// roughly 50ms, a different host does not.
	limiter := New(Config{RPS: 20, Burst: 1})
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "https://a.example.cl/"))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://a.example.cl/"))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://b.example.cl/"))
	require.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	limiter := New(Config{RPS: 0.001, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Wait(ctx, "https://slow.example.cl/"))
	require.Error(t, limiter.Wait(ctx, "https://slow.example.cl/"))
}
