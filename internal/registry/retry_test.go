package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(3, time.Millisecond, 10*time.Millisecond)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil error", err: nil, attempt: 1, want: false},
		{name: "generic error retries", err: errors.New("boom"), attempt: 1, want: true},
		{name: "budget exhausted", err: errors.New("boom"), attempt: 3, want: false},
		{name: "context canceled", err: context.Canceled, attempt: 1, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, attempt: 1, want: false},
		{name: "server error", err: &StatusError{URL: "http://x", StatusCode: 503}, attempt: 1, want: true},
		{name: "client error", err: &StatusError{URL: "http://x", StatusCode: 404}, attempt: 1, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestExponentialRetryPolicy_BackoffBounded(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(10, 100*time.Millisecond, time.Second)
	for attempt := 0; attempt < 10; attempt++ {
		wait := policy.Backoff(attempt)
		require.GreaterOrEqual(t, wait, time.Duration(0))
		require.LessOrEqual(t, wait, time.Second)
	}
}

func TestExponentialRetryPolicy_Defaults(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, 10, policy.MaxAttempts())
}
