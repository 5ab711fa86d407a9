package gcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "  "})
	require.ErrorContains(t, err, "bucket name is required")

	_, err = New(nil, Config{Bucket: "ces-exports"})
	require.ErrorContains(t, err, "storage client is required")
}
