package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates missing base directory", func(t *testing.T) {
		t.Parallel()
		base := filepath.Join(t.TempDir(), "exports")
		_, err := New(Config{BaseDir: base})
		require.NoError(t, err)
		require.DirExists(t, base)
	})

	t.Run("rejects empty base directory", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{})
		require.Error(t, err)
	})

	t.Run("rejects file as base directory", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "notadir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o640))
		_, err := New(Config{BaseDir: file})
		require.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "runs/final.csv", "text/csv", strings.NewReader("datos"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, "runs", "final.csv"), uri)

	data, err := os.ReadFile(filepath.Join(base, "runs", "final.csv"))
	require.NoError(t, err)
	require.Equal(t, "datos", string(data))
}

func TestPutObject_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.csv", "text/csv", strings.NewReader("x"))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "   ", "text/csv", strings.NewReader("x"))
	require.Error(t, err)
}
