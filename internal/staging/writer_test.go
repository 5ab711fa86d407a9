package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/registry"
)

func testRunDate(t *testing.T) registry.RunDate {
	t.Helper()
	date, err := registry.ParseRunDate("2022_03_15")
	require.NoError(t, err)
	return date
}

func sampleRecords(cat registry.Category, names ...string) []registry.ProjectRecord {
	records := make([]registry.ProjectRecord, 0, len(names))
	for _, name := range names {
		records = append(records, registry.ProjectRecord{
			Name:     name,
			Category: cat,
			URL:      "https://example.cl/proyecto/" + name + "/",
			Comuna:   "Santiago",
		})
	}
	return records
}

func TestWriterWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewWriter(dir, nil, zap.NewNop())
	date := testRunDate(t)

	path, err := writer.Write(registry.CategoryCertificacion, date, sampleRecords(registry.CategoryCertificacion, "alfa", "beta"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "2022_03_15-certificacion.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(data) >= 3)
	require.Equal(t, []byte(utf8BOM), data[:3])

	records, err := readRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "alfa", records[0].Name)
	require.Equal(t, registry.CategoryCertificacion, records[0].Category)
	require.Equal(t, "Santiago", records[1].Comuna)
}

func TestWriterWrite_EmptyCategory(t *testing.T) {
	t.Parallel()

	writer := NewWriter(t.TempDir(), nil, zap.NewNop())
	date := testRunDate(t)

	path, err := writer.Write(registry.CategorySelloPlus, date, nil)
	require.NoError(t, err)

	records, err := readRecords(path)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestWriterWrite_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewWriter(dir, nil, zap.NewNop())
	date := testRunDate(t)

	_, err := writer.Write(registry.CategoryEnProceso, date, sampleRecords(registry.CategoryEnProceso, "alfa"))
	require.NoError(t, err)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestPartialPathEncodesRunAndCategory(t *testing.T) {
	t.Parallel()

	writer := NewWriter("/data/staging", nil, zap.NewNop())
	today := registry.NewRunDate(time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC))
	require.Equal(t, "/data/staging/2026_08_29-pre-certificacion.csv", writer.PartialPath(today, registry.CategoryPreCertificacion))
}
