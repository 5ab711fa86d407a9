// Package assessors normalizes the CES accredited-assessor registry:
// it projects the relevant columns out of the source CSV and rewrites
// the Spanish-locale registration dates as ISO-8601.
package assessors

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cesdata/ces-registry-crawler/internal/registry"
	"github.com/cesdata/ces-registry-crawler/internal/storage"
)

// sourceColumns is the fixed projection kept from the source registry,
// in output order. Every other column is dropped.
var sourceColumns = []string{
	"Región",
	"Fecha inscripción",
	"N° Inscripción",
	"Apellido Paterno",
	"Apellido Materno",
	"Nombre(s)",
	"RUT",
	"Teléfono",
	"email",
}

// outputHeader mirrors sourceColumns with normalized snake_case names.
var outputHeader = []string{
	"region",
	"fecha_inscripcion",
	"n_inscripcion",
	"apellido_paterno",
	"apellido_materno",
	"nombres",
	"rut",
	"telefono",
	"email",
}

const dateColumn = 1

// utf8BOM prefixes the written dataset and is stripped from the source,
// matching the registry's own export convention.
const utf8BOM = "\uFEFF"

// Record is one accredited assessor after normalization. RUT is the
// identity key.
type Record struct {
	Region           string
	FechaInscripcion string
	NInscripcion     string
	ApellidoPaterno  string
	ApellidoMaterno  string
	Nombres          string
	RUT              string
	Telefono         string
	Email            string
}

func (r Record) row() []string {
	return []string{
		r.Region,
		r.FechaInscripcion,
		r.NInscripcion,
		r.ApellidoPaterno,
		r.ApellidoMaterno,
		r.Nombres,
		r.RUT,
		r.Telefono,
		r.Email,
	}
}

// Summary reports one normalization run.
type Summary struct {
	RowsRead    int
	RowsWritten int
	BadDates    int
	Duplicates  int
	OutputPath  string
}

// Normalizer reads the assessor registry from a local path or a URL and
// writes the cleaned dataset.
type Normalizer struct {
	source    string
	outputDir string
	fetcher   registry.Fetcher
	logger    *zap.Logger
}

// New builds a Normalizer. The fetcher is only consulted when the source
// is an http(s) URL.
func New(source, outputDir string, fetcher registry.Fetcher, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		source:    source,
		outputDir: outputDir,
		fetcher:   fetcher,
		logger:    logger,
	}
}

// OutputName returns the cleaned dataset filename for a run.
func OutputName(runDate registry.RunDate) string {
	return fmt.Sprintf("[CES]_Registro_AsesoresCES_Full_List-%s.csv", runDate)
}

// Normalize runs the projection and date cleanup. Rows whose
// registration date cannot be parsed are dropped and counted, never
// coerced to an arbitrary date. Duplicate RUTs keep the last occurrence.
func (n *Normalizer) Normalize(ctx context.Context, runDate registry.RunDate) (Summary, error) {
	raw, err := n.read(ctx)
	if err != nil {
		return Summary{}, err
	}

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte(utf8BOM)))).ReadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("parse source csv: %w", err)
	}
	if len(rows) == 0 {
		return Summary{}, fmt.Errorf("source %s is empty", n.source)
	}

	indices, err := columnIndices(rows[0])
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{RowsRead: len(rows) - 1}
	byRUT := make(map[string]int)
	var records []Record
	for i, row := range rows[1:] {
		record, err := project(row, indices)
		if err != nil {
			summary.BadDates++
			n.logger.Warn("dropping assessor row",
				zap.Int("row", i+2),
				zap.Error(err),
			)
			continue
		}
		if at, dup := byRUT[record.RUT]; dup && record.RUT != "" {
			summary.Duplicates++
			records[at] = record
			continue
		}
		byRUT[record.RUT] = len(records)
		records = append(records, record)
	}

	outputPath := filepath.Join(n.outputDir, OutputName(runDate))
	err = storage.WriteAtomic(outputPath, func(out io.Writer) error {
		return writeDataset(out, records)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("write assessor dataset: %w", err)
	}

	summary.RowsWritten = len(records)
	summary.OutputPath = outputPath
	n.logger.Info("assessor dataset written",
		zap.String("path", outputPath),
		zap.Int("rows", summary.RowsWritten),
		zap.Int("bad_dates", summary.BadDates),
		zap.Int("duplicates", summary.Duplicates),
	)
	return summary, nil
}

func (n *Normalizer) read(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(n.source, "http://") || strings.HasPrefix(n.source, "https://") {
		page, err := n.fetcher.Fetch(ctx, n.source)
		if err != nil {
			return nil, fmt.Errorf("download assessor registry: %w", err)
		}
		return page.Body, nil
	}
	data, err := os.ReadFile(n.source)
	if err != nil {
		return nil, fmt.Errorf("read assessor registry: %w", err)
	}
	return data, nil
}

// columnIndices locates each projected column in the source header.
// Matching folds accents so minor encoding drift in the source file does
// not break the projection.
func columnIndices(header []string) ([]int, error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[foldKey(name)] = i
	}
	indices := make([]int, len(sourceColumns))
	var missing []string
	for i, name := range sourceColumns {
		at, ok := byName[foldKey(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		indices[i] = at
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("source is missing columns: %s", strings.Join(missing, ", "))
	}
	return indices, nil
}

func project(row []string, indices []int) (Record, error) {
	values := make([]string, len(indices))
	for i, at := range indices {
		if at < len(row) {
			values[i] = strings.TrimSpace(row[at])
		}
	}

	iso, err := NormalizeDate(values[dateColumn])
	if err != nil {
		return Record{}, err
	}
	values[dateColumn] = iso

	return Record{
		Region:           values[0],
		FechaInscripcion: values[1],
		NInscripcion:     values[2],
		ApellidoPaterno:  values[3],
		ApellidoMaterno:  values[4],
		Nombres:          values[5],
		RUT:              values[6],
		Telefono:         values[7],
		Email:            values[8],
	}, nil
}

func writeDataset(w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(outputHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		if err := cw.Write(record.row()); err != nil {
			return fmt.Errorf("write row for %s: %w", record.RUT, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
