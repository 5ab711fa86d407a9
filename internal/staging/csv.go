// Package staging persists per-category partial datasets for one run
// and consolidates them into the final project list.
package staging

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/cesdata/ces-registry-crawler/internal/registry"
)

// Header is the fixed column order shared by partial and final datasets.
var Header = []string{
	"project_name",
	"status",
	"url",
	"image_url",
	"entry_date",
	"mandante",
	"arquitecto",
	"unidad_tecnica",
	"asesor",
	"entidad_evaluadora",
	"region",
	"comuna",
	"version_certificacion",
	"nivel_obtenido",
	"fecha_logro_obtenido",
	"puntaje_obtenido",
	"asesor_precertificacion",
	"entidad_evaluadora_precertificacion",
	"asesor_certificacion",
	"entidad_evaluadora_certificacion",
}

// utf8BOM prefixes every dataset so spreadsheet tools pick up the
// encoding, matching the registry's own export convention.
const utf8BOM = "\uFEFF"

func recordRow(r registry.ProjectRecord) []string {
	return []string{
		r.Name,
		string(r.Category),
		r.URL,
		r.ImageURL,
		r.EntryDate,
		r.Mandante,
		r.Arquitecto,
		r.UnidadTecnica,
		r.Asesor,
		r.EntidadEvaluadora,
		r.Region,
		r.Comuna,
		r.VersionCertificacion,
		r.NivelObtenido,
		r.FechaLogroObtenido,
		r.PuntajeObtenido,
		r.AsesorPrecertificacion,
		r.EntidadEvaluadoraPrecertificacion,
		r.AsesorCertificacion,
		r.EntidadEvaluadoraCertificacion,
	}
}

func rowRecord(row []string) (registry.ProjectRecord, error) {
	if len(row) != len(Header) {
		return registry.ProjectRecord{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Header))
	}
	return registry.ProjectRecord{
		Name:                              row[0],
		Category:                          registry.Category(row[1]),
		URL:                               row[2],
		ImageURL:                          row[3],
		EntryDate:                         row[4],
		Mandante:                          row[5],
		Arquitecto:                        row[6],
		UnidadTecnica:                     row[7],
		Asesor:                            row[8],
		EntidadEvaluadora:                 row[9],
		Region:                            row[10],
		Comuna:                            row[11],
		VersionCertificacion:              row[12],
		NivelObtenido:                     row[13],
		FechaLogroObtenido:                row[14],
		PuntajeObtenido:                   row[15],
		AsesorPrecertificacion:            row[16],
		EntidadEvaluadoraPrecertificacion: row[17],
		AsesorCertificacion:               row[18],
		EntidadEvaluadoraCertificacion:    row[19],
	}, nil
}

func writeRecords(w io.Writer, records []registry.ProjectRecord) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		if err := cw.Write(recordRow(record)); err != nil {
			return fmt.Errorf("write record %q: %w", record.Key(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func readRecords(path string) ([]registry.ProjectRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open partial %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read partial %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("partial %s has no header", path)
	}

	records := make([]registry.ProjectRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record, err := rowRecord(row)
		if err != nil {
			return nil, fmt.Errorf("partial %s: %w", path, err)
		}
		records = append(records, record)
	}
	return records, nil
}
