package sources

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/telemetry"
)

// CsvSource registers a table read from a local CSV file. The first
// row is always treated as the header; WithSchema overrides the
// inferred all-Utf8 schema with explicit column kinds so numeric and
// boolean fields parse instead of staying text.
type CsvSource struct {
	Path   string
	schema map[string]core.ColumnKind
}

func NewCsvSource(path string) *CsvSource {
	return &CsvSource{Path: path}
}

func (s *CsvSource) WithSchema(schema map[string]core.ColumnKind) *CsvSource {
	s.schema = schema
	return s
}

func (s *CsvSource) Schema() ([]string, bool) {
	if s.schema == nil {
		return nil, false
	}
	order, _ := resolveSchema(s.schema, nil)
	return order, true
}

func (s *CsvSource) Description() string {
	return "csv file " + s.Path
}

func (s *CsvSource) RegisterWithTelemetry(ctx context.Context, exec Registrar, name string, buf *telemetry.Buffer) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return errs.ErrValidation.New(err.Error())
	}
	defer f.Close()

	tbl, rows, err := tableFromCSV(f, name, s.schema)
	if err != nil {
		return err
	}
	if err := exec.RegisterTable(name, tbl); err != nil {
		return err
	}
	reportRowsLoaded(buf, name, rows)
	return nil
}

// tableFromCSV reads a header row followed by data rows from r and
// builds a memexec.Table, coercing each field per schema (or Utf8 when
// schema is nil).
func tableFromCSV(r io.Reader, name string, schema map[string]core.ColumnKind) (tbl *memexec.Table, rows int, err error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, 0, errs.ErrValidation.New(err.Error())
	}

	order, sch := resolveSchema(schema, header)
	t, n := buildTable(name, order, sch, func() (map[string]interface{}, bool) {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			return nil, false
		}
		if readErr != nil {
			err = errs.ErrValidation.New(readErr.Error())
			return nil, false
		}
		vals := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			vals[col] = parseScalar(sch[col], record[i])
		}
		return vals, true
	})
	if err != nil {
		return nil, 0, err
	}
	return t, n, nil
}

func reportRowsLoaded(buf *telemetry.Buffer, name string, rows int) {
	if buf == nil {
		return
	}
	_ = buf.Push(telemetry.Metric{
		SuiteName:   name,
		Values:      map[string]float64{"rows_loaded": float64(rows)},
		CollectedAt: time.Now(),
	})
}
