package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/telemetry"
)

// Format selects how HTTPSource decodes the response body.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

// HTTPSource registers a table fetched over HTTP with retry/backoff,
// built on go-retryablehttp over a go-cleanhttp transport (no shared,
// mutated http.DefaultClient).
type HTTPSource struct {
	URL    string
	Format Format
	schema map[string]core.ColumnKind
	client *retryablehttp.Client
}

func NewHTTPSource(url string, format Format) *HTTPSource {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultClient()
	client.Logger = nil
	return &HTTPSource{URL: url, Format: format, client: client}
}

func (s *HTTPSource) WithSchema(schema map[string]core.ColumnKind) *HTTPSource {
	s.schema = schema
	return s
}

func (s *HTTPSource) Schema() ([]string, bool) {
	if s.schema == nil {
		return nil, false
	}
	order, _ := resolveSchema(s.schema, nil)
	return order, true
}

func (s *HTTPSource) Description() string {
	return "http source " + s.URL
}

func (s *HTTPSource) RegisterWithTelemetry(ctx context.Context, exec Registrar, name string, buf *telemetry.Buffer) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return errs.ErrValidation.New(err.Error())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errs.ErrValidation.New(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.ErrValidation.New(fmt.Sprintf("%s returned status %d", s.URL, resp.StatusCode))
	}

	var tbl *memexec.Table
	var rows int
	switch s.Format {
	case FormatCSV:
		tbl, rows, err = tableFromCSV(resp.Body, name, s.schema)
	case FormatJSON:
		tbl, rows, err = tableFromJSON(resp.Body, name, s.schema)
	default:
		err = errs.ErrConfiguration.New(fmt.Sprintf("unknown http source format %d", s.Format))
	}
	if err != nil {
		return err
	}

	if err := exec.RegisterTable(name, tbl); err != nil {
		return err
	}
	reportRowsLoaded(buf, name, rows)
	return nil
}

// tableFromJSON decodes a JSON array of flat objects. Without an
// explicit schema, the kind of each column is inferred from the first
// record's Go type (float64, string, bool all decode naturally via
// encoding/json).
func tableFromJSON(r io.Reader, name string, schema map[string]core.ColumnKind) (*memexec.Table, int, error) {
	var records []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, errs.ErrValidation.New(err.Error())
	}

	var colOrder []string
	var sch map[string]core.ColumnKind
	if schema != nil {
		colOrder, sch = resolveSchema(schema, nil)
	} else {
		colOrder, sch = inferJSONSchema(records)
	}

	i := 0
	t, n := buildTable(name, colOrder, sch, func() (map[string]interface{}, bool) {
		if i >= len(records) {
			return nil, false
		}
		rec := records[i]
		i++
		vals := make(map[string]interface{}, len(colOrder))
		for _, col := range colOrder {
			vals[col] = coerceJSONValue(sch[col], rec[col])
		}
		return vals, true
	})
	return t, n, nil
}

// inferJSONSchema derives a sorted column order and a Utf8/Float64/Bool
// kind per column from the first record, since JSON carries no declared
// schema of its own. Numbers always infer as Float64, never Int64.
func inferJSONSchema(records []map[string]interface{}) ([]string, map[string]core.ColumnKind) {
	schema := map[string]core.ColumnKind{}
	if len(records) > 0 {
		for col, v := range records[0] {
			schema[col] = jsonValueKind(v)
		}
	}
	order := make([]string, 0, len(schema))
	for col := range schema {
		order = append(order, col)
	}
	sort.Strings(order)
	return order, schema
}

func jsonValueKind(v interface{}) core.ColumnKind {
	switch v.(type) {
	case float64:
		return core.ColumnFloat64
	case bool:
		return core.ColumnBool
	default:
		return core.ColumnUtf8
	}
}

// coerceJSONValue adapts a decoded JSON value to what memexec.Table's
// AppendRow expects for kind; JSON numbers always decode as float64.
func coerceJSONValue(kind core.ColumnKind, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch kind {
	case core.ColumnInt64, core.ColumnUint64:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
		return nil
	case core.ColumnFloat64:
		if f, ok := v.(float64); ok {
			return f
		}
		return nil
	case core.ColumnBool:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
}
