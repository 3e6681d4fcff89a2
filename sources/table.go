package sources

import (
	"sort"
	"strconv"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// parseScalar coerces a raw CSV field into the Go value memexec.Table's
// AppendRow expects for kind. An empty field is always NULL.
func parseScalar(kind core.ColumnKind, raw string) interface{} {
	if raw == "" {
		return nil
	}
	switch kind {
	case core.ColumnInt64, core.ColumnUint64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		return v
	case core.ColumnFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return v
	case core.ColumnBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil
		}
		return v
	default:
		return raw
	}
}

// resolveSchema picks the column order and kinds a table will use:
// explicit takes priority; otherwise every column in inferredOrder is
// treated as Utf8 (the only kind CSV's raw strings round-trip exactly
// without a declared schema).
func resolveSchema(explicit map[string]core.ColumnKind, inferredOrder []string) ([]string, map[string]core.ColumnKind) {
	if explicit != nil {
		order := make([]string, 0, len(explicit))
		for col := range explicit {
			order = append(order, col)
		}
		sort.Strings(order)
		return order, explicit
	}
	schema := make(map[string]core.ColumnKind, len(inferredOrder))
	for _, col := range inferredOrder {
		schema[col] = core.ColumnUtf8
	}
	return inferredOrder, schema
}

// buildTable appends rows produced by next (returning false when
// exhausted) into a new memexec.Table under name.
func buildTable(name string, order []string, schema map[string]core.ColumnKind, next func() (map[string]interface{}, bool)) (*memexec.Table, int) {
	tbl := memexec.NewTable(name, schema, order)
	rows := 0
	for {
		vals, ok := next()
		if !ok {
			break
		}
		tbl.AppendRow(vals)
		rows++
	}
	return tbl, rows
}
