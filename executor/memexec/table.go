// Package memexec is an in-memory reference implementation of
// core.Executor and executor.AggregateExecutor. It exists to make the
// constraint/analyzer/optimizer pipeline testable without a real
// columnar query engine, which is an external collaborator this module
// only consumes through the Executor interface.
package memexec

import (
	"github.com/dqguard/dqguard/core"
)

// Table is a columnar, in-memory table: one typed, nullable array per
// column, all the same length. Construct with NewTable then Append rows.
type Table struct {
	name    string
	columns []string
	kinds   map[string]core.ColumnKind
	ints    map[string][]int64
	floats  map[string][]float64
	strings map[string][]string
	bools   map[string][]bool
	valid   map[string][]bool
	rows    int
}

func NewTable(name string, schema map[string]core.ColumnKind, order []string) *Table {
	t := &Table{
		name:    name,
		columns: append([]string{}, order...),
		kinds:   map[string]core.ColumnKind{},
		ints:    map[string][]int64{},
		floats:  map[string][]float64{},
		strings: map[string][]string{},
		bools:   map[string][]bool{},
		valid:   map[string][]bool{},
	}
	for _, col := range order {
		t.kinds[col] = schema[col]
	}
	return t
}

func (t *Table) Name() string          { return t.name }
func (t *Table) ColumnNames() []string { return t.columns }
func (t *Table) NumRows() int          { return t.rows }

// AppendRow appends one row. vals maps column name to a Go value (int64,
// float64, string, bool) or nil for NULL; columns absent from vals are
// recorded as NULL.
func (t *Table) AppendRow(vals map[string]interface{}) {
	for _, col := range t.columns {
		v, present := vals[col]
		isNull := !present || v == nil
		switch t.kinds[col] {
		case core.ColumnInt64, core.ColumnUint64:
			var iv int64
			if !isNull {
				iv = toInt64(v)
			}
			t.ints[col] = append(t.ints[col], iv)
		case core.ColumnFloat64:
			var fv float64
			if !isNull {
				fv = toFloat64(v)
			}
			t.floats[col] = append(t.floats[col], fv)
		case core.ColumnUtf8:
			var sv string
			if !isNull {
				sv, _ = v.(string)
			}
			t.strings[col] = append(t.strings[col], sv)
		case core.ColumnBool:
			var bv bool
			if !isNull {
				bv, _ = v.(bool)
			}
			t.bools[col] = append(t.bools[col], bv)
		}
		t.valid[col] = append(t.valid[col], !isNull)
	}
	t.rows++
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// IsValid reports whether row idx of col is non-null.
func (t *Table) IsValid(col string, idx int) bool {
	vs := t.valid[col]
	if idx < 0 || idx >= len(vs) {
		return false
	}
	return vs[idx]
}

// Float64At coerces any numeric column's value at idx to float64.
func (t *Table) Float64At(col string, idx int) (float64, bool) {
	if !t.IsValid(col, idx) {
		return 0, false
	}
	switch t.kinds[col] {
	case core.ColumnInt64, core.ColumnUint64:
		return float64(t.ints[col][idx]), true
	case core.ColumnFloat64:
		return t.floats[col][idx], true
	default:
		return 0, false
	}
}

// StringAt renders any column's value at idx as a string (used by
// Entropy/DataType, which classify or bucket on the textual value).
func (t *Table) StringAt(col string, idx int) (string, bool) {
	if !t.IsValid(col, idx) {
		return "", false
	}
	switch t.kinds[col] {
	case core.ColumnUtf8:
		return t.strings[col][idx], true
	case core.ColumnInt64, core.ColumnUint64:
		return formatInt(t.ints[col][idx]), true
	case core.ColumnFloat64:
		return formatFloat(t.floats[col][idx]), true
	case core.ColumnBool:
		if t.bools[col][idx] {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// Row materializes row idx as a core.Row, coercing every column to a
// MetricValue. Used by RowPredicate evaluation and by Compliance.
func (t *Table) Row(idx int) core.Row {
	r := core.Row{}
	for _, col := range t.columns {
		if !t.IsValid(col, idx) {
			r[col] = core.NoneValue()
			continue
		}
		switch t.kinds[col] {
		case core.ColumnInt64, core.ColumnUint64:
			r[col] = core.LongValue(t.ints[col][idx])
		case core.ColumnFloat64:
			r[col] = core.DoubleValue(t.floats[col][idx])
		case core.ColumnUtf8:
			r[col] = core.StringValue(t.strings[col][idx])
		case core.ColumnBool:
			r[col] = core.BoolValue(t.bools[col][idx])
		}
	}
	return r
}
