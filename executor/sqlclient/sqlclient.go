// Package sqlclient adapts a database/sql connection to core.Executor.
// Use this when the
// registered tables already live in a real database (Postgres, MySQL,
// SQLite, ...): analyzers' generated aggregate SQL is sent as-is.
package sqlclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/dolthub/vitess/go/sqltypes"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// Executor sends analyzer/optimizer-generated SQL text straight to a
// database/sql.DB. Table registration is a validation step only: the
// named table is expected to already exist in the database (created by a
// sources.* data source, e.g. by loading a CSV into a staging table).
type Executor struct {
	db *sql.DB

	mu     sync.RWMutex
	tables map[string]core.TableProvider
}

func New(db *sql.DB) *Executor {
	return &Executor{db: db, tables: map[string]core.TableProvider{}}
}

func (e *Executor) RegisterTable(name string, provider core.TableProvider) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[name] = provider
	return nil
}

func (e *Executor) DeregisterTable(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, name)
	return nil
}

func (e *Executor) TableNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for n := range e.tables {
		names = append(names, n)
	}
	return names
}

// SQL runs text against the underlying database/sql connection and
// coerces every returned column to a MetricValue using spf13/cast.
func (e *Executor) SQL(ctx context.Context, text string) (core.ResultSet, error) {
	rows, err := e.db.QueryContext(ctx, text)
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}

	var out []core.Row
	for rows.Next() {
		scanDest := make([]interface{}, len(cols))
		scanPtrs := make([]interface{}, len(cols))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, errs.ErrConstraintEvaluation.New(err.Error())
		}
		row := core.Row{}
		for i, col := range cols {
			row[col] = toMetricValue(scanDest[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}
	return staticResultSet{rows: out}, nil
}

// FetchRows builds a plain SELECT over the named columns. A Go-closure
// RowPredicate can't be pushed down to a real database, so a non-nil
// predicate is rejected rather than silently ignored.
func (e *Executor) FetchRows(ctx context.Context, table string, columns []string, predicate executor.RowPredicate) ([]core.Row, error) {
	if predicate != nil {
		return nil, errs.ErrInternal.New("sqlclient: FetchRows does not support Go-closure predicates; push the filter into the table source instead")
	}
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}
	rs, err := e.SQL(ctx, fmt.Sprintf("SELECT %s FROM %s", cols, table))
	if err != nil {
		return nil, err
	}
	return rs.Collect(ctx)
}

type staticResultSet struct{ rows []core.Row }

func (s staticResultSet) Collect(ctx context.Context) ([]core.Row, error) { return s.rows, nil }

func toMetricValue(v interface{}) core.MetricValue {
	if v == nil {
		return core.NoneValue()
	}
	switch t := v.(type) {
	case int64:
		return core.LongValue(t)
	case float64:
		return core.DoubleValue(t)
	case bool:
		return core.BoolValue(t)
	case []byte:
		return core.StringValue(string(t))
	case string:
		return core.StringValue(t)
	default:
		// Fall back to a best-effort numeric coercion (spf13/cast),
		// mirroring sqltypes.Value's "everything is convertible" stance;
		// if that fails too, keep the textual form.
		if f, err := cast.ToFloat64E(t); err == nil {
			return core.DoubleValue(f)
		}
		return core.StringValue(cast.ToString(t))
	}
}

var _ executor.RowFetcher = (*Executor)(nil)

// sqlTypeHint is unused at runtime but documents the mapping this
// adapter assumes from vitess's wire type vocabulary to our ColumnKind,
// for callers building a TableProvider's schema by hand.
func sqlTypeHint(t sqltypes.Type) core.ColumnKind {
	switch {
	case sqltypes.IsIntegral(t):
		return core.ColumnInt64
	case sqltypes.IsFloat(t):
		return core.ColumnFloat64
	case sqltypes.IsText(t) || sqltypes.IsBinary(t):
		return core.ColumnUtf8
	default:
		return core.ColumnUtf8
	}
}
