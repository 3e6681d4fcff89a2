package memexec

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/internal/similartext"
)

// Executor is the in-memory reference core.Executor / executor.AggregateExecutor.
type Executor struct {
	mu     sync.RWMutex
	tables map[string]*Table
	used   func() uint64 // approximate resident size, for executor.MemoryPool
}

func New() *Executor {
	return &Executor{tables: map[string]*Table{}}
}

func (e *Executor) RegisterTable(name string, provider core.TableProvider) error {
	t, ok := provider.(*Table)
	if !ok {
		return errs.ErrInternal.New(fmt.Sprintf("memexec: provider for %q is not a *memexec.Table", name))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[name] = t
	logrus.WithField("table", name).Debug("memexec: registered table")
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
	sort.Strings(names)
	return names
}

// SQL is intentionally unsupported: memexec is driven through the
// structured AggregateQuery form via RunAggregate. A real executor
// (executor/sqlclient) accepts free SQL text; this reference
// implementation does not embed a SQL parser.
func (e *Executor) SQL(ctx context.Context, text string) (core.ResultSet, error) {
	return nil, errs.ErrInternal.New("memexec: raw SQL text is not supported; use RunAggregate")
}

func (e *Executor) table(name string) (*Table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, errs.ErrTableNotFound.New(name, similartext.FindFromKeys(e.tables, name))
	}
	return t, nil
}

// ResidentBytes is a crude proxy for memory-pool accounting: eight bytes
// per cell regardless of column kind (string lengths are not measured),
// summed across every registered table. Good enough to exercise
// executor.MemoryPool's GC-driven warning, not a real allocator metric.
func (e *Executor) ResidentBytes() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var total uint64
	for _, t := range e.tables {
		total += uint64(t.rows * len(t.columns) * 8)
	}
	return total
}

// FetchRows materializes the named columns of every row matching
// predicate (nil means every row) as plain core.Row values, for analyzers
// that need row-level rather than aggregate access.
func (e *Executor) FetchRows(ctx context.Context, table string, columns []string, predicate executor.RowPredicate) ([]core.Row, error) {
	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if _, ok := t.kinds[c]; !ok {
			return nil, errs.ErrSchema.New(c, t.name, similartext.FindFromKeys(t.kinds, c))
		}
	}
	out := make([]core.Row, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		full := t.Row(i)
		if predicate != nil && !predicate(full) {
			continue
		}
		if columns == nil {
			out = append(out, full)
			continue
		}
		row := core.Row{}
		for _, c := range columns {
			row[c] = full[c]
		}
		out = append(out, row)
	}
	return out, nil
}

var _ executor.AggregateExecutor = (*Executor)(nil)
var _ executor.RowFetcher = (*Executor)(nil)
