package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dqguard/dqguard/core"
)

// Projection is one aliased aggregate expression in a fused or standalone
// query: "<AGG>(<column>) AS <alias>". Column2 is only set for
// AggSumProduct (Correlation's Σxy term).
type Projection struct {
	Alias   string
	Agg     core.AggregationType
	Column  string // "*" for COUNT(*)
	Column2 string // second operand for AggSumProduct
}

func (p Projection) String() string {
	if p.Agg == core.AggSumProduct {
		return fmt.Sprintf("SUM(%s * %s) AS %s", p.Column, p.Column2, p.Alias)
	}
	if p.Column == "*" {
		return fmt.Sprintf("%s(*) AS %s", p.Agg, p.Alias)
	}
	return fmt.Sprintf("%s(%s) AS %s", p.Agg, p.Column, p.Alias)
}

// BucketSpec assigns each row to a fixed histogram bucket by value:
// buckets are [min+i*w, min+(i+1)*w) except the last,
// which is [..., max+0.001*w).
type BucketSpec struct {
	Column      string
	LowerBounds []float64 // length == number of buckets
	Width       float64
}

// GroupSpec groups rows either by the raw value of a column (Entropy,
// Correlation's rank query) or by a computed histogram bucket index.
type GroupSpec struct {
	Column string
	Bucket *BucketSpec
}

// RowPredicate is an executor-side WHERE clause. The in-memory reference
// executor evaluates it directly; a real executor would translate the
// same intent into a SQL WHERE fragment for predicate pushdown.
type RowPredicate func(row core.Row) bool

// AggregateQuery is the structured form every analyzer and the optimizer
// build internally. String() renders it as the SQL text a SQL-speaking
// executor would receive ("SELECT COUNT(*), COUNT(col), MIN(col),
// ... FROM table"); a production Executor that only understands raw SQL
// text (executor/sqlclient) is driven off that rendering, while the
// in-memory reference executor (executor/memexec) additionally accepts
// the structured form directly via the AggregateExecutor interface below
// to avoid re-parsing its own SQL.
type AggregateQuery struct {
	Table       string
	Predicate   RowPredicate
	PredicateSQL string // textual WHERE fragment, for String() and pushdown
	GroupBy     *GroupSpec
	Projections []Projection
}

func (q AggregateQuery) String() string {
	parts := make([]string, len(q.Projections))
	for i, p := range q.Projections {
		parts[i] = p.String()
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.Table)
	if q.PredicateSQL != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(q.PredicateSQL)
	}
	if q.GroupBy != nil {
		sb.WriteString(" GROUP BY ")
		if q.GroupBy.Bucket != nil {
			sb.WriteString(fmt.Sprintf("bucket(%s)", q.GroupBy.Bucket.Column))
		} else {
			sb.WriteString(q.GroupBy.Column)
		}
	}
	return sb.String()
}

// AggregateExecutor is an optional extension interface a concrete
// core.Executor may implement to accept AggregateQuery directly instead
// of forcing callers to format and the executor to re-parse SQL text.
// Analyzers and the optimizer type-assert for it and fall back to
// exec.SQL(q.String()) when it is absent.
type AggregateExecutor interface {
	core.Executor
	RunAggregate(ctx context.Context, q AggregateQuery) (core.ResultSet, error)
}

// RowFetcher is an optional extension interface for the rare analyzer that
// genuinely needs row-level data rather than an aggregate: Correlation's
// Spearman variant, which ranks each column before computing Pearson on
// the ranks. Predicate may be nil. A real executor that
// cannot push a Go closure down as SQL may reject a non-nil predicate.
type RowFetcher interface {
	core.Executor
	FetchRows(ctx context.Context, table string, columns []string, predicate RowPredicate) ([]core.Row, error)
}
