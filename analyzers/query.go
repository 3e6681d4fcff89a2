// Package analyzers implements the concrete Analyzer catalogue: Size, Completeness, Distinctness, UniqueValueRatio, the flat
// numeric aggregates (Mean/Sum/Min/Max/StdDev/Variance), Median/Percentile
// (backed by analyzers/kll), Histogram, Entropy, ApproxCountDistinct,
// Correlation, DataType/DataTypeConsistency, and Compliance.
package analyzers

import (
	"context"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// runOne sends q to exec and returns its single result row. Analyzers that
// issue a non-grouped aggregate always get exactly one row back; a result
// set with a different shape is an executor bug, not a data condition, so
// it is reported as ErrInternal rather than silently indexed.
func runOne(ctx context.Context, exec core.Executor, q executor.AggregateQuery) (core.Row, error) {
	rows, err := runMany(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, errs.ErrInternal.New("aggregate query for table " + q.Table + " returned an unexpected row count")
	}
	return rows[0], nil
}

// runMany sends q to exec and returns every result row, for grouped
// queries (Entropy, UniqueValueRatio, Histogram's bucket pass).
func runMany(ctx context.Context, exec core.Executor, q executor.AggregateQuery) ([]core.Row, error) {
	if agg, ok := exec.(executor.AggregateExecutor); ok {
		rs, err := agg.RunAggregate(ctx, q)
		if err != nil {
			return nil, errs.ErrConstraintEvaluation.New(err.Error())
		}
		return rs.Collect(ctx)
	}
	rs, err := exec.SQL(ctx, q.String())
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}
	return rs.Collect(ctx)
}

