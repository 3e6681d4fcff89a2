package optimizer

import (
	"context"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// runOne sends q to exec and returns its single result row, preferring
// the structured AggregateExecutor path over re-parsing SQL text when
// the executor supports it, the same preference analyzers.runOne
// applies, duplicated here rather than imported so the optimizer package
// does not depend on the analyzers package for a three-line helper.
func runOne(ctx context.Context, exec core.Executor, q executor.AggregateQuery) (core.Row, error) {
	var (
		rows []core.Row
		err  error
	)
	if agg, ok := exec.(executor.AggregateExecutor); ok {
		rs, runErr := agg.RunAggregate(ctx, q)
		if runErr != nil {
			return nil, errs.ErrConstraintEvaluation.New(runErr.Error())
		}
		rows, err = rs.Collect(ctx)
	} else {
		rs, runErr := exec.SQL(ctx, q.String())
		if runErr != nil {
			return nil, errs.ErrConstraintEvaluation.New(runErr.Error())
		}
		rows, err = rs.Collect(ctx)
	}
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}
	if len(rows) != 1 {
		return nil, errs.ErrInternal.New("fused query for table " + q.Table + " returned an unexpected row count")
	}
	return rows[0], nil
}
