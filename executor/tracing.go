package executor

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/dqguard/dqguard/core"
)

// TracingExecutor wraps a core.Executor so every SQL call opens an
// opentracing span tagged with the query text, letting a suite run be
// traced end to end across the optimizer's fused queries.
type TracingExecutor struct {
	core.Executor
	tracer opentracing.Tracer
}

func WithTracing(exec core.Executor, tracer opentracing.Tracer) *TracingExecutor {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &TracingExecutor{Executor: exec, tracer: tracer}
}

func (t *TracingExecutor) SQL(ctx context.Context, text string) (core.ResultSet, error) {
	span := t.tracer.StartSpan("executor.sql")
	span.SetTag("query", text)
	defer span.Finish()

	rs, err := t.Executor.SQL(ctx, text)
	if err != nil {
		span.SetTag("error", true)
	}
	return rs, err
}

// RunAggregate forwards to the wrapped executor's AggregateExecutor
// implementation, if any, tracing it the same way as SQL.
func (t *TracingExecutor) RunAggregate(ctx context.Context, q AggregateQuery) (core.ResultSet, error) {
	agg, ok := t.Executor.(AggregateExecutor)
	if !ok {
		return t.SQL(ctx, q.String())
	}
	span := t.tracer.StartSpan("executor.aggregate")
	span.SetTag("query", q.String())
	defer span.Finish()

	rs, err := agg.RunAggregate(ctx, q)
	if err != nil {
		span.SetTag("error", true)
	}
	return rs, err
}
