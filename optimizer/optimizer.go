package optimizer

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/dqguard/dqguard/core"
)

// QueryOptimizer runs the analyze -> group -> fuse -> execute pipeline
// over one suite's constraints: constraints in, a
// {constraint_name -> ConstraintResult} map and any error out. One
// QueryOptimizer is built per Suite.Run call so its StatsCache never
// leaks statistics across runs.
type QueryOptimizer struct {
	MaxGroupSize int
	Cache        *StatsCache
	Log          *logrus.Entry
}

func NewQueryOptimizer() *QueryOptimizer {
	return &QueryOptimizer{
		MaxGroupSize: DefaultMaxGroupSize,
		Cache:        NewStatsCache(),
		Log:          logrus.WithField("component", "optimizer"),
	}
}

func (o *QueryOptimizer) log() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	return logrus.WithField("component", "optimizer")
}

func (o *QueryOptimizer) analyzeAndGroup(table string, constraints []*core.Constraint) []*ConstraintGroup {
	analyses := make([]ConstraintAnalysis, len(constraints))
	for i, c := range constraints {
		analyses[i] = Analyze(c, table)
	}
	return GroupByTable(analyses, o.MaxGroupSize)
}

// Run analyzes, groups, and executes constraints against exec, issuing
// one fused aggregate query per combinable group and falling back to
// direct evaluation for non-combinable constraints. ctx must already
// carry the ambient table name (core.WithTableName) the runner
// established for ctx; table is passed separately since the optimizer's
// own analysis phase is pure and doesn't need a context at all.
func (o *QueryOptimizer) Run(ctx context.Context, exec core.Executor, table string, constraints []*core.Constraint) (map[string]*core.ConstraintResult, error) {
	groups := o.analyzeAndGroup(table, constraints)
	o.log().WithFields(logrus.Fields{
		"constraints": len(constraints),
		"groups":      len(groups),
		"table":       table,
	}).Debug("optimizer: grouped constraints")

	out := map[string]*core.ConstraintResult{}
	for i, g := range groups {
		span, spanCtx := opentracing.StartSpanFromContext(ctx, "optimizer.fused_query")
		span.SetTag("group_index", i)
		span.SetTag("table", g.Table)
		span.SetTag("constraint_count", len(g.Analyses))

		fq := Fuse(g, o.Cache)
		results, err := fq.Execute(spanCtx, exec)
		span.Finish()
		if err != nil {
			return nil, err
		}
		for name, res := range results {
			out[name] = res
		}
	}
	return out, nil
}

// Explain returns the human-readable plan for constraints without
// executing anything.
func (o *QueryOptimizer) Explain(table string, constraints []*core.Constraint) string {
	return ExplainPlan(o.analyzeAndGroup(table, constraints))
}
