package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

func benchCompletenessConstraint(b *testing.B, column string) *core.Constraint {
	b.Helper()
	c, err := core.NewConstraint(column+"-completeness", analyzers.NewCompleteness(column)).
		WithThreshold(0).
		Build()
	if err != nil {
		b.Fatal(err)
	}
	return c
}

// wideTable builds an n-row, 10-column table so BenchmarkOptimizerRun
// can measure the payoff of fusing many completeness constraints into
// one aggregate query instead of issuing one per constraint.
func wideTable(b *testing.B, rows int) *memexec.Table {
	b.Helper()
	schema := map[string]core.ColumnKind{}
	order := make([]string, 10)
	for i := 0; i < 10; i++ {
		col := fmt.Sprintf("col%d", i)
		schema[col] = core.ColumnInt64
		order[i] = col
	}
	tbl := memexec.NewTable("wide", schema, order)
	for r := 0; r < rows; r++ {
		vals := map[string]interface{}{}
		for i := 0; i < 10; i++ {
			if i == 3 && r%7 == 0 {
				vals[order[i]] = nil
				continue
			}
			vals[order[i]] = int64(r * i)
		}
		tbl.AppendRow(vals)
	}
	return tbl
}

func wideConstraints(b *testing.B) []*core.Constraint {
	b.Helper()
	constraints := make([]*core.Constraint, 10)
	for i := 0; i < 10; i++ {
		constraints[i] = benchCompletenessConstraint(b, fmt.Sprintf("col%d", i))
	}
	return constraints
}

// BenchmarkOptimizerRun runs the full analyze->group->fuse->execute
// pipeline for 10 combinable completeness constraints over the same
// table: one fused query instead of ten independent ones.
func BenchmarkOptimizerRun(b *testing.B) {
	exec := memexec.New()
	if err := exec.RegisterTable("wide", wideTable(b, 10000)); err != nil {
		b.Fatal(err)
	}
	constraints := wideConstraints(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o := NewQueryOptimizer()
		if _, err := o.Run(ctx, exec, "wide", constraints); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFuseAndExecute isolates Fuse+Execute from the analyze/group
// phases, for tracking the cost of the fused query itself as row counts
// grow.
func BenchmarkFuseAndExecute(b *testing.B) {
	exec := memexec.New()
	if err := exec.RegisterTable("wide", wideTable(b, 10000)); err != nil {
		b.Fatal(err)
	}
	constraints := wideConstraints(b)
	analyses := make([]ConstraintAnalysis, len(constraints))
	for i, c := range constraints {
		analyses[i] = Analyze(c, "wide")
	}
	groups := GroupByTable(analyses, DefaultMaxGroupSize)
	cache := NewStatsCache()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, g := range groups {
			fq := Fuse(g, cache)
			if _, err := fq.Execute(ctx, exec); err != nil {
				b.Fatal(err)
			}
		}
	}
}
