package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

func fiveRowTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"id":    core.ColumnInt64,
		"name":  core.ColumnUtf8,
		"value": core.ColumnFloat64,
	}
	tbl := memexec.NewTable("data", schema, []string{"id", "name", "value"})
	rows := []struct {
		id    int64
		name  string
		value interface{}
	}{
		{1, "a", 1.0},
		{2, "b", 2.0},
		{3, "c", 3.0},
		{4, "d", 4.0},
		{5, "e", nil},
	}
	for _, r := range rows {
		tbl.AppendRow(map[string]interface{}{"id": r.id, "name": r.name, "value": r.value})
	}
	return tbl
}

func completenessConstraint(t *testing.T, column string) *core.Constraint {
	c, err := core.NewConstraint(column+"-completeness", analyzers.NewCompleteness(column)).
		WithThreshold(0).
		Build()
	require.NoError(t, err)
	return c
}

func TestAnalyzeMarksCompletenessCombinable(t *testing.T) {
	c := completenessConstraint(t, "id")
	a := Analyze(c, "data")
	require.True(t, a.IsCombinable)
	require.Contains(t, a.Columns, "id")
	require.Contains(t, a.Aggregations, core.AggCount)
}

func TestAnalyzeMarksHistogramNonCombinable(t *testing.T) {
	c, err := core.NewConstraint("value-histogram", analyzers.NewHistogram("value", 5)).
		WithThreshold(0).
		Build()
	require.NoError(t, err)
	a := Analyze(c, "data")
	require.False(t, a.IsCombinable)
}

func TestGroupByTableFusesCompatibleCompleteness(t *testing.T) {
	constraints := []*core.Constraint{
		completenessConstraint(t, "id"),
		completenessConstraint(t, "name"),
		completenessConstraint(t, "value"),
	}
	analyses := make([]ConstraintAnalysis, len(constraints))
	for i, c := range constraints {
		analyses[i] = Analyze(c, "data")
	}
	groups := GroupByTable(analyses, DefaultMaxGroupSize)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Analyses, 3)
}

func TestGroupByTableKeepsNonCombinableSolo(t *testing.T) {
	histC, err := core.NewConstraint("value-histogram", analyzers.NewHistogram("value", 5)).
		WithThreshold(0).
		Build()
	require.NoError(t, err)

	analyses := []ConstraintAnalysis{
		Analyze(completenessConstraint(t, "id"), "data"),
		Analyze(histC, "data"),
	}
	groups := GroupByTable(analyses, DefaultMaxGroupSize)
	require.Len(t, groups, 2)
}

func TestOptimizerFusionMatchesSpecExample(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", fiveRowTable()))
	ctx := core.WithTableName(context.Background(), "data")

	constraints := []*core.Constraint{
		completenessConstraint(t, "id"),
		completenessConstraint(t, "name"),
		completenessConstraint(t, "value"),
	}

	opt := NewQueryOptimizer()
	results, err := opt.Run(ctx, exec, "data", constraints)
	require.NoError(t, err)
	require.Len(t, results, 3)

	expected := map[string]float64{
		"id-completeness":    1.0,
		"name-completeness":  1.0,
		"value-completeness": 0.8,
	}
	for name, want := range expected {
		res, ok := results[name]
		require.True(t, ok, "missing result for %s", name)
		require.Equal(t, core.StatusSuccess, res.Status)
		require.NotNil(t, res.Metric)
		require.InDelta(t, want, *res.Metric, 1e-6)
	}
}

func TestOptimizerEquivalenceWithAndWithoutFusion(t *testing.T) {
	constraints := []*core.Constraint{
		completenessConstraint(t, "id"),
		completenessConstraint(t, "name"),
		completenessConstraint(t, "value"),
	}

	execFused := memexec.New()
	require.NoError(t, execFused.RegisterTable("data", fiveRowTable()))
	ctxFused := core.WithTableName(context.Background(), "data")
	fusedResults, err := NewQueryOptimizer().Run(ctxFused, execFused, "data", constraints)
	require.NoError(t, err)

	execNaive := memexec.New()
	require.NoError(t, execNaive.RegisterTable("data", fiveRowTable()))
	ctxNaive := core.WithTableName(context.Background(), "data")
	naiveResults := map[string]*core.ConstraintResult{}
	for _, c := range constraints {
		res, err := c.Evaluate(ctxNaive, execNaive)
		require.NoError(t, err)
		naiveResults[c.Name()] = res
	}

	for name, naive := range naiveResults {
		fused, ok := fusedResults[name]
		require.True(t, ok)
		require.Equal(t, naive.Status, fused.Status)
		require.InDelta(t, *naive.Metric, *fused.Metric, 1e-6)
	}
}

func TestExplainPlanListsGroupsAndSQL(t *testing.T) {
	constraints := []*core.Constraint{
		completenessConstraint(t, "id"),
		completenessConstraint(t, "name"),
	}
	plan := NewQueryOptimizer().Explain("data", constraints)
	require.Contains(t, plan, "Group 1")
	require.Contains(t, plan, "table=data")
	require.Contains(t, plan, "SELECT")
}

func TestStatsCacheSkipsRedundantTotalCount(t *testing.T) {
	cache := NewStatsCache()
	_, ok := cache.TotalCount("data")
	require.False(t, ok)

	cache.SetTotalCount("data", 5)
	n, ok := cache.TotalCount("data")
	require.True(t, ok)
	require.Equal(t, int64(5), n)

	g := newGroup("data")
	g.add(Analyze((func() *core.Constraint {
		c, _ := core.NewConstraint("id-completeness", analyzers.NewCompleteness("id")).WithThreshold(0).Build()
		return c
	})(), "data"))
	fq := Fuse(g, cache)
	for _, p := range fq.Query.Projections {
		require.NotEqual(t, "total_count", p.Alias)
	}
}
