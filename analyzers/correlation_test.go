package analyzers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

func linearTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"x": core.ColumnFloat64,
		"y": core.ColumnFloat64,
	}
	tbl := memexec.NewTable("data", schema, []string{"x", "y"})
	for i := 1; i <= 10; i++ {
		x := float64(i)
		tbl.AppendRow(map[string]interface{}{"x": x, "y": x * 2})
	}
	return tbl
}

func TestCorrelationPearsonPerfectlyLinear(t *testing.T) {
	ctx, exec := withTable(linearTable())
	c := NewCorrelation("x", "y", CorrelationPearson)
	state, err := c.ComputeState(ctx, exec, "data")
	require.NoError(t, err)
	metric, err := c.ComputeMetric(state)
	require.NoError(t, err)
	require.InDelta(t, 1.0, metric.Primary, 1e-6)
}

func TestCorrelationSpearmanMonotonic(t *testing.T) {
	ctx, exec := withTable(linearTable())
	c := NewCorrelation("x", "y", CorrelationSpearman)
	state, err := c.ComputeState(ctx, exec, "data")
	require.NoError(t, err)
	metric, err := c.ComputeMetric(state)
	require.NoError(t, err)
	require.InDelta(t, 1.0, metric.Primary, 1e-6)
}

func TestCorrelationCovariance(t *testing.T) {
	ctx, exec := withTable(linearTable())
	c := NewCorrelation("x", "y", CorrelationCovariance)
	state, err := c.ComputeState(ctx, exec, "data")
	require.NoError(t, err)
	metric, err := c.ComputeMetric(state)
	require.NoError(t, err)
	require.Greater(t, metric.Primary, 0.0)
}

func TestCorrelationSkipsWhenNoOverlap(t *testing.T) {
	schema := map[string]core.ColumnKind{
		"x": core.ColumnFloat64,
		"y": core.ColumnFloat64,
	}
	tbl := memexec.NewTable("data", schema, []string{"x", "y"})
	tbl.AppendRow(map[string]interface{}{"x": 1.0, "y": nil})
	tbl.AppendRow(map[string]interface{}{"x": nil, "y": 2.0})
	ctx, exec := withTable(tbl)

	c := NewCorrelation("x", "y", CorrelationPearson)
	state, err := c.ComputeState(ctx, exec, "data")
	require.NoError(t, err)
	metric, err := c.ComputeMetric(state)
	require.NoError(t, err)
	require.True(t, metric.Skip)
}

func TestRankValuesBreaksTiesWithAverage(t *testing.T) {
	ranks := rankValues([]float64{10, 20, 20, 30})
	require.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks)
}
