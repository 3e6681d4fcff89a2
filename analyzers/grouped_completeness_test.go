package analyzers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// salesByRegionTable: US-A, US-B, EU-A, EU-B groups, with EU-A having
// one null sales value.
func salesByRegionTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"region":  core.ColumnUtf8,
		"product": core.ColumnUtf8,
		"sales":   core.ColumnFloat64,
	}
	tbl := memexec.NewTable("data", schema, []string{"region", "product", "sales"})
	rows := []struct {
		region, product string
		sales           interface{}
	}{
		{"US", "A", 100.0},
		{"US", "B", 200.0},
		{"EU", "A", nil},
		{"EU", "B", 150.0},
		{"US", "A", 250.0},
		{"EU", "A", 300.0},
	}
	for _, r := range rows {
		tbl.AppendRow(map[string]interface{}{"region": r.region, "product": r.product, "sales": r.sales})
	}
	return tbl
}

func TestGroupedCompletenessPerGroupRatios(t *testing.T) {
	ctx, exec := withTable(salesByRegionTable())
	g := NewGroupedCompleteness([]string{"region", "product"}, "sales")

	state, err := g.ComputeState(ctx, exec, "data")
	require.NoError(t, err)

	s := state.(GroupedCompletenessState)
	require.Equal(t, 4, s.TotalGroups) // US-A, US-B, EU-A, EU-B
	require.False(t, s.Truncated)

	metric, err := g.ComputeMetric(state)
	require.NoError(t, err)
	require.InDelta(t, 5.0/6.0, metric.Primary, 1e-9) // one null out of six rows overall
	require.Equal(t, 4.0, metric.Values["group_count"])

	euA := s.Groups["EU"+groupKeySeparator+"A"]
	require.Equal(t, int64(2), euA.Total)
	require.Equal(t, int64(1), euA.NonNull)

	usA := s.Groups["US"+groupKeySeparator+"A"]
	require.Equal(t, int64(2), usA.Total)
	require.Equal(t, int64(2), usA.NonNull)
}

func TestGroupedCompletenessMergeSumsPerGroup(t *testing.T) {
	g := NewGroupedCompleteness([]string{"region"}, "sales")

	ctx1, exec1 := withTable(salesByRegionTable())
	ctx2, exec2 := withTable(salesByRegionTable())

	s1, err := g.ComputeState(ctx1, exec1, "data")
	require.NoError(t, err)
	s2, err := g.ComputeState(ctx2, exec2, "data")
	require.NoError(t, err)

	merged, err := g.MergeStates([]core.State{s1, s2})
	require.NoError(t, err)

	ms := merged.(GroupedCompletenessState)
	require.Equal(t, int64(12), ms.Overall.Total)
	require.Equal(t, int64(6), ms.Groups["US"].Total)
	require.Equal(t, int64(6), ms.Groups["EU"].Total)
}

func TestGroupedCompletenessMaxGroupsTruncates(t *testing.T) {
	g := NewGroupedCompleteness([]string{"region", "product"}, "sales")
	g.MaxGroups = 2

	ctx, exec := withTable(salesByRegionTable())
	state, err := g.ComputeState(ctx, exec, "data")
	require.NoError(t, err)

	s := state.(GroupedCompletenessState)
	require.True(t, s.Truncated)
	require.Len(t, s.Groups, 2)
	require.Equal(t, 4, s.TotalGroups)
}

func TestGroupedCompletenessSkipsOnEmptyTable(t *testing.T) {
	schema := map[string]core.ColumnKind{"region": core.ColumnUtf8, "sales": core.ColumnFloat64}
	tbl := memexec.NewTable("data", schema, []string{"region", "sales"})
	ctx, exec := withTable(tbl)

	g := NewGroupedCompleteness([]string{"region"}, "sales")
	state, err := g.ComputeState(ctx, exec, "data")
	require.NoError(t, err)

	metric, err := g.ComputeMetric(state)
	require.NoError(t, err)
	require.True(t, metric.Skip)
}

func TestGroupedCompletenessMarshalRoundTrips(t *testing.T) {
	ctx, exec := withTable(salesByRegionTable())
	g := NewGroupedCompleteness([]string{"region"}, "sales")

	state, err := g.ComputeState(ctx, exec, "data")
	require.NoError(t, err)

	data, err := state.(GroupedCompletenessState).Marshal()
	require.NoError(t, err)

	back, err := g.UnmarshalState(data)
	require.NoError(t, err)
	require.Equal(t, state, back)
}
