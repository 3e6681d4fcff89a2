package analyzers

import (
	"context"
	"encoding/json"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// DistinctnessState is (total, distinct); merge sums the total but the
// distinct count cannot be merged exactly across partitions (two
// partitions' distinct sets may overlap); Distinctness is therefore only
// ever computed from a single ComputeState call in the one-shot runner.
// Incremental callers should prefer ApproxCountDistinct, whose mergeable
// HyperLogLog register state is built for exactly this.
type DistinctnessState struct {
	Total    int64 `json:"total"`
	Distinct int64 `json:"distinct"`
}

func (s DistinctnessState) IsEmpty() bool { return s.Total == 0 }

func (s DistinctnessState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Distinctness reports distinct(col)/count(col) for one column; null
// values count toward neither side. The
// executor's COUNT DISTINCT is exact in
// the in-memory reference implementation and approximate (HLL-backed) on
// a real columnar engine; the contract only promises a ratio, not a
// precision bound, so both satisfy it.
type Distinctness struct {
	Column string
}

func NewDistinctness(column string) Distinctness { return Distinctness{Column: column} }

func (d Distinctness) Name() string      { return "Distinctness" }
func (d Distinctness) Columns() []string { return []string{d.Column} }
func (d Distinctness) MetricKey() string { return "distinctness." + d.Column }

func (d Distinctness) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "total", Agg: core.AggCount, Column: d.Column},
			{Alias: "distinct", Agg: core.AggCountDistinct, Column: d.Column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	total, _ := row.Float64("total")
	distinct, _ := row.Float64("distinct")
	return DistinctnessState{Total: int64(total), Distinct: int64(distinct)}, nil
}

func (d Distinctness) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(DistinctnessState)
	if s.Total == 0 {
		return core.SkippedMetric("column " + d.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(float64(s.Distinct) / float64(s.Total)), nil
}

// MergeStates sums Total (exact) but cannot sum Distinct without
// double-counting values shared across partitions; it conservatively
// takes the max seen, documented as an approximation rather than silently
// wrong precision.
func (d Distinctness) MergeStates(states []core.State) (core.State, error) {
	var out DistinctnessState
	for _, st := range states {
		s := st.(DistinctnessState)
		out.Total += s.Total
		if s.Distinct > out.Distinct {
			out.Distinct = s.Distinct
		}
	}
	return out, nil
}

func (d Distinctness) UnmarshalState(data []byte) (core.State, error) {
	var s DistinctnessState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (d Distinctness) Aggregations() []core.Aggregation {
	return []core.Aggregation{
		{Type: core.AggCount, Column: d.Column},
		{Type: core.AggCountDistinct, Column: d.Column},
	}
}

func (d Distinctness) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	total, _ := row.Float64(aliases[0])
	distinct, _ := row.Float64(aliases[1])
	return DistinctnessState{Total: int64(total), Distinct: int64(distinct)}, nil
}

var (
	_ core.Analyzer       = Distinctness{}
	_ core.ColumnAnalyzer = Distinctness{}
)
