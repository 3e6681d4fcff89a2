package analyzers

import (
	"context"
	"encoding/json"
	"math"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// VarianceState is (count, sum, sum_squared); merge sums all three and
// variance = sum_squared/count − (sum/count)².
type VarianceState struct {
	Count      int64   `json:"count"`
	Sum        float64 `json:"sum"`
	SumSquared float64 `json:"sum_squared"`
}

func (s VarianceState) IsEmpty() bool { return s.Count == 0 }

func (s VarianceState) Marshal() ([]byte, error) { return json.Marshal(s) }

func (s VarianceState) variance() float64 {
	mean := s.Sum / float64(s.Count)
	v := s.SumSquared/float64(s.Count) - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

func varianceState(ctx context.Context, exec core.Executor, table, column string) (VarianceState, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "count", Agg: core.AggCount, Column: column},
			{Alias: "sum", Agg: core.AggSum, Column: column},
			{Alias: "sum_squared", Agg: core.AggSumSquare, Column: column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return VarianceState{}, err
	}
	count, _ := row.Float64("count")
	sum, _ := row.Float64("sum")
	sumSquared, _ := row.Float64("sum_squared")
	return VarianceState{Count: int64(count), Sum: sum, SumSquared: sumSquared}, nil
}

func unmarshalVarianceState(data []byte) (core.State, error) {
	var s VarianceState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func mergeVarianceStates(states []core.State) VarianceState {
	var out VarianceState
	for _, st := range states {
		s := st.(VarianceState)
		out.Count += s.Count
		out.Sum += s.Sum
		out.SumSquared += s.SumSquared
	}
	return out
}

// Variance reports Var(col), Skipped when col is empty or all-null.
type Variance struct{ Column string }

func NewVariance(column string) Variance { return Variance{Column: column} }

func (a Variance) Name() string      { return "Variance" }
func (a Variance) Columns() []string { return []string{a.Column} }
func (a Variance) MetricKey() string { return "variance." + a.Column }

func (a Variance) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return varianceState(ctx, exec, table, a.Column)
}

func (a Variance) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(VarianceState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(s.variance()), nil
}

func (a Variance) MergeStates(states []core.State) (core.State, error) {
	return mergeVarianceStates(states), nil
}

func (a Variance) UnmarshalState(data []byte) (core.State, error) { return unmarshalVarianceState(data) }

func (a Variance) Aggregations() []core.Aggregation {
	return []core.Aggregation{
		{Type: core.AggCount, Column: a.Column},
		{Type: core.AggSum, Column: a.Column},
		{Type: core.AggSumSquare, Column: a.Column},
	}
}

func (a Variance) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	count, _ := row.Float64(aliases[0])
	sum, _ := row.Float64(aliases[1])
	sumSquared, _ := row.Float64(aliases[2])
	return VarianceState{Count: int64(count), Sum: sum, SumSquared: sumSquared}, nil
}

// StdDev reports √Var(col); shares VarianceState so the two analyzers
// never disagree when fused into the same group.
type StdDev struct{ Column string }

func NewStdDev(column string) StdDev { return StdDev{Column: column} }

func (a StdDev) Name() string      { return "StdDev" }
func (a StdDev) Columns() []string { return []string{a.Column} }
func (a StdDev) MetricKey() string { return "stddev." + a.Column }

func (a StdDev) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return varianceState(ctx, exec, table, a.Column)
}

func (a StdDev) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(VarianceState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(math.Sqrt(s.variance())), nil
}

func (a StdDev) MergeStates(states []core.State) (core.State, error) {
	return mergeVarianceStates(states), nil
}

func (a StdDev) UnmarshalState(data []byte) (core.State, error) { return unmarshalVarianceState(data) }

func (a StdDev) Aggregations() []core.Aggregation {
	return []core.Aggregation{
		{Type: core.AggCount, Column: a.Column},
		{Type: core.AggSum, Column: a.Column},
		{Type: core.AggSumSquare, Column: a.Column},
	}
}

func (a StdDev) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	count, _ := row.Float64(aliases[0])
	sum, _ := row.Float64(aliases[1])
	sumSquared, _ := row.Float64(aliases[2])
	return VarianceState{Count: int64(count), Sum: sum, SumSquared: sumSquared}, nil
}

var (
	_ core.Analyzer       = Variance{}
	_ core.ColumnAnalyzer = Variance{}
	_ core.Analyzer       = StdDev{}
	_ core.ColumnAnalyzer = StdDev{}
)
