package analyzers

import (
	"context"
	"encoding/json"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// SumState is (sum, count); Mean divides at ComputeMetric time so the
// same state backs both analyzers without recomputation; merge sums
// both fields.
type SumState struct {
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
}

func (s SumState) IsEmpty() bool { return s.Count == 0 }

func (s SumState) Marshal() ([]byte, error) { return json.Marshal(s) }

func sumState(ctx context.Context, exec core.Executor, table, column string) (SumState, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "sum", Agg: core.AggSum, Column: column},
			{Alias: "count", Agg: core.AggCount, Column: column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return SumState{}, err
	}
	sum, _ := row.Float64("sum")
	count, _ := row.Float64("count")
	return SumState{Sum: sum, Count: int64(count)}, nil
}

func unmarshalSumState(data []byte) (core.State, error) {
	var s SumState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalScalarState(data []byte) (core.State, error) {
	var s ScalarState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func mergeSumStates(states []core.State) SumState {
	var out SumState
	for _, st := range states {
		s := st.(SumState)
		out.Sum += s.Sum
		out.Count += s.Count
	}
	return out
}

// Sum reports Σcol. Empty/all-null is Skipped, same as
// Min/Max/Mean/StdDev.
type Sum struct{ Column string }

func NewSum(column string) Sum { return Sum{Column: column} }

func (a Sum) Name() string      { return "Sum" }
func (a Sum) Columns() []string { return []string{a.Column} }
func (a Sum) MetricKey() string { return "sum." + a.Column }

func (a Sum) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return sumState(ctx, exec, table, a.Column)
}

func (a Sum) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(SumState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(s.Sum), nil
}

func (a Sum) MergeStates(states []core.State) (core.State, error) { return mergeSumStates(states), nil }

func (a Sum) UnmarshalState(data []byte) (core.State, error) { return unmarshalSumState(data) }

func (a Sum) Aggregations() []core.Aggregation {
	return []core.Aggregation{{Type: core.AggSum, Column: a.Column}, {Type: core.AggCount, Column: a.Column}}
}

func (a Sum) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	sum, _ := row.Float64(aliases[0])
	count, _ := row.Float64(aliases[1])
	return SumState{Sum: sum, Count: int64(count)}, nil
}

// Mean reports Σcol/count(col), sharing SumState with Sum.
type Mean struct{ Column string }

func NewMean(column string) Mean { return Mean{Column: column} }

func (a Mean) Name() string      { return "Mean" }
func (a Mean) Columns() []string { return []string{a.Column} }
func (a Mean) MetricKey() string { return "mean." + a.Column }

func (a Mean) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return sumState(ctx, exec, table, a.Column)
}

func (a Mean) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(SumState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(s.Sum / float64(s.Count)), nil
}

func (a Mean) MergeStates(states []core.State) (core.State, error) { return mergeSumStates(states), nil }

func (a Mean) UnmarshalState(data []byte) (core.State, error) { return unmarshalSumState(data) }

func (a Mean) Aggregations() []core.Aggregation {
	return []core.Aggregation{{Type: core.AggSum, Column: a.Column}, {Type: core.AggCount, Column: a.Column}}
}

func (a Mean) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	sum, _ := row.Float64(aliases[0])
	count, _ := row.Float64(aliases[1])
	return SumState{Sum: sum, Count: int64(count)}, nil
}

// ScalarState holds a single merged scalar: Min keeps the smallest,
// Max the largest, across ComputeState and every subsequent merge.
type ScalarState struct {
	Value float64 `json:"value"`
	Count int64   `json:"count"` // 0 means identity (no value observed yet)
}

func (s ScalarState) IsEmpty() bool { return s.Count == 0 }

func (s ScalarState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Min reports the minimum of col, Skipped when col has no non-null value.
type Min struct{ Column string }

func NewMin(column string) Min { return Min{Column: column} }

func (a Min) Name() string      { return "Min" }
func (a Min) Columns() []string { return []string{a.Column} }
func (a Min) MetricKey() string { return "min." + a.Column }

func (a Min) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "value", Agg: core.AggMin, Column: a.Column},
			{Alias: "count", Agg: core.AggCount, Column: a.Column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	count, _ := row.Float64("count")
	value, _ := row.Float64("value")
	return ScalarState{Value: value, Count: int64(count)}, nil
}

func (a Min) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(ScalarState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(s.Value), nil
}

func (a Min) MergeStates(states []core.State) (core.State, error) {
	var out ScalarState
	for _, st := range states {
		s := st.(ScalarState)
		if s.Count == 0 {
			continue
		}
		if out.Count == 0 || s.Value < out.Value {
			out.Value = s.Value
		}
		out.Count += s.Count
	}
	return out, nil
}

func (a Min) UnmarshalState(data []byte) (core.State, error) { return unmarshalScalarState(data) }

func (a Min) Aggregations() []core.Aggregation {
	return []core.Aggregation{{Type: core.AggMin, Column: a.Column}, {Type: core.AggCount, Column: a.Column}}
}

func (a Min) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	value, _ := row.Float64(aliases[0])
	count, _ := row.Float64(aliases[1])
	return ScalarState{Value: value, Count: int64(count)}, nil
}

// Max reports the maximum of col, Skipped when col has no non-null value.
type Max struct{ Column string }

func NewMax(column string) Max { return Max{Column: column} }

func (a Max) Name() string      { return "Max" }
func (a Max) Columns() []string { return []string{a.Column} }
func (a Max) MetricKey() string { return "max." + a.Column }

func (a Max) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "value", Agg: core.AggMax, Column: a.Column},
			{Alias: "count", Agg: core.AggCount, Column: a.Column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	count, _ := row.Float64("count")
	value, _ := row.Float64("value")
	return ScalarState{Value: value, Count: int64(count)}, nil
}

func (a Max) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(ScalarState)
	if s.Count == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	return core.ScalarMetric(s.Value), nil
}

func (a Max) MergeStates(states []core.State) (core.State, error) {
	var out ScalarState
	for _, st := range states {
		s := st.(ScalarState)
		if s.Count == 0 {
			continue
		}
		if out.Count == 0 || s.Value > out.Value {
			out.Value = s.Value
		}
		out.Count += s.Count
	}
	return out, nil
}

func (a Max) UnmarshalState(data []byte) (core.State, error) { return unmarshalScalarState(data) }

func (a Max) Aggregations() []core.Aggregation {
	return []core.Aggregation{{Type: core.AggMax, Column: a.Column}, {Type: core.AggCount, Column: a.Column}}
}

func (a Max) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	value, _ := row.Float64(aliases[0])
	count, _ := row.Float64(aliases[1])
	return ScalarState{Value: value, Count: int64(count)}, nil
}

var (
	_ core.Analyzer       = Sum{}
	_ core.ColumnAnalyzer = Sum{}
	_ core.Analyzer       = Mean{}
	_ core.ColumnAnalyzer = Mean{}
	_ core.Analyzer       = Min{}
	_ core.ColumnAnalyzer = Min{}
	_ core.Analyzer       = Max{}
	_ core.ColumnAnalyzer = Max{}
)
