package analyzers

import (
	"context"
	"encoding/json"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// CountState is the mergeable state for Size: a plain row count
// (Completeness uses its own CompletenessState, which adds a non-null
// count).
type CountState struct {
	Total int64 `json:"total"`
}

func (s CountState) IsEmpty() bool { return s.Total == 0 }

func (s CountState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Size counts the rows in the ambient table. It never skips: an empty
// table reports Size=0, which the constraint wrapper judges normally
// (Size=0 is still Success if the assertion passes).
type Size struct{}

func NewSize() Size { return Size{} }

func (Size) Name() string        { return "Size" }
func (Size) Columns() []string   { return nil }
func (Size) MetricKey() string   { return "size" }

func (Size) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	q := executor.AggregateQuery{
		Table:       table,
		Projections: []executor.Projection{{Alias: "total", Agg: core.AggCount, Column: "*"}},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	total, _ := row.Float64("total")
	return CountState{Total: int64(total)}, nil
}

func (Size) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(CountState)
	return core.ScalarMetric(float64(s.Total)), nil
}

func (Size) MergeStates(states []core.State) (core.State, error) {
	var total int64
	for _, st := range states {
		total += st.(CountState).Total
	}
	return CountState{Total: total}, nil
}

func (Size) UnmarshalState(data []byte) (core.State, error) {
	var s CountState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (Size) Aggregations() []core.Aggregation {
	return []core.Aggregation{{Type: core.AggCount, Column: "*"}}
}

func (Size) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	total, _ := row.Float64(aliases[0])
	return CountState{Total: int64(total)}, nil
}

var (
	_ core.Analyzer       = Size{}
	_ core.ColumnAnalyzer = Size{}
)
