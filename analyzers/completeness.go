package analyzers

import (
	"context"
	"encoding/json"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// CompletenessState is (total, non_null); merge sums both fields.
type CompletenessState struct {
	Total   int64 `json:"total"`
	NonNull int64 `json:"non_null"`
}

func (s CompletenessState) IsEmpty() bool { return s.Total == 0 }

func (s CompletenessState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Completeness reports the non-null ratio of one column. An empty table
// reports Skipped rather than a meaningless 0/0.
type Completeness struct {
	Column string
}

func NewCompleteness(column string) Completeness { return Completeness{Column: column} }

func (c Completeness) Name() string      { return "Completeness" }
func (c Completeness) Columns() []string { return []string{c.Column} }
func (c Completeness) MetricKey() string { return "completeness." + c.Column }

func (c Completeness) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	q := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "total", Agg: core.AggCount, Column: "*"},
			{Alias: "non_null", Agg: core.AggCount, Column: c.Column},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	total, _ := row.Float64("total")
	nonNull, _ := row.Float64("non_null")
	return CompletenessState{Total: int64(total), NonNull: int64(nonNull)}, nil
}

func (c Completeness) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(CompletenessState)
	if s.Total == 0 {
		return core.SkippedMetric("table is empty"), nil
	}
	return core.ScalarMetric(float64(s.NonNull) / float64(s.Total)), nil
}

func (c Completeness) MergeStates(states []core.State) (core.State, error) {
	var out CompletenessState
	for _, st := range states {
		s := st.(CompletenessState)
		out.Total += s.Total
		out.NonNull += s.NonNull
	}
	return out, nil
}

func (c Completeness) Aggregations() []core.Aggregation {
	return []core.Aggregation{
		{Type: core.AggCount, Column: "*"},
		{Type: core.AggCount, Column: c.Column},
	}
}

func (c Completeness) UnmarshalState(data []byte) (core.State, error) {
	var s CompletenessState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c Completeness) StateFromRow(row core.Row, aliases []string) (core.State, error) {
	total, _ := row.Float64(aliases[0])
	nonNull, _ := row.Float64(aliases[1])
	return CompletenessState{Total: int64(total), NonNull: int64(nonNull)}, nil
}

var (
	_ core.Analyzer       = Completeness{}
	_ core.ColumnAnalyzer = Completeness{}
)
