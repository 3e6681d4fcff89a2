package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeState is a minimal mergeable State used only by fakeAnalyzer below.
type fakeState struct{ value float64 }

func (s fakeState) IsEmpty() bool             { return false }
func (s fakeState) Marshal() ([]byte, error)  { return json.Marshal(s.value) }

// fakeAnalyzer returns a constant metric for a given column, or reports
// Skip when skip is set, enough to exercise Constraint's reduce logic
// without depending on a concrete analyzer or executor.
type fakeAnalyzer struct {
	column string
	value  float64
	skip   bool
}

func (a *fakeAnalyzer) Name() string      { return "fake" }
func (a *fakeAnalyzer) Columns() []string { return []string{a.column} }
func (a *fakeAnalyzer) MetricKey() string { return "fake." + a.column }
func (a *fakeAnalyzer) ComputeState(ctx context.Context, exec Executor, table string) (State, error) {
	return fakeState{a.value}, nil
}
func (a *fakeAnalyzer) ComputeMetric(s State) (Metric, error) {
	if a.skip {
		return SkippedMetric("all-null"), nil
	}
	return ScalarMetric(s.(fakeState).value), nil
}
func (a *fakeAnalyzer) MergeStates(states []State) (State, error) {
	var sum float64
	for _, s := range states {
		sum += s.(fakeState).value
	}
	return fakeState{sum}, nil
}
func (a *fakeAnalyzer) UnmarshalState(data []byte) (State, error) {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return fakeState{v}, nil
}

func withTable(ctx context.Context) context.Context {
	return WithTableName(ctx, "data")
}

func TestConstraintSingleColumnSuccess(t *testing.T) {
	c, err := NewConstraint("size_ok", &fakeAnalyzer{value: 10}).
		WithAssertion(GreaterThanOrEqual(5)).
		Build()
	require.NoError(t, err)

	res, err := c.Evaluate(withTable(context.Background()), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)
	require.NotNil(t, res.Metric)
	require.Equal(t, 10.0, *res.Metric)
}

func TestConstraintThresholdRatio(t *testing.T) {
	c, err := NewConstraint("completeness_product_id", &fakeAnalyzer{value: 0.9}).
		WithThreshold(0.9).
		Build()
	require.NoError(t, err)

	res, err := c.Evaluate(withTable(context.Background()), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 0.9, *res.Metric)
}

func TestConstraintSkipSemantics(t *testing.T) {
	c, err := NewConstraint("completeness_empty", &fakeAnalyzer{skip: true}).
		WithThreshold(0.9).
		Build()
	require.NoError(t, err)

	res, err := c.Evaluate(withTable(context.Background()), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, res.Status)
	require.Nil(t, res.Metric)
}

func TestConstraintMultiColumnReduce(t *testing.T) {
	c, err := NewColumnConstraint("completeness_all", []string{"a", "b", "c"}, func(col string) Analyzer {
		v := 1.0
		if col == "c" {
			v = 0.0
		}
		return &fakeAnalyzer{column: col, value: v}
	}).WithThreshold(0.5).WithOperator(AtLeast(2)).Build()
	require.NoError(t, err)

	res, err := c.Evaluate(withTable(context.Background()), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status) // 2 of 3 columns pass, AtLeast(2)
}

func TestConstraintVacuousSuccessOnZeroColumns(t *testing.T) {
	c, err := NewColumnConstraint("no_columns", nil, func(col string) Analyzer { return nil }).
		WithThreshold(0.5).
		Build()
	require.NoError(t, err)

	res, err := c.Evaluate(withTable(context.Background()), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, res.Status)
}

func TestConstraintBuilderRejectsBadThreshold(t *testing.T) {
	_, err := NewConstraint("bad", &fakeAnalyzer{}).WithThreshold(1.5).Build()
	require.Error(t, err)
}

func TestConstraintBuilderRejectsMissingAssertion(t *testing.T) {
	_, err := NewConstraint("bad", &fakeAnalyzer{}).Build()
	require.Error(t, err)
}
