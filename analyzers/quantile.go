package analyzers

import (
	"context"

	"github.com/dqguard/dqguard/analyzers/kll"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// DefaultSketchK is the KLL compactor capacity used when a caller doesn't
// specify one; error bound ≈ 1.65/√200 ≈ 11.7%.
const DefaultSketchK = 200

// KLLState wraps the mergeable sketch itself: every KLL-backed analyzer
// (Median, Percentile) shares the same state shape and only differs in
// which quantile ComputeMetric reads off it.
type KLLState struct {
	Sketch *kll.Sketch
}

func (s KLLState) IsEmpty() bool { return s.Sketch == nil || s.Sketch.IsEmpty() }

func (s KLLState) Marshal() ([]byte, error) {
	if s.Sketch == nil {
		empty, _ := kll.New(DefaultSketchK)
		return empty.Marshal()
	}
	return s.Sketch.Marshal()
}

func buildSketch(ctx context.Context, exec core.Executor, table, column string, k int) (KLLState, error) {
	fetcher, ok := exec.(executor.RowFetcher)
	if !ok {
		return KLLState{}, errs.ErrInternal.New("executor does not support row-level access required by quantile analyzers")
	}
	rows, err := fetcher.FetchRows(ctx, table, []string{column}, nil)
	if err != nil {
		return KLLState{}, errs.ErrConstraintEvaluation.New(err.Error())
	}
	sketch, err := kll.New(k)
	if err != nil {
		return KLLState{}, err
	}
	for _, r := range rows {
		if v, ok := r.Float64(column); ok {
			sketch.Insert(v)
		}
	}
	return KLLState{Sketch: sketch}, nil
}

func mergeSketches(states []core.State, k int) (core.State, error) {
	out, err := kll.New(k)
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		s := st.(KLLState)
		if s.Sketch == nil {
			continue
		}
		if err := out.Merge(s.Sketch); err != nil {
			return nil, errs.ErrAnalyzerState.New(err.Error())
		}
	}
	return KLLState{Sketch: out}, nil
}

// Percentile reports the value at quantile Phi (in [0,1]) of Column's
// distribution, backed by a KLL sketch. Not combinable:
// building the sketch needs row-level access, not a flat aggregate.
type Percentile struct {
	Column string
	Phi    float64
	K      int
}

func NewPercentile(column string, phi float64) Percentile {
	return Percentile{Column: column, Phi: phi, K: DefaultSketchK}
}

// NewMedian is Percentile at Phi=0.5.
func NewMedian(column string) Percentile { return NewPercentile(column, 0.5) }

func (p Percentile) Name() string {
	if p.Phi == 0.5 {
		return "Median"
	}
	return "Percentile"
}

func (p Percentile) Columns() []string { return []string{p.Column} }
func (p Percentile) MetricKey() string {
	return "percentile." + p.Column + "." + formatFloat(p.Phi)
}

func (p Percentile) k() int {
	if p.K > 0 {
		return p.K
	}
	return DefaultSketchK
}

func (p Percentile) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return buildSketch(ctx, exec, table, p.Column, p.k())
}

func (p Percentile) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(KLLState)
	if s.IsEmpty() {
		return core.SkippedMetric("column " + p.Column + " is empty or all-null"), nil
	}
	v, err := s.Sketch.Quantile(p.Phi)
	if err != nil {
		return core.Metric{}, errs.ErrConstraintEvaluation.New(err.Error())
	}
	return core.ScalarMetric(v), nil
}

func (p Percentile) MergeStates(states []core.State) (core.State, error) {
	return mergeSketches(states, p.k())
}

func (p Percentile) UnmarshalState(data []byte) (core.State, error) {
	sketch, err := kll.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return KLLState{Sketch: sketch}, nil
}

var _ core.Analyzer = Percentile{}
