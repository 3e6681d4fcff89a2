package analyzers

import (
	"context"

	"github.com/dqguard/dqguard/core"
)

// DefaultMaxUniqueValues is the cardinality cap Entropy and
// UniqueValueRatio apply to their per-value frequency map.
const DefaultMaxUniqueValues = 10000

// UniqueValueRatio reports the fraction of distinct values in col that
// occur exactly once: (#values with count==1) / (#distinct values).
// Not combinable: its state is a full per-value frequency
// map, not a flat column aggregate.
type UniqueValueRatio struct {
	Column         string
	MaxUniqueValues int
}

func NewUniqueValueRatio(column string) UniqueValueRatio {
	return UniqueValueRatio{Column: column, MaxUniqueValues: DefaultMaxUniqueValues}
}

func (a UniqueValueRatio) Name() string      { return "UniqueValueRatio" }
func (a UniqueValueRatio) Columns() []string { return []string{a.Column} }
func (a UniqueValueRatio) MetricKey() string { return "unique_value_ratio." + a.Column }

func (a UniqueValueRatio) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return computeValueCounts(ctx, exec, table, a.Column, a.MaxUniqueValues)
}

func (a UniqueValueRatio) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(ValueCountState)
	if len(s.Counts) == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}
	unique, distinct := 0, 0
	for _, n := range s.Counts {
		distinct++
		if n == 1 {
			unique++
		}
	}
	return core.ScalarMetric(float64(unique) / float64(distinct)), nil
}

// MergeStates adds counts per value across partitions. Truncated maps
// from different partitions may disagree on which values survived the
// cap; merging is still sound because only survivors are ever compared,
// and Truncated propagates so callers know the ratio is an approximation.
func (a UniqueValueRatio) MergeStates(states []core.State) (core.State, error) {
	out := ValueCountState{Counts: map[string]int64{}}
	cap := a.MaxUniqueValues
	for _, st := range states {
		s := st.(ValueCountState)
		out.Total += s.Total
		out.Truncated = out.Truncated || s.Truncated
		if s.Cap > 0 {
			cap = s.Cap
		}
		for k, n := range s.Counts {
			out.Counts[k] += n
		}
	}
	out.Cap = cap
	if cap > 0 && len(out.Counts) > cap {
		out.Counts = topKCounts(out.Counts, cap)
		out.Truncated = true
	}
	return out, nil
}

func (a UniqueValueRatio) UnmarshalState(data []byte) (core.State, error) {
	return unmarshalValueCountState(data)
}

var _ core.Analyzer = UniqueValueRatio{}
