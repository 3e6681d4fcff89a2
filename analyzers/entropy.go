package analyzers

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/dqguard/dqguard/core"
)

// Entropy computes the Shannon entropy (bits) of col's value distribution,
// plus normalized_entropy, gini_impurity, and effective_values.
// Not combinable: needs the full per-value frequency map.
type Entropy struct {
	Column         string
	MaxUniqueValues int
}

func NewEntropy(column string) Entropy {
	return Entropy{Column: column, MaxUniqueValues: DefaultMaxUniqueValues}
}

func (a Entropy) Name() string      { return "Entropy" }
func (a Entropy) Columns() []string { return []string{a.Column} }
func (a Entropy) MetricKey() string { return "entropy." + a.Column }

func (a Entropy) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return computeValueCounts(ctx, exec, table, a.Column, a.MaxUniqueValues)
}

func (a Entropy) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(ValueCountState)
	if s.Total == 0 || len(s.Counts) == 0 {
		return core.SkippedMetric("column " + a.Column + " is empty or all-null"), nil
	}

	var entropy, gini float64
	for _, n := range s.Counts {
		p := float64(n) / float64(s.Total)
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
		gini += p * p
	}
	gini = 1 - gini

	values := map[string]float64{
		"entropy":          entropy,
		"gini_impurity":    gini,
		"effective_values": math.Pow(2, entropy),
	}
	if len(s.Counts) > 1 {
		values["normalized_entropy"] = entropy / math.Log2(float64(len(s.Counts)))
	} else {
		values["normalized_entropy"] = 0
	}

	if len(s.Counts) <= 100 {
		for k, v := range topPairs(s.Counts, s.Total, 10) {
			values[k] = v
		}
	}

	return core.Metric{Primary: entropy, HasPrimary: true, Values: values}, nil
}

func (a Entropy) MergeStates(states []core.State) (core.State, error) {
	uvr := UniqueValueRatio{Column: a.Column, MaxUniqueValues: a.MaxUniqueValues}
	return uvr.MergeStates(states)
}

func (a Entropy) UnmarshalState(data []byte) (core.State, error) { return unmarshalValueCountState(data) }

// topPairs reports the probabilities of the top-N most frequent values as
// "top_probability_<i>" entries, most frequent first (ties broken by
// value). The values themselves are not included in the result.
func topPairs(counts map[string]int64, total int64, n int) map[string]float64 {
	entries := make([]countEntry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, countEntry{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := map[string]float64{}
	for i, e := range entries {
		out["top_probability_"+strconv.Itoa(i)] = float64(e.n) / float64(total)
	}
	return out
}

var _ core.Analyzer = Entropy{}
