package analyzers

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// ValueCountState backs both UniqueValueRatio and Entropy: a per-value
// frequency map plus the true total. Cap bounds the map at the analyzer's configured cardinality
// ceiling; Truncated is set once the true distinct count exceeds it.
type ValueCountState struct {
	Counts    map[string]int64 `json:"counts"`
	Total     int64            `json:"total"`
	Truncated bool             `json:"truncated"`
	Cap       int              `json:"cap"`
}

func (s ValueCountState) IsEmpty() bool { return s.Total == 0 }

func (s ValueCountState) Marshal() ([]byte, error) { return json.Marshal(s) }

func unmarshalValueCountState(data []byte) (core.State, error) {
	var s ValueCountState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// computeValueCounts groups col by value, counting occurrences, then caps
// the map at cap entries (keeping the most frequent) and re-derives the
// exact Total from the ungrouped row count so ratios stay correct even
// when the map itself was truncated.
func computeValueCounts(ctx context.Context, exec core.Executor, table, col string, cap int) (ValueCountState, error) {
	totalQ := executor.AggregateQuery{
		Table:       table,
		Projections: []executor.Projection{{Alias: "total", Agg: core.AggCount, Column: col}},
	}
	totalRow, err := runOne(ctx, exec, totalQ)
	if err != nil {
		return ValueCountState{}, err
	}
	total, _ := totalRow.Float64("total")

	groupQ := executor.AggregateQuery{
		Table:       table,
		GroupBy:     &executor.GroupSpec{Column: col},
		Projections: []executor.Projection{{Alias: "cnt", Agg: core.AggCount, Column: "*"}},
	}
	rows, err := runMany(ctx, exec, groupQ)
	if err != nil {
		return ValueCountState{}, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		key, ok := r["group_key"]
		if !ok {
			continue
		}
		s, ok := key.AsString()
		if !ok {
			s = formatGroupKey(key)
		}
		n, _ := r.Float64("cnt")
		counts[s] += int64(n)
	}

	truncated := false
	if cap > 0 && len(counts) > cap {
		counts = topKCounts(counts, cap)
		truncated = true
	}

	return ValueCountState{Counts: counts, Total: int64(total), Truncated: truncated, Cap: cap}, nil
}

func formatGroupKey(v core.MetricValue) string {
	if f, ok := v.AsFloat64(); ok {
		return formatFloat(f)
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}

type countEntry struct {
	key string
	n   int64
}

// topKCounts keeps the cap most frequent entries, breaking ties by key so
// the result is deterministic.
func topKCounts(counts map[string]int64, cap int) map[string]int64 {
	all := make([]countEntry, 0, len(counts))
	for k, n := range counts {
		all = append(all, countEntry{k, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].key < all[j].key
	})
	if len(all) > cap {
		all = all[:cap]
	}
	out := make(map[string]int64, len(all))
	for _, e := range all {
		out[e.key] = e.n
	}
	return out
}
