package analyzers

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// DefaultMaxGroups bounds how many distinct group keys GroupedCompleteness
// keeps before truncating.
const DefaultMaxGroups = 10000

const groupKeySeparator = "\x1f"

// GroupedCompletenessState is a completeness CompletenessState per distinct
// combination of GroupColumns' values, plus an ungrouped total:
// completeness generalized to segment-level reporting. Groups is keyed by
// the group values joined with an ASCII unit separator, never a value a
// real column could contain.
type GroupedCompletenessState struct {
	Groups      map[string]CompletenessState `json:"groups"`
	Overall     CompletenessState            `json:"overall"`
	TotalGroups int                          `json:"total_groups"`
	Truncated   bool                         `json:"truncated"`
}

func (s GroupedCompletenessState) IsEmpty() bool { return s.Overall.Total == 0 }

func (s GroupedCompletenessState) Marshal() ([]byte, error) { return json.Marshal(s) }

// GroupedCompleteness reports TargetColumn's non-null ratio separately for
// every distinct combination of GroupColumns, alongside the ungrouped
// ratio over the whole table. Not combinable: the optimizer's fusion pass
// only understands flat column aggregations, and this needs row-level
// multi-column grouping.
type GroupedCompleteness struct {
	GroupColumns []string
	TargetColumn string
	MaxGroups    int
}

// NewGroupedCompleteness groups TargetColumn's completeness by every
// distinct value combination of groupCols, keeping at most
// DefaultMaxGroups groups.
func NewGroupedCompleteness(groupCols []string, targetCol string) GroupedCompleteness {
	return GroupedCompleteness{GroupColumns: groupCols, TargetColumn: targetCol, MaxGroups: DefaultMaxGroups}
}

func (g GroupedCompleteness) Name() string { return "GroupedCompleteness" }

func (g GroupedCompleteness) Columns() []string {
	cols := make([]string, 0, len(g.GroupColumns)+1)
	cols = append(cols, g.GroupColumns...)
	cols = append(cols, g.TargetColumn)
	return cols
}

func (g GroupedCompleteness) MetricKey() string {
	return "completeness." + g.TargetColumn + ".grouped_by." + strings.Join(g.GroupColumns, ",")
}

func (g GroupedCompleteness) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	fetcher, ok := exec.(executor.RowFetcher)
	if !ok {
		return nil, errs.ErrInternal.New("executor does not support row-level access required by GroupedCompleteness")
	}
	rows, err := fetcher.FetchRows(ctx, table, g.Columns(), nil)
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}

	groups := map[string]CompletenessState{}
	var order []string
	var overall CompletenessState

	for _, r := range rows {
		nonNull := 0
		if v, ok := r[g.TargetColumn]; ok && !v.IsNone() {
			nonNull = 1
		}
		overall.Total++
		overall.NonNull += int64(nonNull)

		key := g.groupKey(r)
		st, seen := groups[key]
		if !seen {
			order = append(order, key)
		}
		st.Total++
		st.NonNull += int64(nonNull)
		groups[key] = st
	}

	truncated := false
	if g.maxGroups() > 0 && len(order) > g.maxGroups() {
		sort.Strings(order)
		for _, key := range order[g.maxGroups():] {
			delete(groups, key)
		}
		truncated = true
	}

	return GroupedCompletenessState{
		Groups:      groups,
		Overall:     overall,
		TotalGroups: len(order),
		Truncated:   truncated,
	}, nil
}

func (g GroupedCompleteness) groupKey(r core.Row) string {
	parts := make([]string, len(g.GroupColumns))
	for i, col := range g.GroupColumns {
		v, ok := r[col]
		if !ok || v.IsNone() {
			parts[i] = "NULL"
			continue
		}
		s, ok := valueToHashKey(v)
		if !ok {
			s = "NULL"
		}
		parts[i] = s
	}
	return strings.Join(parts, groupKeySeparator)
}

func (g GroupedCompleteness) maxGroups() int {
	if g.MaxGroups > 0 {
		return g.MaxGroups
	}
	return DefaultMaxGroups
}

// ComputeMetric's Primary is the ungrouped ratio over the whole table;
// Values carries one "group:<keys joined by '/'>" entry per surviving
// group, plus group_count and truncated so callers can tell a short
// Values map from a genuinely low-cardinality one.
func (g GroupedCompleteness) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(GroupedCompletenessState)
	if s.Overall.Total == 0 {
		return core.SkippedMetric("table is empty"), nil
	}

	values := map[string]float64{
		"group_count": float64(s.TotalGroups),
	}
	if s.Truncated {
		values["truncated"] = 1
	}
	for key, gs := range s.Groups {
		if gs.Total == 0 {
			continue
		}
		label := "group:" + strings.ReplaceAll(key, groupKeySeparator, "/")
		values[label] = float64(gs.NonNull) / float64(gs.Total)
	}

	return core.Metric{
		Primary:    float64(s.Overall.NonNull) / float64(s.Overall.Total),
		HasPrimary: true,
		Values:     values,
	}, nil
}

func (g GroupedCompleteness) MergeStates(states []core.State) (core.State, error) {
	out := GroupedCompletenessState{Groups: map[string]CompletenessState{}}
	maxTotalGroups := 0
	truncated := false

	for _, st := range states {
		s := st.(GroupedCompletenessState)
		out.Overall.Total += s.Overall.Total
		out.Overall.NonNull += s.Overall.NonNull
		if s.TotalGroups > maxTotalGroups {
			maxTotalGroups = s.TotalGroups
		}
		if s.Truncated {
			truncated = true
		}
		for key, gs := range s.Groups {
			cur := out.Groups[key]
			cur.Total += gs.Total
			cur.NonNull += gs.NonNull
			out.Groups[key] = cur
		}
	}

	out.TotalGroups = len(out.Groups)
	if maxTotalGroups > out.TotalGroups {
		out.TotalGroups = maxTotalGroups
	}
	out.Truncated = truncated
	return out, nil
}

func (g GroupedCompleteness) UnmarshalState(data []byte) (core.State, error) {
	var s GroupedCompletenessState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Groups == nil {
		s.Groups = map[string]CompletenessState{}
	}
	return s, nil
}

var _ core.Analyzer = GroupedCompleteness{}
