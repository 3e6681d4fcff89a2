package optimizer

import "github.com/dqguard/dqguard/core"

// DefaultMaxGroupSize caps how many constraints one fused query serves
// before the optimizer closes the group and starts a new one.
const DefaultMaxGroupSize = 20

// ConstraintGroup is one optimizer output: a set of fusion-compatible
// constraint analyses sharing one fused aggregate query, or, for a
// non-combinable constraint, a single-member group the runner falls
// back to evaluating directly.
type ConstraintGroup struct {
	Table    string
	Analyses []ConstraintAnalysis

	usedColumns map[string]bool
	usedAggs    map[core.AggregationType]bool
}

func newGroup(table string) *ConstraintGroup {
	return &ConstraintGroup{Table: table, usedColumns: map[string]bool{}, usedAggs: map[core.AggregationType]bool{}}
}

// fits reports whether a can join g under the greedy compatibility
// rule: a group-size ceiling, aggregation
// compatibility (Count is universal; any other incoming aggregation must
// already be in use or the group must not have settled on one yet), and
// a column-overlap heuristic that caps overlap with already-used columns
// at half of a's own column count.
func (g *ConstraintGroup) fits(a ConstraintAnalysis, maxGroupSize int) bool {
	if len(g.Analyses) == 0 {
		return true
	}
	if len(g.Analyses) >= maxGroupSize {
		return false
	}
	for _, t := range a.Aggregations {
		if t == core.AggCount {
			continue
		}
		if len(g.usedAggs) > 0 && !g.usedAggs[t] {
			return false
		}
	}
	overlap := 0
	for _, c := range a.Columns {
		if g.usedColumns[c] {
			overlap++
		}
	}
	if len(a.Columns) > 0 && overlap*2 > len(a.Columns) {
		return false
	}
	return true
}

func (g *ConstraintGroup) add(a ConstraintAnalysis) {
	g.Analyses = append(g.Analyses, a)
	for _, c := range a.Columns {
		g.usedColumns[c] = true
	}
	for _, t := range a.Aggregations {
		g.usedAggs[t] = true
	}
}

// GroupByTable partitions analyses by table, then greedily groups each
// table's combinable analyses in input order.
// A non-combinable analysis always lands alone in its own group.
func GroupByTable(analyses []ConstraintAnalysis, maxGroupSize int) []*ConstraintGroup {
	if maxGroupSize <= 0 {
		maxGroupSize = DefaultMaxGroupSize
	}

	var tableOrder []string
	byTable := map[string][]ConstraintAnalysis{}
	for _, a := range analyses {
		if _, ok := byTable[a.Table]; !ok {
			tableOrder = append(tableOrder, a.Table)
		}
		byTable[a.Table] = append(byTable[a.Table], a)
	}

	var groups []*ConstraintGroup
	for _, table := range tableOrder {
		var current *ConstraintGroup
		for _, a := range byTable[table] {
			if !a.IsCombinable {
				solo := newGroup(table)
				solo.add(a)
				groups = append(groups, solo)
				continue
			}
			if current == nil || !current.fits(a, maxGroupSize) {
				if current != nil {
					groups = append(groups, current)
				}
				current = newGroup(table)
			}
			current.add(a)
		}
		if current != nil {
			groups = append(groups, current)
		}
	}
	return groups
}
