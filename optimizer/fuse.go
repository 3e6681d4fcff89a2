package optimizer

import (
	"context"
	"fmt"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// bindingAliases records which output aliases one (constraint, binding)
// pair's aggregations were projected under, so Execute can slice the
// fused row back apart: the result mapping.
type bindingAliases struct {
	constraintIdx int
	bindingIdx    int
	aliases       []string
}

// FusedQuery is one ConstraintGroup's compiled shared aggregate query.
type FusedQuery struct {
	Group        *ConstraintGroup
	Query        executor.AggregateQuery
	mapping      []bindingAliases
	cache        *StatsCache
	cachedTotal  *int64
}

// Fuse compiles g into one SELECT projecting total_count plus one
// aliased expression per (binding, aggregation) pair. Aliases are
// namespaced by constraint and binding index so two constraints reading
// the same column under different aggregations never collide into the
// same output column name. When cache
// already has g.Table's total_count, the shared total_count projection is
// left out; the cached value itself is not read back, and members whose
// Aggregations() include COUNT(*) still project their own.
func Fuse(g *ConstraintGroup, cache *StatsCache) FusedQuery {
	fq := FusedQuery{Group: g, cache: cache}
	q := executor.AggregateQuery{Table: g.Table}

	if cache != nil {
		if n, ok := cache.TotalCount(g.Table); ok {
			cached := n
			fq.cachedTotal = &cached
		}
	}
	if fq.cachedTotal == nil {
		q.Projections = append(q.Projections, executor.Projection{Alias: "total_count", Agg: core.AggCount, Column: "*"})
	}

	for ci, a := range g.Analyses {
		if !a.IsCombinable {
			continue
		}
		for bi, b := range a.bindings {
			aliases := make([]string, len(b.aggregations))
			for ai, agg := range b.aggregations {
				alias := fmt.Sprintf("c%d_b%d_a%d", ci, bi, ai)
				aliases[ai] = alias
				q.Projections = append(q.Projections, executor.Projection{Alias: alias, Agg: agg.Type, Column: agg.Column})
			}
			fq.mapping = append(fq.mapping, bindingAliases{constraintIdx: ci, bindingIdx: bi, aliases: aliases})
		}
	}

	fq.Query = q
	return fq
}

// Execute runs the fused query once (skipped entirely if the group has
// no combinable member) and projects the single result row back into
// each constraint's ConstraintResult. Non-combinable members of the
// group (there is ever only one, alone in its own group) fall back to
// Constraint.Evaluate directly.
func (fq FusedQuery) Execute(ctx context.Context, exec core.Executor) (map[string]*core.ConstraintResult, error) {
	out := map[string]*core.ConstraintResult{}
	anyCombinable := false
	for _, a := range fq.Group.Analyses {
		if a.IsCombinable {
			anyCombinable = true
			continue
		}
		res, err := a.Constraint.Evaluate(ctx, exec)
		if err != nil {
			return nil, err
		}
		out[a.Name] = res
	}
	if !anyCombinable {
		return out, nil
	}

	row, err := runOne(ctx, exec, fq.Query)
	if err != nil {
		return nil, err
	}

	if fq.cachedTotal == nil && fq.cache != nil {
		if total, ok := row.Float64("total_count"); ok {
			fq.cache.SetTotalCount(fq.Group.Table, int64(total))
		}
	}

	states := make([][]core.State, len(fq.Group.Analyses))
	for ci, a := range fq.Group.Analyses {
		if a.IsCombinable {
			states[ci] = make([]core.State, len(a.bindings))
		}
	}
	for _, m := range fq.mapping {
		b := fq.Group.Analyses[m.constraintIdx].bindings[m.bindingIdx]
		state, err := b.analyzer.StateFromRow(row, m.aliases)
		if err != nil {
			return nil, err
		}
		states[m.constraintIdx][m.bindingIdx] = state
	}

	for ci, a := range fq.Group.Analyses {
		if !a.IsCombinable {
			continue
		}
		res, err := a.Constraint.EvaluateFromStates(states[ci])
		if err != nil {
			return nil, err
		}
		out[a.Name] = res
	}
	return out, nil
}
