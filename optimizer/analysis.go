// Package optimizer analyzes a suite's constraints, groups fusion-
// compatible ones by table, fuses each group into one shared aggregate
// query, and projects the fused result back into per-constraint
// results. It is the one package here with a genuine "optimizer"
// role: everywhere else in this repository, one constraint means one
// query.
package optimizer

import (
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
)

// predicated is implemented by the rare analyzer that carries its own
// row-level predicate (Compliance). Used only to flag HasPredicates;
// satisfied by duck typing, no import of the analyzers package required.
// Analyze checks it only for bindings whose analyzer is also a
// ColumnAnalyzer (Compliance is not), and nothing in this package reads
// HasPredicates or pushes a predicate into a fused query.
type predicated interface {
	RowPredicate() executor.RowPredicate
	PredicateSQL() string
}

// bindingPlan is one (column, ColumnAnalyzer, Aggregations()) triple,
// kept so Fuse can both build the shared query's projections and, after
// execution, reconstruct that binding's State from the result row.
type bindingPlan struct {
	column       string
	analyzer     core.ColumnAnalyzer
	aggregations []core.Aggregation
}

// ConstraintAnalysis is the optimizer's per-constraint fact sheet.
type ConstraintAnalysis struct {
	Constraint    *core.Constraint
	Name          string
	Table         string
	Columns       []string
	Aggregations  []core.AggregationType
	HasPredicates bool
	IsCombinable  bool

	bindings []bindingPlan // populated only when IsCombinable
}

// Analyze inspects one constraint and produces its ConstraintAnalysis. A
// constraint is combinable only when every one of its bindings' analyzer
// implements core.ColumnAnalyzer; a single non-combinable binding
// (Histogram, KLL, Entropy, Correlation, Compliance with a custom
// predicate, ...) marks the whole constraint non-combinable.
func Analyze(c *core.Constraint, table string) ConstraintAnalysis {
	bindings := c.BindingsList()
	analysis := ConstraintAnalysis{
		Constraint:   c,
		Name:         c.Name(),
		Table:        table,
		Columns:      c.Columns(),
		IsCombinable: len(bindings) > 0,
	}

	aggSeen := map[core.AggregationType]bool{}
	for _, b := range bindings {
		ca, ok := b.Analyzer.(core.ColumnAnalyzer)
		if !ok {
			analysis.IsCombinable = false
			continue
		}
		aggs := ca.Aggregations()
		analysis.bindings = append(analysis.bindings, bindingPlan{column: b.Column, analyzer: ca, aggregations: aggs})
		for _, agg := range aggs {
			if !aggSeen[agg.Type] {
				aggSeen[agg.Type] = true
				analysis.Aggregations = append(analysis.Aggregations, agg.Type)
			}
		}

		if p, ok := b.Analyzer.(predicated); ok && p.RowPredicate() != nil {
			analysis.HasPredicates = true
		}
	}
	if !analysis.IsCombinable {
		analysis.bindings = nil
	}
	return analysis
}
