package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/dolthub/vitess/go/vt/sqlparser"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// compliancePredicateDenylist blocks statement separators, comment
// markers, and stacked-query tokens before a predicate ever reaches the
// executor.
var compliancePredicateDenylist = []*regexp.Regexp{
	regexp.MustCompile(`;`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
	regexp.MustCompile(`\*/`),
	regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`),
	regexp.MustCompile(`(?i)\bDROP\b`),
	regexp.MustCompile(`(?i)\bDELETE\b`),
	regexp.MustCompile(`(?i)\bINSERT\b`),
	regexp.MustCompile(`(?i)\bUPDATE\b`),
}

// validatePredicateText rejects a Compliance expression before it ever
// reaches the executor: first the denylist, then a structural check that
// it parses as a legal SQL WHERE expression (wrapped in a throwaway
// SELECT, since vitess's parser only exposes whole-statement entry
// points). A predicate that merely fails to parse is just as unsafe as
// one carrying a denylisted token; both are rejected the same way.
func validatePredicateText(expr string) error {
	for _, pattern := range compliancePredicateDenylist {
		if pattern.MatchString(expr) {
			return errs.ErrUnsafePredicate.New(fmt.Sprintf("predicate %q contains a disallowed token", expr))
		}
	}
	probe := fmt.Sprintf("SELECT 1 FROM t WHERE %s", expr)
	if _, err := sqlparser.Parse(probe); err != nil {
		return errs.ErrUnsafePredicate.New(fmt.Sprintf("predicate %q is not a valid scalar expression: %s", expr, err))
	}
	return nil
}

// ComplianceState is (total, matching); merge sums both.
type ComplianceState struct {
	Total    int64 `json:"total"`
	Matching int64 `json:"matching"`
}

func (s ComplianceState) IsEmpty() bool { return s.Total == 0 }

func (s ComplianceState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Compliance reports the ratio of rows satisfying an arbitrary boolean
// predicate over the ambient table. The predicate is
// supplied as a Go closure (Eval) plus its source text (Expr, validated at
// construction and sent as the query's PredicateSQL, which is the WHERE
// clause an executor driven by SQL text receives); Columns lists
// the columns Eval reads, for schema pre-checks. Never combinable: a
// custom predicate is not one of the optimizer's fusible column
// aggregations.
type Compliance struct {
	Name_   string
	Expr    string
	Columns_ []string
	Eval    executor.RowPredicate
}

// NewCompliance validates expr against the denylist and parser before
// returning a usable analyzer; a predicate failing validation never
// reaches construction of a runnable Constraint.
func NewCompliance(name, expr string, columns []string, eval executor.RowPredicate) (*Compliance, error) {
	if err := validatePredicateText(expr); err != nil {
		return nil, err
	}
	return &Compliance{Name_: name, Expr: expr, Columns_: columns, Eval: eval}, nil
}

// RowPredicate and PredicateSQL expose the validated predicate to other
// packages; Compliance's own evaluation never calls these, they exist
// for external reuse of an already-validated WHERE fragment. The
// optimizer pushes no predicate into its fused queries.
func (c *Compliance) RowPredicate() executor.RowPredicate { return c.Eval }
func (c *Compliance) PredicateSQL() string                { return c.Expr }

func (c *Compliance) Name() string      { return "Compliance:" + c.Name_ }
func (c *Compliance) Columns() []string { return c.Columns_ }
func (c *Compliance) MetricKey() string { return "compliance." + c.Name_ }

func (c *Compliance) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	totalQ := executor.AggregateQuery{
		Table:       table,
		Projections: []executor.Projection{{Alias: "total", Agg: core.AggCount, Column: "*"}},
	}
	totalRow, err := runOne(ctx, exec, totalQ)
	if err != nil {
		return nil, err
	}
	total, _ := totalRow.Float64("total")

	matchQ := executor.AggregateQuery{
		Table:        table,
		Predicate:    c.Eval,
		PredicateSQL: c.Expr,
		Projections:  []executor.Projection{{Alias: "matching", Agg: core.AggCount, Column: "*"}},
	}
	matchRow, err := runOne(ctx, exec, matchQ)
	if err != nil {
		return nil, err
	}
	matching, _ := matchRow.Float64("matching")

	return ComplianceState{Total: int64(total), Matching: int64(matching)}, nil
}

func (c *Compliance) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(ComplianceState)
	if s.Total == 0 {
		return core.SkippedMetric("table is empty"), nil
	}
	return core.ScalarMetric(float64(s.Matching) / float64(s.Total)), nil
}

func (c *Compliance) MergeStates(states []core.State) (core.State, error) {
	var out ComplianceState
	for _, st := range states {
		s := st.(ComplianceState)
		out.Total += s.Total
		out.Matching += s.Matching
	}
	return out, nil
}

func (c *Compliance) UnmarshalState(data []byte) (core.State, error) {
	var s ComplianceState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

var _ core.Analyzer = (*Compliance)(nil)
