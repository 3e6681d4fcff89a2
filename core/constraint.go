package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/dqguard/dqguard/internal/errs"
)

// Status is the outcome of evaluating one Constraint.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// ConstraintResult is the per-constraint outcome: a status, the scalar
// metric the assertion judged (when defined), and a human message.
type ConstraintResult struct {
	Status  Status
	Metric  *float64
	Message string
}

func metricPtr(v float64) *float64 { return &v }

// columnBinding pairs a column name (empty for analyzers that are not
// per-column, e.g. Size, Correlation, Compliance) with the Analyzer
// instance that reads it.
type columnBinding struct {
	column   string
	analyzer Analyzer
}

// Constraint binds one or more analyzer instances (one per column, for
// multi-column constraints) to an Assertion or a ratio threshold, combined
// across columns with a LogicalOperator. Constraints are immutable once
// built.
type Constraint struct {
	name      string
	bindings  []columnBinding
	assertion Assertion
	threshold *float64
	ratio     bool
	operator  LogicalOperator
}

func (c *Constraint) Name() string { return c.name }

// Analyzer returns the first bound analyzer, for callers (the optimizer)
// that only need a representative instance, e.g. to read Columns() or
// MetricKey() for single-column constraints.
func (c *Constraint) Analyzer() Analyzer {
	if len(c.bindings) == 0 {
		return nil
	}
	return c.bindings[0].analyzer
}

// Analyzers returns every bound analyzer instance, in column order.
func (c *Constraint) Analyzers() []Analyzer {
	out := make([]Analyzer, len(c.bindings))
	for i, b := range c.bindings {
		out[i] = b.analyzer
	}
	return out
}

// Columns returns the union of columns read across all bound analyzers.
func (c *Constraint) Columns() []string {
	seen := map[string]bool{}
	var cols []string
	for _, b := range c.bindings {
		for _, col := range b.analyzer.Columns() {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

// Binding pairs one column (empty for non-per-column analyzers, e.g.
// Size, Correlation, Compliance) with the Analyzer instance that reads
// it. The optimizer needs column and analyzer together to both build a
// fused query's projections and, afterward, reconstruct each binding's
// State from the result row via StateFromRow.
type Binding struct {
	Column   string
	Analyzer Analyzer
}

// BindingsList returns the constraint's (column, analyzer) pairs in
// column order.
func (c *Constraint) BindingsList() []Binding {
	out := make([]Binding, len(c.bindings))
	for i, b := range c.bindings {
		out[i] = Binding{Column: b.column, Analyzer: b.analyzer}
	}
	return out
}

// ConstraintBuilder constructs an immutable Constraint.
type ConstraintBuilder struct {
	name      string
	bindings  []columnBinding
	assertion Assertion
	threshold *float64
	ratio     bool
	operator  LogicalOperator
	err       error
}

// NewConstraint builds a constraint around a single analyzer instance
// (Size, Correlation, Compliance, DataType, and any other analyzer whose
// column selection is already baked in at construction).
func NewConstraint(name string, analyzer Analyzer) *ConstraintBuilder {
	return &ConstraintBuilder{
		name:     name,
		bindings: []columnBinding{{analyzer: analyzer}},
		operator: All(),
	}
}

// NewColumnConstraint builds a constraint that applies factory
// independently to every column in columns (e.g. completeness("a","b")),
// judged per column and reduced with the LogicalOperator.
func NewColumnConstraint(name string, columns []string, factory func(column string) Analyzer) *ConstraintBuilder {
	bindings := make([]columnBinding, len(columns))
	for i, col := range columns {
		bindings[i] = columnBinding{column: col, analyzer: factory(col)}
	}
	return &ConstraintBuilder{name: name, bindings: bindings, operator: All()}
}

func (b *ConstraintBuilder) WithAssertion(a Assertion) *ConstraintBuilder {
	b.assertion = a
	return b
}

// WithThreshold marks this as a ratio-style constraint (completeness,
// length/format/containment thresholds): Success iff the computed ratio
// is >= t. t must be in [0, 1].
func (b *ConstraintBuilder) WithThreshold(t float64) *ConstraintBuilder {
	if t < 0 || t > 1 {
		b.err = errs.ErrConfiguration.New(fmt.Sprintf("threshold %v outside [0,1]", t))
		return b
	}
	b.threshold = &t
	b.ratio = true
	return b
}

func (b *ConstraintBuilder) WithOperator(op LogicalOperator) *ConstraintBuilder {
	b.operator = op
	return b
}

func (b *ConstraintBuilder) Build() (*Constraint, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.assertion == nil && b.threshold == nil {
		return nil, errs.ErrConfiguration.New("constraint " + b.name + " has neither an assertion nor a threshold")
	}
	return &Constraint{
		name:      b.name,
		bindings:  b.bindings,
		assertion: b.assertion,
		threshold: b.threshold,
		ratio:     b.ratio,
		operator:  b.operator,
	}, nil
}

type columnOutcome struct {
	column  string
	metric  Metric
	pass    bool
	skipped bool
}

func (c *Constraint) judge(m Metric) bool {
	if c.assertion != nil {
		return c.assertion.Evaluate(m.Primary)
	}
	if c.threshold != nil {
		return m.Primary >= *c.threshold
	}
	return false
}

func (c *Constraint) description() string {
	if c.assertion != nil {
		return c.assertion.Description()
	}
	return fmt.Sprintf("ratio greater than or equal to %v", *c.threshold)
}

// Evaluate computes every bound analyzer's state and metric against the
// ambient table, then reduces the per-column pass/fail booleans with the
// constraint's LogicalOperator. A non-nil error means the caller (the
// runner) must decide, per continue_on_error, whether to abort the run or
// fold it into a Failure result itself.
func (c *Constraint) Evaluate(ctx context.Context, exec Executor) (*ConstraintResult, error) {
	table, ok := TableName(ctx)
	if !ok {
		return nil, errs.ErrInternal.New("no ambient table name in context")
	}

	if len(c.bindings) == 0 {
		return &ConstraintResult{Status: StatusSkipped, Message: "no columns to evaluate"}, nil
	}

	states := make([]State, len(c.bindings))
	for i, b := range c.bindings {
		state, err := b.analyzer.ComputeState(ctx, exec, table)
		if err != nil {
			return nil, err
		}
		states[i] = state
	}
	return c.EvaluateFromStates(states)
}

// EvaluateFromStates computes a ConstraintResult from already-computed
// States instead of querying the executor directly: the path the query
// optimizer takes after projecting a fused query's single result row
// back into each binding's State. states must be
// given in the same order as BindingsList().
func (c *Constraint) EvaluateFromStates(states []State) (*ConstraintResult, error) {
	if len(c.bindings) == 0 {
		return &ConstraintResult{Status: StatusSkipped, Message: "no columns to evaluate"}, nil
	}
	if len(states) != len(c.bindings) {
		return nil, errs.ErrInternal.New("constraint " + c.name + ": state count does not match binding count")
	}

	outcomes := make([]columnOutcome, 0, len(c.bindings))
	for i, b := range c.bindings {
		metric, err := b.analyzer.ComputeMetric(states[i])
		if err != nil {
			return nil, err
		}
		if metric.Skip {
			outcomes = append(outcomes, columnOutcome{column: b.column, metric: metric, skipped: true})
			continue
		}
		outcomes = append(outcomes, columnOutcome{column: b.column, metric: metric, pass: c.judge(metric)})
	}

	return c.reduce(outcomes), nil
}

func (c *Constraint) reduce(outcomes []columnOutcome) *ConstraintResult {
	var (
		active  []columnOutcome
		skipped []string
	)
	for _, o := range outcomes {
		if o.skipped {
			skipped = append(skipped, o.column)
			continue
		}
		active = append(active, o)
	}
	if len(active) == 0 {
		reason := "table is empty"
		if len(skipped) > 0 {
			reason = fmt.Sprintf("all referenced columns (%s) are empty or all-null", strings.Join(skipped, ", "))
		}
		return &ConstraintResult{Status: StatusSkipped, Message: reason}
	}

	bools := make([]bool, len(active))
	sum := 0.0
	var failing []string
	for i, o := range active {
		bools[i] = o.pass
		sum += o.metric.Primary
		if !o.pass {
			failing = append(failing, fmt.Sprintf("%s=%v", colLabel(o.column), o.metric.Primary))
		}
	}
	overall := c.operator.Reduce(bools)
	mean := sum / float64(len(active))

	status := StatusFailure
	msg := fmt.Sprintf("expected %s to be %s, got %s", c.name, c.description(), strings.Join(failing, ", "))
	if overall {
		status = StatusSuccess
		msg = fmt.Sprintf("%s satisfies %s", c.name, c.description())
	}
	return &ConstraintResult{Status: status, Metric: metricPtr(mean), Message: msg}
}

func colLabel(col string) string {
	if col == "" {
		return "value"
	}
	return col
}
