package core

// DefaultTableName is the table name a Suite uses when none is given
// explicitly.
const DefaultTableName = "data"

// Suite is the top-level validation unit: an ordered list of Checks
// against one table. Immutable after Build; may be run concurrently by
// many callers against the same or different executors.
type Suite struct {
	name            string
	description     string
	tableName       string
	checks          []*Check
	withOptimizer   bool
	continueOnError bool
}

func (s *Suite) Name() string          { return s.name }
func (s *Suite) Description() string   { return s.description }
func (s *Suite) TableName() string     { return s.tableName }
func (s *Suite) Checks() []*Check      { return s.checks }
func (s *Suite) WithOptimizer() bool   { return s.withOptimizer }
func (s *Suite) ContinueOnError() bool { return s.continueOnError }

// Constraints flattens every constraint across every check, in check
// order then constraint order, the order the optimizer analyzes them in.
func (s *Suite) Constraints() []*Constraint {
	var out []*Constraint
	for _, ch := range s.checks {
		out = append(out, ch.constraints...)
	}
	return out
}

type SuiteBuilder struct {
	name            string
	description     string
	tableName       string
	checks          []*Check
	withOptimizer   bool
	continueOnError bool
}

// NewSuite starts a builder with continueOnError defaulted to true and
// with_optimizer defaulted to true.
func NewSuite(name string) *SuiteBuilder {
	return &SuiteBuilder{
		name:            name,
		tableName:       DefaultTableName,
		withOptimizer:   true,
		continueOnError: true,
	}
}

func (b *SuiteBuilder) WithDescription(d string) *SuiteBuilder {
	b.description = d
	return b
}

func (b *SuiteBuilder) WithTableName(t string) *SuiteBuilder {
	b.tableName = t
	return b
}

func (b *SuiteBuilder) WithOptimizer(on bool) *SuiteBuilder {
	b.withOptimizer = on
	return b
}

func (b *SuiteBuilder) WithContinueOnError(on bool) *SuiteBuilder {
	b.continueOnError = on
	return b
}

func (b *SuiteBuilder) AddCheck(c *Check) *SuiteBuilder {
	b.checks = append(b.checks, c)
	return b
}

func (b *SuiteBuilder) Build() *Suite {
	return &Suite{
		name:            b.name,
		description:     b.description,
		tableName:       b.tableName,
		checks:          b.checks,
		withOptimizer:   b.withOptimizer,
		continueOnError: b.continueOnError,
	}
}
