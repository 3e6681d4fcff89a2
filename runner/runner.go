// Package runner implements the one-shot suite runner: establish the
// ambient table name, either hand every
// constraint to the query optimizer or evaluate them sequentially, then
// fold the per-constraint results into a ValidationReport.
package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/optimizer"
)

// Runner runs Suites against an Executor. The zero value is ready to use;
// Optimizer is created lazily per call when nil so a fresh StatsCache
// backs every run, matching optimizer.QueryOptimizer's own per-run scope.
type Runner struct {
	Optimizer *optimizer.QueryOptimizer
	Log       *logrus.Entry
}

func New() *Runner {
	return &Runner{Log: logrus.WithField("component", "runner")}
}

func (r *Runner) log() *logrus.Entry {
	if r.Log != nil {
		return r.Log
	}
	return logrus.WithField("component", "runner")
}

// Run executes every check and constraint in suite against exec and
// returns the folded ValidationResult. A non-nil error means the run
// aborted outright (an optimizer analysis failure, or a sequential
// constraint error with ContinueOnError() false) rather than producing
// a Failure result: errors outside any constraint abort the run.
func (r *Runner) Run(ctx context.Context, exec core.Executor, suite *core.Suite) (*core.ValidationResult, error) {
	start := time.Now()

	constraints := suite.Constraints()
	checkOf := make(map[string]*core.Check, len(constraints))
	for _, ch := range suite.Checks() {
		for _, c := range ch.Constraints() {
			checkOf[c.Name()] = ch
		}
	}

	// Group constraints by effective table: a Check.TableName() override
	// takes priority over the Suite's default, so one suite can validate
	// several tables.
	byTable := map[string][]*core.Constraint{}
	var tableOrder []string
	for _, c := range constraints {
		table := suite.TableName()
		if ch := checkOf[c.Name()]; ch != nil && ch.TableName() != "" {
			table = ch.TableName()
		}
		if _, seen := byTable[table]; !seen {
			tableOrder = append(tableOrder, table)
		}
		byTable[table] = append(byTable[table], c)
	}

	log := r.log().WithFields(logrus.Fields{
		"suite":       suite.Name(),
		"table":       suite.TableName(),
		"constraints": len(constraints),
		"optimizer":   suite.WithOptimizer(),
	})
	log.Info("suite run starting")

	results := make(map[string]*core.ConstraintResult, len(constraints))
	evalErrs := core.NewErrorList()
	errMessages := make(map[string]string, len(constraints))

	for _, table := range tableOrder {
		tableConstraints := byTable[table]
		tableCtx := core.WithTableName(ctx, table)

		if suite.WithOptimizer() {
			opt := r.Optimizer
			if opt == nil {
				opt = optimizer.NewQueryOptimizer()
			}
			out, err := opt.Run(tableCtx, exec, table, tableConstraints)
			if err != nil {
				log.WithError(err).WithField("table", table).Error("suite run aborted: optimizer analysis failed")
				return nil, err
			}
			for name, res := range out {
				results[name] = res
			}
			continue
		}

		for _, c := range tableConstraints {
			res, err := c.Evaluate(tableCtx, exec)
			if err != nil {
				if !suite.ContinueOnError() {
					log.WithError(err).Error("suite run aborted: constraint evaluation failed")
					return nil, err
				}
				evalErrs.Add(err)
				errMessages[c.Name()] = err.Error()
				continue
			}
			results[c.Name()] = res
		}
	}

	report := core.ValidationReport{SuiteName: suite.Name(), Timestamp: time.Now()}
	metrics := core.ValidationMetrics{CustomMetrics: map[string]float64{}}
	var issues []core.ValidationIssue
	failed := false

	for _, c := range constraints {
		ch := checkOf[c.Name()]
		metrics.TotalChecks++

		if msg, ok := errMessages[c.Name()]; ok {
			metrics.FailedChecks++
			issues = append(issues, core.ValidationIssue{
				CheckName:      ch.Name(),
				ConstraintName: c.Name(),
				Level:          ch.Level(),
				Message:        msg,
			})
			if ch.Level() == core.LevelError {
				failed = true
			}
			continue
		}

		res, ok := results[c.Name()]
		if !ok {
			continue
		}
		switch res.Status {
		case core.StatusSuccess:
			metrics.PassedChecks++
			if res.Metric != nil {
				metrics.CustomMetrics[c.Name()] = *res.Metric
			}
		case core.StatusSkipped:
			metrics.SkippedChecks++
		case core.StatusFailure:
			metrics.FailedChecks++
			issues = append(issues, core.ValidationIssue{
				CheckName:      ch.Name(),
				ConstraintName: c.Name(),
				Level:          ch.Level(),
				Message:        res.Message,
				Metric:         res.Metric,
			})
			if ch.Level() == core.LevelError {
				failed = true
			}
		}
	}

	metrics.ExecutionTimeMS = time.Since(start).Milliseconds()
	report.Metrics = metrics
	report.Issues = issues

	log.WithFields(logrus.Fields{
		"passed":        metrics.PassedChecks,
		"failed":        metrics.FailedChecks,
		"skipped":       metrics.SkippedChecks,
		"eval_errors":   evalErrs.Len(),
		"execution_ms":  metrics.ExecutionTimeMS,
		"overall_ok":    !failed,
	}).Info("suite run complete")

	return &core.ValidationResult{Ok: !failed, Metrics: metrics, Report: report}, nil
}
