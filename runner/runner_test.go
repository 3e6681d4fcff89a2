package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// salesTable: 10 rows, transaction_id 1001..1010 all non-null,
// product_id null on row 1006.
func salesTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"transaction_id": core.ColumnInt64,
		"product_id":     core.ColumnInt64,
	}
	tbl := memexec.NewTable("data", schema, []string{"transaction_id", "product_id"})
	for i := 0; i < 10; i++ {
		txID := int64(1001 + i)
		var productID interface{} = int64(2000 + i)
		if txID == 1006 {
			productID = nil
		}
		tbl.AppendRow(map[string]interface{}{"transaction_id": txID, "product_id": productID})
	}
	return tbl
}

func salesSuite(withOptimizer, continueOnError bool) *core.Suite {
	completeness, _ := core.NewConstraint("product_id-completeness", analyzers.NewCompleteness("product_id")).
		WithThreshold(0.9).
		Build()
	check := core.NewCheck("completeness-check", core.LevelError).AddConstraint(completeness).Build()
	return core.NewSuite("sales").
		WithTableName("data").
		WithOptimizer(withOptimizer).
		WithContinueOnError(continueOnError).
		AddCheck(check).
		Build()
}

func TestRunSequentialSalesCompleteness(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", salesTable()))

	result, err := New().Run(context.Background(), exec, salesSuite(false, true))
	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Equal(t, 1, result.Metrics.TotalChecks)
	require.Equal(t, 1, result.Metrics.PassedChecks)
	require.Empty(t, result.Report.Issues)
	require.InDelta(t, 0.9, result.Metrics.CustomMetrics["product_id-completeness"], 1e-9)
}

func TestRunOptimizedMatchesSequential(t *testing.T) {
	execOpt := memexec.New()
	require.NoError(t, execOpt.RegisterTable("data", salesTable()))
	optResult, err := New().Run(context.Background(), execOpt, salesSuite(true, true))
	require.NoError(t, err)

	execSeq := memexec.New()
	require.NoError(t, execSeq.RegisterTable("data", salesTable()))
	seqResult, err := New().Run(context.Background(), execSeq, salesSuite(false, true))
	require.NoError(t, err)

	require.Equal(t, seqResult.Ok, optResult.Ok)
	require.Equal(t, seqResult.Metrics.PassedChecks, optResult.Metrics.PassedChecks)
	require.InDelta(t,
		seqResult.Metrics.CustomMetrics["product_id-completeness"],
		optResult.Metrics.CustomMetrics["product_id-completeness"],
		1e-6)
}

func TestRunFailingConstraintSetsFailureAndIssue(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", salesTable()))

	// Threshold of 1.0 cannot be met (row 1006 is null), so this must fail.
	strict, _ := core.NewConstraint("product_id-completeness-strict", analyzers.NewCompleteness("product_id")).
		WithThreshold(1.0).
		Build()
	check := core.NewCheck("strict-check", core.LevelError).AddConstraint(strict).Build()
	suite := core.NewSuite("sales").WithTableName("data").WithOptimizer(false).AddCheck(check).Build()

	result, err := New().Run(context.Background(), exec, suite)
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.Equal(t, 1, result.Metrics.FailedChecks)
	require.Len(t, result.Report.Issues, 1)
	require.Equal(t, core.LevelError, result.Report.Issues[0].Level)
}

func TestRunWarningLevelFailureDoesNotFailSuite(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", salesTable()))

	strict, _ := core.NewConstraint("product_id-completeness-strict", analyzers.NewCompleteness("product_id")).
		WithThreshold(1.0).
		Build()
	check := core.NewCheck("strict-check", core.LevelWarning).AddConstraint(strict).Build()
	suite := core.NewSuite("sales").WithTableName("data").WithOptimizer(false).AddCheck(check).Build()

	result, err := New().Run(context.Background(), exec, suite)
	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Len(t, result.Report.Issues, 1)
	require.Equal(t, core.LevelWarning, result.Report.Issues[0].Level)
}

// Both error-path tests below point the suite at a table name that was
// never registered, so every constraint's ComputeState call fails with a
// genuine ErrTableNotFound from the executor rather than a hand-rolled fake.

func TestRunContinueOnErrorRecordsIssueAndContinues(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", salesTable()))

	failing, err := analyzers.NewCompliance("bad-predicate", "product_id >= 0", []string{"product_id"},
		func(row core.Row) bool { return true })
	require.NoError(t, err)
	c, err := core.NewConstraint("bad-constraint", failing).WithThreshold(0.5).Build()
	require.NoError(t, err)
	check := core.NewCheck("bad-check", core.LevelError).AddConstraint(c).Build()
	suite := core.NewSuite("sales").WithTableName("missing-table").WithOptimizer(false).WithContinueOnError(true).AddCheck(check).Build()

	result, err := New().Run(context.Background(), exec, suite)
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.Len(t, result.Report.Issues, 1)
	require.Equal(t, "bad-constraint", result.Report.Issues[0].ConstraintName)
}

func TestRunAbortsWhenContinueOnErrorFalse(t *testing.T) {
	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", salesTable()))

	failing, err := analyzers.NewCompliance("bad-predicate", "product_id >= 0", []string{"product_id"},
		func(row core.Row) bool { return true })
	require.NoError(t, err)
	c, err := core.NewConstraint("bad-constraint", failing).WithThreshold(0.5).Build()
	require.NoError(t, err)
	check := core.NewCheck("bad-check", core.LevelError).AddConstraint(c).Build()
	suite := core.NewSuite("sales").WithTableName("missing-table").WithOptimizer(false).WithContinueOnError(false).AddCheck(check).Build()

	_, err = New().Run(context.Background(), exec, suite)
	require.Error(t, err)
}

// customersTable is a second table a check can target via
// CheckBuilder.WithTableName, overriding the suite's default "data".
func customersTable() *memexec.Table {
	schema := map[string]core.ColumnKind{"name": core.ColumnUtf8}
	tbl := memexec.NewTable("customers", schema, []string{"name"})
	tbl.AppendRow(map[string]interface{}{"name": "alice"})
	tbl.AppendRow(map[string]interface{}{"name": nil})
	return tbl
}

func TestRunPerCheckTableOverrideRunsAgainstBothTables(t *testing.T) {
	for _, withOptimizer := range []bool{false, true} {
		exec := memexec.New()
		require.NoError(t, exec.RegisterTable("data", salesTable()))
		require.NoError(t, exec.RegisterTable("customers", customersTable()))

		salesCompleteness, err := core.NewConstraint("product_id-completeness", analyzers.NewCompleteness("product_id")).
			WithThreshold(0.9).
			Build()
		require.NoError(t, err)
		salesCheck := core.NewCheck("sales-check", core.LevelError).AddConstraint(salesCompleteness).Build()

		customerCompleteness, err := core.NewConstraint("name-completeness", analyzers.NewCompleteness("name")).
			WithThreshold(0.4).
			Build()
		require.NoError(t, err)
		customerCheck := core.NewCheck("customers-check", core.LevelError).
			WithTableName("customers").
			AddConstraint(customerCompleteness).
			Build()

		suite := core.NewSuite("multi").
			WithTableName("data").
			WithOptimizer(withOptimizer).
			AddCheck(salesCheck).
			AddCheck(customerCheck).
			Build()

		result, err := New().Run(context.Background(), exec, suite)
		require.NoError(t, err)
		require.True(t, result.Ok)
		require.InDelta(t, 0.9, result.Metrics.CustomMetrics["product_id-completeness"], 1e-9)
		require.InDelta(t, 0.5, result.Metrics.CustomMetrics["name-completeness"], 1e-9)
	}
}
