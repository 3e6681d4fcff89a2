package enginetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/runner"
)

func TestSalesCompletenessSuiteSequentialAndOptimizedAgree(t *testing.T) {
	for _, withOptimizer := range []bool{false, true} {
		exec := NewExecutorWithFixtures()
		ctx := context.Background()

		result, err := runner.New().Run(ctx, exec, SalesCompletenessSuite(withOptimizer))
		require.NoError(t, err)
		require.True(t, result.Ok)
		require.InDelta(t, 0.9, result.Metrics.CustomMetrics["product_id-completeness"], 1e-9)
	}
}

func TestNewExecutorWithFixturesRegistersEveryTable(t *testing.T) {
	exec := NewExecutorWithFixtures()
	names := exec.TableNames()
	require.Contains(t, names, "sales")
	require.Contains(t, names, "customers")
	require.Contains(t, names, "sales_by_region")

	rows, err := exec.FetchRows(context.Background(), "customers", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

var _ = core.LevelError // keeps core imported for future scenario helpers in this package
