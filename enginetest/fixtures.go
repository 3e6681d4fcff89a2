// Package enginetest holds scenario fixtures shared across this
// module's test suites: sample tables and suites built once here
// instead of copy-pasted per package. Nothing here is a _test.go file;
// it is a regular library other packages' tests import.
package enginetest

import (
	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// SalesTable is the sales fixture (runner/runner_test.go builds an
// identical table inline rather than importing it): 10 rows,
// transaction_id 1001..1010 all non-null, product_id null on row 1006.
func SalesTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"transaction_id": core.ColumnInt64,
		"product_id":     core.ColumnInt64,
	}
	tbl := memexec.NewTable("sales", schema, []string{"transaction_id", "product_id"})
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

// CustomersTable is a second, unrelated table for multi-source
// scenarios: 2 rows, one with a null name.
func CustomersTable() *memexec.Table {
	schema := map[string]core.ColumnKind{"name": core.ColumnUtf8}
	tbl := memexec.NewTable("customers", schema, []string{"name"})
	tbl.AppendRow(map[string]interface{}{"name": "alice"})
	tbl.AppendRow(map[string]interface{}{"name": nil})
	return tbl
}

// SalesByRegionTable groups six rows across US/EU regions and A/B
// products, with one null sales value in EU-A, for grouped-analyzer
// scenarios.
func SalesByRegionTable() *memexec.Table {
	schema := map[string]core.ColumnKind{
		"region":  core.ColumnUtf8,
		"product": core.ColumnUtf8,
		"sales":   core.ColumnFloat64,
	}
	tbl := memexec.NewTable("sales_by_region", schema, []string{"region", "product", "sales"})
	rows := []struct {
		region, product string
		sales           interface{}
	}{
		{"US", "A", 100.0},
		{"US", "B", 200.0},
		{"EU", "A", nil},
		{"EU", "B", 150.0},
		{"US", "A", 250.0},
		{"EU", "A", 300.0},
	}
	for _, r := range rows {
		tbl.AppendRow(map[string]interface{}{"region": r.region, "product": r.product, "sales": r.sales})
	}
	return tbl
}

// SalesCompletenessSuite builds the single-constraint suite every
// runner/optimizer parity test runs against SalesTable: product_id
// completeness must be at least 0.9 (row 1006 is the only null, so the
// true ratio is exactly 0.9).
func SalesCompletenessSuite(withOptimizer bool) *core.Suite {
	completeness, err := core.NewConstraint("product_id-completeness", analyzers.NewCompleteness("product_id")).
		WithThreshold(0.9).
		Build()
	if err != nil {
		panic(err)
	}
	check := core.NewCheck("completeness-check", core.LevelError).AddConstraint(completeness).Build()
	return core.NewSuite("sales").
		WithTableName("sales").
		WithOptimizer(withOptimizer).
		AddCheck(check).
		Build()
}

// NewExecutorWithFixtures registers every table this package provides
// (SalesTable, CustomersTable, SalesByRegionTable) under their natural
// names against a fresh memexec.Executor, for tests that just need a
// populated executor without caring which table a given check uses.
func NewExecutorWithFixtures() *memexec.Executor {
	exec := memexec.New()
	mustRegister(exec, "sales", SalesTable())
	mustRegister(exec, "customers", CustomersTable())
	mustRegister(exec, "sales_by_region", SalesByRegionTable())
	return exec
}

func mustRegister(exec *memexec.Executor, name string, tbl *memexec.Table) {
	if err := exec.RegisterTable(name, tbl); err != nil {
		panic(err)
	}
}
