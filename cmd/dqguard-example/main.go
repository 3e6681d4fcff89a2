// Command dqguard-example wires an in-memory executor, a CSV data
// source, and the dqguard Engine end to end: register a table, build a
// suite, run it, and print the resulting report as JSON.
//
// Connect no client to this; it is a demonstration, not a server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dqguard/dqguard"
	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
	"github.com/dqguard/dqguard/repository"
	"github.com/dqguard/dqguard/sources"
)

func main() {
	ctx := context.Background()

	exec := memexec.New()
	csv := sources.NewCsvSource("orders.csv").WithSchema(map[string]core.ColumnKind{
		"order_id":    core.ColumnInt64,
		"customer_id": core.ColumnInt64,
		"amount":      core.ColumnFloat64,
	})
	if err := csv.RegisterWithTelemetry(ctx, exec, "orders", nil); err != nil {
		fmt.Fprintln(os.Stderr, "loading orders.csv:", err)
		os.Exit(1)
	}

	suite := buildSuite()

	engine := dqguard.New(exec, repository.NewInMemoryRepository(), dqguard.DefaultConfig())
	result, err := engine.Run(ctx, suite)
	if err != nil {
		fmt.Fprintln(os.Stderr, "suite run aborted:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Ok {
		os.Exit(1)
	}
}

func buildSuite() *core.Suite {
	amountCompleteness, err := core.NewConstraint("amount-completeness", analyzers.NewCompleteness("amount")).
		WithThreshold(0.95).
		Build()
	if err != nil {
		panic(err)
	}
	customerIDCompleteness, err := core.NewConstraint("customer_id-completeness", analyzers.NewCompleteness("customer_id")).
		WithThreshold(1.0).
		Build()
	if err != nil {
		panic(err)
	}

	check := core.NewCheck("orders-quality", core.LevelError).
		AddConstraint(amountCompleteness).
		AddConstraint(customerIDCompleteness).
		Build()

	return core.NewSuite("orders").
		WithDescription("daily orders feed completeness checks").
		WithTableName("orders").
		AddCheck(check).
		Build()
}
