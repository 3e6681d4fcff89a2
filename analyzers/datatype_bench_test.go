package analyzers

import (
	"context"
	"testing"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// datatypeSample cycles through every label classify recognizes plus a
// fallback string, so BenchmarkClassify exercises all five regexes
// instead of short-circuiting on the first one every call.
var datatypeSample = []string{
	"42",
	"3.14",
	"true",
	"2026-07-31",
	"2026-07-31T12:00:00Z",
	"not a recognized pattern",
}

// BenchmarkClassify measures the regex cascade classify falls through
// for string-kind values, the most expensive path DataType's row loop
// takes.
func BenchmarkClassify(b *testing.B) {
	values := make([]core.MetricValue, len(datatypeSample))
	for i, s := range datatypeSample {
		values[i] = core.StringValue(s)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		classify(values[i%len(values)])
	}
}

func datatypeTable(b *testing.B, rows int) *memexec.Table {
	b.Helper()
	schema := map[string]core.ColumnKind{"value": core.ColumnUtf8}
	tbl := memexec.NewTable("samples", schema, []string{"value"})
	for i := 0; i < rows; i++ {
		tbl.AppendRow(map[string]interface{}{"value": datatypeSample[i%len(datatypeSample)]})
	}
	return tbl
}

// BenchmarkDataTypeComputeState measures the full row-fetch-and-classify
// path DataType.ComputeState takes through the executor.RowFetcher
// escape hatch.
func BenchmarkDataTypeComputeState(b *testing.B) {
	exec := memexec.New()
	if err := exec.RegisterTable("samples", datatypeTable(b, 10000)); err != nil {
		b.Fatal(err)
	}
	d := NewDataType("value")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.ComputeState(ctx, exec, "samples"); err != nil {
			b.Fatal(err)
		}
	}
}
