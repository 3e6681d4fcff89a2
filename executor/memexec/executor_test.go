package memexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

func salesTable() *Table {
	schema := map[string]core.ColumnKind{
		"transaction_id": core.ColumnInt64,
		"product_id":     core.ColumnInt64,
	}
	order := []string{"transaction_id", "product_id"}
	t := NewTable("data", schema, order)
	for i := 1001; i <= 1010; i++ {
		row := map[string]interface{}{"transaction_id": int64(i)}
		if i != 1006 {
			row["product_id"] = int64(i)
		}
		t.AppendRow(row)
	}
	return t
}

func TestRunAggregateCompleteness(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterTable("data", salesTable()))

	q := executor.AggregateQuery{
		Table: "data",
		Projections: []executor.Projection{
			{Alias: "total", Agg: core.AggCount, Column: "*"},
			{Alias: "non_null_product_id", Agg: core.AggCount, Column: "product_id"},
		},
	}
	rs, err := e.RunAggregate(context.Background(), q)
	require.NoError(t, err)
	rows, err := rs.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	total, _ := rows[0].Float64("total")
	nonNull, _ := rows[0].Float64("non_null_product_id")
	require.Equal(t, 10.0, total)
	require.Equal(t, 9.0, nonNull)
}

func TestRunAggregateGroupByBucket(t *testing.T) {
	e := New()
	schema := map[string]core.ColumnKind{"value": core.ColumnFloat64}
	tbl := NewTable("data", schema, []string{"value"})
	for i := 0; i < 10; i++ {
		tbl.AppendRow(map[string]interface{}{"value": float64(i)})
	}
	require.NoError(t, e.RegisterTable("data", tbl))

	q := executor.AggregateQuery{
		Table: "data",
		GroupBy: &executor.GroupSpec{
			Bucket: &executor.BucketSpec{Column: "value", LowerBounds: []float64{0, 5}},
		},
		Projections: []executor.Projection{{Alias: "cnt", Agg: core.AggCount, Column: "*"}},
	}
	rs, err := e.RunAggregate(context.Background(), q)
	require.NoError(t, err)
	rows, err := rs.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		cnt, _ := row.Float64("cnt")
		require.Equal(t, 5.0, cnt)
	}
}

func TestSchemaErrorOnMissingTable(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterTable("data", salesTable()))
	_, err := e.RunAggregate(context.Background(), executor.AggregateQuery{Table: "dta"})
	require.Error(t, err)
	require.True(t, errs.ErrTableNotFound.Is(err))
	require.Contains(t, err.Error(), "maybe you mean data?")
}

func TestSchemaErrorOnMissingColumn(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterTable("data", salesTable()))

	q := executor.AggregateQuery{
		Table:       "data",
		Projections: []executor.Projection{{Alias: "n", Agg: core.AggCount, Column: "produt_id"}},
	}
	_, err := e.RunAggregate(context.Background(), q)
	require.Error(t, err)
	require.True(t, errs.ErrSchema.Is(err))
	require.Contains(t, err.Error(), "maybe you mean product_id?")

	_, err = e.FetchRows(context.Background(), "data", []string{"produt_id"}, nil)
	require.Error(t, err)
	require.True(t, errs.ErrSchema.Is(err))
}
