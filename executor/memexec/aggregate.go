package memexec

import (
	"context"
	"math"
	"sort"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/internal/similartext"
)

const (
	groupKeyColumn    = "group_key"
	bucketIndexColumn = "bucket_index"
)

type staticResultSet struct{ rows []core.Row }

func (s staticResultSet) Collect(ctx context.Context) ([]core.Row, error) { return s.rows, nil }

// RunAggregate evaluates an executor.AggregateQuery over an in-memory
// Table by a plain linear scan: filter, optionally group, then reduce
// each group's Projections.
func (e *Executor) RunAggregate(ctx context.Context, q executor.AggregateQuery) (core.ResultSet, error) {
	t, err := e.table(q.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(t, q); err != nil {
		return nil, err
	}

	indices := filterIndices(t, q.Predicate)

	if q.GroupBy == nil {
		return staticResultSet{rows: []core.Row{evalGroup(t, indices, q.Projections)}}, nil
	}

	groups := groupIndices(t, indices, *q.GroupBy)
	rows := make([]core.Row, 0, len(groups))
	for _, g := range groups {
		row := evalGroup(t, g.indices, q.Projections)
		row[groupKeyColumn] = g.key
		if q.GroupBy.Bucket != nil {
			row[bucketIndexColumn] = core.LongValue(int64(g.bucket))
		}
		rows = append(rows, row)
	}
	return staticResultSet{rows: rows}, nil
}

// checkColumns rejects a query referencing a column the table does not
// have, so a misspelled constraint column surfaces as a schema error
// with a suggestion instead of silently aggregating over NULLs.
func checkColumns(t *Table, q executor.AggregateQuery) error {
	check := func(col string) error {
		if col == "" || col == "*" {
			return nil
		}
		if _, ok := t.kinds[col]; !ok {
			return errs.ErrSchema.New(col, t.name, similartext.FindFromKeys(t.kinds, col))
		}
		return nil
	}
	for _, p := range q.Projections {
		if err := check(p.Column); err != nil {
			return err
		}
		if err := check(p.Column2); err != nil {
			return err
		}
	}
	if q.GroupBy != nil {
		if err := check(q.GroupBy.Column); err != nil {
			return err
		}
		if q.GroupBy.Bucket != nil {
			if err := check(q.GroupBy.Bucket.Column); err != nil {
				return err
			}
		}
	}
	return nil
}

func filterIndices(t *Table, pred executor.RowPredicate) []int {
	indices := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if pred == nil || pred(t.Row(i)) {
			indices = append(indices, i)
		}
	}
	return indices
}

type group struct {
	key     core.MetricValue
	bucket  int
	indices []int
}

func groupIndices(t *Table, indices []int, spec executor.GroupSpec) []group {
	byKey := map[string]*group{}
	var order []string

	for _, i := range indices {
		if spec.Bucket != nil {
			v, ok := t.Float64At(spec.Bucket.Column, i)
			if !ok {
				continue
			}
			b := bucketFor(v, spec.Bucket.LowerBounds)
			k := formatInt(int64(b))
			g, ok := byKey[k]
			if !ok {
				g = &group{bucket: b, key: core.LongValue(int64(b))}
				byKey[k] = g
				order = append(order, k)
			}
			g.indices = append(g.indices, i)
			continue
		}

		s, ok := t.StringAt(spec.Column, i)
		if !ok {
			continue
		}
		g, ok := byKey[s]
		if !ok {
			g = &group{key: core.StringValue(s)}
			byKey[s] = g
			order = append(order, s)
		}
		g.indices = append(g.indices, i)
	}

	sort.Strings(order)
	out := make([]group, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

// bucketFor returns the index i such that bounds[i] <= v, the last index
// for which that holds (bounds is ascending; the final bucket is a
// catch-all up to max+0.001*w).
func bucketFor(v float64, bounds []float64) int {
	idx := 0
	for i, b := range bounds {
		if v >= b {
			idx = i
		} else {
			break
		}
	}
	return idx
}

func evalGroup(t *Table, indices []int, projections []executor.Projection) core.Row {
	row := core.Row{}
	for _, p := range projections {
		row[p.Alias] = evalProjection(t, indices, p)
	}
	return row
}

func evalProjection(t *Table, indices []int, p executor.Projection) core.MetricValue {
	switch p.Agg {
	case core.AggCount:
		if p.Column == "*" {
			return core.LongValue(int64(len(indices)))
		}
		n := int64(0)
		for _, i := range indices {
			if t.IsValid(p.Column, i) {
				n++
			}
		}
		return core.LongValue(n)

	case core.AggCountDistinct:
		seen := map[string]struct{}{}
		for _, i := range indices {
			if s, ok := t.StringAt(p.Column, i); ok {
				seen[s] = struct{}{}
			}
		}
		return core.LongValue(int64(len(seen)))

	case core.AggSum:
		sum := 0.0
		for _, i := range indices {
			if v, ok := t.Float64At(p.Column, i); ok {
				sum += v
			}
		}
		return core.DoubleValue(sum)

	case core.AggAvg:
		sum, n := 0.0, 0
		for _, i := range indices {
			if v, ok := t.Float64At(p.Column, i); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return core.NoneValue()
		}
		return core.DoubleValue(sum / float64(n))

	case core.AggMin, core.AggMax:
		return minMax(t, indices, p.Column, p.Agg == core.AggMin)

	case core.AggSumSquare:
		sum := 0.0
		for _, i := range indices {
			if v, ok := t.Float64At(p.Column, i); ok {
				sum += v * v
			}
		}
		return core.DoubleValue(sum)

	case core.AggSumProduct:
		sum := 0.0
		for _, i := range indices {
			x, okX := t.Float64At(p.Column, i)
			y, okY := t.Float64At(p.Column2, i)
			if okX && okY {
				sum += x * y
			}
		}
		return core.DoubleValue(sum)

	case core.AggStdDev, core.AggVariance:
		sum, sumSq, n := 0.0, 0.0, 0.0
		for _, i := range indices {
			if v, ok := t.Float64At(p.Column, i); ok {
				sum += v
				sumSq += v * v
				n++
			}
		}
		if n == 0 {
			return core.NoneValue()
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		if p.Agg == core.AggVariance {
			return core.DoubleValue(variance)
		}
		return core.DoubleValue(math.Sqrt(variance))

	default:
		return core.NoneValue()
	}
}

func minMax(t *Table, indices []int, col string, isMin bool) core.MetricValue {
	first := true
	var best float64
	for _, i := range indices {
		v, ok := t.Float64At(col, i)
		if !ok {
			continue
		}
		if first || (isMin && v < best) || (!isMin && v > best) {
			best = v
			first = false
		}
	}
	if first {
		return core.NoneValue()
	}
	return core.DoubleValue(best)
}
