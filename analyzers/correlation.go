package analyzers

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// CorrelationMode selects which statistic Correlation.ComputeMetric
// derives from the shared five-sum state.
type CorrelationMode int

const (
	CorrelationPearson CorrelationMode = iota
	CorrelationSpearman
	CorrelationCovariance
)

// CorrelationState is the single-pass (n, Σx, Σy, Σxy, Σx², Σy²) sums
// Pearson's formula needs; Covariance reuses the same state. Pearson and
// Covariance sums are exactly additive across partitions. Spearman's sums
// are computed over per-partition ranks, so merging Spearman states
// approximates the true global-rank correlation rather than reproducing
// it exactly (documented rather than silently wrong).
type CorrelationState struct {
	N     int64   `json:"n"`
	SumX  float64 `json:"sum_x"`
	SumY  float64 `json:"sum_y"`
	SumXY float64 `json:"sum_xy"`
	SumX2 float64 `json:"sum_x2"`
	SumY2 float64 `json:"sum_y2"`
}

func (s CorrelationState) IsEmpty() bool { return s.N == 0 }

func (s CorrelationState) Marshal() ([]byte, error) { return json.Marshal(s) }

func (s CorrelationState) pearson() float64 {
	n := float64(s.N)
	num := n*s.SumXY - s.SumX*s.SumY
	denom := math.Sqrt((n*s.SumX2 - s.SumX*s.SumX) * (n*s.SumY2 - s.SumY*s.SumY))
	if denom == 0 {
		return 0
	}
	return num / denom
}

func (s CorrelationState) covariance() float64 {
	n := float64(s.N)
	return s.SumXY/n - (s.SumX/n)*(s.SumY/n)
}

// Correlation computes Pearson, Spearman, or Covariance between ColumnA
// and ColumnB over rows where both are non-null. Not combinable: Spearman
// needs row-level ranking, and even the Pearson/Covariance path uses a
// cross-column product no flat ColumnAnalyzer aggregation expresses.
type Correlation struct {
	ColumnA, ColumnB string
	Mode             CorrelationMode
}

func NewCorrelation(colA, colB string, mode CorrelationMode) Correlation {
	return Correlation{ColumnA: colA, ColumnB: colB, Mode: mode}
}

func (c Correlation) Name() string {
	switch c.Mode {
	case CorrelationSpearman:
		return "SpearmanCorrelation"
	case CorrelationCovariance:
		return "Covariance"
	default:
		return "PearsonCorrelation"
	}
}

func (c Correlation) Columns() []string { return []string{c.ColumnA, c.ColumnB} }
func (c Correlation) MetricKey() string {
	return c.Name() + "." + c.ColumnA + "." + c.ColumnB
}

func (c Correlation) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	if c.Mode == CorrelationSpearman {
		return c.computeRankedState(ctx, exec, table)
	}
	return c.computeAggregateState(ctx, exec, table)
}

func (c Correlation) computeAggregateState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	bothNonNull := func(row core.Row) bool {
		_, okA := row.Float64(c.ColumnA)
		_, okB := row.Float64(c.ColumnB)
		return okA && okB
	}
	q := executor.AggregateQuery{
		Table:     table,
		Predicate: bothNonNull,
		Projections: []executor.Projection{
			{Alias: "n", Agg: core.AggCount, Column: "*"},
			{Alias: "sum_x", Agg: core.AggSum, Column: c.ColumnA},
			{Alias: "sum_y", Agg: core.AggSum, Column: c.ColumnB},
			{Alias: "sum_xy", Agg: core.AggSumProduct, Column: c.ColumnA, Column2: c.ColumnB},
			{Alias: "sum_x2", Agg: core.AggSumSquare, Column: c.ColumnA},
			{Alias: "sum_y2", Agg: core.AggSumSquare, Column: c.ColumnB},
		},
	}
	row, err := runOne(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	n, _ := row.Float64("n")
	sumX, _ := row.Float64("sum_x")
	sumY, _ := row.Float64("sum_y")
	sumXY, _ := row.Float64("sum_xy")
	sumX2, _ := row.Float64("sum_x2")
	sumY2, _ := row.Float64("sum_y2")
	return CorrelationState{N: int64(n), SumX: sumX, SumY: sumY, SumXY: sumXY, SumX2: sumX2, SumY2: sumY2}, nil
}

func (c Correlation) computeRankedState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	fetcher, ok := exec.(executor.RowFetcher)
	if !ok {
		return nil, errs.ErrInternal.New("executor does not support row-level access required by Spearman correlation")
	}
	rows, err := fetcher.FetchRows(ctx, table, []string{c.ColumnA, c.ColumnB}, nil)
	if err != nil {
		return nil, errs.ErrConstraintEvaluation.New(err.Error())
	}

	var xs, ys []float64
	for _, r := range rows {
		x, okX := r.Float64(c.ColumnA)
		y, okY := r.Float64(c.ColumnB)
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) == 0 {
		return CorrelationState{}, nil
	}

	rankX := rankValues(xs)
	rankY := rankValues(ys)

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range rankX {
		sumX += rankX[i]
		sumY += rankY[i]
		sumXY += rankX[i] * rankY[i]
		sumX2 += rankX[i] * rankX[i]
		sumY2 += rankY[i] * rankY[i]
	}
	return CorrelationState{
		N: int64(len(rankX)), SumX: sumX, SumY: sumY, SumXY: sumXY, SumX2: sumX2, SumY2: sumY2,
	}, nil
}

func (c Correlation) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(CorrelationState)
	if s.N == 0 {
		return core.SkippedMetric("no rows with both " + c.ColumnA + " and " + c.ColumnB + " non-null"), nil
	}
	if c.Mode == CorrelationCovariance {
		return core.ScalarMetric(s.covariance()), nil
	}
	return core.ScalarMetric(s.pearson()), nil
}

func (c Correlation) MergeStates(states []core.State) (core.State, error) {
	var out CorrelationState
	for _, st := range states {
		s := st.(CorrelationState)
		out.N += s.N
		out.SumX += s.SumX
		out.SumY += s.SumY
		out.SumXY += s.SumXY
		out.SumX2 += s.SumX2
		out.SumY2 += s.SumY2
	}
	return out, nil
}

func (c Correlation) UnmarshalState(data []byte) (core.State, error) {
	var s CorrelationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// rankValues assigns 1-based ranks to values, averaging ranks within a
// tied run, the average-rank tie rule Spearman requires.
func rankValues(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for m := i; m <= j; m++ {
			ranks[order[m]] = avgRank
		}
		i = j + 1
	}
	return ranks
}

var _ core.Analyzer = Correlation{}
