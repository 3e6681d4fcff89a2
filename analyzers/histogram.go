package analyzers

import (
	"context"
	"encoding/json"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

// DefaultHistogramBuckets is the bucket count used when the caller does
// not specify one.
const DefaultHistogramBuckets = 10

// HistogramState wraps the executor's fixed-bucket counts plus the
// summary stats the analyzer's ComputeState gathers alongside them
// (min, max, sum, sum_squared). Merge assumes identical bucket
// boundaries.
type HistogramState struct {
	LowerBounds []float64 `json:"lower_bounds"`
	Counts      []int64   `json:"counts"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Sum         float64   `json:"sum"`
	SumSquared  float64   `json:"sum_squared"`
	Total       int64     `json:"total"`
}

func (s HistogramState) IsEmpty() bool { return s.Total == 0 }

func (s HistogramState) Marshal() ([]byte, error) { return json.Marshal(s) }

// Histogram buckets col into n_buckets fixed-width ranges and counts
// rows per bucket, a two-query protocol: summary stats first, then
// the bucket-assignment pass. Not
// combinable: the bucket-assignment pass is a grouped, not flat, query.
type Histogram struct {
	Column     string
	NumBuckets int
}

func NewHistogram(column string, numBuckets int) Histogram {
	if numBuckets < 1 {
		numBuckets = 1
	}
	if numBuckets > 1000 {
		numBuckets = 1000
	}
	return Histogram{Column: column, NumBuckets: numBuckets}
}

func (h Histogram) Name() string      { return "Histogram" }
func (h Histogram) Columns() []string { return []string{h.Column} }
func (h Histogram) MetricKey() string { return "histogram." + h.Column }

func (h Histogram) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	statsQ := executor.AggregateQuery{
		Table: table,
		Projections: []executor.Projection{
			{Alias: "min", Agg: core.AggMin, Column: h.Column},
			{Alias: "max", Agg: core.AggMax, Column: h.Column},
			{Alias: "count", Agg: core.AggCount, Column: h.Column},
			{Alias: "sum", Agg: core.AggSum, Column: h.Column},
			{Alias: "sum_squared", Agg: core.AggSumSquare, Column: h.Column},
		},
	}
	statsRow, err := runOne(ctx, exec, statsQ)
	if err != nil {
		return nil, err
	}
	count, _ := statsRow.Float64("count")
	if count == 0 {
		return HistogramState{}, nil
	}
	min, _ := statsRow.Float64("min")
	max, _ := statsRow.Float64("max")
	sum, _ := statsRow.Float64("sum")
	sumSquared, _ := statsRow.Float64("sum_squared")

	width := (max - min) / float64(h.NumBuckets)
	if width == 0 {
		width = 1
	}
	bounds := make([]float64, h.NumBuckets)
	for i := range bounds {
		bounds[i] = min + float64(i)*width
	}

	bucketQ := executor.AggregateQuery{
		Table: table,
		GroupBy: &executor.GroupSpec{
			Bucket: &executor.BucketSpec{Column: h.Column, LowerBounds: bounds, Width: width},
		},
		Projections: []executor.Projection{{Alias: "cnt", Agg: core.AggCount, Column: "*"}},
	}
	rows, err := runMany(ctx, exec, bucketQ)
	if err != nil {
		return nil, err
	}
	counts := make([]int64, h.NumBuckets)
	for _, r := range rows {
		idxVal, ok := r["bucket_index"]
		if !ok {
			continue
		}
		idxF, _ := idxVal.AsFloat64()
		idx := int(idxF)
		if idx < 0 || idx >= h.NumBuckets {
			continue
		}
		n, _ := r.Float64("cnt")
		counts[idx] = int64(n)
	}

	return HistogramState{
		LowerBounds: bounds,
		Counts:      counts,
		Min:         min,
		Max:         max,
		Sum:         sum,
		SumSquared:  sumSquared,
		Total:       int64(count),
	}, nil
}

func (h Histogram) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(HistogramState)
	if s.Total == 0 {
		return core.SkippedMetric("column " + h.Column + " is empty or all-null"), nil
	}
	mean := s.Sum / float64(s.Total)
	values := map[string]float64{"mean": mean, "min": s.Min, "max": s.Max}
	for i, c := range s.Counts {
		values["bucket_ratio_"+itoa(i)] = float64(c) / float64(s.Total)
	}
	return core.Metric{Primary: mean, HasPrimary: true, Values: values}, nil
}

// AsHistogramValue renders the state as the wire-stable core.HistogramValue
// a MetricValue carries.
func (s HistogramState) AsHistogramValue() *core.HistogramValue {
	return &core.HistogramValue{
		LowerBounds: s.LowerBounds,
		Counts:      s.Counts,
		Min:         s.Min,
		Max:         s.Max,
		Sum:         s.Sum,
		SumSquared:  s.SumSquared,
	}
}

// MergeStates requires identical bucket boundaries across every state
// being merged; mismatched boundaries are an
// ErrAnalyzerState, not a silently wrong histogram.
func (h Histogram) MergeStates(states []core.State) (core.State, error) {
	var out HistogramState
	first := true
	for _, st := range states {
		s := st.(HistogramState)
		if s.Total == 0 {
			continue
		}
		if first {
			out = HistogramState{
				LowerBounds: append([]float64{}, s.LowerBounds...),
				Counts:      make([]int64, len(s.Counts)),
				Min:         s.Min,
				Max:         s.Max,
			}
			first = false
		} else if !boundsEqual(out.LowerBounds, s.LowerBounds) {
			return nil, errs.ErrAnalyzerState.New("cannot merge histograms with different bucket boundaries")
		} else {
			if s.Min < out.Min {
				out.Min = s.Min
			}
			if s.Max > out.Max {
				out.Max = s.Max
			}
		}
		for i, c := range s.Counts {
			out.Counts[i] += c
		}
		out.Sum += s.Sum
		out.SumSquared += s.SumSquared
		out.Total += s.Total
	}
	return out, nil
}

func (h Histogram) UnmarshalState(data []byte) (core.State, error) {
	var s HistogramState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func boundsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ core.Analyzer = Histogram{}
