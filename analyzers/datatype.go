package analyzers

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/internal/errs"
)

var (
	integerPattern      = regexp.MustCompile(`^-?\d+$`)
	floatPattern        = regexp.MustCompile(`^-?\d+\.\d+$`)
	booleanPattern      = regexp.MustCompile(`(?i)^(true|false)$`)
	isoDatePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)
)

// classify assigns the type label DataType counts by:
// integer, float, boolean, iso_date, iso_timestamp, or string.
func classify(v core.MetricValue) string {
	switch v.Kind() {
	case core.KindLong:
		return "integer"
	case core.KindDouble:
		return "float"
	case core.KindBoolean:
		return "boolean"
	case core.KindString:
		s, _ := v.AsString()
		switch {
		case integerPattern.MatchString(s):
			return "integer"
		case floatPattern.MatchString(s):
			return "float"
		case booleanPattern.MatchString(s):
			return "boolean"
		case isoTimestampPattern.MatchString(s):
			return "iso_timestamp"
		case isoDatePattern.MatchString(s):
			return "iso_date"
		default:
			return "string"
		}
	default:
		return "string"
	}
}

// DataTypeState is a per-type frequency count over col's non-null values.
type DataTypeState struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64             `json:"total"`
}

func (s DataTypeState) IsEmpty() bool { return s.Total == 0 }

func (s DataTypeState) Marshal() ([]byte, error) { return json.Marshal(s) }

func (s DataTypeState) dominant() (string, int64) {
	var bestType string
	var bestCount int64 = -1
	for t, n := range s.Counts {
		if n > bestCount || (n == bestCount && t < bestType) {
			bestType, bestCount = t, n
		}
	}
	return bestType, bestCount
}

func computeDataTypeState(ctx context.Context, exec core.Executor, table, column string) (DataTypeState, error) {
	fetcher, ok := exec.(executor.RowFetcher)
	if !ok {
		return DataTypeState{}, errs.ErrInternal.New("executor does not support row-level access required by DataType classification")
	}
	rows, err := fetcher.FetchRows(ctx, table, []string{column}, nil)
	if err != nil {
		return DataTypeState{}, errs.ErrConstraintEvaluation.New(err.Error())
	}
	counts := map[string]int64{}
	var total int64
	for _, r := range rows {
		v, ok := r[column]
		if !ok || v.IsNone() {
			continue
		}
		counts[classify(v)]++
		total++
	}
	return DataTypeState{Counts: counts, Total: total}, nil
}

func unmarshalDataTypeState(data []byte) (core.State, error) {
	var s DataTypeState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func mergeDataTypeStates(states []core.State) DataTypeState {
	out := DataTypeState{Counts: map[string]int64{}}
	for _, st := range states {
		s := st.(DataTypeState)
		out.Total += s.Total
		for t, n := range s.Counts {
			out.Counts[t] += n
		}
	}
	return out
}

// DataType classifies col's non-null values by pattern and reports the
// dominant type's coverage ratio as its primary metric, with a per-type
// breakdown in Values. Not combinable: classification is
// row-level pattern matching, not a flat aggregate.
type DataType struct{ Column string }

func NewDataType(column string) DataType { return DataType{Column: column} }

func (d DataType) Name() string      { return "DataType" }
func (d DataType) Columns() []string { return []string{d.Column} }
func (d DataType) MetricKey() string { return "datatype." + d.Column }

func (d DataType) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return computeDataTypeState(ctx, exec, table, d.Column)
}

func (d DataType) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(DataTypeState)
	if s.Total == 0 {
		return core.SkippedMetric("column " + d.Column + " is empty or all-null"), nil
	}
	_, count := s.dominant()
	values := map[string]float64{}
	for t, n := range s.Counts {
		values[t+"_ratio"] = float64(n) / float64(s.Total)
	}
	return core.Metric{Primary: float64(count) / float64(s.Total), HasPrimary: true, Values: values}, nil
}

func (d DataType) MergeStates(states []core.State) (core.State, error) {
	return mergeDataTypeStates(states), nil
}

func (d DataType) UnmarshalState(data []byte) (core.State, error) { return unmarshalDataTypeState(data) }

// DataTypeConsistency passes iff the dominant non-null type covers at
// least Threshold of col's non-null values.
type DataTypeConsistency struct {
	Column    string
	Threshold float64
}

func NewDataTypeConsistency(column string, threshold float64) DataTypeConsistency {
	return DataTypeConsistency{Column: column, Threshold: threshold}
}

func (d DataTypeConsistency) Name() string      { return "DataTypeConsistency" }
func (d DataTypeConsistency) Columns() []string { return []string{d.Column} }
func (d DataTypeConsistency) MetricKey() string { return "datatype_consistency." + d.Column }

func (d DataTypeConsistency) ComputeState(ctx context.Context, exec core.Executor, table string) (core.State, error) {
	return computeDataTypeState(ctx, exec, table, d.Column)
}

func (d DataTypeConsistency) ComputeMetric(state core.State) (core.Metric, error) {
	s := state.(DataTypeState)
	if s.Total == 0 {
		return core.SkippedMetric("column " + d.Column + " is empty or all-null"), nil
	}
	_, count := s.dominant()
	ratio := float64(count) / float64(s.Total)
	return core.Metric{
		Primary:    ratio,
		HasPrimary: true,
		Values:     map[string]float64{"dominant_ratio": ratio},
	}, nil
}

func (d DataTypeConsistency) MergeStates(states []core.State) (core.State, error) {
	return mergeDataTypeStates(states), nil
}

func (d DataTypeConsistency) UnmarshalState(data []byte) (core.State, error) {
	return unmarshalDataTypeState(data)
}

var (
	_ core.Analyzer = DataType{}
	_ core.Analyzer = DataTypeConsistency{}
)
