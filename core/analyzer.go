package core

import "context"

// State is the mergeable intermediate value an Analyzer produces from one
// aggregate query. Concrete analyzers define their own state struct (a
// plain record, not a subclass) and implement merge in their own
// MergeStates; State only needs to say whether it is the monoid identity
// and how to persist itself (see incremental.StateStore).
type State interface {
	// IsEmpty reports whether this is the analyzer's identity element
	// (e.g. Completeness{total:0,non_null:0}).
	IsEmpty() bool
	// Marshal serializes the state for cross-partition persistence.
	Marshal() ([]byte, error)
}

// Metric is what ComputeMetric derives from a State. Primary is the
// scalar an Assertion judges when one is defined; Values carries any
// additional named sub-metrics (entropy's normalized_entropy, a
// histogram's per-bucket ratios, ...). Skip signals that the table or
// column was empty/all-null and the constraint wrapper should report
// Skipped rather than evaluate the assertion against a meaningless value.
type Metric struct {
	Primary    float64
	HasPrimary bool
	Values     map[string]float64
	Skip       bool
	SkipReason string
}

func SkippedMetric(reason string) Metric {
	return Metric{Skip: true, SkipReason: reason}
}

func ScalarMetric(v float64) Metric {
	return Metric{Primary: v, HasPrimary: true}
}

// Analyzer is the single-aggregate primitive: it knows how to query the
// executor for one State and how to reduce a State (or several merged
// ones) to a Metric. Implementations must be pure functions of the named
// table's bytes: compute_state is deterministic and MergeStates is
// associative, commutative, and has the empty State as its unit.
type Analyzer interface {
	Name() string
	// Columns lists the columns this analyzer reads, used by the
	// optimizer to compute column-overlap and by constraints to raise
	// ErrSchema before querying.
	Columns() []string
	// MetricKey is the stable key used both as the fused-query alias
	// namespace and as the incremental state store's persistence key.
	MetricKey() string
	ComputeState(ctx context.Context, exec Executor, table string) (State, error)
	ComputeMetric(state State) (Metric, error)
	MergeStates(states []State) (State, error)
	// UnmarshalState reverses Marshal, for the incremental runner's
	// state store: it reads back a previously persisted partition's
	// bytes into the concrete State type this analyzer produces.
	UnmarshalState(data []byte) (State, error)
}

// ColumnAnalyzer is implemented by analyzers whose state can be expressed
// as a flat set of column aggregations (Count, Sum, Avg, Min, Max, StdDev,
// Variance, CountDistinct), the optimizer's fusion target. Analyzers
// that don't implement it (Histogram, Entropy, the KLL-backed Median/
// Percentile, Correlation, Compliance with a custom predicate) are never
// combinable and the optimizer places them in single-constraint groups.
type ColumnAnalyzer interface {
	Analyzer
	// Aggregations returns the column aggregations this analyzer needs,
	// in the order its ComputeState would have requested them directly.
	Aggregations() []Aggregation
	// StateFromRow reconstructs this analyzer's State from a fused
	// query's result row, given the alias each Aggregation was projected
	// under (same order as Aggregations()).
	StateFromRow(row Row, aliases []string) (State, error)
}

// AggregationType enumerates the aggregate functions the core emits.
type AggregationType int

const (
	AggCount AggregationType = iota
	AggCountDistinct
	AggSum
	AggAvg
	AggMin
	AggMax
	AggStdDev
	AggVariance
	// AggSumSquare and AggSumProduct back the Correlation analyzer's
	// single-pass sums. AggSumSquare is also one of Variance/StdDev's
	// Aggregations(), so it does appear in fused queries; AggSumProduct
	// is used only by Correlation, which is never combinable.
	AggSumSquare
	AggSumProduct
)

func (t AggregationType) String() string {
	switch t {
	case AggCount:
		return "COUNT"
	case AggCountDistinct:
		return "COUNT_DISTINCT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggStdDev:
		return "STDDEV"
	case AggVariance:
		return "VARIANCE"
	case AggSumSquare:
		return "SUM_SQUARE"
	case AggSumProduct:
		return "SUM_PRODUCT"
	default:
		return "UNKNOWN"
	}
}

// Aggregation is one (function, column) pair a ColumnAnalyzer needs
// projected into a fused query.
type Aggregation struct {
	Type   AggregationType
	Column string
}
