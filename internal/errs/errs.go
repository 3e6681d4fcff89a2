// Package errs defines the error taxonomy shared by every dqguard package.
//
// Every kind is a gopkg.in/src-d/go-errors.v1 Kind: a reusable error template
// constructed once and instantiated with .New(...), optionally chained onto a
// cause with .Wrap(cause). Callers type-switch with kind.Is(err) rather than
// errors.As, matching the rest of the tree.
package errs

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrConfiguration covers invalid builder input: a threshold outside
	// [0,1], min_length > max_length, a KLL k < 2, and similar. Reported at
	// construction time, never during evaluation.
	ErrConfiguration = errors.NewKind("configuration error: %s")

	// ErrSchema is returned when a constraint or analyzer references a
	// column that is absent from the table named by the ambient
	// ValidationContext. The trailing argument is a similartext suggestion
	// suffix (", maybe you mean X?"), empty when no close name exists.
	ErrSchema = errors.NewKind("schema error: column %q not found in table %q%s")

	// ErrTableNotFound is returned when the ambient table name is not
	// registered with the executor at all.
	ErrTableNotFound = errors.NewKind("schema error: table %q is not registered%s")

	// ErrConstraintEvaluation wraps an executor query failure, a result
	// downcast failure, or an unsafe-predicate rejection encountered while
	// evaluating one constraint.
	ErrConstraintEvaluation = errors.NewKind("constraint evaluation failed: %s")

	// ErrUnsafePredicate is a specific ErrConstraintEvaluation cause: the
	// compliance predicate failed validation before it reached the executor.
	ErrUnsafePredicate = errors.NewKind("unsafe predicate rejected: %s")

	// ErrAnalyzerState signals a state-merge failure, e.g. merging two
	// histograms with different bucket boundaries. The merge invariants
	// make this unreachable in practice; it is still reported rather
	// than panicking.
	ErrAnalyzerState = errors.NewKind("analyzer state error: %s")

	// ErrRepository is a generic storage-layer failure in the repository.
	ErrRepository = errors.NewKind("repository error: %s")

	// ErrQueryRange is returned by the repository query builder when
	// between(lo, hi) is called with lo > hi.
	ErrQueryRange = errors.NewKind("invalid query range: lo %v is after hi %v")

	// ErrKeyCollision is returned when a ResultKey with the same
	// normalized (timestamp, tag-set) representation already exists.
	ErrKeyCollision = errors.NewKind("result key collision at timestamp %d")

	// ErrValidation covers input validation failures outside the
	// constraint-builder path, e.g. a CSV or HTTP data source that cannot
	// be read or parsed.
	ErrValidation = errors.NewKind("validation error: %s")

	// ErrInternal marks an invariant violation: something the code assumes
	// can never happen, such as a fused query returning zero rows when a
	// non-empty result was required.
	ErrInternal = errors.NewKind("internal error: %s")

	// ErrBufferOverflow is returned by the telemetry bounded queue when a
	// push is refused because the queue is at capacity.
	ErrBufferOverflow = errors.NewKind("telemetry buffer overflow: capacity %d exceeded")

	// ErrEmptySketch is returned by a KLL quantile query against a sketch
	// that has received no finite inserts.
	ErrEmptySketch = errors.NewKind("quantile sketch is empty")

	// ErrInvalidQuantile is returned when a KLL quantile query's phi is
	// outside [0, 1].
	ErrInvalidQuantile = errors.NewKind("invalid quantile %v: must be in [0, 1]")

	// ErrIncompatibleSketch is returned when merging two KLL sketches built
	// with different k parameters.
	ErrIncompatibleSketch = errors.NewKind("incompatible sketch: k=%d cannot merge with k=%d")
)
