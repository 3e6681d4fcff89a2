package repository

import (
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/internal/errs"
)

// SortOrder controls the order Query results are returned in, by
// ResultKey.TimestampMS.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Entry is one stored (key, report) pair returned by a query.
type Entry struct {
	Key    ResultKey
	Report core.ValidationReport
}

// Query is the built, immutable filter a Repository.Query call runs.
// Build it with QueryBuilder.
type Query struct {
	after, before *int64
	betweenLo     *int64
	betweenHi     *int64
	tags          map[string]string
	analyzerNames []string
	limit, offset int
	sort          SortOrder
}

// matches reports whether key passes every filter this query carries.
// Entries that fail any filter are excluded before pagination is
// applied.
func (q Query) matches(key ResultKey, report core.ValidationReport) bool {
	ts := key.TimestampMS
	if q.after != nil && ts <= *q.after {
		return false
	}
	if q.before != nil && ts >= *q.before {
		return false
	}
	if q.betweenLo != nil && (ts < *q.betweenLo || ts > *q.betweenHi) {
		return false
	}
	if !key.hasTags(q.tags) {
		return false
	}
	if len(q.analyzerNames) > 0 && !reportMentionsAnyAnalyzer(report, q.analyzerNames) {
		return false
	}
	return true
}

// reportMentionsAnyAnalyzer reports whether any of names appears as a
// custom metric key or an issue's constraint name in report; the
// closest a ValidationReport comes to carrying "analyzer names",
// since a report only records constraint-level results, not the
// analyzers bound underneath them.
func reportMentionsAnyAnalyzer(report core.ValidationReport, names []string) bool {
	for _, name := range names {
		if _, ok := report.Metrics.CustomMetrics[name]; ok {
			return true
		}
		for _, issue := range report.Issues {
			if issue.ConstraintName == name {
				return true
			}
		}
	}
	return false
}

// QueryBuilder builds a Query filtering/paginating stored reports.
type QueryBuilder struct {
	q   Query
	err error
}

func NewQuery() *QueryBuilder {
	return &QueryBuilder{q: Query{sort: SortAscending}}
}

// After restricts results to keys with timestamp strictly after ms.
func (b *QueryBuilder) After(ms int64) *QueryBuilder {
	b.q.after = &ms
	return b
}

// Before restricts results to keys with timestamp strictly before ms.
func (b *QueryBuilder) Before(ms int64) *QueryBuilder {
	b.q.before = &ms
	return b
}

// Between restricts results to the inclusive range [lo, hi]. lo > hi
// fails at Build time with ErrQueryRange.
func (b *QueryBuilder) Between(lo, hi int64) *QueryBuilder {
	b.q.betweenLo = &lo
	b.q.betweenHi = &hi
	if lo > hi {
		b.err = errs.ErrQueryRange.New(lo, hi)
	}
	return b
}

// Tag restricts results to keys carrying name=value.
func (b *QueryBuilder) Tag(name, value string) *QueryBuilder {
	if b.q.tags == nil {
		b.q.tags = map[string]string{}
	}
	b.q.tags[name] = value
	return b
}

// AnalyzerNames restricts results to reports that mention at least one
// of names (see reportMentionsAnyAnalyzer).
func (b *QueryBuilder) AnalyzerNames(names ...string) *QueryBuilder {
	b.q.analyzerNames = append(b.q.analyzerNames, names...)
	return b
}

// Limit caps the number of entries a Query returns; 0 means unbounded.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.q.limit = n
	return b
}

// Offset skips the first n matching entries (after sorting), for
// pagination over repeated queries.
func (b *QueryBuilder) Offset(n int) *QueryBuilder {
	b.q.offset = n
	return b
}

func (b *QueryBuilder) SortOrder(order SortOrder) *QueryBuilder {
	b.q.sort = order
	return b
}

func (b *QueryBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return b.q, nil
}

// paginate applies offset then limit to an already-sorted entry slice.
// Shared by InMemoryRepository.Query and ConsulRepository.Query.
func paginate(entries []Entry, offset, limit int) []Entry {
	if offset > 0 {
		if offset >= len(entries) {
			return nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
