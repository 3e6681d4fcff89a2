package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
)

func sampleReport(suite string, metric float64) core.ValidationReport {
	return core.ValidationReport{
		SuiteName: suite,
		Timestamp: time.Now(),
		Metrics: core.ValidationMetrics{
			TotalChecks:  1,
			PassedChecks: 1,
			CustomMetrics: map[string]float64{
				"completeness": metric,
			},
		},
	}
}

func TestInMemoryRepositoryPutGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	key := NewResultKey(1000, map[string]string{"env": "prod"})

	require.NoError(t, repo.Put(ctx, key, sampleReport("sales", 0.9)))

	entry, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sales", entry.Report.SuiteName)
}

func TestInMemoryRepositoryPutDetectsCollision(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	key := NewResultKey(1000, map[string]string{"env": "prod", "region": "eu"})

	require.NoError(t, repo.Put(ctx, key, sampleReport("sales", 0.9)))

	// Same timestamp, same tags built from a differently ordered map:
	// the normalized representation must still collide.
	dup := NewResultKey(1000, map[string]string{"region": "eu", "env": "prod"})
	err := repo.Put(ctx, dup, sampleReport("sales", 0.5))
	require.Error(t, err)
}

func TestInMemoryRepositoryDistinctTagsDoNotCollide(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, NewResultKey(1000, map[string]string{"env": "prod"}), sampleReport("sales", 0.9)))
	require.NoError(t, repo.Put(ctx, NewResultKey(1000, map[string]string{"env": "staging"}), sampleReport("sales", 0.5)))

	q, err := NewQuery().Tag("env", "staging").Build()
	require.NoError(t, err)
	entries, err := repo.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.InDelta(t, 0.5, entries[0].Report.Metrics.CustomMetrics["completeness"], 1e-9)
}

func TestInMemoryRepositoryQueryBetween(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300, 400} {
		require.NoError(t, repo.Put(ctx, NewResultKey(ts, nil), sampleReport("sales", float64(i))))
	}

	q, err := NewQuery().Between(150, 350).Build()
	require.NoError(t, err)
	entries, err := repo.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(200), entries[0].Key.TimestampMS)
	require.Equal(t, int64(300), entries[1].Key.TimestampMS)
}

func TestQueryBuilderRejectsInvertedBetween(t *testing.T) {
	_, err := NewQuery().Between(500, 100).Build()
	require.Error(t, err)
}

func TestInMemoryRepositoryQuerySortDescendingAndPaginate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for _, ts := range []int64{100, 200, 300, 400, 500} {
		require.NoError(t, repo.Put(ctx, NewResultKey(ts, nil), sampleReport("sales", float64(ts))))
	}

	q, err := NewQuery().SortOrder(SortDescending).Limit(2).Offset(1).Build()
	require.NoError(t, err)
	entries, err := repo.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(400), entries[0].Key.TimestampMS)
	require.Equal(t, int64(300), entries[1].Key.TimestampMS)
}

func TestInMemoryRepositoryQueryByAnalyzerName(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, NewResultKey(100, nil), sampleReport("sales", 0.9)))
	other := core.ValidationReport{SuiteName: "inventory", Timestamp: time.Now(), Metrics: core.ValidationMetrics{CustomMetrics: map[string]float64{"uniqueness": 1}}}
	require.NoError(t, repo.Put(ctx, NewResultKey(200, nil), other))

	q, err := NewQuery().AnalyzerNames("completeness").Build()
	require.NoError(t, err)
	entries, err := repo.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sales", entries[0].Report.SuiteName)
}

func TestInMemoryRepositoryDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	key := NewResultKey(1000, map[string]string{"env": "prod"})
	require.NoError(t, repo.Put(ctx, key, sampleReport("sales", 0.9)))

	require.NoError(t, repo.Delete(ctx, key))
	_, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}
