package incremental

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/analyzers"
	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
)

// partitionTable builds a table with rows id=from..to, value=from..to, so
// Mean(value) over the full combined range is easy to check by hand.
func partitionTable(from, to int64) *memexec.Table {
	schema := map[string]core.ColumnKind{
		"id":    core.ColumnInt64,
		"value": core.ColumnInt64,
	}
	tbl := memexec.NewTable("data", schema, []string{"id", "value"})
	for i := from; i <= to; i++ {
		tbl.AppendRow(map[string]interface{}{"id": i, "value": i})
	}
	return tbl
}

func newRunner(t *testing.T, store StateStore) *Runner {
	t.Helper()
	return New(store, []core.Analyzer{analyzers.NewSize(), analyzers.NewMean("value")}, DefaultIncrementalConfig())
}

// TestAnalyzePartitionsMergesAcrossPartitions matches scenario 6: partition
// a = rows 1..500, partition b = rows 501..1000, registering Size and
// Mean(value); analyzing both partitions then merging must report
// size=1000, mean.value=500.5.
func TestAnalyzePartitionsMergesAcrossPartitions(t *testing.T) {
	store := NewFSStateStore(t.TempDir())
	r := newRunner(t, store)
	ctx := context.Background()

	execA := memexec.New()
	require.NoError(t, execA.RegisterTable("data", partitionTable(1, 500)))
	_, err := r.AnalyzePartition(ctx, execA, "data", "a")
	require.NoError(t, err)

	execB := memexec.New()
	require.NoError(t, execB.RegisterTable("data", partitionTable(501, 1000)))
	_, err = r.AnalyzePartition(ctx, execB, "data", "b")
	require.NoError(t, err)

	merged, err := r.AnalyzePartitions(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.InDelta(t, 1000, merged.Metrics["size"], 1e-9)
	require.InDelta(t, 500.5, merged.Metrics["mean.value"], 1e-9)
	require.Empty(t, merged.Errors)
}

func TestAnalyzePartitionReturnsFreshMetrics(t *testing.T) {
	store := NewFSStateStore(t.TempDir())
	r := newRunner(t, store)
	ctx := context.Background()

	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", partitionTable(1, 10)))

	result, err := r.AnalyzePartition(ctx, exec, "data", "day1")
	require.NoError(t, err)
	require.InDelta(t, 10, result.Metrics["size"], 1e-9)
	require.InDelta(t, 5.5, result.Metrics["mean.value"], 1e-9)

	partitions, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"day1"}, partitions)
}

// TestAnalyzeIncrementalAppendsToSamePartition matches "append new daily
// batch to today's running state": two AnalyzeIncremental calls against
// the same partition must behave like one AnalyzePartitions over both
// batches.
func TestAnalyzeIncrementalAppendsToSamePartition(t *testing.T) {
	store := NewFSStateStore(t.TempDir())
	r := newRunner(t, store)
	ctx := context.Background()

	exec1 := memexec.New()
	require.NoError(t, exec1.RegisterTable("data", partitionTable(1, 500)))
	_, err := r.AnalyzeIncremental(ctx, exec1, "data", "today")
	require.NoError(t, err)

	exec2 := memexec.New()
	require.NoError(t, exec2.RegisterTable("data", partitionTable(501, 1000)))
	result, err := r.AnalyzeIncremental(ctx, exec2, "data", "today")
	require.NoError(t, err)

	require.InDelta(t, 1000, result.Metrics["size"], 1e-9)
	require.InDelta(t, 500.5, result.Metrics["mean.value"], 1e-9)
}

func TestAnalyzePartitionsBatchesLargePartitionLists(t *testing.T) {
	store := NewFSStateStore(t.TempDir())
	cfg := DefaultIncrementalConfig()
	cfg.MaxMergeBatchSize = 2
	r := New(store, []core.Analyzer{analyzers.NewSize()}, cfg)
	ctx := context.Background()

	names := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, name := range names {
		exec := memexec.New()
		require.NoError(t, exec.RegisterTable("data", partitionTable(1, 10)))
		_, err := r.AnalyzePartition(ctx, exec, "data", name)
		require.NoError(t, err)
	}

	merged, err := r.AnalyzePartitions(ctx, names)
	require.NoError(t, err)
	require.InDelta(t, 50, merged.Metrics["size"], 1e-9)
}

func TestAnalyzePartitionsMissingPartitionIsIgnored(t *testing.T) {
	store := NewFSStateStore(t.TempDir())
	r := newRunner(t, store)
	ctx := context.Background()

	exec := memexec.New()
	require.NoError(t, exec.RegisterTable("data", partitionTable(1, 10)))
	_, err := r.AnalyzePartition(ctx, exec, "data", "a")
	require.NoError(t, err)

	merged, err := r.AnalyzePartitions(ctx, []string{"a", "never-written"})
	require.NoError(t, err)
	require.InDelta(t, 10, merged.Metrics["size"], 1e-9)
}

func TestAnalyzePartitionWithBoltStore(t *testing.T) {
	dbPath := t.TempDir() + "/state.db"
	store, err := NewBoltStateStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	r := newRunner(t, store)
	ctx := context.Background()

	execA := memexec.New()
	require.NoError(t, execA.RegisterTable("data", partitionTable(1, 500)))
	_, err = r.AnalyzePartition(ctx, execA, "data", "a")
	require.NoError(t, err)

	execB := memexec.New()
	require.NoError(t, execB.RegisterTable("data", partitionTable(501, 1000)))
	_, err = r.AnalyzePartition(ctx, execB, "data", "b")
	require.NoError(t, err)

	merged, err := r.AnalyzePartitions(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.InDelta(t, 1000, merged.Metrics["size"], 1e-9)
	require.InDelta(t, 500.5, merged.Metrics["mean.value"], 1e-9)

	partitions, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, partitions)
}
