package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
	"github.com/dqguard/dqguard/telemetry"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestCsvSourceRegistersInferredSchema(t *testing.T) {
	path := writeTempCSV(t, "id,name\n1,alice\n2,bob\n")
	exec := memexec.New()

	src := NewCsvSource(path)
	require.NoError(t, src.RegisterWithTelemetry(context.Background(), exec, "people", nil))

	rows, err := exec.FetchRows(context.Background(), "people", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name, ok := rows[0]["name"].AsString()
	require.True(t, ok)
	require.Equal(t, "alice", name)
}

func TestCsvSourceWithExplicitSchemaParsesNumerics(t *testing.T) {
	path := writeTempCSV(t, "id,score\n1,9.5\n2,7.25\n")
	exec := memexec.New()

	src := NewCsvSource(path).WithSchema(map[string]core.ColumnKind{
		"id":    core.ColumnInt64,
		"score": core.ColumnFloat64,
	})
	require.NoError(t, src.RegisterWithTelemetry(context.Background(), exec, "scores", nil))

	rows, err := exec.FetchRows(context.Background(), "scores", nil, nil)
	require.NoError(t, err)
	score, ok := rows[0].Float64("score")
	require.True(t, ok)
	require.InDelta(t, 9.5, score, 1e-9)
}

func TestCsvSourceReportsRowsLoadedMetric(t *testing.T) {
	path := writeTempCSV(t, "id\n1\n2\n3\n")
	exec := memexec.New()
	buf := telemetry.NewBuffer(10)

	src := NewCsvSource(path)
	require.NoError(t, src.RegisterWithTelemetry(context.Background(), exec, "ids", buf))

	drained := buf.Drain(10)
	require.Len(t, drained, 1)
	require.Equal(t, float64(3), drained[0].Metric.Values["rows_loaded"])
}

func TestCsvSourceMissingFileFails(t *testing.T) {
	exec := memexec.New()
	src := NewCsvSource(filepath.Join(t.TempDir(), "missing.csv"))
	err := src.RegisterWithTelemetry(context.Background(), exec, "missing", nil)
	require.Error(t, err)
}
