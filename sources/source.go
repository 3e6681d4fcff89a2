// Package sources implements the data source side of the engine:
// something that registers a named table against an
// executor and can describe the schema it published. CSV and HTTP
// sources materialize an in-memory table directly; JoinedSource
// registers two sources and then publishes a view joining their tables.
package sources

import (
	"context"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor"
	"github.com/dqguard/dqguard/telemetry"
)

// Registrar is the executor capability a source needs: RegisterTable
// to publish what it loaded, FetchRows for JoinedSource to read back
// two already-registered tables and combine them.
type Registrar interface {
	core.Executor
	executor.RowFetcher
}

// Source registers one named table against exec, optionally reporting
// a row-count metric to buf (buf may be nil). Schema reports the
// published column names when known ahead of registration; joined
// sources return (nil, false) since their shape depends on the join.
type Source interface {
	RegisterWithTelemetry(ctx context.Context, exec Registrar, name string, buf *telemetry.Buffer) error
	Schema() ([]string, bool)
	Description() string
}
