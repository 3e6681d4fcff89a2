package core

import "context"

// ctxKey is unexported so ValidationContext values can only be set and
// read through the functions below, the Go equivalent of task-local
// storage scoped to one Suite run.
type ctxKey struct{ name string }

var tableNameKey = ctxKey{"dqguard.table_name"}

// WithTableName establishes the ambient table name for the remainder of
// ctx's lifetime. The runner calls this once per Suite.Run; every
// constraint evaluated from a context derived from it sees the same
// table name without it being threaded through Evaluate's signature.
// Context values are immutable and inherited by child goroutines, so
// constraints evaluated concurrently each see their parent's binding and
// never leak it to sibling runs sharing the same Executor.
func WithTableName(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, tableNameKey, table)
}

// TableName reads the ambient table name. ok is false outside the
// dynamic extent of a Suite.Run call.
func TableName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tableNameKey).(string)
	return v, ok
}
