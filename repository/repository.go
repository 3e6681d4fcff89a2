package repository

import (
	"context"

	"github.com/dqguard/dqguard/core"
)

// Repository stores (ResultKey → ValidationReport) pairs and answers
// Query calls over them. InMemoryRepository is the
// canonical reference implementation; ConsulRepository is the
// multi-process alternative.
type Repository interface {
	Put(ctx context.Context, key ResultKey, report core.ValidationReport) error
	Get(ctx context.Context, key ResultKey) (Entry, bool, error)
	Query(ctx context.Context, q Query) ([]Entry, error)
	Delete(ctx context.Context, key ResultKey) error
}
