package catalog

import (
	"context"
)

// Repository persists fixture models.
type Repository interface {
	// Get returns ErrCodeFixtureModelNotFound when id is unknown.
	Get(ctx context.Context, id string) (*FixtureModel, error)
	List(ctx context.Context, limit, offset int) ([]*FixtureModel, int64, error)
	Upsert(ctx context.Context, m *FixtureModel) error
	// BulkImport loads models in one round trip and returns the row count.
	BulkImport(ctx context.Context, models []*FixtureModel) (int64, error)
}
