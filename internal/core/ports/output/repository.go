package ports

import (
	"context"

	"model-artefact-registry/internal/core/domain"
)

// ModelRecordRepository is the key-value table holding model records,
// keyed by model id. Absence is reported through the bool results, never
// as an error. Backend faults wrap domain.ErrStorageUnavailable or
// domain.ErrAccessDenied.
type ModelRecordRepository interface {
	// GetByID returns (nil, false, nil) when no record exists.
	GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error)

	// Create inserts a new record and fails with
	// domain.ErrModelAlreadyExists when the id is taken.
	Create(ctx context.Context, record *domain.ModelRecord) error

	// Update overwrites an existing record. It reports false without
	// writing anything when the id does not exist.
	Update(ctx context.Context, record *domain.ModelRecord) (bool, error)

	// Delete removes a record in a single backend call and returns its last
	// state, or (nil, false, nil) when nothing was stored.
	Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error)

	// List returns every record in unspecified order. The result is not a
	// consistent snapshot under concurrent writes.
	List(ctx context.Context) ([]*domain.ModelRecord, error)

	Ping(ctx context.Context) error
}
