package ports

import (
	"context"
	"io"

	"model-artefact-registry/internal/core/domain"
)

// ArtefactStore is the object store holding model artefacts.
type ArtefactStore interface {
	// Put uploads body under key, replacing any existing object, and
	// returns the key.
	Put(ctx context.Context, key string, body io.Reader) (string, error)

	// Get opens the object at key. A missing object is
	// domain.ErrArtefactNotFound.
	Get(ctx context.Context, key string) (*domain.Artefact, error)

	Ping(ctx context.Context) error
}
