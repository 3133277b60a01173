package cli

import (
	"context"
	"io"

	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/core/services"
)

// Registry is everything modelctl can do. It is served either in process
// by the core services or remotely by the HTTP API client.
type Registry interface {
	Create(ctx context.Context, id, name string, description *string, tags domain.Tags) (*domain.ModelRecord, error)
	Get(ctx context.Context, id string) (*domain.ModelRecord, bool, error)
	List(ctx context.Context) ([]*domain.ModelRecord, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) (*domain.ModelRecord, bool, error)
	Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error)
	UploadArtefact(ctx context.Context, id string, body io.Reader) (string, error)
	DownloadArtefact(ctx context.Context, id string) (*domain.Artefact, error)
}

// Opener builds the Registry for one command run. The returned func
// releases whatever the registry holds open.
type Opener func(ctx context.Context) (Registry, func(), error)

// LocalRegistry runs operations directly against the configured stores.
type LocalRegistry struct {
	*services.ModelRecordService
	artefacts *services.ModelArtefactService
}

func NewLocalRegistry(records *services.ModelRecordService, artefacts *services.ModelArtefactService) *LocalRegistry {
	return &LocalRegistry{ModelRecordService: records, artefacts: artefacts}
}

func (r *LocalRegistry) UploadArtefact(ctx context.Context, id string, body io.Reader) (string, error) {
	return r.artefacts.Upload(ctx, id, body)
}

func (r *LocalRegistry) DownloadArtefact(ctx context.Context, id string) (*domain.Artefact, error) {
	return r.artefacts.Download(ctx, id)
}
