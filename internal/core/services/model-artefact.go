package services

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/core/ports/output"
)

// ModelArtefactService moves artefact bytes between callers and the object
// store. Artefacts are independent of model records: uploading for an id
// without a record, or keeping an artefact after its record is deleted, is
// allowed.
type ModelArtefactService struct {
	store ports.ArtefactStore
}

func NewModelArtefactService(store ports.ArtefactStore) *ModelArtefactService {
	return &ModelArtefactService{store: store}
}

// Upload streams body into the model's artefact slot, overwriting any
// previous artefact, and returns the object key.
func (s *ModelArtefactService) Upload(ctx context.Context, modelID string, body io.Reader) (string, error) {
	if err := domain.ValidateModelID(modelID); err != nil {
		return "", err
	}
	if body == nil {
		return "", domain.ErrMissingArtefact
	}

	key, err := s.store.Put(ctx, domain.ArtefactKey(modelID), body)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"model_id": modelID, "key": key}).Info("artefact uploaded")
	return key, nil
}

// Download opens the model's artefact. The caller closes the body.
func (s *ModelArtefactService) Download(ctx context.Context, modelID string) (*domain.Artefact, error) {
	if err := domain.ValidateModelID(modelID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, domain.ArtefactKey(modelID))
}
