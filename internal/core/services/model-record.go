package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/core/ports/output"
)

// ModelRecordService owns the record lifecycle ABSENT -> EXISTS -> ABSENT
// and the timestamp bookkeeping.
//
// Update is a read followed by an existence-conditional write. Two
// concurrent updates of the same id can interleave and the later write
// wins for every field it carries.
type ModelRecordService struct {
	repo ports.ModelRecordRepository
	now  func() time.Time

	idMu   sync.Mutex
	lastID time.Time
}

func NewModelRecordService(repo ports.ModelRecordRepository) *ModelRecordService {
	return &ModelRecordService{repo: repo, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *ModelRecordService) WithClock(now func() time.Time) *ModelRecordService {
	s.now = now
	return s
}

func (s *ModelRecordService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// NewModelID returns a timestamp-derived id for records created without
// one. Ids from the same service are strictly increasing, so two requests
// in one microsecond still get distinct ids.
func (s *ModelRecordService) NewModelID() string {
	t := s.now().UTC().Truncate(time.Microsecond)

	s.idMu.Lock()
	if !t.After(s.lastID) {
		t = s.lastID.Add(time.Microsecond)
	}
	s.lastID = t
	s.idMu.Unlock()

	return domain.NewTimestampModelID(t)
}

func (s *ModelRecordService) Create(ctx context.Context, id, name string, description *string, tags domain.Tags) (*domain.ModelRecord, error) {
	if err := domain.ValidateModelID(id); err != nil {
		return nil, err
	}
	if err := domain.ValidateModelName(name); err != nil {
		return nil, err
	}
	normalized, err := domain.NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	record := &domain.ModelRecord{
		ModelID:       id,
		Name:          name,
		Description:   description,
		Tags:          normalized,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Version:       domain.DefaultModelVersion,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	log.WithField("model_id", id).Debug("model record created")
	return record, nil
}

func (s *ModelRecordService) Get(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ModelRecordService) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	return s.repo.List(ctx)
}

// Update applies the supplied fields to an existing record. Keys with nil
// values are treated as not supplied. A missing record yields
// (nil, false, nil) and nothing is written.
func (s *ModelRecordService) Update(ctx context.Context, id string, updates map[string]interface{}) (*domain.ModelRecord, bool, error) {
	if err := validateUpdates(updates); err != nil {
		return nil, false, err
	}

	existing, ok, err := s.repo.GetByID(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}

	model := existing.Clone()
	if v, ok := updates[domain.FieldName]; ok && v != nil {
		model.Name = v.(string)
	}
	if v, ok := updates[domain.FieldDescription]; ok && v != nil {
		d := v.(string)
		model.Description = &d
	}
	if v, ok := updates[domain.FieldTags]; ok && v != nil {
		tags, err := toTags(v)
		if err != nil {
			return nil, false, err
		}
		model.Tags = tags
	}

	model.LastUpdatedAt = s.timestamp()
	if model.LastUpdatedAt.Before(model.CreatedAt) {
		model.LastUpdatedAt = model.CreatedAt
	}

	updated, err := s.repo.Update(ctx, model)
	if err != nil || !updated {
		// A concurrent delete between the read and the write leaves the
		// record absent; it is never recreated here.
		return nil, false, err
	}

	log.WithField("model_id", id).Debug("model record updated")
	return model, true, nil
}

// Delete removes the record and returns its last state. Deleting an absent
// id reports false.
func (s *ModelRecordService) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	record, ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if ok {
		log.WithField("model_id", id).Debug("model record deleted")
	}
	return record, ok, nil
}

func validateUpdates(updates map[string]interface{}) error {
	for field, v := range updates {
		switch field {
		case domain.FieldName:
			if v == nil {
				continue
			}
			name, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: name must be a string", domain.ErrInvalidModelName)
			}
			if err := domain.ValidateModelName(name); err != nil {
				return err
			}
		case domain.FieldDescription:
			if _, ok := v.(string); v != nil && !ok {
				return fmt.Errorf("%w: description must be a string", domain.ErrInvalidFieldType)
			}
		case domain.FieldTags:
			if v == nil {
				continue
			}
			if _, err := toTags(v); err != nil {
				return err
			}
		default:
			if domain.IsImmutableField(field) {
				return fmt.Errorf("%w: %s", domain.ErrImmutableField, field)
			}
			return fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
		}
	}
	return nil
}

func toTags(v interface{}) (domain.Tags, error) {
	switch t := v.(type) {
	case domain.Tags:
		return domain.NormalizeTags(t)
	case map[string]interface{}:
		return domain.NormalizeTags(t)
	default:
		return nil, domain.ErrInvalidTags
	}
}
