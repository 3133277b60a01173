package dto

import (
	"time"

	"model-artefact-registry/internal/core/domain"
)

// Timestamps are rendered with microsecond precision in UTC.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// ============================================================================
// Request DTOs
// ============================================================================

type CreateModelRecordRequest struct {
	ModelID     string                 `json:"model_id"`
	Name        string                 `json:"name" binding:"required"`
	Description *string                `json:"description"`
	Tags        map[string]interface{} `json:"tags"`
}

// ============================================================================
// Response DTOs
// ============================================================================

type ModelRecordResponse struct {
	ModelID       string      `json:"model_id"`
	Name          string      `json:"name"`
	Description   *string     `json:"description"`
	Tags          domain.Tags `json:"tags"`
	CreatedAt     string      `json:"created_at"`
	LastUpdatedAt string      `json:"last_updated_at"`
	Version       int         `json:"version"`
}

type ListModelRecordsResponse struct {
	Items []ModelRecordResponse `json:"items"`
	Total int                   `json:"total"`
}

type ArtefactUploadResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func ToModelRecordResponse(m *domain.ModelRecord) ModelRecordResponse {
	return ModelRecordResponse{
		ModelID:       m.ModelID,
		Name:          m.Name,
		Description:   m.Description,
		Tags:          m.Tags,
		CreatedAt:     m.CreatedAt.UTC().Format(TimeFormat),
		LastUpdatedAt: m.LastUpdatedAt.UTC().Format(TimeFormat),
		Version:       m.Version,
	}
}

// ToModelRecord converts a response back into a domain record. Tag values
// decoded from JSON are normalised back to strings and int64.
func (r ModelRecordResponse) ToModelRecord() (*domain.ModelRecord, error) {
	createdAt, err := time.Parse(TimeFormat, r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(TimeFormat, r.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	tags, err := domain.NormalizeTags(r.Tags)
	if err != nil {
		return nil, err
	}
	return &domain.ModelRecord{
		ModelID:       r.ModelID,
		Name:          r.Name,
		Description:   r.Description,
		Tags:          tags,
		CreatedAt:     createdAt.UTC(),
		LastUpdatedAt: updatedAt.UTC(),
		Version:       r.Version,
	}, nil
}
