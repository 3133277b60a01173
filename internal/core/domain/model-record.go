package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultModelVersion = 1
	maxModelIDLength    = 255
	maxModelNameLength  = 255
)

// ModelRecord is the metadata row stored per model id.
type ModelRecord struct {
	ModelID       string    `json:"model_id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Tags          Tags      `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Version       int       `json:"version"`
}

// Clone returns a deep copy so callers can mutate the result without
// touching a record another goroutine still holds.
func (m *ModelRecord) Clone() *ModelRecord {
	if m == nil {
		return nil
	}
	out := *m
	if m.Description != nil {
		d := *m.Description
		out.Description = &d
	}
	out.Tags = m.Tags.Clone()
	return &out
}

// Mutable fields accepted by a partial update.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldTags        = "tags"
)

var immutableFields = map[string]bool{
	"model_id":        true,
	"created_at":      true,
	"last_updated_at": true,
	"version":         true,
}

func IsImmutableField(field string) bool {
	return immutableFields[field]
}

func ValidateModelID(id string) error {
	if id == "" || len(id) > maxModelIDLength {
		return ErrInvalidModelID
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidModelID
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrInvalidModelID
		}
	}
	return nil
}

func ValidateModelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidModelName
	}
	if len(name) > maxModelNameLength {
		return fmt.Errorf("%w: at most %d characters", ErrInvalidModelName, maxModelNameLength)
	}
	return nil
}

// NewTimestampModelID derives a server-side id from t, formatted as
// "<unix seconds>.<microseconds>".
func NewTimestampModelID(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}
