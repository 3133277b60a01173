package domain

import "errors"

// ============================================================================
// Model Record Errors
// ============================================================================

// Not found errors. Services report absent records as a (nil, false, nil)
// result; these values only exist for the transport layers.
var (
	ErrModelNotFound    = errors.New("Model not found")
	ErrArtefactNotFound = errors.New("Model artefact not found")
)

// Validation errors
var (
	ErrInvalidModelID   = errors.New("model id must be 1-255 characters without '/', '\\', '..' or control characters")
	ErrInvalidModelName = errors.New("model name is required")
	ErrInvalidTags      = errors.New("tag values must be strings or integers")
	ErrImmutableField   = errors.New("field cannot be updated")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidFieldType = errors.New("invalid field value")
	ErrMissingArtefact  = errors.New("artefact file is required")
)

// Conflict errors
var (
	ErrModelAlreadyExists = errors.New("model with this id already exists")
)

// ============================================================================
// Access Errors
// ============================================================================

var (
	ErrUnauthorized = errors.New("Incorrect username or password")
	ErrAccessDenied = errors.New("storage access denied")
)

// ============================================================================
// Storage Errors
// ============================================================================

// ErrStorageUnavailable marks backend I/O failures. It is the only class
// that callers may retry.
var ErrStorageUnavailable = errors.New("storage backend unavailable")

func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidModelID) ||
		errors.Is(err, ErrInvalidModelName) ||
		errors.Is(err, ErrInvalidTags) ||
		errors.Is(err, ErrImmutableField) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrInvalidFieldType) ||
		errors.Is(err, ErrMissingArtefact)
}
