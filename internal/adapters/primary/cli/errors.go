package cli

import (
	"errors"
	"fmt"

	"model-artefact-registry/internal/core/domain"
)

// CLI exit codes.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidArgs   = 2
	ExitNotFound      = 3
	ExitAccessDenied  = 4
	ExitUnavailable   = 5
	ExitAlreadyExists = 6
)

// ErrUsage marks bad command lines: wrong argument counts, unknown flags,
// unparsable values.
var ErrUsage = errors.New("invalid arguments")

func usageError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// notFoundError is what get, update and delete report for an absent id.
type notFoundError struct {
	id string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("Model with ID '%s' not found.", e.id)
}

func (e *notFoundError) Unwrap() error {
	return domain.ErrModelNotFound
}

// ExitCodeFromError maps an error returned by a command to the process
// exit code.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage), domain.IsValidation(err):
		return ExitInvalidArgs
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrArtefactNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrAccessDenied):
		return ExitAccessDenied
	case errors.Is(err, domain.ErrStorageUnavailable):
		return ExitUnavailable
	case errors.Is(err, domain.ErrModelAlreadyExists):
		return ExitAlreadyExists
	default:
		return ExitGeneralError
	}
}
