package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Input errors, user-fixable.
	ErrorValidation = errors.New("validation error")

	// Caller identity and ownership.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Object store, similarity search and push gateway failures.
	ErrorExternalService = errors.New("external service error")

	ErrorInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Validationf returns an error matching ErrorValidation with a formatted
// description of the offending input.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrorValidation, fmt.Sprintf(format, args...))
}

// ExternalServiceError describes a failed call to a collaborator outside the
// process. It matches both ErrorExternalService and the underlying cause
// under errors.Is.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() []error {
	return []error{ErrorExternalService, e.Err}
}
