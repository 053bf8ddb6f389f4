package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers are expected to branch on.
// Handlers map these to HTTP status codes and machine-readable error codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrSessionClosed = errors.New("session is closed")
	ErrTurnInFlight  = errors.New("a turn is already in flight for this session")
)

// ValidationError reports a malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
