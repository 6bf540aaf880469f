package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email and for a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("unable to login")
	// ErrUnauthorized is returned when a bearer token is missing, forged, or
	// no longer active.
	ErrUnauthorized = errors.New("please authenticate")
	// ErrNotFound is returned for owner-scoped misses. It does not distinguish
	// records that exist for someone else.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned when an update names a field outside the
	// entity's mutable set. Nothing is applied.
	ErrInvalidOperation = errors.New("invalid updates")
)

// ValidationError reports a field-level constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
