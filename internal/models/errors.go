package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced user, ticker or row is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique username or email is already taken.
	ErrConflict = errors.New("already exists")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("incorrect password")
)

// ValidationError describes malformed input rejected before any store mutation
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
