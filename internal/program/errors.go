package program

import (
	"fmt"

	"github.com/tierline/tierline/internal/shared"
)

// NotFoundError reports a missing member or document.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap lets callers match shared.ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return shared.ErrNotFound
}

// ValidationError reports user input rejected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match shared.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

// DecodeError reports a document that does not satisfy its schema.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("program: %s/%s: field %s: %s", e.Collection, e.ID, e.Field, e.Reason)
}
