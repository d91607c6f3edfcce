package shared

import "errors"

var (
	// ErrNotFound indicates a referenced member or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates user input was rejected before any remote call.
	ErrValidation = errors.New("validation failed")
	// ErrSuperseded indicates a newer request replaced an in-flight one.
	ErrSuperseded = errors.New("superseded by a newer request")
)
