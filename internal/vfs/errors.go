package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrForbidden is returned when the actor lacks the required permission.
	ErrForbidden = errors.New("permission denied")

	// ErrMissingActor is returned when a guarded operation has no actor identity.
	ErrMissingActor = errors.New("missing actor identity")

	// ErrStorage is returned when the document store reports an unexpected
	// condition, such as a write whose read-back finds no document.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports malformed input at the data-model boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
