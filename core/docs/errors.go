package docs

import (
	"errors"
	"fmt"
)

// Terminal domain errors: never retried, surfaced to the caller as-is.
var (
	ErrPermissionDenied = errors.New("insufficient permissions")
	ErrCrossDepartment  = errors.New("cross-department access denied")
	ErrNotFound         = errors.New("document not found")
)

// ValidationError is a pre-flight rejection; the user must correct input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps an object-store failure. During create it aborts the
// operation; during delete it is logged only.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError wraps a metadata write failure. During create it triggers
// the compensating object removal before being surfaced.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
