// Package errs defines the error taxonomy shared across the pipeline.
// Handlers map these onto HTTP statuses; nothing in the core falls through
// with an untyped error.
package errs

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a referenced record (lead, chatbot, conversation,
// message) is absent. Surfaced to the caller, never retried.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// NotFound constructs a NotFoundError.
func NotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError indicates a malformed or out-of-range input rejected at
// the boundary before it reaches persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation constructs a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamModelError indicates the model provider failed or timed out. The
// pipeline recovers from it locally with a degraded result; it never aborts
// a request on its own.
type UpstreamModelError struct {
	Err error
}

func (e *UpstreamModelError) Error() string {
	return fmt.Sprintf("model provider: %v", e.Err)
}

func (e *UpstreamModelError) Unwrap() error { return e.Err }

// UpstreamModel wraps err as an UpstreamModelError.
func UpstreamModel(err error) error {
	return &UpstreamModelError{Err: err}
}

// IsUpstreamModel reports whether err is (or wraps) an UpstreamModelError.
func IsUpstreamModel(err error) bool {
	var ue *UpstreamModelError
	return errors.As(err, &ue)
}

// StorageError indicates a persistence failure. Fatal for the current
// request; writes already committed stand.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError tagged with the failing operation.
func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
