// Package apperrors defines the error taxonomy shared by the triage and
// dispatch pipeline. Every failure is attributable to a specific entity so
// that partial failure in a batch never obscures which items need attention.
package apperrors

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError reports a guard violation on a single item. In batch
// operations it fails that item only, never the whole batch.
type ValidationError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

func NewValidation(entity, id, reason string) error {
	return &ValidationError{Entity: entity, ID: id, Reason: reason}
}

// ConflictError reports contention on a shared resource, such as the
// automation lock already being held or losing a create race.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

func NewConflict(resource, reason string) error {
	return &ConflictError{Resource: resource, Reason: reason}
}

// TransportError wraps a send failure for a specific outbox entry.
type TransportError struct {
	EntryID string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send failed for outbox entry %s: %v", e.EntryID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransport(entryID string, err error) error {
	return &TransportError{EntryID: entryID, Err: err}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
