// Package shared contains common domain types, errors, events and the generic
// repository contract used across all domain packages.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Base error kinds. Every error produced by the gradebook core matches exactly
// one of them with errors.Is().
var (
	// ErrValidation: missing required field, out-of-range value, disallowed enum value.
	ErrValidation = errors.New("validation error")

	// ErrNotFound: a referenced student, exam, score or asset does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrPrecondition: an operation-level check failed and the whole operation was aborted.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConflict: unique key violation or a concurrently running operation.
	ErrConflict = errors.New("conflict")

	// ErrStorage: the underlying store failed.
	ErrStorage = errors.New("storage error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string   // e.g., "student", "exam", "finalize"
	Op      string   // Operation that failed, e.g., "Create", "SetStatus"
	Kind    error    // Base error kind for errors.Is() checking
	Message string   // Human-readable message
	Fields  []string // Offending fields, if any
	Err     error    // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s: %s", e.Domain, e.Op, e.Message)
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewValidationError reports the offending fields of a rejected input.
func NewValidationError(domain, op, message string, fields ...string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Message: message,
		Fields:  fields,
	}
}

// NotFound builds a not-found error naming the missing entity and key.
func NotFound(domain, op, key string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrNotFound,
		Message: fmt.Sprintf("%s %q not found", domain, key),
	}
}

// StorageFailure wraps a store error.
func StorageFailure(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStorage, "storage operation failed", err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPrecondition checks if an operation was aborted by a failed precondition.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsStorage checks if the error came from the underlying store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// FieldsOf returns the offending fields carried by err, if any.
func FieldsOf(err error) []string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
