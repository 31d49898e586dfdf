// Package shared contains common domain errors used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Infrastructure errors
	ErrStorage     = errors.New("storage error")
	ErrRateLimited = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "curriculum"
	Op      string // Operation that failed, e.g., "Upsert", "List"
	Kind    error  // Base error type for errors.Is() checking
	Field   string // Offending input field, empty when not input related
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
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

// NewFieldError creates a validation error bound to a single input field.
// The Kind is ErrValidation; reason refines it (for example ErrValueOutOfRange).
func NewFieldError(domain, op, field string, reason error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Field:   field,
		Message: message,
		Err:     reason,
	}
}

// StorageFailure wraps a driver error as a storage error.
func StorageFailure(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStorage, "storage operation failed", err)
}

// Progress domain errors
var (
	ErrMissingUser = NewDomainError("progress", "Authenticate", ErrUnauthorized, "no authenticated user")
)

// Curriculum domain errors
var (
	ErrLessonNotFound = NewDomainError("curriculum", "Find", ErrNotFound, "lesson not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsUnauthorized checks if the error means the caller could not be identified.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsStorage checks if the error came from the storage layer.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
