package errors

import (
	"errors"
	"fmt"
)

// The reconciliation engine classifies every failure into one of four
// categories. The category decides the HTTP response and therefore whether
// the provider redelivers the event:
//
//   - AuthenticationError, ValidationError: permanent, 4xx, never retried.
//   - NotFoundError: acknowledged with a deferred outcome, 2xx.
//   - TransientError: 5xx, the provider redelivers with backoff.
//
// Anything a handler returns that is not explicitly classified is treated
// as transient, since misclassifying a retryable condition as permanent
// silently drops revenue-affecting events.

// AuthenticationError indicates a bad signature or stale timestamp on an
// inbound payload. No side effects were executed.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// NewAuthentication creates an AuthenticationError.
func NewAuthentication(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// ValidationError indicates a malformed payload or a missing required field.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %s", e.Reason, e.Err.Error())
	}
	return "invalid payload: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidation creates a ValidationError.
func NewValidation(reason string, err error) error {
	return &ValidationError{Reason: reason, Err: err}
}

// NotFoundError indicates that an entity referenced by an event does not
// exist yet, typically because the event raced the linking step.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(entity, ref string) error {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// TransientError indicates a retryable condition (database failure, lock
// timeout, unexpected handler error). The whole transaction was rolled back.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure in %s: %s", e.Op, e.Err.Error())
	}
	return "transient failure in " + e.Op
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransient creates a TransientError wrapping err.
func NewTransient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

// IsPermanent reports whether err was explicitly classified as a
// non-retryable condition.
func IsPermanent(err error) bool {
	return IsAuthentication(err) || IsValidation(err)
}
