package model

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the scheduler. Callers match them with errors.Is.
var (
	// ErrDuplicatePriority is returned when a request is admitted with a
	// priority already held by a pending or active request.
	ErrDuplicatePriority = errors.New("duplicate priority")

	// ErrInactiveTask is returned when a request resigns focus without being
	// the active request (stale, canceled or already dismissed).
	ErrInactiveTask = errors.New("inactive task")

	// ErrNilRequest is returned when a nil request is admitted.
	ErrNilRequest = errors.New("nil request")
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrInactive   ErrorCode = "INACTIVE_TASK"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the GoPop API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// InvalidTransitionError describes a state machine invariant breach. The
// scheduler panics with it; it is never returned to callers.
type InvalidTransitionError struct {
	From   ArbiterState
	To     ArbiterState
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid arbiter state transition: %s → %s (%s)", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid arbiter state transition: %s → %s", e.From, e.To)
}
