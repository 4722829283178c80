// Package services provides the application services consumed by the HTTP
// API and the worker, with standardized error types for the handlers.
package services

import "errors"

// Validation errors map to HTTP 400 responses.
var (
	ErrWorkflowNil         = errors.New("workflow cannot be nil")
	ErrWorkflowNameShort   = errors.New("workflow name must be at least 3 characters")
	ErrInvalidTriggerType  = errors.New("unknown trigger type")
	ErrInvalidStatus       = errors.New("invalid workflow status")
	ErrEventTypeRequired   = errors.New("trigger event type is required")
	ErrEventOwnerRequired  = errors.New("trigger event owner is required")
	ErrEventEntityRequired = errors.New("trigger event entity id is required for entity-scoped triggers")
)

// Conflict errors map to HTTP 409 responses.
var (
	ErrWorkflowNotRunnable = errors.New("workflow is not active or has no steps")
)

// IsValidationError reports whether an error should produce HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameShort) ||
		errors.Is(err, ErrInvalidTriggerType) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEventTypeRequired) ||
		errors.Is(err, ErrEventOwnerRequired) ||
		errors.Is(err, ErrEventEntityRequired)
}

// IsConflictError reports whether an error should produce HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotRunnable)
}
