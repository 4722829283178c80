package persistence

import "errors"

var (
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrExecutionLogNotFound = errors.New("execution log entry not found")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrEntryImmutable       = errors.New("execution log entry is terminal and cannot be updated")
)

// IsWorkflowNotFound reports whether err indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsEntityNotFound reports whether err indicates a missing domain entity.
func IsEntityNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
