package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusStarted   ExecutionStatus = "started"
	ExecutionStatusWaiting   ExecutionStatus = "waiting" // Suspended on a delay step
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is final. Terminal entries are never
// mutated again.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ExecutionLogEntry is the audit record of one workflow run. It is created
// before any step runs and finalized exactly once. NextStepIndex is only
// meaningful while the entry is waiting on a delay continuation.
type ExecutionLogEntry struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	Status        ExecutionStatus `json:"status"`
	TriggerData   TriggerEvent    `json:"trigger_data"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	NextStepIndex int             `json:"next_step_index,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
