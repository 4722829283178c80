// Package suspend persists delay-step continuations so a delayed workflow
// run holds no goroutine, thread, or transaction while it waits.
package suspend

import (
	"context"
	"time"
)

// Continuation is the state needed to resume a suspended run at the step
// after its delay.
type Continuation struct {
	ExecutionID    string            `json:"execution_id"`
	WorkflowID     string            `json:"workflow_id"`
	NextStepIndex  int               `json:"next_step_index"`
	Variables      map[string]string `json:"variables"`
	ClientPhone    string            `json:"client_phone,omitempty"`
	ClientEmail    string            `json:"client_email,omitempty"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	UserID         string            `json:"user_id"`
	OrganizationID string            `json:"organization_id,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	ResumeAt       time.Time         `json:"resume_at"`
}

// Queue stores continuations until they are due.
type Queue interface {
	// Enqueue stores one continuation keyed by its execution id.
	Enqueue(ctx context.Context, c Continuation) error
	// ClaimDue atomically removes and returns continuations due at or
	// before now, up to limit. A claimed continuation is never returned
	// again.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Continuation, error)
	Close() error
}
