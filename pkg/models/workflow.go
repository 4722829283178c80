// Package models defines the core domain models for trigger-driven automations.
package models

import "time"

// WorkflowStatus represents the lifecycle state of an automation workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Considered by the trigger matcher
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily disabled
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, never executed
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, never executed
)

// TriggerType identifies the event or time condition that fires a workflow.
type TriggerType string

const (
	TriggerJobStatusChanged    TriggerType = "job_status_changed"
	TriggerJobCreated          TriggerType = "job_created"
	TriggerInvoiceCreated      TriggerType = "invoice_created"
	TriggerInvoiceOverdue      TriggerType = "invoice_overdue"
	TriggerJobFollowUp         TriggerType = "job_follow_up"
	TriggerMaintenanceReminder TriggerType = "maintenance_reminder"
	TriggerClientCheckIn       TriggerType = "client_check_in"
	TriggerScheduledTime       TriggerType = "scheduled_time"
)

// TimeBasedTriggers lists the trigger types driven by the scheduler poller
// rather than by a live entity change.
var TimeBasedTriggers = []TriggerType{
	TriggerInvoiceOverdue,
	TriggerJobFollowUp,
	TriggerMaintenanceReminder,
	TriggerClientCheckIn,
	TriggerScheduledTime,
}

// Valid reports whether the trigger type is one the engine knows.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerJobStatusChanged, TriggerJobCreated, TriggerInvoiceCreated,
		TriggerInvoiceOverdue, TriggerJobFollowUp, TriggerMaintenanceReminder,
		TriggerClientCheckIn, TriggerScheduledTime:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a known lifecycle state.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusActive, WorkflowStatusPaused, WorkflowStatusDraft, WorkflowStatusArchived:
		return true
	default:
		return false
	}
}

// IsTimeBased reports whether the trigger type is evaluated by the poller.
func (t TriggerType) IsTimeBased() bool {
	for _, tt := range TimeBasedTriggers {
		if t == tt {
			return true
		}
	}

	return false
}

// Workflow is a stored automation definition: a trigger plus an ordered step
// list. Steps and conditions are persisted as schemaless JSON documents and
// validated at the store boundary.
type Workflow struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"               validate:"required,min=3"`
	Description       string         `json:"description,omitempty"`
	TriggerType       TriggerType    `json:"trigger_type"       validate:"required"`
	TriggerConditions []Condition    `json:"trigger_conditions"`
	TriggerConfig     map[string]any `json:"trigger_config,omitempty"`
	Steps             []Step         `json:"steps"`
	Status            WorkflowStatus `json:"status"             validate:"required"`
	UserID            string         `json:"user_id"`
	OrganizationID    string         `json:"organization_id,omitempty"`
	ExecutionCount    int            `json:"execution_count"`
	SuccessCount      int            `json:"success_count"`
	LastExecutedAt    *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         *time.Time     `json:"deleted_at,omitempty"`
}

// Runnable reports whether the workflow can be executed at all: it must be
// active and carry at least one step.
func (w *Workflow) Runnable() bool {
	return w.Status == WorkflowStatusActive && len(w.Steps) > 0
}

// OwnedBy reports whether the workflow belongs to the given owner scope.
// Organization scope wins over user scope when both are present.
func (w *Workflow) OwnedBy(userID, organizationID string) bool {
	if w.OrganizationID != "" {
		return w.OrganizationID == organizationID
	}

	return w.UserID == userID
}
