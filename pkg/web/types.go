// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/fixlify/fixflow/pkg/models"

// CreateWorkflowRequest is the request body for creating a new workflow.
// Steps and conditions are validated while binding, so malformed step
// documents are rejected before they reach the store.
type CreateWorkflowRequest struct {
	Name              string                `json:"name"               validate:"required,min=3"`
	Description       string                `json:"description,omitempty"`
	TriggerType       models.TriggerType    `json:"trigger_type"       validate:"required"`
	TriggerConditions []models.Condition    `json:"trigger_conditions,omitempty"`
	TriggerConfig     map[string]any        `json:"trigger_config,omitempty"`
	Steps             []models.Step         `json:"steps,omitempty"`
	Status            models.WorkflowStatus `json:"status,omitempty"`
	UserID            string                `json:"user_id"            validate:"required_without=OrganizationID"`
	OrganizationID    string                `json:"organization_id,omitempty"`
}

// UpdateWorkflowRequest is the request body for updating a workflow. All
// fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name              *string                `json:"name,omitempty"   validate:"omitempty,min=3"`
	Description       *string                `json:"description,omitempty"`
	TriggerType       *models.TriggerType    `json:"trigger_type,omitempty"`
	TriggerConditions *[]models.Condition    `json:"trigger_conditions,omitempty"`
	TriggerConfig     *map[string]any        `json:"trigger_config,omitempty"`
	Steps             *[]models.Step         `json:"steps,omitempty"`
	Status            *models.WorkflowStatus `json:"status,omitempty"`
}

// TriggerEventRequest is the request body for POST /events and, with every
// field optional, for POST /workflows/:id/execute.
type TriggerEventRequest struct {
	TriggerType    models.TriggerType `json:"trigger_type"`
	EntityType     models.EntityType  `json:"entity_type,omitempty"`
	EntityID       string             `json:"entity_id,omitempty"`
	PreviousState  map[string]any     `json:"previous_state,omitempty"`
	NewState       map[string]any     `json:"new_state,omitempty"`
	UserID         string             `json:"user_id,omitempty"`
	OrganizationID string             `json:"organization_id,omitempty"`
}

// Event converts the request into a domain trigger event.
func (r TriggerEventRequest) Event() models.TriggerEvent {
	return models.TriggerEvent{
		TriggerType:    r.TriggerType,
		EntityType:     r.EntityType,
		EntityID:       r.EntityID,
		PreviousState:  r.PreviousState,
		NewState:       r.NewState,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
	}
}

// ExecuteResponse is the response body for POST /workflows/:id/execute.
type ExecuteResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id"`
}
