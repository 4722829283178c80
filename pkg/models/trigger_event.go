package models

import "time"

// EntityType identifies the domain entity a trigger event refers to.
type EntityType string

const (
	EntityTypeJob     EntityType = "job"
	EntityTypeInvoice EntityType = "invoice"
	EntityTypeClient  EntityType = "client"

	// EntityTypeNone marks time-based trigger events that carry no entity,
	// such as scheduled_time firings.
	EntityTypeNone EntityType = ""
)

// TriggerEvent is a domain event handed to the trigger matcher: an entity
// change (previous/new state pair) or a synthetic payload built by the
// scheduler poller. Events are scoped to an owner; workflows of other owners
// never see them.
type TriggerEvent struct {
	TriggerType    TriggerType    `json:"trigger_type"`
	EntityType     EntityType     `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	PreviousState  map[string]any `json:"previous_state,omitempty"`
	NewState       map[string]any `json:"new_state,omitempty"`
	UserID         string         `json:"user_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Payload returns the state conditions are evaluated against: the new state
// for change events, or the synthetic payload for time-based events.
func (e TriggerEvent) Payload() map[string]any {
	if e.NewState != nil {
		return e.NewState
	}

	return map[string]any{}
}
