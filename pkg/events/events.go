// Package events defines the event types published on the bus for trigger
// fan-out and run lifecycle observability.
package events

import (
	"time"

	"github.com/fixlify/fixflow/pkg/models"
)

type EventType string

// Topic carries all automation events.
const Topic = "fixflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TriggerReceivedEvent carries an inbound domain event from the API to
	// the worker for matching and execution.
	TriggerReceivedEvent EventType = "automation.trigger.received"

	// Run lifecycle events.
	RunStartedEvent   EventType = "automation.run.started"
	RunSuspendedEvent EventType = "automation.run.suspended"
	RunCompletedEvent EventType = "automation.run.completed"
	RunFailedEvent    EventType = "automation.run.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

type TriggerReceived struct {
	BaseEvent

	Trigger models.TriggerEvent `json:"trigger"`
}

func (TriggerReceived) GetType() EventType { return TriggerReceivedEvent }

type RunStarted struct {
	BaseEvent

	ExecutionID string              `json:"execution_id"`
	Trigger     models.TriggerEvent `json:"trigger"`
}

func (RunStarted) GetType() EventType { return RunStartedEvent }

type RunSuspended struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (RunSuspended) GetType() EventType { return RunSuspendedEvent }

type RunCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (RunFailed) GetType() EventType { return RunFailedEvent }
