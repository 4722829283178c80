package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StepType discriminates the step sum type.
type StepType string

const (
	StepTypeSendSMS          StepType = "send_sms"
	StepTypeSendEmail        StepType = "send_email"
	StepTypeSendNotification StepType = "send_notification"
	StepTypeDelay            StepType = "delay"
)

// CurrentStepSchemaVersion is the version written for new step documents.
// Version 0 documents (written before versioning existed) are accepted and
// read as version 1.
const CurrentStepSchemaVersion = 1

var (
	ErrStepIDRequired          = errors.New("step id is required")
	ErrStepTypeRequired        = errors.New("step type is required")
	ErrStepSchemaVersion       = errors.New("unsupported step schema version")
	ErrSMSMessageRequired      = errors.New("send_sms step requires a message template")
	ErrEmailSubjectRequired    = errors.New("send_email step requires a subject template")
	ErrEmailBodyRequired       = errors.New("send_email step requires a body template")
	ErrNotificationMsgRequired = errors.New("send_notification step requires a message template")
	ErrDelayValueInvalid       = errors.New("delay step value must be positive")
	ErrDelayUnitInvalid        = errors.New("delay step unit must be seconds, minutes, hours or days")
)

// StepConfig is the typed configuration of one step. Exactly one
// implementation exists per StepType; executors switch exhaustively on the
// concrete type.
type StepConfig interface {
	StepType() StepType
	Validate() error
}

// SMSConfig configures a send_sms step. The recipient phone is resolved from
// the entity's client at execution time.
type SMSConfig struct {
	Message string `json:"message"`
}

func (SMSConfig) StepType() StepType { return StepTypeSendSMS }

func (c SMSConfig) Validate() error {
	if c.Message == "" {
		return ErrSMSMessageRequired
	}

	return nil
}

// EmailConfig configures a send_email step.
type EmailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (EmailConfig) StepType() StepType { return StepTypeSendEmail }

func (c EmailConfig) Validate() error {
	if c.Subject == "" {
		return ErrEmailSubjectRequired
	}

	if c.Body == "" {
		return ErrEmailBodyRequired
	}

	return nil
}

// NotificationConfig configures an in-app notification step addressed to the
// workflow owner.
type NotificationConfig struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

func (NotificationConfig) StepType() StepType { return StepTypeSendNotification }

func (c NotificationConfig) Validate() error {
	if c.Message == "" {
		return ErrNotificationMsgRequired
	}

	return nil
}

// DelayUnit is the time unit of a delay step.
type DelayUnit string

const (
	DelayUnitSeconds DelayUnit = "seconds"
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// DelayConfig configures a delay step: a cooperative suspension of
// value * unit before the next step runs.
type DelayConfig struct {
	Value int       `json:"value"`
	Unit  DelayUnit `json:"unit"`
}

func (DelayConfig) StepType() StepType { return StepTypeDelay }

func (c DelayConfig) Validate() error {
	if c.Value <= 0 {
		return ErrDelayValueInvalid
	}

	switch c.Unit {
	case DelayUnitSeconds, DelayUnitMinutes, DelayUnitHours, DelayUnitDays:
		return nil
	default:
		return ErrDelayUnitInvalid
	}
}

// Duration returns the wall-clock duration of the delay.
func (c DelayConfig) Duration() time.Duration {
	switch c.Unit {
	case DelayUnitSeconds:
		return time.Duration(c.Value) * time.Second
	case DelayUnitMinutes:
		return time.Duration(c.Value) * time.Minute
	case DelayUnitHours:
		return time.Duration(c.Value) * time.Hour
	case DelayUnitDays:
		return time.Duration(c.Value) * 24 * time.Hour
	default:
		return 0
	}
}

// UnknownConfig preserves a step whose type this build does not recognize.
// Unknown steps are skipped at execution, not treated as fatal; the raw
// document round-trips unchanged so newer writers lose nothing.
type UnknownConfig struct {
	Type StepType
	Raw  json.RawMessage
}

func (c UnknownConfig) StepType() StepType { return c.Type }

func (UnknownConfig) Validate() error { return nil }

// Step is one action within a workflow's ordered step list.
type Step struct {
	ID              string
	SchemaVersion   int
	Config          StepConfig
	ContinueOnError bool
}

// stepDocument is the persisted JSON shape of a step.
type stepDocument struct {
	ID              string          `json:"id"`
	SchemaVersion   int             `json:"schema_version,omitempty"`
	Type            StepType        `json:"type"`
	Config          json.RawMessage `json:"config"`
	ContinueOnError *bool           `json:"continue_on_error,omitempty"`
}

// MarshalJSON writes the step in its versioned document form.
func (s Step) MarshalJSON() ([]byte, error) {
	doc := stepDocument{
		ID:            s.ID,
		SchemaVersion: s.SchemaVersion,
		Type:          s.Config.StepType(),
	}

	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = CurrentStepSchemaVersion
	}

	if !s.ContinueOnError {
		f := false
		doc.ContinueOnError = &f
	}

	if unknown, ok := s.Config.(UnknownConfig); ok {
		doc.Config = unknown.Raw
	} else {
		raw, err := json.Marshal(s.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal step config: %w", err)
		}

		doc.Config = raw
	}

	return json.Marshal(doc)
}

// UnmarshalJSON parses and validates a step document. Malformed documents of
// a known type are rejected; unknown types are preserved as UnknownConfig.
func (s *Step) UnmarshalJSON(data []byte) error {
	var doc stepDocument

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return fmt.Errorf("failed to parse step document: %w", err)
	}

	if doc.ID == "" {
		return ErrStepIDRequired
	}

	if doc.Type == "" {
		return ErrStepTypeRequired
	}

	if doc.SchemaVersion > CurrentStepSchemaVersion {
		return fmt.Errorf("%w: %d", ErrStepSchemaVersion, doc.SchemaVersion)
	}

	config, err := parseStepConfig(doc.Type, doc.Config)
	if err != nil {
		return err
	}

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("invalid %s step %s: %w", doc.Type, doc.ID, err)
	}

	s.ID = doc.ID
	s.SchemaVersion = CurrentStepSchemaVersion
	s.Config = config
	s.ContinueOnError = doc.ContinueOnError == nil || *doc.ContinueOnError

	return nil
}

func parseStepConfig(stepType StepType, raw json.RawMessage) (StepConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var target StepConfig

	switch stepType {
	case StepTypeSendSMS:
		var c SMSConfig

		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s config: %w", stepType, err)
		}

		target = c
	case StepTypeSendEmail:
		var c EmailConfig

		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s config: %w", stepType, err)
		}

		target = c
	case StepTypeSendNotification:
		var c NotificationConfig

		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s config: %w", stepType, err)
		}

		target = c
	case StepTypeDelay:
		var c DelayConfig

		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s config: %w", stepType, err)
		}

		target = c
	default:
		target = UnknownConfig{Type: stepType, Raw: append(json.RawMessage(nil), raw...)}
	}

	return target, nil
}
