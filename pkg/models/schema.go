package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrDocumentInvalid is returned when a persisted workflow document fails
// schema validation at the store boundary.
var ErrDocumentInvalid = errors.New("workflow document failed schema validation")

// stepsSchema validates the persisted steps blob. Config contents are
// validated per-type by Step.UnmarshalJSON; the schema guards the envelope so
// malformed blobs are rejected instead of silently defaulted.
const stepsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "type"],
		"properties": {
			"id":                {"type": "string", "minLength": 1},
			"schema_version":    {"type": "integer", "minimum": 0},
			"type":              {"type": "string", "minLength": 1},
			"config":            {"type": "object"},
			"continue_on_error": {"type": "boolean"}
		}
	}
}`

// conditionsSchema validates the persisted trigger_conditions blob.
const conditionsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["field", "operator"],
		"properties": {
			"field":    {"type": "string", "minLength": 1},
			"operator": {
				"type": "string",
				"enum": ["equals", "not_equals", "contains", "greater_than", "less_than", "is_empty", "is_not_empty"]
			}
		}
	}
}`

var (
	stepsSchemaLoader      = gojsonschema.NewStringLoader(stepsSchema)
	conditionsSchemaLoader = gojsonschema.NewStringLoader(conditionsSchema)
)

// ValidateStepsDocument checks a raw steps blob against the step envelope
// schema before any parsing happens.
func ValidateStepsDocument(raw []byte) error {
	return validateDocument(stepsSchemaLoader, raw, "steps")
}

// ValidateConditionsDocument checks a raw trigger_conditions blob against the
// condition schema.
func ValidateConditionsDocument(raw []byte) error {
	return validateDocument(conditionsSchemaLoader, raw, "trigger_conditions")
}

func validateDocument(schema gojsonschema.JSONLoader, raw []byte, name string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate %s document: %w", name, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("%w: %s: %s", ErrDocumentInvalid, name, strings.Join(details, "; "))
}
