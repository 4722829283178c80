package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondition_Evaluate(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"status":   "completed",
		"total":    150.0,
		"notes":    "",
		"tags":     []any{"hvac"},
		"priority": nil,
	}

	tests := []struct {
		name      string
		condition Condition
		want      bool
	}{
		{"equals match", Condition{Field: "status", Operator: OperatorEquals, Value: "completed"}, true},
		{"equals mismatch", Condition{Field: "status", Operator: OperatorEquals, Value: "scheduled"}, false},
		{"not_equals", Condition{Field: "status", Operator: OperatorNotEquals, Value: "scheduled"}, true},
		{"contains", Condition{Field: "status", Operator: OperatorContains, Value: "complete"}, true},
		{"greater_than true", Condition{Field: "total", Operator: OperatorGreaterThan, Value: 100}, true},
		{"greater_than false", Condition{Field: "total", Operator: OperatorGreaterThan, Value: 200}, false},
		{"less_than against string number", Condition{Field: "total", Operator: OperatorLessThan, Value: "200"}, true},
		{"is_empty on empty string", Condition{Field: "notes", Operator: OperatorIsEmpty}, true},
		{"is_empty on nil", Condition{Field: "priority", Operator: OperatorIsEmpty}, true},
		{"is_empty on missing field", Condition{Field: "nope", Operator: OperatorIsEmpty}, true},
		{"is_not_empty on list", Condition{Field: "tags", Operator: OperatorIsNotEmpty}, true},
		{"is_not_empty on missing field", Condition{Field: "nope", Operator: OperatorIsNotEmpty}, false},
		{"missing field equals is false", Condition{Field: "nope", Operator: OperatorEquals, Value: "x"}, false},
		{"numeric compare on non-numeric is false", Condition{Field: "status", Operator: OperatorGreaterThan, Value: 1}, false},
		{"unknown operator is false", Condition{Field: "status", Operator: "matches", Value: "x"}, false},
		{"empty field is false", Condition{Operator: OperatorEquals, Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.condition.Evaluate(payload))
		})
	}
}

func TestValidateStepsDocument(t *testing.T) {
	t.Parallel()

	valid := []byte(`[{"id":"s1","type":"send_sms","config":{"message":"hi"}}]`)
	assert.NoError(t, ValidateStepsDocument(valid))

	missingType := []byte(`[{"id":"s1","config":{}}]`)
	err := ValidateStepsDocument(missingType)
	assert.ErrorIs(t, err, ErrDocumentInvalid)

	notArray := []byte(`{"id":"s1"}`)
	assert.ErrorIs(t, ValidateStepsDocument(notArray), ErrDocumentInvalid)
}

func TestValidateConditionsDocument(t *testing.T) {
	t.Parallel()

	valid := []byte(`[{"field":"status","operator":"equals","value":"completed"}]`)
	assert.NoError(t, ValidateConditionsDocument(valid))

	badOperator := []byte(`[{"field":"status","operator":"regex","value":"x"}]`)
	assert.ErrorIs(t, ValidateConditionsDocument(badOperator), ErrDocumentInvalid)
}

func TestWorkflow_OwnedBy(t *testing.T) {
	t.Parallel()

	orgScoped := &Workflow{UserID: "u1", OrganizationID: "org1"}
	assert.True(t, orgScoped.OwnedBy("other-user", "org1"), "organization scope wins")
	assert.False(t, orgScoped.OwnedBy("u1", "org2"))

	userScoped := &Workflow{UserID: "u1"}
	assert.True(t, userScoped.OwnedBy("u1", ""))
	assert.False(t, userScoped.OwnedBy("u2", ""))
}
