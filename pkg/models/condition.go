package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ConditionOperator is the comparison applied by a trigger condition.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorIsEmpty     ConditionOperator = "is_empty"
	OperatorIsNotEmpty  ConditionOperator = "is_not_empty"
)

// Condition is one predicate of a workflow's trigger_conditions list. An
// empty list means the workflow always matches events of its trigger type.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// Valid reports whether the condition is structurally usable.
func (c Condition) Valid() bool {
	if c.Field == "" {
		return false
	}

	switch c.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorContains,
		OperatorGreaterThan, OperatorLessThan, OperatorIsEmpty, OperatorIsNotEmpty:
		return true
	default:
		return false
	}
}

// Evaluate applies the condition against an event payload. A malformed
// condition, a missing field, or an uncomparable value evaluates to false:
// matching degrades to "does not fire", never to a crash.
func (c Condition) Evaluate(payload map[string]any) bool {
	if !c.Valid() {
		return false
	}

	actual, present := payload[c.Field]

	switch c.Operator {
	case OperatorIsEmpty:
		return !present || isEmptyValue(actual)
	case OperatorIsNotEmpty:
		return present && !isEmptyValue(actual)
	}

	if !present {
		return false
	}

	switch c.Operator {
	case OperatorEquals:
		return stringify(actual) == stringify(c.Value)
	case OperatorNotEquals:
		return stringify(actual) != stringify(c.Value)
	case OperatorContains:
		return strings.Contains(stringify(actual), stringify(c.Value))
	case OperatorGreaterThan:
		a, b, ok := numericPair(actual, c.Value)

		return ok && a > b
	case OperatorLessThan:
		a, b, ok := numericPair(actual, c.Value)

		return ok && a < b
	default:
		return false
	}
}

func isEmptyValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}

func numericPair(a, b any) (float64, float64, bool) {
	af, ok := toFloat(a)
	if !ok {
		return 0, 0, false
	}

	bf, ok := toFloat(b)
	if !ok {
		return 0, 0, false
	}

	return af, bf, true
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		f, err := strconv.ParseFloat(value, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
