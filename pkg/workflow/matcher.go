// Package workflow implements trigger matching and step execution for
// automation workflows.
package workflow

import (
	"log/slog"

	"github.com/fixlify/fixflow/pkg/models"
)

// Matcher selects the workflows that fire for a trigger event.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a trigger matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match returns the subset of workflows that fire for the event. Matched
// workflows execute independently; no ordering is defined between them.
func (m *Matcher) Match(event models.TriggerEvent, workflows []*models.Workflow) []*models.Workflow {
	matched := make([]*models.Workflow, 0)

	for _, wf := range workflows {
		if m.Matches(event, wf) {
			matched = append(matched, wf)
		}
	}

	m.logger.Debug("Completed trigger matching",
		"trigger_type", event.TriggerType,
		"entity_type", event.EntityType,
		"candidates", len(workflows),
		"matched", len(matched))

	return matched
}

// Matches reports whether one workflow fires for the event: it must be
// active, belong to the event's owner, share the trigger type, and every
// condition must evaluate true against the event payload. An empty condition
// list always matches. A malformed condition evaluates false, so matching
// degrades to "does not fire" rather than failing.
func (m *Matcher) Matches(event models.TriggerEvent, wf *models.Workflow) bool {
	if wf.Status != models.WorkflowStatusActive {
		return false
	}

	if wf.TriggerType != event.TriggerType {
		return false
	}

	if !wf.OwnedBy(event.UserID, event.OrganizationID) {
		return false
	}

	payload := event.Payload()

	for _, condition := range wf.TriggerConditions {
		if !condition.Evaluate(payload) {
			return false
		}
	}

	return true
}
