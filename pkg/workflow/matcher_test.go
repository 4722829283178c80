package workflow

import (
	"log/slog"
	"testing"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func matcherWorkflow(mutate func(*models.Workflow)) *models.Workflow {
	wf := &models.Workflow{
		ID:          "wf-1",
		Name:        "status change follow up",
		TriggerType: models.TriggerJobStatusChanged,
		Status:      models.WorkflowStatusActive,
		UserID:      "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "hi"}, ContinueOnError: true},
		},
	}

	if mutate != nil {
		mutate(wf)
	}

	return wf
}

func TestMatcher_Matches(t *testing.T) {
	t.Parallel()

	event := models.TriggerEvent{
		TriggerType: models.TriggerJobStatusChanged,
		EntityType:  models.EntityTypeJob,
		EntityID:    "job-1",
		UserID:      "user-1",
		NewState:    map[string]any{"status": "completed", "client_id": "c-1"},
	}

	tests := []struct {
		name   string
		event  models.TriggerEvent
		mutate func(*models.Workflow)
		want   bool
	}{
		{
			name:  "active workflow with matching trigger and no conditions",
			event: event,
			want:  true,
		},
		{
			name:   "paused workflow never fires",
			event:  event,
			mutate: func(wf *models.Workflow) { wf.Status = models.WorkflowStatusPaused },
			want:   false,
		},
		{
			name:   "draft workflow never fires",
			event:  event,
			mutate: func(wf *models.Workflow) { wf.Status = models.WorkflowStatusDraft },
			want:   false,
		},
		{
			name:   "different trigger type",
			event:  event,
			mutate: func(wf *models.Workflow) { wf.TriggerType = models.TriggerInvoiceOverdue },
			want:   false,
		},
		{
			name:   "different owner",
			event:  event,
			mutate: func(wf *models.Workflow) { wf.UserID = "someone-else" },
			want:   false,
		},
		{
			name:  "organization scope wins over user mismatch",
			event: models.TriggerEvent{TriggerType: models.TriggerJobStatusChanged, UserID: "other-user", OrganizationID: "org-1", NewState: map[string]any{}},
			mutate: func(wf *models.Workflow) {
				wf.UserID = "user-1"
				wf.OrganizationID = "org-1"
			},
			want: true,
		},
		{
			name:  "all conditions satisfied",
			event: event,
			mutate: func(wf *models.Workflow) {
				wf.TriggerConditions = []models.Condition{
					{Field: "status", Operator: models.OperatorEquals, Value: "completed"},
					{Field: "client_id", Operator: models.OperatorIsNotEmpty},
				}
			},
			want: true,
		},
		{
			name:  "one failing condition blocks the match",
			event: event,
			mutate: func(wf *models.Workflow) {
				wf.TriggerConditions = []models.Condition{
					{Field: "status", Operator: models.OperatorEquals, Value: "completed"},
					{Field: "status", Operator: models.OperatorEquals, Value: "cancelled"},
				}
			},
			want: false,
		},
		{
			name:  "malformed condition evaluates false",
			event: event,
			mutate: func(wf *models.Workflow) {
				wf.TriggerConditions = []models.Condition{
					{Field: "status", Operator: "matches_regex", Value: ".*"},
				}
			},
			want: false,
		},
		{
			name: "missing payload field fails equals",
			event: models.TriggerEvent{
				TriggerType: models.TriggerJobStatusChanged, UserID: "user-1",
				NewState: map[string]any{},
			},
			mutate: func(wf *models.Workflow) {
				wf.TriggerConditions = []models.Condition{
					{Field: "status", Operator: models.OperatorEquals, Value: "completed"},
				}
			},
			want: false,
		},
	}

	matcher := NewMatcher(slog.New(slog.DiscardHandler))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, matcher.Matches(tt.event, matcherWorkflow(tt.mutate)))
		})
	}
}

func TestMatcher_MatchFiltersIndependently(t *testing.T) {
	t.Parallel()

	matcher := NewMatcher(slog.New(slog.DiscardHandler))

	event := models.TriggerEvent{
		TriggerType: models.TriggerJobCreated,
		UserID:      "user-1",
		NewState:    map[string]any{"status": "scheduled"},
	}

	fires := matcherWorkflow(func(wf *models.Workflow) {
		wf.ID = "fires"
		wf.TriggerType = models.TriggerJobCreated
	})
	wrongTrigger := matcherWorkflow(func(wf *models.Workflow) { wf.ID = "wrong-trigger" })
	paused := matcherWorkflow(func(wf *models.Workflow) {
		wf.ID = "paused"
		wf.TriggerType = models.TriggerJobCreated
		wf.Status = models.WorkflowStatusPaused
	})

	matched := matcher.Match(event, []*models.Workflow{fires, wrongTrigger, paused})
	assert.Len(t, matched, 1)
	assert.Equal(t, "fires", matched[0].ID)
}
