package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fixlify/fixflow/pkg/dispatch"
	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/persistence/file"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/variables"
	"github.com/fixlify/fixflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSMS struct {
	sent []dispatch.SMSMessage
}

func (r *recordingSMS) SendSMS(_ context.Context, msg dispatch.SMSMessage) error {
	r.sent = append(r.sent, msg)

	return nil
}

type recordingEmail struct {
	sent []dispatch.EmailMessage
}

func (r *recordingEmail) SendEmail(_ context.Context, msg dispatch.EmailMessage) error {
	r.sent = append(r.sent, msg)

	return nil
}

type pollerFixture struct {
	poller *Poller
	store  *file.Persistence
	sms    *recordingSMS
	now    time.Time
}

func newPollerFixture(t *testing.T, entities persistence.EntityRepository) *pollerFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)

	if entities == nil {
		entities = store.EntityRepository()
	}

	f := &pollerFixture{
		store: store,
		sms:   &recordingSMS{},
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	repo := workflow.NewRepository(store)
	resolver := variables.NewResolver(store.EntityRepository(), variables.Links{BaseURL: "https://app.example.com"}, logger)
	executor := workflow.NewExecutor(
		repo,
		store.ExecutionLogRepository(),
		resolver,
		f.sms,
		&recordingEmail{},
		dispatch.NewNotificationWriter(store.NotificationRepository()),
		suspend.NewMemoryQueue(),
		nil,
		logger,
	)

	f.poller = NewPoller(repo, entities, workflow.NewMatcher(logger), executor, logger)
	f.poller.now = func() time.Time { return f.now }

	return f
}

func (f *pollerFixture) entities(t *testing.T) *file.EntityRepository {
	t.Helper()

	entities, ok := f.store.EntityRepository().(*file.EntityRepository)
	require.True(t, ok)

	return entities
}

func (f *pollerFixture) saveWorkflow(t *testing.T, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, f.store.WorkflowRepository().Save(t.Context(), wf))
}

func smsWorkflow(id string, triggerType models.TriggerType, config map[string]any) *models.Workflow {
	return &models.Workflow{
		ID:            id,
		Name:          "poll " + id,
		TriggerType:   triggerType,
		TriggerConfig: config,
		Status:        models.WorkflowStatusActive,
		UserID:        "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "hello {{client_first_name}}"}, ContinueOnError: true},
		},
	}
}

func TestPoller_OverdueInvoicesRespectThreshold(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t, nil)
	ctx := t.Context()
	entities := f.entities(t)

	require.NoError(t, entities.SaveClient(ctx, &models.Client{
		ID: "c-1", Name: "Ada Lovelace", FirstName: "Ada", Phone: "+15550000001", UserID: "user-1",
	}))

	tenDaysAgo := f.now.AddDate(0, 0, -10)
	threeDaysAgo := f.now.AddDate(0, 0, -3)

	require.NoError(t, entities.SaveInvoice(ctx, &models.Invoice{
		ID: "inv-old", Number: "INV-100", Status: "sent", Total: 240,
		ClientID: "c-1", UserID: "user-1", DueDate: &tenDaysAgo,
	}))
	require.NoError(t, entities.SaveInvoice(ctx, &models.Invoice{
		ID: "inv-recent", Number: "INV-101", Status: "sent", Total: 80,
		ClientID: "c-1", UserID: "user-1", DueDate: &threeDaysAgo,
	}))

	f.saveWorkflow(t, smsWorkflow("wf-1", models.TriggerInvoiceOverdue, map[string]any{
		"days_overdue": float64(7),
	}))

	result := f.poller.Run(ctx)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "hello Ada", f.sms.sent[0].Message)

	entries, err := f.store.ExecutionLogRepository().ListByWorkflow(ctx, "wf-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	payload := entries[0].TriggerData.Payload()
	assert.Equal(t, "inv-old", payload["id"])
	require.Contains(t, payload, "overdue_invoices")
	assert.Len(t, payload["overdue_invoices"], 1)
}

func TestPoller_OverdueInvoicesIgnoreOtherOwners(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t, nil)
	ctx := t.Context()
	entities := f.entities(t)

	past := f.now.AddDate(0, 0, -30)
	require.NoError(t, entities.SaveInvoice(ctx, &models.Invoice{
		ID: "inv-1", Number: "INV-1", Status: "sent", UserID: "someone-else", DueDate: &past,
	}))

	f.saveWorkflow(t, smsWorkflow("wf-1", models.TriggerInvoiceOverdue, nil))

	result := f.poller.Run(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.TotalChecked)
}

func TestPoller_ScheduledTimeWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		scheduledAt time.Duration // Offset from the poll tick
		fires       bool
	}{
		{"thirty seconds ago", -30 * time.Second, true},
		{"thirty seconds ahead", 30 * time.Second, true},
		{"exactly on time", 0, true},
		{"five minutes ago", -5 * time.Minute, false},
		{"five minutes ahead", 5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newPollerFixture(t, nil)
			ctx := t.Context()

			f.saveWorkflow(t, &models.Workflow{
				ID: "wf-1", Name: "scheduled send", TriggerType: models.TriggerScheduledTime,
				TriggerConfig: map[string]any{
					"scheduled_at": f.now.Add(tt.scheduledAt).Format(time.RFC3339),
				},
				Status: models.WorkflowStatusActive, UserID: "user-1",
				Steps: []models.Step{
					{ID: "s1", Config: models.NotificationConfig{Title: "ping", Message: "it is time"}, ContinueOnError: true},
				},
			})

			result := f.poller.Run(ctx)

			assert.True(t, result.Success)
			if tt.fires {
				assert.Equal(t, 1, result.ProcessedCount)
			} else {
				assert.Equal(t, 0, result.ProcessedCount)
			}
		})
	}
}

func TestPoller_ClientCheckInUsesContactCutoff(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t, nil)
	ctx := t.Context()
	entities := f.entities(t)

	longAgo := f.now.AddDate(0, 0, -90)
	recently := f.now.AddDate(0, 0, -2)

	require.NoError(t, entities.SaveClient(ctx, &models.Client{
		ID: "c-stale", Name: "Stale", FirstName: "Stale", Phone: "+15550000002",
		UserID: "user-1", LastContactAt: &longAgo,
	}))
	require.NoError(t, entities.SaveClient(ctx, &models.Client{
		ID: "c-fresh", Name: "Fresh", Phone: "+15550000003",
		UserID: "user-1", LastContactAt: &recently,
	}))

	f.saveWorkflow(t, smsWorkflow("wf-1", models.TriggerClientCheckIn, map[string]any{
		"days_since_contact": float64(30),
	}))

	result := f.poller.Run(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "+15550000002", f.sms.sent[0].To)
}

func TestPoller_ConditionsApplyToSyntheticEvents(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t, nil)
	ctx := t.Context()
	entities := f.entities(t)

	past := f.now.AddDate(0, 0, -10)
	require.NoError(t, entities.SaveInvoice(ctx, &models.Invoice{
		ID: "inv-1", Number: "INV-1", Status: "sent", Total: 50, ClientID: "c-1",
		UserID: "user-1", DueDate: &past,
	}))

	wf := smsWorkflow("wf-1", models.TriggerInvoiceOverdue, nil)
	wf.TriggerConditions = []models.Condition{
		{Field: "total", Operator: models.OperatorGreaterThan, Value: float64(100)},
	}
	f.saveWorkflow(t, wf)

	result := f.poller.Run(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
}

type failingEntities struct {
	persistence.EntityRepository
}

func (failingEntities) OverdueInvoices(context.Context, time.Time, string) ([]*models.Invoice, error) {
	return nil, errors.New("query timeout")
}

func TestPoller_KindFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	f := newPollerFixture(t, failingEntities{EntityRepository: store.EntityRepository()})
	ctx := t.Context()

	f.saveWorkflow(t, smsWorkflow("wf-overdue", models.TriggerInvoiceOverdue, nil))
	f.saveWorkflow(t, &models.Workflow{
		ID: "wf-scheduled", Name: "still runs", TriggerType: models.TriggerScheduledTime,
		TriggerConfig: map[string]any{"scheduled_at": f.now.Format(time.RFC3339)},
		Status:        models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.NotificationConfig{Title: "tick", Message: "ran"}, ContinueOnError: true},
		},
	})

	result := f.poller.Run(ctx)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invoice_overdue")
	assert.Contains(t, result.Errors[0], "query timeout")

	// The scheduled_time kind still fired despite the invoice query failure.
	assert.Equal(t, 1, result.ProcessedCount)
}
