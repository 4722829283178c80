package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fixlify/fixflow/pkg/dispatch"
	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence/file"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSMS struct {
	sent []dispatch.SMSMessage
	err  error
}

func (r *recordingSMS) SendSMS(_ context.Context, msg dispatch.SMSMessage) error {
	if r.err != nil {
		return r.err
	}

	r.sent = append(r.sent, msg)

	return nil
}

type recordingEmail struct {
	sent []dispatch.EmailMessage
	err  error
}

func (r *recordingEmail) SendEmail(_ context.Context, msg dispatch.EmailMessage) error {
	if r.err != nil {
		return r.err
	}

	r.sent = append(r.sent, msg)

	return nil
}

type executorFixture struct {
	executor *Executor
	store    *file.Persistence
	sms      *recordingSMS
	email    *recordingEmail
	queue    *suspend.MemoryQueue
	now      time.Time
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)

	f := &executorFixture{
		store: store,
		sms:   &recordingSMS{},
		email: &recordingEmail{},
		queue: suspend.NewMemoryQueue(),
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	resolver := variables.NewResolver(store.EntityRepository(), variables.Links{BaseURL: "https://app.example.com"}, logger)

	f.executor = NewExecutor(
		NewRepository(store),
		store.ExecutionLogRepository(),
		resolver,
		f.sms,
		f.email,
		dispatch.NewNotificationWriter(store.NotificationRepository()),
		f.queue,
		nil,
		logger,
	)
	f.executor.now = func() time.Time { return f.now }

	return f
}

func (f *executorFixture) seedClient(t *testing.T, client models.Client) {
	t.Helper()

	entities, ok := f.store.EntityRepository().(*file.EntityRepository)
	require.True(t, ok)
	require.NoError(t, entities.SaveClient(t.Context(), &client))
}

func (f *executorFixture) saveWorkflow(t *testing.T, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, f.store.WorkflowRepository().Save(t.Context(), wf))
}

func clientEvent(clientID, userID string) models.TriggerEvent {
	return models.TriggerEvent{
		TriggerType: models.TriggerClientCheckIn,
		EntityType:  models.EntityTypeClient,
		EntityID:    clientID,
		UserID:      userID,
		OccurredAt:  time.Now().UTC(),
	}
}

func TestExecutor_ExecuteCompletesRun(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{
		ID: "c-1", Name: "Ada Lovelace", FirstName: "Ada",
		Phone: "+15551234567", Email: "ada@example.com", UserID: "user-1",
	})

	wf := &models.Workflow{
		ID: "wf-1", Name: "check in", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "Hi {{client_first_name}}!"}, ContinueOnError: true},
			{ID: "s2", Config: models.NotificationConfig{Title: "Checked in", Message: "Reached out to {{client_name}}"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)

	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "+15551234567", f.sms.sent[0].To)
	assert.Equal(t, "Hi Ada!", f.sms.sent[0].Message)

	entry, err := f.store.ExecutionLogRepository().GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, entry.Status)
	assert.Empty(t, entry.ErrorMessage)
	require.NotNil(t, entry.CompletedAt)

	notifications, err := f.store.NotificationRepository().ListByOwner(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Reached out to Ada Lovelace", notifications[0].Message)

	updated, err := f.store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ExecutionCount)
	assert.Equal(t, 1, updated.SuccessCount)
}

func TestExecutor_ExecuteRejectsNotRunnable(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)

	wf := &models.Workflow{
		ID: "wf-1", Name: "paused", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusPaused, UserID: "user-1",
		Steps: []models.Step{{ID: "s1", Config: models.SMSConfig{Message: "x"}}},
	}

	_, err := f.executor.Execute(t.Context(), wf, clientEvent("c-1", "user-1"))
	require.ErrorIs(t, err, ErrWorkflowNotRunnable)

	entries, err := f.store.ExecutionLogRepository().ListByWorkflow(t.Context(), "wf-1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecutor_ExecuteFailsWhenRootEntityMissing(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	wf := &models.Workflow{
		ID: "wf-1", Name: "orphan", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{{ID: "s1", Config: models.SMSConfig{Message: "x"}, ContinueOnError: true}},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("missing", "user-1"))
	require.ErrorIs(t, err, ErrResolutionFailed)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)

	entry, getErr := f.store.ExecutionLogRepository().GetByID(ctx, result.ExecutionID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ExecutionStatusFailed, entry.Status)
	assert.NotEmpty(t, entry.ErrorMessage)
	assert.Empty(t, f.sms.sent)

	updated, err := f.store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ExecutionCount)
	assert.Equal(t, 0, updated.SuccessCount)
}

func TestExecutor_StepFailureContinuesByDefault(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{ID: "c-1", Name: "Ada", UserID: "user-1", Email: "ada@example.com"})
	f.sms.err = errors.New("provider down")

	wf := &models.Workflow{
		ID: "wf-1", Name: "mixed", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "never sent"}, ContinueOnError: true},
			{ID: "s2", Config: models.EmailConfig{Subject: "hello", Body: "still goes out"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "ada@example.com", f.email.sent[0].To)

	entry, err := f.store.ExecutionLogRepository().GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	assert.Contains(t, entry.ErrorMessage, "s1")
	assert.Contains(t, entry.ErrorMessage, "provider down")
}

func TestExecutor_StepFailureAbortsWhenContinueDisabled(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	// No phone on file, so the first step fails.
	f.seedClient(t, models.Client{ID: "c-1", Name: "Ada", UserID: "user-1", Email: "ada@example.com"})

	wf := &models.Workflow{
		ID: "wf-1", Name: "strict", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "needs a phone"}, ContinueOnError: false},
			{ID: "s2", Config: models.EmailConfig{Subject: "skipped", Body: "skipped"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Empty(t, f.email.sent)
}

func TestExecutor_UnknownStepTypeIsSkipped(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{ID: "c-1", Name: "Ada", UserID: "user-1", Phone: "+15550000000"})

	wf := &models.Workflow{
		ID: "wf-1", Name: "forward compat", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.UnknownConfig{Type: "send_carrier_pigeon"}, ContinueOnError: true},
			{ID: "s2", Config: models.SMSConfig{Message: "still here"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	require.Len(t, f.sms.sent, 1)
}

func TestExecutor_DelaySuspendsAndResumes(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{
		ID: "c-1", Name: "Ada", FirstName: "Ada", UserID: "user-1", Phone: "+15550000000",
	})

	wf := &models.Workflow{
		ID: "wf-1", Name: "nudge later", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "first"}, ContinueOnError: true},
			{ID: "s2", Config: models.DelayConfig{Value: 2, Unit: "hours"}, ContinueOnError: true},
			{ID: "s3", Config: models.SMSConfig{Message: "second for {{client_first_name}}"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, result.Status)
	assert.Equal(t, f.now.Add(2*time.Hour), result.ResumeAt)
	require.Len(t, f.sms.sent, 1)

	pending := f.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].NextStepIndex)
	assert.Equal(t, "+15550000000", pending[0].ClientPhone)

	entry, err := f.store.ExecutionLogRepository().GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, entry.Status)
	assert.Equal(t, 2, entry.NextStepIndex)

	// The sleep holds no worker, so the workflow counters stay untouched.
	suspended, err := f.store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 0, suspended.ExecutionCount)

	due, err := f.queue.ClaimDue(ctx, f.now.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	resumed, err := f.executor.Resume(ctx, due[0])
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	require.Len(t, f.sms.sent, 2)
	assert.Equal(t, "second for Ada", f.sms.sent[1].Message)

	entry, err = f.store.ExecutionLogRepository().GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, entry.Status)
}

func TestExecutor_TrailingDelayIsSkipped(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{ID: "c-1", Name: "Ada", UserID: "user-1", Phone: "+15550000000"})

	wf := &models.Workflow{
		ID: "wf-1", Name: "pointless wait", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "done"}, ContinueOnError: true},
			{ID: "s2", Config: models.DelayConfig{Value: 1, Unit: "days"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Empty(t, f.queue.Pending())
}

func TestExecutor_ResumeIgnoresWorkflowDeactivation(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(t)
	ctx := t.Context()

	f.seedClient(t, models.Client{ID: "c-1", Name: "Ada", UserID: "user-1", Phone: "+15550000000"})

	wf := &models.Workflow{
		ID: "wf-1", Name: "paused mid run", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.DelayConfig{Value: 1, Unit: "hours"}, ContinueOnError: true},
			{ID: "s2", Config: models.SMSConfig{Message: "still delivered"}, ContinueOnError: true},
		},
	}
	f.saveWorkflow(t, wf)

	result, err := f.executor.Execute(ctx, wf, clientEvent("c-1", "user-1"))
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, result.Status)

	// Pause the workflow while the run is suspended.
	wf.Status = models.WorkflowStatusPaused
	f.saveWorkflow(t, wf)

	due, err := f.queue.ClaimDue(ctx, f.now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	resumed, err := f.executor.Resume(ctx, due[0])
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	require.Len(t, f.sms.sent, 1)
}
