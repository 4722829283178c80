package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/fixlify/fixflow/pkg/channels/gochannel"
	"github.com/fixlify/fixflow/pkg/dispatch"
	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence/file"
	"github.com/fixlify/fixflow/pkg/scheduler"
	"github.com/fixlify/fixflow/pkg/services"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/variables"
	"github.com/fixlify/fixflow/pkg/web"
	"github.com/fixlify/fixflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSMS struct{}

func (noopSMS) SendSMS(context.Context, dispatch.SMSMessage) error { return nil }

type noopEmail struct{}

func (noopEmail) SendEmail(context.Context, dispatch.EmailMessage) error { return nil }

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)
	repo := workflow.NewRepository(store)
	matcher := workflow.NewMatcher(logger)

	resolver := variables.NewResolver(store.EntityRepository(), variables.Links{BaseURL: "https://app.example.com"}, logger)
	executor := workflow.NewExecutor(
		repo,
		store.ExecutionLogRepository(),
		resolver,
		noopSMS{},
		noopEmail{},
		dispatch.NewNotificationWriter(store.NotificationRepository()),
		suspend.NewMemoryQueue(),
		nil,
		logger,
	)

	workflowService := services.NewWorkflow(repo, store.ExecutionLogRepository())
	automation := services.NewAutomation(repo, matcher, executor, logger)
	poller := scheduler.NewPoller(repo, store.EntityRepository(), matcher, executor, logger)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	handlers := web.NewAPIHandlers(workflowService, automation, poller,
		validator.New(validator.WithRequiredStructEnabled()), bus)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)

	app.Post("/events", handlers.HandleEvent)
	app.Post("/events/enqueue", handlers.EnqueueEvent)
	app.Post("/scheduler/run", handlers.RunScheduler)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func seedClient(t *testing.T, store *file.Persistence) {
	t.Helper()

	entities, ok := store.EntityRepository().(*file.EntityRepository)
	require.True(t, ok)
	require.NoError(t, entities.SaveClient(t.Context(), &models.Client{
		ID: "c-1", Name: "Ada Lovelace", FirstName: "Ada",
		Phone: "+15550000000", Email: "ada@example.com", UserID: "user-1",
	}))
}

func activeWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID: id, Name: "check in", TriggerType: models.TriggerClientCheckIn,
		Status: models.WorkflowStatusActive, UserID: "user-1",
		Steps: []models.Step{
			{ID: "s1", Config: models.SMSConfig{Message: "hi {{client_first_name}}"}, ContinueOnError: true},
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation",
			requestBody: `{
				"name": "Overdue invoice nudge",
				"trigger_type": "invoice_overdue",
				"trigger_conditions": [{"field": "status", "operator": "equals", "value": "sent"}],
				"steps": [{"id": "s1", "type": "send_sms", "config": {"message": "Invoice {{invoice_number}} is overdue"}}],
				"user_id": "user-1"
			}`,
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var created models.Workflow
				require.NoError(t, json.Unmarshal(body, &created))
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, models.WorkflowStatusDraft, created.Status)
				assert.Equal(t, models.TriggerInvoiceOverdue, created.TriggerType)
				require.Len(t, created.Steps, 1)
				assert.True(t, created.Steps[0].ContinueOnError)
			},
		},
		{
			name:           "name too short",
			requestBody:    `{"name": "ab", "trigger_type": "job_created", "user_id": "user-1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing owner",
			requestBody:    `{"name": "valid name", "trigger_type": "job_created"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown trigger type",
			requestBody:    `{"name": "valid name", "trigger_type": "comet_sighted", "user_id": "user-1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "malformed step document",
			requestBody: `{
				"name": "valid name",
				"trigger_type": "job_created",
				"user_id": "user-1",
				"steps": [{"id": "s1", "type": "delay", "config": {"value": 5, "unit": "fortnights"}}]
			}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBufferString(tt.requestBody))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				tt.validateResult(t, body)
			}
		})
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateWorkflowPartial(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), activeWorkflow("wf-1")))

	body := `{"status": "paused"}`
	req := httptest.NewRequest(http.MethodPatch, "/workflows/wf-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, models.WorkflowStatusPaused, updated.Status)
	assert.Equal(t, "check in", updated.Name)
}

func TestDeleteWorkflow(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), activeWorkflow("wf-1")))

	req := httptest.NewRequest(http.MethodDelete, "/workflows/wf-1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/workflows/wf-1", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteWorkflow(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	seedClient(t, store)

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), activeWorkflow("wf-1")))

	body := `{"entity_type": "client", "entity_id": "c-1"}`
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-1/execute", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ExecuteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ExecutionID)

	// The run shows up in the execution history.
	req = httptest.NewRequest(http.MethodGet, "/workflows/wf-1/executions", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Equal(t, 1, history.Count)
}

func TestExecuteWorkflowConflicts(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	draft := activeWorkflow("wf-draft")
	draft.Status = models.WorkflowStatusDraft
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), draft))

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-draft/execute", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/workflows/missing/execute", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	seedClient(t, store)

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), activeWorkflow("wf-1")))

	body := `{
		"trigger_type": "client_check_in",
		"entity_type": "client",
		"entity_id": "c-1",
		"user_id": "user-1"
	}`
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.FanOutResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Matched)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Runs[0].Status)
}

func TestHandleEventValidation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnqueueEvent(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	body := `{
		"trigger_type": "job_created",
		"entity_type": "job",
		"entity_id": "j-1",
		"user_id": "user-1"
	}`
	req := httptest.NewRequest(http.MethodPost, "/events/enqueue", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result struct {
		Accepted bool   `json:"accepted"`
		EventID  string `json:"event_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.EventID)
}

func TestEnqueueEventValidation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	body := `{"trigger_type": "job_created", "entity_type": "job", "user_id": "user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/events/enqueue", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunScheduler(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result scheduler.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.False(t, result.Timestamp.IsZero())
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
