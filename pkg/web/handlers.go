package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/events"
	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/scheduler"
	"github.com/fixlify/fixflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

var errEventBusUnavailable = errors.New("event bus is not configured")

// APIHandlers holds the HTTP handlers for the automation API. bus may be nil
// when no event bus is configured; the async intake endpoint then refuses.
type APIHandlers struct {
	workflowService *services.Workflow
	automation      *services.Automation
	poller          *scheduler.Poller
	validator       *validator.Validate
	bus             eventbus.EventBus
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	automation *services.Automation,
	poller *scheduler.Poller,
	validator *validator.Validate,
	bus eventbus.EventBus,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		automation:      automation,
		poller:          poller,
		validator:       validator,
		bus:             bus,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:              req.Name,
		Description:       req.Description,
		TriggerType:       req.TriggerType,
		TriggerConditions: req.TriggerConditions,
		TriggerConfig:     req.TriggerConfig,
		Steps:             req.Steps,
		Status:            req.Status,
		UserID:            req.UserID,
		OrganizationID:    req.OrganizationID,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.TriggerType != nil {
		existing.TriggerType = *req.TriggerType
	}

	if req.TriggerConditions != nil {
		existing.TriggerConditions = *req.TriggerConditions
	}

	if req.TriggerConfig != nil {
		existing.TriggerConfig = *req.TriggerConfig
	}

	if req.Steps != nil {
		existing.Steps = *req.Steps
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	entries, err := h.workflowService.ExecutionHistory(c.Context(), id, limit)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": entries,
		"count":      len(entries),
	})
}

// ExecuteWorkflow runs one workflow immediately, bypassing trigger matching.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	// The body is optional; an empty body runs the workflow without an
	// entity context.
	var req TriggerEventRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	result, err := h.automation.ExecuteWorkflow(c.Context(), id, req.Event())
	if err != nil {
		if result != nil {
			// The run started but failed; report it rather than masking
			// the execution id.
			return c.JSON(ExecuteResponse{Success: false, ExecutionID: result.ExecutionID})
		}

		return handleServiceError(c, err)
	}

	return c.JSON(ExecuteResponse{
		Success:     result.Status != models.ExecutionStatusFailed,
		ExecutionID: result.ExecutionID,
	})
}

// HandleEvent fans a domain event out to every matching workflow.
func (h *APIHandlers) HandleEvent(c fiber.Ctx) error {
	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	result, err := h.automation.HandleEvent(c.Context(), req.Event())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// EnqueueEvent publishes a domain event to the bus for asynchronous fan-out
// by a worker. The event is validated here so producers learn about
// malformed payloads immediately instead of from a dead letter.
func (h *APIHandlers) EnqueueEvent(c fiber.Ctx) error {
	if h.bus == nil {
		return internalError(c, errEventBusUnavailable)
	}

	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	event := req.Event()

	if err := h.automation.ValidateEvent(event); err != nil {
		return handleServiceError(c, err)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	busEvent := events.TriggerReceived{
		BaseEvent: events.BaseEvent{
			ID:        h.bus.GenerateID(),
			Type:      events.TriggerReceivedEvent,
			Timestamp: time.Now().UTC(),
		},
		Trigger: event,
	}

	if err := h.bus.Publish(c.Context(), event.EntityID, busEvent); err != nil {
		return internalError(c, err)
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"accepted": true,
		"event_id": busEvent.ID,
	})
}

// RunScheduler performs one poll tick. It is invoked on an external cadence
// and requires no body.
func (h *APIHandlers) RunScheduler(c fiber.Ctx) error {
	result := h.poller.Run(c.Context())

	return c.JSON(result)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Fixflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Fixflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
