package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fixlify/fixflow/pkg/dispatch"
	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/events"
	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/template"
	"github.com/fixlify/fixflow/pkg/variables"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotRunnable is returned before any step runs when the
	// workflow is inactive or has no steps.
	ErrWorkflowNotRunnable = errors.New("workflow is not runnable")
	// ErrResolutionFailed wraps a root-entity load failure; the run is
	// marked failed without attempting any step.
	ErrResolutionFailed = errors.New("variable resolution failed")
)

// Result is the outcome of one Execute or Resume call.
type Result struct {
	ExecutionID string
	Status      models.ExecutionStatus
	ResumeAt    time.Time // Set when Status is waiting
}

// Executor runs a workflow's ordered step list against a trigger event.
// Step side effects are not transactional: a failure in step N does not roll
// back steps 1..N-1.
type Executor struct {
	repository    *Repository
	logs          persistence.ExecutionLogRepository
	resolver      *variables.Resolver
	sms           dispatch.SMSDispatcher
	email         dispatch.EmailDispatcher
	notifications *dispatch.NotificationWriter
	queue         suspend.Queue
	publisher     eventbus.EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

// NewExecutor wires the executor's collaborators. publisher may be nil when
// no event bus is configured.
func NewExecutor(
	repository *Repository,
	logs persistence.ExecutionLogRepository,
	resolver *variables.Resolver,
	sms dispatch.SMSDispatcher,
	email dispatch.EmailDispatcher,
	notifications *dispatch.NotificationWriter,
	queue suspend.Queue,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		repository:    repository,
		logs:          logs,
		resolver:      resolver,
		sms:           sms,
		email:         email,
		notifications: notifications,
		queue:         queue,
		publisher:     publisher,
		logger:        logger.With("module", "step_executor"),
		now:           time.Now,
	}
}

// Execute runs one workflow for one trigger event. Configuration errors
// (inactive workflow, no steps) short-circuit before any log entry exists.
func (e *Executor) Execute(ctx context.Context, wf *models.Workflow, event models.TriggerEvent) (*Result, error) {
	if !wf.Runnable() {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, ErrWorkflowNotRunnable)
	}

	entry := &models.ExecutionLogEntry{
		ID:          generateExecutionID(),
		WorkflowID:  wf.ID,
		Status:      models.ExecutionStatusStarted,
		TriggerData: event,
		StartedAt:   e.now().UTC(),
	}

	err := e.logs.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution log entry: %w", err)
	}

	logger := e.logger.With("workflow_id", wf.ID, "execution_id", entry.ID)
	logger.InfoContext(ctx, "Starting workflow run", "trigger_type", event.TriggerType)

	e.publish(ctx, wf.ID, events.RunStarted{
		BaseEvent:   e.baseEvent(events.RunStartedEvent, wf.ID),
		ExecutionID: entry.ID,
		Trigger:     event,
	})

	vc, err := e.resolver.Resolve(ctx, event)
	if err != nil {
		resolveErr := fmt.Errorf("%w: %s", ErrResolutionFailed, err.Error())
		e.finalize(ctx, logger, wf, entry, resolveErr.Error())

		return &Result{ExecutionID: entry.ID, Status: models.ExecutionStatusFailed}, resolveErr
	}

	return e.runFrom(ctx, logger, wf, entry, vc, 0, "")
}

// Resume continues a suspended run at the step after its delay. Workflow
// status is deliberately not re-checked: deactivating a workflow does not
// abort an in-flight run.
func (e *Executor) Resume(ctx context.Context, c suspend.Continuation) (*Result, error) {
	logger := e.logger.With("workflow_id", c.WorkflowID, "execution_id", c.ExecutionID)

	wf, err := e.repository.FetchByID(ctx, c.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow for resume: %w", err)
	}

	entry, err := e.logs.GetByID(ctx, c.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution log entry for resume: %w", err)
	}

	vc := &variables.Context{
		Vars:           c.Variables,
		ClientPhone:    c.ClientPhone,
		ClientEmail:    c.ClientEmail,
		EntityType:     models.EntityType(c.EntityType),
		EntityID:       c.EntityID,
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
	}

	logger.InfoContext(ctx, "Resuming workflow run", "next_step_index", c.NextStepIndex)

	return e.runFrom(ctx, logger, wf, entry, vc, c.NextStepIndex, c.LastError)
}

// runFrom executes steps[startIndex:] in list order. Step errors are
// isolated: the run continues unless the failed step has continue_on_error
// disabled. The last error wins in the final status.
func (e *Executor) runFrom(
	ctx context.Context,
	logger *slog.Logger,
	wf *models.Workflow,
	entry *models.ExecutionLogEntry,
	vc *variables.Context,
	startIndex int,
	lastError string,
) (*Result, error) {
	for i := startIndex; i < len(wf.Steps); i++ {
		step := wf.Steps[i]
		stepLogger := logger.With("step_id", step.ID, "step_type", step.Config.StepType())

		if delay, ok := step.Config.(models.DelayConfig); ok {
			// A trailing delay has nothing left to wake up for.
			if i == len(wf.Steps)-1 {
				stepLogger.InfoContext(ctx, "Skipping trailing delay step")

				continue
			}

			return e.doSuspend(ctx, stepLogger, wf, entry, vc, i+1, lastError, delay)
		}

		err := e.executeStep(ctx, stepLogger, step, wf, vc)
		if err != nil {
			stepLogger.ErrorContext(ctx, "Step failed", "error", err)

			lastError = fmt.Sprintf("step %s (%s): %s", step.ID, step.Config.StepType(), err.Error())

			if !step.ContinueOnError {
				stepLogger.InfoContext(ctx, "Aborting remaining steps")

				break
			}
		}
	}

	e.finalize(ctx, logger, wf, entry, lastError)

	status := models.ExecutionStatusCompleted
	if lastError != "" {
		status = models.ExecutionStatusFailed
	}

	return &Result{ExecutionID: entry.ID, Status: status}, nil
}

// executeStep dispatches one step by its concrete config type. Unknown step
// types are skipped by documented policy, never fatal.
func (e *Executor) executeStep(
	ctx context.Context,
	logger *slog.Logger,
	step models.Step,
	wf *models.Workflow,
	vc *variables.Context,
) error {
	switch config := step.Config.(type) {
	case models.SMSConfig:
		if vc.ClientPhone == "" {
			return fmt.Errorf("client has no phone number: %w", dispatch.ErrMissingRecipient)
		}

		return e.sms.SendSMS(ctx, dispatch.SMSMessage{
			To:      vc.ClientPhone,
			Message: template.Render(config.Message, vc.Vars),
			UserID:  wf.UserID,
		})
	case models.EmailConfig:
		if vc.ClientEmail == "" {
			return fmt.Errorf("client has no email address: %w", dispatch.ErrMissingRecipient)
		}

		body := template.Render(config.Body, vc.Vars)

		return e.email.SendEmail(ctx, dispatch.EmailMessage{
			To:      vc.ClientEmail,
			Subject: template.Render(config.Subject, vc.Vars),
			HTML:    textToHTML(body),
			Text:    body,
			UserID:  wf.UserID,
		})
	case models.NotificationConfig:
		return e.notifications.Notify(ctx, models.Notification{
			UserID:         wf.UserID,
			OrganizationID: wf.OrganizationID,
			Title:          template.Render(config.Title, vc.Vars),
			Message:        template.Render(config.Message, vc.Vars),
			EntityType:     string(vc.EntityType),
			EntityID:       vc.EntityID,
		})
	case models.UnknownConfig:
		logger.WarnContext(ctx, "Skipping step of unknown type")

		return nil
	case models.DelayConfig:
		// Handled by runFrom before dispatch; reaching here is a bug.
		return errors.New("delay step reached the dispatch switch")
	default:
		return fmt.Errorf("unhandled step config type %T", config)
	}
}

// doSuspend parks the run in the continuation queue instead of sleeping, so
// the wait holds no worker.
func (e *Executor) doSuspend(
	ctx context.Context,
	logger *slog.Logger,
	wf *models.Workflow,
	entry *models.ExecutionLogEntry,
	vc *variables.Context,
	nextStepIndex int,
	lastError string,
	delay models.DelayConfig,
) (*Result, error) {
	resumeAt := e.now().UTC().Add(delay.Duration())

	err := e.queue.Enqueue(ctx, suspend.Continuation{
		ExecutionID:    entry.ID,
		WorkflowID:     wf.ID,
		NextStepIndex:  nextStepIndex,
		Variables:      vc.Vars,
		ClientPhone:    vc.ClientPhone,
		ClientEmail:    vc.ClientEmail,
		EntityType:     string(vc.EntityType),
		EntityID:       vc.EntityID,
		UserID:         vc.UserID,
		OrganizationID: vc.OrganizationID,
		LastError:      lastError,
		ResumeAt:       resumeAt,
	})
	if err != nil {
		// The continuation could not be stored, so the rest of the run can
		// never happen; fail the run rather than lose it silently.
		e.finalize(ctx, logger, wf, entry, fmt.Sprintf("failed to suspend run: %s", err.Error()))

		return &Result{ExecutionID: entry.ID, Status: models.ExecutionStatusFailed}, err
	}

	entry.Status = models.ExecutionStatusWaiting
	entry.NextStepIndex = nextStepIndex
	entry.ErrorMessage = lastError

	err = e.logs.Update(ctx, entry)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark execution waiting", "error", err)
	}

	logger.InfoContext(ctx, "Workflow run suspended", "resume_at", resumeAt)

	e.publish(ctx, wf.ID, events.RunSuspended{
		BaseEvent:   e.baseEvent(events.RunSuspendedEvent, wf.ID),
		ExecutionID: entry.ID,
		ResumeAt:    resumeAt,
	})

	return &Result{ExecutionID: entry.ID, Status: models.ExecutionStatusWaiting, ResumeAt: resumeAt}, nil
}

// finalize moves the entry to its terminal state exactly once and bumps the
// workflow counters.
func (e *Executor) finalize(
	ctx context.Context,
	logger *slog.Logger,
	wf *models.Workflow,
	entry *models.ExecutionLogEntry,
	lastError string,
) {
	completedAt := e.now().UTC()
	entry.CompletedAt = &completedAt
	entry.NextStepIndex = 0
	entry.ErrorMessage = lastError

	success := lastError == ""
	if success {
		entry.Status = models.ExecutionStatusCompleted
	} else {
		entry.Status = models.ExecutionStatusFailed
	}

	err := e.logs.Update(ctx, entry)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to finalize execution log entry", "error", err)
	}

	err = e.repository.RecordExecution(ctx, wf.ID, success, completedAt)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record workflow execution", "error", err)
	}

	duration := completedAt.Sub(entry.StartedAt)

	if success {
		logger.InfoContext(ctx, "Workflow run completed", "duration", duration)
		e.publish(ctx, wf.ID, events.RunCompleted{
			BaseEvent:   e.baseEvent(events.RunCompletedEvent, wf.ID),
			ExecutionID: entry.ID,
			Duration:    duration,
		})

		return
	}

	logger.WarnContext(ctx, "Workflow run failed", "error", lastError, "duration", duration)
	e.publish(ctx, wf.ID, events.RunFailed{
		BaseEvent:   e.baseEvent(events.RunFailedEvent, wf.ID),
		ExecutionID: entry.ID,
		Error:       lastError,
		Duration:    duration,
	})
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  e.now().UTC(),
		WorkflowID: workflowID,
	}
}

func textToHTML(text string) string {
	return "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>"
}

func generateExecutionID() string {
	return "exec-" + uuid.New().String()[:8]
}
