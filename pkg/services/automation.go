package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/workflow"
)

// RunOutcome is the per-workflow result of a trigger fan-out.
type RunOutcome struct {
	WorkflowID  string                 `json:"workflow_id"`
	ExecutionID string                 `json:"execution_id,omitempty"`
	Status      models.ExecutionStatus `json:"status,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// FanOutResult summarizes handling of one trigger event.
type FanOutResult struct {
	Matched int          `json:"matched"`
	Runs    []RunOutcome `json:"runs"`
}

// Automation orchestrates the trigger pipeline: match, resolve, execute.
type Automation struct {
	repository *workflow.Repository
	matcher    *workflow.Matcher
	executor   *workflow.Executor
	logger     *slog.Logger
	now        func() time.Time
}

// NewAutomation creates the automation service.
func NewAutomation(
	repository *workflow.Repository,
	matcher *workflow.Matcher,
	executor *workflow.Executor,
	logger *slog.Logger,
) *Automation {
	return &Automation{
		repository: repository,
		matcher:    matcher,
		executor:   executor,
		logger:     logger.With("module", "automation"),
		now:        time.Now,
	}
}

// HandleEvent fans one trigger event out to every matching workflow. Matched
// workflows run independently; one run's failure does not stop the others.
func (a *Automation) HandleEvent(ctx context.Context, event models.TriggerEvent) (*FanOutResult, error) {
	err := a.ValidateEvent(event)
	if err != nil {
		return nil, err
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}

	candidates, err := a.repository.FetchActiveByTrigger(ctx, event.TriggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate workflows: %w", err)
	}

	matched := a.matcher.Match(event, candidates)
	result := &FanOutResult{Matched: len(matched), Runs: make([]RunOutcome, 0, len(matched))}

	for _, wf := range matched {
		outcome := RunOutcome{WorkflowID: wf.ID}

		run, err := a.executor.Execute(ctx, wf, event)
		if err != nil {
			outcome.Error = err.Error()
		}

		if run != nil {
			outcome.ExecutionID = run.ExecutionID
			outcome.Status = run.Status
		}

		result.Runs = append(result.Runs, outcome)
	}

	a.logger.InfoContext(ctx, "Handled trigger event",
		"trigger_type", event.TriggerType,
		"candidates", len(candidates),
		"matched", len(matched))

	return result, nil
}

// ExecuteWorkflow runs one workflow directly, bypassing matching. The event
// inherits the workflow's trigger type and owner when the caller omits them.
func (a *Automation) ExecuteWorkflow(ctx context.Context, id string, event models.TriggerEvent) (*workflow.Result, error) {
	wf, err := a.repository.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !wf.Runnable() {
		return nil, ErrWorkflowNotRunnable
	}

	if event.TriggerType == "" {
		event.TriggerType = wf.TriggerType
	}

	if event.UserID == "" && event.OrganizationID == "" {
		event.UserID = wf.UserID
		event.OrganizationID = wf.OrganizationID
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}

	return a.executor.Execute(ctx, wf, event)
}

// ValidateEvent checks a trigger event's structural requirements without
// touching storage. Callers that defer processing validate before enqueueing
// so malformed events are rejected at intake.
func (a *Automation) ValidateEvent(event models.TriggerEvent) error {
	if event.TriggerType == "" {
		return ErrEventTypeRequired
	}

	if !event.TriggerType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, event.TriggerType)
	}

	if event.UserID == "" && event.OrganizationID == "" {
		return ErrEventOwnerRequired
	}

	if event.EntityType != models.EntityTypeNone && event.EntityID == "" {
		return ErrEventEntityRequired
	}

	return nil
}
