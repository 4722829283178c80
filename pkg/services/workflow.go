package services

import (
	"context"
	"fmt"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow is the CRUD service for automation workflow definitions.
type Workflow struct {
	repository *workflow.Repository
	logs       persistence.ExecutionLogRepository
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(repository *workflow.Repository, logs persistence.ExecutionLogRepository) *Workflow {
	return &Workflow{
		repository: repository,
		logs:       logs,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	return w.repository.HealthCheck(ctx)
}

// List returns every stored workflow.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.repository.FetchAll(ctx)
}

// FetchByID returns one workflow or persistence.ErrWorkflowNotFound.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.repository.FetchByID(ctx, id)
}

// Create validates and stores a workflow. New workflows without a status
// start as drafts.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	err := w.validate(wf)
	if err != nil {
		return nil, err
	}

	created, err := w.repository.Create(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return created, nil
}

// Update validates and replaces an existing workflow's definition. Execution
// counters and creation time are preserved by the repository.
func (w *Workflow) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	err := w.validate(wf)
	if err != nil {
		return nil, err
	}

	updated, err := w.repository.Update(ctx, id, wf)
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a workflow.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.repository.Delete(ctx, id)
}

// ExecutionHistory returns the most recent run records for one workflow.
func (w *Workflow) ExecutionHistory(ctx context.Context, id string, limit int) ([]*models.ExecutionLogEntry, error) {
	_, err := w.repository.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := w.logs.ListByWorkflow(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution history: %w", err)
	}

	return entries, nil
}

func (w *Workflow) validate(wf *models.Workflow) error {
	if wf == nil {
		return ErrWorkflowNil
	}

	if len(wf.Name) < 3 {
		return ErrWorkflowNameShort
	}

	if !wf.TriggerType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, wf.TriggerType)
	}

	if wf.Status != "" && !wf.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, wf.Status)
	}

	return nil
}
