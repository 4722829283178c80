package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/google/uuid"
)

// Repository wraps the workflow store with id generation and timestamping.
type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(p persistence.Persistence) *Repository {
	return &Repository{persistence: p}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return wf, nil
}

// FetchActiveByTrigger returns active workflows of the given trigger type;
// the matcher applies owner scoping and conditions.
func (r *Repository) FetchActiveByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetActiveByTrigger(ctx, triggerType)
}

func (r *Repository) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		wf.ID = id.String()
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	err := r.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

func (r *Repository) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	existing, err := r.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wf.ID = id
	wf.CreatedAt = existing.CreatedAt
	wf.ExecutionCount = existing.ExecutionCount
	wf.SuccessCount = existing.SuccessCount
	wf.UpdatedAt = time.Now().UTC()

	err = r.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	return r.persistence.WorkflowRepository().Delete(ctx, id)
}

// RecordExecution bumps the workflow's execution counters.
func (r *Repository) RecordExecution(ctx context.Context, id string, success bool, executedAt time.Time) error {
	return r.persistence.WorkflowRepository().RecordExecution(ctx, id, success, executedAt)
}
