package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations. Steps and
// conditions live in JSONB columns; documents are schema-validated before
// every write so malformed blobs never reach the table.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
		id
	  , name
	  , description
	  , trigger_type
	  , trigger_conditions
	  , trigger_config
	  , steps
	  , status
	  , user_id
	  , organization_id
	  , execution_count
	  , success_count
	  , last_executed_at
	  , created_at
	  , updated_at
`

// GetAll returns all non-deleted workflows, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	return r.collectWorkflows(ctx, rows)
}

// GetByID retrieves a workflow by its ID. Returns nil when no row exists.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetActiveByTrigger returns active workflows of one trigger type across all
// owners.
func (r *WorkflowRepository) GetActiveByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL AND status = $1 AND trigger_type = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, models.WorkflowStatusActive, triggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows by trigger: %w", err)
	}

	return r.collectWorkflows(ctx, rows)
}

// Save upserts a workflow. The steps and conditions documents are validated
// against their JSON schemas before the write.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	conditions, steps, triggerConfig, err := marshalDocuments(workflow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (
			id, name, description, trigger_type, trigger_conditions,
			trigger_config, steps, status, user_id, organization_id,
			execution_count, success_count, last_executed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_conditions = EXCLUDED.trigger_conditions,
			trigger_config = EXCLUDED.trigger_config,
			steps = EXCLUDED.steps,
			status = EXCLUDED.status,
			user_id = EXCLUDED.user_id,
			organization_id = EXCLUDED.organization_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.TriggerType,
		conditions, triggerConfig, steps, workflow.Status,
		workflow.UserID, workflow.OrganizationID,
		workflow.ExecutionCount, workflow.SuccessCount, workflow.LastExecutedAt,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// Delete soft-deletes a workflow by setting deleted_at.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

// RecordExecution bumps the run counters in one atomic UPDATE, so concurrent
// runs of the same workflow cannot lose increments.
func (r *WorkflowRepository) RecordExecution(ctx context.Context, id string, success bool, executedAt time.Time) error {
	query := `
		UPDATE workflows SET
			execution_count = execution_count + 1,
			success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			last_executed_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, success, executedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record execution for workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check record execution result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		conditions    []byte
		triggerConfig []byte
		steps         []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Description, &workflow.TriggerType,
		&conditions, &triggerConfig, &steps, &workflow.Status,
		&workflow.UserID, &workflow.OrganizationID,
		&workflow.ExecutionCount, &workflow.SuccessCount, &workflow.LastExecutedAt,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(conditions, &workflow.TriggerConditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger conditions for workflow %s: %w", workflow.ID, err)
	}

	if triggerConfig != nil {
		err = json.Unmarshal(triggerConfig, &workflow.TriggerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config for workflow %s: %w", workflow.ID, err)
		}
	}

	err = json.Unmarshal(steps, &workflow.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps for workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) collectWorkflows(ctx context.Context, rows *sql.Rows) ([]*models.Workflow, error) {
	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func marshalDocuments(workflow *models.Workflow) (conditions, steps, triggerConfig []byte, err error) {
	if workflow.TriggerConditions == nil {
		workflow.TriggerConditions = []models.Condition{}
	}

	if workflow.Steps == nil {
		workflow.Steps = []models.Step{}
	}

	conditions, err = json.Marshal(workflow.TriggerConditions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}

	err = models.ValidateConditionsDocument(conditions)
	if err != nil {
		return nil, nil, nil, err
	}

	steps, err = json.Marshal(workflow.Steps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
	}

	err = models.ValidateStepsDocument(steps)
	if err != nil {
		return nil, nil, nil, err
	}

	if workflow.TriggerConfig != nil {
		triggerConfig, err = json.Marshal(workflow.TriggerConfig)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal trigger config: %w", err)
		}
	}

	return conditions, steps, triggerConfig, nil
}
