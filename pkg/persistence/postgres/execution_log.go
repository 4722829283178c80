package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
)

// ExecutionLogRepository stores workflow run audit records. Terminal entries
// are guarded at the SQL level: the UPDATE predicate excludes completed and
// failed rows, so a finalized entry can never be rewritten.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

const executionLogColumns = `
		id
	  , workflow_id
	  , status
	  , trigger_data
	  , error_message
	  , next_step_index
	  , started_at
	  , completed_at
`

// Create inserts a new execution log entry.
func (r *ExecutionLogRepository) Create(ctx context.Context, entry *models.ExecutionLogEntry) error {
	triggerData, err := json.Marshal(entry.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		INSERT INTO execution_logs (
			id, workflow_id, status, trigger_data, error_message,
			next_step_index, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.WorkflowID, entry.Status, triggerData,
		entry.ErrorMessage, entry.NextStepIndex, entry.StartedAt, entry.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution log entry %s: %w", entry.ID, err)
	}

	return nil
}

// Update rewrites a non-terminal entry. Updating a completed or failed entry
// returns persistence.ErrEntryImmutable.
func (r *ExecutionLogRepository) Update(ctx context.Context, entry *models.ExecutionLogEntry) error {
	triggerData, err := json.Marshal(entry.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		UPDATE execution_logs SET
			status = $2,
			trigger_data = $3,
			error_message = $4,
			next_step_index = $5,
			completed_at = $6
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Status, triggerData,
		entry.ErrorMessage, entry.NextStepIndex, entry.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution log entry %s: %w", entry.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		existing, err := r.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}

		if existing.Status.Terminal() {
			return persistence.ErrEntryImmutable
		}

		return persistence.ErrExecutionLogNotFound
	}

	return nil
}

// GetByID retrieves an execution log entry by its ID.
func (r *ExecutionLogRepository) GetByID(ctx context.Context, id string) (*models.ExecutionLogEntry, error) {
	query := `SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE id = $1
	`

	entry, err := scanExecutionLogEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionLogNotFound
		}

		return nil, fmt.Errorf("failed to scan execution log entry: %w", err)
	}

	return entry, nil
}

// ListByWorkflow returns up to limit entries for the workflow, newest first.
func (r *ExecutionLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLogEntry, error) {
	query := `SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	args := []any{workflowID}

	// limit <= 0 means no cap
	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution log entries: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		entry, err := scanExecutionLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution log entries: %w", err)
	}

	return entries, nil
}

func scanExecutionLogEntry(row rowScanner) (*models.ExecutionLogEntry, error) {
	var (
		entry       models.ExecutionLogEntry
		triggerData []byte
	)

	err := row.Scan(
		&entry.ID, &entry.WorkflowID, &entry.Status, &triggerData,
		&entry.ErrorMessage, &entry.NextStepIndex, &entry.StartedAt, &entry.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerData, &entry.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data for entry %s: %w", entry.ID, err)
	}

	return &entry, nil
}
