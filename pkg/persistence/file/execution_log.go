package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
)

// ExecutionLogRepository stores one JSON file per execution log entry under
// <root>/executions.
type ExecutionLogRepository struct {
	root string
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(root string) *ExecutionLogRepository {
	return &ExecutionLogRepository{root: root}
}

// Create writes a new entry.
func (er *ExecutionLogRepository) Create(_ context.Context, entry *models.ExecutionLogEntry) error {
	err := os.MkdirAll(path.Join(er.root, "executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	return er.write(entry)
}

// Update overwrites an existing entry. Entries already in a terminal state
// are immutable.
func (er *ExecutionLogRepository) Update(ctx context.Context, entry *models.ExecutionLogEntry) error {
	existing, err := er.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}

	if existing.Status.Terminal() {
		return persistence.ErrEntryImmutable
	}

	return er.write(entry)
}

// GetByID retrieves an entry by its ID.
func (er *ExecutionLogRepository) GetByID(_ context.Context, id string) (*models.ExecutionLogEntry, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionLogNotFound
		}

		return nil, fmt.Errorf("failed to fetch execution log entry %s: %w", id, err)
	}

	var entry models.ExecutionLogEntry

	err = json.Unmarshal(body, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution log entry %s: %w", id, err)
	}

	return &entry, nil
}

// ListByWorkflow returns entries for one workflow, newest first.
func (er *ExecutionLogRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionLogEntry, error) {
	dir := os.DirFS(path.Join(er.root, "executions"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution log files: %w", err)
	}

	entries := make([]*models.ExecutionLogEntry, 0)

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(er.root, "executions", file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read execution log file %s: %w", file, err)
		}

		var entry models.ExecutionLogEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution log file %s: %w", file, err)
		}

		if entry.WorkflowID == workflowID {
			entries = append(entries, &entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (er *ExecutionLogRepository) write(entry *models.ExecutionLogEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution log entry %s: %w", entry.ID, err)
	}

	filePath := path.Join(er.root, "executions", entry.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}
