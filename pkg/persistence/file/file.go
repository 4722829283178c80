// Package file provides file-based persistence for workflows, execution logs,
// domain entities, and notifications. It is meant for development and tests;
// production deployments use the postgres backend.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/fixlify/fixflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionLogRepository
	entityRepo    *EntityRepository
	notifyRepo    *NotificationRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped so database URLs work unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionLogRepository(cleanRoot),
		entityRepo:    NewEntityRepository(cleanRoot),
		notifyRepo:    NewNotificationRepository(cleanRoot),
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionLogRepository() persistence.ExecutionLogRepository {
	return fp.executionRepo
}

func (fp *Persistence) EntityRepository() persistence.EntityRepository {
	return fp.entityRepo
}

func (fp *Persistence) NotificationRepository() persistence.NotificationRepository {
	return fp.notifyRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
