// Package persistence provides the data storage abstraction for workflows,
// execution logs, and the domain entities read by variable resolution and the
// scheduler poller.
package persistence

import (
	"context"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
)

// Persistence is the root storage handle. Repositories are accessed through
// it so implementations can share one connection.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionLogRepository() ExecutionLogRepository
	EntityRepository() EntityRepository
	NotificationRepository() NotificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores automation workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// GetActiveByTrigger returns active workflows of the given trigger type
	// across all owners; owner scoping happens in the matcher.
	GetActiveByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	// RecordExecution increments execution_count (and success_count when the
	// run completed) and stamps last_executed_at.
	RecordExecution(ctx context.Context, id string, success bool, executedAt time.Time) error
}

// ExecutionLogRepository stores workflow run audit records. Terminal entries
// are immutable; Update on a terminal entry is rejected.
type ExecutionLogRepository interface {
	Create(ctx context.Context, entry *models.ExecutionLogEntry) error
	Update(ctx context.Context, entry *models.ExecutionLogEntry) error
	GetByID(ctx context.Context, id string) (*models.ExecutionLogEntry, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLogEntry, error)
}

// EntityRepository reads the domain entities referenced by triggers and
// variable resolution. Lookups are by id or simple equality/range filters;
// nothing deeper than one hop is required.
type EntityRepository interface {
	JobByID(ctx context.Context, id string) (*models.Job, error)
	InvoiceByID(ctx context.Context, id string) (*models.Invoice, error)
	ClientByID(ctx context.Context, id string) (*models.Client, error)
	CompanyProfileByOwner(ctx context.Context, userID, organizationID string) (*models.CompanyProfile, error)

	// Poller queries. All are "now minus threshold" range scans.
	OverdueInvoices(ctx context.Context, dueBefore time.Time, status string) ([]*models.Invoice, error)
	JobsCompletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
	JobsDueForService(ctx context.Context, asOf time.Time) ([]*models.Job, error)
	ClientsNotContactedSince(ctx context.Context, cutoff time.Time) ([]*models.Client, error)
}

// NotificationRepository stores in-app notifications created by
// send_notification steps.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByOwner(ctx context.Context, userID, organizationID string, limit int) ([]*models.Notification, error)
}
