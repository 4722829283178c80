// Package scheduler implements the time-based trigger poller. It is invoked
// on an external cadence, scans for due conditions, and feeds synthetic
// trigger events into the matcher and executor path.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/workflow"
)

// scheduledTimeTolerance is the window around a scheduled_time target within
// which a poll tick fires it. A poll interval wider than twice this window
// can miss a firing; that imprecision is accepted.
const scheduledTimeTolerance = 60 * time.Second

// Result summarizes one poll tick across all trigger kinds.
type Result struct {
	Success        bool      `json:"success"`
	ProcessedCount int       `json:"processedCount"`
	TotalChecked   int       `json:"totalChecked"`
	Errors         []string  `json:"errors,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Poller scans stored entities for due time-based conditions. Each trigger
// kind issues its own query and is error-isolated from the others.
type Poller struct {
	workflows *workflow.Repository
	entities  persistence.EntityRepository
	matcher   *workflow.Matcher
	executor  *workflow.Executor
	logger    *slog.Logger
	now       func() time.Time
}

// NewPoller wires the poller's collaborators.
func NewPoller(
	workflows *workflow.Repository,
	entities persistence.EntityRepository,
	matcher *workflow.Matcher,
	executor *workflow.Executor,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		workflows: workflows,
		entities:  entities,
		matcher:   matcher,
		executor:  executor,
		logger:    logger.With("module", "scheduler_poller"),
		now:       time.Now,
	}
}

type pollKind struct {
	name string
	run  func(ctx context.Context, now time.Time, result *Result) error
}

// Run performs one poll tick. There is no firing deduplication: a condition
// still due on the next tick fires again.
func (p *Poller) Run(ctx context.Context) *Result {
	now := p.now().UTC()
	result := &Result{Timestamp: now}

	kinds := []pollKind{
		{string(models.TriggerInvoiceOverdue), p.pollOverdueInvoices},
		{string(models.TriggerJobFollowUp), p.pollJobFollowUps},
		{string(models.TriggerMaintenanceReminder), p.pollMaintenanceReminders},
		{string(models.TriggerClientCheckIn), p.pollClientCheckIns},
		{string(models.TriggerScheduledTime), p.pollScheduledTimes},
	}

	for _, kind := range kinds {
		err := kind.run(ctx, now, result)
		if err != nil {
			p.logger.ErrorContext(ctx, "Trigger kind check failed", "kind", kind.name, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", kind.name, err.Error()))
		}
	}

	result.Success = len(result.Errors) == 0

	p.logger.InfoContext(ctx, "Completed poll tick",
		"processed", result.ProcessedCount,
		"checked", result.TotalChecked,
		"errors", len(result.Errors))

	return result
}

func (p *Poller) pollOverdueInvoices(ctx context.Context, now time.Time, result *Result) error {
	workflows, err := p.workflows.FetchActiveByTrigger(ctx, models.TriggerInvoiceOverdue)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, wf := range workflows {
		days := configInt(wf.TriggerConfig, "days_overdue", 7)
		status := configString(wf.TriggerConfig, "invoice_status", "sent")

		invoices, err := p.entities.OverdueInvoices(ctx, now.AddDate(0, 0, -days), status)
		if err != nil {
			return fmt.Errorf("failed to query overdue invoices: %w", err)
		}

		result.TotalChecked += len(invoices)

		owned := make([]*models.Invoice, 0, len(invoices))
		for _, invoice := range invoices {
			if wf.OwnedBy(invoice.UserID, invoice.OrganizationID) {
				owned = append(owned, invoice)
			}
		}

		summaries := make([]map[string]any, 0, len(owned))
		for _, invoice := range owned {
			summaries = append(summaries, invoicePayload(invoice))
		}

		for _, invoice := range owned {
			payload := invoicePayload(invoice)
			payload["overdue_invoices"] = summaries

			event := models.TriggerEvent{
				TriggerType:    models.TriggerInvoiceOverdue,
				EntityType:     models.EntityTypeInvoice,
				EntityID:       invoice.ID,
				NewState:       payload,
				UserID:         invoice.UserID,
				OrganizationID: invoice.OrganizationID,
				OccurredAt:     now,
			}

			p.fire(ctx, wf, event, result)
		}
	}

	return nil
}

func (p *Poller) pollJobFollowUps(ctx context.Context, now time.Time, result *Result) error {
	workflows, err := p.workflows.FetchActiveByTrigger(ctx, models.TriggerJobFollowUp)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, wf := range workflows {
		days := configInt(wf.TriggerConfig, "days_after_completion", 3)

		jobs, err := p.entities.JobsCompletedBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			return fmt.Errorf("failed to query completed jobs: %w", err)
		}

		result.TotalChecked += len(jobs)

		for _, job := range jobs {
			if !wf.OwnedBy(job.UserID, job.OrganizationID) {
				continue
			}

			p.fire(ctx, wf, jobEvent(models.TriggerJobFollowUp, job, now), result)
		}
	}

	return nil
}

func (p *Poller) pollMaintenanceReminders(ctx context.Context, now time.Time, result *Result) error {
	workflows, err := p.workflows.FetchActiveByTrigger(ctx, models.TriggerMaintenanceReminder)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, wf := range workflows {
		daysAhead := configInt(wf.TriggerConfig, "days_ahead", 0)

		jobs, err := p.entities.JobsDueForService(ctx, now.AddDate(0, 0, daysAhead))
		if err != nil {
			return fmt.Errorf("failed to query jobs due for service: %w", err)
		}

		result.TotalChecked += len(jobs)

		for _, job := range jobs {
			if !wf.OwnedBy(job.UserID, job.OrganizationID) {
				continue
			}

			p.fire(ctx, wf, jobEvent(models.TriggerMaintenanceReminder, job, now), result)
		}
	}

	return nil
}

func (p *Poller) pollClientCheckIns(ctx context.Context, now time.Time, result *Result) error {
	workflows, err := p.workflows.FetchActiveByTrigger(ctx, models.TriggerClientCheckIn)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, wf := range workflows {
		days := configInt(wf.TriggerConfig, "days_since_contact", 30)

		clients, err := p.entities.ClientsNotContactedSince(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			return fmt.Errorf("failed to query stale clients: %w", err)
		}

		result.TotalChecked += len(clients)

		for _, client := range clients {
			if !wf.OwnedBy(client.UserID, client.OrganizationID) {
				continue
			}

			event := models.TriggerEvent{
				TriggerType: models.TriggerClientCheckIn,
				EntityType:  models.EntityTypeClient,
				EntityID:    client.ID,
				NewState: map[string]any{
					"id":   client.ID,
					"name": client.Name,
				},
				UserID:         client.UserID,
				OrganizationID: client.OrganizationID,
				OccurredAt:     now,
			}

			p.fire(ctx, wf, event, result)
		}
	}

	return nil
}

func (p *Poller) pollScheduledTimes(ctx context.Context, now time.Time, result *Result) error {
	workflows, err := p.workflows.FetchActiveByTrigger(ctx, models.TriggerScheduledTime)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, wf := range workflows {
		result.TotalChecked++

		raw := configString(wf.TriggerConfig, "scheduled_at", "")
		if raw == "" {
			continue
		}

		target, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping workflow with unparseable scheduled_at",
				"workflow_id", wf.ID, "scheduled_at", raw)

			continue
		}

		offset := now.Sub(target)
		if offset < -scheduledTimeTolerance || offset > scheduledTimeTolerance {
			continue
		}

		event := models.TriggerEvent{
			TriggerType:    models.TriggerScheduledTime,
			EntityType:     models.EntityTypeNone,
			NewState:       map[string]any{"scheduled_at": target.UTC().Format(time.RFC3339)},
			UserID:         wf.UserID,
			OrganizationID: wf.OrganizationID,
			OccurredAt:     now,
		}

		p.fire(ctx, wf, event, result)
	}

	return nil
}

// fire runs one workflow for one synthetic event after a final matcher pass,
// so trigger conditions apply to poller firings exactly as to live events.
// An individual run failure is recorded but does not abort the kind.
func (p *Poller) fire(ctx context.Context, wf *models.Workflow, event models.TriggerEvent, result *Result) {
	if !p.matcher.Matches(event, wf) {
		return
	}

	_, err := p.executor.Execute(ctx, wf, event)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("workflow %s: %s", wf.ID, err.Error()))

		return
	}

	result.ProcessedCount++
}

func jobEvent(triggerType models.TriggerType, job *models.Job, now time.Time) models.TriggerEvent {
	payload := map[string]any{
		"id":     job.ID,
		"title":  job.Title,
		"status": job.Status,
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339)
	}

	if job.NextServiceAt != nil {
		payload["next_service_at"] = job.NextServiceAt.UTC().Format(time.RFC3339)
	}

	return models.TriggerEvent{
		TriggerType:    triggerType,
		EntityType:     models.EntityTypeJob,
		EntityID:       job.ID,
		NewState:       payload,
		UserID:         job.UserID,
		OrganizationID: job.OrganizationID,
		OccurredAt:     now,
	}
}

func invoicePayload(invoice *models.Invoice) map[string]any {
	payload := map[string]any{
		"id":     invoice.ID,
		"number": invoice.Number,
		"status": invoice.Status,
		"total":  invoice.Total,
	}
	if invoice.DueDate != nil {
		payload["due_date"] = invoice.DueDate.UTC().Format(time.RFC3339)
	}

	return payload
}

func configInt(config map[string]any, key string, fallback int) int {
	value, ok := config[key]
	if !ok {
		return fallback
	}

	// JSON numbers decode as float64.
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func configString(config map[string]any, key, fallback string) string {
	value, ok := config[key].(string)
	if !ok {
		return fallback
	}

	return value
}
