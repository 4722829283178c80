// Package variables builds the template variable mapping for one workflow run.
package variables

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
)

// knownNames is the fixed vocabulary of variables every run resolves. Known
// names always appear in the mapping, as the empty string when backing data
// is missing, so templates can never show a literal placeholder for them.
var knownNames = []string{
	"client_name",
	"client_first_name",
	"client_phone",
	"client_email",
	"client_address",
	"job_title",
	"job_status",
	"job_address",
	"job_scheduled_date",
	"job_scheduled_time",
	"invoice_number",
	"invoice_total",
	"invoice_due_date",
	"company_name",
	"company_phone",
	"company_email",
	"company_website",
	"current_date",
	"current_time",
	"booking_link",
	"review_link",
	"payment_link",
}

// Resolver loads an entity and its related records and flattens them into a
// variable mapping. Resolution is read-only.
type Resolver struct {
	entities persistence.EntityRepository
	links    Links
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a resolver backed by the given entity store.
func NewResolver(entities persistence.EntityRepository, links Links, logger *slog.Logger) *Resolver {
	return &Resolver{
		entities: entities,
		links:    links,
		logger:   logger.With("module", "variable_resolver"),
		now:      time.Now,
	}
}

// Context is the resolved variable mapping plus the contact details steps
// need for dispatch. It is built per execution and never persisted.
type Context struct {
	Vars           map[string]string
	ClientPhone    string
	ClientEmail    string
	EntityType     models.EntityType
	EntityID       string
	UserID         string
	OrganizationID string
}

// Resolve builds the variable context for an entity. A missing root entity
// fails resolution outright; missing related records degrade to empty values.
func (r *Resolver) Resolve(ctx context.Context, event models.TriggerEvent) (*Context, error) {
	vars := make(map[string]string, len(knownNames))
	for _, name := range knownNames {
		vars[name] = ""
	}

	now := r.now().UTC()
	vars["current_date"] = now.Format("January 2, 2006")
	vars["current_time"] = now.Format("3:04 PM")
	vars["booking_link"] = r.links.Booking()
	vars["review_link"] = r.links.Review()

	vc := &Context{
		Vars:           vars,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		UserID:         event.UserID,
		OrganizationID: event.OrganizationID,
	}

	clientID, err := r.resolveEntity(ctx, event, vc)
	if err != nil {
		return nil, err
	}

	r.resolveClient(ctx, clientID, vc)
	r.resolveCompany(ctx, event.UserID, event.OrganizationID, vars)

	return vc, nil
}

// resolveEntity loads the root entity and returns the linked client id.
func (r *Resolver) resolveEntity(ctx context.Context, event models.TriggerEvent, vc *Context) (string, error) {
	switch event.EntityType {
	case models.EntityTypeJob:
		job, err := r.entities.JobByID(ctx, event.EntityID)
		if err != nil {
			return "", fmt.Errorf("failed to load job %s: %w", event.EntityID, err)
		}

		vc.Vars["job_title"] = job.Title
		vc.Vars["job_status"] = job.Status
		vc.Vars["job_address"] = job.Address

		if job.ScheduledFor != nil {
			vc.Vars["job_scheduled_date"] = job.ScheduledFor.Format("January 2, 2006")
			vc.Vars["job_scheduled_time"] = job.ScheduledFor.Format("3:04 PM")
		}

		return job.ClientID, nil
	case models.EntityTypeInvoice:
		invoice, err := r.entities.InvoiceByID(ctx, event.EntityID)
		if err != nil {
			return "", fmt.Errorf("failed to load invoice %s: %w", event.EntityID, err)
		}

		vc.Vars["invoice_number"] = invoice.Number
		vc.Vars["invoice_total"] = fmt.Sprintf("%.2f", invoice.Total)
		vc.Vars["payment_link"] = r.links.Payment(invoice.ID)

		if invoice.DueDate != nil {
			vc.Vars["invoice_due_date"] = invoice.DueDate.Format("January 2, 2006")
		}

		return invoice.ClientID, nil
	case models.EntityTypeClient:
		// The client is the root entity; resolveClient fills its variables.
		return event.EntityID, nil
	case models.EntityTypeNone:
		// Time-based triggers may fire without an entity; company and
		// date/time variables still resolve.
		return "", nil
	default:
		return "", fmt.Errorf("unsupported entity type %q", event.EntityType)
	}
}

func (r *Resolver) resolveClient(ctx context.Context, clientID string, vc *Context) {
	if clientID == "" {
		return
	}

	client, err := r.entities.ClientByID(ctx, clientID)
	if err != nil {
		// Related lookup failures degrade to empty values.
		r.logger.WarnContext(ctx, "Failed to load client, using empty values",
			"client_id", clientID, "error", err)

		return
	}

	vc.Vars["client_name"] = client.Name
	vc.Vars["client_first_name"] = firstName(client)
	vc.Vars["client_phone"] = client.Phone
	vc.Vars["client_email"] = client.Email
	vc.Vars["client_address"] = client.Address
	vc.ClientPhone = client.Phone
	vc.ClientEmail = client.Email
}

func (r *Resolver) resolveCompany(ctx context.Context, userID, organizationID string, vars map[string]string) {
	profile, err := r.entities.CompanyProfileByOwner(ctx, userID, organizationID)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to load company profile, using empty values",
			"user_id", userID, "error", err)

		return
	}

	vars["company_name"] = profile.Name
	vars["company_phone"] = profile.Phone
	vars["company_email"] = profile.Email
	vars["company_website"] = profile.Website
}

func firstName(client *models.Client) string {
	if client.FirstName != "" {
		return client.FirstName
	}

	for i, r := range client.Name {
		if r == ' ' {
			return client.Name[:i]
		}
	}

	return client.Name
}
