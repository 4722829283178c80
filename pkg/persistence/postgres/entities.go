package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
)

// EntityRepository reads the domain entity projections referenced by variable
// resolution and the scheduler poller. Writes exist for syncing projections
// in and for test seeding; the automation engine itself only reads.
type EntityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(db *sql.DB, logger *slog.Logger) *EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

const jobColumns = `
		id
	  , title
	  , status
	  , address
	  , client_id
	  , user_id
	  , organization_id
	  , scheduled_for
	  , completed_at
	  , next_service_at
	  , updated_at
`

const invoiceColumns = `
		id
	  , number
	  , status
	  , total
	  , client_id
	  , job_id
	  , user_id
	  , organization_id
	  , due_date
`

const clientColumns = `
		id
	  , name
	  , first_name
	  , phone
	  , email
	  , address
	  , user_id
	  , organization_id
	  , last_contact_at
`

// JobByID retrieves a job projection by ID.
func (r *EntityRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return job, nil
}

// InvoiceByID retrieves an invoice projection by ID.
func (r *EntityRepository) InvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	return invoice, nil
}

// ClientByID retrieves a client projection by ID.
func (r *EntityRepository) ClientByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %s: %w", id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan client: %w", err)
	}

	return client, nil
}

// CompanyProfileByOwner retrieves the business profile for an owner scope.
// Organization scope wins over user scope when both are present.
func (r *EntityRepository) CompanyProfileByOwner(ctx context.Context, userID, organizationID string) (*models.CompanyProfile, error) {
	var row *sql.Row

	query := `SELECT user_id, organization_id, name, phone, email, website FROM company_profiles`

	if organizationID != "" {
		row = r.db.QueryRowContext(ctx, query+` WHERE organization_id = $1`, organizationID)
	} else {
		row = r.db.QueryRowContext(ctx, query+` WHERE user_id = $1 AND organization_id = ''`, userID)
	}

	var profile models.CompanyProfile

	err := row.Scan(
		&profile.UserID, &profile.OrganizationID, &profile.Name,
		&profile.Phone, &profile.Email, &profile.Website,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company profile: %w", persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan company profile: %w", err)
	}

	return &profile, nil
}

// OverdueInvoices returns invoices in the given status whose due date passed
// before the cutoff.
func (r *EntityRepository) OverdueInvoices(ctx context.Context, dueBefore time.Time, status string) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1 AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date
	`

	rows, err := r.db.QueryContext(ctx, query, status, dueBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue invoices: %w", err)
	}

	return r.collectInvoices(ctx, rows)
}

// JobsCompletedBefore returns jobs completed before the cutoff.
func (r *EntityRepository) JobsCompletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE completed_at IS NOT NULL AND completed_at < $1
		ORDER BY completed_at
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed jobs: %w", err)
	}

	return r.collectJobs(ctx, rows)
}

// JobsDueForService returns jobs whose next service date is at or before asOf.
func (r *EntityRepository) JobsDueForService(ctx context.Context, asOf time.Time) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE next_service_at IS NOT NULL AND next_service_at <= $1
		ORDER BY next_service_at
	`

	rows, err := r.db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs due for service: %w", err)
	}

	return r.collectJobs(ctx, rows)
}

// ClientsNotContactedSince returns clients whose last contact predates the
// cutoff. Clients never contacted at all are included.
func (r *EntityRepository) ClientsNotContactedSince(ctx context.Context, cutoff time.Time) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE last_contact_at IS NULL OR last_contact_at < $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale clients: %w", err)
	}

	return r.collectClients(ctx, rows)
}

// SaveJob upserts a job projection.
func (r *EntityRepository) SaveJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, title, status, address, client_id, user_id, organization_id,
			scheduled_for, completed_at, next_service_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			address = EXCLUDED.address,
			client_id = EXCLUDED.client_id,
			user_id = EXCLUDED.user_id,
			organization_id = EXCLUDED.organization_id,
			scheduled_for = EXCLUDED.scheduled_for,
			completed_at = EXCLUDED.completed_at,
			next_service_at = EXCLUDED.next_service_at,
			updated_at = EXCLUDED.updated_at
	`

	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Title, job.Status, job.Address, job.ClientID,
		job.UserID, job.OrganizationID,
		job.ScheduledFor, job.CompletedAt, job.NextServiceAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	return nil
}

// SaveInvoice upserts an invoice projection.
func (r *EntityRepository) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, number, status, total, client_id, job_id, user_id,
			organization_id, due_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			client_id = EXCLUDED.client_id,
			job_id = EXCLUDED.job_id,
			user_id = EXCLUDED.user_id,
			organization_id = EXCLUDED.organization_id,
			due_date = EXCLUDED.due_date
	`

	_, err := r.db.ExecContext(ctx, query,
		invoice.ID, invoice.Number, invoice.Status, invoice.Total,
		invoice.ClientID, invoice.JobID, invoice.UserID,
		invoice.OrganizationID, invoice.DueDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save invoice %s: %w", invoice.ID, err)
	}

	return nil
}

// SaveClient upserts a client projection.
func (r *EntityRepository) SaveClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			id, name, first_name, phone, email, address, user_id,
			organization_id, last_contact_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			first_name = EXCLUDED.first_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			address = EXCLUDED.address,
			user_id = EXCLUDED.user_id,
			organization_id = EXCLUDED.organization_id,
			last_contact_at = EXCLUDED.last_contact_at
	`

	_, err := r.db.ExecContext(ctx, query,
		client.ID, client.Name, client.FirstName, client.Phone, client.Email,
		client.Address, client.UserID, client.OrganizationID, client.LastContactAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save client %s: %w", client.ID, err)
	}

	return nil
}

// SaveCompanyProfile upserts the business profile for an owner scope.
func (r *EntityRepository) SaveCompanyProfile(ctx context.Context, profile *models.CompanyProfile) error {
	query := `
		INSERT INTO company_profiles (
			user_id, organization_id, name, phone, email, website
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, organization_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			website = EXCLUDED.website
	`

	_, err := r.db.ExecContext(ctx, query,
		profile.UserID, profile.OrganizationID, profile.Name,
		profile.Phone, profile.Email, profile.Website,
	)
	if err != nil {
		return fmt.Errorf("failed to save company profile: %w", err)
	}

	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job

	err := row.Scan(
		&job.ID, &job.Title, &job.Status, &job.Address, &job.ClientID,
		&job.UserID, &job.OrganizationID,
		&job.ScheduledFor, &job.CompletedAt, &job.NextServiceAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var invoice models.Invoice

	err := row.Scan(
		&invoice.ID, &invoice.Number, &invoice.Status, &invoice.Total,
		&invoice.ClientID, &invoice.JobID, &invoice.UserID,
		&invoice.OrganizationID, &invoice.DueDate,
	)
	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

func scanClient(row rowScanner) (*models.Client, error) {
	var client models.Client

	err := row.Scan(
		&client.ID, &client.Name, &client.FirstName, &client.Phone,
		&client.Email, &client.Address, &client.UserID,
		&client.OrganizationID, &client.LastContactAt,
	)
	if err != nil {
		return nil, err
	}

	return &client, nil
}

func (r *EntityRepository) collectJobs(ctx context.Context, rows *sql.Rows) ([]*models.Job, error) {
	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	jobs := make([]*models.Job, 0)

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

func (r *EntityRepository) collectInvoices(ctx context.Context, rows *sql.Rows) ([]*models.Invoice, error) {
	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	invoices := make([]*models.Invoice, 0)

	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}

		invoices = append(invoices, invoice)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}

func (r *EntityRepository) collectClients(ctx context.Context, rows *sql.Rows) ([]*models.Client, error) {
	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	clients := make([]*models.Client, 0)

	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}

		clients = append(clients, client)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}
