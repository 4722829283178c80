package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
)

// EntityRepository reads jobs, invoices, clients, and company profiles from
// per-record JSON files. Range queries load everything and filter in memory,
// which is fine at development scale.
type EntityRepository struct {
	root string
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(root string) *EntityRepository {
	return &EntityRepository{root: root}
}

// SaveJob writes a job record. Used by tests and local seeding.
func (er *EntityRepository) SaveJob(_ context.Context, job *models.Job) error {
	return writeRecord(er.root, "jobs", job.ID, job)
}

// SaveInvoice writes an invoice record.
func (er *EntityRepository) SaveInvoice(_ context.Context, invoice *models.Invoice) error {
	return writeRecord(er.root, "invoices", invoice.ID, invoice)
}

// SaveClient writes a client record.
func (er *EntityRepository) SaveClient(_ context.Context, client *models.Client) error {
	return writeRecord(er.root, "clients", client.ID, client)
}

// SaveCompanyProfile writes a company profile keyed by its owner.
func (er *EntityRepository) SaveCompanyProfile(_ context.Context, profile *models.CompanyProfile) error {
	return writeRecord(er.root, "profiles", profileKey(profile.UserID, profile.OrganizationID), profile)
}

func (er *EntityRepository) JobByID(_ context.Context, id string) (*models.Job, error) {
	return readRecord[models.Job](er.root, "jobs", id)
}

func (er *EntityRepository) InvoiceByID(_ context.Context, id string) (*models.Invoice, error) {
	return readRecord[models.Invoice](er.root, "invoices", id)
}

func (er *EntityRepository) ClientByID(_ context.Context, id string) (*models.Client, error) {
	return readRecord[models.Client](er.root, "clients", id)
}

func (er *EntityRepository) CompanyProfileByOwner(_ context.Context, userID, organizationID string) (*models.CompanyProfile, error) {
	return readRecord[models.CompanyProfile](er.root, "profiles", profileKey(userID, organizationID))
}

// OverdueInvoices returns invoices in the given status with a due date before
// the cutoff.
func (er *EntityRepository) OverdueInvoices(_ context.Context, dueBefore time.Time, status string) ([]*models.Invoice, error) {
	return filterRecords(er.root, "invoices", func(invoice *models.Invoice) bool {
		return invoice.Status == status && invoice.DueDate != nil && invoice.DueDate.Before(dueBefore)
	})
}

// JobsCompletedBefore returns completed jobs whose completion predates the
// cutoff.
func (er *EntityRepository) JobsCompletedBefore(_ context.Context, cutoff time.Time) ([]*models.Job, error) {
	return filterRecords(er.root, "jobs", func(job *models.Job) bool {
		return job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
	})
}

// JobsDueForService returns jobs whose next service date has arrived.
func (er *EntityRepository) JobsDueForService(_ context.Context, asOf time.Time) ([]*models.Job, error) {
	return filterRecords(er.root, "jobs", func(job *models.Job) bool {
		return job.NextServiceAt != nil && !job.NextServiceAt.After(asOf)
	})
}

// ClientsNotContactedSince returns clients whose last contact predates the
// cutoff. Clients never contacted at all are included.
func (er *EntityRepository) ClientsNotContactedSince(_ context.Context, cutoff time.Time) ([]*models.Client, error) {
	return filterRecords(er.root, "clients", func(client *models.Client) bool {
		return client.LastContactAt == nil || client.LastContactAt.Before(cutoff)
	})
}

func profileKey(userID, organizationID string) string {
	if organizationID != "" {
		return "org-" + organizationID
	}

	return "user-" + userID
}

func writeRecord(root, kind, id string, record any) error {
	err := os.MkdirAll(path.Join(root, kind), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	return os.WriteFile(path.Join(root, kind, id+".json"), data, 0600)
}

func readRecord[T any](root, kind, id string) (*T, error) {
	filePath := filepath.Clean(path.Join(root, kind, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrEntityNotFound
		}

		return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return &record, nil
}

func filterRecords[T any](root, kind string, keep func(*T) bool) ([]*T, error) {
	dir := os.DirFS(path.Join(root, kind))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	records := make([]*T, 0)

	for _, file := range jsonFiles {
		record, err := readRecord[T](root, kind, file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if keep(record) {
			records = append(records, record)
		}
	}

	return records, nil
}
