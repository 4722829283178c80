package models

import "time"

// Job is the read-side projection of a field-service job used by variable
// resolution and the scheduler poller.
type Job struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	Address        string     `json:"address,omitempty"`
	ClientID       string     `json:"client_id,omitempty"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	NextServiceAt  *time.Time `json:"next_service_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Invoice is the read-side projection of an invoice.
type Invoice struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	Status         string     `json:"status"`
	Total          float64    `json:"total"`
	ClientID       string     `json:"client_id,omitempty"`
	JobID          string     `json:"job_id,omitempty"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

// Client is the read-side projection of a client record. Phone and email may
// be empty; steps that need them fail individually, not the whole run.
type Client struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	FirstName      string     `json:"first_name,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Address        string     `json:"address,omitempty"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	LastContactAt  *time.Time `json:"last_contact_at,omitempty"`
}

// CompanyProfile holds the owner's business identity used in message
// templates.
type CompanyProfile struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Website        string `json:"website,omitempty"`
}

// Notification is an in-app notification created by a send_notification step.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	Message        string    `json:"message"`
	EntityType     string    `json:"entity_type,omitempty"`
	EntityID       string    `json:"entity_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
