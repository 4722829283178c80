package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fixlify/fixflow/pkg/models"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification record.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, organization_id, title, message,
			entity_type, entity_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		notification.ID, notification.UserID, notification.OrganizationID,
		notification.Title, notification.Message,
		notification.EntityType, notification.EntityID, notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification %s: %w", notification.ID, err)
	}

	return nil
}

// ListByOwner returns the owner's notifications, newest first. Organization
// scope wins over user scope when both are set.
func (r *NotificationRepository) ListByOwner(ctx context.Context, userID, organizationID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, organization_id, title, message, entity_type, entity_id, created_at
		FROM notifications
	`

	var (
		rows *sql.Rows
		err  error
	)

	// limit <= 0 means no cap
	suffix := ` ORDER BY created_at DESC`
	if limit > 0 {
		suffix += ` LIMIT $2`
	}

	if organizationID != "" {
		args := []any{organizationID}
		if limit > 0 {
			args = append(args, limit)
		}

		rows, err = r.db.QueryContext(ctx, query+` WHERE organization_id = $1`+suffix, args...)
	} else {
		args := []any{userID}
		if limit > 0 {
			args = append(args, limit)
		}

		rows, err = r.db.QueryContext(ctx, query+` WHERE user_id = $1 AND organization_id = ''`+suffix, args...)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	notifications := make([]*models.Notification, 0)

	for rows.Next() {
		var notification models.Notification

		err = rows.Scan(
			&notification.ID, &notification.UserID, &notification.OrganizationID,
			&notification.Title, &notification.Message,
			&notification.EntityType, &notification.EntityID, &notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		notifications = append(notifications, &notification)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}
