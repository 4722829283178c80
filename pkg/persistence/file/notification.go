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
)

// NotificationRepository stores in-app notifications as JSON files under
// <root>/notifications.
type NotificationRepository struct {
	root string
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(root string) *NotificationRepository {
	return &NotificationRepository{root: root}
}

// Create writes a notification record.
func (nr *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	return writeRecord(nr.root, "notifications", notification.ID, notification)
}

// ListByOwner returns the owner's notifications, newest first. Organization
// scope wins over user scope when both are set.
func (nr *NotificationRepository) ListByOwner(_ context.Context, userID, organizationID string, limit int) ([]*models.Notification, error) {
	dir := os.DirFS(path.Join(nr.root, "notifications"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list notification files: %w", err)
	}

	notifications := make([]*models.Notification, 0)

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(nr.root, "notifications", file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read notification file %s: %w", file, err)
		}

		var notification models.Notification
		if err := json.Unmarshal(body, &notification); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification file %s: %w", file, err)
		}

		if organizationID != "" {
			if notification.OrganizationID != organizationID {
				continue
			}
		} else if notification.UserID != userID {
			continue
		}

		notifications = append(notifications, &notification)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}

	return notifications, nil
}
