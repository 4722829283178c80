package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/fixlify/fixflow/pkg/models"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/google/uuid"
)

// NotificationWriter creates in-app notification records for workflow owners.
type NotificationWriter struct {
	store persistence.NotificationRepository
}

// NewNotificationWriter creates the notification writer.
func NewNotificationWriter(store persistence.NotificationRepository) *NotificationWriter {
	return &NotificationWriter{store: store}
}

// Notify writes one notification addressed to the owner. It succeeds whenever
// the store is reachable.
func (n *NotificationWriter) Notify(ctx context.Context, notification models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	err := n.store.Create(ctx, &notification)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
