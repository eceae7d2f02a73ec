package store

import (
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
)

// InsertNotification records one provider-facing push so a client that was
// offline can catch up later.
func InsertNotification(db *gorm.DB, n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("store: notification is required")
	}
	if n.ProviderID == "" {
		return fmt.Errorf("store: notification provider id is required")
	}
	if n.Type == "" {
		return fmt.Errorf("store: notification type is required")
	}
	if n.Channel == "" {
		n.Channel = "ws"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := db.Create(n).Error; err != nil {
		return fmt.Errorf("store: insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a provider's notifications, newest first.
// unreadOnly restricts to rows not yet marked read.
func ListNotifications(db *gorm.DB, providerID string, unreadOnly bool) ([]models.Notification, error) {
	if providerID == "" {
		return nil, fmt.Errorf("store: providerID is required")
	}
	q := db.Where("provider_id = ?", providerID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: notifications for %s: %w", providerID, err)
	}
	return out, nil
}

// MarkNotificationsRead marks every unread notification for a provider as
// read and reports how many were affected.
func MarkNotificationsRead(db *gorm.DB, providerID string) (int64, error) {
	if providerID == "" {
		return 0, fmt.Errorf("store: providerID is required")
	}
	result := db.Model(&models.Notification{}).
		Where("provider_id = ? AND read = ?", providerID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("store: mark notifications read for %s: %w", providerID, result.Error)
	}
	return result.RowsAffected, nil
}
