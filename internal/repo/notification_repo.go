// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Notification.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// CreateNotification inserts one notification row for a user.
func CreateNotification(ctx context.Context, db *gorm.DB, userID, messageID, kind, body string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		MessageID: messageID,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	return n, db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkNotificationRead flags one of the user's notifications read. Scoping
// by user prevents marking someone else's notification. Returns
// gorm.ErrRecordNotFound when no matching row exists.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, userID, id string) error {
	res := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
