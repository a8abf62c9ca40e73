// Package services – NotificationService
//
// Read/mark surface for the notifications that NotificationFanout writes.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"
)

// NotificationService exposes a user's notification feed.
type NotificationService struct {
	DB *gorm.DB
}

// List returns the user's notifications, newest first. limit <= 0 returns
// everything.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, s.DB, userID, limit)
}

// MarkRead flags one of the user's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, userID, notificationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
