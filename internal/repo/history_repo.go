// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only MessageHistory audit trail.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// CreateMessageHistory appends one audit row holding the body a message had
// before an edit. Rows are never updated afterwards.
func CreateMessageHistory(ctx context.Context, db *gorm.DB, messageID, previousBody string) (*domain.MessageHistory, error) {
	h := &domain.MessageHistory{
		ID:           uuid.NewString(),
		MessageID:    messageID,
		PreviousBody: previousBody,
		RecordedAt:   time.Now().UTC(),
	}
	return h, db.WithContext(ctx).Create(h).Error
}

// ListMessageHistory returns the audit trail for one message, most recent
// edit first.
func ListMessageHistory(ctx context.Context, db *gorm.DB, messageID string) ([]domain.MessageHistory, error) {
	var out []domain.MessageHistory
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("recorded_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
