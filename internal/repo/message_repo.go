// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: creation, mutation, threaded retrieval, conversation listing, and
// the unread projection.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// CreateMessage inserts a new message row. parentID may be nil; when set it
// must reference an existing message, which necessarily was created earlier.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, receiverID, body string, parentID *string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		ParentID:   parentID,
		CreatedAt:  time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageBody replaces the body and sets the edited flag. History
// recording is the caller's concern (via the event bus); this function only
// performs the row update.
func UpdateMessageBody(ctx context.Context, db *gorm.DB, id, body string) error {
	return db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"body": body, "edited": true}).Error
}

// MarkMessageRead flags a single message read. Only the receiver's row state
// changes; the sender's view is unaffected.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Update("read", true).Error
}

// DeleteMessage removes one message together with its history rows and the
// notifications it raised, in one transaction so no orphan can survive.
func DeleteMessage(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&domain.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&domain.MessageHistory{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Message{}).Error
	})
}

// CountConversation returns the number of messages exchanged between two
// users, in either direction.
func CountConversation(ctx context.Context, db *gorm.DB, userID, peerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID).
		Count(&total).Error
	return total, err
}

// ListConversationPage returns a page of the conversation between two users,
// newest first, ordered deterministically (CreatedAt DESC, ID DESC).
func ListConversationPage(ctx context.Context, db *gorm.DB, userID, peerID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListThread returns the root message and all its descendants, oldest first.
//
// ParentID is a lookup key into the flat messages table, so the walk is an
// iterative frontier expansion: fetch the children of the current level,
// then descend. Cycles cannot occur because a parent is always created
// strictly before its replies.
func ListThread(ctx context.Context, db *gorm.DB, rootID string) ([]domain.Message, error) {
	root, err := GetMessage(ctx, db, rootID)
	if err != nil {
		return nil, err
	}

	out := []domain.Message{*root}
	frontier := []string{root.ID}
	for len(frontier) > 0 {
		var level []domain.Message
		err := db.WithContext(ctx).
			Where("parent_id IN ?", frontier).
			Order("created_at ASC, id ASC").
			Find(&level).Error
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, m := range level {
			out = append(out, m)
			frontier = append(frontier, m.ID)
		}
	}
	return out, nil
}

// ListUnreadMessages is the unread index: messages addressed to the user
// that are still unread, newest first, projected to the minimal field set.
// This query is always read-through — callers must never serve it from the
// response cache, because stale unread state is user-visible.
func ListUnreadMessages(ctx context.Context, db *gorm.DB, userID string) ([]domain.UnreadMessage, error) {
	var out []domain.UnreadMessage
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Select("id", "sender_id", "body", "created_at", "read").
		Where("receiver_id = ? AND read = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CountUnread uses a raw COUNT so a missing table surfaces as an error.
func CountUnread(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND read = ?", userID, false).
		Scan(&total).Error
	return total, err
}

// MarkMessagesRead bulk-flags unread messages for the user. With ids empty
// every unread message is marked; otherwise only the listed ones. Returns
// the number of rows updated.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, userID string, ids []string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read", true)
	return res.RowsAffected, res.Error
}
