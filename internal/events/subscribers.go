package events

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"
)

// bodyPreviewRunes caps how much of a message body is quoted inside a
// notification.
const bodyPreviewRunes = 50

// NotificationFanout reacts to MessageCreated by writing exactly one
// Notification for the receiver. Replies produce kind "reply", everything
// else "new_message". Exactly-once holds because the bus publishes each
// MessageCreated exactly once.
type NotificationFanout struct {
	DB *gorm.DB
}

// Name implements Subscriber.
func (NotificationFanout) Name() string { return "notification_fanout" }

// Handle implements Subscriber.
func (f NotificationFanout) Handle(ctx context.Context, ev Event) error {
	created, ok := ev.(MessageCreated)
	if !ok {
		return nil
	}
	msg := created.Message

	kind := domain.KindNewMessage
	body := fmt.Sprintf("New message from %s: %s", msg.SenderID, previewBody(msg.Body))
	if msg.IsReply() {
		kind = domain.KindReply
		body = fmt.Sprintf("%s replied to your message: %s", msg.SenderID, previewBody(msg.Body))
	}

	_, err := repo.CreateNotification(ctx, f.DB, msg.ReceiverID, msg.ID, kind, body)
	return err
}

// previewBody clips body to bodyPreviewRunes runes, appending an ellipsis
// when anything was cut. Clipping is rune-based so multi-byte text is never
// split mid-character.
func previewBody(body string) string {
	if utf8.RuneCountInString(body) <= bodyPreviewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:bodyPreviewRunes]) + "..."
}

// EditAuditLog reacts to MessageEdited by appending one MessageHistory row
// holding the pre-edit body. The publisher only emits MessageEdited for
// edits that changed the body, so every event produces exactly one row.
type EditAuditLog struct {
	DB *gorm.DB
}

// Name implements Subscriber.
func (EditAuditLog) Name() string { return "edit_audit_log" }

// Handle implements Subscriber.
func (a EditAuditLog) Handle(ctx context.Context, ev Event) error {
	edited, ok := ev.(MessageEdited)
	if !ok {
		return nil
	}
	_, err := repo.CreateMessageHistory(ctx, a.DB, edited.Message.ID, edited.PreviousBody)
	return err
}

// CascadeCleanup reacts to PrincipalDeleted by removing every record that
// references the principal: notifications addressed to them, history rows
// for messages they sent or received, and finally those messages. The three
// deletions run in one transaction so no reader can observe a notification
// or history row whose message is already gone.
type CascadeCleanup struct {
	DB *gorm.DB
}

// Name implements Subscriber.
func (CascadeCleanup) Name() string { return "cascade_cleanup" }

// Handle implements Subscriber.
func (c CascadeCleanup) Handle(ctx context.Context, ev Event) error {
	deleted, ok := ev.(PrincipalDeleted)
	if !ok {
		return nil
	}
	if err := repo.DeletePrincipalData(ctx, c.DB, deleted.PrincipalID); err != nil {
		return err
	}
	log.Info().
		Str("principal_id", deleted.PrincipalID).
		Msg("principal and all related data deleted")
	return nil
}
