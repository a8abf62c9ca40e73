// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the message lifecycle: sending, editing, marking read, deleting, and
// the threaded/conversation/unread read paths. It validates inputs, enforces
// participant rules, persists rows through the repo layer, and publishes the
// lifecycle events that drive notification fan-out and edit auditing.
//
// Event discipline: MessageCreated is published exactly once per persisted
// message, and MessageEdited only when the body actually changed — a no-op
// edit writes nothing and publishes nothing.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// message and user identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/events"
	"github.com/tbourn/go-messaging-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService coordinates message persistence and lifecycle events.
type MessageService struct {
	DB  *gorm.DB
	Bus *events.Bus

	// Optional guard; 0 disables the length check.
	MaxBodyRunes int
}

// Send validates and persists a new message, then publishes MessageCreated.
// parentID, when set, must reference an existing message; the reply inherits
// nothing from its parent beyond the linkage.
//
// A subscriber failure (e.g. the notification write) is returned to the
// caller: the message row exists, but the operation is reported failed
// because the lost side effect is correctness-relevant.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, body string, parentID *string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrTooLong
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	if parentID != nil && *parentID != "" {
		if _, err := repo.GetMessage(ctx, s.DB, *parentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
	} else {
		parentID = nil
	}

	msg, err := repo.CreateMessage(ctx, s.DB, senderID, receiverID, body, parentID)
	if err != nil {
		return nil, err
	}

	if err := s.Bus.Publish(ctx, events.MessageCreated{Message: *msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// Edit replaces the body of a message the user sent. When the new body
// equals the current one the call is a no-op: nothing is written and no
// event is published, so the audit trail records only real changes.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, newBody string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Edit",
		trace.WithAttributes(
			attribute.String("message.id", messageID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return nil, ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(newBody) > s.MaxBodyRunes {
		return nil, ErrTooLong
	}

	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotSender
	}

	if msg.Body == newBody {
		return msg, nil
	}

	previous := msg.Body
	if err := repo.UpdateMessageBody(ctx, s.DB, messageID, newBody); err != nil {
		return nil, err
	}
	msg.Body = newBody
	msg.Edited = true

	if err := s.Bus.Publish(ctx, events.MessageEdited{Message: *msg, PreviousBody: previous}); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead flags a message read. Only the receiver may do so.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID string) error {
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.ReceiverID != userID {
		return ErrNotReceiver
	}
	return repo.MarkMessageRead(ctx, s.DB, messageID)
}

// Delete removes one message the user sent, together with its history and
// notifications.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	return repo.DeleteMessage(ctx, s.DB, messageID)
}

// Thread returns a message and all its reply descendants, oldest first. Any
// participant of the root message may read the thread.
func (s *MessageService) Thread(ctx context.Context, userID, messageID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Thread",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	root, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if root.SenderID != userID && root.ReceiverID != userID {
		return nil, ErrNotParticipant
	}
	return repo.ListThread(ctx, s.DB, messageID)
}

// ConversationPage is one page of a two-party conversation.
type ConversationPage struct {
	Messages []domain.Message `json:"messages"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	Total    int64            `json:"total"`
}

// ListConversation returns a page of the conversation between the user and
// peer, newest first. The HTTP layer may serve this through the response
// cache; the service itself always reads storage.
func (s *MessageService) ListConversation(ctx context.Context, userID, peerID string, page, perPage int) (*ConversationPage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListConversation",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("peer.id", peerID),
			attribute.Int("page", page),
			attribute.Int("per_page", perPage),
		),
	)
	defer span.End()

	total, err := repo.CountConversation(ctx, s.DB, userID, peerID)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListConversationPage(ctx, s.DB, userID, peerID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	return &ConversationPage{Messages: msgs, Page: page, PerPage: perPage, Total: total}, nil
}

// Unread is the unread index: messages addressed to the user that are still
// unread, minimally projected. Always read-through — never cached.
func (s *MessageService) Unread(ctx context.Context, userID string) ([]domain.UnreadMessage, error) {
	return repo.ListUnreadMessages(ctx, s.DB, userID)
}

// UnreadCount reports how many unread messages the user has.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnread(ctx, s.DB, userID)
}

// MarkAllRead bulk-marks the user's unread messages; with ids empty, all of
// them. Returns the number of messages flagged.
func (s *MessageService) MarkAllRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return repo.MarkMessagesRead(ctx, s.DB, userID, ids)
}

// History lists the edit audit trail for a message the user participates in.
func (s *MessageService) History(ctx context.Context, userID, messageID string) ([]domain.MessageHistory, error) {
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return nil, ErrNotParticipant
	}
	return repo.ListMessageHistory(ctx, s.DB, messageID)
}
