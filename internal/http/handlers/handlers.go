// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the handler container and the narrow service interfaces
// it depends on. Handlers are transport-thin: validate and normalize inputs,
// resolve the calling principal, delegate to application services, and map
// service errors onto the response envelope.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/cache"
	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/http/middleware"
	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/utils"
)

// MessageService is the application surface the message handlers call.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, body string, parentID *string) (*domain.Message, error)
	Edit(ctx context.Context, userID, messageID, newBody string) (*domain.Message, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	Delete(ctx context.Context, userID, messageID string) error
	Thread(ctx context.Context, userID, messageID string) ([]domain.Message, error)
	ListConversation(ctx context.Context, userID, peerID string, page, perPage int) (*services.ConversationPage, error)
	Unread(ctx context.Context, userID string) ([]domain.UnreadMessage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string, ids []string) (int64, error)
	History(ctx context.Context, userID, messageID string) ([]domain.MessageHistory, error)
}

// NotificationService is the application surface the notification handlers call.
type NotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// AccountService is the application surface behind account deletion.
type AccountService interface {
	DeleteAccount(ctx context.Context, principalID string) error
}

// Handlers bundles the API endpoints and their dependencies.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic, plus the response cache for list endpoints.
type Handlers struct {
	msgSvc   MessageService
	notifSvc NotificationService
	acctSvc  AccountService

	cache    *cache.ResponseCache
	cacheTTL time.Duration
}

// New constructs the handler set. respCache may be nil, which disables
// caching on the list endpoints (used in tests).
func New(msgSvc MessageService, notifSvc NotificationService, acctSvc AccountService, respCache *cache.ResponseCache, cacheTTL time.Duration) *Handlers {
	return &Handlers{
		msgSvc:   msgSvc,
		notifSvc: notifSvc,
		acctSvc:  acctSvc,
		cache:    respCache,
		cacheTTL: cacheTTL,
	}
}

// principalID resolves the calling principal's id, failing the request with
// 401 when the request is anonymous. The bool result reports success.
func principalID(c *gin.Context) (string, bool) {
	if p := middleware.PrincipalFrom(c); p != nil && p.ID != "" {
		return p.ID, true
	}
	fail(c, 401, ErrCodeUnauthorized, "authentication required")
	return "", false
}

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
