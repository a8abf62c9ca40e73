// Message HTTP handlers.
//
// This file exposes REST endpoints for the message lifecycle:
//   - POST   /messages                    (send a message or reply)
//   - GET    /messages/:id/thread         (root message plus all replies)
//   - GET    /messages/:id/history        (edit audit trail)
//   - PUT    /messages/:id                (edit body)
//   - POST   /messages/:id/read           (mark read)
//   - DELETE /messages/:id                (delete own message)
//   - GET    /conversations/:peer         (paginated two-party conversation)
//   - GET    /unread                      (unread index, never cached)
//   - POST   /unread/read                 (bulk mark read)
//
// Caching: only the conversation listing goes through the response cache,
// keyed by path + query + principal so users can never see each other's
// pages. The unread index is deliberately read-through.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-messaging-backend/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a message. ParentID,
// when present, marks the message as a reply to an existing one.
type SendMessageRequest struct {
	// ReceiverID is the user the message is addressed to.
	ReceiverID string `json:"receiver_id" binding:"required,min=1" example:"user456"`
	// Body is the message text. It must be non-empty.
	Body string `json:"body" binding:"required,min=1" example:"See you at 9?"`
	// ParentID optionally references the message this one replies to.
	ParentID *string `json:"parent_id,omitempty" example:"7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"`
}

// EditMessageRequest is the JSON payload for editing a message body.
type EditMessageRequest struct {
	Body string `json:"body" binding:"required,min=1"`
}

// MarkReadRequest optionally restricts a bulk mark-read to specific ids.
type MarkReadRequest struct {
	IDs []string `json:"ids,omitempty"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeBody normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeBody(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// mapMessageErr translates service-layer errors into envelope responses.
// Unrecognized errors are treated as storage failures (500).
func mapMessageErr(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, services.ErrParentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "parent message not found")
	case errors.Is(err, services.ErrEmptyBody):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body too long")
	case errors.Is(err, services.ErrSelfMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot send a message to yourself")
	case errors.Is(err, services.ErrNotSender),
		errors.Is(err, services.ErrNotReceiver),
		errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, "storage failure")
	}
}

//
// Handlers
//

// SendMessage creates a message (or reply) and returns it. The notification
// fan-out runs synchronously inside the send, so a 200 here means the
// receiver's notification exists.
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	sender, authed := principalID(c)
	if !authed {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver_id and body required")
		return
	}
	if req.ParentID != nil {
		if _, err := uuid.Parse(*req.ParentID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "parent_id must be a UUID")
			return
		}
	}

	msg, err := h.msgSvc.Send(ctx, sender, req.ReceiverID, sanitizeBody(req.Body), req.ParentID)
	if err != nil {
		mapMessageErr(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusCreated, msg)
}

// EditMessage replaces the body of one of the caller's sent messages.
// Editing with an identical body succeeds without writing history.
func (h *Handlers) EditMessage(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	msg, err := h.msgSvc.Edit(ctx, user, id, sanitizeBody(req.Body))
	if err != nil {
		mapMessageErr(c, err, ErrCodeEditFailed)
		return
	}
	ok(c, http.StatusOK, msg)
}

// MarkMessageRead flags a received message as read.
func (h *Handlers) MarkMessageRead(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")

	if err := h.msgSvc.MarkRead(ctx, user, id); err != nil {
		mapMessageErr(c, err, ErrCodeEditFailed)
		return
	}
	noContent(c)
}

// DeleteMessage removes one of the caller's sent messages together with its
// history and notifications.
func (h *Handlers) DeleteMessage(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")

	if err := h.msgSvc.Delete(ctx, user, id); err != nil {
		mapMessageErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// GetThread returns a message and all its replies, oldest first.
func (h *Handlers) GetThread(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")

	msgs, err := h.msgSvc.Thread(ctx, user, id)
	if err != nil {
		mapMessageErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs})
}

// GetMessageHistory returns the edit audit trail for a message.
func (h *Handlers) GetMessageHistory(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")

	hist, err := h.msgSvc.History(ctx, user, id)
	if err != nil {
		mapMessageErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"history": hist})
}

// ListConversation returns a page of the conversation with :peer, newest
// first, served through the response cache when one is configured.
func (h *Handlers) ListConversation(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	peer := c.Param("peer")
	page, perPage := clampPagination(c)

	compute := func() ([]byte, error) {
		pageData, err := h.msgSvc.ListConversation(ctx, user, peer, page, perPage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pageData)
	}

	if h.cache == nil {
		body, err := compute()
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "storage failure")
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	// Key includes the principal scope so one user's page can never be
	// served to another.
	key := fmt.Sprintf("conversation:%s:%s:%s", user, c.Request.URL.Path, c.Request.URL.RawQuery)
	body, err := h.cache.GetOrCompute(key, h.cacheTTL, compute)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "storage failure")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// ListUnread is the unread index endpoint. It always reads storage: unread
// state is user-visible and must never be stale.
func (h *Handlers) ListUnread(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}

	msgs, err := h.msgSvc.Unread(ctx, user)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "storage failure")
		return
	}
	count, err := h.msgSvc.UnreadCount(ctx, user)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "storage failure")
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs, "count": count})
}

// MarkUnreadRead bulk-marks the caller's unread messages as read. An empty
// ids list marks everything.
func (h *Handlers) MarkUnreadRead(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}

	var req MarkReadRequest
	// Body is optional (an absent body means "mark everything"), but a
	// malformed one must not silently degrade into a mark-all.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids must be a JSON array of message ids")
		return
	}

	n, err := h.msgSvc.MarkAllRead(ctx, user, req.IDs)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEditFailed, "storage failure")
		return
	}
	ok(c, http.StatusOK, gin.H{"marked": n})
}
