// Notification HTTP handlers.
//
// This file exposes the read/mark surface over the notifications created by
// the fan-out subscriber:
//   - GET  /notifications           (own feed, newest first)
//   - POST /notifications/:id/read  (mark one read)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/utils"
)

// ListNotifications returns the caller's notifications, newest first.
// The optional limit query parameter caps the result (default 50, max 200).
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 50)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	notifs, err := h.notifSvc.List(ctx, user, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "storage failure")
		return
	}
	ok(c, http.StatusOK, gin.H{"notifications": notifs})
}

// MarkNotificationRead flags one of the caller's notifications read.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}
	id := c.Param("id")

	if err := h.notifSvc.MarkRead(ctx, user, id); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "storage failure")
		return
	}
	noContent(c)
}
