// Account HTTP handlers.
//
// This file exposes account removal:
//   - DELETE /users/me
//
// Deletion publishes PrincipalDeleted; the cascade subscriber removes every
// message, notification, and history row referencing the caller inside one
// transaction, so a 204 here means no orphan references survive.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeleteAccount removes the caller's account data.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()

	user, authed := principalID(c)
	if !authed {
		return
	}

	if err := h.acctSvc.DeleteAccount(ctx, user); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "storage failure")
		return
	}
	noContent(c)
}
