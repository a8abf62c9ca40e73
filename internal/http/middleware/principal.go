// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file attaches the authenticated principal to the request context.
// Credential verification itself is an external collaborator's concern: by
// the time a request reaches this process, a trusted edge has resolved the
// caller and forwarded identity and role as headers. This middleware only
// lifts those values into typed context state for the governance chain and
// the handlers.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// Headers the authentication collaborator forwards.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// ctxKeyPrincipal is the Gin context key holding *domain.Principal.
const ctxKeyPrincipal = "principal"

// Principal reads the identity headers and stores a domain.Principal in the
// context. Requests without X-User-ID stay anonymous (no principal set);
// a missing role defaults to guest, never to an elevated role.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUserID)
		if id == "" {
			c.Next()
			return
		}
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = domain.RoleGuest
		}
		p := &domain.Principal{ID: id, Role: role}
		c.Set(ctxKeyPrincipal, p)
		// Keep the plain id available for access logging.
		c.Set("userID", p.ID)
		c.Next()
	}
}

// PrincipalFrom returns the principal attached by Principal(), or nil for
// anonymous requests.
func PrincipalFrom(c *gin.Context) *domain.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(*domain.Principal); ok {
			return p
		}
	}
	return nil
}
