// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file adapts the transport-neutral governance chain to Gin. The chain
// itself knows nothing about Gin: the adapter builds a governance.Request
// from the HTTP request, asks the chain for a decision, and renders a
// rejection as the stage's JSON payload.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messaging-backend/internal/governance"
)

// AccessLog returns the zerolog-backed logger the chain records every
// request with: principal label (or "anonymous"), path, timestamp.
func AccessLog() governance.AccessLogger {
	return func(principalLabel, path string, at time.Time) {
		log.Info().
			Str("principal", principalLabel).
			Str("path", path).
			Time("at", at).
			Msg("access")
	}
}

// Governance runs every request through the admission chain before any
// handler executes. Place it after Principal() so RoleGuard can see the
// caller, and after Logger() so rejections are access-logged with request
// context.
func Governance(chain *governance.Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &governance.Request{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			Now:       time.Now(),
			Principal: PrincipalFrom(c),
		}

		out := chain.Admit(req)
		if out.Allowed {
			c.Next()
			return
		}

		// Rejection bodies keep the stage's own field set: error and message
		// always, plus the stage extras (current_time, retry_after,
		// current_role).
		body := gin.H{
			"error":   out.Error,
			"message": out.Message,
		}
		for k, v := range out.Extra {
			body[k] = v
		}
		if ra, ok := out.Extra["retry_after"]; ok {
			if secs, ok := ra.(int); ok && secs > 0 {
				c.Header("Retry-After", strconv.Itoa(secs))
			}
		}
		c.AbortWithStatusJSON(out.Status, body)
	}
}
