package governance

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-messaging-backend/internal/ratelimit"
)

// RateLimiter throttles message sends per client. Only POSTs to the
// message-send path are counted; every other method or path passes through
// untouched, so reads and notification polling are never throttled here.
//
// The counting itself lives in ratelimit.ClientWindowTracker, which this
// stage merely keys by client IP. The tracker guarantees that purge, check,
// and record happen atomically per key, so the quota holds even when the
// same client fires concurrent requests.
type RateLimiter struct {
	tracker  *ratelimit.ClientWindowTracker
	sendPath string
	quota    int
	window   time.Duration
}

// NewRateLimiter constructs the stage over an injected tracker. sendPath is
// the message-send route (e.g. "/api/v1/messages"), matched exactly: subpaths
// like the mark-read endpoint never consume send quota. quota and window are
// echoed in the rejection message and must match the tracker's configuration.
func NewRateLimiter(tracker *ratelimit.ClientWindowTracker, sendPath string, quota int, window time.Duration) *RateLimiter {
	return &RateLimiter{tracker: tracker, sendPath: strings.TrimRight(sendPath, "/"), quota: quota, window: window}
}

// Name implements Stage.
func (l *RateLimiter) Name() string { return "rate_limiter" }

// Admit implements Stage.
func (l *RateLimiter) Admit(req *Request) Outcome {
	if req.Method != http.MethodPost || strings.TrimRight(req.Path, "/") != l.sendPath {
		return Allow
	}

	allowed, retryAfter := l.tracker.Reserve("ip:"+req.ClientIP, req.Now)
	if allowed {
		return Allow
	}

	return Reject(l.Name(), http.StatusTooManyRequests,
		"Rate limit exceeded",
		fmt.Sprintf("You can only send %d messages per %s", l.quota, windowLabel(l.window)),
		map[string]any{
			"retry_after": int(retryAfter.Seconds()),
		},
	)
}

// windowLabel renders the window for the rejection message: "minute" for the
// default 60s window, the plain duration otherwise.
func windowLabel(w time.Duration) string {
	if w == time.Minute {
		return "minute"
	}
	return w.String()
}
