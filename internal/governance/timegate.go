package governance

import (
	"fmt"
	"net/http"

	"github.com/tbourn/go-messaging-backend/internal/config"
)

// TimeGate rejects every request whose local time-of-day falls inside the
// configured blocked window. The stage is stateless: the comparison is
// purely on the request's wall clock, so two requests one second apart can
// legitimately get different answers around the window edges.
//
// The window is half-open, [start, end): a request at exactly the end
// instant is allowed. When start > end the window wraps midnight and means
// "at or after start OR before end" (the default 21:00–06:00 blocks nights).
type TimeGate struct {
	start config.TimeOfDay
	end   config.TimeOfDay
}

// NewTimeGate constructs the gate for the given blocked window.
func NewTimeGate(start, end config.TimeOfDay) *TimeGate {
	return &TimeGate{start: start, end: end}
}

// Name implements Stage.
func (g *TimeGate) Name() string { return "time_gate" }

// Admit implements Stage.
func (g *TimeGate) Admit(req *Request) Outcome {
	now := req.Now
	minute := now.Hour()*60 + now.Minute()

	blocked := false
	switch {
	case g.start.Minutes() > g.end.Minutes():
		// Wraps midnight: blocked after start or before end.
		blocked = minute >= g.start.Minutes() || minute < g.end.Minutes()
	case g.start.Minutes() < g.end.Minutes():
		blocked = minute >= g.start.Minutes() && minute < g.end.Minutes()
	default:
		// start == end describes an empty window; never blocks.
	}
	if !blocked {
		return Allow
	}

	return Reject(g.Name(), http.StatusForbidden,
		"Access denied",
		fmt.Sprintf("Messaging is not available between %s and %s", g.start, g.end),
		map[string]any{
			// Wall-clock time at rejection, for observability on the client side.
			"current_time": now.Format("2006-01-02 15:04:05"),
		},
	)
}
