package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/governance"
	"github.com/tbourn/go-messaging-backend/internal/ratelimit"
)

// denyStage rejects everything with a fixed outcome.
type denyStage struct{ out governance.Outcome }

func (denyStage) Name() string { return "deny" }

func (s denyStage) Admit(*governance.Request) governance.Outcome { return s.out }

// allowStage records the request it saw.
type allowStage struct{ last *governance.Request }

func (*allowStage) Name() string { return "allow" }
func (s *allowStage) Admit(req *governance.Request) governance.Outcome {
	*s.last = *req
	return governance.Allow
}

func newGovernedEngine(chain *governance.Chain) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Principal())
	r.Use(Governance(chain))
	r.POST("/api/v1/messages", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/api/v1/messages/x/thread", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestGovernance_RejectionRendersStagePayload(t *testing.T) {
	chain := governance.NewChain(nil, denyStage{out: governance.Reject(
		"deny", http.StatusTooManyRequests,
		"Rate limit exceeded",
		"You can only send 5 messages per minute",
		map[string]any{"retry_after": 42},
	)})
	r := newGovernedEngine(chain)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("Retry-After = %q, want 42", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"] != "Rate limit exceeded" {
		t.Fatalf("error = %v", body["error"])
	}
	if body["message"] != "You can only send 5 messages per minute" {
		t.Fatalf("message = %v", body["message"])
	}
	if body["retry_after"] != float64(42) {
		t.Fatalf("retry_after = %v", body["retry_after"])
	}
}

func TestGovernance_AllowedRequestReachesHandler(t *testing.T) {
	seen := &governance.Request{}
	chain := governance.NewChain(nil, &allowStage{last: seen})
	r := newGovernedEngine(chain)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserRole, domain.RoleAdmin)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want the handler's 201", w.Code)
	}
	if seen.Method != http.MethodPost || seen.Path != "/api/v1/messages" {
		t.Fatalf("stage saw %s %s", seen.Method, seen.Path)
	}
	if seen.ClientIP == "" || seen.Now.IsZero() {
		t.Fatalf("stage request missing client ip or timestamp: %+v", seen)
	}
	if seen.Principal == nil || seen.Principal.ID != "u1" || seen.Principal.Role != domain.RoleAdmin {
		t.Fatalf("stage saw principal %+v", seen.Principal)
	}
}

func TestGovernance_SixthSendWithinWindowRejected(t *testing.T) {
	tracker := ratelimit.NewClientWindowTracker(5, time.Minute)
	defer tracker.Close()
	chain := governance.NewChain(nil,
		governance.NewRateLimiter(tracker, "/api/v1/messages", 5, time.Minute),
	)
	r := newGovernedEngine(chain)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("send %d status = %d, want 201", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth send status = %d, want 429", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "You can only send 5 messages per minute" {
		t.Fatalf("message = %v", body["message"])
	}
	ra, ok := body["retry_after"].(float64)
	if !ok || ra <= 0 || ra > 60 {
		t.Fatalf("retry_after = %v, want a positive number of seconds", body["retry_after"])
	}

	// Reads are still admitted for the throttled client.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages/x/thread", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("read status = %d, want 200", w.Code)
	}
}

func TestPrincipal_HeaderResolution(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Principal())
	r.GET("/whoami", func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	t.Run("no headers means anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		var body map[string]any
		json.Unmarshal(w.Body.Bytes(), &body)
		if body["anonymous"] != true {
			t.Fatalf("body = %v, want anonymous", body)
		}
	})

	t.Run("missing role defaults to guest", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderUserID, "u1")
		r.ServeHTTP(w, req)
		var p domain.Principal
		json.Unmarshal(w.Body.Bytes(), &p)
		if p.ID != "u1" || p.Role != domain.RoleGuest {
			t.Fatalf("principal = %+v, want u1/guest", p)
		}
	})

	t.Run("role header is honored", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderUserID, "u2")
		req.Header.Set(HeaderUserRole, domain.RoleModerator)
		r.ServeHTTP(w, req)
		var p domain.Principal
		json.Unmarshal(w.Body.Bytes(), &p)
		if p.ID != "u2" || p.Role != domain.RoleModerator {
			t.Fatalf("principal = %+v", p)
		}
	})
}
