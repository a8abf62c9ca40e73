// Package governance implements the request admission chain that every
// inbound request must pass before reaching business logic.
//
// The chain is an explicit ordered list of stages sharing one small
// capability, Admit. Composition is a plain slice traversal with early
// return: the first rejecting stage terminates evaluation, and later stages
// never observe a request that was already rejected. Each stage is a value
// that can be constructed and tested in isolation.
//
// The stages shipped here, in their fixed production order:
//  1. TimeGate    — rejects requests during the blocked serving window
//  2. RateLimiter — sliding-window quota on message-send POSTs
//  3. RoleGuard   — role requirement on protected path prefixes
package governance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// Request is the transport-neutral view of an inbound request that the
// stages decide on. The HTTP layer builds one per request; Principal is nil
// when the authentication collaborator resolved nobody.
type Request struct {
	Method    string
	Path      string
	ClientIP  string
	Now       time.Time
	Principal *domain.Principal
}

// PrincipalLabel returns the principal id for access logging, or "anonymous"
// when the request carries no principal.
func (r *Request) PrincipalLabel() string {
	if r.Principal == nil || r.Principal.ID == "" {
		return "anonymous"
	}
	return r.Principal.ID
}

// Outcome is the decision a stage (and hence the chain) renders for a
// request. Rejections are ordinary values, not errors: they carry everything
// the transport needs to write the response.
type Outcome struct {
	Allowed bool

	// Populated only on rejection.
	Status  int               // HTTP status to respond with
	Error   string            // short machine-facing error label
	Message string            // human-readable explanation
	Extra   map[string]any    // stage-specific payload fields (current_time, retry_after, current_role)
	Stage   string            // rejecting stage name, for logs and metrics
}

// Allow is the shared success outcome.
var Allow = Outcome{Allowed: true}

// Reject builds a rejection outcome for the named stage.
func Reject(stage string, status int, errLabel, message string, extra map[string]any) Outcome {
	return Outcome{
		Status:  status,
		Error:   errLabel,
		Message: message,
		Extra:   extra,
		Stage:   stage,
	}
}

// Stage is a single admission check. Implementations must be safe for
// concurrent use: Admit runs in every serving goroutine.
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string
	// Admit decides the request. Returning an Outcome with Allowed=false
	// short-circuits the chain.
	Admit(req *Request) Outcome
}

// AccessLogger receives one record per request that enters the chain,
// regardless of outcome. The zerolog-backed implementation lives in the HTTP
// layer; the chain only depends on this narrow shape.
type AccessLogger func(principalLabel, path string, at time.Time)

var rejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "governance_rejections_total",
		Help: "Total requests rejected by the admission chain, by stage.",
	},
	[]string{"stage"},
)

func init() {
	prometheus.MustRegister(rejections)
}

// Chain is the ordered admission pipeline. Construct it once at startup with
// the production stage order and share it across serving goroutines; the
// chain itself holds no mutable state.
type Chain struct {
	stages []Stage
	logAcc AccessLogger
}

// NewChain builds a chain over the given stages, evaluated in argument
// order. logAcc may be nil when access logging is not wanted (tests).
func NewChain(logAcc AccessLogger, stages ...Stage) *Chain {
	return &Chain{stages: stages, logAcc: logAcc}
}

// Admit runs the stages in order and returns the first rejection, or Allow
// when every stage passes. Every request is access-logged exactly once, even
// when rejected.
func (c *Chain) Admit(req *Request) Outcome {
	if c.logAcc != nil {
		c.logAcc(req.PrincipalLabel(), req.Path, req.Now)
	}
	for _, s := range c.stages {
		if out := s.Admit(req); !out.Allowed {
			rejections.WithLabelValues(out.Stage).Inc()
			return out
		}
	}
	return Allow
}
