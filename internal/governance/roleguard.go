package governance

import (
	"net/http"
	"strings"

	"golang.org/x/text/cases"
)

// RoleGuard requires an elevated role on a configured set of path prefixes.
//
// Decisions:
//   - path not protected          → allow
//   - no principal on the request → 401, Unauthenticated
//   - role not in the allowed set → 403, the observed role echoed back in
//     current_role so clients can diagnose their own access without seeing
//     anyone else's data
//   - role allowed                → allow
type RoleGuard struct {
	prefixes []string
	allowed  map[string]struct{}
}

// NewRoleGuard protects the given path prefixes, admitting only principals
// whose role is in roles. Role comparison is case-folded on both sides, so
// a collaborator forwarding "Admin" matches a configured "admin". Casers are
// stateful, so each comparison builds its own.
func NewRoleGuard(prefixes, roles []string) *RoleGuard {
	fold := cases.Fold()
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[fold.String(r)] = struct{}{}
	}
	return &RoleGuard{prefixes: prefixes, allowed: allowed}
}

// Name implements Stage.
func (g *RoleGuard) Name() string { return "role_guard" }

// Admit implements Stage.
func (g *RoleGuard) Admit(req *Request) Outcome {
	if !g.protects(req.Path) {
		return Allow
	}

	if req.Principal == nil || req.Principal.ID == "" {
		return Reject(g.Name(), http.StatusUnauthorized,
			"Authentication required",
			"You must be logged in to access this resource",
			nil,
		)
	}

	if _, ok := g.allowed[cases.Fold().String(req.Principal.Role)]; !ok {
		return Reject(g.Name(), http.StatusForbidden,
			"Access denied",
			"You must be an admin or moderator to access this resource",
			map[string]any{
				"current_role": req.Principal.Role,
			},
		)
	}

	return Allow
}

func (g *RoleGuard) protects(path string) bool {
	for _, p := range g.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
