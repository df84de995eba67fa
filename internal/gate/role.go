package gate

import (
	"net/http"
	"strings"
)

// RoleRule protects every path under Prefix, admitting only Allowed roles.
type RoleRule struct {
	Prefix  string
	Allowed []Role
}

// RoleGate checks authentication and role membership on protected prefixes.
// The first rule whose prefix matches decides.
type RoleGate struct {
	rules []roleRule
}

type roleRule struct {
	prefix  string
	allowed map[Role]struct{}
}

// NewRoleGate validates rules and creates the gate.
func NewRoleGate(rules []RoleRule) (*RoleGate, error) {
	if len(rules) == 0 {
		return nil, configError("role", "at least one rule is required")
	}

	g := &RoleGate{rules: make([]roleRule, 0, len(rules))}
	for _, r := range rules {
		if r.Prefix == "" {
			return nil, configError("role", "rule prefix cannot be empty")
		}
		if len(r.Allowed) == 0 {
			return nil, configError("role", "rule %q has no allowed roles", r.Prefix)
		}
		allowed := make(map[Role]struct{}, len(r.Allowed))
		for _, role := range r.Allowed {
			if !role.Valid() {
				return nil, configError("role", "rule %q: unknown role %q", r.Prefix, role)
			}
			allowed[role] = struct{}{}
		}
		g.rules = append(g.rules, roleRule{prefix: r.Prefix, allowed: allowed})
	}
	return g, nil
}

func (g *RoleGate) Name() string { return "role" }

func (g *RoleGate) Evaluate(req *Request) Result {
	for _, rule := range g.rules {
		if !strings.HasPrefix(req.Path, rule.prefix) {
			continue
		}
		if !req.Authenticated {
			return Reject(http.StatusForbidden, ReasonUnauthenticated, "authentication required")
		}
		if _, ok := rule.allowed[req.Role]; !ok {
			return Reject(http.StatusForbidden, ReasonInsufficientRole, "insufficient permissions")
		}
		return Pass()
	}
	return Pass()
}
