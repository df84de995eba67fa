package gate

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoleGate(t *testing.T) *RoleGate {
	t.Helper()
	g, err := NewRoleGate([]RoleRule{
		{Prefix: "/api/admin/", Allowed: []Role{RoleAdmin}},
		{Prefix: "/api/messages/", Allowed: []Role{RoleModerator, RoleAdmin}},
	})
	require.NoError(t, err)
	return g
}

func TestRoleGate_Evaluate(t *testing.T) {
	g := newTestRoleGate(t)

	tests := []struct {
		name   string
		req    Request
		status int
		reason Reason
	}{
		{
			name:   "unauthenticated on protected path",
			req:    Request{Path: "/api/messages/"},
			status: http.StatusForbidden,
			reason: ReasonUnauthenticated,
		},
		{
			name:   "guest on protected path",
			req:    Request{Path: "/api/messages/", Authenticated: true, Role: RoleGuest},
			status: http.StatusForbidden,
			reason: ReasonInsufficientRole,
		},
		{
			name: "moderator on protected path",
			req:  Request{Path: "/api/messages/42/", Authenticated: true, Role: RoleModerator},
		},
		{
			name:   "moderator on admin path",
			req:    Request{Path: "/api/admin/gate-stats", Authenticated: true, Role: RoleModerator},
			status: http.StatusForbidden,
			reason: ReasonInsufficientRole,
		},
		{
			name: "unprotected path",
			req:  Request{Path: "/api/health"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Evaluate(&tt.req)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestRoleGate_Messages(t *testing.T) {
	g := newTestRoleGate(t)

	assert.Equal(t, "authentication required", g.Evaluate(&Request{Path: "/api/messages/"}).Message)
	assert.Equal(t, "insufficient permissions",
		g.Evaluate(&Request{Path: "/api/messages/", Authenticated: true, Role: RoleGuest}).Message)
}

func TestNewRoleGate_Misconfigured(t *testing.T) {
	tests := []struct {
		name  string
		rules []RoleRule
	}{
		{"no rules", nil},
		{"empty prefix", []RoleRule{{Allowed: []Role{RoleAdmin}}}},
		{"no roles", []RoleRule{{Prefix: "/api/"}}},
		{"unknown role", []RoleRule{{Prefix: "/api/", Allowed: []Role{"owner"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoleGate(tt.rules)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}
