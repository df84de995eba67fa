// Package gate implements an ordered chain of request policy checks. Each gate
// inspects a Request and either passes it on or rejects it with an HTTP status
// and message. The chain stops at the first rejection.
package gate

import (
	"net/http"
	"time"
)

// Role is the caller's role as populated by the authentication layer.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Reason classifies a rejection.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonRateLimited      Reason = "rate_limited"
	ReasonThrottled        Reason = "throttled"
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonOutsideHours     Reason = "outside_hours"
)

// Result is the outcome of a gate evaluation. The zero value is a pass.
type Result struct {
	Status  int
	Reason  Reason
	Message string

	// RetryAfter is set on rate-limit rejections.
	RetryAfter time.Duration
	// Limit is the configured limit of the gate that rejected, when it has one.
	Limit int
}

// Pass returns a passing result.
func Pass() Result { return Result{} }

// Reject returns a terminal result.
func Reject(status int, reason Reason, message string) Result {
	return Result{Status: status, Reason: reason, Message: message}
}

// Passed reports whether the request may continue.
func (r Result) Passed() bool { return r.Status == 0 }

// Request is the gate-level view of an inbound HTTP request.
type Request struct {
	Method     string
	Path       string
	Header     http.Header
	RemoteAddr string

	Authenticated bool
	Role          Role
	Subject       string // user id when authenticated

	ArrivedAt time.Time

	identity    string
	hasIdentity bool
}

// Identity returns the caller identity, resolving it on first use.
func (r *Request) Identity() string {
	if !r.hasIdentity {
		r.identity = ResolveIdentity(r.Header, r.RemoteAddr)
		r.hasIdentity = true
	}
	return r.identity
}

// SetIdentity overrides the resolved identity.
func (r *Request) SetIdentity(id string) {
	r.identity = id
	r.hasIdentity = true
}

// Gate is a single policy check.
type Gate interface {
	Name() string
	Evaluate(req *Request) Result
}

// Func adapts a function to the Gate interface.
type Func struct {
	GateName string
	Fn       func(req *Request) Result
}

func (f Func) Name() string                 { return f.GateName }
func (f Func) Evaluate(req *Request) Result { return f.Fn(req) }
