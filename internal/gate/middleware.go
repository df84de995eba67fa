package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// Principal is the authenticated caller, as populated by the auth layer.
type Principal struct {
	Authenticated bool
	Subject       string
	Name          string
	Role          Role
}

type principalKey struct{}

// WithPrincipal stores p in ctx for the gate middleware to read.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, or an anonymous one.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// NewRequest builds the gate view of r using the principal in its context.
func NewRequest(r *http.Request, clock Clock) *Request {
	p := PrincipalFrom(r.Context())
	return &Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Header:        r.Header,
		RemoteAddr:    r.RemoteAddr,
		Authenticated: p.Authenticated,
		Role:          p.Role,
		Subject:       p.Subject,
		ArrivedAt:     clock.Now(),
	}
}

// Middleware returns HTTP middleware that evaluates chain for every request.
// Rejections are written as terminal responses: 429 with a JSON error body and
// Retry-After, 403 with a plain-text reason.
func Middleware(chain *Chain, clock Clock) func(http.Handler) http.Handler {
	if clock == nil {
		clock = SystemClock{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := NewRequest(r, clock)
			res := chain.Evaluate(req)
			if res.Passed() {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("Request rejected",
				"reason", string(res.Reason),
				"status", res.Status,
				"identity", req.Identity(),
				"method", req.Method,
				"path", req.Path,
			)
			WriteRejection(w, res)
		})
	}
}

// WriteRejection renders a rejected Result.
func WriteRejection(w http.ResponseWriter, res Result) {
	if res.Status == http.StatusTooManyRequests {
		if res.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Status)
		json.NewEncoder(w).Encode(map[string]string{"error": res.Message})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(res.Status)
	w.Write([]byte(res.Message))
}

func retryAfterSeconds(res Result) int {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
