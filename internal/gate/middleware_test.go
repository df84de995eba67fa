package gate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
}

func newMessageLimiter(t *testing.T, clock Clock) *Chain {
	t.Helper()
	counter, err := NewSlidingWindowCounter(5, time.Minute)
	require.NoError(t, err)
	g, err := NewRateLimitGate(counter, Scope{Methods: []string{"POST"}, Prefixes: []string{"/api/messages/"}}, clock)
	require.NoError(t, err)
	return NewChain(g)
}

func TestMiddleware_RateLimitResponse(t *testing.T) {
	clock := NewManualClock(epoch)
	handler := Middleware(newMessageLimiter(t, clock), clock)(okHandler())

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/messages/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, post().Code, "request %d", i+1)
	}

	clock.Advance(10 * time.Second)
	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "50", rec.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Rate limit exceeded. Max 5 messages per minute.", body["error"])
}

func TestMiddleware_GetIsNotCounted(t *testing.T) {
	clock := NewManualClock(epoch)
	handler := Middleware(newMessageLimiter(t, clock), clock)(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/messages/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestMiddleware_ForbiddenIsPlainText(t *testing.T) {
	g, err := NewRoleGate([]RoleRule{{Prefix: "/api/messages/", Allowed: []Role{RoleModerator}}})
	require.NoError(t, err)
	handler := Middleware(NewChain(g), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/messages/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{Authenticated: true, Subject: "u1", Role: RoleGuest}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "insufficient permissions", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestNewRequest_ReadsPrincipal(t *testing.T) {
	clock := NewManualClock(epoch)
	r := httptest.NewRequest(http.MethodPatch, "/api/messages/1/?x=y", nil)
	r.RemoteAddr = "10.0.0.1:1"
	r = r.WithContext(WithPrincipal(r.Context(), Principal{Authenticated: true, Subject: "u1", Role: RoleAdmin}))

	req := NewRequest(r, clock)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/api/messages/1/", req.Path)
	assert.True(t, req.Authenticated)
	assert.Equal(t, RoleAdmin, req.Role)
	assert.Equal(t, "u1", req.Subject)
	assert.Equal(t, epoch, req.ArrivedAt)
	assert.Equal(t, "10.0.0.1", req.Identity())

	anon := PrincipalFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, anon.Authenticated)
}

func TestWriteRejection_RetryAfterRoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	res := Reject(http.StatusTooManyRequests, ReasonThrottled, "Too many requests")
	res.RetryAfter = 1500 * time.Millisecond
	WriteRejection(rec, res)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	res.RetryAfter = 0
	WriteRejection(rec, res)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitMessage(t *testing.T) {
	assert.Equal(t, "Rate limit exceeded. Max 5 messages per minute.", RateLimitMessage(5, time.Minute))
	assert.Equal(t, "Rate limit exceeded. Max 100 messages per hour.", RateLimitMessage(100, time.Hour))
	assert.Equal(t, "Rate limit exceeded. Max 3 messages per 30s.", RateLimitMessage(3, 30*time.Second))
}
