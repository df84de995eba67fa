package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatgate/internal/gate"
	"chatgate/internal/models"
	"chatgate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestUser creates a user in the store and returns it.
func newTestUser(t *testing.T, store storage.Storage, username string, role models.Role, rawToken string) *models.User {
	t.Helper()
	user := models.NewUser(username, username+"@example.com", role, rawToken)
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// TestAuthMiddlewareWithStorage tests authMiddleware using storage-backed token lookup.
func TestAuthMiddlewareWithStorage(t *testing.T) {
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	alice := newTestUser(t, store, "alice", models.RoleModerator, "cg_alice-token")

	var (
		seenUser      *models.User
		seenPrincipal gate.Principal
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserFrom(r.Context())
		seenPrincipal = gate.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	mw := authMiddleware(store, nil)

	tests := []struct {
		name       string
		authHeader string
		expectUser bool
	}{
		{"valid token sets user", "Bearer cg_alice-token", true},
		{"lowercase scheme accepted", "bearer cg_alice-token", true},
		{"missing header stays anonymous", "", false},
		{"unknown token stays anonymous", "Bearer cg_nobody", false},
		{"wrong scheme stays anonymous", "Token cg_alice-token", false},
		{"empty bearer stays anonymous", "Bearer ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser, seenPrincipal = nil, gate.Principal{}
			req := httptest.NewRequest(http.MethodGet, "/api/messages/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			mw(handler).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code, "auth never rejects on its own")
			if tt.expectUser {
				require.NotNil(t, seenUser)
				assert.Equal(t, alice.ID, seenUser.ID)
				assert.True(t, seenPrincipal.Authenticated)
				assert.Equal(t, gate.RoleModerator, seenPrincipal.Role)
				assert.Equal(t, "alice", seenPrincipal.Name)
			} else {
				assert.Nil(t, seenUser)
				assert.False(t, seenPrincipal.Authenticated)
			}
		})
	}
}

func TestAuthMiddleware_DevUser(t *testing.T) {
	dev := &models.User{ID: models.NewID(), Username: "dev", Role: models.RoleAdmin}

	var seen *models.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer ignored")
	authMiddleware(nil, dev)(handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, dev, seen)
}

func TestCORSMiddleware(t *testing.T) {
	mw := corsMiddleware(models.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://chat.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         600,
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/messages/", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://chat.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/api/messages/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/messages/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), models.ErrorCodeInternalError)
}
