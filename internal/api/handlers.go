package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chatgate/internal/chat"
	"chatgate/internal/gate"
	"chatgate/internal/models"
	"chatgate/internal/stats"
	"chatgate/internal/storage"
	"chatgate/internal/version"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains the HTTP handlers for the messaging API
type Handlers struct {
	chat    chat.ServiceInterface
	storage storage.Storage
	stats   stats.Store
	chain   *gate.Chain
	clock   gate.Clock
	devUser *models.User
	version version.Info
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithStorage sets the storage used for authentication and health checks.
func WithStorage(store storage.Storage) HandlerOption {
	return func(h *Handlers) { h.storage = store }
}

// WithStats sets the gate decision store served by the admin endpoint.
func WithStats(store stats.Store) HandlerOption {
	return func(h *Handlers) { h.stats = store }
}

// WithGateChain installs chain in front of every route.
func WithGateChain(chain *gate.Chain, clock gate.Clock) HandlerOption {
	return func(h *Handlers) {
		h.chain = chain
		h.clock = clock
	}
}

// WithDevUser authenticates every request as user. Used when auth is disabled.
func WithDevUser(user *models.User) HandlerOption {
	return func(h *Handlers) { h.devUser = user }
}

// WithVersion sets the build information reported by the health check.
func WithVersion(info version.Info) HandlerOption {
	return func(h *Handlers) { h.version = info }
}

// NewHandlers creates a new handlers instance
func NewHandlers(chatService chat.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		chat:    chatService,
		clock:   gate.SystemClock{},
		version: version.GetInfo(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		h.clock = gate.SystemClock{}
	}
	return h
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	status := http.StatusOK

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			slog.Warn("Storage health check failed", "error", err)
			response.Status = models.StatusUnhealthy
			response.AddComponent("storage", models.StatusUnhealthy, err.Error())
			status = http.StatusServiceUnavailable
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}
	if h.chain != nil {
		response.Gates = h.chain.Gates()
	}

	h.writeJSONResponse(w, status, response)
}

// CurrentUser returns the authenticated caller
// GET /api/users/me
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	h.writeJSONResponse(w, http.StatusOK, user)
}

// requireUser returns the caller or writes a 401.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := UserFrom(r.Context())
	if user == nil {
		h.writeErrorResponse(w, http.StatusUnauthorized, "Authentication credentials were not provided", models.ErrorCodeUnauthorized)
		return nil, false
	}
	return user, true
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON in request body", models.ErrorCodeBadRequest)
		return false
	}
	return true
}

// parsePage reads the page and page_size query parameters. A page whose
// offset would overflow is rejected.
func parsePage(r *http.Request) (models.Page, error) {
	var p models.Page
	query := r.URL.Query()
	for name, dst := range map[string]*int{"page": &p.Page, "page_size": &p.PageSize} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid %s: %q", name, raw)
		}
		*dst = n
	}
	normalized := p
	normalized.Normalize()
	if err := normalized.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// writeServiceError renders err with the status carried by a ServiceError.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *chat.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Chat service error", "error", err)
		}
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Message, svcErr.Code)
		return
	}
	slog.Error("Unexpected handler error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", models.ErrorCodeInternalError)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, message, code string) {
	errorResp := models.NewErrorResponse(message, code)
	h.writeJSONResponse(w, statusCode, errorResp)
}
