package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chatgate/internal/gate"
	"chatgate/internal/logger"
	"chatgate/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API.
//
// Middleware runs in this order: recovery, route options, CORS, authentication,
// access log, then the gate chain. The gates see the authenticated principal
// and the access log records gate rejections with the caller's name.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.Use(recoveryMiddleware)
	for _, opt := range opts {
		opt(router)
	}
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	devUser := handlers.devUser
	if config.Security.EnableAuth {
		devUser = nil
	}
	router.Use(authMiddleware(handlers.storage, devUser))

	if config.Logging.AccessLog {
		router.Use(logger.AccessLog(slog.Default(), handlers.clock))
	}
	if handlers.chain != nil {
		router.Use(gate.Middleware(handlers.chain, handlers.clock))
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/users/me", handlers.CurrentUser).Methods("GET")

	api.HandleFunc("/conversations/", handlers.CreateConversation).Methods("POST")
	api.HandleFunc("/conversations/", handlers.ListConversations).Methods("GET")
	api.HandleFunc("/conversations/{id}/", handlers.GetConversation).Methods("GET")

	api.HandleFunc("/messages/", handlers.SendMessage).Methods("POST")
	api.HandleFunc("/messages/", handlers.ListMessages).Methods("GET")
	api.HandleFunc("/messages/{id}/", handlers.GetMessage).Methods("GET")
	api.HandleFunc("/messages/{id}/", handlers.UpdateMessage).Methods("PUT", "PATCH")
	api.HandleFunc("/messages/{id}/", handlers.DeleteMessage).Methods("DELETE")

	api.HandleFunc("/admin/gate-stats", handlers.GateStats).Methods("GET")

	// mux does not propagate the 405 handler into subrouters.
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
	json.NewEncoder(w).Encode(errorResp)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	errorResp := models.NewErrorResponse("Not found", models.ErrorCodeNotFound)
	json.NewEncoder(w).Encode(errorResp)
}
