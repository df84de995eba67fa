// Package models - API response types and error handling.
// This file defines the outgoing API response structures.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Rich error information with machine-readable codes
// - Standardized pagination with metadata
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// PageResponse is the envelope of every paginated listing.
type PageResponse[T any] struct {
	Count    int  `json:"count"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
	Results  []T  `json:"results"`
}

// NewPageResponse slices items (already filtered and ordered) to page p.
func NewPageResponse[T any](items []T, p Page) *PageResponse[T] {
	resp := &PageResponse[T]{
		Count:    len(items),
		Page:     p.Page,
		PageSize: p.PageSize,
		Results:  []T{},
	}
	start := p.Offset()
	if start >= len(items) {
		return resp
	}
	end := len(items)
	if p.PageSize < end-start {
		end = start + max(p.PageSize, 0)
	}
	resp.Results = items[start:end]
	resp.HasMore = end < len(items)
	return resp
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// GateStatsResponse reports gate decision counters.
type GateStatsResponse struct {
	Allowed  int64                     `json:"allowed"`
	Denied   int64                     `json:"denied"`
	ByGate   map[string]DecisionCounts `json:"by_gate"`
	ByReason map[string]int64          `json:"by_reason"`
	ByKey    map[string]DecisionCounts `json:"by_key,omitempty"`
}

type DecisionCounts struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: Input format/constraint violations
// - Not found errors: Resource doesn't exist
// - Authorization errors: Authentication/permission failures
// - Internal errors: Server-side issues
type ErrorResponse struct {
	Error     string            `json:"error"`             // Error type (always "error")
	Message   string            `json:"message"`           // Human-readable error description
	Code      string            `json:"code,omitempty"`    // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"` // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`         // Error occurrence time
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Gates      []string                   `json:"gates,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound             = "NOT_FOUND"              // 404: Resource doesn't exist
	ErrorCodeConversationNotFound = "CONVERSATION_NOT_FOUND" // 404: Conversation doesn't exist
	ErrorCodeMessageNotFound      = "MESSAGE_NOT_FOUND"      // 404: Message doesn't exist
	ErrorCodeBadRequest           = "BAD_REQUEST"            // 400: Invalid request format
	ErrorCodeInvalidRequest       = "INVALID_REQUEST"        // 400: Invalid request data
	ErrorCodeValidation           = "VALIDATION_ERROR"       // 422: Input validation failed
	ErrorCodeInternalError        = "INTERNAL_ERROR"         // 500: Server-side error
	ErrorCodeUnauthorized         = "UNAUTHORIZED"           // 401: Authentication required
	ErrorCodeForbidden            = "FORBIDDEN"              // 403: Permission denied
	ErrorCodeConflict             = "CONFLICT"               // 409: Resource already exists
	ErrorCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"    // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
