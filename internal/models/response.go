// Package models - API response types and error handling.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Blocked and rate-limited clients receive generic bodies that reveal
//   nothing about which rule or quota produced the decision
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// ErrorResponse provides structured error information. For security
// responses (403/404/429) only the generic message is populated.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// NewErrorResponse creates a standardized error response.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// Error code constants for machine-readable error handling.
const (
	ErrorCodeAccessDenied      = "ACCESS_DENIED"       // 403: blocked client
	ErrorCodeNotFound          = "NOT_FOUND"           // 404: resource doesn't exist (also classified violations)
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429: quota exhausted
	ErrorCodeBadRequest        = "BAD_REQUEST"         // 400: invalid request format
	ErrorCodeUnauthorized      = "UNAUTHORIZED"        // 401: authentication required
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"     // 400: invalid request data
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500: server-side error
)

// SecurityStatsResponse is the administrative read surface over the
// violation tracker. Expired temporary blocks are filtered out at call time.
type SecurityStatsResponse struct {
	CurrentlyBlocked int               `json:"currently_blocked"`
	BlockedIPs       map[string]string `json:"blocked_ips"` // ip -> ISO-8601 unblock instant
	PermanentBlocks  []string          `json:"permanent_blocks"`
	TrackedIPs       int               `json:"tracked_ips"`
}

// PermanentBlockRequest is the admin request to permanently block a client.
type PermanentBlockRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason,omitempty"`
}

// PermanentBlockResponse confirms an administrative permanent block.
type PermanentBlockResponse struct {
	IP        string    `json:"ip"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status constants
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)
