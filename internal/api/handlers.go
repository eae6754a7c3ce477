package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/models"
	"gatekeeper/internal/tracker"
	"gatekeeper/internal/version"
)

// Handlers contains HTTP handlers for the gateway's own surface: health,
// version, and the administrative security endpoints.
type Handlers struct {
	tracker   tracker.Service
	blocklist blocklist.Store
	startTime time.Time
}

// NewHandlers creates a new handlers instance.
func NewHandlers(trk tracker.Service, store blocklist.Store) *Handlers {
	return &Handlers{
		tracker:   trk,
		blocklist: store,
		startTime: time.Now(),
	}
}

// HealthCheck reports service liveness.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthCheckResponse{
		Status:    models.HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version.GetInfo().Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// Version reports build metadata.
// GET /api/v1/version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, version.GetInfo())
}

// SecurityStats exposes the tracker's administrative read surface: active
// block count, blocked IP -> ISO-8601 unblock instant, permanent blocks, and
// the tracked client count.
// GET /api/v1/security/stats
func (h *Handlers) SecurityStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.tracker.Stats())
}

// PermanentBlock places a client on the permanent block list and persists it.
// The block takes effect immediately and is irreversible through this API.
// POST /api/v1/security/blocks/permanent
func (h *Handlers) PermanentBlock(w http.ResponseWriter, r *http.Request) {
	var req models.PermanentBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid request body")
		return
	}
	if net.ParseIP(req.IP) == nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "ip must be a valid IP address")
		return
	}

	entry := blocklist.Entry{
		IP:        req.IP,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.blocklist.Add(r.Context(), entry); err != nil {
		// The in-memory block still applies below; persistence is degraded.
		slog.Error("failed to persist permanent block", "client", req.IP, "error", err)
	}
	h.tracker.AddPermanentBlock(req.IP)

	h.writeJSONResponse(w, http.StatusCreated, models.PermanentBlockResponse{
		IP:        req.IP,
		Message:   "client permanently blocked",
		CreatedAt: entry.CreatedAt,
	})
}

// writeJSONResponse writes a JSON response with the given status code.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response.
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.NewErrorResponse(message, code)); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
