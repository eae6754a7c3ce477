// Package inspector implements the inline request-inspection middleware that
// fronts every request: blocked-client fast path, pattern classification,
// violation recording, alert triggering, and response timing.
package inspector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gatekeeper/internal/clientaddr"
	"gatekeeper/internal/models"
	"gatekeeper/internal/patterns"
	"gatekeeper/internal/tracker"
)

// AlertSink receives tracker transitions worth notifying. The dispatcher in
// the alerts package satisfies this; tests substitute a recorder.
type AlertSink interface {
	NotifyIPBlocked(ctx context.Context, ip, violationType, path string)
	NotifyHighVolumeAttack(ctx context.Context, attackCount, uniqueIPs int, topPaths []string)
}

// Inspector orchestrates the per-request inspection pipeline.
type Inspector struct {
	catalog *patterns.Catalog
	tracker tracker.Service
	alerts  AlertSink // nil when alerting is disabled
	volume  *volumeMonitor
}

// New creates an inspector. alerts may be nil; volume may be nil when
// high-volume detection is disabled.
func New(catalog *patterns.Catalog, trk tracker.Service, alerts AlertSink, volume *volumeMonitor) *Inspector {
	return &Inspector{
		catalog: catalog,
		tracker: trk,
		alerts:  alerts,
		volume:  volume,
	}
}

// decision is the outcome of the inspection phase for one request.
type decision int

const (
	decisionForward decision = iota
	decisionAlreadyBlocked
	decisionViolation
)

// Middleware returns the inspection middleware. Requests from blocked clients
// receive 403 without reaching the application; requests matching a
// classification rule receive 404 (never 403, so a probe cannot distinguish
// detection from genuine absence); clean requests are forwarded and the
// response gains an X-Process-Time header in seconds with 4 decimal places.
func (i *Inspector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		client := clientaddr.FromRequest(r)

		switch i.inspect(r, client) {
		case decisionAlreadyBlocked:
			writeGenericError(w, http.StatusForbidden, "Access denied", models.ErrorCodeAccessDenied)
			return
		case decisionViolation:
			writeGenericError(w, http.StatusNotFound, "Not found", models.ErrorCodeNotFound)
			return
		}

		tw := &timingWriter{ResponseWriter: w, start: start}
		next.ServeHTTP(tw, r)
		tw.finish()
	})
}

// inspect runs the blocking check and classification for one request. A panic
// anywhere inside inspection fails closed: the blocking decision is
// safety-critical, so an undecidable request is treated as blocked rather
// than forwarded.
func (i *Inspector) inspect(r *http.Request, client string) (d decision) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic during request inspection, failing closed",
				"client", client,
				"path", r.URL.Path,
				"panic", rec,
			)
			d = decisionAlreadyBlocked
		}
	}()

	if i.tracker.IsBlocked(client) {
		slog.Info("request from blocked client rejected",
			"client", client,
			"path", r.URL.Path,
		)
		return decisionAlreadyBlocked
	}

	// Classify the decoded query so percent- and form-encoded payloads
	// ("union%20select", "union+select") cannot slip past the rules.
	query := r.URL.RawQuery
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}
	userAgent := r.Header.Get("User-Agent")

	match, ok := i.catalog.Classify(r.URL.Path, query, userAgent)
	if !ok {
		return decisionForward
	}

	slog.Warn("malicious request detected",
		"category", match.Category,
		"label", match.Label,
		"client", client,
		"path", r.URL.Path,
		"query", truncate(query, 100),
		"user_agent", truncate(userAgent, 100),
	)

	blockedNow := i.tracker.RecordViolation(client, match.String())

	if i.volume != nil {
		i.volume.record(r.Context(), client, r.URL.Path)
	}

	if blockedNow && i.alerts != nil {
		// Alert delivery is I/O; run it off the request path so a slow or
		// failing transport can never fail the request.
		go i.alerts.NotifyIPBlocked(context.WithoutCancel(r.Context()), client, match.String(), r.URL.Path)
	}

	return decisionViolation
}

// writeGenericError emits an information-minimal JSON body that reveals
// nothing about which rule matched.
func writeGenericError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, code))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
