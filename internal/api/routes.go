package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"gatekeeper/internal/models"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithMiddleware appends a generic middleware stage to the chain. Pipeline
// composition is decided once at startup from configuration; stages are
// passed here rather than branched on inside handlers.
func WithMiddleware(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(middleware)
	}
}

// SetupRoutes configures the gateway's routes and middleware chain. The
// application handler receives every request the gateway's own surface does
// not claim; nil means the gateway serves only its own endpoints.
func SetupRoutes(handlers *Handlers, config *models.Config, application http.Handler, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	for _, opt := range opts {
		opt(router)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/version", handlers.Version).Methods("GET")

	// Admin surface requires the configured token; an empty token disables
	// the endpoints entirely rather than leaving them open.
	if config.Security.AdminToken != "" {
		admin := api.PathPrefix("/security").Subrouter()
		admin.Use(adminAuthMiddleware(config.Security.AdminToken))
		admin.HandleFunc("/stats", handlers.SecurityStats).Methods("GET")
		admin.HandleFunc("/blocks/permanent", handlers.PermanentBlock).Methods("POST")
	}

	// mux applies Use middleware only to matched routes, so every path and
	// method must resolve to a registered handler; otherwise scanner probes
	// for unclaimed paths would bypass the inspection chain entirely. The
	// catch-all guarantees a match for any request the routes above do not
	// claim.
	if application == nil {
		application = http.HandlerFunc(notFoundHandler)
	}
	router.PathPrefix("/").Handler(application)

	return router
}

// notFoundHandler answers unclaimed paths when no upstream is configured.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	errorResp := models.NewErrorResponse("Not found", models.ErrorCodeNotFound)
	json.NewEncoder(w).Encode(errorResp)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics from the application handler chain.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// adminAuthMiddleware requires a bearer token matching the configured admin
// token, compared in constant time.
func adminAuthMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeUnauthorized(w, "Authorization required")
				return
			}
			presented := authHeader[len(prefix):]
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeUnauthorized(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	errorResp := models.NewErrorResponse(message, models.ErrorCodeUnauthorized)
	json.NewEncoder(w).Encode(errorResp)
}
