package inspector

import (
	"net/http"
	"strings"

	"gatekeeper/internal/models"
)

// defaultCSP allows same-origin scripts and styles plus HTTPS-hosted assets,
// and forbids framing entirely.
const defaultCSP = "default-src 'self'; " +
	"script-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https: blob:; " +
	"font-src 'self' data:; " +
	"connect-src 'self' https:; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self';"

const permissionsPolicy = "geolocation=(), " +
	"microphone=(), " +
	"camera=(), " +
	"payment=(), " +
	"usb=(), " +
	"magnetometer=(), " +
	"gyroscope=(), " +
	"accelerometer=()"

// SecurityHeaders returns middleware that decorates every response with the
// platform's security headers and masks the server identity.
func SecurityHeaders(cfg models.HeadersConfig) func(http.Handler) http.Handler {
	csp := cfg.ContentSecurityPolicy
	if csp == "" {
		csp = defaultCSP
	}
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = "gatekeeper"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", permissionsPolicy)
			h.Set("Server", serverName)

			// Auth responses must never land in shared caches.
			if strings.Contains(r.URL.Path, "/api/v1/auth") {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			next.ServeHTTP(w, r)
		})
	}
}
