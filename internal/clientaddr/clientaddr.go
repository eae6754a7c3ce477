// Package clientaddr resolves the canonical originating-client address of an
// HTTP request by unwinding the proxy headers set by the reverse proxy in
// front of the gateway.
package clientaddr

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is the sentinel returned when no address can be resolved. Header
// resolution failures degrade to this value rather than erroring; the
// inspection pipeline must never fail a request over address parsing.
const Unknown = "unknown"

// FromRequest returns the canonical client address with defined precedence:
// the first (leftmost) entry of X-Forwarded-For, else X-Real-IP, else the
// transport peer address, else the "unknown" sentinel.
func FromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if r.RemoteAddr != "" {
		// RemoteAddr is host:port for TCP peers; bare values pass through.
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return Unknown
}
