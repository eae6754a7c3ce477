package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/clientaddr"
	"gatekeeper/internal/models"
)

// Middleware returns HTTP middleware enforcing the limiter's quotas. Requests
// over quota receive 429 with Retry-After; admitted requests gain the
// standard X-RateLimit-* headers. A counter store failure admits the request
// (admission control fails open; only blocking decisions fail closed).
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientaddr.FromRequest(r)

			allowed, info, err := limiter.Allow(r.Context(), client, r.URL.Path)
			if err != nil {
				slog.Error("rate limit store failure, admitting request",
					"client", client,
					"category", info.Category,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if info.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))
			}

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimitExceeded)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("rate limit exceeded",
					"client", client,
					"category", info.Category,
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
