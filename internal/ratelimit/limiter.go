// Package ratelimit provides fixed-window admission control for HTTP
// requests, keyed by canonical client address and route category. Counting
// resets at discrete window boundaries; boundary bursting is an accepted
// tradeoff versus a sliding or token-bucket scheme. The counter store is
// pluggable: in-process for single instances, Redis for horizontal scale.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatekeeper/internal/models"
)

// Info contains rate limit state for populating response headers.
type Info struct {
	Category   string        // Route category that matched
	Limit      int           // Limit of the window that made the decision
	Remaining  int           // Requests left in that window
	ResetAt    time.Time     // When that window rolls over
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Limiter defines the admission control contract. Implementations must be
// safe for concurrent use.
type Limiter interface {
	// Allow checks whether a request from client to path fits the quota.
	// A store error is returned to the caller, which decides the failure
	// policy.
	Allow(ctx context.Context, client, path string) (allowed bool, info Info, err error)

	// Close releases the underlying counter store.
	Close() error
}

// CounterStore supports atomic increment-and-get of a windowed counter.
// The key already encodes the window start; window is the retention hint.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

// FixedWindowLimiter counts requests per (client, route category, window
// start) tuple in a CounterStore.
type FixedWindowLimiter struct {
	store   CounterStore
	def     models.QuotaConfig
	routes  []models.RouteQuotaConfig
	now     func() time.Time
}

// Option configures optional limiter behavior.
type Option func(*FixedWindowLimiter)

// WithClock replaces the limiter's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) { l.now = now }
}

// NewFixedWindowLimiter creates a limiter over the given counter store with
// the default quota and per-route overrides from configuration.
func NewFixedWindowLimiter(store CounterStore, def models.QuotaConfig, routes []models.RouteQuotaConfig, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:  store,
		def:    def,
		routes: routes,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Limiter = (*FixedWindowLimiter)(nil)

// Allow resolves the route category for path, then checks the per-minute and
// per-hour windows in turn. Both must hold for admission; the first exhausted
// window produces the denial info.
func (l *FixedWindowLimiter) Allow(ctx context.Context, client, path string) (bool, Info, error) {
	category, quota := l.resolveQuota(path)

	var minuteInfo Info
	if quota.PerMinute > 0 {
		allowed, info, err := l.checkWindow(ctx, client, category, quota.PerMinute, time.Minute)
		if err != nil || !allowed {
			return allowed, info, err
		}
		minuteInfo = info
	}
	if quota.PerHour > 0 {
		return l.checkWindow(ctx, client, category, quota.PerHour, time.Hour)
	}

	// No hour quota configured: report the minute window state.
	if quota.PerMinute > 0 {
		return true, minuteInfo, nil
	}

	// Quotas disabled entirely for this category.
	return true, Info{Category: category}, nil
}

// checkWindow increments the counter for the active window and compares it to
// the limit. Requests past the limit still increment; the window rolls over
// regardless.
func (l *FixedWindowLimiter) checkWindow(ctx context.Context, client, category string, limit int, window time.Duration) (bool, Info, error) {
	now := l.now()
	windowStart := now.Truncate(window)
	resetAt := windowStart.Add(window)

	// The window length is part of the key: when the minute and hour windows
	// share a start instant their counters must stay separate.
	key := fmt.Sprintf("ratelimit:%s:%s:%s:%d", category, client, window, windowStart.Unix())

	// Retain slightly past the boundary so late readers still see the count.
	count, err := l.store.Increment(ctx, key, window+window/10)
	if err != nil {
		return false, Info{Category: category, Limit: limit, ResetAt: resetAt}, err
	}

	info := Info{
		Category:  category,
		Limit:     limit,
		Remaining: max(0, limit-int(count)),
		ResetAt:   resetAt,
	}

	if count > int64(limit) {
		info.RetryAfter = resetAt.Sub(now)
		return false, info, nil
	}
	return true, info, nil
}

// Close releases the counter store.
func (l *FixedWindowLimiter) Close() error {
	return l.store.Close()
}

// resolveQuota returns the route category and quota for path. The first
// configured route whose prefix matches wins; otherwise the default applies.
func (l *FixedWindowLimiter) resolveQuota(path string) (string, models.QuotaConfig) {
	for _, route := range l.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route.Name, models.QuotaConfig{PerMinute: route.PerMinute, PerHour: route.PerHour}
		}
	}
	return "default", l.def
}
