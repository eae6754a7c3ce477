package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

// fakeClock is a settable time source for driving window boundaries.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, clock *fakeClock, def models.QuotaConfig, routes []models.RouteQuotaConfig) *FixedWindowLimiter {
	t.Helper()
	store := NewMemoryCounterStore(0)
	limiter := NewFixedWindowLimiter(store, def, routes, WithClock(clock.Now))
	t.Cleanup(func() { limiter.Close() })
	return limiter
}

// TestAllowWithinQuota verifies requests under the limit are admitted with
// decreasing remaining counts.
func TestAllowWithinQuota(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 5}, nil)

	for i := 0; i < 5; i++ {
		allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
		assert.Equal(t, "default", info.Category)
		assert.Equal(t, 5, info.Limit)
		assert.Equal(t, 5-(i+1), info.Remaining)
	}
}

// TestAllowDeniesOverQuota verifies the request past the limit is denied with
// retry information.
func TestAllowDeniesOverQuota(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 5}, nil)

	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, info.RetryAfter, time.Minute)
}

// TestAllowWindowRollover verifies the counter resets at the window boundary.
func TestAllowWindowRollover(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 2}, nil)

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	require.False(t, allowed)

	clock.Advance(time.Minute)
	allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	assert.True(t, allowed, "new window should reset the count")
	assert.Equal(t, 1, info.Remaining)
}

// TestAllowPerClientIsolation verifies one client exhausting its quota does
// not affect another.
func TestAllowPerClientIsolation(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 2}, nil)

	for i := 0; i < 3; i++ {
		limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	}
	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.2", "/api/v1/items")
	require.NoError(t, err)
	assert.True(t, allowed)
}

// TestAllowRouteOverrides verifies per-route quotas take precedence over the
// default by prefix match.
func TestAllowRouteOverrides(t *testing.T) {
	clock := newFakeClock()
	routes := []models.RouteQuotaConfig{
		{Name: "auth_login", Prefix: "/api/v1/auth/login", PerMinute: 2},
	}
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 100}, routes)

	for i := 0; i < 2; i++ {
		allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/auth/login")
		require.NoError(t, err)
		require.True(t, allowed)
		assert.Equal(t, "auth_login", info.Category)
		assert.Equal(t, 2, info.Limit)
	}
	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/auth/login")
	require.NoError(t, err)
	assert.False(t, allowed, "login route has its own tight quota")

	// Other paths stay on the generous default.
	allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "default", info.Category)
}

// TestAllowHourlyQuota verifies the hour window denies even when the minute
// window would admit.
func TestAllowHourlyQuota(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 10, PerHour: 3}, nil)

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, info, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, info.Limit, "denial should report the hour window")
}

// TestAllowSharedWindowStartCounters verifies the minute and hour counters
// stay independent when both windows start at the same instant, as they do
// during the first minute of every hour.
func TestAllowSharedWindowStartCounters(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 5, PerHour: 5}, nil)

	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
		require.NoError(t, err)
		require.True(t, allowed, "request %d fits both quotas", i+1)
	}

	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.NoError(t, err)
	assert.False(t, allowed)
}

// errorStore always fails, for exercising the failure policy.
type errorStore struct{}

func (errorStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (errorStore) Close() error { return nil }

// TestAllowStoreError verifies a store failure surfaces as an error rather
// than a denial.
func TestAllowStoreError(t *testing.T) {
	limiter := NewFixedWindowLimiter(errorStore{}, models.QuotaConfig{PerMinute: 5}, nil)
	defer limiter.Close()

	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.1", "/api/v1/items")
	require.Error(t, err)
	assert.False(t, allowed)
}

// TestMiddlewareHeaders verifies admitted responses carry the X-RateLimit
// headers.
func TestMiddlewareHeaders(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 5}, nil)

	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
}

// TestMiddlewareDenial verifies the 429 response shape.
func TestMiddlewareDenial(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, models.QuotaConfig{PerMinute: 1}, nil)

	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, send().Code)

	rr := send()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, models.ErrorCodeRateLimitExceeded, errResp.Code)
}

// TestMiddlewareFailsOpen verifies a store failure admits the request.
func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := NewFixedWindowLimiter(errorStore{}, models.QuotaConfig{PerMinute: 5}, nil)
	defer limiter.Close()

	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "store failure must not reject traffic")
}

// TestMemoryCounterStore verifies increment, expiry rotation, and eviction.
func TestMemoryCounterStore(t *testing.T) {
	store := NewMemoryCounterStore(0)
	defer store.Close()

	count, err := store.Increment(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.Increment(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// An already expired entry restarts from one.
	_, err = store.Increment(context.Background(), "short", -time.Second)
	require.NoError(t, err)
	count, err = store.Increment(context.Background(), "short", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	store.evictExpired()
	store.mu.Lock()
	_, exists := store.counters["k"]
	store.mu.Unlock()
	assert.True(t, exists, "unexpired counters survive eviction")
}
