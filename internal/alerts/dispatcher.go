// Package alerts converts tracker state transitions into throttled operator
// notifications. Each alert key (ip_blocked:<ip>, high_volume_attack,
// critical:<type>) is subject to a cool-down window; the last-sent instant is
// recorded optimistically inside the critical section, before delivery, so
// two concurrent triggers cannot both send. Delivery itself happens outside
// the lock with a bounded timeout, and failures are logged and swallowed --
// alerting never affects the triggering request's outcome.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gatekeeper/internal/models"
)

// Dispatcher is the throttled alert emitter.
type Dispatcher struct {
	transport     Transport
	recipient     string
	cooldown      time.Duration
	sendTimeout   time.Duration
	blockDuration time.Duration

	// budget caps total outbound sends so a burst of distinct alert keys
	// cannot flood the transport.
	budget *rate.Limiter

	now func() time.Time

	mu     sync.Mutex
	sent   map[string]time.Time
	done   chan struct{}
	closed bool
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithClock replaces the dispatcher's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher and starts its housekeeping goroutine.
// blockDuration is quoted in the ip-blocked message body.
func NewDispatcher(transport Transport, cfg models.AlertsConfig, blockDuration time.Duration, opts ...Option) *Dispatcher {
	perMinute := cfg.SendsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}

	d := &Dispatcher{
		transport:     transport,
		recipient:     cfg.Recipient,
		cooldown:      cfg.Cooldown,
		sendTimeout:   cfg.SendTimeout,
		blockDuration: blockDuration,
		budget:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		now:           time.Now,
		sent:          make(map[string]time.Time),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.housekeeping()
	return d
}

// NotifyIPBlocked emits the new-block alert for client unless one for the
// same client was sent within the cool-down.
func (d *Dispatcher) NotifyIPBlocked(ctx context.Context, ip, violationType, path string) {
	key := "ip_blocked:" + ip
	if !d.shouldSend(key) {
		slog.Info("throttled alert for blocked IP", "client", ip)
		return
	}
	subject, body := ipBlockedMessage(ip, violationType, path, d.now(), d.blockDuration)
	d.deliver(ctx, key, subject, body)
}

// NotifyHighVolumeAttack emits the aggregate attack alert, throttled under a
// single shared key.
func (d *Dispatcher) NotifyHighVolumeAttack(ctx context.Context, attackCount, uniqueIPs int, topPaths []string) {
	const key = "high_volume_attack"
	if !d.shouldSend(key) {
		slog.Info("throttled high volume attack alert")
		return
	}
	subject, body := highVolumeMessage(attackCount, uniqueIPs, topPaths, d.now())
	d.deliver(ctx, key, subject, body)
}

// NotifyCriticalEvent emits a critical event alert keyed by event type.
func (d *Dispatcher) NotifyCriticalEvent(ctx context.Context, eventType, details, severity string) {
	key := "critical:" + eventType
	if !d.shouldSend(key) {
		slog.Info("throttled critical security alert", "event_type", eventType)
		return
	}
	subject, body := criticalEventMessage(eventType, details, severity, d.now())
	d.deliver(ctx, key, subject, body)
}

// shouldSend applies the cool-down and records the send instant before
// delivery starts. Recording at evaluation time prevents duplicate
// concurrent sends for the same key.
func (d *Dispatcher) shouldSend(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.sent[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.sent[key] = now
	return true
}

// deliver sends outside the lock with a bounded timeout. Failures are logged
// and swallowed.
func (d *Dispatcher) deliver(ctx context.Context, key, subject, body string) {
	if !d.budget.Allow() {
		slog.Warn("alert send budget exhausted, dropping alert", "key", key)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	if err := d.transport.Send(sendCtx, d.recipient, subject, body); err != nil {
		slog.Error("failed to send security alert", "key", key, "error", err)
		return
	}
	slog.Info("security alert sent", "key", key, "subject", subject)
}

// Close stops the housekeeping goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
}

// housekeeping removes throttle entries older than twice the cool-down.
func (d *Dispatcher) housekeeping() {
	interval := d.cooldown
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.prune()
		}
	}
}

func (d *Dispatcher) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-2 * d.cooldown)
	for key, last := range d.sent {
		if last.Before(cutoff) {
			delete(d.sent, key)
		}
	}
}
