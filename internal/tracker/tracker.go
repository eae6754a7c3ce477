// Package tracker maintains a per-client sliding-window violation ledger and
// the temporary/permanent block state derived from it.
//
// A client moves from untracked to tracked on its first violation, earns a
// temporary block when the in-window violation count reaches the threshold,
// and drops back out when the block expires. Permanent blocks are recorded
// through an administrative call and are never cleared by this component.
//
// All mutating operations for a client are serialized through a single mutex
// over the tracker's maps; those maps are the only mutable shared state and
// are touched exclusively through the methods below.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"gatekeeper/internal/models"
)

// Service defines the violation tracking contract. Implementations must be
// safe for concurrent use.
type Service interface {
	// RecordViolation records one violation for the client and returns
	// whether the client is blocked as of this call.
	RecordViolation(client, label string) bool

	// IsBlocked reports whether the client is currently blocked.
	IsBlocked(client string) bool

	// AddPermanentBlock places the client on the permanent block list.
	// There is no corresponding removal operation.
	AddPermanentBlock(client string)

	// Stats returns the current blocking statistics, with expired
	// temporary blocks filtered out at call time.
	Stats() models.SecurityStatsResponse

	// Close stops background housekeeping.
	Close()
}

// Tracker is the in-memory Service implementation.
type Tracker struct {
	threshold     int
	blockDuration time.Duration
	trackWindow   time.Duration
	sweepInterval time.Duration

	now func() time.Time

	mu         sync.Mutex
	violations map[string][]time.Time
	blocked    map[string]time.Time
	permanent  map[string]struct{}

	done   chan struct{}
	closed bool
}

var _ Service = (*Tracker)(nil)

// Option configures optional Tracker behavior.
type Option func(*Tracker)

// WithClock replaces the tracker's time source. Tests use this to drive
// window and expiry semantics deterministically.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker from configuration and starts the housekeeping
// goroutine. Callers must Close the tracker on shutdown.
func New(cfg models.TrackerConfig, opts ...Option) *Tracker {
	t := &Tracker{
		threshold:     cfg.BlockThreshold,
		blockDuration: cfg.BlockDuration,
		trackWindow:   cfg.TrackWindow,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		violations:    make(map[string][]time.Time),
		blocked:       make(map[string]time.Time),
		permanent:     make(map[string]struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.housekeeping()
	return t
}

// RecordViolation prunes the client's ledger to the trailing window, appends
// the new violation, and (re)sets the temporary block expiry when the
// in-window count reaches the threshold. A client that violates while already
// blocked has its expiry extended, never shortened.
func (t *Tracker) RecordViolation(client, label string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.trackWindow)

	kept := t.violations[client][:0]
	for _, ts := range t.violations[client] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	t.violations[client] = kept

	expiry, active := t.blocked[client]
	if len(kept) >= t.threshold || (active && expiry.After(now)) {
		t.blocked[client] = now.Add(t.blockDuration)
		slog.Warn("client blocked",
			"client", client,
			"label", label,
			"violations", len(kept),
			"window", t.trackWindow,
			"unblock_at", t.blocked[client].UTC().Format(time.RFC3339),
		)
		return true
	}

	return false
}

// IsBlocked reports whether the client is on the permanent list or holds a
// temporary block whose expiry is still in the future. An expired temporary
// block is evicted lazily here.
func (t *Tracker) IsBlocked(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.permanent[client]; ok {
		return true
	}

	expiry, ok := t.blocked[client]
	if !ok {
		return false
	}
	if t.now().Before(expiry) {
		return true
	}
	delete(t.blocked, client)
	return false
}

// AddPermanentBlock places the client on the append-only permanent list.
func (t *Tracker) AddPermanentBlock(client string) {
	t.mu.Lock()
	t.permanent[client] = struct{}{}
	t.mu.Unlock()
	slog.Warn("client permanently blocked", "client", client)
}

// SeedPermanentBlocks loads clients into the permanent list without logging
// each one, for startup restoration from the persisted blocklist.
func (t *Tracker) SeedPermanentBlocks(clients []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range clients {
		t.permanent[c] = struct{}{}
	}
}

// Stats recomputes blocking statistics at call time. Expired temporary blocks
// are filtered (and evicted) so the result never contains stale entries.
func (t *Tracker) Stats() models.SecurityStatsResponse {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	active := make(map[string]string)
	for client, expiry := range t.blocked {
		if expiry.After(now) {
			active[client] = expiry.UTC().Format(time.RFC3339)
		} else {
			delete(t.blocked, client)
		}
	}

	permanent := make([]string, 0, len(t.permanent))
	for client := range t.permanent {
		permanent = append(permanent, client)
	}

	return models.SecurityStatsResponse{
		CurrentlyBlocked: len(active),
		BlockedIPs:       active,
		PermanentBlocks:  permanent,
		TrackedIPs:       len(t.violations),
	}
}

// Close stops the housekeeping goroutine.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
}

// housekeeping periodically evicts expired blocks and violation ledgers with
// no in-window entries, bounding memory over long uptimes.
func (t *Tracker) housekeeping() {
	if t.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep removes stale entries under the lock.
func (t *Tracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.trackWindow)

	for client, timestamps := range t.violations {
		idx := 0
		for idx < len(timestamps) && !timestamps[idx].After(cutoff) {
			idx++
		}
		if idx == len(timestamps) {
			delete(t.violations, client)
		} else if idx > 0 {
			t.violations[client] = append([]time.Time{}, timestamps[idx:]...)
		}
	}

	for client, expiry := range t.blocked {
		if !expiry.After(now) {
			delete(t.blocked, client)
		}
	}
}
