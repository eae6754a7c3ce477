package inspector

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatekeeper/internal/models"
)

// volumeEvent is one classified violation seen by the monitor.
type volumeEvent struct {
	at     time.Time
	client string
	path   string
}

// volumeMonitor watches the aggregate violation rate across all clients and
// raises the high-volume attack alert when the in-window total crosses the
// threshold. The alert itself is throttled by the dispatcher, so crossing the
// threshold repeatedly within the cool-down emits only one notification.
type volumeMonitor struct {
	threshold int
	window    time.Duration
	alerts    AlertSink
	now       func() time.Time

	mu     sync.Mutex
	events []volumeEvent
}

// NewVolumeMonitor creates a high-volume attack monitor. Returns nil when the
// threshold is not positive, which disables monitoring.
func NewVolumeMonitor(cfg models.HighVolumeConfig, alerts AlertSink) *volumeMonitor {
	if cfg.Threshold <= 0 || alerts == nil {
		return nil
	}
	return &volumeMonitor{
		threshold: cfg.Threshold,
		window:    cfg.Window,
		alerts:    alerts,
		now:       time.Now,
	}
}

// record adds a violation and fires the aggregate alert at the threshold.
func (v *volumeMonitor) record(ctx context.Context, client, path string) {
	v.mu.Lock()

	now := v.now()
	cutoff := now.Add(-v.window)

	kept := v.events[:0]
	for _, e := range v.events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, volumeEvent{at: now, client: client, path: path})
	v.events = kept

	if len(kept) < v.threshold {
		v.mu.Unlock()
		return
	}

	count := len(kept)
	uniqueIPs, topPaths := summarize(kept)
	v.mu.Unlock()

	// Delivery happens outside the lock; the dispatcher throttles.
	go v.alerts.NotifyHighVolumeAttack(context.WithoutCancel(ctx), count, uniqueIPs, topPaths)
}

// summarize counts distinct clients and ranks the most targeted paths.
func summarize(events []volumeEvent) (uniqueIPs int, topPaths []string) {
	clients := make(map[string]struct{})
	pathCounts := make(map[string]int)
	for _, e := range events {
		clients[e.client] = struct{}{}
		pathCounts[e.path]++
	}

	paths := make([]string, 0, len(pathCounts))
	for p := range pathCounts {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(a, b int) bool {
		if pathCounts[paths[a]] != pathCounts[paths[b]] {
			return pathCounts[paths[a]] > pathCounts[paths[b]]
		}
		return paths[a] < paths[b]
	})
	if len(paths) > 10 {
		paths = paths[:10]
	}

	return len(clients), paths
}
