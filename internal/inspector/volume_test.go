package inspector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

// countingSink records high-volume notifications with their arguments.
type countingSink struct {
	mu       sync.Mutex
	calls    int
	count    int
	ips      int
	topPaths []string
}

func (s *countingSink) NotifyIPBlocked(ctx context.Context, ip, violationType, path string) {}

func (s *countingSink) NotifyHighVolumeAttack(ctx context.Context, attackCount, uniqueIPs int, topPaths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.count = attackCount
	s.ips = uniqueIPs
	s.topPaths = topPaths
}

func (s *countingSink) snapshot() (int, int, int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.count, s.ips, s.topPaths
}

// TestVolumeMonitorFiresAtThreshold verifies the aggregate alert fires when
// the in-window violation total crosses the threshold.
func TestVolumeMonitorFiresAtThreshold(t *testing.T) {
	sink := &countingSink{}
	v := NewVolumeMonitor(models.HighVolumeConfig{Threshold: 5, Window: 5 * time.Minute}, sink)
	require.NotNil(t, v)

	for i := 0; i < 4; i++ {
		v.record(context.Background(), "203.0.113.1", "/.env")
	}
	calls, _, _, _ := sink.snapshot()
	assert.Equal(t, 0, calls)

	v.record(context.Background(), "203.0.113.2", "/wp-login.php")

	assert.Eventually(t, func() bool {
		calls, _, _, _ := sink.snapshot()
		return calls >= 1
	}, time.Second, 10*time.Millisecond)

	_, count, ips, topPaths := sink.snapshot()
	assert.Equal(t, 5, count)
	assert.Equal(t, 2, ips)
	require.NotEmpty(t, topPaths)
	assert.Equal(t, "/.env", topPaths[0], "most targeted path ranks first")
}

// TestVolumeMonitorWindowExpiry verifies old events age out of the window.
func TestVolumeMonitorWindowExpiry(t *testing.T) {
	sink := &countingSink{}
	v := NewVolumeMonitor(models.HighVolumeConfig{Threshold: 5, Window: 5 * time.Minute}, sink)
	require.NotNil(t, v)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	v.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		v.record(context.Background(), "203.0.113.1", "/.env")
	}

	// Six minutes later the earlier four are gone; this is event one.
	current = base.Add(6 * time.Minute)
	v.record(context.Background(), "203.0.113.1", "/.env")

	time.Sleep(50 * time.Millisecond)
	calls, _, _, _ := sink.snapshot()
	assert.Equal(t, 0, calls)
}

// TestNewVolumeMonitorDisabled verifies construction returns nil when
// monitoring cannot operate.
func TestNewVolumeMonitorDisabled(t *testing.T) {
	assert.Nil(t, NewVolumeMonitor(models.HighVolumeConfig{Threshold: 0, Window: time.Minute}, &countingSink{}))
	assert.Nil(t, NewVolumeMonitor(models.HighVolumeConfig{Threshold: 10, Window: time.Minute}, nil))
}

// TestSummarize verifies distinct client counting and path ranking.
func TestSummarize(t *testing.T) {
	events := []volumeEvent{
		{client: "a", path: "/.env"},
		{client: "a", path: "/.env"},
		{client: "b", path: "/.env"},
		{client: "b", path: "/wp-login.php"},
		{client: "c", path: "/xmlrpc.php"},
	}

	uniqueIPs, topPaths := summarize(events)
	assert.Equal(t, 3, uniqueIPs)
	require.Len(t, topPaths, 3)
	assert.Equal(t, "/.env", topPaths[0])
}
