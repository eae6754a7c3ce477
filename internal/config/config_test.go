package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

// TestLoadDefaults verifies loading with no file and no environment yields
// the default configuration.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Security.Inspection.Enabled)
	assert.Equal(t, 10, cfg.Security.Tracker.BlockThreshold)
	assert.Equal(t, 60*time.Minute, cfg.Security.Tracker.BlockDuration)
	assert.Equal(t, 5*time.Minute, cfg.Security.Tracker.TrackWindow)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, models.RateLimitStoreMemory, cfg.RateLimit.Store)
	assert.Equal(t, 200, cfg.RateLimit.Default.PerMinute)
	assert.Equal(t, models.BlocklistTypeMemory, cfg.Blocklist.Type)
	assert.Equal(t, models.AlertTransportLog, cfg.Security.Alerts.Transport)
	assert.Equal(t, time.Hour, cfg.Security.Alerts.Cooldown)
}

// TestLoadFromFile verifies YAML values override the defaults.
func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9999
  host: "127.0.0.1"
security:
  admin_token: "gk_test-token"
  tracker:
    block_threshold: 3
    block_duration: 15m
rate_limit:
  default:
    per_minute: 50
  routes:
    - name: "auth_login"
      prefix: "/api/v1/auth/login"
      per_minute: 2
blocklist:
  type: "json"
  path: "/tmp/blocks.json"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "gk_test-token", cfg.Security.AdminToken)
	assert.Equal(t, 3, cfg.Security.Tracker.BlockThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Security.Tracker.BlockDuration)
	assert.Equal(t, 50, cfg.RateLimit.Default.PerMinute)
	require.Len(t, cfg.RateLimit.Routes, 1)
	assert.Equal(t, 2, cfg.RateLimit.Routes[0].PerMinute)
	assert.Equal(t, models.BlocklistTypeJSON, cfg.Blocklist.Type)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Security.Tracker.TrackWindow)
}

// TestLoadFileNotFound verifies a missing explicit file is an error.
func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

// TestLoadInvalidYAML verifies parse failures surface.
func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

// TestLoadEnvironmentOverrides verifies environment variables win over both
// defaults and file values.
func TestLoadEnvironmentOverrides(t *testing.T) {
	content := `
server:
  port: 9000
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("GATEKEEPER_PORT", "7070")
	t.Setenv("GATEKEEPER_ADMIN_TOKEN", "gk_env-token")
	t.Setenv("GATEKEEPER_BLOCK_THRESHOLD", "25")
	t.Setenv("GATEKEEPER_BLOCK_DURATION", "2h")
	t.Setenv("GATEKEEPER_INSPECTION_ENABLED", "false")
	t.Setenv("GATEKEEPER_RATE_LIMIT_PER_MINUTE", "42")
	t.Setenv("GATEKEEPER_UPSTREAM_TARGET", "http://127.0.0.1:8000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "environment beats the file value")
	assert.Equal(t, "gk_env-token", cfg.Security.AdminToken)
	assert.Equal(t, 25, cfg.Security.Tracker.BlockThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Security.Tracker.BlockDuration)
	assert.False(t, cfg.Security.Inspection.Enabled)
	assert.Equal(t, 42, cfg.RateLimit.Default.PerMinute)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Upstream.Target)
}

// TestLoadInvalidEnvValuesIgnored verifies unparseable environment values fall
// back to the existing configuration.
func TestLoadInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("GATEKEEPER_PORT", "not-a-number")
	t.Setenv("GATEKEEPER_BLOCK_DURATION", "eleventy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Minute, cfg.Security.Tracker.BlockDuration)
}

// TestLoadValidationFailure verifies invalid final configuration is rejected.
func TestLoadValidationFailure(t *testing.T) {
	t.Setenv("GATEKEEPER_PORT", "99999")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

// TestConfigValidate exercises the validation rules directly.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Config)
		wantErr string
	}{
		{"valid defaults", func(c *models.Config) {}, ""},
		{"port too low", func(c *models.Config) { c.Server.Port = 0 }, "server port"},
		{"tls without cert", func(c *models.Config) { c.Server.TLSEnabled = true }, "tls_cert_file"},
		{"zero threshold", func(c *models.Config) { c.Security.Tracker.BlockThreshold = 0 }, "block_threshold"},
		{"negative block duration", func(c *models.Config) { c.Security.Tracker.BlockDuration = -time.Minute }, "block_duration"},
		{"webhook without url", func(c *models.Config) {
			c.Security.Alerts.Transport = models.AlertTransportWebhook
		}, "webhook_url"},
		{"unknown alert transport", func(c *models.Config) { c.Security.Alerts.Transport = "pigeon" }, "unsupported alert transport"},
		{"redis without addr", func(c *models.Config) { c.RateLimit.Store = models.RateLimitStoreRedis }, "redis addr"},
		{"route without prefix", func(c *models.Config) {
			c.RateLimit.Routes = []models.RouteQuotaConfig{{Name: "broken"}}
		}, "requires a prefix"},
		{"duplicate route names", func(c *models.Config) {
			c.RateLimit.Routes = []models.RouteQuotaConfig{
				{Name: "dup", Prefix: "/a"},
				{Name: "dup", Prefix: "/b"},
			}
		}, "duplicate route quota name"},
		{"json blocklist without path", func(c *models.Config) { c.Blocklist.Type = models.BlocklistTypeJSON }, "path is required"},
		{"postgres blocklist without dsn", func(c *models.Config) { c.Blocklist.Type = models.BlocklistTypePostgres }, "dsn is required"},
		{"otlp without endpoint", func(c *models.Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "otlp"
		}, "otlp_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// TestSaveExample verifies the example file round-trips through Load.
func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example", "config.yaml")
	require.NoError(t, SaveExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gk_your-admin-token-here", cfg.Security.AdminToken)
	assert.Equal(t, models.AlertTransportWebhook, cfg.Security.Alerts.Transport)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Upstream.Target)
}
