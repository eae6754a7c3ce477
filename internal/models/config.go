// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all gateway components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, security, rate_limit, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Pipeline composition is decided once at startup from this structure,
//   never by environment-flag branching inside handlers
package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Blocklist store type constants
const (
	BlocklistTypeMemory   = "memory"
	BlocklistTypeJSON     = "json"
	BlocklistTypePostgres = "postgres"
	BlocklistTypeSQLite   = "sqlite"
)

// Rate limit counter store type constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Alert transport type constants
const (
	AlertTransportLog     = "log"
	AlertTransportWebhook = "webhook"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Inspection, blocking and alerting
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`       // Admission control
	Blocklist     BlocklistConfig     `yaml:"blocklist" json:"blocklist"`         // Permanent block persistence
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`           // Protected application
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing and service identity
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// SecurityConfig groups the request-inspection pipeline settings.
type SecurityConfig struct {
	// AdminToken authorizes the administrative security endpoints. Empty
	// disables the admin surface entirely.
	AdminToken string          `yaml:"admin_token" json:"admin_token"`
	Inspection InspectionConfig `yaml:"inspection" json:"inspection"`
	Tracker    TrackerConfig   `yaml:"tracker" json:"tracker"`
	Patterns   PatternsConfig  `yaml:"patterns" json:"patterns"`
	Headers    HeadersConfig   `yaml:"headers" json:"headers"`
	Alerts     AlertsConfig    `yaml:"alerts" json:"alerts"`
}

type InspectionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TrackerConfig controls the sliding-window violation ledger.
type TrackerConfig struct {
	BlockThreshold int           `yaml:"block_threshold" json:"block_threshold"` // violations in window before a block
	BlockDuration  time.Duration `yaml:"block_duration" json:"block_duration"`   // temporary block length
	TrackWindow    time.Duration `yaml:"track_window" json:"track_window"`       // trailing window for counting
	SweepInterval  time.Duration `yaml:"sweep_interval" json:"sweep_interval"`   // housekeeping cadence
}

// PatternsConfig extends or replaces the built-in classification rules.
type PatternsConfig struct {
	DisableDefaults bool     `yaml:"disable_defaults" json:"disable_defaults"`
	Paths           []string `yaml:"paths" json:"paths"`
	Queries         []string `yaml:"queries" json:"queries"`
	UserAgents      []string `yaml:"user_agents" json:"user_agents"`
}

type HeadersConfig struct {
	Enabled               bool   `yaml:"enabled" json:"enabled"`
	ContentSecurityPolicy string `yaml:"content_security_policy" json:"content_security_policy"`
	ServerName            string `yaml:"server_name" json:"server_name"`
}

type AlertsConfig struct {
	Enabled        bool             `yaml:"enabled" json:"enabled"`
	Transport      string           `yaml:"transport" json:"transport"` // log or webhook
	Recipient      string           `yaml:"recipient" json:"recipient"`
	WebhookURL     string           `yaml:"webhook_url" json:"webhook_url"`
	Cooldown       time.Duration    `yaml:"cooldown" json:"cooldown"`
	SendTimeout    time.Duration    `yaml:"send_timeout" json:"send_timeout"`
	SendsPerMinute int              `yaml:"sends_per_minute" json:"sends_per_minute"`
	HighVolume     HighVolumeConfig `yaml:"high_volume" json:"high_volume"`
}

// HighVolumeConfig triggers the aggregate attack alert when the total number
// of classified violations across all clients crosses Threshold within Window.
type HighVolumeConfig struct {
	Threshold int           `yaml:"threshold" json:"threshold"`
	Window    time.Duration `yaml:"window" json:"window"`
}

type RateLimitConfig struct {
	Enabled         bool              `yaml:"enabled" json:"enabled"`
	Store           string            `yaml:"store" json:"store"` // memory or redis
	Redis           RedisConfig       `yaml:"redis" json:"redis"`
	Default         QuotaConfig       `yaml:"default" json:"default"`
	Routes          []RouteQuotaConfig `yaml:"routes" json:"routes"`
	CleanupInterval time.Duration     `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// QuotaConfig is a fixed-window request budget. Zero disables that window.
type QuotaConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	PerHour   int `yaml:"per_hour" json:"per_hour"`
}

// RouteQuotaConfig overrides the default quota for requests whose path starts
// with Prefix. The first matching route wins; Name becomes the route category
// in counter keys and response headers.
type RouteQuotaConfig struct {
	Name      string `yaml:"name" json:"name"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	PerMinute int    `yaml:"per_minute" json:"per_minute"`
	PerHour   int    `yaml:"per_hour" json:"per_hour"`
}

type BlocklistConfig struct {
	Type string `yaml:"type" json:"type"`
	Path string `yaml:"path" json:"path"` // json and sqlite backends
	DSN  string `yaml:"dsn" json:"dsn"`   // postgres backend
}

// UpstreamConfig identifies the protected application the gateway fronts.
// Target empty means the gateway serves only its own admin surface (useful
// for tests and for deployments where the application is mounted in-process).
type UpstreamConfig struct {
	Target  string        `yaml:"target" json:"target"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout or otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Tracker: 10 violations in 5 minutes earns a 60 minute block, matching the
//   thresholds the platform has run in production.
// - Rate limits: generous 200/minute, 5000/hour defaults with strict
//   per-route overrides for authentication and bulk endpoints.
// - Alerts: 1 hour cool-down per alert key to prevent operator fatigue.
// - Memory stores everywhere: single-instance deployments work with no
//   external dependencies; swap in redis/postgres for horizontal scale.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Security: SecurityConfig{
			Inspection: InspectionConfig{
				Enabled: true,
			},
			Tracker: TrackerConfig{
				BlockThreshold: 10,
				BlockDuration:  60 * time.Minute,
				TrackWindow:    5 * time.Minute,
				SweepInterval:  10 * time.Minute,
			},
			Patterns: PatternsConfig{},
			Headers: HeadersConfig{
				Enabled:    true,
				ServerName: "gatekeeper",
			},
			Alerts: AlertsConfig{
				Enabled:        true,
				Transport:      AlertTransportLog,
				Cooldown:       time.Hour,
				SendTimeout:    30 * time.Second,
				SendsPerMinute: 10,
				HighVolume: HighVolumeConfig{
					Threshold: 100,
					Window:    5 * time.Minute,
				},
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Store:   RateLimitStoreMemory,
			Default: QuotaConfig{
				PerMinute: 200,
				PerHour:   5000,
			},
			Routes: []RouteQuotaConfig{
				{Name: "auth_login", Prefix: "/api/v1/auth/login", PerMinute: 5},
				{Name: "auth_password_reset", Prefix: "/api/v1/auth/password-reset", PerMinute: 3},
				{Name: "auth_register", Prefix: "/api/v1/auth/register", PerMinute: 10},
				{Name: "auth_refresh", Prefix: "/api/v1/auth/refresh", PerMinute: 30},
				{Name: "admin_bulk", Prefix: "/api/v1/admin/bulk", PerMinute: 10},
				{Name: "file_upload", Prefix: "/api/v1/files/upload", PerMinute: 20},
			},
			CleanupInterval: 5 * time.Minute,
		},
		Blocklist: BlocklistConfig{
			Type: BlocklistTypeMemory,
		},
		Upstream: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 0.1,
			},
		},
	}
}

// Validate checks the configuration for consistency and returns the first
// problem found. Called once at startup, after file and environment loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "" {
			return errors.New("tls_cert_file and tls_key_file are required when TLS is enabled")
		}
	}

	if err := c.Security.Tracker.validate(); err != nil {
		return fmt.Errorf("security.tracker: %w", err)
	}
	if err := c.Security.Alerts.validate(); err != nil {
		return fmt.Errorf("security.alerts: %w", err)
	}
	if err := c.RateLimit.validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Blocklist.validate(); err != nil {
		return fmt.Errorf("blocklist: %w", err)
	}

	if c.Upstream.Target != "" {
		if _, err := url.Parse(c.Upstream.Target); err != nil {
			return fmt.Errorf("upstream target is not a valid URL: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	if c.Observability.Tracing.Enabled {
		switch c.Observability.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if c.Observability.Tracing.OTLPEndpoint == "" {
				return errors.New("otlp_endpoint is required for the otlp trace exporter")
			}
		default:
			return fmt.Errorf("unsupported trace exporter: %s", c.Observability.Tracing.Exporter)
		}
	}

	return nil
}

func (t TrackerConfig) validate() error {
	if t.BlockThreshold < 1 {
		return fmt.Errorf("block_threshold must be at least 1, got %d", t.BlockThreshold)
	}
	if t.BlockDuration <= 0 {
		return errors.New("block_duration must be positive")
	}
	if t.TrackWindow <= 0 {
		return errors.New("track_window must be positive")
	}
	if t.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	return nil
}

func (a AlertsConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	switch a.Transport {
	case AlertTransportLog:
	case AlertTransportWebhook:
		if a.WebhookURL == "" {
			return errors.New("webhook_url is required for the webhook transport")
		}
	default:
		return fmt.Errorf("unsupported alert transport: %s", a.Transport)
	}
	if a.Cooldown <= 0 {
		return errors.New("cooldown must be positive")
	}
	if a.SendTimeout <= 0 {
		return errors.New("send_timeout must be positive")
	}
	return nil
}

func (r RateLimitConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	switch r.Store {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if r.Redis.Addr == "" {
			return errors.New("redis addr is required for the redis counter store")
		}
	default:
		return fmt.Errorf("unsupported counter store: %s", r.Store)
	}
	if r.Default.PerMinute < 0 || r.Default.PerHour < 0 {
		return errors.New("default quota must not be negative")
	}
	seen := make(map[string]bool, len(r.Routes))
	for _, route := range r.Routes {
		if route.Name == "" {
			return errors.New("route quota name is required")
		}
		if route.Prefix == "" {
			return fmt.Errorf("route quota %q requires a prefix", route.Name)
		}
		if seen[route.Name] {
			return fmt.Errorf("duplicate route quota name: %s", route.Name)
		}
		seen[route.Name] = true
	}
	return nil
}

func (b BlocklistConfig) validate() error {
	switch b.Type {
	case BlocklistTypeMemory:
	case BlocklistTypeJSON, BlocklistTypeSQLite:
		if b.Path == "" {
			return fmt.Errorf("path is required for %s blocklist storage", b.Type)
		}
	case BlocklistTypePostgres:
		if b.DSN == "" {
			return errors.New("dsn is required for postgres blocklist storage")
		}
	default:
		return fmt.Errorf("unsupported blocklist type: %s", b.Type)
	}
	return nil
}
