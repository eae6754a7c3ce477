package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gatekeeper/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("GATEKEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("GATEKEEPER_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("GATEKEEPER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if tls := os.Getenv("GATEKEEPER_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("GATEKEEPER_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("GATEKEEPER_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Security configuration
	if token := os.Getenv("GATEKEEPER_ADMIN_TOKEN"); token != "" {
		config.Security.AdminToken = token
	}

	if enabled := os.Getenv("GATEKEEPER_INSPECTION_ENABLED"); enabled != "" {
		config.Security.Inspection.Enabled = strings.ToLower(enabled) == "true"
	}

	if threshold := os.Getenv("GATEKEEPER_BLOCK_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			config.Security.Tracker.BlockThreshold = t
		}
	}

	if duration := os.Getenv("GATEKEEPER_BLOCK_DURATION"); duration != "" {
		if d, err := time.ParseDuration(duration); err == nil {
			config.Security.Tracker.BlockDuration = d
		}
	}

	if window := os.Getenv("GATEKEEPER_TRACK_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Security.Tracker.TrackWindow = d
		}
	}

	if interval := os.Getenv("GATEKEEPER_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Security.Tracker.SweepInterval = d
		}
	}

	// Alert configuration
	if enabled := os.Getenv("GATEKEEPER_ALERTS_ENABLED"); enabled != "" {
		config.Security.Alerts.Enabled = strings.ToLower(enabled) == "true"
	}

	if transport := os.Getenv("GATEKEEPER_ALERT_TRANSPORT"); transport != "" {
		config.Security.Alerts.Transport = transport
	}

	if recipient := os.Getenv("GATEKEEPER_ALERT_RECIPIENT"); recipient != "" {
		config.Security.Alerts.Recipient = recipient
	}

	if url := os.Getenv("GATEKEEPER_ALERT_WEBHOOK_URL"); url != "" {
		config.Security.Alerts.WebhookURL = url
	}

	if cooldown := os.Getenv("GATEKEEPER_ALERT_COOLDOWN"); cooldown != "" {
		if d, err := time.ParseDuration(cooldown); err == nil {
			config.Security.Alerts.Cooldown = d
		}
	}

	// Rate limit configuration
	if enabled := os.Getenv("GATEKEEPER_RATE_LIMIT_ENABLED"); enabled != "" {
		config.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	if store := os.Getenv("GATEKEEPER_RATE_LIMIT_STORE"); store != "" {
		config.RateLimit.Store = store
	}

	if perMinute := os.Getenv("GATEKEEPER_RATE_LIMIT_PER_MINUTE"); perMinute != "" {
		if n, err := strconv.Atoi(perMinute); err == nil {
			config.RateLimit.Default.PerMinute = n
		}
	}

	if perHour := os.Getenv("GATEKEEPER_RATE_LIMIT_PER_HOUR"); perHour != "" {
		if n, err := strconv.Atoi(perHour); err == nil {
			config.RateLimit.Default.PerHour = n
		}
	}

	// Redis configuration
	if addr := os.Getenv("GATEKEEPER_REDIS_ADDR"); addr != "" {
		config.RateLimit.Redis.Addr = addr
	}

	if password := os.Getenv("GATEKEEPER_REDIS_PASSWORD"); password != "" {
		config.RateLimit.Redis.Password = password
	}

	if db := os.Getenv("GATEKEEPER_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.RateLimit.Redis.DB = dbNum
		}
	}

	// Blocklist configuration
	if blType := os.Getenv("GATEKEEPER_BLOCKLIST_TYPE"); blType != "" {
		config.Blocklist.Type = blType
	}

	if path := os.Getenv("GATEKEEPER_BLOCKLIST_PATH"); path != "" {
		config.Blocklist.Path = path
	}

	if dsn := os.Getenv("GATEKEEPER_BLOCKLIST_DSN"); dsn != "" {
		config.Blocklist.DSN = dsn
	}

	// Upstream configuration
	if target := os.Getenv("GATEKEEPER_UPSTREAM_TARGET"); target != "" {
		config.Upstream.Target = target
	}

	if timeout := os.Getenv("GATEKEEPER_UPSTREAM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Upstream.Timeout = d
		}
	}

	// Logging configuration
	if level := os.Getenv("GATEKEEPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("GATEKEEPER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("GATEKEEPER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("GATEKEEPER_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("GATEKEEPER_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("GATEKEEPER_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("GATEKEEPER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	config.Security.AdminToken = "gk_your-admin-token-here"
	config.Security.Alerts.Transport = models.AlertTransportWebhook
	config.Security.Alerts.WebhookURL = "https://alerts.example.com/hook"
	config.Security.Alerts.Recipient = "security@example.com"
	config.Upstream.Target = "http://127.0.0.1:8000"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
