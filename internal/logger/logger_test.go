package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gatekeeper/internal/models"
	"gatekeeper/internal/version"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "mixed case", input: "Info", expected: slog.LevelInfo},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
				return
			}
			if level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestSetupJSONFormat(t *testing.T) {
	cfg := models.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger, closer, err := Setup(cfg, version.Info{Version: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer != nil {
		t.Error("expected nil closer for stdout")
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSetupTextFormat(t *testing.T) {
	cfg := models.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger, closer, err := Setup(cfg, version.Info{Version: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer != nil {
		t.Error("expected nil closer for stderr")
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	cfg := models.LoggingConfig{
		Level:  "verbose",
		Format: "json",
		Output: "stdout",
	}

	_, _, err := Setup(cfg, version.Info{})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSetupFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.log")
	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	}

	logger, closer, err := Setup(cfg, version.Info{Version: "1.2.3", GitCommit: "abc123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer == nil {
		t.Fatal("expected non-nil closer for file output")
	}

	logger.Info("test message", "key", "value")
	if err := closer.Close(); err != nil {
		t.Fatalf("failed to close log file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "test message") {
		t.Errorf("log file missing message: %s", content)
	}
	if !strings.Contains(content, `"version":"1.2.3"`) {
		t.Errorf("log file missing version field: %s", content)
	}
}

func TestSetupFileOutputWithoutPath(t *testing.T) {
	cfg := models.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
	}

	_, _, err := Setup(cfg, version.Info{})
	if err == nil {
		t.Fatal("expected error when file output has no path")
	}
}
