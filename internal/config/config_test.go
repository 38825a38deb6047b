package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BindAddress != "localhost:8080" {
		t.Errorf("BindAddress = %q, want localhost:8080", cfg.BindAddress)
	}
	if cfg.SSEKeepaliveInterval != 15*time.Second {
		t.Errorf("SSEKeepaliveInterval = %v, want 15s", cfg.SSEKeepaliveInterval)
	}
	if cfg.PendingQueueMax != 64 {
		t.Errorf("PendingQueueMax = %d, want 64", cfg.PendingQueueMax)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MCPBRIDGE_BIND_ADDRESS", "0.0.0.0:9000")
	t.Setenv("MCPBRIDGE_PENDING_QUEUE_MAX", "10")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BindAddress != "0.0.0.0:9000" {
		t.Errorf("BindAddress = %q, want 0.0.0.0:9000", cfg.BindAddress)
	}
	if cfg.PendingQueueMax != 10 {
		t.Errorf("PendingQueueMax = %d, want 10", cfg.PendingQueueMax)
	}
}

func TestLoadFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.json")
	if err := os.WriteFile(path, []byte(`{"bind_address":"localhost:9999","log_level":"debug"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BindAddress != "localhost:9999" {
		t.Errorf("BindAddress = %q, want localhost:9999", cfg.BindAddress)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("missing config file should be tolerated: %v", err)
	}
}
