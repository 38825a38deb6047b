// Package config loads the bridge's configuration from environment
// variables, then an optional file, then built-in defaults, in that
// priority order. It reads no command-line flags; callers apply flag
// overrides to the returned Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the bridge's configuration, matching the keys enumerated
// in the external interfaces section: bind address, SSE keepalive
// interval, pending queue bound, write high-water mark, and log
// level/format.
type Config struct {
	BindAddress          string        `koanf:"bind_address"`
	SSEKeepaliveInterval time.Duration `koanf:"sse_keepalive_interval"`
	PendingQueueMax      int           `koanf:"pending_queue_max"`
	WriteHighWaterBytes  int64         `koanf:"write_highwater_bytes"`
	LogLevel             string        `koanf:"log_level"`
	LogFormat            string        `koanf:"log_format"`
}

var defaults = map[string]any{
	"bind_address":           "localhost:8080",
	"sse_keepalive_interval": 15 * time.Second,
	"pending_queue_max":      64,
	"write_highwater_bytes":  int64(1 << 20),
	"log_level":              "info",
	"log_format":             "text",
}

// Load builds a Config from, in increasing priority: built-in
// defaults, an optional config file at path (json or yaml by
// extension; skipped if path is empty or the file doesn't exist), and
// MCPBRIDGE_-prefixed environment variables. Each call starts from a
// fresh koanf instance, matching the package-global
// convention but scoped per call so repeated Load calls (as in tests)
// don't accumulate stale keys from a previous call.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := loadConfigFile(k, path); err != nil {
			return Config{}, err
		}
	}

	envProvider := env.ProviderWithValue("MCPBRIDGE_", ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, "MCPBRIDGE_"))
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("config: unsupported config file extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("config: loading file %s: %w", path, err)
	}
	return nil
}
