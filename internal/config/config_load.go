package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:           "127.0.0.1",
			Port:           18890,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
			MaxFrameBytes:  512 * 1024,
		},
		DM: DMConfig{
			Policy: "pairing",
		},
		Storage: StorageConfig{
			Backend:    "file",
			DataDir:    "~/.botgate",
			SQLitePath: "~/.botgate/botgate.db",
		},
		Agent: AgentConfig{
			Responder: "echo",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "botgate",
		},
	}
}

// Load reads config from a JSON file, then overlays env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("BOTGATE_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("BOTGATE_HOST", &c.Gateway.Host)
	if v := os.Getenv("BOTGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("BOTGATE_ALLOWED_ORIGINS"); v != "" {
		c.Gateway.AllowedOrigins = strings.Split(v, ",")
	}

	envStr("BOTGATE_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("BOTGATE_TELEGRAM_PROXY", &c.Channels.Telegram.Proxy)
	envStr("BOTGATE_DISCORD_TOKEN", &c.Channels.Discord.Token)

	// Auto-enable channels if credentials are provided via env
	if os.Getenv("BOTGATE_TELEGRAM_TOKEN") != "" {
		c.Channels.Telegram.Enabled = true
	}
	if os.Getenv("BOTGATE_DISCORD_TOKEN") != "" {
		c.Channels.Discord.Enabled = true
	}

	envStr("BOTGATE_DM_POLICY", &c.DM.Policy)

	envStr("BOTGATE_STORAGE_BACKEND", &c.Storage.Backend)
	envStr("BOTGATE_DATA_DIR", &c.Storage.DataDir)
	envStr("BOTGATE_SQLITE_PATH", &c.Storage.SQLitePath)
	envStr("BOTGATE_POSTGRES_DSN", &c.Storage.PostgresDSN)
	if c.Storage.PostgresDSN != "" {
		c.Storage.Backend = "postgres"
	}

	envStr("BOTGATE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("BOTGATE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("BOTGATE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BOTGATE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
// Used by status reporting to avoid exposing secrets to WebSocket clients.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Deep copy via JSON round-trip
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Gateway.Token)
	maskNonEmpty(&cp.Channels.Telegram.Token)
	maskNonEmpty(&cp.Channels.Discord.Token)

	return cp
}

// DataDirPath returns the expanded file-backend data directory.
func (c *Config) DataDirPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Storage.DataDir)
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
