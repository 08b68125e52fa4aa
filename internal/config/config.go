package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the botgate gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	DM        DMConfig        `json:"dm"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Agent     AgentConfig     `json:"agent,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// GatewayConfig controls the WebSocket control-plane server.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Token          string   `json:"token,omitempty"`           // bearer token clients must present in connect
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // WebSocket Origin whitelist (empty = allow all)
	RateLimitRPS   float64  `json:"rate_limit_rps,omitempty"`  // per-connection inbound frame rate (default 50, 0 = disabled)
	RateLimitBurst int      `json:"rate_limit_burst,omitempty"`
	MaxFrameBytes  int64    `json:"max_frame_bytes,omitempty"` // max inbound frame size (default 512KB)
}

// ChannelsConfig contains per-channel adapter configuration.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Proxy   string `json:"proxy,omitempty"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// DMConfig controls direct-message access control.
type DMConfig struct {
	Policy     string              `json:"policy,omitempty"`      // "open", "pairing" (default), "allowlist", "closed"
	PerChannel map[string]string   `json:"per_channel,omitempty"` // channel name → policy override
	Allowlist  FlexibleStringSlice `json:"allowlist,omitempty"`   // seed entries "channel:userId" loaded at boot
}

// StorageConfig selects the persistence backend.
// PostgresDSN is never read from config.json; it only comes from the
// BOTGATE_POSTGRES_DSN env var so the secret stays out of the file.
type StorageConfig struct {
	Backend     string `json:"backend,omitempty"`     // "file" (default), "sqlite", "postgres"
	DataDir     string `json:"data_dir,omitempty"`    // root for file backend (default "~/.botgate")
	SQLitePath  string `json:"sqlite_path,omitempty"` // default "~/.botgate/botgate.db"
	PostgresDSN string `json:"-"`
}

// AgentConfig controls the inbound-message responder.
type AgentConfig struct {
	Responder string `json:"responder,omitempty"` // "echo" (default)
}

// TelemetryConfig configures OpenTelemetry trace export for method dispatch.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`     // OTLP/HTTP endpoint, e.g. "localhost:4318"
	Insecure    bool   `json:"insecure,omitempty"`     // plain HTTP for local collectors
	ServiceName string `json:"service_name,omitempty"` // default "botgate"
}

// GatewaySnapshot returns a copy of the gateway section. Long-lived readers
// (the gateway server and its connections) must use it instead of touching
// Gateway directly, since a hot reload can call ReplaceFrom at any time.
func (c *Config) GatewaySnapshot() GatewayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gateway
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = src.Gateway
	c.Channels = src.Channels
	c.DM = src.DM
	c.Storage = src.Storage
	c.Agent = src.Agent
	c.Telemetry = src.Telemetry
}
