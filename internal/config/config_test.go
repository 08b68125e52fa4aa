package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 18890 {
		t.Errorf("default port = %d, want 18890", cfg.Gateway.Port)
	}
	if cfg.DM.Policy != "pairing" {
		t.Errorf("default dm policy = %q, want pairing", cfg.DM.Policy)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("default backend = %q, want file", cfg.Storage.Backend)
	}
}

func TestLoadParsesJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// trailing commas and comments are fine
		gateway: {
			host: "0.0.0.0",
			port: 9999,
		},
		dm: { policy: "allowlist" },
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Host != "0.0.0.0" || cfg.Gateway.Port != 9999 {
		t.Errorf("gateway = %s:%d, want 0.0.0.0:9999", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if cfg.DM.Policy != "allowlist" {
		t.Errorf("dm policy = %q, want allowlist", cfg.DM.Policy)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOTGATE_GATEWAY_TOKEN", "secret-token")
	t.Setenv("BOTGATE_PORT", "7001")
	t.Setenv("BOTGATE_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("BOTGATE_DM_POLICY", "open")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Token != "secret-token" {
		t.Errorf("token = %q", cfg.Gateway.Token)
	}
	if cfg.Gateway.Port != 7001 {
		t.Errorf("port = %d, want 7001", cfg.Gateway.Port)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("telegram should auto-enable when token set via env")
	}
	if cfg.DM.Policy != "open" {
		t.Errorf("dm policy = %q, want open", cfg.DM.Policy)
	}
}

func TestPostgresDSNSelectsBackend(t *testing.T) {
	t.Setenv("BOTGATE_POSTGRES_DSN", "postgres://localhost/botgate")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres", cfg.Storage.Backend)
	}
}

func TestMaskedCopy(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Token = "gw-secret"
	cfg.Channels.Discord.Token = "dc-secret"

	cp := cfg.MaskedCopy()
	if cp.Gateway.Token != "***" {
		t.Errorf("gateway token = %q, want masked", cp.Gateway.Token)
	}
	if cp.Channels.Discord.Token != "***" {
		t.Errorf("discord token = %q, want masked", cp.Channels.Discord.Token)
	}
	if cp.Channels.Telegram.Token != "" {
		t.Errorf("empty telegram token should stay empty, got %q", cp.Channels.Telegram.Token)
	}
	if cfg.Gateway.Token != "gw-secret" {
		t.Error("original config mutated by MaskedCopy")
	}
}

func TestHashChangesWithContent(t *testing.T) {
	a := Default()
	b := Default()
	if a.Hash() != b.Hash() {
		t.Error("identical configs should hash equal")
	}
	b.Gateway.Port = 1
	if a.Hash() == b.Hash() {
		t.Error("different configs should hash differently")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Gateway.Port = 7777
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Gateway.Port != 7777 {
		t.Errorf("port after round trip = %d, want 7777", loaded.Gateway.Port)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestGatewaySnapshotDuringReload(t *testing.T) {
	cfg := Default()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			fresh := Default()
			fresh.Gateway.Port = 20000 + i
			fresh.Gateway.AllowedOrigins = []string{"https://example.test"}
			cfg.ReplaceFrom(fresh)
		}
	}()

	// Concurrent snapshots must observe a consistent section; the race
	// detector flags any unguarded overlap with ReplaceFrom.
	for i := 0; i < 200; i++ {
		gw := cfg.GatewaySnapshot()
		if gw.Port < 18890 {
			t.Fatalf("snapshot saw torn port %d", gw.Port)
		}
	}
	<-done
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/.botgate"); got != home+"/.botgate" {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}
