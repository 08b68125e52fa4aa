package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botgate/internal/agent"
	"github.com/nextlevelbuilder/botgate/internal/bootstrap"
	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/channels"
	"github.com/nextlevelbuilder/botgate/internal/channels/discord"
	"github.com/nextlevelbuilder/botgate/internal/channels/telegram"
	"github.com/nextlevelbuilder/botgate/internal/config"
	"github.com/nextlevelbuilder/botgate/internal/dm"
	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/internal/gateway/methods"
	"github.com/nextlevelbuilder/botgate/internal/sessions"
	"github.com/nextlevelbuilder/botgate/internal/skills"
	"github.com/nextlevelbuilder/botgate/internal/store"
	"github.com/nextlevelbuilder/botgate/internal/store/file"
	"github.com/nextlevelbuilder/botgate/internal/store/pg"
	"github.com/nextlevelbuilder/botgate/internal/store/sqlite"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway server (same as running botgate with no subcommand)",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	bootstrap.InitLogging(verbose)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config.load_failed", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := bootstrap.InitTracing(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry.init_failed", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	msgBus := bus.New()
	dataDir := cfg.DataDirPath()

	// Stores
	allowlistStore, sessionStore := buildStores(cfg, dataDir)
	defer allowlistStore.Close()

	// DM security
	defaultPolicy, err := dm.ParsePolicy(cfg.DM.Policy)
	if err != nil {
		slog.Warn("dm.invalid_default_policy", "policy", cfg.DM.Policy, "error", err)
		defaultPolicy = dm.DefaultPolicy
	}
	security := dm.NewSecurity(allowlistStore, defaultPolicy, msgBus)
	security.Load(ctx)
	applyDMConfig(ctx, security, cfg)
	security.StartReaper(ctx)

	// Skills
	skillReg := skills.NewRegistry()
	registerBuiltinSkills(skillReg)

	// Agent responder consuming inbound channel messages
	runner := buildRunner(cfg)
	agentSvc := agent.NewService(runner, msgBus, sessionStore)
	agentSvc.Start(ctx)

	// Channel adapters behind the DM gate
	gate := channels.NewDMGate(security, msgBus)
	channelMgr := channels.NewManager(msgBus)
	registerChannels(cfg, channelMgr, msgBus, gate)
	channelMgr.StartDeliveryLoop(ctx)
	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("channels.start_failed", "error", err)
	}

	// Gateway server + RPC surface
	server := gateway.NewServer(cfg, msgBus)
	methods.NewCoreMethods(server, channelMgr).Register(server.Router())
	methods.NewSessionMethods(sessionStore).Register(server.Router())
	methods.NewChannelMethods(channelMgr).Register(server.Router())
	methods.NewSkillMethods(skillReg).Register(server.Router())
	methods.NewAgentMethods(runner, sessionStore).Register(server.Router())
	methods.NewDMMethods(security).Register(server.Router())

	// Hot reload: re-apply DM policy settings when the config file changes.
	if err := config.Watch(ctx, cfgPath, func(fresh *config.Config) {
		cfg.ReplaceFrom(fresh)
		applyDMConfig(ctx, security, fresh)
		if p, err := dm.ParsePolicy(fresh.DM.Policy); err == nil {
			security.SetDefaultPolicy(p)
		}
	}); err != nil {
		slog.Warn("config.watch_unavailable", "error", err)
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("gateway.shutdown_signal", "signal", sig.String())
		channelMgr.StopAll(context.Background())
		server.Stop("shutdown")
		cancel()
	}()

	slog.Info("botgate starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"storage", cfg.Storage.Backend,
		"dm_policy", string(defaultPolicy),
		"channels", channelMgr.List(),
	)

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway.failed", "error", err)
		os.Exit(1)
	}
}

// buildStores selects the allowlist backend from config. Sessions are always
// file-backed; the pluggable part is the allowlist keyed store.
func buildStores(cfg *config.Config, dataDir string) (store.AllowlistStore, store.SessionStore) {
	sessionStore := file.NewFileSessionStore(sessions.NewManager(filepath.Join(dataDir, "sessions")))

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := pg.OpenDB(cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("store.postgres_unavailable", "error", err)
			os.Exit(1)
		}
		alStore, err := pg.NewPGAllowlistStore(db)
		if err != nil {
			slog.Error("store.postgres_schema_failed", "error", err)
			os.Exit(1)
		}
		slog.Info("store.backend", "backend", "postgres")
		return alStore, sessionStore

	case "sqlite":
		alStore, err := sqlite.NewSQLiteAllowlistStore(config.ExpandHome(cfg.Storage.SQLitePath))
		if err != nil {
			slog.Error("store.sqlite_unavailable", "path", cfg.Storage.SQLitePath, "error", err)
			os.Exit(1)
		}
		slog.Info("store.backend", "backend", "sqlite", "path", cfg.Storage.SQLitePath)
		return alStore, sessionStore

	default:
		path := filepath.Join(dataDir, "allowlist.json")
		slog.Info("store.backend", "backend", "file", "path", path)
		return file.NewFileAllowlistStore(path), sessionStore
	}
}

// applyDMConfig pushes per-channel policy overrides and seed allowlist
// entries ("channel:userId") from config into the security service.
func applyDMConfig(ctx context.Context, security *dm.Security, cfg *config.Config) {
	for channel, policy := range cfg.DM.PerChannel {
		p, err := dm.ParsePolicy(policy)
		if err != nil {
			slog.Warn("dm.invalid_channel_policy", "channel", channel, "policy", policy)
			continue
		}
		security.SetPolicy(channel, p)
	}

	for _, seed := range cfg.DM.Allowlist {
		channel, userID, ok := strings.Cut(seed, ":")
		if !ok || channel == "" || userID == "" {
			slog.Warn("dm.invalid_allowlist_seed", "entry", seed)
			continue
		}
		security.AddToAllowlist(ctx, channel, userID, "", "config", "seeded from config")
	}
}

func buildRunner(cfg *config.Config) agent.Runner {
	switch cfg.Agent.Responder {
	case "", "echo":
		return agent.EchoRunner{}
	default:
		slog.Warn("agent.unknown_responder", "responder", cfg.Agent.Responder)
		return agent.EchoRunner{}
	}
}

func registerChannels(cfg *config.Config, mgr *channels.Manager, msgBus *bus.MessageBus, gate *channels.DMGate) {
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus, gate)
		if err != nil {
			slog.Error("telegram.init_failed", "error", err)
		} else {
			mgr.RegisterChannel(tg)
		}
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		dc, err := discord.New(cfg.Channels.Discord, msgBus, gate)
		if err != nil {
			slog.Error("discord.init_failed", "error", err)
		} else {
			mgr.RegisterChannel(dc)
		}
	}
}

// registerBuiltinSkills installs the skills that ship with the gateway.
func registerBuiltinSkills(reg *skills.Registry) {
	reg.Register("ping", "Round-trip check, returns pong", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]string{"reply": "pong"}, nil
	})
	reg.Register("time", "Current server time", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]string{"now": time.Now().UTC().Format(time.RFC3339)}, nil
	})
	reg.Register("echo", "Returns its params unchanged", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		if params == nil {
			return map[string]interface{}{}, nil
		}
		var v interface{}
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
}
