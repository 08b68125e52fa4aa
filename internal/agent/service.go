package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/sessions"
	"github.com/nextlevelbuilder/botgate/internal/store"
)

// Service consumes inbound channel messages from the bus, runs the agent and
// publishes the reply back for the originating channel adapter to deliver.
type Service struct {
	runner   Runner
	router   bus.MessageRouter
	sessions store.SessionStore
}

func NewService(runner Runner, router bus.MessageRouter, sessionStore store.SessionStore) *Service {
	return &Service{runner: runner, router: router, sessions: sessionStore}
}

// Start runs the consume loop until ctx is done. One message at a time;
// channel adapters buffer behind the bus queue.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			msg, ok := s.router.ConsumeInbound(ctx)
			if !ok {
				return
			}
			s.handle(ctx, msg)
		}
	}()
}

func (s *Service) handle(ctx context.Context, msg bus.InboundMessage) {
	key := sessions.BuildSessionKey(msg.Channel, sessions.PeerKind(msg.PeerKind), msg.ChatID)
	if msg.PeerKind == "" {
		key = sessions.BuildSessionKey(msg.Channel, sessions.PeerDirect, msg.ChatID)
	}

	s.sessions.GetOrCreate(key)
	s.sessions.AddMessage(key, sessions.Message{Role: "user", Content: msg.Content, Timestamp: time.Now()})

	result, err := s.runner.Run(ctx, Request{
		SessionKey: key,
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		Message:    msg.Content,
	})
	if err != nil {
		slog.Error("agent.run_failed", "session", key, "error", err)
		return
	}

	s.sessions.AddMessage(key, sessions.Message{Role: "assistant", Content: result.Reply, Timestamp: time.Now()})
	if err := s.sessions.Save(key); err != nil {
		slog.Warn("agent.session_save_failed", "session", key, "error", err)
	}

	s.router.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: result.Reply,
	})
}
