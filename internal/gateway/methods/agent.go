package methods

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/agent"
	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/internal/sessions"
	"github.com/nextlevelbuilder/botgate/internal/store"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// AgentMethods exposes agent invocation over WebSocket RPC. Runs may be
// long-lived; the router already dispatches each request on its own
// goroutine, so a slow run never blocks other clients.
type AgentMethods struct {
	runner   agent.Runner
	sessions store.SessionStore
}

func NewAgentMethods(runner agent.Runner, sess store.SessionStore) *AgentMethods {
	return &AgentMethods{runner: runner, sessions: sess}
}

// Register registers the agent RPC method.
func (m *AgentMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodAgent, m.handleAgent)
}

func (m *AgentMethods) handleAgent(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Message    string `json:"message"`
		SessionKey string `json:"sessionKey"`
		Channel    string `json:"channel"`
		ChatID     string `json:"chatId"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Message == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "message is required"))
		return
	}

	sessionKey := params.SessionKey
	if sessionKey == "" {
		sessionKey = "gateway:" + client.ID()
	}

	m.sessions.GetOrCreate(sessionKey)
	m.sessions.AddMessage(sessionKey, sessions.Message{
		Role:      "user",
		Content:   params.Message,
		Timestamp: time.Now(),
	})

	result, err := m.runner.Run(ctx, agent.Request{
		SessionKey: sessionKey,
		Channel:    params.Channel,
		ChatID:     params.ChatID,
		Message:    params.Message,
	})
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}

	m.sessions.AddMessage(sessionKey, sessions.Message{
		Role:      "assistant",
		Content:   result.Reply,
		Timestamp: time.Now(),
	})
	if err := m.sessions.Save(sessionKey); err != nil {
		slog.Warn("agent.session_save_failed", "key", sessionKey, "error", err)
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"reply":      result.Reply,
		"sessionKey": sessionKey,
	}))
}
