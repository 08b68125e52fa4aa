package methods

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/internal/store"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// SessionMethods exposes conversation sessions over WebSocket RPC.
type SessionMethods struct {
	store store.SessionStore
}

func NewSessionMethods(s store.SessionStore) *SessionMethods {
	return &SessionMethods{store: s}
}

// Register registers all session RPC methods.
func (m *SessionMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodSessionList, m.handleList)
	router.Register(protocol.MethodSessionGet, m.handleGet)
	router.Register(protocol.MethodSessionClear, m.handleClear)
}

func (m *SessionMethods) handleList(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
		Limit   int    `json:"limit"`
		Offset  int    `json:"offset"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	result := m.store.ListPaged(store.SessionListOpts{
		Channel: params.Channel,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	client.SendResponse(protocol.NewOKResponse(req.ID, result))
}

func (m *SessionMethods) handleGet(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Key string `json:"key"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Key == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "key is required"))
		return
	}

	sess := m.store.Get(params.Key)
	if sess == nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, "session not found"))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, sess))
}

func (m *SessionMethods) handleClear(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Key string `json:"key"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Key == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "key is required"))
		return
	}

	m.store.Reset(params.Key)
	if err := m.store.Save(params.Key); err != nil {
		slog.Warn("sessions.clear_persist_failed", "key", params.Key, "error", err)
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"cleared": params.Key,
	}))
}
