package methods

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/channels"
	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// ChannelMethods exposes channel adapter state and outbound delivery.
type ChannelMethods struct {
	manager *channels.Manager
}

func NewChannelMethods(manager *channels.Manager) *ChannelMethods {
	return &ChannelMethods{manager: manager}
}

// Register registers all channel RPC methods.
func (m *ChannelMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodChannelList, m.handleList)
	router.Register(protocol.MethodChannelStatus, m.handleStatus)
	router.Register(protocol.MethodSend, m.handleSend)
}

func (m *ChannelMethods) handleList(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"channels": m.manager.List(),
	}))
}

func (m *ChannelMethods) handleStatus(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, m.manager.GetStatus()))
}

// handleSend routes an outbound message through a channel adapter. The
// channel must exist and be connected, else CHANNEL_UNAVAILABLE.
func (m *ChannelMethods) handleSend(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Channel == "" || params.ChatID == "" || params.Content == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest,
			"channel, chatId, and content are required"))
		return
	}

	err := m.manager.SendToChannel(ctx, params.Channel, bus.OutboundMessage{
		Channel: params.Channel,
		ChatID:  params.ChatID,
		Content: params.Content,
	})
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrChannelUnavailable, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"delivered": true,
		"channel":   params.Channel,
		"chatId":    params.ChatID,
	}))
}
