package methods

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/botgate/internal/channels"
	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// CoreMethods handles the connect handshake and health/status queries.
type CoreMethods struct {
	server   *gateway.Server
	channels *channels.Manager
}

func NewCoreMethods(server *gateway.Server, chans *channels.Manager) *CoreMethods {
	return &CoreMethods{server: server, channels: chans}
}

// Register registers the system RPC methods.
func (m *CoreMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodConnect, m.handleConnect)
	router.Register(protocol.MethodHealth, m.handleHealth)
	router.Register(protocol.MethodStatus, m.handleStatus)
}

// handleConnect performs the capability handshake. Until it succeeds the
// connection stays in Connecting and every other method is rejected.
func (m *CoreMethods) handleConnect(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		MinProtocol int    `json:"minProtocol"`
		Token       string `json:"token"`
		ClientName  string `json:"clientName"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	if params.MinProtocol > protocol.ProtocolVersion {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrProtocol,
			fmt.Sprintf("client requires protocol >= %d, server speaks %d", params.MinProtocol, protocol.ProtocolVersion)))
		return
	}

	if token := m.server.Config().GatewaySnapshot().Token; token != "" && params.Token != token {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnauthorized, "invalid gateway token"))
		client.CloseWithReason("unauthorized")
		return
	}

	client.SetOpen()
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"protocol": protocol.ProtocolVersion,
		"clientId": client.ID(),
		"methods":  m.server.Router().Methods(),
	}))
}

// handleHealth is a pure read over in-memory counters; it always succeeds.
func (m *CoreMethods) handleHealth(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"status":   "ok",
		"uptimeMs": m.server.Uptime().Milliseconds(),
		"clients":  m.server.ClientCount(),
	}))
}

func (m *CoreMethods) handleStatus(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	result := map[string]interface{}{
		"running":  m.server.IsRunning(),
		"uptimeMs": m.server.Uptime().Milliseconds(),
		"clients":  m.server.ClientCount(),
		"protocol": protocol.ProtocolVersion,
		"methods":  m.server.Router().Methods(),
		"config":   m.server.Config().MaskedCopy(),
	}
	if m.channels != nil {
		result["channels"] = m.channels.GetStatus()
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, result))
}
