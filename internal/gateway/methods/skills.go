package methods

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/internal/skills"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// SkillMethods exposes the skill registry over WebSocket RPC.
type SkillMethods struct {
	registry *skills.Registry
}

func NewSkillMethods(registry *skills.Registry) *SkillMethods {
	return &SkillMethods{registry: registry}
}

// Register registers all skill RPC methods.
func (m *SkillMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodSkillList, m.handleList)
	router.Register(protocol.MethodSkillInvoke, m.handleInvoke)
}

func (m *SkillMethods) handleList(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"skills": m.registry.List(),
	}))
}

// handleInvoke runs a registered skill. Skill failures are wrapped into the
// response error payload, never propagated raw.
func (m *SkillMethods) handleInvoke(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		ID     string          `json:"id"`
		Params json.RawMessage `json:"params"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.ID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "id is required"))
		return
	}

	result, err := m.registry.Invoke(ctx, params.ID, params.Params)
	if err != nil {
		if errors.Is(err, skills.ErrUnknownSkill) {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnknownSkill, err.Error()))
			return
		}
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"skill":  params.ID,
		"result": result,
	}))
}
