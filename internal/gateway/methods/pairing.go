package methods

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nextlevelbuilder/botgate/internal/dm"
	"github.com/nextlevelbuilder/botgate/internal/gateway"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// DMMethods exposes the pairing/allowlist/policy administration surface.
type DMMethods struct {
	security *dm.Security
}

func NewDMMethods(security *dm.Security) *DMMethods {
	return &DMMethods{security: security}
}

// Register registers all DM security RPC methods.
func (m *DMMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodPairingList, m.handlePairingList)
	router.Register(protocol.MethodPairingApprove, m.handlePairingApprove)
	router.Register(protocol.MethodPairingReject, m.handlePairingReject)
	router.Register(protocol.MethodAllowlistList, m.handleAllowlistList)
	router.Register(protocol.MethodAllowlistAdd, m.handleAllowlistAdd)
	router.Register(protocol.MethodAllowlistRemove, m.handleAllowlistRemove)
	router.Register(protocol.MethodPolicyGet, m.handlePolicyGet)
	router.Register(protocol.MethodPolicySet, m.handlePolicySet)
}

func (m *DMMethods) handlePairingList(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"pending": m.security.PendingPairings(),
	}))
}

func (m *DMMethods) handlePairingApprove(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Code       string `json:"code"`
		ApprovedBy string `json:"approvedBy"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Code == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "code is required"))
		return
	}
	if params.ApprovedBy == "" {
		params.ApprovedBy = "operator"
	}

	entry, err := m.security.ApprovePairing(ctx, params.Code, params.ApprovedBy)
	if err != nil {
		if errors.Is(err, dm.ErrPairingNotFound) {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrPairingNotFound,
				"pairing code not found or expired"))
			return
		}
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, entry))
}

func (m *DMMethods) handlePairingReject(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Code string `json:"code"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Code == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "code is required"))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"removed": m.security.RejectPairing(params.Code),
	}))
}

func (m *DMMethods) handleAllowlistList(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"entries": m.security.Allowlist(params.Channel),
	}))
}

func (m *DMMethods) handleAllowlistAdd(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel  string `json:"channel"`
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		AddedBy  string `json:"addedBy"`
		Note     string `json:"note"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Channel == "" || params.UserID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest,
			"channel and userId are required"))
		return
	}
	if params.AddedBy == "" {
		params.AddedBy = "operator"
	}

	entry := m.security.AddToAllowlist(ctx, params.Channel, params.UserID, params.UserName, params.AddedBy, params.Note)
	client.SendResponse(protocol.NewOKResponse(req.ID, entry))
}

func (m *DMMethods) handleAllowlistRemove(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
		UserID  string `json:"userId"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Channel == "" || params.UserID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest,
			"channel and userId are required"))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"removed": m.security.RemoveFromAllowlist(ctx, params.Channel, params.UserID),
	}))
}

func (m *DMMethods) handlePolicyGet(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"channel": params.Channel,
		"policy":  string(m.security.GetPolicy(params.Channel)),
	}))
}

func (m *DMMethods) handlePolicySet(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Channel string `json:"channel"`
		Policy  string `json:"policy"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	policy, err := dm.ParsePolicy(params.Policy)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, err.Error()))
		return
	}

	if params.Channel == "" {
		m.security.SetDefaultPolicy(policy)
	} else {
		m.security.SetPolicy(params.Channel, policy)
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"channel": params.Channel,
		"policy":  string(policy),
	}))
}
