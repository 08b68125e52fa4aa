package protocol

// RPC method name constants.

// System
const (
	MethodConnect = "connect"
	MethodHealth  = "health"
	MethodStatus  = "status"
)

// Sessions
const (
	MethodSessionList  = "session.list"
	MethodSessionGet   = "session.get"
	MethodSessionClear = "session.clear"
)

// Channels and outbound delivery
const (
	MethodChannelList   = "channel.list"
	MethodChannelStatus = "channel.status"
	MethodSend          = "send"
)

// Agent and skills
const (
	MethodAgent       = "agent"
	MethodSkillList   = "skill.list"
	MethodSkillInvoke = "skill.invoke"
)

// DM security administration
const (
	MethodPairingList     = "pairing.list"
	MethodPairingApprove  = "pairing.approve"
	MethodPairingReject   = "pairing.reject"
	MethodAllowlistList   = "allowlist.list"
	MethodAllowlistAdd    = "allowlist.add"
	MethodAllowlistRemove = "allowlist.remove"
	MethodPolicyGet       = "policy.get"
	MethodPolicySet       = "policy.set"
)
