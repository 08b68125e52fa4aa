package protocol

// WebSocket event names pushed from server to client.
const (
	EventHealth   = "health"
	EventPresence = "presence"
	EventShutdown = "shutdown"

	// DM security events (operator visibility).
	EventPairingRequested = "pairing.requested"
	EventPairingResolved  = "pairing.resolved"
	EventAllowlistChanged = "allowlist.changed"
	EventDMBlocked        = "dm.blocked"
	EventStorageWarning   = "storage.warning"

	// Channel lifecycle events.
	EventChannelUp   = "channel.up"
	EventChannelDown = "channel.down"
)
