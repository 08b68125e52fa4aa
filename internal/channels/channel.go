// Package channels provides the channel abstraction layer for multi-platform
// messaging. Channels connect external platforms (Telegram, Discord, etc.) to
// the agent runtime via the message bus; inbound DMs are gated through the dm
// security service before anything reaches the bus.
package channels

import (
	"context"

	"github.com/nextlevelbuilder/botgate/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram", "discord").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides shared functionality for all channel implementations.
// Implementations embed this struct.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running bool
}

func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// HandleMessage creates an InboundMessage and publishes it to the bus.
// This is the standard way for channels to forward accepted messages.
func (c *BaseChannel) HandleMessage(senderID, userName, chatID, content string, metadata map[string]string, peerKind string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		UserName: userName,
		ChatID:   chatID,
		Content:  content,
		PeerKind: peerKind,
		Metadata: metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
