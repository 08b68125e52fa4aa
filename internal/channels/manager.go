package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// Manager owns the registered channel adapters and routes outbound messages
// to them.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}
}

// RegisterChannel adds a channel adapter, replacing any previous registration
// under the same name.
func (m *Manager) RegisterChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	slog.Info("channels.registered", "channel", ch.Name())
}

// StartAll starts every registered channel concurrently. A single failed
// adapter fails the whole start so misconfiguration surfaces at boot.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	list := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		list = append(list, ch)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range list {
		g.Go(func() error {
			if err := ch.Start(gctx); err != nil {
				return fmt.Errorf("start channel %s: %w", ch.Name(), err)
			}
			slog.Info("channels.started", "channel", ch.Name())
			m.bus.Broadcast(bus.Event{Name: protocol.EventChannelUp, Payload: map[string]string{
				"channel": ch.Name(),
			}})
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every running channel, best effort.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			slog.Warn("channels.stop_failed", "channel", name, "error", err)
		} else {
			slog.Info("channels.stopped", "channel", name)
			m.bus.Broadcast(bus.Event{Name: protocol.EventChannelDown, Payload: map[string]string{
				"channel": name,
			}})
		}
	}
}

// GetStatus reports per-channel run state.
func (m *Manager) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]interface{}, len(m.channels))
	for name, ch := range m.channels {
		status[name] = map[string]interface{}{
			"enabled": true,
			"running": ch.IsRunning(),
		}
	}
	return status
}

// List returns registered channel names.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// IsRunning reports whether a specific channel exists and is running.
func (m *Manager) IsRunning(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ok && ch.IsRunning()
}

// SendToChannel delivers an outbound message through a named channel.
func (m *Manager) SendToChannel(ctx context.Context, channelName string, msg bus.OutboundMessage) error {
	m.mu.RLock()
	ch, ok := m.channels[channelName]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("channel %s not found", channelName)
	}
	if !ch.IsRunning() {
		return fmt.Errorf("channel %s not running", channelName)
	}
	return ch.Send(ctx, msg)
}

// StartDeliveryLoop consumes outbound bus messages and hands them to the
// owning adapter until ctx is done.
func (m *Manager) StartDeliveryLoop(ctx context.Context) {
	go func() {
		for {
			msg, ok := m.bus.ConsumeOutbound(ctx)
			if !ok {
				return
			}
			if err := m.SendToChannel(ctx, msg.Channel, msg); err != nil {
				slog.Warn("channels.delivery_failed", "channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
			}
		}
	}()
}
