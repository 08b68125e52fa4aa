package channels

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/dm"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

const pairingDebounceTime = 60 * time.Second

// DMGate is the adapter-side wrapper around the dm security service. It runs
// the access check for every inbound DM and, under pairing policy, produces
// the debounced pairing instruction to send back to the denied sender.
type DMGate struct {
	security *dm.Security
	events   bus.EventPublisher // may be nil
	debounce sync.Map           // channel|senderID → time.Time of last pairing reply
}

func NewDMGate(security *dm.Security, events bus.EventPublisher) *DMGate {
	return &DMGate{security: security, events: events}
}

// Admit decides whether an inbound DM may pass. When denied under pairing
// policy it returns a non-empty reply the adapter should deliver to the
// sender (at most once per sender per debounce window).
func (g *DMGate) Admit(channel, senderID, userName string) (allowed bool, reply string) {
	decision := g.security.CheckAccess(channel, senderID)
	if decision.Allowed {
		return true, ""
	}

	slog.Debug("dm.blocked", "channel", channel, "sender_id", senderID, "reason", decision.Reason)
	if g.events != nil {
		g.events.Broadcast(bus.Event{Name: protocol.EventDMBlocked, Payload: map[string]string{
			"channel":  channel,
			"senderId": senderID,
			"reason":   decision.Reason,
		}})
	}

	if g.security.GetPolicy(channel) != dm.PolicyPairing {
		return false, ""
	}

	key := channel + "|" + senderID
	if last, ok := g.debounce.Load(key); ok {
		if time.Since(last.(time.Time)) < pairingDebounceTime {
			return false, ""
		}
	}

	code, err := g.security.GeneratePairingCode(channel, senderID, userName)
	if err != nil {
		slog.Warn("dm.pairing_code_failed", "channel", channel, "sender_id", senderID, "error", err)
		return false, ""
	}
	g.debounce.Store(key, time.Now())

	return false, dm.PairingMessage(code, channel, senderID)
}
