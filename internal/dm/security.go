package dm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/store"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// Decision is the outcome of an access check. Always a value, never an
// error: access denial is a normal result.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Security decides whether an inbound DM may pass and runs the
// pairing/allowlist trust-escalation flow. The allowlist is held in memory
// and written through to the backing store on every mutation; a storage
// failure degrades to in-memory-only with a warning event rather than
// blocking approvals.
type Security struct {
	store  store.AllowlistStore
	events bus.EventPublisher // may be nil

	policyMu      sync.RWMutex
	defaultPolicy Policy
	policies      map[string]Policy

	alMu      sync.RWMutex
	allowlist map[string]store.AllowlistEntry // key: channel|userId

	registry *PairingRegistry
	now      func() time.Time
}

func NewSecurity(st store.AllowlistStore, defaultPolicy Policy, events bus.EventPublisher) *Security {
	if defaultPolicy == "" {
		defaultPolicy = DefaultPolicy
	}
	return &Security{
		store:         st,
		events:        events,
		defaultPolicy: defaultPolicy,
		policies:      make(map[string]Policy),
		allowlist:     make(map[string]store.AllowlistEntry),
		registry:      NewPairingRegistry(),
		now:           time.Now,
	}
}

// Load pulls the allowlist from the backing store. Best-effort: a failed
// load logs and starts empty.
func (s *Security) Load(ctx context.Context) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		slog.Warn("dm.allowlist_load_failed", "error", err)
		return
	}

	s.alMu.Lock()
	defer s.alMu.Unlock()
	s.allowlist = make(map[string]store.AllowlistEntry, len(entries))
	for _, e := range entries {
		s.allowlist[pairKey(e.Channel, e.UserID)] = e
	}
	slog.Info("dm.allowlist_loaded", "entries", len(entries))
}

// StartReaper runs the background pairing-code sweep until ctx is done.
func (s *Security) StartReaper(ctx context.Context) {
	s.registry.StartReaper(ctx)
}

// CheckAccess answers "can this sender message this channel". Pure read, no
// side effects; callers may invoke it at arbitrary frequency.
func (s *Security) CheckAccess(channel, userID string) Decision {
	switch s.GetPolicy(channel) {
	case PolicyOpen:
		return Decision{Allowed: true, Reason: "open policy"}
	case PolicyClosed:
		return Decision{Allowed: false, Reason: "closed policy"}
	case PolicyAllowlist:
		if s.isAllowed(channel, userID) {
			return Decision{Allowed: true, Reason: "on allowlist"}
		}
		return Decision{Allowed: false, Reason: "not on allowlist"}
	default: // PolicyPairing
		if s.isAllowed(channel, userID) {
			return Decision{Allowed: true, Reason: "paired"}
		}
		return Decision{Allowed: false, Reason: "pairing required"}
	}
}

// GeneratePairingCode issues a fresh code for (channel, userId), superseding
// any earlier live code for the same pair, and notifies operators.
func (s *Security) GeneratePairingCode(channel, userID, userName string) (string, error) {
	code, err := s.registry.Generate(channel, userID, userName)
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}

	slog.Info("dm.pairing_code_issued", "channel", channel, "user_id", userID)
	s.emit(protocol.EventPairingRequested, map[string]interface{}{
		"channel":  channel,
		"userId":   userID,
		"userName": userName,
	})
	return code, nil
}

// ApprovePairing redeems a code: the sender is promoted into the allowlist
// and the code is consumed. Unknown and expired codes fail identically with
// ErrPairingNotFound.
func (s *Security) ApprovePairing(ctx context.Context, code, approvedBy string) (*store.AllowlistEntry, error) {
	pc, err := s.registry.Take(code)
	if err != nil {
		return nil, err
	}

	entry := store.AllowlistEntry{
		Channel:  pc.Channel,
		UserID:   pc.UserID,
		UserName: pc.UserName,
		AddedAt:  s.now(),
		AddedBy:  approvedBy,
		Note:     "via pairing",
	}
	s.putEntry(ctx, entry)

	slog.Info("dm.pairing_approved", "channel", pc.Channel, "user_id", pc.UserID, "approved_by", approvedBy)
	s.emit(protocol.EventPairingResolved, map[string]interface{}{
		"channel":  pc.Channel,
		"userId":   pc.UserID,
		"approved": true,
	})
	return &entry, nil
}

// RejectPairing drops a pending code without touching the allowlist.
// Returns whether anything was removed.
func (s *Security) RejectPairing(code string) bool {
	removed := s.registry.Reject(code)
	if removed {
		slog.Info("dm.pairing_rejected")
		s.emit(protocol.EventPairingResolved, map[string]interface{}{"approved": false})
	}
	return removed
}

// AddToAllowlist is the direct administrative mutation path.
func (s *Security) AddToAllowlist(ctx context.Context, channel, userID, userName, addedBy, note string) store.AllowlistEntry {
	entry := store.AllowlistEntry{
		Channel:  channel,
		UserID:   userID,
		UserName: userName,
		AddedAt:  s.now(),
		AddedBy:  addedBy,
		Note:     note,
	}
	s.putEntry(ctx, entry)
	return entry
}

// RemoveFromAllowlist deletes an entry; returns whether it existed.
func (s *Security) RemoveFromAllowlist(ctx context.Context, channel, userID string) bool {
	key := pairKey(channel, userID)

	s.alMu.Lock()
	_, existed := s.allowlist[key]
	delete(s.allowlist, key)
	s.alMu.Unlock()

	if !existed {
		return false
	}

	if _, err := s.store.Delete(ctx, channel, userID); err != nil {
		s.storageWarning("delete", channel, userID, err)
	}
	s.emit(protocol.EventAllowlistChanged, map[string]interface{}{
		"channel": channel,
		"userId":  userID,
		"action":  "removed",
	})
	return true
}

// PendingPairings returns live, unexpired pairing requests.
func (s *Security) PendingPairings() []PairingCode {
	return s.registry.Pending()
}

// Allowlist returns entries for one channel, or all entries when channel is
// empty.
func (s *Security) Allowlist(channel string) []store.AllowlistEntry {
	s.alMu.RLock()
	defer s.alMu.RUnlock()

	result := make([]store.AllowlistEntry, 0, len(s.allowlist))
	for _, e := range s.allowlist {
		if channel != "" && e.Channel != channel {
			continue
		}
		result = append(result, e)
	}
	return result
}

// GetPolicy resolves the effective policy for a channel.
func (s *Security) GetPolicy(channel string) Policy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	if p, ok := s.policies[channel]; ok {
		return p
	}
	return s.defaultPolicy
}

// SetPolicy overrides the policy for a channel, effective for every
// subsequent CheckAccess call.
func (s *Security) SetPolicy(channel string, p Policy) {
	s.policyMu.Lock()
	s.policies[channel] = p
	s.policyMu.Unlock()
	slog.Info("dm.policy_changed", "channel", channel, "policy", string(p))
}

// SetDefaultPolicy replaces the fallback policy (hot reload path).
func (s *Security) SetDefaultPolicy(p Policy) {
	s.policyMu.Lock()
	s.defaultPolicy = p
	s.policyMu.Unlock()
}

// PairingMessage formats the instruction text delivered to a sender who
// needs to pair. Pure formatting, no state change.
func PairingMessage(code, channel, userID string) string {
	return fmt.Sprintf(
		"botgate: access not configured.\n\nYour %s user id: %s\n\nPairing code: %s\n\nAsk the bot owner to approve with:\n  botgate pairing approve %s",
		channel, userID, code, code)
}

func (s *Security) isAllowed(channel, userID string) bool {
	s.alMu.RLock()
	defer s.alMu.RUnlock()
	_, ok := s.allowlist[pairKey(channel, userID)]
	return ok
}

// putEntry mutates in memory first, then writes through. A storage failure
// keeps the in-memory entry so approvals survive storage outages.
func (s *Security) putEntry(ctx context.Context, entry store.AllowlistEntry) {
	s.alMu.Lock()
	s.allowlist[pairKey(entry.Channel, entry.UserID)] = entry
	s.alMu.Unlock()

	if err := s.store.Put(ctx, entry); err != nil {
		s.storageWarning("put", entry.Channel, entry.UserID, err)
	}
	s.emit(protocol.EventAllowlistChanged, map[string]interface{}{
		"channel": entry.Channel,
		"userId":  entry.UserID,
		"action":  "added",
	})
}

func (s *Security) storageWarning(op, channel, userID string, err error) {
	slog.Warn("dm.allowlist_persist_failed", "op", op, "channel", channel, "user_id", userID, "error", err)
	s.emit(protocol.EventStorageWarning, map[string]interface{}{
		"store": "allowlist",
		"op":    op,
		"error": err.Error(),
	})
}

func (s *Security) emit(name string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(bus.Event{Name: name, Payload: payload})
}
