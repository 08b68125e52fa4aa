package channels

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/botgate/internal/dm"
	"github.com/nextlevelbuilder/botgate/internal/store"
)

// memStore is a throwaway in-memory allowlist backing for gate tests.
type memStore struct {
	entries map[string]store.AllowlistEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]store.AllowlistEntry)}
}

func (m *memStore) Load(ctx context.Context) ([]store.AllowlistEntry, error) { return nil, nil }

func (m *memStore) Put(ctx context.Context, e store.AllowlistEntry) error {
	m.entries[e.Channel+"|"+e.UserID] = e
	return nil
}

func (m *memStore) Delete(ctx context.Context, channel, userID string) (bool, error) {
	key := channel + "|" + userID
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *memStore) Close() error { return nil }

func newGate(policy dm.Policy) (*DMGate, *dm.Security) {
	sec := dm.NewSecurity(newMemStore(), policy, nil)
	return NewDMGate(sec, nil), sec
}

func TestAdmitOpenPolicy(t *testing.T) {
	gate, _ := newGate(dm.PolicyOpen)

	allowed, reply := gate.Admit("telegram", "stranger", "")
	if !allowed {
		t.Fatal("open policy must admit everyone")
	}
	if reply != "" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestAdmitClosedPolicyIsSilent(t *testing.T) {
	gate, _ := newGate(dm.PolicyClosed)

	allowed, reply := gate.Admit("telegram", "stranger", "")
	if allowed {
		t.Fatal("closed policy must deny")
	}
	if reply != "" {
		t.Fatalf("closed policy must not generate a pairing reply, got %q", reply)
	}
}

func TestAdmitPairingIssuesCode(t *testing.T) {
	gate, sec := newGate(dm.PolicyPairing)

	allowed, reply := gate.Admit("telegram", "u1", "alice")
	if allowed {
		t.Fatal("unpaired sender must be denied")
	}
	if !strings.Contains(reply, "Pairing code:") {
		t.Fatalf("expected pairing instructions, got %q", reply)
	}

	pending := sec.PendingPairings()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending pairing, got %d", len(pending))
	}
	if !strings.Contains(reply, pending[0].Code) {
		t.Fatal("reply does not carry the issued code")
	}
}

func TestAdmitPairingDebounce(t *testing.T) {
	gate, _ := newGate(dm.PolicyPairing)

	_, first := gate.Admit("telegram", "u1", "alice")
	if first == "" {
		t.Fatal("expected pairing reply on first contact")
	}

	// Second contact inside the debounce window stays quiet.
	allowed, second := gate.Admit("telegram", "u1", "alice")
	if allowed {
		t.Fatal("sender must stay denied")
	}
	if second != "" {
		t.Fatalf("expected debounced silence, got %q", second)
	}
}

func TestAdmitAfterApproval(t *testing.T) {
	gate, sec := newGate(dm.PolicyPairing)

	gate.Admit("telegram", "u1", "alice")
	pending := sec.PendingPairings()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending pairing, got %d", len(pending))
	}
	if _, err := sec.ApprovePairing(context.Background(), pending[0].Code, "test"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	allowed, _ := gate.Admit("telegram", "u1", "alice")
	if !allowed {
		t.Fatal("approved sender must be admitted")
	}
}

func TestAdmitAllowlistPolicy(t *testing.T) {
	gate, sec := newGate(dm.PolicyAllowlist)

	if allowed, reply := gate.Admit("discord", "u9", ""); allowed || reply != "" {
		t.Fatalf("unlisted sender: allowed=%v reply=%q", allowed, reply)
	}

	sec.AddToAllowlist(context.Background(), "discord", "u9", "", "test", "")
	if allowed, _ := gate.Admit("discord", "u9", ""); !allowed {
		t.Fatal("listed sender must be admitted")
	}
}
