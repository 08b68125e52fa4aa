package dm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/store"
)

// fakeStore is an in-memory AllowlistStore with switchable failure mode.
type fakeStore struct {
	entries map[string]store.AllowlistEntry
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]store.AllowlistEntry)}
}

func (f *fakeStore) Load(ctx context.Context) ([]store.AllowlistEntry, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	var out []store.AllowlistEntry
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) Put(ctx context.Context, entry store.AllowlistEntry) error {
	if f.fail {
		return errors.New("store down")
	}
	f.entries[entry.Channel+"|"+entry.UserID] = entry
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, channel, userID string) (bool, error) {
	if f.fail {
		return false, errors.New("store down")
	}
	key := channel + "|" + userID
	_, ok := f.entries[key]
	delete(f.entries, key)
	return ok, nil
}

func (f *fakeStore) Close() error { return nil }

func newTestSecurity(t *testing.T, policy Policy) (*Security, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	return NewSecurity(fs, policy, nil), fs
}

func TestClosedPolicyDeniesEveryone(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyClosed)
	s.AddToAllowlist(context.Background(), "telegram", "u1", "", "admin", "")

	d := s.CheckAccess("telegram", "u1")
	if d.Allowed {
		t.Errorf("closed policy must deny even allowlisted senders, got %+v", d)
	}
}

func TestOpenPolicyAllowsEveryone(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyOpen)
	d := s.CheckAccess("telegram", "stranger")
	if !d.Allowed {
		t.Errorf("open policy must allow, got %+v", d)
	}
}

func TestAllowlistRoundTrip(t *testing.T) {
	for _, policy := range []Policy{PolicyAllowlist, PolicyPairing} {
		s, _ := newTestSecurity(t, policy)
		ctx := context.Background()

		if d := s.CheckAccess("telegram", "u1"); d.Allowed {
			t.Errorf("policy %s: unknown sender allowed: %+v", policy, d)
		}

		s.AddToAllowlist(ctx, "telegram", "u1", "alice", "admin", "")
		if d := s.CheckAccess("telegram", "u1"); !d.Allowed {
			t.Errorf("policy %s: allowlisted sender denied: %+v", policy, d)
		}

		if !s.RemoveFromAllowlist(ctx, "telegram", "u1") {
			t.Errorf("policy %s: remove reported nothing removed", policy)
		}
		if d := s.CheckAccess("telegram", "u1"); d.Allowed {
			t.Errorf("policy %s: removed sender still allowed: %+v", policy, d)
		}
	}
}

func TestRemoveFromAllowlistMissing(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyAllowlist)
	if s.RemoveFromAllowlist(context.Background(), "telegram", "ghost") {
		t.Error("removing a missing entry should return false")
	}
}

func TestPairingLifecycle(t *testing.T) {
	s, fs := newTestSecurity(t, PolicyPairing)
	ctx := context.Background()

	code, err := s.GeneratePairingCode("telegram", "u1", "alice")
	if err != nil {
		t.Fatal(err)
	}

	entry, err := s.ApprovePairing(ctx, code, "admin")
	if err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if entry.Channel != "telegram" || entry.UserID != "u1" || entry.AddedBy != "admin" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if _, err := s.ApprovePairing(ctx, code, "admin"); !errors.Is(err, ErrPairingNotFound) {
		t.Errorf("second approve: got %v, want ErrPairingNotFound", err)
	}

	if d := s.CheckAccess("telegram", "u1"); !d.Allowed {
		t.Errorf("approved sender denied: %+v", d)
	}
	if _, ok := fs.entries["telegram|u1"]; !ok {
		t.Error("approval was not written through to the store")
	}
}

func TestSupersededCodeFailsApproval(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyPairing)
	ctx := context.Background()

	first, _ := s.GeneratePairingCode("telegram", "u1", "")
	if _, err := s.GeneratePairingCode("telegram", "u1", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ApprovePairing(ctx, first, "admin"); !errors.Is(err, ErrPairingNotFound) {
		t.Errorf("superseded code approve: got %v, want ErrPairingNotFound", err)
	}
}

func TestExpiredCodeFailsLikeUnknown(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyPairing)
	now := time.Now()
	s.registry.now = func() time.Time { return now }

	code, _ := s.GeneratePairingCode("telegram", "u1", "")
	now = now.Add(PairingTTL + time.Minute)

	_, errExpired := s.ApprovePairing(context.Background(), code, "admin")
	_, errUnknown := s.ApprovePairing(context.Background(), "NEVERWAS", "admin")
	if !errors.Is(errExpired, ErrPairingNotFound) || !errors.Is(errUnknown, ErrPairingNotFound) {
		t.Errorf("expired=%v unknown=%v, both should be ErrPairingNotFound", errExpired, errUnknown)
	}
}

func TestRejectPairing(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyPairing)
	code, _ := s.GeneratePairingCode("telegram", "u1", "")

	if !s.RejectPairing(code) {
		t.Error("reject of live code should return true")
	}
	if s.RejectPairing(code) {
		t.Error("double reject should return false")
	}
	if d := s.CheckAccess("telegram", "u1"); d.Allowed {
		t.Errorf("rejected sender allowed: %+v", d)
	}
}

func TestApprovalSurvivesStorageOutage(t *testing.T) {
	s, fs := newTestSecurity(t, PolicyPairing)
	ctx := context.Background()

	code, _ := s.GeneratePairingCode("telegram", "u1", "")
	fs.fail = true

	if _, err := s.ApprovePairing(ctx, code, "admin"); err != nil {
		t.Fatalf("approve must succeed in-memory despite storage outage: %v", err)
	}
	if d := s.CheckAccess("telegram", "u1"); !d.Allowed {
		t.Errorf("in-memory approval lost: %+v", d)
	}
}

func TestSetPolicyTakesEffectImmediately(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyOpen)

	if d := s.CheckAccess("discord", "u1"); !d.Allowed {
		t.Fatalf("precondition failed: %+v", d)
	}
	s.SetPolicy("discord", PolicyClosed)
	if d := s.CheckAccess("discord", "u1"); d.Allowed {
		t.Errorf("policy change not effective: %+v", d)
	}
	if got := s.GetPolicy("discord"); got != PolicyClosed {
		t.Errorf("GetPolicy = %s, want closed", got)
	}
	// Other channels keep the default.
	if d := s.CheckAccess("telegram", "u1"); !d.Allowed {
		t.Errorf("unrelated channel affected: %+v", d)
	}
}

func TestPendingAndAllowlistSnapshots(t *testing.T) {
	s, _ := newTestSecurity(t, PolicyPairing)
	ctx := context.Background()

	s.GeneratePairingCode("telegram", "u1", "alice")
	s.AddToAllowlist(ctx, "telegram", "u2", "bob", "admin", "")
	s.AddToAllowlist(ctx, "discord", "u3", "eve", "admin", "")

	if got := len(s.PendingPairings()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
	if got := len(s.Allowlist("")); got != 2 {
		t.Errorf("full allowlist = %d, want 2", got)
	}
	if got := len(s.Allowlist("discord")); got != 1 {
		t.Errorf("discord allowlist = %d, want 1", got)
	}
}

func TestLoadRestoresAllowlist(t *testing.T) {
	fs := newFakeStore()
	fs.entries["telegram|u1"] = store.AllowlistEntry{Channel: "telegram", UserID: "u1"}

	s := NewSecurity(fs, PolicyAllowlist, nil)
	s.Load(context.Background())

	if d := s.CheckAccess("telegram", "u1"); !d.Allowed {
		t.Errorf("loaded entry not honored: %+v", d)
	}
}

func TestPairingMessageEmbedsCode(t *testing.T) {
	msg := PairingMessage("ABCD2345", "telegram", "u1")
	if !strings.Contains(msg, "ABCD2345") || !strings.Contains(msg, "telegram") {
		t.Errorf("pairing message missing code or channel: %q", msg)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, valid := range []string{"open", "pairing", "allowlist", "closed"} {
		if _, err := ParsePolicy(valid); err != nil {
			t.Errorf("ParsePolicy(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParsePolicy("disabled"); err == nil {
		t.Error("ParsePolicy should reject unknown values")
	}
}
