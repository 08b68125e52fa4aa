package dm

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Pairing code TTL and reaper cadence. Codes are short-lived to limit the
// replay window; the reaper keeps PendingPairings free of expired entries
// even when nothing touches them.
const (
	PairingTTL     = 10 * time.Minute
	reaperInterval = 60 * time.Second
)

// codeAlphabet omits 0/O/1/I so codes survive being read aloud.
const (
	codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 8
)

// ErrPairingNotFound covers unknown, already-resolved and expired codes; an
// expired code is indistinguishable from a never-issued one.
var ErrPairingNotFound = errors.New("pairing code not found or expired")

// PairingCode is one outstanding pairing request. Never persisted; codes die
// with the process.
type PairingCode struct {
	Code      string    `json:"code"`
	Channel   string    `json:"channel"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PairingRegistry is the in-memory table of outstanding pairing codes.
// At most one live code exists per (channel, userId); generating a new one
// supersedes the old. Safe for concurrent use; approve/reject/generate on the
// same code resolve atomically under one mutex, last caller loses.
type PairingRegistry struct {
	mu     sync.Mutex
	byCode map[string]*PairingCode
	byPair map[string]string // channel|userId → live code

	ttl time.Duration
	now func() time.Time // test hook
}

func NewPairingRegistry() *PairingRegistry {
	return &PairingRegistry{
		byCode: make(map[string]*PairingCode),
		byPair: make(map[string]string),
		ttl:    PairingTTL,
		now:    time.Now,
	}
}

func pairKey(channel, userID string) string {
	return channel + "|" + userID
}

// Generate issues a new code for (channel, userId), invalidating any earlier
// live code for the same pair.
func (r *PairingRegistry) Generate(channel, userID, userName string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(channel, userID)
	if old, ok := r.byPair[key]; ok {
		delete(r.byCode, old)
	}

	now := r.now()
	r.byCode[code] = &PairingCode{
		Code:      code,
		Channel:   channel,
		UserID:    userID,
		UserName:  userName,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.byPair[key] = code
	return code, nil
}

// Take resolves a code: the entry is removed and returned. Expired entries
// fail exactly like unknown ones.
func (r *PairingRegistry) Take(code string) (*PairingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byCode[code]
	if !ok {
		return nil, ErrPairingNotFound
	}
	r.removeLocked(entry)
	if r.now().After(entry.ExpiresAt) {
		return nil, ErrPairingNotFound
	}
	return entry, nil
}

// Reject removes a code if present. No distinction between unknown and
// expired; returns whether anything was removed.
func (r *PairingRegistry) Reject(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byCode[code]
	if !ok {
		return false
	}
	r.removeLocked(entry)
	return true
}

// Pending returns a snapshot of live, unexpired codes.
func (r *PairingRegistry) Pending() []PairingCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	result := make([]PairingCode, 0, len(r.byCode))
	for _, entry := range r.byCode {
		if now.After(entry.ExpiresAt) {
			continue
		}
		result = append(result, *entry)
	}
	return result
}

// Sweep evicts every expired entry and returns how many were removed.
func (r *PairingRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for _, entry := range r.byCode {
		if now.After(entry.ExpiresAt) {
			r.removeLocked(entry)
			removed++
		}
	}
	return removed
}

// StartReaper sweeps expired codes on a fixed period until ctx is done.
func (r *PairingRegistry) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					slog.Debug("pairing.reaper_swept", "expired", n)
				}
			}
		}
	}()
}

func (r *PairingRegistry) removeLocked(entry *PairingCode) {
	delete(r.byCode, entry.Code)
	key := pairKey(entry.Channel, entry.UserID)
	if r.byPair[key] == entry.Code {
		delete(r.byPair, key)
	}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
