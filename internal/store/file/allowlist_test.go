package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/store"
)

func TestAllowlistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	ctx := context.Background()

	s := NewFileAllowlistStore(path)
	entry := store.AllowlistEntry{
		Channel:  "telegram",
		UserID:   "12345",
		UserName: "alice",
		AddedAt:  time.Now().UTC(),
		AddedBy:  "operator",
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A fresh store instance must see the persisted entry.
	reloaded := NewFileAllowlistStore(path)
	entries, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Channel != "telegram" || entries[0].UserID != "12345" || entries[0].UserName != "alice" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestAllowlistPutReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	ctx := context.Background()

	s := NewFileAllowlistStore(path)
	s.Put(ctx, store.AllowlistEntry{Channel: "discord", UserID: "1", UserName: "old"})
	s.Put(ctx, store.AllowlistEntry{Channel: "discord", UserID: "1", UserName: "new"})

	entries, _ := NewFileAllowlistStore(path).Load(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].UserName != "new" {
		t.Fatalf("put did not replace: %+v", entries[0])
	}
}

func TestAllowlistDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	ctx := context.Background()

	s := NewFileAllowlistStore(path)
	s.Put(ctx, store.AllowlistEntry{Channel: "telegram", UserID: "1"})

	removed, err := s.Delete(ctx, "telegram", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true")
	}

	removed, err = s.Delete(ctx, "telegram", "1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed {
		t.Fatal("expected removed=false for missing entry")
	}

	entries, _ := NewFileAllowlistStore(path).Load(ctx)
	if len(entries) != 0 {
		t.Fatalf("expected empty store, got %d entries", len(entries))
	}
}

func TestAllowlistMissingFile(t *testing.T) {
	s := NewFileAllowlistStore(filepath.Join(t.TempDir(), "nope", "allowlist.json"))
	entries, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load of missing file must not fail: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestAllowlistCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewFileAllowlistStore(path)
	entries, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt store must degrade to empty, got error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}

	// Writes still work after recovering from a corrupt file.
	if err := s.Put(context.Background(), store.AllowlistEntry{Channel: "telegram", UserID: "1"}); err != nil {
		t.Fatalf("put after corrupt load: %v", err)
	}
}

func TestAllowlistNoTempFileLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.json")

	s := NewFileAllowlistStore(path)
	for i := 0; i < 3; i++ {
		s.Put(context.Background(), store.AllowlistEntry{Channel: "telegram", UserID: string(rune('a' + i))})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}
