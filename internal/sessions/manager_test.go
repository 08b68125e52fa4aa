package sessions

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetOrCreateParsesChannel(t *testing.T) {
	m := NewManager("")

	s := m.GetOrCreate("telegram:direct:12345")
	if s.Channel != "telegram" {
		t.Fatalf("expected channel telegram, got %q", s.Channel)
	}

	again := m.GetOrCreate("telegram:direct:12345")
	if again != s {
		t.Fatal("expected the same session instance")
	}
}

func TestAddMessageAndHistory(t *testing.T) {
	m := NewManager("")
	key := "discord:direct:42"

	m.AddMessage(key, Message{Role: "user", Content: "hello", Timestamp: time.Now()})
	m.AddMessage(key, Message{Role: "assistant", Content: "hi there", Timestamp: time.Now()})

	history := m.GetHistory(key)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", history)
	}

	// History is a copy; mutating it must not touch the session.
	history[0].Content = "mutated"
	if m.GetHistory(key)[0].Content != "hello" {
		t.Fatal("history mutation leaked into session")
	}
}

func TestReset(t *testing.T) {
	m := NewManager("")
	key := "telegram:direct:1"

	m.AddMessage(key, Message{Role: "user", Content: "a"})
	m.Reset(key)

	if len(m.GetHistory(key)) != 0 {
		t.Fatal("expected empty history after reset")
	}
	if m.Get(key) == nil {
		t.Fatal("reset must not delete the session")
	}
}

func TestListFiltersByChannel(t *testing.T) {
	m := NewManager("")
	m.GetOrCreate("telegram:direct:1")
	m.GetOrCreate("telegram:direct:2")
	m.GetOrCreate("discord:direct:3")

	if got := len(m.List("")); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}
	if got := len(m.List("telegram")); got != 2 {
		t.Fatalf("expected 2 telegram sessions, got %d", got)
	}
	if got := len(m.List("slack")); got != 0 {
		t.Fatalf("expected 0 slack sessions, got %d", got)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	key := "telegram:direct:777"
	m.AddMessage(key, Message{Role: "user", Content: "persist me", Timestamp: time.Now()})
	m.SetLabel(key, "test chat")
	if err := m.Save(key); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := NewManager(dir)
	s := reloaded.Get(key)
	if s == nil {
		t.Fatal("session not reloaded from disk")
	}
	if len(s.Messages) != 1 || s.Messages[0].Content != "persist me" {
		t.Fatalf("unexpected messages after reload: %+v", s.Messages)
	}
	if s.Label != "test chat" {
		t.Fatalf("label lost on reload: %q", s.Label)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	key := "discord:direct:9"
	m.AddMessage(key, Message{Role: "user", Content: "x"})
	if err := m.Save(key); err != nil {
		t.Fatalf("save: %v", err)
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

func TestDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	key := "telegram:direct:5"
	m.AddMessage(key, Message{Role: "user", Content: "bye"})
	if err := m.Save(key); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if m.Get(key) != nil {
		t.Fatal("session still present after delete")
	}
	if _, err := os.Stat(filepath.Join(dir, "telegram_direct_5.json")); !os.IsNotExist(err) {
		t.Fatal("session file still on disk after delete")
	}
}

func TestCorruptFileSkippedOnLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	m := NewManager(dir)
	if got := len(m.List("")); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}
