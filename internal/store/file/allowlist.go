package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/botgate/internal/store"
)

// FileAllowlistStore persists allowlist entries as one JSON document,
// rewritten whole on every mutation (temp file + rename, so a crash never
// leaves a half-written store).
type FileAllowlistStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]store.AllowlistEntry // key: channel|userId
}

func NewFileAllowlistStore(path string) *FileAllowlistStore {
	return &FileAllowlistStore{
		path:    path,
		entries: make(map[string]store.AllowlistEntry),
	}
}

func entryKey(channel, userID string) string {
	return channel + "|" + userID
}

// Load reads the store from disk. Best-effort: a missing or corrupt file
// yields an empty allowlist, never a startup failure.
func (f *FileAllowlistStore) Load(ctx context.Context) ([]store.AllowlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("allowlist.load_failed", "path", f.path, "error", err)
		}
		return nil, nil
	}

	var entries []store.AllowlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("allowlist.corrupt_store", "path", f.path, "error", err)
		return nil, nil
	}

	f.entries = make(map[string]store.AllowlistEntry, len(entries))
	for _, e := range entries {
		f.entries[entryKey(e.Channel, e.UserID)] = e
	}
	return entries, nil
}

// Put inserts or replaces the entry for (channel, userId) and rewrites the
// store synchronously.
func (f *FileAllowlistStore) Put(ctx context.Context, entry store.AllowlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[entryKey(entry.Channel, entry.UserID)] = entry
	return f.flushLocked()
}

// Delete removes the entry for (channel, userId). Returns whether anything
// was removed.
func (f *FileAllowlistStore) Delete(ctx context.Context, channel, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := entryKey(channel, userID)
	if _, ok := f.entries[key]; !ok {
		return false, nil
	}
	delete(f.entries, key)
	return true, f.flushLocked()
}

func (f *FileAllowlistStore) Close() error { return nil }

func (f *FileAllowlistStore) flushLocked() error {
	entries := make([]store.AllowlistEntry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "allowlist-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, f.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
