package file

import (
	"sort"

	"github.com/nextlevelbuilder/botgate/internal/sessions"
	"github.com/nextlevelbuilder/botgate/internal/store"
)

// FileSessionStore wraps sessions.Manager to implement store.SessionStore.
type FileSessionStore struct {
	mgr *sessions.Manager
}

func NewFileSessionStore(mgr *sessions.Manager) *FileSessionStore {
	return &FileSessionStore{mgr: mgr}
}

// Manager returns the underlying sessions.Manager for direct access.
func (f *FileSessionStore) Manager() *sessions.Manager { return f.mgr }

func (f *FileSessionStore) GetOrCreate(key string) *store.SessionData {
	return sessionToData(f.mgr.GetOrCreate(key))
}

func (f *FileSessionStore) Get(key string) *store.SessionData {
	s := f.mgr.Get(key)
	if s == nil {
		return nil
	}
	return sessionToData(s)
}

func (f *FileSessionStore) AddMessage(key string, msg sessions.Message) {
	f.mgr.AddMessage(key, msg)
}

func (f *FileSessionStore) GetHistory(key string) []sessions.Message {
	return f.mgr.GetHistory(key)
}

func (f *FileSessionStore) SetLabel(key, label string) {
	f.mgr.SetLabel(key, label)
}

func (f *FileSessionStore) Reset(key string) {
	f.mgr.Reset(key)
}

func (f *FileSessionStore) Delete(key string) error {
	return f.mgr.Delete(key)
}

func (f *FileSessionStore) List(channel string) []store.SessionInfo {
	items := f.mgr.List(channel)
	result := make([]store.SessionInfo, len(items))
	for i, item := range items {
		result[i] = store.SessionInfo{
			Key:          item.Key,
			Channel:      item.Channel,
			Label:        item.Label,
			MessageCount: item.MessageCount,
			Created:      item.Created,
			Updated:      item.Updated,
		}
	}
	return result
}

func (f *FileSessionStore) ListPaged(opts store.SessionListOpts) store.SessionListResult {
	all := f.List(opts.Channel)
	// Stable page order: most recently updated first.
	sort.Slice(all, func(i, j int) bool { return all[i].Updated.After(all[j].Updated) })
	total := len(all)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return store.SessionListResult{
		Sessions: all[start:end],
		Total:    total,
	}
}

func (f *FileSessionStore) Save(key string) error {
	return f.mgr.Save(key)
}

func sessionToData(s *sessions.Session) *store.SessionData {
	return &store.SessionData{
		Key:      s.Key,
		Messages: s.Messages,
		Created:  s.Created,
		Updated:  s.Updated,
		Channel:  s.Channel,
		Label:    s.Label,
	}
}
