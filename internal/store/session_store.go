package store

import (
	"time"

	"github.com/nextlevelbuilder/botgate/internal/sessions"
)

// SessionData holds conversation state for one session.
type SessionData struct {
	Key      string             `json:"key"`
	Messages []sessions.Message `json:"messages"`
	Created  time.Time          `json:"created"`
	Updated  time.Time          `json:"updated"`
	Channel  string             `json:"channel,omitempty"`
	Label    string             `json:"label,omitempty"`
}

// SessionInfo is lightweight session metadata for listing.
type SessionInfo struct {
	Key          string    `json:"key"`
	Channel      string    `json:"channel,omitempty"`
	Label        string    `json:"label,omitempty"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// SessionListOpts holds pagination options for ListPaged.
type SessionListOpts struct {
	Channel string
	Limit   int
	Offset  int
}

// SessionListResult is the paginated result of ListPaged.
type SessionListResult struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// SessionStore manages conversation sessions.
type SessionStore interface {
	GetOrCreate(key string) *SessionData
	Get(key string) *SessionData
	AddMessage(key string, msg sessions.Message)
	GetHistory(key string) []sessions.Message
	SetLabel(key, label string)
	Reset(key string)
	Delete(key string) error
	List(channel string) []SessionInfo
	ListPaged(opts SessionListOpts) SessionListResult
	Save(key string) error
}
