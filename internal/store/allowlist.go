package store

import (
	"context"
	"time"
)

// AllowlistEntry is one approved (channel, userId) pair with audit metadata.
type AllowlistEntry struct {
	Channel  string    `json:"channel"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
	AddedBy  string    `json:"addedBy,omitempty"`
	Note     string    `json:"note,omitempty"`
}

// AllowlistStore is the durable backing for DM allowlist entries, keyed by
// (channel, userId). Load is called once at startup; Put and Delete are
// write-through on every mutation.
type AllowlistStore interface {
	Load(ctx context.Context) ([]AllowlistEntry, error)
	Put(ctx context.Context, entry AllowlistEntry) error
	Delete(ctx context.Context, channel, userID string) (bool, error)
	Close() error
}
