package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/botgate/internal/store"
)

const allowlistSchema = `
CREATE TABLE IF NOT EXISTS allowlist (
	channel    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL DEFAULT '',
	added_at   TIMESTAMPTZ NOT NULL,
	added_by   TEXT NOT NULL DEFAULT '',
	note       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (channel, user_id)
);`

// PGAllowlistStore implements store.AllowlistStore backed by Postgres.
type PGAllowlistStore struct {
	db *sql.DB
}

func NewPGAllowlistStore(db *sql.DB) (*PGAllowlistStore, error) {
	if _, err := db.Exec(allowlistSchema); err != nil {
		return nil, fmt.Errorf("create allowlist table: %w", err)
	}
	return &PGAllowlistStore{db: db}, nil
}

func (s *PGAllowlistStore) Load(ctx context.Context) ([]store.AllowlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, user_id, user_name, added_at, added_by, note FROM allowlist`)
	if err != nil {
		return nil, fmt.Errorf("load allowlist: %w", err)
	}
	defer rows.Close()

	var entries []store.AllowlistEntry
	for rows.Next() {
		var e store.AllowlistEntry
		if err := rows.Scan(&e.Channel, &e.UserID, &e.UserName, &e.AddedAt, &e.AddedBy, &e.Note); err != nil {
			return nil, fmt.Errorf("scan allowlist row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGAllowlistStore) Put(ctx context.Context, entry store.AllowlistEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowlist (channel, user_id, user_name, added_at, added_by, note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel, user_id) DO UPDATE SET
		   user_name = EXCLUDED.user_name,
		   added_at  = EXCLUDED.added_at,
		   added_by  = EXCLUDED.added_by,
		   note      = EXCLUDED.note`,
		entry.Channel, entry.UserID, entry.UserName, entry.AddedAt, entry.AddedBy, entry.Note)
	if err != nil {
		return fmt.Errorf("put allowlist entry: %w", err)
	}
	return nil
}

func (s *PGAllowlistStore) Delete(ctx context.Context, channel, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM allowlist WHERE channel = $1 AND user_id = $2`, channel, userID)
	if err != nil {
		return false, fmt.Errorf("delete allowlist entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PGAllowlistStore) Close() error { return s.db.Close() }
