// Package sqlite provides SQLite-backed stores for single-node deployments
// that want transactional persistence without running Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/botgate/internal/store"
)

const allowlistSchema = `
CREATE TABLE IF NOT EXISTS allowlist (
	channel    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL DEFAULT '',
	added_at   TIMESTAMP NOT NULL,
	added_by   TEXT NOT NULL DEFAULT '',
	note       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (channel, user_id)
);`

// SQLiteAllowlistStore implements store.AllowlistStore on a local SQLite file.
type SQLiteAllowlistStore struct {
	db *sql.DB
}

func NewSQLiteAllowlistStore(path string) (*SQLiteAllowlistStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; WAL keeps readers unblocked during write-through saves.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(allowlistSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create allowlist table: %w", err)
	}
	return &SQLiteAllowlistStore{db: db}, nil
}

func (s *SQLiteAllowlistStore) Load(ctx context.Context) ([]store.AllowlistEntry, error) {
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

func (s *SQLiteAllowlistStore) Put(ctx context.Context, entry store.AllowlistEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowlist (channel, user_id, user_name, added_at, added_by, note)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (channel, user_id) DO UPDATE SET
		   user_name = excluded.user_name,
		   added_at  = excluded.added_at,
		   added_by  = excluded.added_by,
		   note      = excluded.note`,
		entry.Channel, entry.UserID, entry.UserName, entry.AddedAt, entry.AddedBy, entry.Note)
	if err != nil {
		return fmt.Errorf("put allowlist entry: %w", err)
	}
	return nil
}

func (s *SQLiteAllowlistStore) Delete(ctx context.Context, channel, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM allowlist WHERE channel = ? AND user_id = ?`, channel, userID)
	if err != nil {
		return false, fmt.Errorf("delete allowlist entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteAllowlistStore) Close() error { return s.db.Close() }
