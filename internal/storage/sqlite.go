package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string, logger *slog.Logger) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:locker.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{
		db:        db,
		logger:    logger,
		selectSQL: `SELECT value FROM locker_state WHERE key = ?`,
		upsertSQL: `INSERT INTO locker_state (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS locker_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`)
	return err
}
