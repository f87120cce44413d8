package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string, logger *slog.Logger) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/locker?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{
		db:        db,
		logger:    logger,
		selectSQL: `SELECT value FROM locker_state WHERE key = $1`,
		upsertSQL: `INSERT INTO locker_state (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
	}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
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
