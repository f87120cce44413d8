// Package storage persists the locker's durable state: the passcode, the
// alert settings, and the intruder log list. Everything lives under three
// fixed keys in one key/value table, and the log list is rewritten whole
// on every change.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/model"
)

const (
	KeyPasscode = "vault_passcode"
	KeySettings = "vault_settings"
	KeyLogs     = "intruder_logs"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	LoadPasscode(ctx context.Context) (string, error)
	SavePasscode(ctx context.Context, code string) error
	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
	LoadLogs(ctx context.Context) ([]model.IntruderLog, error)
	SaveLogs(ctx context.Context, logs []model.IntruderLog) error
}

func NewStore(cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return NewSQLite(cfg.DSN, logger)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN, logger)
	case "memory":
		return NewMemory(logger), nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// baseStore carries the typed accessors shared by the SQL drivers. The
// dialect difference is confined to the two statements the constructor
// fills in.
type baseStore struct {
	db        *sql.DB
	logger    *slog.Logger
	selectSQL string
	upsertSQL string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) getValue(ctx context.Context, key string) (string, bool, error) {
	if b.db == nil {
		return "", false, nil
	}
	var value string
	err := b.db.QueryRowContext(ctx, b.selectSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *baseStore) setValue(ctx context.Context, key, value string) error {
	if b.db == nil {
		return nil
	}
	_, err := b.db.ExecContext(ctx, b.upsertSQL, key, value)
	return err
}

func (b *baseStore) LoadPasscode(ctx context.Context) (string, error) {
	v, ok, err := b.getValue(ctx, KeyPasscode)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

func (b *baseStore) SavePasscode(ctx context.Context, code string) error {
	return b.setValue(ctx, KeyPasscode, code)
}

func (b *baseStore) LoadSettings(ctx context.Context) (model.Settings, error) {
	raw, ok, err := b.getValue(ctx, KeySettings)
	if err != nil {
		return model.DefaultSettings(), err
	}
	return decodeSettings(raw, ok, b.logger), nil
}

func (b *baseStore) SaveSettings(ctx context.Context, s model.Settings) error {
	return b.setValue(ctx, KeySettings, encodeJSON(s))
}

func (b *baseStore) LoadLogs(ctx context.Context) ([]model.IntruderLog, error) {
	raw, ok, err := b.getValue(ctx, KeyLogs)
	if err != nil {
		return nil, err
	}
	return decodeLogs(raw, ok, b.logger), nil
}

func (b *baseStore) SaveLogs(ctx context.Context, logs []model.IntruderLog) error {
	if logs == nil {
		logs = []model.IntruderLog{}
	}
	return b.setValue(ctx, KeyLogs, encodeJSON(logs))
}

// decodeSettings restores settings from their stored JSON. Missing keys
// keep their defaults; unreadable JSON degrades to a full default set so
// a corrupted row never blocks startup.
func decodeSettings(raw string, ok bool, logger *slog.Logger) model.Settings {
	s := model.DefaultSettings()
	if !ok || strings.TrimSpace(raw) == "" {
		return s
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		if logger != nil {
			logger.Warn("discarding malformed stored settings", "error", err)
		}
		return model.DefaultSettings()
	}
	return s
}

// decodeLogs restores the intruder log list, degrading to an empty list
// when the stored JSON is unreadable.
func decodeLogs(raw string, ok bool, logger *slog.Logger) []model.IntruderLog {
	if !ok || strings.TrimSpace(raw) == "" {
		return []model.IntruderLog{}
	}
	var logs []model.IntruderLog
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		if logger != nil {
			logger.Warn("discarding malformed stored intruder logs", "error", err)
		}
		return []model.IntruderLog{}
	}
	if logs == nil {
		logs = []model.IntruderLog{}
	}
	return logs
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}
