package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arjunrose/Personal-Locker/internal/model"
)

// memoryStore keeps the same key/value rows as the SQL drivers in a map.
// It backs the "memory" driver for throwaway runs and test fixtures.
type memoryStore struct {
	logger *slog.Logger

	mu   sync.RWMutex
	data map[string]string
}

func NewMemory(logger *slog.Logger) Store {
	return &memoryStore{
		logger: logger,
		data:   make(map[string]string),
	}
}

func (m *memoryStore) Init(ctx context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryStore) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memoryStore) LoadPasscode(ctx context.Context) (string, error) {
	v, _ := m.get(KeyPasscode)
	return v, nil
}

func (m *memoryStore) SavePasscode(ctx context.Context, code string) error {
	m.set(KeyPasscode, code)
	return nil
}

func (m *memoryStore) LoadSettings(ctx context.Context) (model.Settings, error) {
	raw, ok := m.get(KeySettings)
	return decodeSettings(raw, ok, m.logger), nil
}

func (m *memoryStore) SaveSettings(ctx context.Context, s model.Settings) error {
	m.set(KeySettings, encodeJSON(s))
	return nil
}

func (m *memoryStore) LoadLogs(ctx context.Context) ([]model.IntruderLog, error) {
	raw, ok := m.get(KeyLogs)
	return decodeLogs(raw, ok, m.logger), nil
}

func (m *memoryStore) SaveLogs(ctx context.Context, logs []model.IntruderLog) error {
	if logs == nil {
		logs = []model.IntruderLog{}
	}
	m.set(KeyLogs, encodeJSON(logs))
	return nil
}
