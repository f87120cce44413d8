// Package alerts keeps a bounded in-memory history of notification
// deliveries so the API can show what went out and whether it worked.
package alerts

import (
	"sync"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/model"
)

type Store struct {
	mu    sync.RWMutex
	buf   []model.AlertRecord
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(rec model.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, rec)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = rec
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) []model.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.AlertRecord, 0, limit)
	for i := len(s.buf) - 1; i >= len(s.buf)-limit; i-- {
		out = append(out, s.buf[i])
	}
	return out
}

// Since returns records at or after ts, newest first.
func (s *Store) Since(ts time.Time) []model.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AlertRecord, 0)
	for i := len(s.buf) - 1; i >= 0; i-- {
		if !s.buf[i].Timestamp.Before(ts) {
			out = append(out, s.buf[i])
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
