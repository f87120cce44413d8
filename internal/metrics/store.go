// Package metrics keeps the daemon's running counters for the status
// endpoint: attempts, failures, captures, alerts, analyses.
package metrics

import (
	"sync"
	"time"
)

// Counter names used across the daemon.
const (
	Attempts        = "attempts_total"
	Failures        = "failures_total"
	Unlocks         = "unlocks_total"
	Captures        = "captures_total"
	CaptureFailures = "capture_failures_total"
	AlertsSent      = "alerts_sent_total"
	AlertFailures   = "alert_failures_total"
	Analyses        = "analyses_total"
	DroppedEvents   = "dropped_events_total"
)

type Store struct {
	mu        sync.RWMutex
	counters  map[string]int64
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{counters: make(map[string]int64)}
}

func (s *Store) Inc(name string) {
	s.Add(name, 1)
}

func (s *Store) Add(name string, delta int64) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
	s.updatedAt = time.Now().UTC()
}

func (s *Store) Get(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[name]
}

func (s *Store) Snapshot() (map[string]int64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for name, v := range s.counters {
		out[name] = v
	}
	return out, s.updatedAt
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int64)
	s.updatedAt = time.Time{}
}
