package metrics

import "testing"

func TestCounters(t *testing.T) {
	s := NewStore()
	s.Inc(Attempts)
	s.Inc(Attempts)
	s.Add(Failures, 3)
	s.Inc("")

	if got := s.Get(Attempts); got != 2 {
		t.Fatalf("attempts = %d", got)
	}
	if got := s.Get(Failures); got != 3 {
		t.Fatalf("failures = %d", got)
	}
	if got := s.Get(Unlocks); got != 0 {
		t.Fatalf("unlocks = %d", got)
	}

	snap, updated := s.Snapshot()
	if len(snap) != 2 || updated.IsZero() {
		t.Fatalf("snapshot = %v updated = %v", snap, updated)
	}
	// snapshot is a copy
	snap[Attempts] = 99
	if got := s.Get(Attempts); got != 2 {
		t.Fatalf("snapshot aliased store: %d", got)
	}

	s.Clear()
	snap, updated = s.Snapshot()
	if len(snap) != 0 || !updated.IsZero() {
		t.Fatalf("clear left %v %v", snap, updated)
	}
}
