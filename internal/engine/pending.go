package engine

import (
	"sort"
	"sync"
	"time"
)

// PendingSet tracks intruder log entries with an analysis in flight so a
// second request for the same entry is refused until the first resolves.
type PendingSet struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewPendingSet() *PendingSet {
	return &PendingSet{items: make(map[string]time.Time)}
}

// Mark reserves id and reports whether the reservation was free.
func (p *PendingSet) Mark(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; ok {
		return false
	}
	p.items[id] = time.Now().UTC()
	return true
}

func (p *PendingSet) Unmark(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, id)
}

func (p *PendingSet) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.items[id]
	return ok
}

// List returns the marked ids, oldest reservation first.
func (p *PendingSet) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.items))
	for id := range p.items {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if !p.items[out[i]].Equal(p.items[out[j]]) {
			return p.items[out[i]].Before(p.items[out[j]])
		}
		return out[i] < out[j]
	})
	return out
}
