package refs

import (
	"sync"
)

// Reader is the read side of a Pool, used by the synthesizer.
type Reader interface {
	Get(entityType string) []string
}

// Pool accumulates identifiers created during one session, per entity type.
// Entries are only ever appended; readers always see the full history.
type Pool struct {
	mu  sync.RWMutex
	ids map[string][]string
}

func NewPool() *Pool {
	return &Pool{ids: make(map[string][]string)}
}

// Append records identifiers returned by a successful create. Empty ids are ignored.
func (p *Pool) Append(entityType string, ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			p.ids[entityType] = append(p.ids[entityType], id)
		}
	}
}

// Get returns the identifiers created so far for entityType. The returned
// slice has its capacity capped, so appending to it never aliases the pool.
func (p *Pool) Get(entityType string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := p.ids[entityType]
	return ids[:len(ids):len(ids)]
}

func (p *Pool) Len(entityType string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids[entityType])
}

// Counts returns the pool size for every entity type with at least one id.
func (p *Pool) Counts() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	counts := make(map[string]int, len(p.ids))
	for name, ids := range p.ids {
		counts[name] = len(ids)
	}
	return counts
}

// Pick returns pool[index mod len(pool)] for the first target with a
// non-empty pool, in target order.
func Pick(r Reader, targets []string, index int) (string, bool) {
	for _, target := range targets {
		ids := r.Get(target)
		if len(ids) == 0 {
			continue
		}
		if index < 0 {
			index = -index
		}
		return ids[index%len(ids)], true
	}
	return "", false
}
