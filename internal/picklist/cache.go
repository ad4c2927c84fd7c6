package picklist

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Cache holds decoded tables per session, entity and field pair. The key
// includes a checksum of the controller's active values, so a reordered
// value list decodes again instead of reusing stale positions.
type Cache struct {
	mu     sync.RWMutex
	tables map[cacheKey]*Table
	hits   atomic.Int64
	misses atomic.Int64
}

type cacheKey struct {
	session     string
	entity      string
	controller  string
	dependent   string
	fingerprint string
}

func NewCache() *Cache {
	return &Cache{tables: make(map[cacheKey]*Table)}
}

// Fingerprint computes the SHA256 of the controller's positional values.
func Fingerprint(values []string) string {
	hash := sha256.New()
	for _, v := range values {
		hash.Write([]byte(v))
		hash.Write([]byte{0})
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// Table returns the decoded table for the pair, decoding it on first use.
func (c *Cache) Table(session, entity string, controller, dependent *types.FieldDescriptor) *Table {
	key := cacheKey{
		session:     session,
		entity:      entity,
		controller:  controller.Name,
		dependent:   dependent.Name,
		fingerprint: Fingerprint(ControllerValues(controller)),
	}

	c.mu.RLock()
	if table, ok := c.tables[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return table
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if table, ok := c.tables[key]; ok {
		c.hits.Add(1)
		return table
	}

	table := Decode(controller, dependent)
	c.tables[key] = table
	c.misses.Add(1)
	return table
}

// Forget drops every table decoded for session.
func (c *Cache) Forget(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.tables {
		if key.session == session {
			delete(c.tables, key)
		}
	}
}

// Stats returns cache hits, misses and the number of cached tables.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits.Load(), c.misses.Load(), len(c.tables)
}
