package coordinator

import (
	"sync"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// resultCache is the in-process duplicate cache. It backs up the durable
// audit store so a terminal outcome survives even when persisting the
// terminal record failed. Shared across sessions; mutex-protected.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.IdempotencyRecord
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]*domain.IdempotencyRecord)}
}

func (c *resultCache) get(key string) (*domain.IdempotencyRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return rec.CloneRecord(), true
}

func (c *resultCache) put(rec *domain.IdempotencyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rec.Key] = rec.CloneRecord()
}
