package provision

import "sync"

// ExistsCache memoizes "does this clientID already have a partition"
// lookups. STATUS_UPDATE invalidates the entry so a new request for the
// same clientID sees the freshly provisioned tenant immediately.
type ExistsCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewExistsCache creates an empty cache
func NewExistsCache() *ExistsCache {
	return &ExistsCache{entries: make(map[string]bool)}
}

// Get returns the cached value and whether one was present
func (c *ExistsCache) Get(clientID string) (exists bool, cached bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exists, cached = c.entries[clientID]
	return exists, cached
}

// Set stores a lookup result
func (c *ExistsCache) Set(clientID string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[clientID] = exists
}

// Invalidate drops the entry for a clientID
func (c *ExistsCache) Invalidate(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, clientID)
}
