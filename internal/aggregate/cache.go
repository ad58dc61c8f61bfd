package aggregate

import "sync"

// ExistenceCache is a fast address-already-mined index shared across
// all mining runs. A hit routes aggregation to the update path
// without a durable-storage lookup; writes are idempotent so
// concurrent runs can share one instance.
type ExistenceCache struct {
	mu    sync.RWMutex
	mined map[string]bool
}

// NewExistenceCache creates an empty cache.
func NewExistenceCache() *ExistenceCache {
	return &ExistenceCache{mined: make(map[string]bool)}
}

func cacheKey(userID, email string) string {
	return userID + "\x00" + email
}

// Has reports whether the address was already mined for the user.
func (c *ExistenceCache) Has(userID, email string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mined[cacheKey(userID, email)]
}

// MarkMined records that the address has been persisted.
func (c *ExistenceCache) MarkMined(userID, email string) {
	c.mu.Lock()
	c.mined[cacheKey(userID, email)] = true
	c.mu.Unlock()
}
