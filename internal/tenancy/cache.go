package tenancy

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is an in-process L1 cache for positive mapping lookups.
// Misses are never cached so a newly assigned number resolves immediately.
// Mappings are written outside this service, so a reassignment is seen once
// the entry's ttl runs out.
type Cache struct {
	c   *ristretto.Cache[string, PhoneAssignment]
	ttl time.Duration
}

func NewCache(maxItems int64, ttl time.Duration) (*Cache, error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, PhoneAssignment]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (c *Cache) get(key string) (PhoneAssignment, bool) {
	if c == nil {
		return PhoneAssignment{}, false
	}
	return c.c.Get(key)
}

func (c *Cache) set(key string, v PhoneAssignment) {
	if c == nil {
		return
	}
	c.c.SetWithTTL(key, v, 1, c.ttl)
}

// Wait blocks until pending writes are visible. Used by tests.
func (c *Cache) Wait() {
	if c != nil {
		c.c.Wait()
	}
}

func (c *Cache) Close() {
	if c != nil {
		c.c.Close()
	}
}

func agentKey(id string) string    { return "agent:" + id }
func phoneKey(e164 string) string { return "phone:" + e164 }
