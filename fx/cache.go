package fx

import (
	"sync"
	"time"

	"github.com/sig-0/cardprice/storage/types"
)

// cacheEntry is immutable once stored
type cacheEntry struct {
	expiresAt time.Time
	rate      types.ExchangeRate
}

// rateCache is a read-mostly pair -> rate cache with lazy expiry
type rateCache struct {
	entries sync.Map // Pair -> *cacheEntry
	ttl     time.Duration
}

func newRateCache(ttl time.Duration) *rateCache {
	return &rateCache{ttl: ttl}
}

// get returns the cached rate, evicting it if it is stale as of now
func (c *rateCache) get(p Pair, now time.Time) (types.ExchangeRate, bool) {
	raw, ok := c.entries.Load(p)
	if !ok {
		return types.ExchangeRate{}, false
	}

	entry, _ := raw.(*cacheEntry)

	if !now.Before(entry.expiresAt) {
		c.entries.CompareAndDelete(p, raw)

		return types.ExchangeRate{}, false
	}

	return entry.rate, true
}

func (c *rateCache) put(p Pair, rate types.ExchangeRate, now time.Time) {
	if c.ttl <= 0 {
		return
	}

	c.entries.Store(p, &cacheEntry{
		expiresAt: now.Add(c.ttl),
		rate:      rate,
	})
}
