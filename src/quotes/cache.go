package quotes

import (
	"sync"
	"time"

	"portfolio-stream/src/models"
)

type cacheEntry struct {
	quote   models.MQuote
	expires time.Time
}

// QuoteCache is a per-symbol TTL cache. Expired entries are dropped on read.
type QuoteCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewQuoteCache() *QuoteCache {
	return &QuoteCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// -----------------------------------------------------------------------------

func (c *QuoteCache) Get(symbol string) (models.MQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok {
		return models.MQuote{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, symbol)
		return models.MQuote{}, false
	}
	return e.quote, true
}

// -----------------------------------------------------------------------------

// Set stores q for ttl. A non-positive ttl disables caching.
func (c *QuoteCache) Set(symbol string, q models.MQuote, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[symbol] = cacheEntry{quote: q, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *QuoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
