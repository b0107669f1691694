package marketdata

import (
	"sync"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// DefaultQuoteTTL bounds how stale a cached quote may be before the gateway
// goes back to the providers.
const DefaultQuoteTTL = 5 * time.Minute

// QuoteCache is an in-memory TTL cache of the latest quote per symbol. The
// streaming feed writes into it; the gateway reads through it.
type QuoteCache struct {
	mu      sync.RWMutex
	quotes  map[string]cachedQuote
	ttl     time.Duration
	nowFunc func() time.Time
}

type cachedQuote struct {
	quote    domain.Quote
	cachedAt time.Time
}

// NewQuoteCache creates a cache with the given TTL. Non-positive TTLs fall
// back to the default.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &QuoteCache{
		quotes:  make(map[string]cachedQuote),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get returns the cached quote when present and fresh.
func (c *QuoteCache) Get(symbol string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.quotes[symbol]
	if !ok {
		return domain.Quote{}, false
	}
	if c.nowFunc().Sub(entry.cachedAt) > c.ttl {
		return domain.Quote{}, false
	}
	return entry.quote, true
}

// Set stores the latest quote for a symbol.
func (c *QuoteCache) Set(quote domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[quote.Symbol] = cachedQuote{
		quote:    quote,
		cachedAt: c.nowFunc(),
	}
}

// Len returns the number of cached symbols, fresh or stale.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
