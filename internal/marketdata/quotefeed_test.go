package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

func newTestFeed(cache *QuoteCache) *StreamingQuoteFeed {
	return NewStreamingQuoteFeed("wss://feed.invalid/ws", cache, zerolog.Nop())
}

func TestFeedHandlesQuoteMessage(t *testing.T) {
	cache := NewQuoteCache(DefaultQuoteTTL)
	feed := newTestFeed(cache)

	msg := []byte(`["quotes", {"symbol": "BTC-USD", "price": 62450.5, "change_24h": 0.012, "change_7d": 0.034, "volume": 118000, "ts": "2024-03-01T12:00:00Z"}]`)
	require.NoError(t, feed.handleMessage(msg))

	quote, ok := cache.Get("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 62450.5, quote.Price)
	assert.Equal(t, 0.034, quote.Change7d)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), quote.AsOf)
	assert.Equal(t, int64(1), feed.UpdateCount())
}

func TestFeedIgnoresOtherChannels(t *testing.T) {
	cache := NewQuoteCache(DefaultQuoteTTL)
	feed := newTestFeed(cache)

	require.NoError(t, feed.handleMessage([]byte(`["orders", {"id": 1}]`)))
	assert.Equal(t, 0, cache.Len())
}

func TestFeedRejectsMalformedMessages(t *testing.T) {
	cache := NewQuoteCache(DefaultQuoteTTL)
	feed := newTestFeed(cache)

	assert.Error(t, feed.handleMessage([]byte(`not json`)))
	assert.Error(t, feed.handleMessage([]byte(`["quotes"]`)))
	assert.Error(t, feed.handleMessage([]byte(`["quotes", {"price": 100}]`)), "missing symbol")
	assert.Error(t, feed.handleMessage([]byte(`["quotes", {"symbol": "BTC-USD", "price": 0}]`)), "non-positive price")
	assert.Equal(t, 0, cache.Len())
}

func TestFeedBackoffGrowsAndCaps(t *testing.T) {
	feed := newTestFeed(NewQuoteCache(DefaultQuoteTTL))

	assert.Equal(t, baseReconnectDelay, feed.calculateBackoff(1))
	assert.Equal(t, 2*baseReconnectDelay, feed.calculateBackoff(2))
	assert.Equal(t, 4*baseReconnectDelay, feed.calculateBackoff(3))
	assert.Equal(t, maxReconnectDelay, feed.calculateBackoff(20))
}

func TestFeedStopIsIdempotent(t *testing.T) {
	feed := newTestFeed(NewQuoteCache(DefaultQuoteTTL))

	require.NoError(t, feed.Stop())
	require.NoError(t, feed.Stop())
	assert.False(t, feed.IsConnected())
}

func TestQuoteCacheExpiry(t *testing.T) {
	cache := NewQuoteCache(time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }

	cache.Set(domain.Quote{Symbol: "BTC-USD", Price: 100})

	_, ok := cache.Get("BTC-USD")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("BTC-USD")
	assert.False(t, ok, "stale quotes are not served")
	assert.Equal(t, 1, cache.Len())
}
