package cleanup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/marketdata"
)

func newTestCache(t *testing.T) *marketdata.BarCache {
	t.Helper()
	cache, err := marketdata.NewBarCache(filepath.Join(t.TempDir(), "bars.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func cacheWindow(t *testing.T, cache *marketdata.BarCache, hash string, start, end time.Time) {
	t.Helper()
	bars := []domain.Bar{
		{Ts: start, Open: 10, High: 10.5, Low: 9.5, Close: 10.2, Volume: 100},
		{Ts: start.Add(time.Hour), Open: 10.2, High: 10.8, Low: 10.1, Close: 10.6, Volume: 120},
	}
	require.NoError(t, cache.Put(hash, "BTC-USD", "1h", start, end, bars))
}

func TestCacheCleanupJobPrunesExpiredWindows(t *testing.T) {
	cache := newTestCache(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	cacheWindow(t, cache, "w1", start, end)

	// A negative retention puts the cutoff in the future, so the window
	// just written already counts as expired.
	job := NewCacheCleanupJob(cache, -time.Minute, zerolog.Nop())
	require.NoError(t, job.Run())

	_, hit, err := cache.Get("w1", "BTC-USD", "1h", start, end)
	require.NoError(t, err)
	assert.False(t, hit)

	barCount, windowCount, err := cache.Stats()
	require.NoError(t, err)
	assert.Zero(t, barCount)
	assert.Zero(t, windowCount)
}

func TestCacheCleanupJobKeepsFreshWindows(t *testing.T) {
	cache := newTestCache(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	cacheWindow(t, cache, "w1", start, end)

	job := NewCacheCleanupJob(cache, 24*time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	_, hit, err := cache.Get("w1", "BTC-USD", "1h", start, end)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCacheCleanupJobName(t *testing.T) {
	job := NewCacheCleanupJob(newTestCache(t), time.Hour, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
}
