// Package cleanup provides data cleanup and maintenance functionality.
package cleanup

import (
	"fmt"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/marketdata"
	"github.com/rs/zerolog"
)

// CacheCleanupJob removes stale bar-cache windows and the bars no remaining
// window covers. The evolution loop slides its backtest window forward every
// day, so window rows accumulate indefinitely without this. Strategy and
// memory rows are permanent records and are never touched here.
type CacheCleanupJob struct {
	cache  *marketdata.BarCache
	maxAge time.Duration
	log    zerolog.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job.
func NewCacheCleanupJob(cache *marketdata.BarCache, maxAge time.Duration, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  cache,
		maxAge: maxAge,
		log:    log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job
func (j *CacheCleanupJob) Run() error {
	cutoff := time.Now().Add(-j.maxAge)

	windows, bars, err := j.cache.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune bar cache: %w", err)
	}

	if windows == 0 && bars == 0 {
		j.log.Debug().Msg("No stale cache windows to clean up")
		return nil
	}

	j.log.Info().
		Int64("windows_removed", windows).
		Int64("bars_removed", bars).
		Msg("Cache cleanup completed")

	return nil
}

// Name returns the job name for the scheduler.
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}
