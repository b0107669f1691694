// Package marketdata implements the market data gateway: uniform access to
// bars and quotes across an ordered list of upstream providers, with token
// bucket rate limiting, an on-disk bar cache, regime classification, and a
// streaming quote feed.
package marketdata

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterSet holds one token bucket per provider. A provider with no
// bucket configured is never limited. Rejections are counted so the
// monitoring worker can surface providers that are starving the pipeline.
type RateLimiterSet struct {
	mu        sync.RWMutex
	limiters  map[string]*rate.Limiter
	rejected  map[string]int64
	permitted map[string]int64
}

// NewRateLimiterSet creates an empty rate limiter set.
func NewRateLimiterSet() *RateLimiterSet {
	return &RateLimiterSet{
		limiters:  make(map[string]*rate.Limiter),
		rejected:  make(map[string]int64),
		permitted: make(map[string]int64),
	}
}

// InitializeProvider configures the token bucket for a provider. rps is the
// sustained refill rate, burst the bucket depth.
func (rl *RateLimiterSet) InitializeProvider(provider string, rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Allow consumes one token from the provider's bucket. The check never
// blocks: when the bucket is empty the call is rejected immediately so the
// gateway can fail over without touching the upstream.
func (rl *RateLimiterSet) Allow(provider string) bool {
	rl.mu.RLock()
	limiter, exists := rl.limiters[provider]
	rl.mu.RUnlock()

	if !exists {
		return true
	}

	allowed := limiter.Allow()

	rl.mu.Lock()
	if allowed {
		rl.permitted[provider]++
	} else {
		rl.rejected[provider]++
	}
	rl.mu.Unlock()

	return allowed
}

// RejectedCount returns how many calls the provider's bucket has rejected.
func (rl *RateLimiterSet) RejectedCount(provider string) int64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.rejected[provider]
}

// Counters returns a copy of the per-provider permit/reject counters.
func (rl *RateLimiterSet) Counters() map[string]ProviderCounters {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	out := make(map[string]ProviderCounters, len(rl.limiters))
	for name := range rl.limiters {
		out[name] = ProviderCounters{
			Permitted: rl.permitted[name],
			Rejected:  rl.rejected[name],
		}
	}
	return out
}

// ProviderCounters is a point-in-time view of one provider's bucket traffic.
type ProviderCounters struct {
	Permitted int64 `json:"permitted"`
	Rejected  int64 `json:"rejected"`
}
