// Package workers provides the bounded admission pool the evolution
// scheduler uses to cap concurrent backtests.
package workers

import "sync"

// DefaultLimit is the admission cap used when no limit is configured.
const DefaultLimit = 2

// Pool is a resizable counting semaphore. The evolution scheduler re-reads
// its concurrency setting on every tick and applies it with SetLimit;
// lowering the limit never evicts work that is already in flight, it only
// blocks new admissions until enough slots drain.
type Pool struct {
	mu       sync.Mutex
	limit    int
	inFlight int
}

// NewPool creates a pool admitting at most limit concurrent jobs.
// Non-positive limits fall back to DefaultLimit.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{limit: limit}
}

// SetLimit changes the admission cap. Values below 1 clamp to 1 so the
// scheduler can always make progress.
func (p *Pool) SetLimit(limit int) {
	if limit < 1 {
		limit = 1
	}
	p.mu.Lock()
	p.limit = limit
	p.mu.Unlock()
}

// TryAcquire claims a slot if one is free. It never blocks.
func (p *Pool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight >= p.limit {
		return false
	}
	p.inFlight++
	return true
}

// Release returns a previously acquired slot.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight > 0 {
		p.inFlight--
	}
}

// InFlight reports how many slots are currently claimed.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Limit reports the current admission cap.
func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}
