package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// addressLimiter hands out a token-bucket rate.Limiter per remote
// address, the same shape as fred.Client's single shared limiter except
// keyed by address so one noisy client can't starve the others. Idle
// entries are evicted lazily on Allow so the map doesn't grow unbounded
// across a long-running server's lifetime.
type addressLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// newAddressLimiter builds a limiter keyed by remote address. rps and
// burst of 0 disable limiting entirely (Allow always returns true).
func newAddressLimiter(rps float64, burst int) *addressLimiter {
	return &addressLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow reports whether a request from addr may proceed right now.
func (a *addressLimiter) Allow(addr string) bool {
	if a.rps <= 0 || a.burst <= 0 {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.evictIdleLocked()

	e, ok := a.limiters[addr]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(a.rps, a.burst)}
		a.limiters[addr] = e
	}
	e.lastUsed = time.Now()
	return e.limiter.Allow()
}

func (a *addressLimiter) evictIdleLocked() {
	if len(a.limiters) < 256 {
		return // avoid scanning on every request for small servers
	}
	cutoff := time.Now().Add(-a.idleTTL)
	for addr, e := range a.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(a.limiters, addr)
		}
	}
}
