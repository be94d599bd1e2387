package seoapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sharedGroups maps API names to their quota group. APIs in the same group
// share one upstream quota, so a shared rate-limit pause on one must pause
// the others.
var sharedGroups = map[string]string{
	APIAnalytics:     "google",
	APISearchConsole: "google",
}

// RateLimiter coordinates request pacing and rate-limit backoff across the
// workers. It is an explicit shared value injected into every worker; pauses
// are queried and updated through it rather than by mutating client state.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	pausedUntil map[string]time.Time

	// now is overridable for tests.
	now func() time.Time
}

// NewRateLimiter creates an empty rate limiter. APIs without a configured
// limit are only constrained by explicit pauses.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		pausedUntil: make(map[string]time.Time),
		now:         time.Now,
	}
}

// SetLimit configures steady-state request pacing for one API.
func (r *RateLimiter) SetLimit(api string, perSecond float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[api] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Allow reports whether a request to the API may proceed right now, charging
// one token when it may.
func (r *RateLimiter) Allow(api string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if until, paused := r.pausedUntil[api]; paused && r.now().Before(until) {
		return false
	}

	limiter, ok := r.limiters[api]
	if !ok {
		return true
	}
	return limiter.Allow()
}

// PauseFor pauses one API for the given duration. When shared is true the
// pause propagates to every API in the same quota group.
func (r *RateLimiter) PauseFor(api string, d time.Duration, shared bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(d)
	r.pauseLocked(api, until)

	if !shared {
		return
	}
	group, ok := sharedGroups[api]
	if !ok {
		return
	}
	for sibling, siblingGroup := range sharedGroups {
		if siblingGroup == group && sibling != api {
			r.pauseLocked(sibling, until)
		}
	}
}

// pauseLocked extends (never shortens) the pause for one API.
func (r *RateLimiter) pauseLocked(api string, until time.Time) {
	if existing, ok := r.pausedUntil[api]; ok && existing.After(until) {
		return
	}
	r.pausedUntil[api] = until
}

// WaitTime returns how long the API must still wait before its next request,
// or zero when it is ready now.
func (r *RateLimiter) WaitTime(api string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.pausedUntil[api]
	if !ok {
		return 0
	}

	remaining := until.Sub(r.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetNowFunc overrides the clock. Tests only.
func (r *RateLimiter) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}
