// Package worker implements the metric-fetching workers. Each worker owns
// one metric dimension (backlinks, traffic, search position, noindex,
// keyword), pulls small batches of items still missing that dimension, calls
// the external API and persists results. Workers are synchronous: the
// orchestrator runs them round-robin inside its bounded update loop.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

// Interface defines the worker contract.
type Interface interface {
	// Name returns the worker's metric dimension name.
	Name() string

	// Execute pulls one batch of eligible items for the snapshot, fetches
	// their data and persists the results. It returns whether it made any
	// progress. Rate limits pause the worker and are not an error.
	Execute(ctx context.Context, snapshotID int64) (bool, error)

	// WaitingSeconds returns how long until the worker may run again. The
	// second value is false when the worker is ready now.
	WaitingSeconds() (float64, bool)
}

// Cooldown behavior shared by the workers.
const (
	// defaultRateCooldown is the starting pause after a rate-limit error
	// that carried no explicit retry delay.
	defaultRateCooldown = 30 * time.Second

	// maxRateCooldown caps the escalating pause.
	maxRateCooldown = 15 * time.Minute
)

// base carries the state and helpers every worker shares: the item store,
// the shared rate limiter and its own pause window.
type base struct {
	name            string
	api             string
	batchSize       int
	successCooldown time.Duration

	items   database.ItemRepositoryInterface
	limiter *seoapi.RateLimiter
	log     logger.Interface

	pauseUntil    time.Time
	rateErrStreak int

	// now is overridable for tests.
	now func() time.Time
}

func newBase(
	name, api string,
	batchSize int,
	successCooldown time.Duration,
	items database.ItemRepositoryInterface,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) base {
	return base{
		name:            name,
		api:             api,
		batchSize:       batchSize,
		successCooldown: successCooldown,
		items:           items,
		limiter:         limiter,
		log:             log.WithComponent("worker." + name),
		now:             time.Now,
	}
}

// Name returns the worker's metric dimension name.
func (b *base) Name() string { return b.name }

// WaitingSeconds returns the longer of the worker's own pause and the shared
// API limiter's pause.
func (b *base) WaitingSeconds() (float64, bool) {
	wait := b.pauseUntil.Sub(b.now())
	if limiterWait := b.limiter.WaitTime(b.api); limiterWait > wait {
		wait = limiterWait
	}
	if wait <= 0 {
		return 0, false
	}
	return wait.Seconds(), true
}

// ready reports whether the worker may call its API right now.
func (b *base) ready() bool {
	if b.now().Before(b.pauseUntil) {
		return false
	}
	return b.limiter.Allow(b.api)
}

// pauseAfterSuccess applies the short per-API courtesy delay between
// batches, where the API demands one.
func (b *base) pauseAfterSuccess() {
	if b.successCooldown > 0 {
		b.pauseUntil = b.now().Add(b.successCooldown)
	}
}

// pauseForRateLimit applies the rate-limit backoff: the service-requested
// delay when given, otherwise an escalating cooldown. Shared-quota limits
// propagate to sibling workers through the rate limiter.
func (b *base) pauseForRateLimit(rle *seoapi.RateLimitError) {
	b.rateErrStreak++

	cooldown := rle.RetryAfter
	if cooldown <= 0 {
		cooldown = defaultRateCooldown << (b.rateErrStreak - 1)
		if cooldown > maxRateCooldown {
			cooldown = maxRateCooldown
		}
	}

	b.pauseUntil = b.now().Add(cooldown)
	b.limiter.PauseFor(b.api, cooldown, rle.Shared)

	b.log.Warn("worker paused by rate limit",
		"cooldown", cooldown.String(),
		"shared", rle.Shared,
		"streak", b.rateErrStreak,
	)
}

// clearRateStreak resets the backoff escalation after a successful call.
func (b *base) clearRateStreak() { b.rateErrStreak = 0 }

// SetNowFunc overrides the clock. Tests only.
func (b *base) SetNowFunc(now func() time.Time) { b.now = now }

// handleAccountBlocked fills every still-missing value of the worker's
// dimension with the error sentinel so classification can proceed in
// degraded mode. Returns true when any row was filled.
func (b *base) handleAccountBlocked(ctx context.Context, snapshotID int64, cause error) (bool, error) {
	b.log.Error("external account unusable, filling remaining items with error sentinel",
		"error", cause,
	)

	filled, err := b.items.BulkFillMissing(ctx, snapshotID, b.name, cause.Error())
	if err != nil {
		return false, err
	}
	return filled > 0, nil
}

// errString extracts a diagnostic string pointer for persistence.
func errString(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// isAccountBlocked reports whether the error means the account can serve no
// further requests at all.
func isAccountBlocked(err error) bool {
	return errors.Is(err, seoapi.ErrAccountBlocked)
}
