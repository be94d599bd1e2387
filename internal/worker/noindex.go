package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

const (
	noindexBatchSize       = 5
	noindexSuccessCooldown = time.Second
)

// NoindexAPI is the slice of the noindex checker the worker needs.
type NoindexAPI interface {
	Check(ctx context.Context, pageURL string) (int16, error)
}

// NoindexWorker determines for each item whether the live page blocks
// indexing (robots meta tags or X-Robots-Tag headers).
type NoindexWorker struct {
	base
	client NoindexAPI
}

// NewNoindexWorker creates the noindex worker.
func NewNoindexWorker(
	items database.ItemRepositoryInterface,
	client NoindexAPI,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) *NoindexWorker {
	return &NoindexWorker{
		base:   newBase("noindex", seoapi.APINoindex, noindexBatchSize, noindexSuccessCooldown, items, limiter, log),
		client: client,
	}
}

// Execute checks the noindex state for one batch of items.
func (w *NoindexWorker) Execute(ctx context.Context, snapshotID int64) (bool, error) {
	if !w.ready() {
		return false, nil
	}

	items, err := w.items.GetMissingNoindex(ctx, snapshotID, w.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select items missing noindex: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	progressed := false
	for _, item := range items {
		state, callErr := w.client.Check(ctx, item.URL)
		switch {
		case callErr == nil:
			w.clearRateStreak()
			if setErr := w.items.SetNoindex(ctx, item.ID, state); setErr != nil {
				return progressed, fmt.Errorf("failed to store noindex for item %d: %w", item.ID, setErr)
			}
			progressed = true
		case isAccountBlocked(callErr):
			filled, fillErr := w.handleAccountBlocked(ctx, snapshotID, callErr)
			return progressed || filled, fillErr
		default:
			if rle, ok := seoapi.AsRateLimit(callErr); ok {
				w.pauseForRateLimit(rle)
				return progressed, nil
			}
			if ctx.Err() != nil {
				return progressed, ctx.Err()
			}
			w.clearRateStreak()
			w.log.Warn("noindex check failed for item",
				"item_id", item.ID,
				"url", item.URL,
				"error", callErr,
			)
			if setErr := w.items.SetNoindex(ctx, item.ID, domain.NoindexErr); setErr != nil {
				return progressed, fmt.Errorf("failed to store noindex error for item %d: %w", item.ID, setErr)
			}
			progressed = true
		}
	}

	w.pauseAfterSuccess()
	return progressed, nil
}
