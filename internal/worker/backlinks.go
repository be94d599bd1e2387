package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

const (
	backlinksBatchSize = 5

	// backlinksSuccessCooldown spaces out batches; the backlinks provider
	// throttles aggressively on bursts.
	backlinksSuccessCooldown = 5 * time.Second
)

// BacklinksAPI is the slice of the backlinks client the worker needs.
type BacklinksAPI interface {
	Count(ctx context.Context, pageURL string) (int64, error)
}

// BacklinksWorker fills the backlinks count for items that do not have one
// yet.
type BacklinksWorker struct {
	base
	client BacklinksAPI
}

// NewBacklinksWorker creates the backlinks worker.
func NewBacklinksWorker(
	items database.ItemRepositoryInterface,
	client BacklinksAPI,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) *BacklinksWorker {
	return &BacklinksWorker{
		base:   newBase("backlinks", seoapi.APIBacklinks, backlinksBatchSize, backlinksSuccessCooldown, items, limiter, log),
		client: client,
	}
}

// Execute fetches backlinks counts for one batch of items.
func (w *BacklinksWorker) Execute(ctx context.Context, snapshotID int64) (bool, error) {
	if !w.ready() {
		return false, nil
	}

	items, err := w.items.GetMissingBacklinks(ctx, snapshotID, w.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select items missing backlinks: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	progressed := false
	for _, item := range items {
		count, callErr := w.client.Count(ctx, item.URL)
		switch {
		case callErr == nil:
			w.clearRateStreak()
			if setErr := w.items.SetBacklinks(ctx, item.ID, count, nil); setErr != nil {
				return progressed, fmt.Errorf("failed to store backlinks for item %d: %w", item.ID, setErr)
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
			w.log.Warn("backlinks lookup failed for item",
				"item_id", item.ID,
				"url", item.URL,
				"error", callErr,
			)
			if setErr := w.items.SetBacklinks(ctx, item.ID, database.MetricErrorSentinel, errString(callErr)); setErr != nil {
				return progressed, fmt.Errorf("failed to store backlinks error for item %d: %w", item.ID, setErr)
			}
			progressed = true
		}
	}

	w.pauseAfterSuccess()
	return progressed, nil
}
