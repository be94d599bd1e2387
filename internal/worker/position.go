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
	// The search console API allows one lookup at a time.
	positionBatchSize       = 1
	positionSuccessCooldown = 2 * time.Second

	// positionWindow is the range over which the average position is
	// computed.
	positionWindow = 28 * 24 * time.Hour
)

// PositionAPI is the slice of the search console client the worker needs.
type PositionAPI interface {
	AveragePosition(ctx context.Context, pageURL, keyword string, since, until time.Time) (float64, bool, error)
}

// PositionWorker fills the average search position for items whose keyword
// is already resolved. Pages that do not rank for their keyword at all get
// the not-ranking sentinel instead of an error.
type PositionWorker struct {
	base
	client PositionAPI
}

// NewPositionWorker creates the position worker.
func NewPositionWorker(
	items database.ItemRepositoryInterface,
	client PositionAPI,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) *PositionWorker {
	return &PositionWorker{
		base:   newBase("position", seoapi.APISearchConsole, positionBatchSize, positionSuccessCooldown, items, limiter, log),
		client: client,
	}
}

// Execute fetches the search position for one item.
func (w *PositionWorker) Execute(ctx context.Context, snapshotID int64) (bool, error) {
	if !w.ready() {
		return false, nil
	}

	items, err := w.items.GetNeedingPosition(ctx, snapshotID, w.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select items needing position: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	until := w.now()
	since := until.Add(-positionWindow)

	progressed := false
	for _, item := range items {
		keyword := item.EffectiveKeyword()
		if keyword == "" {
			// The keyword service resolved to nothing; a page without a
			// keyword cannot rank for one.
			if setErr := w.items.SetPosition(ctx, item.ID, domain.PositionMax, nil); setErr != nil {
				return progressed, fmt.Errorf("failed to store position for item %d: %w", item.ID, setErr)
			}
			progressed = true
			continue
		}

		position, found, callErr := w.client.AveragePosition(ctx, item.URL, keyword, since, until)
		switch {
		case callErr == nil:
			w.clearRateStreak()
			if !found {
				position = domain.PositionMax
			}
			if setErr := w.items.SetPosition(ctx, item.ID, position, nil); setErr != nil {
				return progressed, fmt.Errorf("failed to store position for item %d: %w", item.ID, setErr)
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
			w.log.Warn("position lookup failed for item",
				"item_id", item.ID,
				"url", item.URL,
				"keyword", keyword,
				"error", callErr,
			)
			if setErr := w.items.SetPosition(ctx, item.ID, database.MetricErrorSentinel, errString(callErr)); setErr != nil {
				return progressed, fmt.Errorf("failed to store position error for item %d: %w", item.ID, setErr)
			}
			progressed = true
		}
	}

	w.pauseAfterSuccess()
	return progressed, nil
}
