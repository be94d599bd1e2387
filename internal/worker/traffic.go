package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

const trafficBatchSize = 10

// AnalyticsAPI is the slice of the analytics client the worker needs.
type AnalyticsAPI interface {
	Sessions(ctx context.Context, pageURL string, since, until time.Time) (*seoapi.Sessions, error)
}

// TrafficWorker fills session counts for items that do not have them yet.
// The query range runs from the post's publication date to now, so the
// monthly averages reflect the page's whole lifetime.
type TrafficWorker struct {
	base
	client AnalyticsAPI
}

// NewTrafficWorker creates the traffic worker.
func NewTrafficWorker(
	items database.ItemRepositoryInterface,
	client AnalyticsAPI,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) *TrafficWorker {
	return &TrafficWorker{
		base:   newBase("traffic", seoapi.APIAnalytics, trafficBatchSize, 0, items, limiter, log),
		client: client,
	}
}

// Execute fetches session counts for one batch of items.
func (w *TrafficWorker) Execute(ctx context.Context, snapshotID int64) (bool, error) {
	if !w.ready() {
		return false, nil
	}

	items, err := w.items.GetMissingTraffic(ctx, snapshotID, w.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select items missing traffic: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	until := w.now()
	progressed := false
	for _, item := range items {
		if item.PublishedAt == nil {
			msg := "post has no publication date"
			if setErr := w.storeError(ctx, item.ID, &msg); setErr != nil {
				return progressed, setErr
			}
			progressed = true
			continue
		}

		sessions, callErr := w.client.Sessions(ctx, item.URL, *item.PublishedAt, until)
		switch {
		case callErr == nil:
			w.clearRateStreak()
			setErr := w.items.SetTraffic(ctx, item.ID,
				sessions.Total, sessions.Organic,
				sessions.TotalMonthly, sessions.OrganicMonthly, nil)
			if setErr != nil {
				return progressed, fmt.Errorf("failed to store traffic for item %d: %w", item.ID, setErr)
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
			w.log.Warn("traffic lookup failed for item",
				"item_id", item.ID,
				"url", item.URL,
				"error", callErr,
			)
			if setErr := w.storeError(ctx, item.ID, errString(callErr)); setErr != nil {
				return progressed, setErr
			}
			progressed = true
		}
	}

	w.pauseAfterSuccess()
	return progressed, nil
}

// storeError writes the traffic error sentinel into every traffic column.
func (w *TrafficWorker) storeError(ctx context.Context, itemID int64, msg *string) error {
	err := w.items.SetTraffic(ctx, itemID,
		database.MetricErrorSentinel, database.MetricErrorSentinel,
		database.MetricErrorSentinel, database.MetricErrorSentinel, msg)
	if err != nil {
		return fmt.Errorf("failed to store traffic error for item %d: %w", itemID, err)
	}
	return nil
}
