package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

const keywordsBatchSize = 10

// KeywordAPI is the slice of the keyword service the worker needs.
type KeywordAPI interface {
	Primary(ctx context.Context, postID int64) (*seoapi.Keyword, error)
}

// KeywordWorker resolves the primary keyword for items flagged as needing
// one. A post with no detected keyword gets an empty keyword recorded so the
// item still counts as resolved; the position worker then skips it and
// classification treats the page as unrankable.
type KeywordWorker struct {
	base
	client KeywordAPI
}

// NewKeywordWorker creates the keyword worker.
func NewKeywordWorker(
	items database.ItemRepositoryInterface,
	client KeywordAPI,
	limiter *seoapi.RateLimiter,
	log logger.Interface,
) *KeywordWorker {
	return &KeywordWorker{
		base:   newBase("keywords", seoapi.APIKeywords, keywordsBatchSize, 0, items, limiter, log),
		client: client,
	}
}

// Execute resolves keywords for one batch of items.
func (w *KeywordWorker) Execute(ctx context.Context, snapshotID int64) (bool, error) {
	if !w.ready() {
		return false, nil
	}

	items, err := w.items.GetNeedingKeywords(ctx, snapshotID, w.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select items needing keywords: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	progressed := false
	for _, item := range items {
		keyword, callErr := w.client.Primary(ctx, item.PostID)
		switch {
		case callErr == nil:
			w.clearRateStreak()
			if setErr := w.items.SetKeyword(ctx, item.ID, keyword.Value, keyword.Approved); setErr != nil {
				return progressed, fmt.Errorf("failed to store keyword for item %d: %w", item.ID, setErr)
			}
			progressed = true
		case errors.Is(callErr, seoapi.ErrNotFound):
			w.clearRateStreak()
			if setErr := w.items.SetKeyword(ctx, item.ID, "", false); setErr != nil {
				return progressed, fmt.Errorf("failed to store empty keyword for item %d: %w", item.ID, setErr)
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
			// Transient failure; the item stays selectable and is
			// retried on the next pass.
			w.clearRateStreak()
			w.log.Warn("keyword lookup failed for item",
				"item_id", item.ID,
				"post_id", item.PostID,
				"error", callErr,
			)
		}
	}

	w.pauseAfterSuccess()
	return progressed, nil
}
