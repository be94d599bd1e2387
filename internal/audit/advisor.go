package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/seo-audit/internal/database"
)

// AdvisorInterface is the keyword collision lookup consumed by the
// classifier and the HTTP API.
type AdvisorInterface interface {
	FindActivePagesWithSameKeyword(ctx context.Context, snapshotID, postID int64, limit int) ([]int64, error)
	HasActivePagesWithSameKeyword(ctx context.Context, snapshotID, postID int64) (bool, error)
}

// Advisor answers "which other active pages target this page's keyword".
// The answer drives the merge-versus-update decision and the collision
// cascade.
type Advisor struct {
	items database.ItemRepositoryInterface
}

// NewAdvisor creates the advisor.
func NewAdvisor(items database.ItemRepositoryInterface) *Advisor {
	return &Advisor{items: items}
}

// FindActivePagesWithSameKeyword returns the post ids of other active items
// whose effective keyword matches the given post's, ordered by monthly
// traffic descending, capped at limit. A post with no resolved keyword has
// no collisions.
func (a *Advisor) FindActivePagesWithSameKeyword(
	ctx context.Context,
	snapshotID, postID int64,
	limit int,
) ([]int64, error) {
	item, err := a.items.GetBySnapshotAndPost(ctx, snapshotID, postID)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load item for keyword lookup: %w", err)
	}

	keyword := item.EffectiveKeyword()
	if keyword == "" {
		return nil, nil
	}

	matches, err := a.items.FindActiveByKeyword(ctx, snapshotID, keyword, postID, limit)
	if err != nil {
		return nil, err
	}

	postIDs := make([]int64, 0, len(matches))
	for _, match := range matches {
		postIDs = append(postIDs, match.PostID)
	}
	return postIDs, nil
}

// HasActivePagesWithSameKeyword reports whether at least one other active
// page targets the same keyword.
func (a *Advisor) HasActivePagesWithSameKeyword(ctx context.Context, snapshotID, postID int64) (bool, error) {
	postIDs, err := a.FindActivePagesWithSameKeyword(ctx, snapshotID, postID, 1)
	if err != nil {
		return false, err
	}
	return len(postIDs) > 0, nil
}

var _ AdvisorInterface = (*Advisor)(nil)
