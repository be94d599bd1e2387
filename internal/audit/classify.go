package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/metrics"
)

// Position thresholds driving the terminal classification.
const (
	// positionWellRanked marks pages ranking so well nothing should
	// change.
	positionWellRanked = 3.5

	// positionNeedsWork marks pages close enough to the top that content
	// work (or a merge) can realistically move them.
	positionNeedsWork = 20
)

// cascadeLimit bounds how many colliding items one flip reclassifies.
const cascadeLimit = 50

// ClassifierConfig carries the classification tunables.
type ClassifierConfig struct {
	// WaitingWeeks is the grace period during which a newly published
	// post is exempt from negative classification.
	WaitingWeeks int

	// AnalyticsEnabled gates the median comparison; without analytics the
	// traffic-based exclude branch never fires.
	AnalyticsEnabled bool
}

// Classifier assigns terminal actions to content items once their metrics
// are collected.
type Classifier struct {
	items   database.ItemRepositoryInterface
	advisor AdvisorInterface
	metrics *metrics.Metrics
	cfg     ClassifierConfig
	log     logger.Interface

	now func() time.Time
}

// NewClassifier creates the classifier.
func NewClassifier(
	items database.ItemRepositoryInterface,
	advisor AdvisorInterface,
	m *metrics.Metrics,
	cfg ClassifierConfig,
	log logger.Interface,
) *Classifier {
	return &Classifier{
		items:   items,
		advisor: advisor,
		metrics: m,
		cfg:     cfg,
		log:     log.WithComponent("classifier"),
		now:     time.Now,
	}
}

// decideInactive resolves the classifications that do not depend on the
// traffic median. Definitive page-level signals (noindex, manual exclusion,
// scope) win over missing metrics, so a short-circuited item never
// misreports as an analysis error. Returns false when the item is genuinely
// active and must wait for the full pass.
func (c *Classifier) decideInactive(item *domain.ContentItem) (domain.Action, bool) {
	switch {
	case item.MetricError():
		return domain.ActionErrorAnalyzing, true
	case item.IsNoindex != nil && *item.IsNoindex == domain.NoindexYes:
		return domain.ActionNoindex, true
	case item.IsExcluded:
		return domain.ActionManuallyExcluded, true
	case item.Action.IsOutOfScope():
		return domain.ActionOutOfScope, true
	case !item.HasAllMetrics():
		return domain.ActionErrorAnalyzing, true
	case c.newlyPublished(item):
		return domain.ActionNewlyPublished, true
	default:
		return "", false
	}
}

func (c *Classifier) newlyPublished(item *domain.ContentItem) bool {
	if item.IgnoreNewly || item.PublishedAt == nil || c.cfg.WaitingWeeks <= 0 {
		return false
	}
	window := time.Duration(c.cfg.WaitingWeeks) * 7 * 24 * time.Hour
	return c.now().Sub(*item.PublishedAt) < window
}

// decideActive resolves an active item's terminal action from its search
// position, the snapshot's traffic median and keyword collisions.
func (c *Classifier) decideActive(
	ctx context.Context,
	item *domain.ContentItem,
	median float64,
) (domain.Action, error) {
	position := *item.Position

	if position <= positionWellRanked {
		return domain.ActionDoNothing, nil
	}

	if position <= positionNeedsWork {
		collision, err := c.advisor.HasActivePagesWithSameKeyword(ctx, item.SnapshotID, item.PostID)
		if err != nil {
			return "", fmt.Errorf("failed to check keyword collisions: %w", err)
		}
		if collision {
			return domain.ActionMerge, nil
		}
		return domain.ActionUpdateYellow, nil
	}

	// Ranking poorly. A page still pulling median-or-better traffic is
	// worth keeping out of the cleanup list; otherwise backlinks decide
	// between a rework and removal.
	if c.cfg.AnalyticsEnabled && median > 0 &&
		item.TotalMonthly != nil && float64(*item.TotalMonthly) >= median {
		return domain.ActionExclude, nil
	}
	if item.Backlinks != nil && *item.Backlinks > 0 {
		return domain.ActionUpdateOrange, nil
	}
	return domain.ActionDelete, nil
}

func (c *Classifier) decide(
	ctx context.Context,
	item *domain.ContentItem,
	median float64,
) (domain.Action, error) {
	if action, ok := c.decideInactive(item); ok {
		return action, nil
	}
	return c.decideActive(ctx, item, median)
}

// ClassifyInactiveOnly resolves an item that may not need the median:
// inactive outcomes are persisted immediately, genuinely active items are
// deferred to the final pass.
func (c *Classifier) ClassifyInactiveOnly(ctx context.Context, item *domain.ContentItem) error {
	action, ok := c.decideInactive(item)
	if !ok {
		return c.persist(ctx, item, domain.ActionAnalyzingFinal, false)
	}
	return c.persist(ctx, item, action, action.IsInactive())
}

// ClassifyFull assigns the item's terminal action using the full rule set.
// When the item's active/inactive status flips, every other active item
// sharing its keyword is reclassified in the same invocation so merge
// decisions never go stale.
func (c *Classifier) ClassifyFull(
	ctx context.Context,
	item *domain.ContentItem,
	median float64,
) error {
	action, err := c.decide(ctx, item, median)
	if err != nil {
		return err
	}

	wasInactive := item.Inactive
	nowInactive := action.IsInactive()

	if persistErr := c.persist(ctx, item, action, nowInactive); persistErr != nil {
		return persistErr
	}

	if wasInactive != nowInactive {
		return c.cascade(ctx, item, median)
	}
	return nil
}

// cascade reclassifies the other active items sharing the flipped item's
// keyword. Cascaded items do not themselves cascade; the flip that matters
// already happened.
func (c *Classifier) cascade(ctx context.Context, item *domain.ContentItem, median float64) error {
	keyword := item.EffectiveKeyword()
	if keyword == "" {
		return nil
	}

	c.metrics.RecordCascade()
	c.log.Debug("keyword cascade triggered",
		"snapshot_id", item.SnapshotID,
		"post_id", item.PostID,
		"keyword", keyword,
	)

	matches, err := c.items.FindActiveByKeyword(ctx, item.SnapshotID, keyword, item.PostID, cascadeLimit)
	if err != nil {
		return fmt.Errorf("failed to find cascade candidates: %w", err)
	}

	for _, match := range matches {
		action, decideErr := c.decide(ctx, match, median)
		if decideErr != nil {
			return decideErr
		}
		if persistErr := c.persist(ctx, match, action, action.IsInactive()); persistErr != nil {
			return persistErr
		}
	}
	return nil
}

func (c *Classifier) persist(
	ctx context.Context,
	item *domain.ContentItem,
	action domain.Action,
	inactive bool,
) error {
	if err := c.items.SetAction(ctx, item.ID, action, inactive); err != nil {
		return fmt.Errorf("failed to persist classification for item %d: %w", item.ID, err)
	}
	c.metrics.RecordClassification(action.String())
	return nil
}

// SetNowFunc overrides the clock. Tests only.
func (c *Classifier) SetNowFunc(now func() time.Time) { c.now = now }
