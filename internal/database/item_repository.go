package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/seo-audit/internal/domain"
)

// ErrItemNotFound is returned when no content item matches a lookup.
var ErrItemNotFound = errors.New("content item not found")

// MetricErrorSentinel is written into a metric column when the external API
// returned an explicit error for the item. Classification turns any negative
// metric into the error_analyzing action.
const MetricErrorSentinel = -1

// itemSelectColumns lists content_items columns for SELECT queries.
const itemSelectColumns = `ci.id, ci.snapshot_id, ci.post_id, ci.action,
	ci.total_traffic, ci.organic_traffic, ci.total_monthly, ci.organic_monthly,
	ci.backlinks, ci.search_position, ci.is_noindex,
	ci.inactive, ci.is_excluded, ci.is_included, ci.ignore_newly, ci.is_approved_keyword,
	ci.position_need_update, ci.keywords_need_update,
	ci.keyword, ci.keyword_manual,
	ci.error_traffic, ci.error_backlinks, ci.error_position,
	ci.tries, ci.published_at, ci.created_at, ci.updated_at`

// batchOrder makes batch selection deterministic: oldest eligible first.
const batchOrder = ` ORDER BY ci.updated_at ASC, ci.post_id ASC`

// AuditItem is a content item joined with the post URL the external APIs
// need. sqlx flattens the embedded struct during scanning.
type AuditItem struct {
	domain.ContentItem
	URL string `db:"url"`
}

// MissingCounts holds per-dimension counts of items still awaiting a worker.
type MissingCounts struct {
	Traffic   int64 `db:"missing_traffic"`
	Backlinks int64 `db:"missing_backlinks"`
	Noindex   int64 `db:"missing_noindex"`
	Keywords  int64 `db:"missing_keywords"`
	Position  int64 `db:"missing_position"`
	Total     int64 `db:"total"`
}

// ItemRepository handles database operations for content items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new content item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// UpsertFromPosts bulk-inserts content items for the given posts with the
// given initial action. Re-running population is safe: on a duplicate
// (snapshot_id, post_id) the row is updated in place and stale metric fields
// from a previous audit of the same post are reset to NULL.
func (r *ItemRepository) UpsertFromPosts(
	ctx context.Context,
	snapshotID int64,
	posts []*domain.Post,
	action domain.Action,
) error {
	if len(posts) == 0 {
		return nil
	}

	const fieldsPerRow = 4
	values := make([]string, 0, len(posts))
	args := make([]any, 0, len(posts)*fieldsPerRow)
	for i, post := range posts {
		base := i * fieldsPerRow
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4,
		))
		args = append(args, snapshotID, post.ID, action, post.PublishedAt)
	}

	query := `
		INSERT INTO content_items (snapshot_id, post_id, action, published_at)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (snapshot_id, post_id) DO UPDATE SET
			action = EXCLUDED.action,
			published_at = EXCLUDED.published_at,
			total_traffic = NULL, organic_traffic = NULL,
			total_monthly = NULL, organic_monthly = NULL,
			backlinks = NULL, search_position = NULL, is_noindex = NULL,
			error_traffic = NULL, error_backlinks = NULL, error_position = NULL,
			position_need_update = TRUE, keywords_need_update = TRUE,
			inactive = FALSE, tries = 0, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert content items: %w", err)
	}

	return nil
}

// GetBySnapshotAndPost retrieves the item for one post within one snapshot.
func (r *ItemRepository) GetBySnapshotAndPost(
	ctx context.Context,
	snapshotID, postID int64,
) (*domain.ContentItem, error) {
	query := `SELECT ` + stripAlias(itemSelectColumns) + ` FROM content_items
		WHERE snapshot_id = $1 AND post_id = $2`

	var item domain.ContentItem
	if err := r.db.GetContext(ctx, &item, query, snapshotID, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	return &item, nil
}

// GetByID retrieves a content item with its post URL.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.id = $1`

	var item AuditItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	return &item, nil
}

// GetInitialBatch returns up to limit items still in an initial action,
// oldest first.
func (r *ItemRepository) GetInitialBatch(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*domain.ContentItem, error) {
	query := `SELECT ` + itemSelectColumns + ` FROM content_items ci
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)` + batchOrder + ` LIMIT $3`

	actions := pq.StringArray{
		domain.ActionAnalyzingInitial.String(),
		domain.ActionOutOfScopeInitial.String(),
	}

	var items []*domain.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, snapshotID, actions, limit); err != nil {
		return nil, fmt.Errorf("failed to get initial items: %w", err)
	}

	return items, nil
}

// ApplyPromotion writes the promotion result for one item: the transient
// action plus the flags and keyword carried forward from the previous
// snapshot's row for the same post.
func (r *ItemRepository) ApplyPromotion(ctx context.Context, item *domain.ContentItem) error {
	query := `
		UPDATE content_items
		SET action = $2, keyword = $3, keyword_manual = $4,
			is_approved_keyword = $5, is_excluded = $6, is_included = $7,
			ignore_newly = $8, keywords_need_update = $9, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx, query,
		item.ID, item.Action, item.Keyword, item.KeywordManual,
		item.IsApprovedKeyword, item.IsExcluded, item.IsIncluded,
		item.IgnoreNewly, item.KeywordsNeedUpdate,
	)
	return execRequireRows(result, err, ErrItemNotFound)
}

// analyzingActions limits worker eligibility to items being analyzed.
func analyzingActions() pq.StringArray {
	return pq.StringArray{
		domain.ActionAnalyzing.String(),
		domain.ActionOutOfScopeAnalyzing.String(),
	}
}

// GetMissingTraffic returns items whose traffic has not been fetched yet.
func (r *ItemRepository) GetMissingTraffic(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND ci.total_traffic IS NULL` + batchOrder + ` LIMIT $3`

	return r.selectAuditItems(ctx, query, snapshotID, analyzingActions(), limit)
}

// GetMissingBacklinks returns items whose backlink count is still unknown.
func (r *ItemRepository) GetMissingBacklinks(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND ci.backlinks IS NULL` + batchOrder + ` LIMIT $3`

	return r.selectAuditItems(ctx, query, snapshotID, analyzingActions(), limit)
}

// GetMissingNoindex returns items whose noindex state is still unknown.
func (r *ItemRepository) GetMissingNoindex(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND ci.is_noindex IS NULL` + batchOrder + ` LIMIT $3`

	return r.selectAuditItems(ctx, query, snapshotID, analyzingActions(), limit)
}

// GetNeedingKeywords returns items whose keyword must be (re)resolved.
func (r *ItemRepository) GetNeedingKeywords(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND (ci.keywords_need_update OR ci.keyword IS NULL)` + batchOrder + ` LIMIT $3`

	return r.selectAuditItems(ctx, query, snapshotID, analyzingActions(), limit)
}

// GetNeedingPosition returns items whose search position must be
// (re)fetched. Position depends on a resolved keyword, so items still
// awaiting their keyword are not eligible.
func (r *ItemRepository) GetNeedingPosition(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*AuditItem, error) {
	query := `SELECT ` + itemSelectColumns + `, p.url
		FROM content_items ci JOIN posts p ON p.id = ci.post_id
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND (ci.position_need_update OR ci.search_position IS NULL)
			AND NOT ci.keywords_need_update AND ci.keyword IS NOT NULL` +
		batchOrder + ` LIMIT $3`

	return r.selectAuditItems(ctx, query, snapshotID, analyzingActions(), limit)
}

func (r *ItemRepository) selectAuditItems(
	ctx context.Context,
	query string,
	args ...any,
) ([]*AuditItem, error) {
	var items []*AuditItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select audit items: %w", err)
	}
	return items, nil
}

// SetTraffic persists traffic figures for one item. Negative values are
// error sentinels; errMsg carries the diagnostic in that case.
func (r *ItemRepository) SetTraffic(
	ctx context.Context,
	itemID int64,
	total, organic, totalMonthly, organicMonthly int64,
	errMsg *string,
) error {
	query := `
		UPDATE content_items
		SET total_traffic = $2, organic_traffic = $3,
			total_monthly = $4, organic_monthly = $5,
			error_traffic = $6, tries = tries + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx, query, itemID, total, organic, totalMonthly, organicMonthly, errMsg,
	)
	return execRequireRows(result, err, ErrItemNotFound)
}

// SetBacklinks persists the backlink count for one item.
func (r *ItemRepository) SetBacklinks(
	ctx context.Context,
	itemID, count int64,
	errMsg *string,
) error {
	query := `
		UPDATE content_items
		SET backlinks = $2, error_backlinks = $3, tries = tries + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, count, errMsg)
	return execRequireRows(result, err, ErrItemNotFound)
}

// SetPosition persists the search position for one item and clears its
// position_need_update flag.
func (r *ItemRepository) SetPosition(
	ctx context.Context,
	itemID int64,
	position float64,
	errMsg *string,
) error {
	query := `
		UPDATE content_items
		SET search_position = $2, error_position = $3,
			position_need_update = FALSE, tries = tries + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, position, errMsg)
	return execRequireRows(result, err, ErrItemNotFound)
}

// SetNoindex persists the noindex tri-state for one item.
func (r *ItemRepository) SetNoindex(ctx context.Context, itemID int64, state int16) error {
	query := `
		UPDATE content_items
		SET is_noindex = $2, tries = tries + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, state)
	return execRequireRows(result, err, ErrItemNotFound)
}

// SetKeyword persists the resolved keyword for one item and clears its
// keywords_need_update flag. Changing the keyword invalidates the position.
func (r *ItemRepository) SetKeyword(
	ctx context.Context,
	itemID int64,
	keyword string,
	approved bool,
) error {
	query := `
		UPDATE content_items
		SET keyword = $2, is_approved_keyword = $3, keywords_need_update = FALSE,
			position_need_update = (keyword IS DISTINCT FROM $2),
			tries = tries + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, keyword, approved)
	return execRequireRows(result, err, ErrItemNotFound)
}

// BulkFillMissing writes the error sentinel into every still-missing value
// of one metric dimension. Used when the external account is unusable so
// classification can proceed in degraded mode instead of stalling forever.
func (r *ItemRepository) BulkFillMissing(
	ctx context.Context,
	snapshotID int64,
	dimension string,
	errMsg string,
) (int64, error) {
	var query string
	switch dimension {
	case "traffic":
		query = `UPDATE content_items
			SET total_traffic = $3, organic_traffic = $3, total_monthly = $3,
				organic_monthly = $3, error_traffic = $4, updated_at = NOW()
			WHERE snapshot_id = $1 AND action = ANY($2) AND total_traffic IS NULL`
	case "backlinks":
		query = `UPDATE content_items
			SET backlinks = $3, error_backlinks = $4, updated_at = NOW()
			WHERE snapshot_id = $1 AND action = ANY($2) AND backlinks IS NULL`
	case "noindex":
		query = `UPDATE content_items
			SET is_noindex = $3, updated_at = NOW()
			WHERE snapshot_id = $1 AND action = ANY($2) AND is_noindex IS NULL`
	case "position":
		query = `UPDATE content_items
			SET search_position = $3, error_position = $4,
				position_need_update = FALSE, updated_at = NOW()
			WHERE snapshot_id = $1 AND action = ANY($2)
				AND (position_need_update OR search_position IS NULL)`
	case "keywords":
		query = `UPDATE content_items
			SET keyword = '', keywords_need_update = FALSE,
				search_position = $3, position_need_update = FALSE,
				error_position = $4, updated_at = NOW()
			WHERE snapshot_id = $1 AND action = ANY($2)
				AND (keywords_need_update OR keyword IS NULL)`
	default:
		return 0, fmt.Errorf("unknown dimension: %s", dimension)
	}

	args := []any{snapshotID, analyzingActions(), MetricErrorSentinel}
	if dimension == "noindex" {
		args = []any{snapshotID, analyzingActions(), domain.NoindexErr}
	} else {
		args = append(args, errMsg)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk-fill %s errors: %w", dimension, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count bulk-filled rows: %w", err)
	}

	return n, nil
}

// CountMissingFields returns per-dimension counts of items still awaiting a
// worker, plus the total item count, for progress estimation.
func (r *ItemRepository) CountMissingFields(
	ctx context.Context,
	snapshotID int64,
) (*MissingCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = ANY($2) AND total_traffic IS NULL) AS missing_traffic,
			COUNT(*) FILTER (WHERE action = ANY($2) AND backlinks IS NULL) AS missing_backlinks,
			COUNT(*) FILTER (WHERE action = ANY($2) AND is_noindex IS NULL) AS missing_noindex,
			COUNT(*) FILTER (WHERE action = ANY($2)
				AND (keywords_need_update OR keyword IS NULL)) AS missing_keywords,
			COUNT(*) FILTER (WHERE action = ANY($2)
				AND (position_need_update OR search_position IS NULL)) AS missing_position,
			COUNT(*) AS total
		FROM content_items
		WHERE snapshot_id = $1
	`

	var counts MissingCounts
	if err := r.db.GetContext(ctx, &counts, query, snapshotID, analyzingActions()); err != nil {
		return nil, fmt.Errorf("failed to count missing fields: %w", err)
	}

	return &counts, nil
}

// GetPrepared returns items still in an analyzing action whose data is ready
// for classification: either every metric is present, or the item already
// carries an error or noindex signal that makes further fetching pointless.
func (r *ItemRepository) GetPrepared(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*domain.ContentItem, error) {
	query := `SELECT ` + itemSelectColumns + ` FROM content_items ci
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)
			AND (
				(ci.total_traffic IS NOT NULL AND ci.backlinks IS NOT NULL
					AND ci.is_noindex IS NOT NULL
					AND ci.keyword IS NOT NULL AND NOT ci.keywords_need_update
					AND ci.search_position IS NOT NULL AND NOT ci.position_need_update)
				OR ci.is_noindex > 0
				OR ci.is_noindex < 0
				OR ci.is_excluded
				OR COALESCE(ci.total_traffic, 0) < 0
				OR COALESCE(ci.backlinks, 0) < 0
				OR COALESCE(ci.search_position, 0) < 0
			)` + batchOrder + ` LIMIT $3`

	var items []*domain.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, snapshotID, analyzingActions(), limit); err != nil {
		return nil, fmt.Errorf("failed to get prepared items: %w", err)
	}

	return items, nil
}

// GetForFinalClassification returns items awaiting the full classification
// pass, which runs once the traffic median is known.
func (r *ItemRepository) GetForFinalClassification(
	ctx context.Context,
	snapshotID int64,
	limit int,
) ([]*domain.ContentItem, error) {
	query := `SELECT ` + itemSelectColumns + ` FROM content_items ci
		WHERE ci.snapshot_id = $1 AND ci.action = ANY($2)` + batchOrder + ` LIMIT $3`

	actions := pq.StringArray{
		domain.ActionAnalyzingFinal.String(),
		domain.ActionOutOfScopeAnalyzing.String(),
	}

	var items []*domain.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, snapshotID, actions, limit); err != nil {
		return nil, fmt.Errorf("failed to get items for final classification: %w", err)
	}

	return items, nil
}

// SetAction writes a classification outcome for one item.
func (r *ItemRepository) SetAction(
	ctx context.Context,
	itemID int64,
	action domain.Action,
	inactive bool,
) error {
	query := `UPDATE content_items
		SET action = $2, inactive = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, itemID, action, inactive)
	return execRequireRows(result, err, ErrItemNotFound)
}

// HasUnprocessed reports whether any item in the snapshot is still in a
// transient action.
func (r *ItemRepository) HasUnprocessed(ctx context.Context, snapshotID int64) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM content_items WHERE snapshot_id = $1 AND action = ANY($2)
	)`

	actions := pq.StringArray{
		domain.ActionAnalyzingInitial.String(),
		domain.ActionOutOfScopeInitial.String(),
		domain.ActionAnalyzing.String(),
		domain.ActionOutOfScopeAnalyzing.String(),
		domain.ActionAnalyzingFinal.String(),
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, snapshotID, actions); err != nil {
		return false, fmt.Errorf("failed to check unprocessed items: %w", err)
	}

	return exists, nil
}

// TrafficValuesForMedian returns the monthly total traffic of every item that
// participates in the median: value present and non-negative, in scope,
// active and not excluded.
func (r *ItemRepository) TrafficValuesForMedian(
	ctx context.Context,
	snapshotID int64,
) ([]int64, error) {
	query := `SELECT total_monthly FROM content_items
		WHERE snapshot_id = $1
			AND total_monthly IS NOT NULL AND total_monthly >= 0
			AND NOT inactive AND NOT is_excluded
			AND NOT (action = ANY($2))
		ORDER BY total_monthly ASC`

	outOfScope := pq.StringArray{
		domain.ActionOutOfScope.String(),
		domain.ActionOutOfScopeInitial.String(),
		domain.ActionOutOfScopeAnalyzing.String(),
	}

	var values []int64
	if err := r.db.SelectContext(ctx, &values, query, snapshotID, outOfScope); err != nil {
		return nil, fmt.Errorf("failed to select traffic values: %w", err)
	}

	return values, nil
}

// FindActiveByKeyword returns active items (excluding the given post) whose
// effective keyword matches, ordered by monthly traffic descending. Used for
// merge-vs-update decisions and the keyword collision cascade.
func (r *ItemRepository) FindActiveByKeyword(
	ctx context.Context,
	snapshotID int64,
	keyword string,
	excludePostID int64,
	limit int,
) ([]*domain.ContentItem, error) {
	query := `SELECT ` + itemSelectColumns + ` FROM content_items ci
		WHERE ci.snapshot_id = $1
			AND ci.post_id <> $2
			AND COALESCE(NULLIF(ci.keyword_manual, ''), ci.keyword) = $3
			AND ci.action = ANY($4)
			AND NOT ci.inactive AND NOT ci.is_excluded
		ORDER BY ci.total_monthly DESC NULLS LAST, ci.post_id ASC
		LIMIT $5`

	active := make(pq.StringArray, 0, len(domain.ActiveStatuses()))
	for _, a := range domain.ActiveStatuses() {
		active = append(active, a.String())
	}

	var items []*domain.ContentItem
	err := r.db.SelectContext(ctx, &items, query, snapshotID, excludePostID, keyword, active, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find items by keyword: %w", err)
	}

	return items, nil
}

// MarkIncluded upserts a manual inclusion: the item is forced into the audit
// scope and fully reset so the next update pass re-analyzes it from scratch.
// This is also the user-facing "retry" for error_analyzing items.
func (r *ItemRepository) MarkIncluded(ctx context.Context, snapshotID, postID int64) error {
	return r.upsertManual(ctx, snapshotID, postID, true)
}

// MarkExcluded upserts a manual exclusion. The item is reset and re-analyzed;
// classification resolves the exclusion flag to the manually_excluded action.
func (r *ItemRepository) MarkExcluded(ctx context.Context, snapshotID, postID int64) error {
	return r.upsertManual(ctx, snapshotID, postID, false)
}

func (r *ItemRepository) upsertManual(
	ctx context.Context,
	snapshotID, postID int64,
	included bool,
) error {
	query := `
		INSERT INTO content_items
			(snapshot_id, post_id, action, is_included, is_excluded, published_at)
		SELECT $1, $2, $3, $4, $5, p.published_at FROM posts p WHERE p.id = $2
		ON CONFLICT (snapshot_id, post_id) DO UPDATE SET
			action = EXCLUDED.action,
			is_included = EXCLUDED.is_included,
			is_excluded = EXCLUDED.is_excluded,
			total_traffic = NULL, organic_traffic = NULL,
			total_monthly = NULL, organic_monthly = NULL,
			backlinks = NULL, search_position = NULL, is_noindex = NULL,
			error_traffic = NULL, error_backlinks = NULL, error_position = NULL,
			position_need_update = TRUE, keywords_need_update = TRUE,
			inactive = FALSE, tries = 0, updated_at = NOW()
	`

	result, err := r.db.ExecContext(
		ctx, query, snapshotID, postID, domain.ActionAnalyzingInitial, included, !included,
	)
	return execRequireRows(result, err, fmt.Errorf("post not found: %d", postID))
}

// DeleteByPost removes the post's audit rows from every snapshot. Called
// when the underlying post is unpublished or trashed.
func (r *ItemRepository) DeleteByPost(ctx context.Context, postID int64) (int64, error) {
	query := `DELETE FROM content_items WHERE post_id = $1`

	result, err := r.db.ExecContext(ctx, query, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items for post %d: %w", postID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted items: %w", err)
	}

	return n, nil
}

// List returns items from one snapshot, optionally filtered by action, for
// the API listing.
func (r *ItemRepository) List(
	ctx context.Context,
	snapshotID int64,
	action domain.Action,
	limit, offset int,
) ([]*AuditItem, error) {
	var query string
	var args []any

	if action != "" {
		query = `SELECT ` + itemSelectColumns + `, p.url
			FROM content_items ci JOIN posts p ON p.id = ci.post_id
			WHERE ci.snapshot_id = $1 AND ci.action = $2
			ORDER BY ci.post_id ASC LIMIT $3 OFFSET $4`
		args = []any{snapshotID, action, limit, offset}
	} else {
		query = `SELECT ` + itemSelectColumns + `, p.url
			FROM content_items ci JOIN posts p ON p.id = ci.post_id
			WHERE ci.snapshot_id = $1
			ORDER BY ci.post_id ASC LIMIT $2 OFFSET $3`
		args = []any{snapshotID, limit, offset}
	}

	items, err := r.selectAuditItems(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*AuditItem{}
	}

	return items, nil
}

// stripAlias removes the "ci." table alias for unjoined queries.
func stripAlias(columns string) string {
	return strings.ReplaceAll(columns, "ci.", "")
}
