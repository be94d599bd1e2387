package domain

import (
	"time"
)

// PositionMax is the sentinel position recorded when the search API reports
// the page is not ranking for its keyword at all. Any negative position
// means the lookup itself failed.
const PositionMax = 1000000

// Noindex tri-state values stored in ContentItem.IsNoindex. A nil pointer
// means the page has not been checked yet; negative values mean the check
// failed.
const (
	NoindexNo  int16 = 0
	NoindexYes int16 = 1
	NoindexErr int16 = -1
)

// ContentItem is the per-post audit record within one snapshot. The
// (SnapshotID, PostID) pair is unique. Metric fields are nil until the
// corresponding worker has filled them; re-writing the same computed value is
// harmless, which is what makes interrupted audit runs resumable.
type ContentItem struct {
	ID         int64 `db:"id" json:"id"`
	SnapshotID int64 `db:"snapshot_id" json:"snapshot_id"`
	PostID     int64 `db:"post_id" json:"post_id"`

	Action Action `db:"action" json:"action"`

	// Traffic metrics. Total/organic sessions since publication and the
	// monthly averages derived from them. Negative values are error
	// sentinels written by the traffic worker.
	TotalTraffic   *int64   `db:"total_traffic" json:"total_traffic,omitempty"`
	OrganicTraffic *int64   `db:"organic_traffic" json:"organic_traffic,omitempty"`
	TotalMonthly   *int64   `db:"total_monthly" json:"total_monthly,omitempty"`
	OrganicMonthly *int64   `db:"organic_monthly" json:"organic_monthly,omitempty"`
	Backlinks      *int64   `db:"backlinks" json:"backlinks,omitempty"`
	Position       *float64 `db:"search_position" json:"position,omitempty"`
	IsNoindex      *int16   `db:"is_noindex" json:"is_noindex,omitempty"`

	// Flags.
	Inactive          bool `db:"inactive" json:"inactive"`
	IsExcluded        bool `db:"is_excluded" json:"is_excluded"`
	IsIncluded        bool `db:"is_included" json:"is_included"`
	IgnoreNewly       bool `db:"ignore_newly" json:"ignore_newly"`
	IsApprovedKeyword bool `db:"is_approved_keyword" json:"is_approved_keyword"`

	// Update flags driving worker selection.
	PositionNeedUpdate bool `db:"position_need_update" json:"position_need_update"`
	KeywordsNeedUpdate bool `db:"keywords_need_update" json:"keywords_need_update"`

	Keyword       *string `db:"keyword" json:"keyword,omitempty"`
	KeywordManual *string `db:"keyword_manual" json:"keyword_manual,omitempty"`

	// Per-dimension diagnostics written alongside the error sentinels.
	ErrorTraffic   *string `db:"error_traffic" json:"error_traffic,omitempty"`
	ErrorBacklinks *string `db:"error_backlinks" json:"error_backlinks,omitempty"`
	ErrorPosition  *string `db:"error_position" json:"error_position,omitempty"`

	Tries       int        `db:"tries" json:"tries"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveKeyword returns the manual keyword when one is set, otherwise the
// detected keyword. Empty string when neither is known.
func (i *ContentItem) EffectiveKeyword() string {
	if i.KeywordManual != nil && *i.KeywordManual != "" {
		return *i.KeywordManual
	}
	if i.Keyword != nil {
		return *i.Keyword
	}
	return ""
}

// HasAllMetrics reports whether every worker dimension has produced a value
// (including error sentinels). Items with all metrics present are "prepared"
// and eligible for classification.
func (i *ContentItem) HasAllMetrics() bool {
	if i.TotalTraffic == nil || i.Backlinks == nil || i.IsNoindex == nil {
		return false
	}
	if i.KeywordsNeedUpdate || i.Keyword == nil {
		return false
	}
	if i.PositionNeedUpdate || i.Position == nil {
		return false
	}
	return true
}

// MetricError reports whether any metric carries an error sentinel.
func (i *ContentItem) MetricError() bool {
	if i.TotalTraffic != nil && *i.TotalTraffic < 0 {
		return true
	}
	if i.OrganicTraffic != nil && *i.OrganicTraffic < 0 {
		return true
	}
	if i.Backlinks != nil && *i.Backlinks < 0 {
		return true
	}
	if i.Position != nil && *i.Position < 0 {
		return true
	}
	if i.IsNoindex != nil && *i.IsNoindex < 0 {
		return true
	}
	return false
}
