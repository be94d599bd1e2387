package database

import (
	"context"

	"github.com/jonesrussell/seo-audit/internal/domain"
)

// SnapshotRepositoryInterface defines the contract for snapshot data access.
type SnapshotRepositoryInterface interface {
	Create(ctx context.Context, snapshot *domain.Snapshot) error
	GetByID(ctx context.Context, id int64) (*domain.Snapshot, error)
	GetByStatus(ctx context.Context, status domain.SnapshotStatus) (*domain.Snapshot, error)
	GetNew(ctx context.Context) (*domain.Snapshot, error)
	GetCurrent(ctx context.Context) (*domain.Snapshot, error)
	GetLatest(ctx context.Context) (*domain.Snapshot, error)
	PromoteToCurrent(ctx context.Context, id int64, finishedType domain.SnapshotType) error
	SetTrafficMedian(ctx context.Context, id int64, median float64) error
	GetTrafficMedian(ctx context.Context, id int64) (*float64, error)
	SetRequireUpdate(ctx context.Context, id int64, require bool) error
	SetType(ctx context.Context, id int64, snapshotType domain.SnapshotType) error
}

// ItemRepositoryInterface defines the contract for content item data access.
type ItemRepositoryInterface interface {
	// Population and manual intervention
	UpsertFromPosts(ctx context.Context, snapshotID int64, posts []*domain.Post, action domain.Action) error
	MarkIncluded(ctx context.Context, snapshotID, postID int64) error
	MarkExcluded(ctx context.Context, snapshotID, postID int64) error
	DeleteByPost(ctx context.Context, postID int64) (int64, error)

	// Lookups
	GetBySnapshotAndPost(ctx context.Context, snapshotID, postID int64) (*domain.ContentItem, error)
	GetByID(ctx context.Context, id int64) (*AuditItem, error)
	List(ctx context.Context, snapshotID int64, action domain.Action, limit, offset int) ([]*AuditItem, error)

	// State machine batches
	GetInitialBatch(ctx context.Context, snapshotID int64, limit int) ([]*domain.ContentItem, error)
	ApplyPromotion(ctx context.Context, item *domain.ContentItem) error
	GetPrepared(ctx context.Context, snapshotID int64, limit int) ([]*domain.ContentItem, error)
	GetForFinalClassification(ctx context.Context, snapshotID int64, limit int) ([]*domain.ContentItem, error)
	SetAction(ctx context.Context, itemID int64, action domain.Action, inactive bool) error
	HasUnprocessed(ctx context.Context, snapshotID int64) (bool, error)
	CountMissingFields(ctx context.Context, snapshotID int64) (*MissingCounts, error)

	// Worker selection
	GetMissingTraffic(ctx context.Context, snapshotID int64, limit int) ([]*AuditItem, error)
	GetMissingBacklinks(ctx context.Context, snapshotID int64, limit int) ([]*AuditItem, error)
	GetMissingNoindex(ctx context.Context, snapshotID int64, limit int) ([]*AuditItem, error)
	GetNeedingKeywords(ctx context.Context, snapshotID int64, limit int) ([]*AuditItem, error)
	GetNeedingPosition(ctx context.Context, snapshotID int64, limit int) ([]*AuditItem, error)

	// Worker persistence
	SetTraffic(ctx context.Context, itemID int64, total, organic, totalMonthly, organicMonthly int64, errMsg *string) error
	SetBacklinks(ctx context.Context, itemID, count int64, errMsg *string) error
	SetPosition(ctx context.Context, itemID int64, position float64, errMsg *string) error
	SetNoindex(ctx context.Context, itemID int64, state int16) error
	SetKeyword(ctx context.Context, itemID int64, keyword string, approved bool) error
	BulkFillMissing(ctx context.Context, snapshotID int64, dimension, errMsg string) (int64, error)

	// Analytics
	TrafficValuesForMedian(ctx context.Context, snapshotID int64) ([]int64, error)
	FindActiveByKeyword(ctx context.Context, snapshotID int64, keyword string, excludePostID int64, limit int) ([]*domain.ContentItem, error)
}

// PostRepositoryInterface defines the contract for post data access.
type PostRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	ListPublished(ctx context.Context, postType domain.PostType, limit, offset int) ([]*domain.Post, error)
}

// Compile-time interface checks.
var (
	_ SnapshotRepositoryInterface = (*SnapshotRepository)(nil)
	_ ItemRepositoryInterface     = (*ItemRepository)(nil)
	_ PostRepositoryInterface     = (*PostRepository)(nil)
)
