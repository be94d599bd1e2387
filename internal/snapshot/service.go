// Package snapshot manages the audit snapshot lifecycle: resolving the
// current snapshot, starting new audit generations, populating them from the
// published content, and promoting a finished generation to current.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/redis"
)

const (
	// resolveLockName guards first-snapshot creation so concurrent
	// requests cannot race a duplicate generation into existence.
	resolveLockName = "snapshot_resolve"
	resolveLockTTL  = 10 * time.Second
	resolveLockWait = 5 * time.Second

	// populatePageSize bounds each population page read from the posts
	// table.
	populatePageSize = 100
)

// Scope describes which published content the audit analyzes. Everything
// published but out of scope is still recorded, with an out-of-scope action,
// so the report can show the full site.
type Scope struct {
	// PagesEnabled turns page auditing on. SelectedPageIDs narrows it to
	// an explicit selection; with no selection every page is out of scope.
	PagesEnabled    bool
	SelectedPageIDs []int64

	// PostsEnabled turns post auditing on. SelectedCategories narrows it to
	// an explicit selection; with no selection every post is out of scope.
	PostsEnabled       bool
	SelectedCategories []string
}

// pageInScope reports whether a published page is audited.
func (s Scope) pageInScope(postID int64) bool {
	if !s.PagesEnabled {
		return false
	}
	for _, id := range s.SelectedPageIDs {
		if id == postID {
			return true
		}
	}
	return false
}

// postInScope reports whether a published post is audited.
func (s Scope) postInScope(category *string) bool {
	if !s.PostsEnabled || category == nil {
		return false
	}
	for _, c := range s.SelectedCategories {
		if c == *category {
			return true
		}
	}
	return false
}

// Service is the snapshot lifecycle manager.
type Service struct {
	snapshots database.SnapshotRepositoryInterface
	items     database.ItemRepositoryInterface
	posts     database.PostRepositoryInterface
	locker    *redis.Locker
	median    *redis.MedianCache
	scope     Scope
	log       logger.Interface

	now func() time.Time
}

// NewService creates the snapshot service.
func NewService(
	snapshots database.SnapshotRepositoryInterface,
	items database.ItemRepositoryInterface,
	posts database.PostRepositoryInterface,
	locker *redis.Locker,
	median *redis.MedianCache,
	scope Scope,
	log logger.Interface,
) *Service {
	return &Service{
		snapshots: snapshots,
		items:     items,
		posts:     posts,
		locker:    locker,
		median:    median,
		scope:     scope,
		log:       log.WithComponent("snapshot"),
		now:       time.Now,
	}
}

// GetCurrentSnapshotID resolves the snapshot the UI should read: the current
// one, else the latest of any status, else a freshly created first
// generation. Creation is serialized through a short redis lock.
func (s *Service) GetCurrentSnapshotID(ctx context.Context) (int64, error) {
	if id, ok, err := s.lookupExisting(ctx); err != nil || ok {
		return id, err
	}

	token, acquired, err := s.locker.AcquireWait(ctx, resolveLockName, resolveLockTTL, resolveLockWait)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, fmt.Errorf("failed to acquire snapshot resolve lock")
	}
	defer func() {
		if releaseErr := s.locker.Release(ctx, resolveLockName, token); releaseErr != nil {
			s.log.Warn("failed to release snapshot resolve lock", "error", releaseErr)
		}
	}()

	// Re-check under the lock; a concurrent caller may have created one
	// while we waited.
	if id, ok, lookupErr := s.lookupExisting(ctx); lookupErr != nil || ok {
		return id, lookupErr
	}

	return s.CreateNewSnapshot(ctx, false)
}

func (s *Service) lookupExisting(ctx context.Context) (int64, bool, error) {
	current, err := s.snapshots.GetCurrent(ctx)
	if err == nil {
		return current.ID, true, nil
	}
	if !errors.Is(err, database.ErrSnapshotNotFound) {
		return 0, false, fmt.Errorf("failed to look up current snapshot: %w", err)
	}

	latest, err := s.snapshots.GetLatest(ctx)
	if err == nil {
		return latest.ID, true, nil
	}
	if !errors.Is(err, database.ErrSnapshotNotFound) {
		return 0, false, fmt.Errorf("failed to look up latest snapshot: %w", err)
	}

	return 0, false, nil
}

// CreateNewSnapshot starts a new audit generation, unless one is already in
// flight, in which case its id is returned and nothing changes. The new
// snapshot is populated from the published content and flagged for
// processing.
func (s *Service) CreateNewSnapshot(ctx context.Context, isScheduled bool) (int64, error) {
	existing, err := s.snapshots.GetNew(ctx)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, database.ErrSnapshotNotFound) {
		return 0, fmt.Errorf("failed to check for in-flight snapshot: %w", err)
	}

	snapshotType := domain.SnapshotTypeManual
	if isScheduled {
		snapshotType = domain.SnapshotTypeScheduled
	}

	snap := &domain.Snapshot{
		Status:    domain.SnapshotStatusNew,
		Type:      snapshotType,
		TimeStart: s.now(),
	}
	if createErr := s.snapshots.Create(ctx, snap); createErr != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", createErr)
	}

	s.log.Info("snapshot created", "snapshot_id", snap.ID, "type", string(snapshotType))

	if popErr := s.Populate(ctx, snap.ID); popErr != nil {
		return 0, popErr
	}

	if updErr := s.snapshots.SetRequireUpdate(ctx, snap.ID, true); updErr != nil {
		return 0, fmt.Errorf("failed to flag snapshot for processing: %w", updErr)
	}

	return snap.ID, nil
}

// Populate upserts one content item per published post and page into the
// snapshot. Population is re-runnable: existing rows are reset rather than
// duplicated, which is how an interrupted creation recovers.
func (s *Service) Populate(ctx context.Context, snapshotID int64) error {
	total := 0

	for _, postType := range []domain.PostType{domain.PostTypePage, domain.PostTypePost} {
		count, err := s.populateType(ctx, snapshotID, postType)
		if err != nil {
			return err
		}
		total += count
	}

	s.log.Info("snapshot populated", "snapshot_id", snapshotID, "items", total)
	return nil
}

func (s *Service) populateType(ctx context.Context, snapshotID int64, postType domain.PostType) (int, error) {
	total := 0

	for offset := 0; ; offset += populatePageSize {
		page, err := s.posts.ListPublished(ctx, postType, populatePageSize, offset)
		if err != nil {
			return total, fmt.Errorf("failed to list published %ss: %w", postType, err)
		}
		if len(page) == 0 {
			return total, nil
		}

		var inScope, outOfScope []*domain.Post
		for _, post := range page {
			if s.inScope(post) {
				inScope = append(inScope, post)
			} else {
				outOfScope = append(outOfScope, post)
			}
		}

		if len(inScope) > 0 {
			if err := s.items.UpsertFromPosts(ctx, snapshotID, inScope, domain.ActionAnalyzingInitial); err != nil {
				return total, fmt.Errorf("failed to upsert in-scope items: %w", err)
			}
		}
		if len(outOfScope) > 0 {
			if err := s.items.UpsertFromPosts(ctx, snapshotID, outOfScope, domain.ActionOutOfScopeInitial); err != nil {
				return total, fmt.Errorf("failed to upsert out-of-scope items: %w", err)
			}
		}

		total += len(page)
		if len(page) < populatePageSize {
			return total, nil
		}
	}
}

func (s *Service) inScope(post *domain.Post) bool {
	if post.PostType == domain.PostTypePage {
		return s.scope.pageInScope(post.ID)
	}
	return s.scope.postInScope(post.Category)
}

// SetFinished completes a snapshot. The in-flight generation is atomically
// promoted to current (demoting the previous current to old); anything else
// just has its processing flag cleared.
func (s *Service) SetFinished(ctx context.Context, snapshotID int64) error {
	snap, err := s.snapshots.GetByID(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("failed to load snapshot %d: %w", snapshotID, err)
	}

	if snap.Status != domain.SnapshotStatusNew {
		if updErr := s.snapshots.SetRequireUpdate(ctx, snapshotID, false); updErr != nil {
			return fmt.Errorf("failed to clear processing flag: %w", updErr)
		}
		return nil
	}

	if promoteErr := s.snapshots.PromoteToCurrent(ctx, snapshotID, snap.FinishedType()); promoteErr != nil {
		return fmt.Errorf("failed to promote snapshot %d: %w", snapshotID, promoteErr)
	}

	if cacheErr := s.median.Invalidate(ctx, snapshotID); cacheErr != nil {
		s.log.Warn("failed to invalidate cached median", "snapshot_id", snapshotID, "error", cacheErr)
	}

	s.log.Info("snapshot finished", "snapshot_id", snapshotID, "type", string(snap.FinishedType()))
	return nil
}

// GetTrafficMedian returns the snapshot's persisted traffic median, serving
// repeat reads from the short-TTL cache. The boolean is false when no median
// has been computed yet.
func (s *Service) GetTrafficMedian(ctx context.Context, snapshotID int64) (float64, bool, error) {
	if median, ok, err := s.median.Get(ctx, snapshotID); err == nil && ok {
		return median, true, nil
	} else if err != nil {
		s.log.Warn("median cache read failed", "snapshot_id", snapshotID, "error", err)
	}

	median, err := s.snapshots.GetTrafficMedian(ctx, snapshotID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read traffic median: %w", err)
	}
	if median == nil {
		return 0, false, nil
	}

	if cacheErr := s.median.Set(ctx, snapshotID, *median); cacheErr != nil {
		s.log.Warn("median cache write failed", "snapshot_id", snapshotID, "error", cacheErr)
	}

	return *median, true, nil
}

// SetTrafficMedian persists the median and refreshes the cache.
func (s *Service) SetTrafficMedian(ctx context.Context, snapshotID int64, median float64) error {
	if err := s.snapshots.SetTrafficMedian(ctx, snapshotID, median); err != nil {
		return fmt.Errorf("failed to store traffic median: %w", err)
	}
	if cacheErr := s.median.Set(ctx, snapshotID, median); cacheErr != nil {
		s.log.Warn("median cache write failed", "snapshot_id", snapshotID, "error", cacheErr)
	}
	return nil
}

// SetNowFunc overrides the clock. Tests only.
func (s *Service) SetNowFunc(now func() time.Time) { s.now = now }
