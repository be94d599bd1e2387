package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/metrics"
	"github.com/jonesrussell/seo-audit/internal/redis"
	"github.com/jonesrussell/seo-audit/internal/worker"
)

const (
	// updateLockName is the exclusive-execution lock: two invocations must
	// never run the update loop concurrently, or worker batches would
	// double-bill external API quota.
	updateLockName = "update_table"

	// updateLockGrace pads the lock TTL past the processing window so the
	// lock outlives a slow final mutation but still expires if the holder
	// crashes.
	updateLockGrace = 10 * time.Second

	// promoteBatchSize bounds one promotion batch.
	promoteBatchSize = 50

	// classifyBatchSize bounds one inactive-only classification batch.
	classifyBatchSize = 50
)

// SnapshotLifecycle is the slice of the snapshot service the orchestrator
// drives.
type SnapshotLifecycle interface {
	CreateNewSnapshot(ctx context.Context, isScheduled bool) (int64, error)
	SetFinished(ctx context.Context, snapshotID int64) error
	GetTrafficMedian(ctx context.Context, snapshotID int64) (float64, bool, error)
	SetTrafficMedian(ctx context.Context, snapshotID int64, median float64) error
}

// Status is the audit state surfaced to the poller and the HTTP API.
type Status struct {
	SnapshotID          int64      `json:"snapshot_id"`
	RequireUpdate       bool       `json:"require_update"`
	HasUnprocessedItems bool       `json:"has_unprocessed_items"`
	UnprocessedPercent  float64    `json:"unprocessed_percent"`
	WaitingSeconds      float64    `json:"waiting_seconds"`
	Paused              bool       `json:"paused"`
	PausedReason        string     `json:"paused_reason,omitempty"`
	TrafficMedian       *float64   `json:"traffic_median,omitempty"`
	LastFinishedAt      *time.Time `json:"last_finished_at,omitempty"`
}

// Orchestrator drives the audit update loop: promotion, the five workers,
// the median and the classification passes. Every invocation is bounded by
// an explicit deadline and resumes from persisted state, so the loop is safe
// to call repeatedly from the poller and from web requests alike.
type Orchestrator struct {
	snapshots  database.SnapshotRepositoryInterface
	items      database.ItemRepositoryInterface
	lifecycle  SnapshotLifecycle
	workers    []worker.Interface
	classifier *Classifier
	locker     *redis.Locker
	pause      *redis.PauseState
	metrics    *metrics.Metrics
	log        logger.Interface

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewOrchestrator creates the orchestrator. Workers run in the given order
// each round.
func NewOrchestrator(
	snapshots database.SnapshotRepositoryInterface,
	items database.ItemRepositoryInterface,
	lifecycle SnapshotLifecycle,
	workers []worker.Interface,
	classifier *Classifier,
	locker *redis.Locker,
	pause *redis.PauseState,
	m *metrics.Metrics,
	log logger.Interface,
) *Orchestrator {
	return &Orchestrator{
		snapshots:  snapshots,
		items:      items,
		lifecycle:  lifecycle,
		workers:    workers,
		classifier: classifier,
		locker:     locker,
		pause:      pause,
		metrics:    m,
		log:        log.WithComponent("orchestrator"),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// StartAudit begins a new audit generation (or returns the one already in
// flight).
func (o *Orchestrator) StartAudit(ctx context.Context, isScheduled bool) (int64, error) {
	snapshotType := domain.SnapshotTypeManual
	if isScheduled {
		snapshotType = domain.SnapshotTypeScheduled
	}

	id, err := o.lifecycle.CreateNewSnapshot(ctx, isScheduled)
	if err != nil {
		return 0, err
	}

	o.metrics.RecordSnapshotStarted(string(snapshotType))
	o.log.Info("audit started", "snapshot_id", id, "type", string(snapshotType))
	return id, nil
}

// UpdateTable runs one bounded slice of the audit: promote initial items,
// run the workers while fields are missing, then the classification passes,
// and finally promote the snapshot when nothing remains. Returns whether
// more work remains. A held lock or the audit-level pause flag makes the
// call a no-op.
func (o *Orchestrator) UpdateTable(ctx context.Context, runFromCron bool) (moreWork bool, err error) {
	trigger, window := "web", DefaultWindow
	if runFromCron {
		trigger, window = "cron", CronWindow
	}

	if reason, paused, pauseErr := o.pause.Paused(ctx); pauseErr != nil {
		return false, pauseErr
	} else if paused {
		o.log.Info("audit paused, skipping update", "reason", reason)
		return false, nil
	}

	snap, err := o.processableSnapshot(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	token, acquired, err := o.locker.Acquire(ctx, updateLockName, window+updateLockGrace)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if releaseErr := o.locker.Release(ctx, updateLockName, token); releaseErr != nil {
			o.log.Warn("failed to release update lock", "error", releaseErr)
		}
	}()

	started := o.now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("update loop panicked", "panic", fmt.Sprintf("%v", r))
			moreWork, err = true, fmt.Errorf("update loop panicked: %v", r)
		}
		if err != nil {
			o.metrics.RecordUpdateError()
		}
		o.metrics.RecordUpdateRun(trigger, moreWork, o.now().Sub(started).Seconds())
	}()

	deadline := newDeadlineAt(window, o.now)
	return o.run(ctx, snap.ID, deadline)
}

// processableSnapshot picks what the update loop works on: the in-flight
// generation, or the current snapshot when manual intervention flagged it
// for reanalysis. Nil when there is nothing to do.
func (o *Orchestrator) processableSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := o.snapshots.GetNew(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, database.ErrSnapshotNotFound) {
		return nil, fmt.Errorf("failed to look up in-flight snapshot: %w", err)
	}

	current, err := o.snapshots.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, database.ErrSnapshotNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up current snapshot: %w", err)
	}
	if !current.RequireUpdate {
		return nil, nil
	}
	return current, nil
}

// run executes the update steps in order. Each step reports whether it ran
// out of budget; persisted state carries the loop across invocations.
func (o *Orchestrator) run(ctx context.Context, snapshotID int64, deadline Deadline) (bool, error) {
	if more, err := o.promoteInitial(ctx, snapshotID, deadline); more || err != nil {
		return true, err
	}

	if more, err := o.runWorkers(ctx, snapshotID, deadline); more || err != nil {
		return true, err
	}

	if more, err := o.classifyPrepared(ctx, snapshotID, deadline); more || err != nil {
		return true, err
	}

	median, err := o.ensureMedian(ctx, snapshotID)
	if err != nil {
		return true, err
	}

	if more, classifyErr := o.classifyFinal(ctx, snapshotID, median, deadline); more || classifyErr != nil {
		return true, classifyErr
	}

	return o.finish(ctx, snapshotID)
}

// promoteInitial moves freshly populated items into their analyzing action,
// carrying keywords and manual flags forward from the current snapshot's row
// for the same post.
func (o *Orchestrator) promoteInitial(ctx context.Context, snapshotID int64, deadline Deadline) (bool, error) {
	currentID := int64(0)
	current, err := o.snapshots.GetCurrent(ctx)
	if err == nil && current.ID != snapshotID {
		currentID = current.ID
	} else if err != nil && !errors.Is(err, database.ErrSnapshotNotFound) {
		return true, fmt.Errorf("failed to look up current snapshot: %w", err)
	}

	for {
		if deadline.Exceeded() {
			return true, nil
		}

		batch, batchErr := o.items.GetInitialBatch(ctx, snapshotID, promoteBatchSize)
		if batchErr != nil {
			return true, batchErr
		}
		if len(batch) == 0 {
			return false, nil
		}

		for _, item := range batch {
			if promoteErr := o.promoteItem(ctx, currentID, item); promoteErr != nil {
				return true, promoteErr
			}
		}
	}
}

func (o *Orchestrator) promoteItem(ctx context.Context, currentID int64, item *domain.ContentItem) error {
	if currentID != 0 {
		prev, err := o.items.GetBySnapshotAndPost(ctx, currentID, item.PostID)
		if err == nil {
			item.Keyword = prev.Keyword
			item.KeywordManual = prev.KeywordManual
			item.IsApprovedKeyword = prev.IsApprovedKeyword
			// A mid-audit include/exclude already stamped this row; the
			// prior generation's flags must not clobber that decision.
			if !item.IsExcluded && !item.IsIncluded {
				item.IsExcluded = prev.IsExcluded
				item.IsIncluded = prev.IsIncluded
			}
			item.IgnoreNewly = prev.IgnoreNewly
		} else if !errors.Is(err, database.ErrItemNotFound) {
			return fmt.Errorf("failed to load prior item for post %d: %w", item.PostID, err)
		}
	}

	// Manual flags override the populated scope.
	switch {
	case item.IsExcluded:
		item.Action = domain.ActionOutOfScopeAnalyzing
	case item.IsIncluded:
		item.Action = domain.ActionAnalyzing
	case item.Action == domain.ActionOutOfScopeInitial:
		item.Action = domain.ActionOutOfScopeAnalyzing
	default:
		item.Action = domain.ActionAnalyzing
	}

	item.KeywordsNeedUpdate = item.Keyword == nil

	return o.items.ApplyPromotion(ctx, item)
}

// runWorkers rounds the five workers until no fields are missing or the
// budget runs out. When every worker stalls but one has a wake time within
// the remaining budget, the loop sleeps until that wake instead of burning
// an invocation.
func (o *Orchestrator) runWorkers(ctx context.Context, snapshotID int64, deadline Deadline) (bool, error) {
	for {
		if deadline.Exceeded() {
			return true, nil
		}

		counts, err := o.items.CountMissingFields(ctx, snapshotID)
		if err != nil {
			return true, err
		}
		o.metrics.SetUnprocessedPercent(UnprocessedPercent(counts))

		if counts.Traffic+counts.Backlinks+counts.Noindex+counts.Keywords+counts.Position == 0 {
			return false, nil
		}

		progressed := false
		for _, w := range o.workers {
			if deadline.Exceeded() {
				return true, nil
			}

			workerProgressed, execErr := w.Execute(ctx, snapshotID)
			o.metrics.RecordWorkerBatch(w.Name(), workerProgressed)
			if execErr != nil {
				o.metrics.RecordWorkerError(w.Name())
				o.log.Error("worker failed", "worker", w.Name(), "error", execErr)
				continue
			}
			progressed = progressed || workerProgressed
		}
		if progressed {
			continue
		}

		wake, ok := o.soonestWake()
		if ok && wake < deadline.Remaining() {
			o.sleep(ctx, wake)
			continue
		}
		return true, nil
	}
}

// soonestWake returns the shortest known wait among the workers that are
// currently paused.
func (o *Orchestrator) soonestWake() (time.Duration, bool) {
	var soonest time.Duration
	found := false
	for _, w := range o.workers {
		seconds, waiting := w.WaitingSeconds()
		if !waiting {
			continue
		}
		wait := time.Duration(seconds * float64(time.Second))
		if !found || wait < soonest {
			soonest, found = wait, true
		}
	}
	return soonest, found
}

// classifyPrepared resolves inactive outcomes as soon as items are prepared,
// deferring active items to the final pass so the median covers them all.
func (o *Orchestrator) classifyPrepared(ctx context.Context, snapshotID int64, deadline Deadline) (bool, error) {
	for {
		if deadline.Exceeded() {
			return true, nil
		}

		batch, err := o.items.GetPrepared(ctx, snapshotID, classifyBatchSize)
		if err != nil {
			return true, err
		}
		if len(batch) == 0 {
			return false, nil
		}

		for _, item := range batch {
			if deadline.Exceeded() {
				return true, nil
			}
			if classifyErr := o.classifier.ClassifyInactiveOnly(ctx, item); classifyErr != nil {
				return true, classifyErr
			}
		}
	}
}

// ensureMedian computes and persists the snapshot's traffic median if it has
// not been computed yet.
func (o *Orchestrator) ensureMedian(ctx context.Context, snapshotID int64) (float64, error) {
	median, known, err := o.lifecycle.GetTrafficMedian(ctx, snapshotID)
	if err != nil {
		return 0, err
	}
	if known {
		return median, nil
	}

	values, err := o.items.TrafficValuesForMedian(ctx, snapshotID)
	if err != nil {
		return 0, err
	}

	median = Median(values)
	if setErr := o.lifecycle.SetTrafficMedian(ctx, snapshotID, median); setErr != nil {
		return 0, setErr
	}

	o.log.Info("traffic median computed", "snapshot_id", snapshotID, "median", median, "samples", len(values))
	return median, nil
}

// classifyFinal runs the full rule set, one item per loop so a deadline can
// interrupt between any two items.
func (o *Orchestrator) classifyFinal(ctx context.Context, snapshotID int64, median float64, deadline Deadline) (bool, error) {
	for {
		if deadline.Exceeded() {
			return true, nil
		}

		batch, err := o.items.GetForFinalClassification(ctx, snapshotID, 1)
		if err != nil {
			return true, err
		}
		if len(batch) == 0 {
			return false, nil
		}

		if classifyErr := o.classifier.ClassifyFull(ctx, batch[0], median); classifyErr != nil {
			return true, classifyErr
		}
	}
}

// finish promotes the snapshot once nothing in it is transient anymore.
func (o *Orchestrator) finish(ctx context.Context, snapshotID int64) (bool, error) {
	unprocessed, err := o.items.HasUnprocessed(ctx, snapshotID)
	if err != nil {
		return true, err
	}
	if unprocessed {
		return true, nil
	}

	snap, err := o.snapshots.GetByID(ctx, snapshotID)
	if err != nil {
		return true, fmt.Errorf("failed to load snapshot %d: %w", snapshotID, err)
	}

	if finishErr := o.lifecycle.SetFinished(ctx, snapshotID); finishErr != nil {
		return true, finishErr
	}

	o.metrics.RecordSnapshotFinished(string(snap.FinishedType()))
	return false, nil
}

// IncludePosts forces posts into the audit scope of the in-flight (or
// current) snapshot and flags it for reanalysis. This is also the manual
// retry for error_analyzing items.
func (o *Orchestrator) IncludePosts(ctx context.Context, postIDs []int64) error {
	return o.markPosts(ctx, postIDs, o.items.MarkIncluded)
}

// ExcludePosts removes posts from the audit scope; their items re-enter
// analysis and resolve to manually_excluded.
func (o *Orchestrator) ExcludePosts(ctx context.Context, postIDs []int64) error {
	return o.markPosts(ctx, postIDs, o.items.MarkExcluded)
}

func (o *Orchestrator) markPosts(
	ctx context.Context,
	postIDs []int64,
	mark func(ctx context.Context, snapshotID, postID int64) error,
) error {
	snapshotID, err := o.targetSnapshotID(ctx)
	if err != nil {
		return err
	}

	for _, postID := range postIDs {
		if markErr := mark(ctx, snapshotID, postID); markErr != nil {
			return markErr
		}
	}

	if updErr := o.snapshots.SetRequireUpdate(ctx, snapshotID, true); updErr != nil {
		return fmt.Errorf("failed to flag snapshot for reanalysis: %w", updErr)
	}

	// Reanalyze immediately with the short window; the poller picks up
	// whatever does not fit.
	if _, runErr := o.UpdateTable(ctx, false); runErr != nil {
		o.log.Warn("immediate reanalysis failed", "error", runErr)
	}
	return nil
}

// targetSnapshotID picks the snapshot manual intervention writes to: the
// in-flight one when a re-audit is running, otherwise the current one.
func (o *Orchestrator) targetSnapshotID(ctx context.Context) (int64, error) {
	snap, err := o.snapshots.GetNew(ctx)
	if err == nil {
		return snap.ID, nil
	}
	if !errors.Is(err, database.ErrSnapshotNotFound) {
		return 0, fmt.Errorf("failed to look up in-flight snapshot: %w", err)
	}

	current, err := o.snapshots.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, database.ErrSnapshotNotFound) {
			return o.lifecycle.CreateNewSnapshot(ctx, false)
		}
		return 0, fmt.Errorf("failed to look up current snapshot: %w", err)
	}
	return current.ID, nil
}

// Status reports the audit state for the poller and the UI.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	status := &Status{}

	reason, paused, err := o.pause.Paused(ctx)
	if err != nil {
		return nil, err
	}
	status.Paused, status.PausedReason = paused, reason

	snap, err := o.snapshots.GetNew(ctx)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		snap, err = o.snapshots.GetLatest(ctx)
		if errors.Is(err, database.ErrSnapshotNotFound) {
			return status, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up snapshot for status: %w", err)
	}

	status.SnapshotID = snap.ID
	status.RequireUpdate = snap.RequireUpdate
	status.TrafficMedian = snap.TrafficMedian

	counts, err := o.items.CountMissingFields(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	status.UnprocessedPercent = UnprocessedPercent(counts)

	unprocessed, err := o.items.HasUnprocessed(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	status.HasUnprocessedItems = unprocessed
	if !unprocessed {
		status.UnprocessedPercent = 0
	}

	if wake, ok := o.soonestWake(); ok {
		status.WaitingSeconds = wake.Seconds()
	}

	if current, currentErr := o.snapshots.GetCurrent(ctx); currentErr == nil {
		status.LastFinishedAt = current.TimeEnd
	}

	return status, nil
}

// Pause suppresses the update loop until Resume.
func (o *Orchestrator) Pause(ctx context.Context, reason string) error {
	return o.pause.Pause(ctx, reason)
}

// Resume clears the audit-level pause flag.
func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.pause.Resume(ctx)
}

// SetNowFunc overrides the clock. Tests only.
func (o *Orchestrator) SetNowFunc(now func() time.Time) { o.now = now }

// SetSleepFunc overrides the stall sleep. Tests only.
func (o *Orchestrator) SetSleepFunc(sleep func(ctx context.Context, d time.Duration)) {
	o.sleep = sleep
}
