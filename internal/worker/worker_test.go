package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
)

// fakeItems implements just the repository methods the workers touch. The
// embedded interface panics on anything else, which is what we want in tests.
type fakeItems struct {
	database.ItemRepositoryInterface

	batch []*database.AuditItem

	backlinks map[int64]int64
	positions map[int64]float64
	noindex   map[int64]int16
	keywords  map[int64]string
	traffic   map[int64][4]int64
	errMsgs   map[int64]string

	bulkFilled    []string
	bulkFilledFor int64
}

func newFakeItems(batch ...*database.AuditItem) *fakeItems {
	return &fakeItems{
		batch:     batch,
		backlinks: make(map[int64]int64),
		positions: make(map[int64]float64),
		noindex:   make(map[int64]int16),
		keywords:  make(map[int64]string),
		traffic:   make(map[int64][4]int64),
		errMsgs:   make(map[int64]string),
	}
}

// take returns up to limit items without consuming them, mirroring the real
// selection queries which keep returning unfilled items.
func (f *fakeItems) take(limit int) []*database.AuditItem {
	if len(f.batch) < limit {
		limit = len(f.batch)
	}
	return f.batch[:limit]
}

func (f *fakeItems) GetMissingBacklinks(_ context.Context, _ int64, limit int) ([]*database.AuditItem, error) {
	return f.take(limit), nil
}

func (f *fakeItems) GetMissingTraffic(_ context.Context, _ int64, limit int) ([]*database.AuditItem, error) {
	return f.take(limit), nil
}

func (f *fakeItems) GetMissingNoindex(_ context.Context, _ int64, limit int) ([]*database.AuditItem, error) {
	return f.take(limit), nil
}

func (f *fakeItems) GetNeedingKeywords(_ context.Context, _ int64, limit int) ([]*database.AuditItem, error) {
	return f.take(limit), nil
}

func (f *fakeItems) GetNeedingPosition(_ context.Context, _ int64, limit int) ([]*database.AuditItem, error) {
	return f.take(limit), nil
}

func (f *fakeItems) SetBacklinks(_ context.Context, itemID, count int64, errMsg *string) error {
	f.backlinks[itemID] = count
	if errMsg != nil {
		f.errMsgs[itemID] = *errMsg
	}
	return nil
}

func (f *fakeItems) SetTraffic(_ context.Context, itemID, total, organic, totalMonthly, organicMonthly int64, errMsg *string) error {
	f.traffic[itemID] = [4]int64{total, organic, totalMonthly, organicMonthly}
	if errMsg != nil {
		f.errMsgs[itemID] = *errMsg
	}
	return nil
}

func (f *fakeItems) SetPosition(_ context.Context, itemID int64, position float64, errMsg *string) error {
	f.positions[itemID] = position
	if errMsg != nil {
		f.errMsgs[itemID] = *errMsg
	}
	return nil
}

func (f *fakeItems) SetNoindex(_ context.Context, itemID int64, state int16) error {
	f.noindex[itemID] = state
	return nil
}

func (f *fakeItems) SetKeyword(_ context.Context, itemID int64, keyword string, _ bool) error {
	f.keywords[itemID] = keyword
	return nil
}

func (f *fakeItems) BulkFillMissing(_ context.Context, snapshotID int64, dimension, _ string) (int64, error) {
	f.bulkFilled = append(f.bulkFilled, dimension)
	f.bulkFilledFor = snapshotID
	return 3, nil
}

type fakeBacklinks struct {
	counts map[string]int64
	err    error
	calls  int
}

func (f *fakeBacklinks) Count(_ context.Context, pageURL string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[pageURL], nil
}

func auditItem(id, postID int64, url string) *database.AuditItem {
	return &database.AuditItem{
		ContentItem: domain.ContentItem{ID: id, SnapshotID: 1, PostID: postID},
		URL:         url,
	}
}

func newTestLimiter() *seoapi.RateLimiter {
	return seoapi.NewRateLimiter()
}

func TestBacklinksWorkerPersistsCounts(t *testing.T) {
	t.Parallel()

	items := newFakeItems(
		auditItem(1, 11, "https://example.com/a"),
		auditItem(2, 12, "https://example.com/b"),
	)
	client := &fakeBacklinks{counts: map[string]int64{
		"https://example.com/a": 42,
		"https://example.com/b": 0,
	}}

	w := NewBacklinksWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, int64(42), items.backlinks[1])
	assert.Equal(t, int64(0), items.backlinks[2])
}

func TestBacklinksWorkerRateLimitPausesWithoutError(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(1, 11, "https://example.com/a"))
	client := &fakeBacklinks{err: &seoapi.RateLimitError{
		API:        seoapi.APIBacklinks,
		RetryAfter: time.Minute,
	}}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := newTestLimiter()
	limiter.SetNowFunc(clock)

	w := NewBacklinksWorker(items, client, limiter, logger.NewNoOp())
	w.SetNowFunc(clock)

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, progressed)

	wait, waiting := w.WaitingSeconds()
	require.True(t, waiting)
	assert.InDelta(t, 60, wait, 1)

	// While paused the worker must not touch the API again.
	calls := client.calls
	progressed, err = w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, progressed)
	assert.Equal(t, calls, client.calls)

	// The reported wait shrinks as the clock advances.
	now = now.Add(20 * time.Second)
	wait, waiting = w.WaitingSeconds()
	require.True(t, waiting)
	assert.InDelta(t, 40, wait, 1)

	now = now.Add(20 * time.Second)
	wait, waiting = w.WaitingSeconds()
	require.True(t, waiting)
	assert.InDelta(t, 20, wait, 1)

	// After the pause elapses it runs again.
	now = now.Add(21 * time.Second)
	_, waiting = w.WaitingSeconds()
	assert.False(t, waiting)
}

func TestBacklinksWorkerCooldownEscalates(t *testing.T) {
	t.Parallel()

	// No Retry-After from the API: the worker's own cooldown grows on
	// consecutive rate errors and never shrinks below the previous pause.
	client := &fakeBacklinks{err: &seoapi.RateLimitError{API: seoapi.APIBacklinks}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	items := newFakeItems(auditItem(1, 11, "https://example.com/a"))
	clock := func() time.Time { return now }
	limiter := newTestLimiter()
	limiter.SetNowFunc(clock)

	w := NewBacklinksWorker(items, client, limiter, logger.NewNoOp())
	w.SetNowFunc(clock)

	var pauses []time.Duration
	for range 3 {
		_, err := w.Execute(context.Background(), 1)
		require.NoError(t, err)

		pauses = append(pauses, w.pauseUntil.Sub(now))
		now = w.pauseUntil.Add(time.Second)
	}

	require.Len(t, pauses, 3)
	assert.Equal(t, defaultRateCooldown, pauses[0])
	assert.Equal(t, 2*defaultRateCooldown, pauses[1])
	assert.Equal(t, 4*defaultRateCooldown, pauses[2])
}

func TestBacklinksWorkerAccountBlockedBulkFills(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(1, 11, "https://example.com/a"))
	client := &fakeBacklinks{err: seoapi.ErrAccountBlocked}

	w := NewBacklinksWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, []string{"backlinks"}, items.bulkFilled)
	assert.Equal(t, int64(1), items.bulkFilledFor)
}

func TestBacklinksWorkerItemErrorStoresSentinel(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(1, 11, "https://example.com/a"))
	client := &fakeBacklinks{err: errors.New("connection reset")}

	w := NewBacklinksWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, int64(database.MetricErrorSentinel), items.backlinks[1])
	assert.Equal(t, "connection reset", items.errMsgs[1])
}

type fakeAnalytics struct {
	sessions *seoapi.Sessions
	err      error
}

func (f *fakeAnalytics) Sessions(_ context.Context, _ string, _, _ time.Time) (*seoapi.Sessions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions, nil
}

func TestTrafficWorkerPersistsSessions(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	item := auditItem(5, 50, "https://example.com/post")
	item.PublishedAt = &published

	items := newFakeItems(item)
	client := &fakeAnalytics{sessions: &seoapi.Sessions{
		Total: 1200, Organic: 900, TotalMonthly: 100, OrganicMonthly: 75,
	}}

	w := NewTrafficWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, [4]int64{1200, 900, 100, 75}, items.traffic[5])
}

func TestTrafficWorkerMissingPublicationDateIsAnItemError(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(5, 50, "https://example.com/post"))
	client := &fakeAnalytics{sessions: &seoapi.Sessions{Total: 1}}

	w := NewTrafficWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, [4]int64{
		database.MetricErrorSentinel, database.MetricErrorSentinel,
		database.MetricErrorSentinel, database.MetricErrorSentinel,
	}, items.traffic[5])
	assert.NotEmpty(t, items.errMsgs[5])
}

type fakePosition struct {
	position float64
	found    bool
	err      error

	gotKeyword string
}

func (f *fakePosition) AveragePosition(_ context.Context, _, keyword string, _, _ time.Time) (float64, bool, error) {
	f.gotKeyword = keyword
	if f.err != nil {
		return 0, false, f.err
	}
	return f.position, f.found, nil
}

func TestPositionWorkerUsesEffectiveKeyword(t *testing.T) {
	t.Parallel()

	detected := "coffee grinder"
	manual := "best coffee grinder"
	item := auditItem(7, 70, "https://example.com/grinder")
	item.Keyword = &detected
	item.KeywordManual = &manual

	items := newFakeItems(item)
	client := &fakePosition{position: 3.4, found: true}

	w := NewPositionWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, manual, client.gotKeyword)
	assert.InDelta(t, 3.4, items.positions[7], 0.001)
}

func TestPositionWorkerNotRankingStoresMaxSentinel(t *testing.T) {
	t.Parallel()

	keyword := "obscure phrase"
	item := auditItem(7, 70, "https://example.com/page")
	item.Keyword = &keyword

	items := newFakeItems(item)
	client := &fakePosition{found: false}

	w := NewPositionWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, float64(domain.PositionMax), items.positions[7])
}

type fakeNoindex struct {
	state int16
	err   error
}

func (f *fakeNoindex) Check(_ context.Context, _ string) (int16, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.state, nil
}

func TestNoindexWorkerStoresState(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(9, 90, "https://example.com/hidden"))
	client := &fakeNoindex{state: domain.NoindexYes}

	w := NewNoindexWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, domain.NoindexYes, items.noindex[9])
}

func TestNoindexWorkerCheckFailureStoresErrState(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(9, 90, "https://example.com/down"))
	client := &fakeNoindex{err: errors.New("dial timeout")}

	w := NewNoindexWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, domain.NoindexErr, items.noindex[9])
}

type fakeKeywords struct {
	keyword *seoapi.Keyword
	err     error
}

func (f *fakeKeywords) Primary(_ context.Context, _ int64) (*seoapi.Keyword, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.keyword, nil
}

func TestKeywordWorkerStoresResolvedKeyword(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(3, 30, "https://example.com/post"))
	client := &fakeKeywords{keyword: &seoapi.Keyword{Value: "espresso", Approved: true}}

	w := NewKeywordWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Equal(t, "espresso", items.keywords[3])
}

func TestKeywordWorkerNotFoundStoresEmptyKeyword(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(3, 30, "https://example.com/post"))
	client := &fakeKeywords{err: seoapi.ErrNotFound}

	w := NewKeywordWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, progressed)

	keyword, ok := items.keywords[3]
	require.True(t, ok)
	assert.Empty(t, keyword)
}

func TestKeywordWorkerTransientErrorLeavesItemSelectable(t *testing.T) {
	t.Parallel()

	items := newFakeItems(auditItem(3, 30, "https://example.com/post"))
	client := &fakeKeywords{err: errors.New("service unavailable")}

	w := NewKeywordWorker(items, client, newTestLimiter(), logger.NewNoOp())

	progressed, err := w.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, progressed)
	assert.Empty(t, items.keywords)
}
