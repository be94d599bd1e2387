package audit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/metrics"
)

func i64(v int64) *int64           { return &v }
func f64(v float64) *float64       { return &v }
func i16(v int16) *int16           { return &v }
func strp(v string) *string        { return &v }
func timep(v time.Time) *time.Time { return &v }

// classifyItems is the item-store fake for classifier tests.
type classifyItems struct {
	database.ItemRepositoryInterface

	actions   map[int64]domain.Action
	inactive  map[int64]bool
	byKeyword map[string][]*domain.ContentItem
}

func newClassifyItems() *classifyItems {
	return &classifyItems{
		actions:   make(map[int64]domain.Action),
		inactive:  make(map[int64]bool),
		byKeyword: make(map[string][]*domain.ContentItem),
	}
}

func (f *classifyItems) SetAction(_ context.Context, itemID int64, action domain.Action, inactive bool) error {
	f.actions[itemID] = action
	f.inactive[itemID] = inactive
	return nil
}

func (f *classifyItems) FindActiveByKeyword(
	_ context.Context,
	_ int64,
	keyword string,
	excludePostID int64,
	limit int,
) ([]*domain.ContentItem, error) {
	var out []*domain.ContentItem
	for _, item := range f.byKeyword[keyword] {
		if item.PostID == excludePostID {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// staticAdvisor answers the collision question from a fixed map.
type staticAdvisor struct {
	collisions map[int64]bool
}

func (a *staticAdvisor) FindActivePagesWithSameKeyword(_ context.Context, _, postID int64, _ int) ([]int64, error) {
	if a.collisions[postID] {
		return []int64{999}, nil
	}
	return nil, nil
}

func (a *staticAdvisor) HasActivePagesWithSameKeyword(_ context.Context, _, postID int64) (bool, error) {
	return a.collisions[postID], nil
}

func newTestClassifier(items *classifyItems, advisor AdvisorInterface, cfg ClassifierConfig) *Classifier {
	if advisor == nil {
		advisor = &staticAdvisor{}
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewClassifier(items, advisor, m, cfg, logger.NewNoOp())
}

// completeItem returns an item with every metric present and unremarkable.
func completeItem(id int64) *domain.ContentItem {
	published := time.Now().AddDate(-1, 0, 0)
	return &domain.ContentItem{
		ID:             id,
		SnapshotID:     1,
		PostID:         id * 10,
		Action:         domain.ActionAnalyzingFinal,
		TotalTraffic:   i64(100),
		OrganicTraffic: i64(50),
		TotalMonthly:   i64(100),
		OrganicMonthly: i64(50),
		Backlinks:      i64(3),
		Position:       f64(2.0),
		IsNoindex:      i16(domain.NoindexNo),
		Keyword:        strp("espresso"),
		PublishedAt:    timep(published),
	}
}

func TestClassifyFullDeterminism(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*domain.ContentItem)
		collision bool
		median    float64
		want      domain.Action
	}{
		{
			name:   "well ranked page is left alone",
			mutate: func(i *domain.ContentItem) {},
			median: 80,
			want:   domain.ActionDoNothing,
		},
		{
			name:      "mid ranking with keyword collision merges",
			mutate:    func(i *domain.ContentItem) { i.Position = f64(10) },
			collision: true,
			median:    80,
			want:      domain.ActionMerge,
		},
		{
			name:   "mid ranking without collision gets content update",
			mutate: func(i *domain.ContentItem) { i.Position = f64(10) },
			median: 80,
			want:   domain.ActionUpdateYellow,
		},
		{
			name: "poor ranking low traffic no backlinks is deleted",
			mutate: func(i *domain.ContentItem) {
				i.Position = f64(50)
				i.TotalMonthly = i64(40)
				i.Backlinks = i64(0)
			},
			median: 80,
			want:   domain.ActionDelete,
		},
		{
			name: "poor ranking low traffic with backlinks gets rework",
			mutate: func(i *domain.ContentItem) {
				i.Position = f64(50)
				i.TotalMonthly = i64(40)
				i.Backlinks = i64(5)
			},
			median: 80,
			want:   domain.ActionUpdateOrange,
		},
		{
			name: "poor ranking but median-beating traffic is excluded",
			mutate: func(i *domain.ContentItem) {
				i.Position = f64(50)
				i.TotalMonthly = i64(120)
			},
			median: 80,
			want:   domain.ActionExclude,
		},
		{
			name:   "missing traffic is an analysis error regardless of the rest",
			mutate: func(i *domain.ContentItem) { i.TotalTraffic = nil },
			median: 80,
			want:   domain.ActionErrorAnalyzing,
		},
		{
			name:   "negative sentinel is an analysis error",
			mutate: func(i *domain.ContentItem) { i.Backlinks = i64(-1) },
			median: 80,
			want:   domain.ActionErrorAnalyzing,
		},
		{
			name:   "noindex page wins over everything else",
			mutate: func(i *domain.ContentItem) { i.IsNoindex = i16(domain.NoindexYes) },
			median: 80,
			want:   domain.ActionNoindex,
		},
		{
			name:   "manual exclusion",
			mutate: func(i *domain.ContentItem) { i.IsExcluded = true },
			median: 80,
			want:   domain.ActionManuallyExcluded,
		},
		{
			name:   "out of scope carries through",
			mutate: func(i *domain.ContentItem) { i.Action = domain.ActionOutOfScopeAnalyzing },
			median: 80,
			want:   domain.ActionOutOfScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			item := completeItem(1)
			tt.mutate(item)

			items := newClassifyItems()
			advisor := &staticAdvisor{collisions: map[int64]bool{item.PostID: tt.collision}}
			c := newTestClassifier(items, advisor, ClassifierConfig{WaitingWeeks: 4, AnalyticsEnabled: true})

			require.NoError(t, c.ClassifyFull(context.Background(), item, tt.median))
			assert.Equal(t, tt.want, items.actions[item.ID])
			assert.Equal(t, tt.want.IsInactive(), items.inactive[item.ID])
		})
	}
}

func TestClassifyNewlyPublishedGracePeriod(t *testing.T) {
	t.Parallel()

	item := completeItem(1)
	item.Position = f64(50)
	item.PublishedAt = timep(time.Now().Add(-10 * 24 * time.Hour))

	items := newClassifyItems()
	c := newTestClassifier(items, nil, ClassifierConfig{WaitingWeeks: 4, AnalyticsEnabled: true})

	require.NoError(t, c.ClassifyFull(context.Background(), item, 80))
	assert.Equal(t, domain.ActionNewlyPublished, items.actions[item.ID])

	// The ignore flag lifts the grace period.
	item2 := completeItem(2)
	item2.Position = f64(50)
	item2.TotalMonthly = i64(40)
	item2.Backlinks = i64(0)
	item2.PublishedAt = timep(time.Now().Add(-10 * 24 * time.Hour))
	item2.IgnoreNewly = true

	require.NoError(t, c.ClassifyFull(context.Background(), item2, 80))
	assert.Equal(t, domain.ActionDelete, items.actions[item2.ID])
}

func TestClassifyInactiveOnlyDefersActiveItems(t *testing.T) {
	t.Parallel()

	items := newClassifyItems()
	c := newTestClassifier(items, nil, ClassifierConfig{WaitingWeeks: 0, AnalyticsEnabled: true})

	active := completeItem(1)
	active.Action = domain.ActionAnalyzing
	require.NoError(t, c.ClassifyInactiveOnly(context.Background(), active))
	assert.Equal(t, domain.ActionAnalyzingFinal, items.actions[active.ID])
	assert.False(t, items.inactive[active.ID])

	noindexed := completeItem(2)
	noindexed.Action = domain.ActionAnalyzing
	noindexed.IsNoindex = i16(domain.NoindexYes)
	require.NoError(t, c.ClassifyInactiveOnly(context.Background(), noindexed))
	assert.Equal(t, domain.ActionNoindex, items.actions[noindexed.ID])
	assert.True(t, items.inactive[noindexed.ID])
}

func TestClassifyShortCircuitedExclusionWithMissingMetrics(t *testing.T) {
	t.Parallel()

	// A manually excluded item may reach classification before its
	// metrics are filled; the exclusion must win over the missing fields.
	item := &domain.ContentItem{
		ID: 1, SnapshotID: 1, PostID: 10,
		Action:     domain.ActionOutOfScopeAnalyzing,
		IsExcluded: true,
	}

	items := newClassifyItems()
	c := newTestClassifier(items, nil, ClassifierConfig{AnalyticsEnabled: true})

	require.NoError(t, c.ClassifyInactiveOnly(context.Background(), item))
	assert.Equal(t, domain.ActionManuallyExcluded, items.actions[item.ID])
}

func TestClassifyFullCascadesOnFlip(t *testing.T) {
	t.Parallel()

	// Item 1 was inactive and now classifies active: its keyword sibling
	// must be reclassified in the same invocation.
	flipped := completeItem(1)
	flipped.Inactive = true
	flipped.Position = f64(10)

	sibling := completeItem(2)
	sibling.Position = f64(10)
	sibling.Keyword = strp("espresso")

	items := newClassifyItems()
	items.byKeyword["espresso"] = []*domain.ContentItem{sibling}

	advisor := &staticAdvisor{collisions: map[int64]bool{
		flipped.PostID: true,
		sibling.PostID: true,
	}}
	c := newTestClassifier(items, advisor, ClassifierConfig{AnalyticsEnabled: true})

	require.NoError(t, c.ClassifyFull(context.Background(), flipped, 80))

	assert.Equal(t, domain.ActionMerge, items.actions[flipped.ID])
	assert.Equal(t, domain.ActionMerge, items.actions[sibling.ID], "sibling must be reclassified")
}

func TestClassifyFullNoCascadeWithoutFlip(t *testing.T) {
	t.Parallel()

	item := completeItem(1)
	item.Inactive = false

	sibling := completeItem(2)
	items := newClassifyItems()
	items.byKeyword["espresso"] = []*domain.ContentItem{sibling}

	c := newTestClassifier(items, nil, ClassifierConfig{AnalyticsEnabled: true})

	require.NoError(t, c.ClassifyFull(context.Background(), item, 80))
	_, reclassified := items.actions[sibling.ID]
	assert.False(t, reclassified)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 12.5, Median([]int64{5, 10, 15, 20}), 0.001)
	assert.InDelta(t, 7, Median([]int64{7}), 0.001)
	assert.InDelta(t, 0, Median(nil), 0.001)
	assert.InDelta(t, 10, Median([]int64{15, 5, 10}), 0.001, "unsorted input")
}

func TestUnprocessedPercent(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, UnprocessedPercent(&database.MissingCounts{}), 0.001)

	// Everything missing for 10 items: 99%.
	all := &database.MissingCounts{
		Traffic: 10, Backlinks: 10, Noindex: 10, Position: 10, Keywords: 10, Total: 10,
	}
	assert.InDelta(t, 99, UnprocessedPercent(all), 0.001)

	// Nothing missing but items exist: the classification percent.
	assert.InDelta(t, 1, UnprocessedPercent(&database.MissingCounts{Total: 10}), 0.001)

	// Backlinks dominate the weighting.
	backlinksOnly := &database.MissingCounts{Backlinks: 10, Total: 10}
	trafficOnly := &database.MissingCounts{Traffic: 10, Total: 10}
	assert.Greater(t, UnprocessedPercent(backlinksOnly), UnprocessedPercent(trafficOnly))
}
