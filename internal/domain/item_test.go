package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func TestEffectiveKeyword(t *testing.T) {
	t.Parallel()

	item := &ContentItem{}
	assert.Empty(t, item.EffectiveKeyword())

	item.Keyword = strPtr("espresso")
	assert.Equal(t, "espresso", item.EffectiveKeyword())

	item.KeywordManual = strPtr("espresso grinder")
	assert.Equal(t, "espresso grinder", item.EffectiveKeyword())

	item.KeywordManual = strPtr("")
	assert.Equal(t, "espresso", item.EffectiveKeyword(), "empty manual keyword is no override")
}

func TestHasAllMetrics(t *testing.T) {
	t.Parallel()

	noindex := NoindexNo
	position := 3.5
	item := &ContentItem{
		TotalTraffic: int64Ptr(100),
		Backlinks:    int64Ptr(5),
		IsNoindex:    &noindex,
		Keyword:      strPtr("espresso"),
		Position:     &position,
	}
	assert.True(t, item.HasAllMetrics())

	item.KeywordsNeedUpdate = true
	assert.False(t, item.HasAllMetrics(), "stale keyword means not prepared")

	item.KeywordsNeedUpdate = false
	item.PositionNeedUpdate = true
	assert.False(t, item.HasAllMetrics(), "stale position means not prepared")

	item.PositionNeedUpdate = false
	item.Backlinks = nil
	assert.False(t, item.HasAllMetrics())
}

func TestMetricError(t *testing.T) {
	t.Parallel()

	item := &ContentItem{}
	assert.False(t, item.MetricError())

	item.TotalTraffic = int64Ptr(-1)
	assert.True(t, item.MetricError())

	noindexErr := NoindexErr
	item = &ContentItem{IsNoindex: &noindexErr}
	assert.True(t, item.MetricError())

	noindexYes := NoindexYes
	item = &ContentItem{IsNoindex: &noindexYes}
	assert.False(t, item.MetricError(), "a positive noindex signal is data, not an error")
}
