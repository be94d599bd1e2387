package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionValid(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionAnalyzing.Valid())
	assert.True(t, ActionDoNothing.Valid())
	assert.True(t, ActionAddedSinceLast.Valid())
	assert.False(t, Action("").Valid())
	assert.False(t, Action("rewrite").Valid())
}

func TestActionTransientAndTerminalArePartition(t *testing.T) {
	t.Parallel()

	transient := []Action{
		ActionAnalyzingInitial, ActionOutOfScopeInitial,
		ActionAnalyzing, ActionOutOfScopeAnalyzing, ActionAnalyzingFinal,
	}
	for _, a := range transient {
		assert.True(t, a.IsTransient(), "%s should be transient", a)
		assert.False(t, a.IsTerminal(), "%s should not be terminal", a)
	}

	terminal := []Action{
		ActionDoNothing, ActionUpdateYellow, ActionMerge, ActionExclude,
		ActionUpdateOrange, ActionDelete, ActionNoindex, ActionManuallyExcluded,
		ActionOutOfScope, ActionNewlyPublished, ActionErrorAnalyzing,
		ActionAddedSinceLast,
	}
	for _, a := range terminal {
		assert.True(t, a.IsTerminal(), "%s should be terminal", a)
		assert.False(t, a.IsTransient(), "%s should not be transient", a)
	}
}

func TestActionIsInactive(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionNoindex.IsInactive())
	assert.True(t, ActionNewlyPublished.IsInactive())
	assert.True(t, ActionErrorAnalyzing.IsInactive())
	assert.False(t, ActionDoNothing.IsInactive())
	assert.False(t, ActionDelete.IsInactive())
}

func TestActionIsOutOfScope(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionOutOfScope.IsOutOfScope())
	assert.True(t, ActionOutOfScopeAnalyzing.IsOutOfScope())
	assert.False(t, ActionAnalyzing.IsOutOfScope())
}

func TestActiveStatusesExcludeInactive(t *testing.T) {
	t.Parallel()

	for _, a := range ActiveStatuses() {
		assert.False(t, a.IsInactive(), "%s must not be inactive", a)
		assert.False(t, a.IsOutOfScope(), "%s must not be out of scope", a)
	}
}
