package domain

// Action is the per-item audit status. It doubles as workflow state while an
// item is being analyzed and as the final recommendation once analysis
// completes.
type Action string

const (
	// Transient states. Items in these states are still moving through the
	// audit pipeline and are not shown as results.

	// ActionAnalyzingInitial is the state of a freshly inserted in-scope item
	// before cross-snapshot continuity has been applied.
	ActionAnalyzingInitial Action = "analyzing_initial"

	// ActionOutOfScopeInitial is the state of a freshly inserted item that is
	// outside the configured audit scope.
	ActionOutOfScopeInitial Action = "out_of_scope_initial"

	// ActionAnalyzing means metrics are being gathered for the item.
	ActionAnalyzing Action = "analyzing"

	// ActionOutOfScopeAnalyzing means metrics are being gathered for an
	// out-of-scope item (it still needs data for the historical record).
	ActionOutOfScopeAnalyzing Action = "out_of_scope_analyzing"

	// ActionAnalyzingFinal means all metrics are present and the item awaits
	// final classification once the traffic median is known.
	ActionAnalyzingFinal Action = "analyzing_final"

	// Terminal recommendations.

	// ActionDoNothing marks a well-performing page that needs no work.
	ActionDoNothing Action = "do_nothing"

	// ActionUpdateYellow recommends a content update for a page ranking
	// outside the top positions with no keyword collision.
	ActionUpdateYellow Action = "update_yellow"

	// ActionMerge recommends merging with another page targeting the same
	// keyword.
	ActionMerge Action = "merge"

	// ActionExclude recommends excluding a low-ranking page that still
	// attracts meaningful traffic.
	ActionExclude Action = "exclude"

	// ActionUpdateOrange recommends a deeper update for a low-ranking page
	// that has backlinks worth preserving.
	ActionUpdateOrange Action = "update_orange"

	// ActionDelete recommends deleting a page with no ranking, no traffic
	// and no backlinks.
	ActionDelete Action = "delete"

	// ActionNoindex marks a page excluded from search indexes.
	ActionNoindex Action = "noindex"

	// ActionManuallyExcluded marks a page the user removed from the audit.
	ActionManuallyExcluded Action = "manually_excluded"

	// ActionOutOfScope marks a page outside the configured audit scope.
	ActionOutOfScope Action = "out_of_scope"

	// ActionNewlyPublished marks a page still inside the waiting-weeks grace
	// period.
	ActionNewlyPublished Action = "newly_published"

	// ActionErrorAnalyzing marks a page whose metrics could not be fetched.
	ActionErrorAnalyzing Action = "error_analyzing"

	// ActionAddedSinceLast marks a page published after the audit started.
	ActionAddedSinceLast Action = "added_since_last"
)

// transientActions is the closed set of in-flight states.
var transientActions = map[Action]struct{}{
	ActionAnalyzingInitial:    {},
	ActionOutOfScopeInitial:   {},
	ActionAnalyzing:           {},
	ActionOutOfScopeAnalyzing: {},
	ActionAnalyzingFinal:      {},
}

// inactiveActions is the closed set of states that take an item out of the
// active population (excluded from the traffic median and from keyword
// collision lookups).
var inactiveActions = map[Action]struct{}{
	ActionNoindex:           {},
	ActionManuallyExcluded:  {},
	ActionOutOfScope:        {},
	ActionOutOfScopeInitial: {},
	ActionNewlyPublished:    {},
	ActionAddedSinceLast:    {},
	ActionErrorAnalyzing:    {},
}

// outOfScopeActions is the set of states that mean "outside audit scope",
// transient or terminal.
var outOfScopeActions = map[Action]struct{}{
	ActionOutOfScope:          {},
	ActionOutOfScopeInitial:   {},
	ActionOutOfScopeAnalyzing: {},
}

// String returns the action as a string.
func (a Action) String() string { return string(a) }

// Valid reports whether the value is a known action.
func (a Action) Valid() bool {
	if _, ok := transientActions[a]; ok {
		return true
	}
	return a.IsTerminal()
}

// IsTransient reports whether the item is still moving through the pipeline.
func (a Action) IsTransient() bool {
	_, ok := transientActions[a]
	return ok
}

// IsTerminal reports whether the action is a final recommendation.
func (a Action) IsTerminal() bool {
	switch a {
	case ActionDoNothing, ActionUpdateYellow, ActionMerge, ActionExclude,
		ActionUpdateOrange, ActionDelete, ActionNoindex, ActionManuallyExcluded,
		ActionOutOfScope, ActionNewlyPublished, ActionErrorAnalyzing,
		ActionAddedSinceLast:
		return true
	default:
		return false
	}
}

// IsInactive reports whether the action removes the item from the active
// population.
func (a Action) IsInactive() bool {
	_, ok := inactiveActions[a]
	return ok
}

// IsOutOfScope reports whether the action marks the item as outside the
// configured audit scope.
func (a Action) IsOutOfScope() bool {
	_, ok := outOfScopeActions[a]
	return ok
}

// ActiveStatuses returns the actions that count as "active" for keyword
// collision lookups: terminal non-inactive recommendations plus items
// awaiting final classification.
func ActiveStatuses() []Action {
	return []Action{
		ActionDoNothing,
		ActionUpdateYellow,
		ActionMerge,
		ActionUpdateOrange,
		ActionDelete,
		ActionAnalyzingFinal,
	}
}
