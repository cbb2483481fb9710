// Package lifecycle implements C9, the Lifecycle Manager: a pure calculator
// for a MemoryUnit's aging/usage-derived state and the search-time weight
// that state carries.
package lifecycle

import (
	"time"

	"coderag.evalgo.org/model"
)

// Thresholds are the per-context-level day boundaries driving
// CalculateState, plus the access-count bar that keeps a frequently-used
// unit active longer. Defaults match spec.md §4.C9's table.
type Thresholds struct {
	ActiveDays          int
	RecentDays          int
	ArchivedDays        int
	HighAccessThreshold int
}

// thresholdsByLevel is spec.md §4.C9's table, keyed by context level.
// ProjectContext is the default applied to any unrecognized level.
var thresholdsByLevel = map[model.ContextLevel]Thresholds{
	model.ContextUserPreference: {ActiveDays: 14, RecentDays: 60, ArchivedDays: 360},
	model.ContextProjectContext: {ActiveDays: 7, RecentDays: 30, ArchivedDays: 180},
	model.ContextSessionState:   {ActiveDays: 3, RecentDays: 15, ArchivedDays: 90},
}

// Weights are the per-state search multipliers, configurable but defaulted
// per spec.md §4.C9.
var Weights = map[model.LifecycleState]float64{
	model.LifecycleActive:   1.0,
	model.LifecycleRecent:   0.7,
	model.LifecycleArchived: 0.3,
	model.LifecycleStale:    0.1,
}

// Manager calculates lifecycle states using a configurable high-access
// threshold; the per-level day boundaries are spec.md's fixed table.
type Manager struct {
	highAccessThreshold int
}

// New creates a Manager. highAccessThreshold <= 0 uses spec.md's default
// of 10.
func New(highAccessThreshold int) *Manager {
	if highAccessThreshold <= 0 {
		highAccessThreshold = 10
	}
	return &Manager{highAccessThreshold: highAccessThreshold}
}

// CalculateState derives a unit's lifecycle state from its age, access
// recency, use count, and context level, per spec.md §4.C9.
func (m *Manager) CalculateState(createdAt, lastAccessed time.Time, useCount int, level model.ContextLevel) model.LifecycleState {
	t, ok := thresholdsByLevel[level]
	if !ok {
		t = thresholdsByLevel[model.ContextProjectContext]
	}
	d := daysSince(lastAccessed)

	if useCount >= m.highAccessThreshold {
		if d < t.RecentDays {
			return model.LifecycleActive
		}
		if d < t.ArchivedDays {
			return model.LifecycleRecent
		}
	}

	switch {
	case d < t.ActiveDays:
		return model.LifecycleActive
	case d < t.RecentDays:
		return model.LifecycleRecent
	case d < t.ArchivedDays:
		return model.LifecycleArchived
	default:
		return model.LifecycleStale
	}
}

func daysSince(t time.Time) int {
	return int(time.Since(t).Hours() / 24)
}

// LifecycleWeight returns state's search-time score multiplier.
func LifecycleWeight(state model.LifecycleState) float64 {
	if w, ok := Weights[state]; ok {
		return w
	}
	return 1.0
}

// ShouldTransition reports whether recomputing a unit's state produced a
// change. Both aging (more stale) and promotion (more active, e.g. after a
// burst of accesses) are valid transitions.
func ShouldTransition(old, new model.LifecycleState) bool {
	return old != new
}

// Transition records one unit's recomputed state for BulkUpdateStates'
// return value.
type Transition struct {
	ID  string
	Old model.LifecycleState
	New model.LifecycleState
}

// BulkUpdateStates recomputes every unit's state and returns only the ones
// that changed. It does not mutate units or persist anything — the caller
// applies the transitions via whatever store it uses.
func (m *Manager) BulkUpdateStates(units []model.MemoryUnit, now time.Time) []Transition {
	var changed []Transition
	for _, u := range units {
		newState := m.CalculateState(u.CreatedAt, u.LastAccessed, u.UseCount, u.ContextLevel)
		if ShouldTransition(u.LifecycleState, newState) {
			changed = append(changed, Transition{ID: u.ID, Old: u.LifecycleState, New: newState})
		}
	}
	return changed
}
