// Package archival implements C13, the Project Archival Manager: a single
// JSON document of per-project ProjectState records, rewritten atomically
// (write-temp-then-rename, the same durability idiom consent.FileManager
// already uses for its registry).
package archival

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

// Manager owns the archival state document.
type Manager struct {
	path string
	mu   sync.Mutex
}

// New loads (or initializes) the archival state document at path.
func New(path string) (*Manager, error) {
	m := &Manager{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.write(map[string]model.ProjectState{}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) read() (map[string]model.ProjectState, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errs.Storage("archival", "read", "read state document", err)
	}
	var states map[string]model.ProjectState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, errs.Storage("archival", "read", "parse state document", err)
	}
	return states, nil
}

func (m *Manager) write(states map[string]model.ProjectState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return errs.Storage("archival", "write", "marshal state document", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Storage("archival", "write", "create state directory", err)
	}
	tmp, err := os.CreateTemp(dir, "archival-*.tmp")
	if err != nil {
		return errs.Storage("archival", "write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Storage("archival", "write", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("archival", "write", "close temp file", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("archival", "write", "rename temp file into place", err)
	}
	return nil
}

// GetProjectState returns project's state, auto-initializing it (ACTIVE,
// zero counters, last_activity=now) on first access.
func (m *Manager) GetProjectState(project string, now time.Time) (model.ProjectState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return model.ProjectState{}, err
	}
	if state, ok := states[project]; ok {
		return state, nil
	}

	state := model.ProjectState{
		ProjectName:  project,
		State:        model.ProjectActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	states[project] = state
	if err := m.write(states); err != nil {
		return model.ProjectState{}, err
	}
	return state, nil
}

// RecordActivity updates project's activity counters and last_activity.
func (m *Manager) RecordActivity(project string, kind model.ActivityKind, count int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return err
	}
	state, ok := states[project]
	if !ok {
		state = model.ProjectState{ProjectName: project, State: model.ProjectActive, CreatedAt: now}
	}

	switch kind {
	case model.ActivitySearch:
		state.SearchesCount += count
	case model.ActivityIndexUpdate:
		state.IndexUpdatesCount += count
	case model.ActivityFilesIndexed:
		state.FilesIndexed += count
	default:
		return fmt.Errorf("archival: unknown activity kind %q", kind)
	}
	state.LastActivity = now
	states[project] = state
	return m.write(states)
}

// ArchiveProject transitions project to ARCHIVED. Archiving an already
// ARCHIVED project is a no-op failure.
func (m *Manager) ArchiveProject(project string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return err
	}
	state, ok := states[project]
	if !ok {
		state = model.ProjectState{ProjectName: project, State: model.ProjectActive, CreatedAt: now, LastActivity: now}
	}
	if state.State == model.ProjectArchived {
		return fmt.Errorf("archival: project %q is already archived", project)
	}
	state.State = model.ProjectArchived
	archivedAt := now
	state.ArchivedAt = &archivedAt
	states[project] = state
	return m.write(states)
}

// ReactivateProject transitions project from ARCHIVED to ACTIVE.
func (m *Manager) ReactivateProject(project string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return err
	}
	state, ok := states[project]
	if !ok || state.State != model.ProjectArchived {
		return fmt.Errorf("archival: project %q is not archived", project)
	}
	state.State = model.ProjectActive
	reactivatedAt := now
	state.ReactivatedAt = &reactivatedAt
	state.LastActivity = now
	states[project] = state
	return m.write(states)
}

// GetInactiveProjects returns ACTIVE projects whose last_activity is at
// least inactivityThresholdDays in the past.
func (m *Manager) GetInactiveProjects(inactivityThresholdDays int, now time.Time) ([]model.ProjectState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return nil, err
	}
	var inactive []model.ProjectState
	for _, state := range states {
		if state.State != model.ProjectActive {
			continue
		}
		daysSince := now.Sub(state.LastActivity).Hours() / 24
		if daysSince >= float64(inactivityThresholdDays) {
			inactive = append(inactive, state)
		}
	}
	return inactive, nil
}

// ListProjectStates returns every known project's state, in no particular
// order.
func (m *Manager) ListProjectStates() ([]model.ProjectState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.read()
	if err != nil {
		return nil, err
	}
	list := make([]model.ProjectState, 0, len(states))
	for _, state := range states {
		list = append(list, state)
	}
	return list, nil
}

// GetSearchWeight returns project's cross-project search weighting,
// auto-initializing the project if it has no recorded state yet.
func (m *Manager) GetSearchWeight(project string, now time.Time) (float64, error) {
	state, err := m.GetProjectState(project, now)
	if err != nil {
		return 0, err
	}
	return state.SearchWeight(), nil
}
