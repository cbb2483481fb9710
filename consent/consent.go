// Package consent implements the opt-in/opt-out registry the Cross-Project
// Gateway (C8) consults before fanning a query out across projects.
package consent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"coderag.evalgo.org/internal/errs"
)

// Manager tracks which projects have opted into cross-project search.
type Manager interface {
	OptIn(project string) error
	OptOut(project string) error
	IsOptedIn(project string) bool
	ListOptedIn() []string
}

// FileManager is the default Manager, a JSON file of opted-in project
// names, rewritten atomically (write-temp-then-rename) on every mutation —
// the same durability idiom C13's archival manager uses for its state
// document.
type FileManager struct {
	path string
	mu   sync.Mutex
}

// NewFileManager loads (or initializes) the opt-in registry at path.
func NewFileManager(path string) (*FileManager, error) {
	m := &FileManager{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.write(map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *FileManager) read() (map[string]bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errs.Storage("consent", "read", "read opt-in registry", err)
	}
	var set map[string]bool
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errs.Storage("consent", "read", "parse opt-in registry", err)
	}
	return set, nil
}

func (m *FileManager) write(set map[string]bool) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return errs.Storage("consent", "write", "marshal opt-in registry", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Storage("consent", "write", "create registry directory", err)
	}
	tmp, err := os.CreateTemp(dir, "consent-*.tmp")
	if err != nil {
		return errs.Storage("consent", "write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Storage("consent", "write", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("consent", "write", "close temp file", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("consent", "write", "rename temp file into place", err)
	}
	return nil
}

func (m *FileManager) OptIn(project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.read()
	if err != nil {
		return err
	}
	set[project] = true
	return m.write(set)
}

func (m *FileManager) OptOut(project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.read()
	if err != nil {
		return err
	}
	delete(set, project)
	return m.write(set)
}

func (m *FileManager) IsOptedIn(project string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.read()
	if err != nil {
		return false
	}
	return set[project]
}

func (m *FileManager) ListOptedIn() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.read()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(set))
	for name, in := range set {
		if in {
			names = append(names, name)
		}
	}
	return names
}
