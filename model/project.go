package model

import "time"

// ProjectLifecycleState is a project's archival state (distinct from a
// MemoryUnit's LifecycleState).
type ProjectLifecycleState string

const (
	ProjectActive   ProjectLifecycleState = "ACTIVE"
	ProjectPaused   ProjectLifecycleState = "PAUSED"
	ProjectArchived ProjectLifecycleState = "ARCHIVED"
	ProjectDeleted  ProjectLifecycleState = "DELETED"
)

// ProjectState is the per-project activity record owned exclusively by the
// Project Archival Manager, persisted as a single JSON document keyed by
// project name.
type ProjectState struct {
	ProjectName      string                `json:"project_name"`
	State            ProjectLifecycleState `json:"state"`
	CreatedAt        time.Time             `json:"created_at"`
	LastActivity     time.Time             `json:"last_activity"`
	SearchesCount    int                   `json:"searches_count"`
	IndexUpdatesCount int                  `json:"index_updates_count"`
	FilesIndexed     int                   `json:"files_indexed"`
	ArchivedAt       *time.Time            `json:"archived_at,omitempty"`
	ReactivatedAt    *time.Time            `json:"reactivated_at,omitempty"`
}

// SearchWeight returns the cross-project search weighting for the project's
// current state.
func (s ProjectState) SearchWeight() float64 {
	switch s.State {
	case ProjectActive:
		return 1.0
	case ProjectPaused:
		return 0.5
	case ProjectArchived:
		return 0.1
	default:
		return 0.0
	}
}

// ActivityKind is the kind of activity recorded against a ProjectState.
type ActivityKind string

const (
	ActivitySearch      ActivityKind = "search"
	ActivityIndexUpdate ActivityKind = "index_update"
	ActivityFilesIndexed ActivityKind = "files_indexed"
)

// ProjectIndexMetadata is durable per-project indexing metadata, owned by
// the Project Index Tracker.
type ProjectIndexMetadata struct {
	ProjectName   string `gorm:"primaryKey"`
	FirstIndexedAt time.Time
	LastIndexedAt  time.Time
	TotalFiles     int
	TotalUnits     int
	IsWatching     bool
	IndexVersion   int
}
