// Package store defines the narrow storage contracts C4-C8 depend on — a
// vector store (MemoryStore) and an optional lexical index (KeywordIndex) —
// plus default embedded implementations so the service runs with no
// external dependencies.
package store

import (
	"context"

	"coderag.evalgo.org/model"
)

// Filter narrows a vector or keyword query to a subset of units. Zero values
// mean "no constraint" for that field.
type Filter struct {
	ProjectName  string
	Language     string
	Category     model.Category
	FilePattern  string // substring match on metadata.file_path, applied post-query
	MinImportance float64
}

// Scored pairs a unit with its raw similarity/relevance score, pre-lifecycle
// weighting.
type Scored struct {
	Unit  model.MemoryUnit
	Score float64
}

// MemoryStore is the vector-store contract C7's semantic search and C4's
// indexer write against. Implementations own id-keyed upsert/delete and
// nearest-neighbor query; they do not interpret lifecycle weighting,
// dedup, or pagination — that's the Search Engine's job (C7).
type MemoryStore interface {
	// Upsert writes or replaces units, keyed by Unit.ID. Vectors must
	// already be the embedding the caller wants stored; MemoryStore does
	// not compute embeddings itself.
	Upsert(ctx context.Context, units []model.MemoryUnit) error

	// Delete removes units by id. Deleting an id that doesn't exist is not
	// an error.
	Delete(ctx context.Context, ids []string) error

	// DeleteByFilePath removes every unit whose metadata.file_path equals
	// filePath within projectName, returning the count removed.
	DeleteByFilePath(ctx context.Context, projectName, filePath string) (int, error)

	// Query returns the top-k nearest units to vector, honoring filter's
	// pushed-down fields (ProjectName, Language, Category). FilePattern and
	// MinImportance are not pushed down; callers post-filter.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Scored, error)

	// Count returns the number of stored units, optionally scoped to a
	// project (empty string means all projects). Used by C10's health
	// scorer pagination caps.
	Count(ctx context.Context, projectName string) (int, error)

	// All returns every unit for a project, paginated by offset/limit, for
	// C10/C11's full-corpus scans. limit <= 0 means unlimited (all
	// remaining units from offset). Order is stable but unspecified.
	All(ctx context.Context, projectName string, offset, limit int) ([]model.MemoryUnit, error)

	Close() error
}

// KeywordIndex is the lexical-search contract C7's hybrid mode optionally
// fuses with vector results. A nil KeywordIndex means hybrid search falls
// back to semantic-only per spec.md §4.C7.
type KeywordIndex interface {
	Index(ctx context.Context, unit model.MemoryUnit) error
	Delete(ctx context.Context, id string) error
	DeleteByFilePath(ctx context.Context, projectName, filePath string) (int, error)
	Search(ctx context.Context, query string, k int, filter Filter) ([]Scored, error)
	Close() error
}

// UnitID derives the stable, deterministic id spec.md §4.C4 requires:
// identical (project_name, file_path, unit_name, start_line) always
// produces the same id, so re-indexing an unchanged unit is a no-op write
// rather than a duplicate.
func UnitID(projectName, filePath, unitName string, startLine int) string {
	return projectName + "::" + filePath + "::" + unitName + "::" + itoa(startLine)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
