// Package model defines the core domain types shared across coderag's
// components: the unit of storage and retrieval (MemoryUnit), the transient
// output of parsing (SemanticUnit), and the persisted records owned by the
// archival, tracking, and health subsystems.
package model

import "time"

// Category classifies what kind of thing a MemoryUnit represents.
type Category string

const (
	CategoryFact       Category = "FACT"
	CategoryPreference Category = "PREFERENCE"
	CategoryContext    Category = "CONTEXT"
	CategoryCodeUnit   Category = "CODE_UNIT"
)

// ContextLevel is a memory's lifetime class, governing how aggressively its
// lifecycle state decays.
type ContextLevel string

const (
	ContextUserPreference ContextLevel = "USER_PREFERENCE"
	ContextProjectContext ContextLevel = "PROJECT_CONTEXT"
	ContextSessionState   ContextLevel = "SESSION_STATE"
)

// LifecycleState is the aging/usage-derived state of a MemoryUnit.
type LifecycleState string

const (
	LifecycleActive   LifecycleState = "ACTIVE"
	LifecycleRecent   LifecycleState = "RECENT"
	LifecycleArchived LifecycleState = "ARCHIVED"
	LifecycleStale    LifecycleState = "STALE"
)

// MemoryUnit is the unit of storage and retrieval: a piece of content, its
// embedding, and the bookkeeping needed to age and rank it.
type MemoryUnit struct {
	ID             string
	Content        string
	Embedding      []float32
	Category       Category
	ContextLevel   ContextLevel
	LifecycleState LifecycleState
	ProjectName    string
	CreatedAt      time.Time
	LastAccessed   time.Time
	UseCount       int
	Metadata       map[string]string
}

// Touch records a use: updates last_accessed and increments use_count, per
// the invariant that every successful retrieval that counts as a "use" does
// both.
func (m *MemoryUnit) Touch(now time.Time) {
	m.LastAccessed = now
	m.UseCount++
}

// Code-unit metadata keys. For CODE_UNIT memories, Metadata MUST contain at
// least these.
const (
	MetaFilePath  = "file_path"
	MetaLanguage  = "language"
	MetaUnitName  = "unit_name"
	MetaUnitType  = "unit_type"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
	MetaSignature = "signature"
)

// SemanticUnit is a named, contiguous region of source text produced by the
// parser. It is a transient value — never persisted under this type.
type SemanticUnit struct {
	FilePath  string
	Language  string
	UnitType  string
	UnitName  string
	Content   string
	StartLine int
	EndLine   int
	Signature string
}
