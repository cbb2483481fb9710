package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// envPrefix is the environment variable prefix for all coderag settings,
// following the teacher's EVE_* convention.
const envPrefix = "CODERAG"

// Config is the full runtime configuration for the coderag daemon and CLI,
// assembled from defaults, then overridden by environment variables.
type Config struct {
	// StorageRoot is the root directory holding the project index, embedding
	// cache, metrics database, and archives.
	StorageRoot string

	// AutoIndex controls C5 (Auto-Indexing Service).
	AutoIndexEnabled   bool
	AutoIndexOnStartup bool
	AutoIndexSizeThreshold int // foreground vs background cutoff, files

	// Watcher controls C3 (File Watcher).
	WatcherDebounce time.Duration
	WatcherExcludes []string

	// Indexer controls C4 concurrency.
	IndexerConcurrency int // default = CPU count

	// Embedding controls C2 batch parallelism.
	EmbeddingBatchThreshold int // default 10
	EmbeddingWorkers        int

	// Search controls C7 hybrid fusion.
	SemanticWeight float64 // must be >= 0.5

	// Lifecycle holds C9 settings. Only HighAccessThreshold is passed to
	// lifecycle.New; the three day fields are loaded but nothing reads them,
	// since lifecycle.Manager applies its own fixed per-context-level table.
	LifecycleActiveDays   int
	LifecycleRecentDays   int
	LifecycleArchivedDays int
	HighAccessThreshold   int

	// Maintenance holds C11 settings. CleanupMinAgeDays feeds the monthly
	// cleanup schedule; CleanupMaxUseCount is loaded but nothing reads it,
	// since maintenance.MonthlyCleanup uses its own fixed use-count cap of 5.
	CleanupMinAgeDays int
	CleanupMaxUseCount int

	// Archival controls C13/C16.
	InactivityThresholdDays int
	MaxProjectsPerOperation int
	ArchiveCompressionLevel int // 1..9, default 6; validated only, the compressor writes at gzip's default level

	// ReadOnly disables all mutating operations across every component.
	ReadOnly bool
}

// Default returns the configuration defaults pinned by the specification.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		StorageRoot: filepath.Join(home, ".claude-rag"),

		AutoIndexEnabled:       true,
		AutoIndexOnStartup:     true,
		AutoIndexSizeThreshold: 500,

		WatcherDebounce: 1000 * time.Millisecond,
		WatcherExcludes: []string{".git", "node_modules", "vendor", ".claude-rag"},

		IndexerConcurrency: defaultConcurrency(),

		EmbeddingBatchThreshold: 10,
		EmbeddingWorkers:        defaultConcurrency(),

		SemanticWeight: 0.65,

		LifecycleActiveDays:   7,
		LifecycleRecentDays:   30,
		LifecycleArchivedDays: 180,
		HighAccessThreshold:   10,

		CleanupMinAgeDays:  180,
		CleanupMaxUseCount: 5,

		InactivityThresholdDays: 30,
		MaxProjectsPerOperation: 20,
		ArchiveCompressionLevel: 6,

		ReadOnly: false,
	}
}

// Load applies CODERAG_* environment overrides on top of Default().
func Load() Config {
	cfg := Default()
	env := NewEnvConfig(envPrefix)

	cfg.StorageRoot = env.GetString("STORAGE_ROOT", cfg.StorageRoot)

	cfg.AutoIndexEnabled = env.GetBool("AUTO_INDEX_ENABLED", cfg.AutoIndexEnabled)
	cfg.AutoIndexOnStartup = env.GetBool("AUTO_INDEX_ON_STARTUP", cfg.AutoIndexOnStartup)
	cfg.AutoIndexSizeThreshold = env.GetInt("AUTO_INDEX_SIZE_THRESHOLD", cfg.AutoIndexSizeThreshold)

	cfg.WatcherDebounce = env.GetDuration("WATCHER_DEBOUNCE", cfg.WatcherDebounce)
	cfg.WatcherExcludes = env.GetStringSlice("WATCHER_EXCLUDES", cfg.WatcherExcludes)

	cfg.IndexerConcurrency = env.GetInt("INDEXER_CONCURRENCY", cfg.IndexerConcurrency)

	cfg.EmbeddingBatchThreshold = env.GetInt("EMBEDDING_BATCH_THRESHOLD", cfg.EmbeddingBatchThreshold)
	cfg.EmbeddingWorkers = env.GetInt("EMBEDDING_WORKERS", cfg.EmbeddingWorkers)

	cfg.SemanticWeight = env.GetFloat("SEARCH_SEMANTIC_WEIGHT", cfg.SemanticWeight)

	cfg.LifecycleActiveDays = env.GetInt("LIFECYCLE_ACTIVE_DAYS", cfg.LifecycleActiveDays)
	cfg.LifecycleRecentDays = env.GetInt("LIFECYCLE_RECENT_DAYS", cfg.LifecycleRecentDays)
	cfg.LifecycleArchivedDays = env.GetInt("LIFECYCLE_ARCHIVED_DAYS", cfg.LifecycleArchivedDays)
	cfg.HighAccessThreshold = env.GetInt("LIFECYCLE_HIGH_ACCESS_THRESHOLD", cfg.HighAccessThreshold)

	cfg.CleanupMinAgeDays = env.GetInt("CLEANUP_MIN_AGE_DAYS", cfg.CleanupMinAgeDays)
	cfg.CleanupMaxUseCount = env.GetInt("CLEANUP_MAX_USE_COUNT", cfg.CleanupMaxUseCount)

	cfg.InactivityThresholdDays = env.GetInt("ARCHIVAL_INACTIVITY_THRESHOLD_DAYS", cfg.InactivityThresholdDays)
	cfg.MaxProjectsPerOperation = env.GetInt("ARCHIVAL_MAX_PROJECTS_PER_OPERATION", cfg.MaxProjectsPerOperation)
	cfg.ArchiveCompressionLevel = env.GetInt("ARCHIVE_COMPRESSION_LEVEL", cfg.ArchiveCompressionLevel)

	cfg.ReadOnly = env.GetBool("READ_ONLY", cfg.ReadOnly)

	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	v := NewValidator()
	v.RequireString("storage_root", c.StorageRoot)
	v.RequirePositiveInt("auto_index_size_threshold", c.AutoIndexSizeThreshold)
	v.RequirePositiveInt("indexer_concurrency", c.IndexerConcurrency)
	v.RequirePositiveInt("embedding_workers", c.EmbeddingWorkers)
	v.RequirePositiveInt("max_projects_per_operation", c.MaxProjectsPerOperation)
	if c.SemanticWeight < 0.5 || c.SemanticWeight > 1.0 {
		v.RequireOneOf("search_semantic_weight", "out_of_range", []string{"out_of_range"})
	}
	if c.ArchiveCompressionLevel < 1 || c.ArchiveCompressionLevel > 9 {
		v.RequireOneOf("archive_compression_level", "out_of_range", []string{"out_of_range"})
	}
	return v.Validate()
}

// ProjectIndexDir is where a single project's index directory lives.
func (c Config) ProjectIndexDir(projectName string) string {
	return filepath.Join(c.StorageRoot, "projects", projectName)
}

// MetricsDBPath is the path to the shared sqlite store backing the embedding
// cache, project index metadata, health metrics, and query log.
func (c Config) MetricsDBPath() string {
	return filepath.Join(c.StorageRoot, "coderag.db")
}

// ArchivesDir is where exported/compressed project archives are kept.
func (c Config) ArchivesDir() string {
	return filepath.Join(c.StorageRoot, "archives")
}

func defaultConcurrency() int {
	return runtime.NumCPU()
}
