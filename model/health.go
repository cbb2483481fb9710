package model

import "time"

// HealthMetrics is an append-only timestamped snapshot of system health.
// Column names are bit-exact with spec.md §6's schema.
type HealthMetrics struct {
	ID                     uint      `gorm:"primaryKey" json:"-"`
	Timestamp              time.Time `json:"timestamp"`
	AvgSearchLatencyMs     float64   `json:"avg_search_latency_ms"`
	P95SearchLatencyMs     float64   `json:"p95_search_latency_ms"`
	CacheHitRate           float64   `json:"cache_hit_rate"`
	IndexStalenessRatio    float64   `json:"index_staleness_ratio"`
	AvgResultRelevance     float64   `json:"avg_result_relevance"`
	NoiseRatio             float64   `json:"noise_ratio"`
	DuplicateRate          float64   `json:"duplicate_rate"`
	ContradictionRate      float64   `json:"contradiction_rate"`
	TotalMemories          int       `json:"total_memories"`
	ActiveMemories         int       `json:"active_memories"`
	RecentMemories         int       `json:"recent_memories"`
	ArchivedMemories       int       `json:"archived_memories"`
	StaleMemories          int       `json:"stale_memories"`
	ActiveProjects         int       `json:"active_projects"`
	ArchivedProjects       int       `json:"archived_projects"`
	DatabaseSizeMB         float64   `json:"database_size_mb"`
	QueriesPerDay          float64   `json:"queries_per_day"`
	MemoriesCreatedPerDay  float64   `json:"memories_created_per_day"`
	AvgResultsPerQuery     float64   `json:"avg_results_per_query"`
	HealthScore            float64   `json:"health_score"`
	CreatedAt              time.Time `json:"created_at"`
}

// TableName pins the GORM table name to the spec's schema name.
func (HealthMetrics) TableName() string { return "health_metrics" }

// QueryLogEntry is one row of the append-only query log.
type QueryLogEntry struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	Query        string    `json:"query"`
	LatencyMs    float64   `json:"latency_ms"`
	ResultCount  int       `json:"result_count"`
	AvgRelevance *float64  `json:"avg_relevance,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (QueryLogEntry) TableName() string { return "query_log" }

// AlertSeverity classifies how urgent an Alert is.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityInfo     AlertSeverity = "INFO"
)

// Alert is a threshold violation recorded against a metric.
type Alert struct {
	ID              string        `gorm:"primaryKey" json:"id"`
	Severity        AlertSeverity `json:"severity"`
	MetricName      string        `json:"metric_name"`
	CurrentValue    float64       `json:"current_value"`
	ThresholdValue  float64       `json:"threshold_value"`
	Message         string        `json:"message"`
	Recommendations string        `json:"recommendations"` // JSON-encoded []string
	Timestamp       time.Time     `json:"timestamp"`
	Resolved        bool          `json:"resolved"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	SnoozedUntil    *time.Time    `json:"snoozed_until,omitempty"`
}

func (Alert) TableName() string { return "alert_history" }
