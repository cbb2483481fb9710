package metrics

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"

	"coderag.evalgo.org/archival"
	"coderag.evalgo.org/health"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

// Collector composes HealthMetrics snapshots from a store, a health
// scorer, and the query_log table, and persists/retrieves them through
// GORM's append-only health_metrics table.
type Collector struct {
	db       *gorm.DB
	scorer   *health.Scorer
	dbPath   string
	project  string
	gauges   *Gauges
	archival *archival.Manager
}

// Config configures a new Collector.
type Config struct {
	DB       *gorm.DB
	Scorer   *health.Scorer
	DBPath   string // path to the sqlite file, for database_size_mb
	Project  string
	Gauges   *Gauges           // optional; nil disables Prometheus observation
	Archival *archival.Manager // optional; nil leaves ActiveProjects/ArchivedProjects at zero
}

// New creates a Collector.
func New(cfg Config) *Collector {
	return &Collector{
		db: cfg.DB, scorer: cfg.Scorer,
		dbPath: cfg.DBPath, project: cfg.Project, gauges: cfg.Gauges,
		archival: cfg.Archival,
	}
}

// projectCounts returns the number of active and archived projects known
// to the archival manager. Returns zeros when no archival manager is
// configured.
func (c *Collector) projectCounts() (active, archived int, err error) {
	if c.archival == nil {
		return 0, 0, nil
	}
	states, err := c.archival.ListProjectStates()
	if err != nil {
		return 0, 0, err
	}
	for _, state := range states {
		switch state.State {
		case model.ProjectActive:
			active++
		case model.ProjectArchived:
			archived++
		}
	}
	return active, archived, nil
}

// LogQuery inserts one query_log row.
func (c *Collector) LogQuery(query string, latencyMs float64, resultCount int, avgRelevance *float64, now time.Time) error {
	entry := model.QueryLogEntry{
		Query: query, LatencyMs: latencyMs, ResultCount: resultCount,
		AvgRelevance: avgRelevance, Timestamp: now,
	}
	if err := c.db.Create(&entry).Error; err != nil {
		return errs.Storage("metrics", "log_query", "insert query log entry", err)
	}
	if c.gauges != nil {
		c.gauges.ObserveQuery(c.project, latencyMs)
	}
	return nil
}

// CollectMetrics composes a HealthMetrics snapshot from the current store
// state, the health scorer, and rolling query_log windows.
func (c *Collector) CollectMetrics(ctx context.Context, now time.Time) (model.HealthMetrics, error) {
	score, err := c.scorer.CalculateOverallHealth(ctx, c.project, now)
	if err != nil {
		return model.HealthMetrics{}, err
	}

	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)

	avgLatency, p95Latency, err := c.latencyWindow(dayAgo, now)
	if err != nil {
		return model.HealthMetrics{}, err
	}
	avgRelevance, err := c.avgRelevanceWindow(dayAgo, now)
	if err != nil {
		return model.HealthMetrics{}, err
	}
	queriesPerDay, avgResultsPerQuery, err := c.weeklyQueryRates(weekAgo, now)
	if err != nil {
		return model.HealthMetrics{}, err
	}
	activeProjects, archivedProjects, err := c.projectCounts()
	if err != nil {
		return model.HealthMetrics{}, err
	}

	metrics := model.HealthMetrics{
		Timestamp:             now,
		AvgSearchLatencyMs:    avgLatency,
		P95SearchLatencyMs:    p95Latency,
		AvgResultRelevance:    avgRelevance,
		NoiseRatio:            score.NoiseRatio,
		DuplicateRate:         score.DuplicateRate,
		ContradictionRate:     score.ContradictionRate,
		TotalMemories:         score.Total,
		ActiveMemories:        score.StateCounts[model.LifecycleActive],
		RecentMemories:        score.StateCounts[model.LifecycleRecent],
		ArchivedMemories:      score.StateCounts[model.LifecycleArchived],
		StaleMemories:         score.StateCounts[model.LifecycleStale],
		DatabaseSizeMB:        c.databaseSizeMB(),
		QueriesPerDay:         queriesPerDay,
		AvgResultsPerQuery:    avgResultsPerQuery,
		HealthScore:           score.Overall,
		ActiveProjects:        activeProjects,
		ArchivedProjects:      archivedProjects,
		CreatedAt:             now,
	}

	if c.gauges != nil {
		c.gauges.Observe(c.project, metrics)
	}
	return metrics, nil
}

func (c *Collector) databaseSizeMB() float64 {
	if c.dbPath == "" {
		return 0
	}
	info, err := os.Stat(c.dbPath)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / (1024 * 1024)
}

func (c *Collector) latencyWindow(since, until time.Time) (avg, p95 float64, err error) {
	var latencies []float64
	if err := c.db.Model(&model.QueryLogEntry{}).
		Where("timestamp >= ? AND timestamp <= ?", since, until).
		Order("latency_ms ASC").Pluck("latency_ms", &latencies).Error; err != nil {
		return 0, 0, errs.Storage("metrics", "collect", "query latency window", err)
	}
	if len(latencies) == 0 {
		return 0, 0, nil
	}
	var sum float64
	for _, v := range latencies {
		sum += v
	}
	avg = sum / float64(len(latencies))
	idx := int(float64(len(latencies)) * 0.95)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	return avg, latencies[idx], nil
}

func (c *Collector) avgRelevanceWindow(since, until time.Time) (float64, error) {
	var values []float64
	if err := c.db.Model(&model.QueryLogEntry{}).
		Where("timestamp >= ? AND timestamp <= ? AND avg_relevance IS NOT NULL", since, until).
		Pluck("avg_relevance", &values).Error; err != nil {
		return 0, errs.Storage("metrics", "collect", "query relevance window", err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

func (c *Collector) weeklyQueryRates(since, until time.Time) (queriesPerDay, avgResultsPerQuery float64, err error) {
	var entries []model.QueryLogEntry
	if err := c.db.Where("timestamp >= ? AND timestamp <= ?", since, until).Find(&entries).Error; err != nil {
		return 0, 0, errs.Storage("metrics", "collect", "query weekly window", err)
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}
	var totalResults int
	for _, e := range entries {
		totalResults += e.ResultCount
	}
	days := until.Sub(since).Hours() / 24
	if days <= 0 {
		days = 1
	}
	return float64(len(entries)) / days, float64(totalResults) / float64(len(entries)), nil
}

// StoreMetrics persists a snapshot to the append-only health_metrics table.
func (c *Collector) StoreMetrics(m model.HealthMetrics) error {
	if err := c.db.Create(&m).Error; err != nil {
		return errs.Storage("metrics", "store_metrics", "insert health metrics snapshot", err)
	}
	return nil
}

// GetLatestMetrics returns the most recent snapshot.
func (c *Collector) GetLatestMetrics() (model.HealthMetrics, error) {
	var m model.HealthMetrics
	if err := c.db.Order("timestamp DESC").First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.HealthMetrics{}, errs.NotFound("metrics", "get_latest_metrics", "no health metrics snapshots recorded yet")
		}
		return model.HealthMetrics{}, errs.Storage("metrics", "get_latest_metrics", "query latest snapshot", err)
	}
	return m, nil
}

// GetMetricsHistory returns every snapshot within the last days days,
// oldest first.
func (c *Collector) GetMetricsHistory(days int, now time.Time) ([]model.HealthMetrics, error) {
	var entries []model.HealthMetrics
	since := now.AddDate(0, 0, -days)
	if err := c.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&entries).Error; err != nil {
		return nil, errs.Storage("metrics", "get_metrics_history", "query snapshot history", err)
	}
	return entries, nil
}

// DailyAggregate is one day's averaged HealthMetrics.
type DailyAggregate struct {
	Date        string
	AvgScore    float64
	AvgNoise    float64
	AvgMemories float64
}

// GetDailyAggregate buckets the last days days of snapshots by calendar
// day and averages their numeric fields.
func (c *Collector) GetDailyAggregate(days int, now time.Time) ([]DailyAggregate, error) {
	history, err := c.GetMetricsHistory(days, now)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		sumScore, sumNoise, sumMemories float64
		count                           int
	}
	buckets := map[string]*bucket{}
	var order []string
	for _, m := range history {
		day := m.Timestamp.Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
			order = append(order, day)
		}
		b.sumScore += m.HealthScore
		b.sumNoise += m.NoiseRatio
		b.sumMemories += float64(m.TotalMemories)
		b.count++
	}

	aggregates := make([]DailyAggregate, 0, len(order))
	for _, day := range order {
		b := buckets[day]
		aggregates = append(aggregates, DailyAggregate{
			Date:        day,
			AvgScore:    b.sumScore / float64(b.count),
			AvgNoise:    b.sumNoise / float64(b.count),
			AvgMemories: b.sumMemories / float64(b.count),
		})
	}
	return aggregates, nil
}

// CleanupOldMetrics deletes snapshots older than retentionDays.
func (c *Collector) CleanupOldMetrics(retentionDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := c.db.Where("timestamp < ?", cutoff).Delete(&model.HealthMetrics{})
	if result.Error != nil {
		return 0, errs.Storage("metrics", "cleanup_old_metrics", "delete old snapshots", result.Error)
	}
	return result.RowsAffected, nil
}
