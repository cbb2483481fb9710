// Package metrics implements C17, the Metrics Collector: append-only
// health_metrics/query_log GORM tables plus Prometheus gauges mirroring
// the latest snapshot, grounded on tracing.Metrics's
// promauto.NewGaugeVec/NewHistogram grouping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"coderag.evalgo.org/model"
)

// Gauges exposes eight fields of the latest HealthMetrics snapshot as
// Prometheus gauges labeled by project, plus a query-latency histogram and
// the active-alert and capacity-status gauges.
type Gauges struct {
	TotalMemories      *prometheus.GaugeVec
	DatabaseSizeMB     *prometheus.GaugeVec
	HealthScore        *prometheus.GaugeVec
	NoiseRatio         *prometheus.GaugeVec
	DuplicateRate      *prometheus.GaugeVec
	AvgSearchLatencyMs *prometheus.GaugeVec
	P95SearchLatencyMs *prometheus.GaugeVec
	QueriesPerDay      *prometheus.GaugeVec
	QueryLatency       *prometheus.HistogramVec
	ActiveAlerts       *prometheus.GaugeVec
	CapacityStatus     *prometheus.GaugeVec
}

// NewGauges creates and registers the metrics collector's Prometheus
// instruments under namespace (default "coderag" if empty).
func NewGauges(namespace string) *Gauges {
	if namespace == "" {
		namespace = "coderag"
	}

	labels := []string{"project"}
	return &Gauges{
		TotalMemories: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_memories", Help: "Total stored memories.",
		}, labels),
		DatabaseSizeMB: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "database_size_mb", Help: "Store size in megabytes.",
		}, labels),
		HealthScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "health_score", Help: "Overall health score, 0-100.",
		}, labels),
		NoiseRatio: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "noise_ratio", Help: "Stale plus half of archived memories, over total memories.",
		}, labels),
		DuplicateRate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "duplicate_rate", Help: "Fraction of exact-content duplicates.",
		}, labels),
		AvgSearchLatencyMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "avg_search_latency_ms", Help: "1-day average search latency.",
		}, labels),
		P95SearchLatencyMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "p95_search_latency_ms", Help: "1-day p95 search latency.",
		}, labels),
		QueriesPerDay: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queries_per_day", Help: "7-day average queries per day.",
		}, labels),
		QueryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "query_latency_ms", Help: "Per-query search latency.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, labels),
		ActiveAlerts: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_alerts", Help: "Unresolved, unsnoozed alerts by severity.",
		}, []string{"project", "severity"}),
		CapacityStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "capacity_status", Help: "Capacity status per component: 0=healthy, 1=warning, 2=critical.",
		}, []string{"project", "component"}),
	}
}

// Observe updates the eight snapshot gauges from a freshly collected
// snapshot; QueryLatency, ActiveAlerts and CapacityStatus have their own
// Observe* methods.
func (g *Gauges) Observe(project string, m model.HealthMetrics) {
	g.TotalMemories.WithLabelValues(project).Set(float64(m.TotalMemories))
	g.DatabaseSizeMB.WithLabelValues(project).Set(m.DatabaseSizeMB)
	g.HealthScore.WithLabelValues(project).Set(m.HealthScore)
	g.NoiseRatio.WithLabelValues(project).Set(m.NoiseRatio)
	g.DuplicateRate.WithLabelValues(project).Set(m.DuplicateRate)
	g.AvgSearchLatencyMs.WithLabelValues(project).Set(m.AvgSearchLatencyMs)
	g.P95SearchLatencyMs.WithLabelValues(project).Set(m.P95SearchLatencyMs)
	g.QueriesPerDay.WithLabelValues(project).Set(m.QueriesPerDay)
}

// ObserveQuery records one query's latency into the histogram.
func (g *Gauges) ObserveQuery(project string, latencyMs float64) {
	g.QueryLatency.WithLabelValues(project).Observe(latencyMs)
}

// ObserveActiveAlerts sets the active-alert count for one severity.
func (g *Gauges) ObserveActiveAlerts(project string, severity model.AlertSeverity, count int) {
	g.ActiveAlerts.WithLabelValues(project, string(severity)).Set(float64(count))
}

// ObserveCapacityStatus sets one component's capacity status:
// 0=healthy, 1=warning, 2=critical.
func (g *Gauges) ObserveCapacityStatus(project, component string, status int) {
	g.CapacityStatus.WithLabelValues(project, component).Set(float64(status))
}
