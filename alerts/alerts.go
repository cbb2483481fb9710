// Package alerts implements C18, the Alert Engine: evaluates a configurable
// allow-list of threshold rules against a HealthMetrics snapshot and stores
// deterministically-ided Alert rows through GORM.
package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/metrics"
	"coderag.evalgo.org/model"
)

// Operator is a threshold comparison.
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "="
	OpGreaterOrEqual Operator = ">="
	OpGreater        Operator = ">"
)

func (op Operator) evaluate(value, threshold float64) bool {
	switch op {
	case OpLess:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpGreater:
		return value > threshold
	default:
		return false
	}
}

// Rule evaluates one metric against a threshold.
type Rule struct {
	MetricName      string
	Operator        Operator
	Threshold       float64
	Severity        model.AlertSeverity
	Message         string
	Recommendations []string
}

// Accessor reads the named metric off a HealthMetrics snapshot.
type Accessor func(m model.HealthMetrics) float64

var fieldAccessors = map[string]Accessor{
	"health_score":          func(m model.HealthMetrics) float64 { return m.HealthScore },
	"noise_ratio":           func(m model.HealthMetrics) float64 { return m.NoiseRatio },
	"duplicate_rate":        func(m model.HealthMetrics) float64 { return m.DuplicateRate },
	"contradiction_rate":    func(m model.HealthMetrics) float64 { return m.ContradictionRate },
	"avg_result_relevance":  func(m model.HealthMetrics) float64 { return m.AvgResultRelevance },
	"avg_search_latency_ms": func(m model.HealthMetrics) float64 { return m.AvgSearchLatencyMs },
	"p95_search_latency_ms": func(m model.HealthMetrics) float64 { return m.P95SearchLatencyMs },
	"database_size_mb":      func(m model.HealthMetrics) float64 { return m.DatabaseSizeMB },
	"total_memories":        func(m model.HealthMetrics) float64 { return float64(m.TotalMemories) },
	"active_projects":       func(m model.HealthMetrics) float64 { return float64(m.ActiveProjects) },
}

// DefaultRules is the built-in allow-list of threshold rules.
func DefaultRules() []Rule {
	return []Rule{
		{MetricName: "health_score", Operator: OpLess, Threshold: 60, Severity: model.SeverityCritical, Message: "overall health score is critically low"},
		{MetricName: "health_score", Operator: OpLess, Threshold: 75, Severity: model.SeverityWarning, Message: "overall health score is degraded"},
		{MetricName: "avg_result_relevance", Operator: OpLess, Threshold: 0.50, Severity: model.SeverityCritical, Message: "search quality critically low", Recommendations: []string{
			"run aggressive pruning",
			"archive inactive projects to reduce noise",
			"consider rebuilding indexes from scratch",
		}},
		{MetricName: "avg_result_relevance", Operator: OpLess, Threshold: 0.65, Severity: model.SeverityWarning, Message: "search quality degrading", Recommendations: []string{
			"run a memory health check",
			"consider pruning stale memories",
			"review duplicate memories for consolidation",
		}},
		{MetricName: "avg_search_latency_ms", Operator: OpGreater, Threshold: 100.0, Severity: model.SeverityCritical, Message: "search too slow", Recommendations: []string{
			"check database size; may need archival",
			"verify the vector and keyword store performance",
			"consider enabling query optimization",
		}},
		{MetricName: "avg_search_latency_ms", Operator: OpGreater, Threshold: 50.0, Severity: model.SeverityWarning, Message: "search slowing down", Recommendations: []string{
			"monitor database growth",
			"consider archiving inactive projects",
			"check for index staleness",
		}},
		{MetricName: "noise_ratio", Operator: OpGreaterOrEqual, Threshold: 0.5, Severity: model.SeverityCritical, Message: "noise ratio is critically high", Recommendations: []string{
			"run immediate pruning",
			"archive old projects",
			"review and delete unnecessary memories",
		}},
		{MetricName: "noise_ratio", Operator: OpGreaterOrEqual, Threshold: 0.3, Severity: model.SeverityWarning, Message: "noise ratio is elevated", Recommendations: []string{
			"schedule regular pruning",
			"review stale memories",
			"enable automatic lifecycle management",
		}},
		{MetricName: "database_size_mb", Operator: OpGreaterOrEqual, Threshold: 2000, Severity: model.SeverityCritical, Message: "database size is near capacity", Recommendations: []string{
			"archive inactive projects",
			"review storage optimization options",
			"plan for scaling if needed",
		}},
		{MetricName: "database_size_mb", Operator: OpGreaterOrEqual, Threshold: 1500, Severity: model.SeverityWarning, Message: "database size is growing", Recommendations: []string{
			"consider archiving old projects",
			"review storage optimization options",
		}},
		{MetricName: "total_memories", Operator: OpGreaterOrEqual, Threshold: 50000, Severity: model.SeverityCritical, Message: "memory count is near capacity", Recommendations: []string{
			"run aggressive pruning",
			"archive inactive projects",
		}},
		{MetricName: "total_memories", Operator: OpGreaterOrEqual, Threshold: 40000, Severity: model.SeverityWarning, Message: "memory count is growing", Recommendations: []string{
			"schedule regular pruning",
			"review stale memories",
		}},
		{MetricName: "active_projects", Operator: OpGreaterOrEqual, Threshold: 20, Severity: model.SeverityCritical, Message: "active project count is near capacity", Recommendations: []string{
			"review which projects are actually active",
			"archive completed projects",
		}},
		{MetricName: "active_projects", Operator: OpGreaterOrEqual, Threshold: 15, Severity: model.SeverityWarning, Message: "active project count is growing", Recommendations: []string{
			"review which projects are actually active",
			"consider archiving completed projects",
			"use project context switching for focus",
		}},
	}
}

// Engine evaluates rules against snapshots and persists Alert rows.
type Engine struct {
	db      *gorm.DB
	rules   []Rule
	project string
	gauges  *metrics.Gauges
}

// Config configures a new Engine.
type Config struct {
	DB      *gorm.DB
	Rules   []Rule // nil uses DefaultRules()
	Project string
	Gauges  *metrics.Gauges // optional; nil disables Prometheus observation
}

// New creates an Engine.
func New(cfg Config) *Engine {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{db: cfg.DB, rules: rules, project: cfg.Project, gauges: cfg.Gauges}
}

// Evaluate checks metrics against every rule and store-or-updates the
// resulting alerts. Returns the alerts that fired this evaluation.
func (e *Engine) Evaluate(metrics model.HealthMetrics, now time.Time) ([]model.Alert, error) {
	var fired []model.Alert
	for _, rule := range e.rules {
		accessor, ok := fieldAccessors[rule.MetricName]
		if !ok {
			continue
		}
		value := accessor(metrics)
		if !rule.Operator.evaluate(value, rule.Threshold) {
			continue
		}

		recommendations, err := json.Marshal(rule.Recommendations)
		if err != nil {
			return nil, errs.Storage("alerts", "evaluate", "marshal rule recommendations", err)
		}
		alert := model.Alert{
			ID:              alertID(rule.MetricName, now),
			Severity:        rule.Severity,
			MetricName:      rule.MetricName,
			CurrentValue:    value,
			ThresholdValue:  rule.Threshold,
			Message:         rule.Message,
			Recommendations: string(recommendations),
			Timestamp:       now,
		}
		if err := e.storeOrUpdate(alert); err != nil {
			return nil, err
		}
		fired = append(fired, alert)
	}
	if e.gauges != nil {
		if err := e.observeActiveAlertGauges(now); err != nil {
			return nil, err
		}
	}
	return fired, nil
}

func (e *Engine) observeActiveAlertGauges(now time.Time) error {
	active, err := e.ActiveAlerts(now)
	if err != nil {
		return err
	}
	counts := map[model.AlertSeverity]int{
		model.SeverityCritical: 0,
		model.SeverityWarning:  0,
		model.SeverityInfo:     0,
	}
	for _, a := range active {
		counts[a.Severity]++
	}
	for severity, count := range counts {
		e.gauges.ObserveActiveAlerts(e.project, severity, count)
	}
	return nil
}

func alertID(metric string, now time.Time) string {
	return fmt.Sprintf("alert_%s_%s", metric, now.Format("20060102"))
}

func (e *Engine) storeOrUpdate(alert model.Alert) error {
	var existing model.Alert
	err := e.db.First(&existing, "id = ?", alert.ID).Error
	if err == gorm.ErrRecordNotFound {
		if err := e.db.Create(&alert).Error; err != nil {
			return errs.Storage("alerts", "evaluate", "insert alert", err)
		}
		return nil
	}
	if err != nil {
		return errs.Storage("alerts", "evaluate", "look up existing alert", err)
	}

	existing.CurrentValue = alert.CurrentValue
	existing.Timestamp = alert.Timestamp
	if err := e.db.Save(&existing).Error; err != nil {
		return errs.Storage("alerts", "evaluate", "update existing alert", err)
	}
	return nil
}

// ActiveAlerts returns alerts with resolved=false and (snoozed_until null
// or in the past).
func (e *Engine) ActiveAlerts(now time.Time) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := e.db.Where("resolved = ? AND (snoozed_until IS NULL OR snoozed_until < ?)", false, now).
		Order("timestamp DESC").Find(&alerts).Error; err != nil {
		return nil, errs.Storage("alerts", "active_alerts", "query active alerts", err)
	}
	return alerts, nil
}

// ResolveAlert marks id resolved.
func (e *Engine) ResolveAlert(id string, now time.Time) error {
	result := e.db.Model(&model.Alert{}).Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return errs.Storage("alerts", "resolve_alert", "update alert", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("alerts", "resolve_alert", fmt.Sprintf("alert %q not found", id))
	}
	return nil
}

// SnoozeAlert sets id's snoozed_until to now+hours.
func (e *Engine) SnoozeAlert(id string, hours int, now time.Time) error {
	until := now.Add(time.Duration(hours) * time.Hour)
	result := e.db.Model(&model.Alert{}).Where("id = ?", id).Update("snoozed_until", until)
	if result.Error != nil {
		return errs.Storage("alerts", "snooze_alert", "update alert", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("alerts", "snooze_alert", fmt.Sprintf("alert %q not found", id))
	}
	return nil
}

// CleanupOldAlerts deletes resolved alerts whose resolved_at predates the
// retention cutoff.
func (e *Engine) CleanupOldAlerts(retentionDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := e.db.Where("resolved = ? AND resolved_at < ?", true, cutoff).Delete(&model.Alert{})
	if result.Error != nil {
		return 0, errs.Storage("alerts", "cleanup_old_alerts", "delete old alerts", result.Error)
	}
	return result.RowsAffected, nil
}
