// Package capacity implements C19, the Capacity Planner: fits an
// ordinary-least-squares trend line per tracked metric against recent
// HealthMetrics history and projects when each will cross its threshold.
package capacity

import (
	"fmt"
	"time"

	"coderag.evalgo.org/metrics"
	"coderag.evalgo.org/model"
)

// Status is a capacity severity level, ordered HEALTHY < WARNING < CRITICAL.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

func maxStatus(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Trend classifies a metric's direction of travel.
type Trend string

const (
	TrendStable    Trend = "STABLE"
	TrendGrowing   Trend = "GROWING"
	TrendShrinking Trend = "SHRINKING"
)

// thresholds and epsilons, grounded on spec.md's C19 status table.
var (
	warnThreshold = map[string]float64{
		"database_size_mb": 1500,
		"total_memories":   40000,
		"active_projects":  15,
	}
	criticalThreshold = map[string]float64{
		"database_size_mb": 2000,
		"total_memories":   50000,
		"active_projects":  20,
	}
	trendEpsilon = map[string]float64{
		"database_size_mb": 0.5,
		"total_memories":   10,
		"active_projects":  0.1,
	}
	trackedMetrics = []string{"database_size_mb", "total_memories", "active_projects"}
)

func metricValue(name string, m model.HealthMetrics) float64 {
	switch name {
	case "database_size_mb":
		return m.DatabaseSizeMB
	case "total_memories":
		return float64(m.TotalMemories)
	case "active_projects":
		return float64(m.ActiveProjects)
	default:
		return 0
	}
}

// Projection is one metric's capacity forecast.
type Projection struct {
	MetricName        string   `json:"metric_name"`
	CurrentValue      float64  `json:"current_value"`
	SlopePerDay       float64  `json:"slope_per_day"`
	Trend             Trend    `json:"trend"`
	Status            Status   `json:"status"`
	WarnThreshold     float64  `json:"warn_threshold"`
	CriticalThreshold float64  `json:"critical_threshold"`
	DaysUntilLimit    *float64 `json:"days_until_limit,omitempty"`
}

// Forecast is the full capacity report across tracked metrics.
type Forecast struct {
	Projections     []Projection `json:"projections"`
	OverallStatus   Status       `json:"overall_status"`
	Recommendations []string     `json:"recommendations"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

// HistoryProvider supplies the HealthMetrics snapshots a Planner forecasts
// from. *metrics.Collector satisfies it.
type HistoryProvider interface {
	GetMetricsHistory(days int, now time.Time) ([]model.HealthMetrics, error)
}

// Planner produces capacity forecasts from recent metrics history.
type Planner struct {
	history HistoryProvider
	gauges  *metrics.Gauges
	project string
}

// Config configures a new Planner.
type Config struct {
	History HistoryProvider
	Gauges  *metrics.Gauges // optional; nil disables Prometheus observation
	Project string
}

// New creates a Planner.
func New(cfg Config) *Planner {
	return &Planner{history: cfg.History, gauges: cfg.Gauges, project: cfg.Project}
}

// Forecast reads up to historyDays of HealthMetrics and projects each
// tracked metric's trend and threshold crossing.
func (p *Planner) Forecast(historyDays int, now time.Time) (Forecast, error) {
	history, err := p.history.GetMetricsHistory(historyDays, now)
	if err != nil {
		return Forecast{}, err
	}

	if len(history) == 0 {
		return p.healthyPlaceholder(now), nil
	}

	forecast := Forecast{GeneratedAt: now, OverallStatus: StatusHealthy}
	for _, metricName := range trackedMetrics {
		proj := projectMetric(metricName, history)
		forecast.Projections = append(forecast.Projections, proj)
		forecast.OverallStatus = maxStatus(forecast.OverallStatus, proj.Status)
	}
	forecast.Recommendations = recommendationsFor(forecast.Projections)

	if p.gauges != nil {
		for _, proj := range forecast.Projections {
			p.gauges.ObserveCapacityStatus(p.project, proj.MetricName, proj.Status.rank())
		}
	}
	return forecast, nil
}

func (p *Planner) healthyPlaceholder(now time.Time) Forecast {
	var projections []Projection
	for _, metricName := range trackedMetrics {
		projections = append(projections, Projection{
			MetricName:        metricName,
			Trend:             TrendStable,
			Status:            StatusHealthy,
			WarnThreshold:     warnThreshold[metricName],
			CriticalThreshold: criticalThreshold[metricName],
		})
	}
	return Forecast{
		Projections:     projections,
		OverallStatus:   StatusHealthy,
		Recommendations: nil,
		GeneratedAt:     now,
	}
}

func projectMetric(metricName string, history []model.HealthMetrics) Projection {
	first := history[0].Timestamp
	current := metricValue(metricName, history[len(history)-1])

	var slope float64
	if len(history) > 1 {
		slope = olsSlope(history, first, metricName)
	}

	epsilon := trendEpsilon[metricName]
	trend := TrendStable
	if slope > epsilon {
		trend = TrendGrowing
	} else if slope < -epsilon {
		trend = TrendShrinking
	}

	warn := warnThreshold[metricName]
	critical := criticalThreshold[metricName]
	status := StatusHealthy
	if current >= critical {
		status = StatusCritical
	} else if current >= warn {
		status = StatusWarning
	}

	proj := Projection{
		MetricName:        metricName,
		CurrentValue:      current,
		SlopePerDay:       slope,
		Trend:             trend,
		Status:            status,
		WarnThreshold:     warn,
		CriticalThreshold: critical,
	}

	if slope > 0 && status != StatusCritical {
		days := (critical - current) / slope
		proj.DaysUntilLimit = &days
	}
	return proj
}

// olsSlope fits a simple ordinary-least-squares line of metric value vs.
// days-since-first and returns its slope (units per day).
func olsSlope(history []model.HealthMetrics, first time.Time, metricName string) float64 {
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for _, m := range history {
		x := m.Timestamp.Sub(first).Hours() / 24
		y := metricValue(metricName, m)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}

func recommendationsFor(projections []Projection) []string {
	var recs []string
	for _, proj := range projections {
		switch proj.Status {
		case StatusCritical:
			recs = append(recs, fmt.Sprintf("%s is at critical capacity; archive or prune now", proj.MetricName))
		case StatusWarning:
			if proj.DaysUntilLimit != nil && *proj.DaysUntilLimit > 0 {
				recs = append(recs, fmt.Sprintf("%s is trending toward its limit in roughly %.0f days", proj.MetricName, *proj.DaysUntilLimit))
			} else {
				recs = append(recs, fmt.Sprintf("%s is approaching its warning threshold", proj.MetricName))
			}
		}
	}
	return recs
}
