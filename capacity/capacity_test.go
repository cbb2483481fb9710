package capacity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/model"
)

type fakeHistory struct {
	snapshots []model.HealthMetrics
}

func (f fakeHistory) GetMetricsHistory(days int, now time.Time) ([]model.HealthMetrics, error) {
	return f.snapshots, nil
}

func TestForecast_NoHistoryReturnsHealthyPlaceholder(t *testing.T) {
	p := New(Config{History: fakeHistory{}})
	forecast, err := p.Forecast(30, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, forecast.OverallStatus)
	assert.Empty(t, forecast.Recommendations)
	for _, proj := range forecast.Projections {
		assert.Equal(t, TrendStable, proj.Trend)
		assert.Nil(t, proj.DaysUntilLimit)
	}
}

func TestForecast_SingleSnapshotZeroSlope(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := New(Config{History: fakeHistory{snapshots: []model.HealthMetrics{
		{Timestamp: now, DatabaseSizeMB: 500, TotalMemories: 1000, ActiveProjects: 3},
	}}})

	forecast, err := p.Forecast(30, now)
	require.NoError(t, err)
	for _, proj := range forecast.Projections {
		assert.Equal(t, 0.0, proj.SlopePerDay)
		assert.Equal(t, TrendStable, proj.Trend)
	}
}

func TestForecast_GrowingTrendProjectsDaysUntilLimit(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var snapshots []model.HealthMetrics
	for i := 0; i < 10; i++ {
		snapshots = append(snapshots, model.HealthMetrics{
			Timestamp:      start.AddDate(0, 0, i),
			DatabaseSizeMB: 1000 + float64(i)*50, // 50 MB/day growth
			TotalMemories:  1000,
			ActiveProjects: 3,
		})
	}
	p := New(Config{History: fakeHistory{snapshots: snapshots}})

	forecast, err := p.Forecast(30, start.AddDate(0, 0, 9))
	require.NoError(t, err)

	var dbProj Projection
	for _, proj := range forecast.Projections {
		if proj.MetricName == "database_size_mb" {
			dbProj = proj
		}
	}
	assert.Equal(t, TrendGrowing, dbProj.Trend)
	assert.InDelta(t, 50.0, dbProj.SlopePerDay, 0.01)
	require.NotNil(t, dbProj.DaysUntilLimit)
	assert.Greater(t, *dbProj.DaysUntilLimit, 0.0)
}

func TestForecast_CriticalOverCurrentThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := New(Config{History: fakeHistory{snapshots: []model.HealthMetrics{
		{Timestamp: now.AddDate(0, 0, -1), TotalMemories: 51000},
		{Timestamp: now, TotalMemories: 52000},
	}}})

	forecast, err := p.Forecast(30, now)
	require.NoError(t, err)
	assert.Equal(t, StatusCritical, forecast.OverallStatus)

	var found bool
	for _, rec := range forecast.Recommendations {
		if rec != "" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestForecast_ShrinkingTrendHasNoDaysUntilLimit(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var snapshots []model.HealthMetrics
	for i := 0; i < 5; i++ {
		snapshots = append(snapshots, model.HealthMetrics{
			Timestamp:     start.AddDate(0, 0, i),
			TotalMemories: 5000 - i*100,
		})
	}
	p := New(Config{History: fakeHistory{snapshots: snapshots}})

	forecast, err := p.Forecast(30, start.AddDate(0, 0, 4))
	require.NoError(t, err)
	for _, proj := range forecast.Projections {
		if proj.MetricName == "total_memories" {
			assert.Equal(t, TrendShrinking, proj.Trend)
			assert.Nil(t, proj.DaysUntilLimit)
		}
	}
}

func TestMaxStatus_OrdersCorrectly(t *testing.T) {
	assert.Equal(t, StatusWarning, maxStatus(StatusHealthy, StatusWarning))
	assert.Equal(t, StatusCritical, maxStatus(StatusWarning, StatusCritical))
	assert.Equal(t, StatusCritical, maxStatus(StatusCritical, StatusHealthy))
}
