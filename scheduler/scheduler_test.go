package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/health"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/maintenance"
	"coderag.evalgo.org/store"
)

func newTestScheduler(t *testing.T, cfg HealthScheduleConfig) *Scheduler {
	t.Helper()
	s, err := store.NewChromemStore("", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runner := maintenance.New(maintenance.Config{
		Project:   "p",
		MemStore:  s,
		Lifecycle: lifecycle.New(10),
		Scorer:    health.New(s),
	})
	return New(runner, cfg)
}

func TestStartStop_InstallsAndCancelsTriggers(t *testing.T) {
	sched := newTestScheduler(t, HealthScheduleConfig{
		Enabled:        true,
		WeeklyArchival: JobSchedule{Enabled: true, Day: 0, Time: "02:00"},
	})
	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())

	sched.Stop()
	assert.False(t, sched.IsRunning())
}

func TestStart_DisabledConfigIsNoOp(t *testing.T) {
	sched := newTestScheduler(t, HealthScheduleConfig{Enabled: false})
	require.NoError(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

func TestUpdateConfig_RestartsWhenRunning(t *testing.T) {
	sched := newTestScheduler(t, HealthScheduleConfig{
		Enabled:      true,
		WeeklyReport: JobSchedule{Enabled: true, Day: 0, Time: "03:00"},
	})
	require.NoError(t, sched.Start())
	require.NoError(t, sched.UpdateConfig(HealthScheduleConfig{
		Enabled:      true,
		WeeklyReport: JobSchedule{Enabled: true, Day: 1, Time: "04:00"},
	}))
	assert.True(t, sched.IsRunning())
	sched.Stop()
}

func TestTriggerNow_BypassesSchedulerRunningRequirement(t *testing.T) {
	sched := newTestScheduler(t, HealthScheduleConfig{Enabled: false})
	result := sched.TriggerReportNow()
	assert.True(t, result.Success)
	assert.Equal(t, "weekly_health_report", result.JobName)
}
