package bulkarchival

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/archival"
)

func newTestBatch(t *testing.T) *Batch {
	t.Helper()
	m, err := archival.New(filepath.Join(t.TempDir(), "archival.json"))
	require.NoError(t, err)
	return New(m)
}

func TestBulkArchiveProjects_ArchivesEach(t *testing.T) {
	b := newTestBatch(t)
	now := time.Now()

	results, err := b.BulkArchiveProjects([]string{"a", "b"}, false, nil, now)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeArchived, results[0].Outcome)
	assert.Equal(t, OutcomeArchived, results[1].Outcome)
}

func TestBulkArchiveProjects_DryRunDoesNotMutate(t *testing.T) {
	b := newTestBatch(t)
	now := time.Now()

	results, err := b.BulkArchiveProjects([]string{"a"}, true, nil, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWouldArchive, results[0].Outcome)
}

func TestBulkArchiveProjects_RefusesOversizedBatch(t *testing.T) {
	b := newTestBatch(t)
	names := make([]string, MaxProjectsPerOperation+1)
	for i := range names {
		names[i] = "proj"
	}
	_, err := b.BulkArchiveProjects(names, false, nil, time.Now())
	assert.Error(t, err)
}

func TestBulkArchiveProjects_CallsProgressCallback(t *testing.T) {
	b := newTestBatch(t)
	var calls []string
	progress := func(name string, current, total int) {
		calls = append(calls, name)
	}
	_, err := b.BulkArchiveProjects([]string{"a", "b"}, false, progress, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestBulkArchiveProjects_ProgressPanicDoesNotAbortBatch(t *testing.T) {
	b := newTestBatch(t)
	progress := func(name string, current, total int) { panic("boom") }
	results, err := b.BulkArchiveProjects([]string{"a", "b"}, false, progress, time.Now())
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBulkReactivateProjects_RequiresArchivedFirst(t *testing.T) {
	b := newTestBatch(t)
	now := time.Now()
	_, err := b.BulkArchiveProjects([]string{"a"}, false, nil, now)
	require.NoError(t, err)

	results, err := b.BulkReactivateProjects([]string{"a"}, false, nil, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReactivated, results[0].Outcome)
}

func TestAutoArchiveInactive_ArchivesOnlyInactiveProjects(t *testing.T) {
	b := newTestBatch(t)
	now := time.Now()
	require.NoError(t, b.manager.RecordActivity("stale", "search", 1, now.AddDate(0, 0, -40)))
	require.NoError(t, b.manager.RecordActivity("fresh", "search", 1, now))

	results, err := b.AutoArchiveInactive(30, false, 10, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stale", results[0].Project)
	assert.Equal(t, OutcomeArchived, results[0].Outcome)
}

func TestScheduler_StartStop(t *testing.T) {
	b := newTestBatch(t)
	sched := NewScheduler(b, SchedulerConfig{Enabled: true, Frequency: FrequencyDaily, DaysThreshold: 30})
	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	sched.Stop()
	assert.False(t, sched.IsRunning())
}

func TestSchedulerConfig_CronSpecByFrequency(t *testing.T) {
	daily, err := SchedulerConfig{Frequency: FrequencyDaily}.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", daily)

	weekly, err := SchedulerConfig{Frequency: FrequencyWeekly}.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * 0", weekly)

	monthly, err := SchedulerConfig{Frequency: FrequencyMonthly}.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 2 1 * *", monthly)
}
