package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/health"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/store"
)

func unit(id string, createdAt, lastAccessed time.Time, useCount int, level model.ContextLevel, state model.LifecycleState) model.MemoryUnit {
	return model.MemoryUnit{
		ID: id, ProjectName: "p", Content: "func " + id + "() {}",
		Category: model.CategoryCodeUnit, ContextLevel: level, LifecycleState: state,
		CreatedAt: createdAt, LastAccessed: lastAccessed, UseCount: useCount,
		Embedding: []float32{1, 0, 0, 0},
		Metadata:  map[string]string{model.MetaFilePath: "a.go"},
	}
}

func newRunner(t *testing.T) (*Runner, store.MemoryStore) {
	t.Helper()
	s, err := store.NewChromemStore("", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := New(Config{
		Project:   "p",
		MemStore:  s,
		Lifecycle: lifecycle.New(10),
		Scorer:    health.New(s),
	})
	return r, s
}

func TestWeeklyArchival_DryRunOnlyCounts(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	old := now.AddDate(0, 0, -400)
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", old, old, 1, model.ContextProjectContext, model.LifecycleActive),
	}))

	result := r.WeeklyArchival(context.Background(), true, now)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.MemoriesProcessed)
	assert.Equal(t, 1, result.MemoriesArchived)

	units, err := s.All(context.Background(), "p", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleActive, units[0].LifecycleState)
}

func TestWeeklyArchival_PersistsTransitions(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	old := now.AddDate(0, 0, -400)
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", old, old, 1, model.ContextProjectContext, model.LifecycleActive),
	}))

	result := r.WeeklyArchival(context.Background(), false, now)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.MemoriesArchived)

	units, err := s.All(context.Background(), "p", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleStale, units[0].LifecycleState)
}

func TestMonthlyCleanup_DeletesOldStaleLowUse(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	veryOld := now.AddDate(0, 0, -400)
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", veryOld, veryOld, 2, model.ContextProjectContext, model.LifecycleStale),
		unit("2", veryOld, veryOld, 2, model.ContextUserPreference, model.LifecycleStale),
		unit("3", now, now, 2, model.ContextProjectContext, model.LifecycleActive),
	}))

	result := r.MonthlyCleanup(context.Background(), false, 0, now)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.MemoriesDeleted)

	count, err := s.Count(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMonthlyCleanup_DryRunOnlyCounts(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	veryOld := now.AddDate(0, 0, -400)
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", veryOld, veryOld, 2, model.ContextProjectContext, model.LifecycleStale),
	}))

	result := r.MonthlyCleanup(context.Background(), true, 0, now)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.MemoriesDeleted)

	count, err := s.Count(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMonthlyCleanup_NeverDeletesUserPreference(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	veryOld := now.AddDate(0, 0, -400)
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", veryOld, veryOld, 1, model.ContextUserPreference, model.LifecycleStale),
	}))

	result := r.MonthlyCleanup(context.Background(), false, 0, now)
	assert.Equal(t, 0, result.MemoriesDeleted)

	count, err := s.Count(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWeeklyHealthReport_NoWrites(t *testing.T) {
	r, s := newRunner(t)
	now := time.Now()
	require.NoError(t, s.Upsert(context.Background(), []model.MemoryUnit{
		unit("1", now, now, 1, model.ContextProjectContext, model.LifecycleActive),
	}))

	result := r.WeeklyHealthReport(context.Background(), now)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.MemoriesProcessed)

	count, err := s.Count(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHistory_CapsAtJobHistoryCap(t *testing.T) {
	r, _ := newRunner(t)
	now := time.Now()
	for i := 0; i < jobHistoryCap+10; i++ {
		r.WeeklyHealthReport(context.Background(), now)
	}
	assert.Len(t, r.History(), jobHistoryCap)
}
