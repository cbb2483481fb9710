package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/metricsdb"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	db, err := metricsdb.Open(":memory:")
	require.NoError(t, err)
	return New(db)
}

func TestIsIndexed_FalseInitially(t *testing.T) {
	tr := newTestTracker(t)
	ok, err := tr.IsIndexed("proj")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateMetadata_CreateThenUpdate(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.UpdateMetadata("proj", 10, 50))
	meta, err := tr.GetMetadata("proj")
	require.NoError(t, err)
	assert.Equal(t, 10, meta.TotalFiles)
	assert.Equal(t, 1, meta.IndexVersion)
	firstIndexed := meta.FirstIndexedAt

	require.NoError(t, tr.UpdateMetadata("proj", 12, 60))
	meta2, err := tr.GetMetadata("proj")
	require.NoError(t, err)
	assert.Equal(t, 12, meta2.TotalFiles)
	assert.Equal(t, 2, meta2.IndexVersion)
	assert.Equal(t, firstIndexed, meta2.FirstIndexedAt)

	ok, err := tr.IsIndexed("proj")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMetadata_NotFound(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.GetMetadata("missing")
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.KindNotFound))
}

func TestSetWatching(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.UpdateMetadata("proj", 1, 1))
	require.NoError(t, tr.SetWatching("proj", true))

	meta, err := tr.GetMetadata("proj")
	require.NoError(t, err)
	assert.True(t, meta.IsWatching)
}

func TestSetWatching_NotIndexed(t *testing.T) {
	tr := newTestTracker(t)
	err := tr.SetWatching("missing", true)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.KindNotFound))
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0o644))

	tr := newTestTracker(t)
	require.NoError(t, tr.UpdateMetadata("proj", 1, 1))

	stale, err := tr.IsStale("proj", dir)
	require.NoError(t, err)
	assert.False(t, stale)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package a // changed"), 0o644))

	stale, err = tr.IsStale("proj", dir)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestDeleteMetadata(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.UpdateMetadata("proj", 1, 1))
	require.NoError(t, tr.DeleteMetadata("proj"))

	ok, err := tr.IsIndexed("proj")
	require.NoError(t, err)
	assert.False(t, ok)
}
