package autoindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/indexer"
	"coderag.evalgo.org/metricsdb"
	"coderag.evalgo.org/store"
	"coderag.evalgo.org/tracker"
)

type fakeModel struct{ dim int }

func (f *fakeModel) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v, nil
}
func (f *fakeModel) Dim() int          { return f.dim }
func (f *fakeModel) ModelName() string { return "fake-v1" }

func newTestService(t *testing.T, root string, enabled bool, threshold int) *Service {
	t.Helper()
	db, err := metricsdb.Open(":memory:")
	require.NoError(t, err)
	pipeline := embedding.New(&fakeModel{dim: 4}, embedding.NewCache(db), embedding.Config{})

	memStore, err := store.NewChromemStore("", false)
	require.NoError(t, err)
	t.Cleanup(func() { memStore.Close() })

	ix, err := indexer.New(indexer.Config{ProjectName: "proj", Pipeline: pipeline, MemoryStore: memStore})
	require.NoError(t, err)

	tr := tracker.New(db)

	svc, err := New(Config{
		ProjectName:   "proj",
		Root:          root,
		Indexer:       ix,
		Tracker:       tr,
		Enabled:       enabled,
		SizeThreshold: threshold,
	})
	require.NoError(t, err)
	return svc
}

func writeGoFiles(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "f"+string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Foo() {\n\treturn\n}\n"), 0o644))
	}
}

func TestShouldAutoIndex_DisabledReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, dir, false, 500)
	should, err := svc.ShouldAutoIndex()
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldAutoIndex_TrueWhenNotYetIndexed(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, dir, true, 500)
	should, err := svc.ShouldAutoIndex()
	require.NoError(t, err)
	assert.True(t, should)
}

func TestStartAutoIndexing_Foreground(t *testing.T) {
	dir := t.TempDir()
	writeGoFiles(t, dir, 3)
	svc := newTestService(t, dir, true, 500)

	result, err := svc.StartAutoIndexing(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "foreground", result.Mode)
	require.NotNil(t, result.Result)
	assert.Equal(t, 3, result.Result.FilesIndexed)

	progress := svc.GetProgress()
	assert.Equal(t, StatusComplete, progress.Status)
}

func TestStartAutoIndexing_BackgroundOverThreshold(t *testing.T) {
	dir := t.TempDir()
	writeGoFiles(t, dir, 3)
	svc := newTestService(t, dir, true, 1)

	result, err := svc.StartAutoIndexing(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "background", result.Mode)
	assert.Equal(t, 3, result.FileCount)

	require.NoError(t, svc.Close())
	progress := svc.GetProgress()
	assert.True(t, progress.IsBackground)
}

func TestClose_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, dir, true, 500)
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
}
