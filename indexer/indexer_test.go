package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/metricsdb"
	"coderag.evalgo.org/store"
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

func newTestIndexer(t *testing.T, project string) *Indexer {
	t.Helper()
	db, err := metricsdb.Open(":memory:")
	require.NoError(t, err)
	pipeline := embedding.New(&fakeModel{dim: 4}, embedding.NewCache(db), embedding.Config{})

	memStore, err := store.NewChromemStore("", false)
	require.NoError(t, err)
	t.Cleanup(func() { memStore.Close() })

	ix, err := New(Config{ProjectName: project, Pipeline: pipeline, MemoryStore: memStore})
	require.NoError(t, err)
	return ix
}

func TestIndexFile_IndexesUnitsAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Foo() {\n\treturn\n}\n"), 0o644))

	ix := newTestIndexer(t, "proj")
	ctx := context.Background()

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.UnitsIndexed)

	// Re-indexing the same unchanged file is stable: same count, no
	// duplicate units left behind.
	result2, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result2.UnitsIndexed)

	count, err := ix.memStore.Count(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexFile_PrunesRemovedUnits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Foo() {\n\treturn\n}\n\nfunc Bar() {\n\treturn\n}\n"), 0o644))

	ix := newTestIndexer(t, "proj")
	ctx := context.Background()

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.UnitsIndexed)

	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Foo() {\n\treturn\n}\n"), 0o644))
	result2, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result2.UnitsIndexed)

	count, err := ix.memStore.Count(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexFile_SkipsUnparseableExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ix := newTestIndexer(t, "proj")
	result, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestDeleteFileIndex_RemovesUnits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Foo() {\n\treturn\n}\n"), 0o644))

	ix := newTestIndexer(t, "proj")
	ctx := context.Background()
	_, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)

	n, err := ix.DeleteFileIndex(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := ix.memStore.Count(ctx, "proj")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexDirectory_AggregatesCounters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc Foo() {\n\treturn\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a\n\nfunc Bar() {\n\treturn\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("n/a"), 0o644))

	ix := newTestIndexer(t, "proj")
	result, err := ix.IndexDirectory(context.Background(), dir, true, nil, nil)
	require.NoError(t, err)
	// readme.md is filtered out during enumeration (unsupported extension),
	// so it never reaches index_file and contributes to neither bucket.
	assert.Equal(t, 2, result.FilesIndexed)
	assert.Equal(t, 0, result.FilesSkipped)
	assert.Equal(t, 2, result.UnitsIndexed)
}
