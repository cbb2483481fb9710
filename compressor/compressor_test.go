package compressor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIndexFixture(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte(`{"id":"a"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.json"), []byte(`{"id":"b"}`), 0o644))
}

func TestCompressThenDecompress_RoundTrips(t *testing.T) {
	tmp := t.TempDir()
	indexPath := filepath.Join(tmp, "index")
	writeIndexFixture(t, indexPath)

	c := New(filepath.Join(tmp, "archives"))
	manifest, err := c.CompressProjectIndex("proj", indexPath, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "proj", manifest.ProjectName)
	assert.Equal(t, "1.0", manifest.ArchiveVersion)
	assert.Greater(t, manifest.CompressionInfo.OriginalSizeMB, 0.0)
	assert.False(t, manifest.HasCache)

	restorePath := filepath.Join(tmp, "restore")
	gotManifest, elapsed, err := c.DecompressProjectIndex("proj", restorePath)
	require.NoError(t, err)
	assert.Equal(t, manifest.ProjectName, gotManifest.ProjectName)
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))

	data, err := os.ReadFile(filepath.Join(restorePath, "index", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(data))

	data, err = os.ReadFile(filepath.Join(restorePath, "index", "sub", "b.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"b"}`, string(data))
}

func TestCompressProjectIndex_IncludesCache(t *testing.T) {
	tmp := t.TempDir()
	indexPath := filepath.Join(tmp, "index")
	writeIndexFixture(t, indexPath)
	cachePath := filepath.Join(tmp, "cache.db")
	require.NoError(t, os.WriteFile(cachePath, []byte("cachebytes"), 0o644))

	c := New(filepath.Join(tmp, "archives"))
	manifest, err := c.CompressProjectIndex("proj", indexPath, cachePath, nil)
	require.NoError(t, err)
	assert.True(t, manifest.HasCache)

	restorePath := filepath.Join(tmp, "restore")
	_, _, err = c.DecompressProjectIndex("proj", restorePath)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(restorePath, "embeddings_cache.db"))
	require.NoError(t, err)
	assert.Equal(t, "cachebytes", string(data))
}

func TestListArchives_ReturnsOnlyDirsWithManifest(t *testing.T) {
	tmp := t.TempDir()
	indexPath := filepath.Join(tmp, "index")
	writeIndexFixture(t, indexPath)

	c := New(filepath.Join(tmp, "archives"))
	_, err := c.CompressProjectIndex("proj-a", indexPath, "", nil)
	require.NoError(t, err)
	_, err = c.CompressProjectIndex("proj-b", indexPath, "", nil)
	require.NoError(t, err)

	archives, err := c.ListArchives()
	require.NoError(t, err)
	assert.Len(t, archives, 2)
}

func TestDeleteArchive_RemovesDirectory(t *testing.T) {
	tmp := t.TempDir()
	indexPath := filepath.Join(tmp, "index")
	writeIndexFixture(t, indexPath)

	c := New(filepath.Join(tmp, "archives"))
	_, err := c.CompressProjectIndex("proj", indexPath, "", nil)
	require.NoError(t, err)

	require.NoError(t, c.DeleteArchive("proj"))
	archives, err := c.ListArchives()
	require.NoError(t, err)
	assert.Len(t, archives, 0)
}

func TestGetTotalStorageSavings_SumsAcrossArchives(t *testing.T) {
	tmp := t.TempDir()
	indexPath := filepath.Join(tmp, "index")
	writeIndexFixture(t, indexPath)

	c := New(filepath.Join(tmp, "archives"))
	_, err := c.CompressProjectIndex("proj-a", indexPath, "", nil)
	require.NoError(t, err)
	_, err = c.CompressProjectIndex("proj-b", indexPath, "", nil)
	require.NoError(t, err)

	savings, err := c.GetTotalStorageSavings()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, savings, int64(0))
}
