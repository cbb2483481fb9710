package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CODERAG_STORAGE_ROOT", "/tmp/coderag-test")
	t.Setenv("CODERAG_AUTO_INDEX_SIZE_THRESHOLD", "250")
	t.Setenv("CODERAG_SEARCH_SEMANTIC_WEIGHT", "0.8")
	t.Setenv("CODERAG_READ_ONLY", "true")

	cfg := Load()

	assert.Equal(t, "/tmp/coderag-test", cfg.StorageRoot)
	assert.Equal(t, 250, cfg.AutoIndexSizeThreshold)
	assert.InDelta(t, 0.8, cfg.SemanticWeight, 0.0001)
	assert.True(t, cfg.ReadOnly)
}

func TestConfig_Validate_RejectsBadSemanticWeight(t *testing.T) {
	cfg := Default()
	cfg.SemanticWeight = 0.2

	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfig_Validate_RejectsZeroConcurrency(t *testing.T) {
	cfg := Default()
	cfg.IndexerConcurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfig_PathHelpers(t *testing.T) {
	cfg := Default()
	cfg.StorageRoot = "/data/coderag"

	assert.Equal(t, "/data/coderag/projects/myproj", cfg.ProjectIndexDir("myproj"))
	assert.Equal(t, "/data/coderag/coderag.db", cfg.MetricsDBPath())
	assert.Equal(t, "/data/coderag/archives", cfg.ArchivesDir())
}
