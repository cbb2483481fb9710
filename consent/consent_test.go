package consent

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManager_OptInOptOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consent.json")
	m, err := NewFileManager(path)
	require.NoError(t, err)

	assert.False(t, m.IsOptedIn("proj"))

	require.NoError(t, m.OptIn("proj"))
	assert.True(t, m.IsOptedIn("proj"))
	assert.Contains(t, m.ListOptedIn(), "proj")

	require.NoError(t, m.OptOut("proj"))
	assert.False(t, m.IsOptedIn("proj"))
}

func TestFileManager_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consent.json")
	m1, err := NewFileManager(path)
	require.NoError(t, err)
	require.NoError(t, m1.OptIn("proj"))

	m2, err := NewFileManager(path)
	require.NoError(t, err)
	assert.True(t, m2.IsOptedIn("proj"))
}
