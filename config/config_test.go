package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 128, cfg.Storage.PoolSize)
	assert.Equal(t, 1, cfg.Storage.NumInstances)
	assert.Equal(t, 4, cfg.Storage.BucketKeyWidth)
}

func TestLoadTOMLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.toml")
	content := "[storage]\npool_size = 256\nnum_instances = 4\nbucket_key_width = 8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadTOML(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Storage.PoolSize)
	assert.Equal(t, 4, cfg.Storage.NumInstances)
	assert.Equal(t, 8, cfg.Storage.BucketKeyWidth)
}
