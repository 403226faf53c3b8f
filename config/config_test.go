package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0x4000, cfg.Engine.HeapCapacity)
	assert.Equal(t, 4096, cfg.Engine.StackCapacity)

	assert.False(t, cfg.Analyzer.ForbidLoops)
	assert.False(t, cfg.Analyzer.CheckDeadCode)

	assert.Equal(t, 1000, cfg.Debugger.HistorySize)
	assert.True(t, cfg.Debugger.ShowSource)
	assert.True(t, cfg.Debugger.ShowRegisters)
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	assert.NotEmpty(t, path)
	assert.Equal(t, "config.toml", filepath.Base(path))
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Analyzer.ForbidLoops = true
	cfg.Analyzer.Forbidden = []string{"svc", "bl"}
	cfg.Debugger.HistorySize = 500

	require.NoError(t, cfg.SaveTo(configPath))
	require.FileExists(t, configPath)

	loaded, err := LoadFrom(configPath)
	require.NoError(t, err)

	assert.True(t, loaded.Analyzer.ForbidLoops)
	assert.Equal(t, []string{"svc", "bl"}, loaded.Analyzer.Forbidden)
	assert.Equal(t, 500, loaded.Debugger.HistorySize)
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	require.NoError(t, err)
	assert.Equal(t, 0x4000, cfg.Engine.HeapCapacity)
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[engine]
heap_capacity = "not a number"
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidTOML), 0644))

	_, err := LoadFrom(configPath)
	assert.Error(t, err)
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	require.NoError(t, cfg.SaveTo(configPath))
	assert.FileExists(t, configPath)
}
