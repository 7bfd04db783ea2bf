package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mushkilali/certifiable-bench/bench/runner"
)

func TestLoadConfigFile_ValidYAML_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
warmup_iterations: 50
measure_iterations: 500
verify_outputs: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(50), cfg.WarmupIterations)
	assert.Equal(t, uint32(500), cfg.MeasureIterations)
	assert.False(t, cfg.VerifyOutputs)
	// Untouched fields keep their default.
	assert.Equal(t, uint32(1), cfg.BatchSize)
	assert.True(t, cfg.MonitorEnvironment)
}

func TestLoadConfigFile_EmptyFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, runner.DefaultConfig(), cfg)
}

func TestLoadConfigFile_UnknownField_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `warmup_iteratoins: 50` // typo
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := loadConfigFile(path)
	assert.Error(t, err)
}

func TestLoadConfigFile_MissingFile_Errors(t *testing.T) {
	_, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
