package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Simplify.MaxDepth)
	assert.Equal(t, 12, cfg.Expansion.MaxVariables)
	assert.InDelta(t, 0.85, cfg.Analysis.BranchProbabilities["validation"], 0.001)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Simplify.MaxDepth, cfg.Simplify.MaxDepth)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebugger.yaml")

	cfg := DefaultConfig()
	cfg.Simplify.MaxDepth = 9
	cfg.Expansion.CallDelayMS = 0
	cfg.Analysis.SensitivityThreshold = 0.5
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Simplify.MaxDepth)
	assert.Equal(t, 0, loaded.Expansion.CallDelayMS)
	assert.InDelta(t, 0.5, loaded.Analysis.SensitivityThreshold, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simplify: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODEBUGGER_LOG_LEVEL", "debug")
	t.Setenv("CODEBUGGER_MAX_DEPTH", "7")
	t.Setenv("CODEBUGGER_MEMORY_LIMIT_MB", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Simplify.MaxDepth)
	assert.Equal(t, DefaultConfig().Simplify.MemoryLimitMB, cfg.Simplify.MemoryLimitMB,
		"unparseable override is ignored")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max depth", func(c *Config) { c.Simplify.MaxDepth = 0 }},
		{"zero max variables", func(c *Config) { c.Expansion.MaxVariables = 0 }},
		{"negative call delay", func(c *Config) { c.Expansion.CallDelayMS = -1 }},
		{"probability above one", func(c *Config) { c.Analysis.BranchProbabilities["validation"] = 1.5 }},
		{"negative tolerance", func(c *Config) { c.Analysis.ValueTolerance = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
