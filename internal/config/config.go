// Package config holds all codebugger configuration.
//
// The engine itself never reads files; a loaded *Config is passed down to
// whichever component needs it. Defaults are tuned for interactive debugging
// sessions where a partial answer now beats a complete answer later.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all codebugger configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Value simplification knobs
	Simplify SimplifyConfig `yaml:"simplify"`

	// Variable expansion orchestration
	Expansion ExpansionConfig `yaml:"expansion"`

	// Symbolic + path-sensitivity analysis
	Analysis AnalysisConfig `yaml:"analysis"`

	// Response cache persistence
	Cache CacheConfig `yaml:"cache"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codebugger",
		Version: "0.4.0",

		Simplify:  DefaultSimplifyConfig(),
		Expansion: DefaultExpansionConfig(),
		Analysis:  DefaultAnalysisConfig(),
		Cache:     DefaultCacheConfig(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks every section; the first failure wins.
func (c *Config) Validate() error {
	if err := c.ValidateSimplify(); err != nil {
		return err
	}
	if err := c.ValidateExpansion(); err != nil {
		return err
	}
	if err := c.ValidateAnalysis(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEBUGGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODEBUGGER_CACHE_PATH"); v != "" {
		c.Cache.DatabasePath = v
	}
	if v := os.Getenv("CODEBUGGER_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Simplify.MaxDepth = n
		}
	}
	if v := os.Getenv("CODEBUGGER_MEMORY_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Simplify.MemoryLimitMB = n
		}
	}
}
