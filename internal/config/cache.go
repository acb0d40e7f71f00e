package config

// CacheConfig configures the persistent response cache.
// The cache is content-addressed and scoped to the debug session; it is
// invalidated wholesale on session detach.
type CacheConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	DatabasePath string `yaml:"database_path" json:"database_path"`
	MaxEntries   int    `yaml:"max_entries" json:"max_entries"`
}

// DefaultCacheConfig returns cache defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		DatabasePath: "data/codebugger.db",
		MaxEntries:   10000,
	}
}
