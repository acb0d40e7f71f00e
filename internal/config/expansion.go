package config

import "fmt"

// ExpansionConfig bounds the live variable expansion walk.
type ExpansionConfig struct {
	// MaxVariables is the top-N budget at depth 1; the effective budget
	// shrinks as configured depth grows so total work stays bounded.
	MaxVariables int `yaml:"max_variables" json:"max_variables"`

	// MaxDepth is the default depth for frame expansion.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// CallDelayMS is the pause between consecutive debugger requests.
	// Expansion requests are serialized on purpose; this keeps a chatty
	// adapter transport from being saturated.
	CallDelayMS int `yaml:"call_delay_ms" json:"call_delay_ms"`

	// MaxChildrenPerLevel caps how many live children are followed at
	// each nesting level after importance ranking.
	MaxChildrenPerLevel int `yaml:"max_children_per_level" json:"max_children_per_level"`
}

// DefaultExpansionConfig returns defaults matching a local debug adapter.
func DefaultExpansionConfig() ExpansionConfig {
	return ExpansionConfig{
		MaxVariables:        12,
		MaxDepth:            3,
		CallDelayMS:         10,
		MaxChildrenPerLevel: 8,
	}
}

// ValidateExpansion checks the expansion limits.
func (c *Config) ValidateExpansion() error {
	e := c.Expansion
	if e.MaxVariables < 1 {
		return fmt.Errorf("expansion.max_variables must be >= 1")
	}
	if e.MaxDepth < 1 {
		return fmt.Errorf("expansion.max_depth must be >= 1")
	}
	if e.CallDelayMS < 0 {
		return fmt.Errorf("expansion.call_delay_ms must be >= 0")
	}
	if e.MaxChildrenPerLevel < 1 {
		return fmt.Errorf("expansion.max_children_per_level must be >= 1")
	}
	return nil
}
