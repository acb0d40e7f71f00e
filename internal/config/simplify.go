package config

import "fmt"

// SimplifyConfig bounds the value simplification recursion.
type SimplifyConfig struct {
	MaxDepth        int `yaml:"max_depth" json:"max_depth"`                 // Recursion ceiling per top-level value
	MaxArrayLength  int `yaml:"max_array_length" json:"max_array_length"`   // Elements kept per collection
	MaxStringLength int `yaml:"max_string_length" json:"max_string_length"` // Characters kept per string
	MaxObjectKeys   int `yaml:"max_object_keys" json:"max_object_keys"`     // Fields kept per struct
	MemoryLimitMB   int `yaml:"memory_limit_mb" json:"memory_limit_mb"`     // Estimated output budget

	// BusinessFields are struct field names always surfaced first,
	// ahead of the computed importance score.
	BusinessFields []string `yaml:"business_fields" json:"business_fields"`

	// Name keyword lists feeding the importance score.
	HighPriorityNames   []string `yaml:"high_priority_names" json:"high_priority_names"`
	MediumPriorityNames []string `yaml:"medium_priority_names" json:"medium_priority_names"`
	LowPriorityNames    []string `yaml:"low_priority_names" json:"low_priority_names"`
}

// DefaultSimplifyConfig returns defaults safe for interactive sessions.
func DefaultSimplifyConfig() SimplifyConfig {
	return SimplifyConfig{
		MaxDepth:        5,
		MaxArrayLength:  20,
		MaxStringLength: 200,
		MaxObjectKeys:   25,
		MemoryLimitMB:   10,

		BusinessFields: []string{
			"id", "ID", "Id", "name", "Name", "status", "Status",
			"error", "Error", "err", "result", "Result",
		},

		HighPriorityNames: []string{
			"id", "name", "status", "error", "err", "result", "value",
			"key", "type", "state", "code", "message",
		},
		MediumPriorityNames: []string{
			"time", "date", "count", "size", "len", "length", "index",
			"total", "amount", "price", "user", "order",
		},
		LowPriorityNames: []string{
			"internal", "temp", "tmp", "cache", "mutex", "lock", "mu",
			"ctx", "wg", "done", "unused", "padding",
		},
	}
}

// ValidateSimplify checks the simplification limits.
func (c *Config) ValidateSimplify() error {
	s := c.Simplify
	if s.MaxDepth < 1 {
		return fmt.Errorf("simplify.max_depth must be >= 1")
	}
	if s.MaxArrayLength < 1 {
		return fmt.Errorf("simplify.max_array_length must be >= 1")
	}
	if s.MaxStringLength < 8 {
		return fmt.Errorf("simplify.max_string_length must be >= 8")
	}
	if s.MaxObjectKeys < 1 {
		return fmt.Errorf("simplify.max_object_keys must be >= 1")
	}
	if s.MemoryLimitMB < 1 {
		return fmt.Errorf("simplify.memory_limit_mb must be >= 1 MB")
	}
	return nil
}
