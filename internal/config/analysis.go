package config

import "fmt"

// AnalysisConfig tunes the symbolic analyzer and the path sensitivity
// builder. The probabilities here are heuristic defaults, not calibrated
// against real execution data; treat them as starting points.
type AnalysisConfig struct {
	// BranchProbabilities are the baseline success probabilities per
	// branch type at a detected branch point.
	BranchProbabilities map[string]float64 `yaml:"branch_probabilities" json:"branch_probabilities"`

	// SensitivityThreshold marks a variable high-sensitivity when its
	// score (path-state spread + conflict bonus) exceeds it.
	SensitivityThreshold float64 `yaml:"sensitivity_threshold" json:"sensitivity_threshold"`

	// LowProbabilityThreshold marks a path critical when its inferred
	// probability drops below it.
	LowProbabilityThreshold float64 `yaml:"low_probability_threshold" json:"low_probability_threshold"`

	// ValueTolerance is the numeric tolerance below which two values at a
	// convergence point are not considered conflicting.
	ValueTolerance float64 `yaml:"value_tolerance" json:"value_tolerance"`

	// Function-name keyword sets for frame classification.
	MiddlewarePatterns []string `yaml:"middleware_patterns" json:"middleware_patterns"`
	RoutingPatterns    []string `yaml:"routing_patterns" json:"routing_patterns"`
	ValidationPatterns []string `yaml:"validation_patterns" json:"validation_patterns"`
	ErrorPatterns      []string `yaml:"error_patterns" json:"error_patterns"`

	// EntityPatterns are variable names treated as application entities,
	// attracting domain constraints (positive id, well-formed email, ...).
	EntityPatterns []string `yaml:"entity_patterns" json:"entity_patterns"`
}

// DefaultAnalysisConfig returns the heuristic defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		BranchProbabilities: map[string]float64{
			"middleware":     0.95,
			"routing":        0.90,
			"validation":     0.85,
			"business_logic": 0.80,
			"error_handling": 0.70,
		},

		SensitivityThreshold:    0.7,
		LowProbabilityThreshold: 0.1,
		ValueTolerance:          0.001,

		MiddlewarePatterns: []string{"middleware", "logger", "recovery", "cors"},
		RoutingPatterns:    []string{"serve", "route", "handle", "dispatch"},
		ValidationPatterns: []string{"validate", "check", "verify"},
		ErrorPatterns:      []string{"error", "panic", "recover"},

		EntityPatterns: []string{"id", "email", "user", "order", "account"},
	}
}

// ValidateAnalysis checks the analysis tuning values.
func (c *Config) ValidateAnalysis() error {
	a := c.Analysis
	for branch, p := range a.BranchProbabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("analysis.branch_probabilities[%s] must be in [0,1]", branch)
		}
	}
	if a.SensitivityThreshold < 0 || a.SensitivityThreshold > 1 {
		return fmt.Errorf("analysis.sensitivity_threshold must be in [0,1]")
	}
	if a.LowProbabilityThreshold < 0 || a.LowProbabilityThreshold > 1 {
		return fmt.Errorf("analysis.low_probability_threshold must be in [0,1]")
	}
	if a.ValueTolerance < 0 {
		return fmt.Errorf("analysis.value_tolerance must be >= 0")
	}
	return nil
}
