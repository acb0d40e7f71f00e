// Package symbolic infers per-variable constraints and branch decisions from
// a stopped program's flattened variable set and call stack.
//
// This is deliberately not a symbolic-execution engine. There is no solving
// and no program-semantics interpretation; every "constraint" here is a
// heuristic pattern match over names, types, and string-encoded values.
package symbolic

import "time"

// ConstraintKind classifies a synthesized constraint.
type ConstraintKind string

const (
	KindEquality   ConstraintKind = "equality"
	KindInequality ConstraintKind = "inequality"
	KindRange      ConstraintKind = "range"
	KindNullCheck  ConstraintKind = "null-check"
	KindTypeCheck  ConstraintKind = "type-check"
)

// Constraint is one inferred condition over one or more variables, evaluated
// against the concrete values captured at the stop.
type Constraint struct {
	ID             string         `json:"id"`
	Expression     string         `json:"expression"`
	Kind           ConstraintKind `json:"kind"`
	Variables      []string       `json:"variables"`
	IsSatisfied    bool           `json:"isSatisfied"`
	SourceLocation string         `json:"sourceLocation,omitempty"`
}

// SymbolicVariable annotates one variable with its inferred provenance class
// and the constraints synthesized for it.
type SymbolicVariable struct {
	Name           string       `json:"name"`
	SymbolicValue  string       `json:"symbolicValue"`
	ConcreteValue  string       `json:"concreteValue"`
	Constraints    []Constraint `json:"constraints,omitempty"`
	Dependencies   []string     `json:"dependencies,omitempty"`
	SourceLocation string       `json:"sourceLocation,omitempty"`
	LastModified   time.Time    `json:"lastModified"`
}

// BranchDecision records an inferred conditional outcome at a call-stack
// frame. Execution continued past the frame, so the condition is assumed to
// have held.
type BranchDecision struct {
	Location           string  `json:"location"`
	FunctionName       string  `json:"functionName"`
	Condition          string  `json:"condition"`
	AssumedOutcome     bool    `json:"assumedOutcome"`
	Probability        float64 `json:"probability"`
	AlternativeOutcome string  `json:"alternativeOutcome"`
}

// ProbabilityBucket is the coarse likelihood scale used for hypothetical
// paths. Numeric probabilities are never reported for alternatives because
// they would suggest a precision the heuristics do not have.
type ProbabilityBucket string

const (
	BucketVeryLow  ProbabilityBucket = "very-low"
	BucketLow      ProbabilityBucket = "low"
	BucketMedium   ProbabilityBucket = "medium"
	BucketHigh     ProbabilityBucket = "high"
	BucketVeryHigh ProbabilityBucket = "very-high"
)

// AlternativePath describes a hypothetical branch not taken.
type AlternativePath struct {
	ID                   string            `json:"id"`
	Description          string            `json:"description"`
	PathType             string            `json:"pathType"`
	RequiredInputChanges map[string]string `json:"requiredInputChanges,omitempty"`
	PathConstraints      []string          `json:"pathConstraints,omitempty"`
	EstimatedOutcome     string            `json:"estimatedOutcome"`
	Probability          ProbabilityBucket `json:"probability"`
	TestSuggestion       string            `json:"testSuggestion,omitempty"`
}

// ExecutionContext is the analyzer's full output for one stop event.
type ExecutionContext struct {
	Variables         []SymbolicVariable `json:"variables"`
	GlobalConstraints []Constraint       `json:"globalConstraints"`
	BranchDecisions   []BranchDecision   `json:"branchDecisions"`
	AlternativePaths  []AlternativePath  `json:"alternativePaths"`
	PotentialIssues   []string           `json:"potentialIssues"`
	RootCause         string             `json:"rootCause"`
}

// UnsatisfiedConstraints returns the constraints whose concrete evaluation
// failed, in synthesis order.
func (c *ExecutionContext) UnsatisfiedConstraints() []Constraint {
	var out []Constraint
	for _, gc := range c.GlobalConstraints {
		if !gc.IsSatisfied {
			out = append(out, gc)
		}
	}
	return out
}
