// Package pathsens builds a heuristic execution tree from a stopped
// program's call stack: the path actually taken, plausible sibling branches
// with assigned probabilities, convergence conflicts, and risk-ranked
// critical paths.
//
// The tree is rebuilt from scratch on every stop event. Node ids are derived
// from frame indexes, so identical input yields an identical tree.
package pathsens

import "codebugger/internal/symbolic"

// NodeType distinguishes observed frames from synthesized hypotheticals.
type NodeType string

const (
	NodeExecuted    NodeType = "executed"
	NodePossible    NodeType = "possible"
	NodeBranchPoint NodeType = "branch_point"
	NodeConvergence NodeType = "convergence"
)

// Branch categories assigned to executed frames by function-name matching.
const (
	BranchMiddleware    = "middleware"
	BranchRouting       = "routing"
	BranchValidation    = "validation"
	BranchErrorHandling = "error_handling"
	BranchBusinessLogic = "business_logic"
)

// VariableState is one variable's observed or hypothesized state at a node.
type VariableState struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// PathNode is one node in the execution tree: either a real call-stack frame
// or a synthesized alternative attached beside one.
type PathNode struct {
	ID              string                   `json:"id"`
	ParentID        string                   `json:"parentId,omitempty"`
	Children        []string                 `json:"children,omitempty"`
	Location        string                   `json:"location"`
	FunctionName    string                   `json:"functionName,omitempty"`
	NodeType        NodeType                 `json:"nodeType"`
	Status          string                   `json:"status,omitempty"` // "current" on the innermost executed node
	VariableStates  map[string]VariableState `json:"variableStates,omitempty"`
	PathProbability float64                  `json:"pathProbability"`
	Depth           int                      `json:"depth"`
	BranchType      string                   `json:"branchType,omitempty"`
}

// BranchPoint marks an executed frame judged likely to have had alternative
// outcomes. It owns the alternatives it generated.
type BranchPoint struct {
	ID           string                     `json:"id"`
	Location     string                     `json:"location"`
	BranchType   string                     `json:"branchType"`
	Alternatives []symbolic.AlternativePath `json:"alternatives"`
	Probability  float64                    `json:"probability"` // baseline success probability
}

// PathConflict is a disagreement between two modeled variable states at a
// shared location.
type PathConflict struct {
	Location string   `json:"location"`
	Variable string   `json:"variable"`
	Kind     string   `json:"kind"`     // null_vs_value, type_mismatch, value_mismatch
	Severity string   `json:"severity"` // critical, high, medium
	Values   []string `json:"values"`
	Paths    []string `json:"paths"` // node ids carrying the conflicting states
}

// ConvergencePoint is a source location reached by more than one modeled
// path, where variable states may conflict.
type ConvergencePoint struct {
	Location           string         `json:"location"`
	ConvergingPaths    []string       `json:"convergingPaths"`
	PotentialConflicts []PathConflict `json:"potentialConflicts,omitempty"`
}

// ExecutionTree aggregates one builder invocation's output.
type ExecutionTree struct {
	RootID          string               `json:"rootId"`
	AllPaths        map[string]*PathNode `json:"allPaths"`
	ActualNodes     []string             `json:"actualNodes"`   // executed chain, outermost first
	PossibleNodes   []string             `json:"possibleNodes"` // synthesized alternatives
	BranchPoints    []BranchPoint        `json:"branchPoints"`
	MaxDepth        int                  `json:"maxDepth"`
	BranchingFactor float64              `json:"branchingFactor"`
}

// Node returns a node by id, or nil.
func (t *ExecutionTree) Node(id string) *PathNode {
	return t.AllPaths[id]
}

// CriticalPath is a root-to-leaf chain flagged as high risk.
type CriticalPath struct {
	PathID             string   `json:"pathId"`
	Nodes              []string `json:"nodes"` // root to leaf
	Description        string   `json:"description"`
	Risk               string   `json:"risk"` // critical, high, medium, low
	Probability        float64  `json:"probability"`
	SensitiveVariables []string `json:"sensitiveVariables,omitempty"`
}

// VariableSensitivity scores how much a variable's state varies across the
// modeled paths.
type VariableSensitivity struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	States     int     `json:"states"` // distinct states observed
	InConflict bool    `json:"inConflict"`
}

// Report is the builder's full output for one stop event.
type Report struct {
	Tree              *ExecutionTree        `json:"tree"`
	ConvergencePoints []ConvergencePoint    `json:"convergencePoints,omitempty"`
	CriticalPaths     []CriticalPath        `json:"criticalPaths,omitempty"`
	Sensitivity       []VariableSensitivity `json:"sensitivity,omitempty"`
	Recommendations   []string              `json:"recommendations,omitempty"`
}
