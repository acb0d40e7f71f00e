package symbolic

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/logging"
)

// rangeNames are variable-name fragments conventionally expected to be
// non-negative. Matching one attracts a range constraint.
var rangeNames = []string{"age", "count", "index", "idx", "size", "len", "length", "offset", "total", "capacity"}

// inputNames mark a variable as externally supplied rather than computed.
var inputNames = []string{"input", "param", "arg", "req", "request", "body", "payload", "form", "query"}

var nilValues = map[string]bool{
	"nil":       true,
	"<nil>":     true,
	"null":      true,
	"undefined": true,
	"0x0":       true,
}

// Analyzer synthesizes constraints and branch decisions for one stop event.
// Stateless across calls; safe to reuse.
type Analyzer struct {
	cfg config.AnalysisConfig
	now func() time.Time
}

// NewAnalyzer creates an Analyzer with the given tuning.
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{cfg: cfg, now: time.Now}
}

// Analyze runs constraint synthesis over the flattened variable set and the
// call stack (index 0 innermost). It never fails: empty inputs yield empty
// constraint and path lists. The input is already-collected in-memory data;
// collaborator errors stop at the expansion boundary.
func (a *Analyzer) Analyze(variables []dap.Variable, frames []dap.Frame, currentLocation string) *ExecutionContext {
	timer := logging.StartTimer(logging.CategorySymbolic, "symbolic analysis")
	defer timer.Stop()

	ctx := &ExecutionContext{
		Variables:         []SymbolicVariable{},
		GlobalConstraints: []Constraint{},
		BranchDecisions:   []BranchDecision{},
		AlternativePaths:  []AlternativePath{},
		PotentialIssues:   []string{},
	}

	modified := a.now()
	for _, v := range variables {
		constraints := a.constraintsFor(v, currentLocation)
		ctx.GlobalConstraints = append(ctx.GlobalConstraints, constraints...)
		ctx.Variables = append(ctx.Variables, SymbolicVariable{
			Name:           v.Name,
			SymbolicValue:  a.provenance(v),
			ConcreteValue:  v.Value,
			Constraints:    constraints,
			Dependencies:   dependencies(v, variables),
			SourceLocation: currentLocation,
			LastModified:   modified,
		})
	}

	ctx.BranchDecisions = a.branchDecisions(frames)
	ctx.AlternativePaths = a.alternativePaths(ctx)

	for _, c := range ctx.UnsatisfiedConstraints() {
		ctx.PotentialIssues = append(ctx.PotentialIssues,
			fmt.Sprintf("constraint violated: %s (%s)", c.Expression, strings.Join(c.Variables, ", ")))
	}
	ctx.RootCause = a.rootCause(ctx)

	logging.Symbolic("analyzed %d variables: %d constraints, %d unsatisfied, %d alternative paths",
		len(variables), len(ctx.GlobalConstraints), len(ctx.UnsatisfiedConstraints()), len(ctx.AlternativePaths))
	return ctx
}

// provenance classifies where a variable's value most plausibly came from.
func (a *Analyzer) provenance(v dap.Variable) string {
	lower := strings.ToLower(v.Name)
	switch {
	case nilValues[strings.TrimSpace(v.Value)] || strings.HasPrefix(v.Type, "*"):
		return fmt.Sprintf("nullable-pointer(%s)", v.Name)
	case v.Type == "bool" || v.Value == "true" || v.Value == "false":
		return fmt.Sprintf("boolean-condition(%s)", v.Name)
	case containsAny(lower, inputNames):
		return fmt.Sprintf("user-input(%s)", v.Name)
	case isNumericType(v.Type):
		return fmt.Sprintf("calculated(%s)", v.Name)
	default:
		return fmt.Sprintf("observed(%s)", v.Name)
	}
}

// constraintsFor synthesizes the constraints one variable attracts.
func (a *Analyzer) constraintsFor(v dap.Variable, location string) []Constraint {
	var out []Constraint
	lower := strings.ToLower(v.Name)
	num, isNum := parseNumber(v.Value)

	if isNumericType(v.Type) {
		out = append(out, Constraint{
			ID:             uuid.NewString(),
			Expression:     fmt.Sprintf("%s is %s", v.Name, v.Type),
			Kind:           KindTypeCheck,
			Variables:      []string{v.Name},
			IsSatisfied:    isNum,
			SourceLocation: location,
		})
		if containsAny(lower, rangeNames) {
			out = append(out, Constraint{
				ID:             uuid.NewString(),
				Expression:     fmt.Sprintf("%s >= 0", v.Name),
				Kind:           KindRange,
				Variables:      []string{v.Name},
				IsSatisfied:    isNum && num >= 0,
				SourceLocation: location,
			})
		}
	}

	if strings.HasPrefix(v.Type, "*") || nilValues[strings.TrimSpace(v.Value)] {
		out = append(out, Constraint{
			ID:             uuid.NewString(),
			Expression:     fmt.Sprintf("%s != nil", v.Name),
			Kind:           KindNullCheck,
			Variables:      []string{v.Name},
			IsSatisfied:    !nilValues[strings.TrimSpace(v.Value)],
			SourceLocation: location,
		})
	}

	// Application-entity constraints: ids are positive, emails well-formed.
	for _, entity := range a.cfg.EntityPatterns {
		if !matchesEntity(v.Name, strings.ToLower(entity)) {
			continue
		}
		switch entity {
		case "id":
			if isNum {
				out = append(out, Constraint{
					ID:             uuid.NewString(),
					Expression:     fmt.Sprintf("%s > 0", v.Name),
					Kind:           KindRange,
					Variables:      []string{v.Name},
					IsSatisfied:    num > 0,
					SourceLocation: location,
				})
			}
		case "email":
			out = append(out, Constraint{
				ID:             uuid.NewString(),
				Expression:     fmt.Sprintf(`%s contains "@"`, v.Name),
				Kind:           KindEquality,
				Variables:      []string{v.Name},
				IsSatisfied:    strings.Contains(v.Value, "@"),
				SourceLocation: location,
			})
		}
	}
	return out
}

// branchDecisions walks adjacent frame pairs outermost-in. A caller whose
// name matches a validation pattern is assumed to have passed, since
// execution continued into its callee.
func (a *Analyzer) branchDecisions(frames []dap.Frame) []BranchDecision {
	decisions := []BranchDecision{}
	prob, ok := a.cfg.BranchProbabilities["validation"]
	if !ok {
		prob = 0.85
	}
	for i := len(frames) - 1; i >= 1; i-- {
		caller := frames[i]
		if !containsAny(strings.ToLower(caller.Name), a.cfg.ValidationPatterns) {
			continue
		}
		decisions = append(decisions, BranchDecision{
			Location:           caller.Location(),
			FunctionName:       caller.Name,
			Condition:          fmt.Sprintf("%s accepted its input", caller.Name),
			AssumedOutcome:     true,
			Probability:        prob,
			AlternativeOutcome: fmt.Sprintf("%s rejects the input", caller.Name),
		})
	}
	return decisions
}

// alternativePaths synthesizes hypothetical branches: one per unsatisfied
// constraint, one per branch decision's alternative outcome.
func (a *Analyzer) alternativePaths(ctx *ExecutionContext) []AlternativePath {
	paths := []AlternativePath{}

	for _, c := range ctx.UnsatisfiedConstraints() {
		varName := ""
		if len(c.Variables) > 0 {
			varName = c.Variables[0]
		}
		paths = append(paths, AlternativePath{
			ID:          uuid.NewString(),
			Description: fmt.Sprintf("value of %s violates %s", varName, c.Expression),
			PathType:    pathTypeFor(c.Kind),
			RequiredInputChanges: map[string]string{
				varName: fmt.Sprintf("choose a value satisfying %s", c.Expression),
			},
			PathConstraints:  []string{c.Expression},
			EstimatedOutcome: fmt.Sprintf("execution proceeds without the %s violation", c.Kind),
			Probability:      bucketFor(c.Kind),
			TestSuggestion:   fmt.Sprintf("cover %s with a value where %s fails", varName, c.Expression),
		})
	}

	for _, d := range ctx.BranchDecisions {
		paths = append(paths, AlternativePath{
			ID:          uuid.NewString(),
			Description: d.AlternativeOutcome,
			PathType:    "validation_failure",
			RequiredInputChanges: map[string]string{
				"input": fmt.Sprintf("provide input that %s rejects", d.FunctionName),
			},
			PathConstraints:  []string{fmt.Sprintf("not (%s)", d.Condition)},
			EstimatedOutcome: fmt.Sprintf("early return or error from %s", d.FunctionName),
			Probability:      BucketFromProbability(1 - d.Probability),
			TestSuggestion:   fmt.Sprintf("add a rejection-path test for %s", d.FunctionName),
		})
	}
	return paths
}

// rootCause picks the first unsatisfied constraint as the primary cause.
func (a *Analyzer) rootCause(ctx *ExecutionContext) string {
	unsat := ctx.UnsatisfiedConstraints()
	if len(unsat) == 0 {
		return "no violated constraints detected; execution appears nominal"
	}
	c := unsat[0]
	return fmt.Sprintf("primary cause: %s not satisfied (%s)", c.Expression, strings.Join(c.Variables, ", "))
}

func pathTypeFor(kind ConstraintKind) string {
	switch kind {
	case KindRange:
		return "bounds_violation"
	case KindNullCheck:
		return "null_pointer"
	case KindTypeCheck:
		return "type_mismatch"
	case KindEquality:
		return "format_violation"
	default:
		return "condition_inversion"
	}
}

// bucketFor maps a violated constraint kind to a coarse likelihood that the
// violation is the live failure.
func bucketFor(kind ConstraintKind) ProbabilityBucket {
	switch kind {
	case KindNullCheck:
		return BucketHigh
	case KindRange, KindEquality:
		return BucketMedium
	default:
		return BucketLow
	}
}

// BucketFromProbability maps a numeric probability onto the coarse scale.
func BucketFromProbability(p float64) ProbabilityBucket {
	switch {
	case p < 0.05:
		return BucketVeryLow
	case p < 0.2:
		return BucketLow
	case p < 0.5:
		return BucketMedium
	case p < 0.8:
		return BucketHigh
	default:
		return BucketVeryHigh
	}
}

// dependencies reports which other variables this one's rendered value
// mentions. Names shorter than three characters generate too much noise to
// be worth reporting.
func dependencies(v dap.Variable, all []dap.Variable) []string {
	var deps []string
	for _, other := range all {
		if other.Name == v.Name || len(other.Name) < 3 {
			continue
		}
		if containsWord(v.Value, other.Name) {
			deps = append(deps, other.Name)
		}
	}
	return deps
}

// containsWord reports whether word occurs in s bounded by non-identifier
// characters.
func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isIdent(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isIdent(s[afterIdx])
		if before && after {
			return true
		}
		start = i + len(word)
	}
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNumericType(t string) bool {
	switch strings.TrimPrefix(t, "u") {
	case "int", "int8", "int16", "int32", "int64":
		return true
	}
	switch t {
	case "float32", "float64", "byte", "rune", "number", "uintptr":
		return true
	}
	return false
}

// parseNumber parses a possibly-quoted numeric value string.
func parseNumber(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

// matchesEntity checks a name against one entity pattern at identifier
// boundaries, so "id" matches "userId" and "order_id" but not "valid".
func matchesEntity(name, entity string) bool {
	lower := strings.ToLower(name)
	if lower == entity {
		return true
	}
	if strings.HasSuffix(lower, "_"+entity) || strings.HasPrefix(lower, entity+"_") ||
		strings.Contains(lower, "_"+entity+"_") {
		return true
	}
	// camelCase boundary: the entity appears capitalized at the end.
	title := strings.ToUpper(entity[:1]) + entity[1:]
	return strings.HasSuffix(name, title) || strings.HasSuffix(name, strings.ToUpper(entity))
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
