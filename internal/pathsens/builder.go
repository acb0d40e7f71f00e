package pathsens

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/logging"
	"codebugger/internal/symbolic"
)

// altSpec is one catalog entry: a named alternative outcome for a branch
// type, plus the variable states it would hypothetically leave behind.
type altSpec struct {
	name     string
	pathType string
	effects  map[string]VariableState
}

// altCatalog is the fixed per-branch-type alternative set. The effects are
// the states compared against observed values at convergence points.
var altCatalog = map[string][]altSpec{
	BranchMiddleware: {
		{"middleware bypassed", "middleware_bypass", nil},
		{"panic recovered", "panic_recovery",
			map[string]VariableState{"err": {Value: "recovered panic", Type: "error"}}},
	},
	BranchRouting: {
		{"route not found (404)", "routing_miss",
			map[string]VariableState{"status": {Value: "404", Type: "int"}}},
		{"method not allowed (405)", "routing_method",
			map[string]VariableState{"status": {Value: "405", Type: "int"}}},
	},
	BranchValidation: {
		{"required field missing", "validation_failure",
			map[string]VariableState{"err": {Value: "missing required field", Type: "error"}}},
		{"format error", "validation_failure",
			map[string]VariableState{"err": {Value: "format error", Type: "error"}}},
	},
	BranchBusinessLogic: {
		{"validation failure", "validation_failure",
			map[string]VariableState{"err": {Value: "validation error", Type: "error"}}},
		{"database failure", "database_failure",
			map[string]VariableState{"err": {Value: "database error", Type: "error"}}},
		{"auth failure", "auth_failure",
			map[string]VariableState{"status": {Value: "401", Type: "int"}}},
	},
}

// businessBranchNames gate branch-point synthesis for frames classified as
// plain business logic; without a verb-ish name there is nothing to branch.
var businessBranchNames = []string{"process", "create", "update", "delete", "save", "load", "fetch", "build"}

var nilValues = map[string]bool{
	"nil":       true,
	"<nil>":     true,
	"null":      true,
	"undefined": true,
	"0x0":       true,
}

// Builder constructs execution trees. Stateless across calls.
type Builder struct {
	cfg config.AnalysisConfig
}

// NewBuilder creates a Builder with the given tuning.
func NewBuilder(cfg config.AnalysisConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Analyze builds the full path sensitivity report for one stop event. The
// stack is innermost-first (index 0 = current frame = deepest tree node).
// Identical input yields an identical report.
func (b *Builder) Analyze(variables []dap.Variable, frames []dap.Frame, currentLocation string) *Report {
	timer := logging.StartTimer(logging.CategoryPathSens, "path sensitivity analysis")
	defer timer.Stop()

	p := &builderPass{
		cfg:  b.cfg,
		tree: &ExecutionTree{AllPaths: make(map[string]*PathNode)},
	}

	p.buildExecutedChain(variables, frames, currentLocation)
	p.synthesizeBranchPoints()
	convergences := p.detectConvergence()
	sensitivity := p.scoreSensitivity(convergences)
	critical := p.rankCriticalPaths(sensitivity)
	p.finalizeTreeMetrics()

	logging.PathSens("built tree: %d executed, %d possible, %d branch points, %d critical paths",
		len(p.tree.ActualNodes), len(p.tree.PossibleNodes), len(p.tree.BranchPoints), len(critical))

	return &Report{
		Tree:              p.tree,
		ConvergencePoints: convergences,
		CriticalPaths:     critical,
		Sensitivity:       sensitivity,
		Recommendations:   p.recommendations(convergences, sensitivity, critical),
	}
}

// builderPass is the per-invocation state.
type builderPass struct {
	cfg  config.AnalysisConfig
	tree *ExecutionTree
}

func (p *builderPass) addNode(n *PathNode) {
	p.tree.AllPaths[n.ID] = n
	if n.ParentID != "" {
		if parent := p.tree.AllPaths[n.ParentID]; parent != nil {
			parent.Children = append(parent.Children, n.ID)
		}
	}
}

// buildExecutedChain lays the call stack out as a linear chain under a
// synthetic root. The outermost frame sits directly below root; the
// innermost frame is the deepest node and carries the observed variables.
func (p *builderPass) buildExecutedChain(variables []dap.Variable, frames []dap.Frame, currentLocation string) {
	root := &PathNode{
		ID:              "root",
		Location:        "root",
		NodeType:        NodeExecuted,
		PathProbability: 1.0,
	}
	p.addNode(root)
	p.tree.RootID = root.ID

	if len(frames) == 0 {
		if currentLocation == "" {
			return
		}
		// No stack was captured; model the stop location alone.
		frames = []dap.Frame{{ID: 0, Name: "current"}}
	}

	parentID := root.ID
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		loc := f.Location()
		if f.Source == nil && currentLocation != "" && i == 0 {
			loc = currentLocation
		}
		node := &PathNode{
			ID:              fmt.Sprintf("exec_%d", i),
			ParentID:        parentID,
			Location:        loc,
			FunctionName:    f.Name,
			NodeType:        NodeExecuted,
			PathProbability: 1.0,
			Depth:           len(frames) - i,
			BranchType:      p.classify(f.Name),
		}
		if i == 0 {
			node.Status = "current"
			node.VariableStates = statesFrom(variables)
		}
		p.addNode(node)
		p.tree.ActualNodes = append(p.tree.ActualNodes, node.ID)
		parentID = node.ID
	}
}

// classify assigns a branch category by ordered keyword matching.
func (p *builderPass) classify(funcName string) string {
	lower := strings.ToLower(funcName)
	switch {
	case containsAny(lower, p.cfg.MiddlewarePatterns):
		return BranchMiddleware
	case containsAny(lower, p.cfg.RoutingPatterns):
		return BranchRouting
	case containsAny(lower, p.cfg.ValidationPatterns):
		return BranchValidation
	case containsAny(lower, p.cfg.ErrorPatterns):
		return BranchErrorHandling
	default:
		return BranchBusinessLogic
	}
}

// synthesizeBranchPoints walks the executed chain and, for every node whose
// branch type plausibly had alternative outcomes, generates a branch point
// plus one possible node per cataloged alternative.
func (p *builderPass) synthesizeBranchPoints() {
	for _, id := range p.tree.ActualNodes {
		node := p.tree.AllPaths[id]
		branchType := node.BranchType
		if branchType == BranchErrorHandling {
			continue // already on a failure path, nothing to fork
		}
		if branchType == BranchBusinessLogic &&
			!containsAny(strings.ToLower(node.FunctionName), businessBranchNames) {
			continue
		}

		prob := p.probabilityFor(branchType)
		alts := altCatalog[branchType]
		if len(alts) == 0 {
			continue
		}
		failShare := (1 - prob) / float64(len(alts))

		bp := BranchPoint{
			ID:          "bp_" + node.ID,
			Location:    node.Location,
			BranchType:  branchType,
			Probability: prob,
		}
		target := p.attachmentFor(node.FunctionName)
		for j, alt := range alts {
			bp.Alternatives = append(bp.Alternatives, symbolic.AlternativePath{
				ID:               fmt.Sprintf("%s_alt_%d", bp.ID, j),
				Description:      fmt.Sprintf("%s: %s", node.FunctionName, alt.name),
				PathType:         alt.pathType,
				EstimatedOutcome: alt.name,
				Probability:      symbolic.BucketFromProbability(failShare),
				TestSuggestion:   fmt.Sprintf("exercise %s with input that triggers %s", node.FunctionName, alt.name),
			})
			possible := &PathNode{
				ID:              fmt.Sprintf("poss_%s_%d", node.ID, j),
				ParentID:        target.ID,
				Location:        node.Location,
				FunctionName:    fmt.Sprintf("%s: %s", node.FunctionName, alt.name),
				NodeType:        NodePossible,
				VariableStates:  alt.effects,
				PathProbability: failShare,
				Depth:           target.Depth + 1,
				BranchType:      branchType,
			}
			p.addNode(possible)
			p.tree.PossibleNodes = append(p.tree.PossibleNodes, possible.ID)
		}
		p.tree.BranchPoints = append(p.tree.BranchPoints, bp)
	}
}

func (p *builderPass) probabilityFor(branchType string) float64 {
	if prob, ok := p.cfg.BranchProbabilities[branchType]; ok {
		return prob
	}
	return 0.8
}

// attachmentFor picks the executed node a synthesized alternative hangs
// under: exact function-name match, then shared dotted-name prefix, then a
// shared "handler" substring, then the current node, then the first
// executed node.
func (p *builderPass) attachmentFor(funcName string) *PathNode {
	var current, first *PathNode
	for _, id := range p.tree.ActualNodes {
		node := p.tree.AllPaths[id]
		if first == nil {
			first = node
		}
		if node.Status == "current" {
			current = node
		}
		if node.FunctionName == funcName {
			return node
		}
	}
	if prefix := dottedPrefix(funcName); prefix != "" {
		// Prefer the deepest frame in the same package/namespace.
		for i := len(p.tree.ActualNodes) - 1; i >= 0; i-- {
			node := p.tree.AllPaths[p.tree.ActualNodes[i]]
			if dottedPrefix(node.FunctionName) == prefix {
				return node
			}
		}
	}
	if strings.Contains(strings.ToLower(funcName), "handler") {
		for _, id := range p.tree.ActualNodes {
			node := p.tree.AllPaths[id]
			if strings.Contains(strings.ToLower(node.FunctionName), "handler") {
				return node
			}
		}
	}
	if current != nil {
		return current
	}
	if first != nil {
		return first
	}
	return p.tree.AllPaths[p.tree.RootID]
}

// detectConvergence groups state-carrying nodes by location and compares
// every pair of states recorded for the same variable.
func (p *builderPass) detectConvergence() []ConvergencePoint {
	byLoc := make(map[string][]string)
	for id, node := range p.tree.AllPaths {
		if len(node.VariableStates) > 0 {
			byLoc[node.Location] = append(byLoc[node.Location], id)
		}
	}

	locs := make([]string, 0, len(byLoc))
	for loc, ids := range byLoc {
		if len(ids) > 1 {
			locs = append(locs, loc)
		}
	}
	sort.Strings(locs)

	var points []ConvergencePoint
	for _, loc := range locs {
		ids := byLoc[loc]
		sort.Strings(ids)
		cp := ConvergencePoint{Location: loc, ConvergingPaths: ids}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := p.tree.AllPaths[ids[i]], p.tree.AllPaths[ids[j]]
				cp.PotentialConflicts = append(cp.PotentialConflicts,
					p.compareStates(loc, a, b)...)
			}
		}
		points = append(points, cp)
	}
	return points
}

// compareStates flags disagreements for variables present in both nodes.
func (p *builderPass) compareStates(loc string, a, b *PathNode) []PathConflict {
	names := make([]string, 0, len(a.VariableStates))
	for name := range a.VariableStates {
		if _, ok := b.VariableStates[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var conflicts []PathConflict
	for _, name := range names {
		sa, sb := a.VariableStates[name], b.VariableStates[name]
		kind, severity := p.compareState(sa, sb)
		if kind == "" {
			continue
		}
		conflicts = append(conflicts, PathConflict{
			Location: loc,
			Variable: name,
			Kind:     kind,
			Severity: severity,
			Values:   []string{sa.Value, sb.Value},
			Paths:    []string{a.ID, b.ID},
		})
	}
	return conflicts
}

func (p *builderPass) compareState(a, b VariableState) (kind, severity string) {
	nilA, nilB := nilValues[strings.TrimSpace(a.Value)], nilValues[strings.TrimSpace(b.Value)]
	if nilA != nilB {
		return "null_vs_value", "high"
	}
	if a.Type != "" && b.Type != "" && a.Type != b.Type {
		return "type_mismatch", "critical"
	}
	na, errA := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
	nb, errB := strconv.ParseFloat(strings.TrimSpace(b.Value), 64)
	if errA == nil && errB == nil {
		if math.Abs(na-nb) > p.cfg.ValueTolerance {
			return "value_mismatch", "medium"
		}
		return "", ""
	}
	if a.Value != b.Value {
		return "value_mismatch", "medium"
	}
	return "", ""
}

// scoreSensitivity scores each variable by how many distinct states the
// modeled paths put it in, with a bonus when a convergence conflict involves
// it. Scores are clamped to [0,1].
func (p *builderPass) scoreSensitivity(convergences []ConvergencePoint) []VariableSensitivity {
	states := make(map[string]map[string]bool)
	for _, node := range p.tree.AllPaths {
		for name, st := range node.VariableStates {
			if states[name] == nil {
				states[name] = make(map[string]bool)
			}
			states[name][st.Value] = true
		}
	}

	inConflict := make(map[string]bool)
	for _, cp := range convergences {
		for _, c := range cp.PotentialConflicts {
			inConflict[c.Variable] = true
		}
	}

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]VariableSensitivity, 0, len(names))
	for _, name := range names {
		score := 0.3 * float64(len(states[name])-1)
		if inConflict[name] {
			score += 0.5
		}
		if score > 1 {
			score = 1
		}
		out = append(out, VariableSensitivity{
			Name:       name,
			Score:      score,
			States:     len(states[name]),
			InConflict: inConflict[name],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// rankCriticalPaths enumerates root-to-leaf chains and keeps those carrying
// a high-sensitivity variable or an improbable outcome.
func (p *builderPass) rankCriticalPaths(sensitivity []VariableSensitivity) []CriticalPath {
	highSens := make(map[string]bool)
	for _, s := range sensitivity {
		if s.Score > p.cfg.SensitivityThreshold {
			highSens[s.Name] = true
		}
	}

	var paths []CriticalPath
	consider := func(leafID string, probability float64, description string) {
		chain := p.chainTo(leafID)
		involved := p.sensitiveIn(chain, highSens)
		if len(involved) == 0 && probability >= p.cfg.LowProbabilityThreshold {
			return
		}
		risk := "low"
		switch {
		case len(involved) > 2:
			risk = "critical"
		case probability < 0.05:
			risk = "high"
		case len(involved) > 0:
			risk = "medium"
		}
		paths = append(paths, CriticalPath{
			PathID:             "path_" + leafID,
			Nodes:              chain,
			Description:        description,
			Risk:               risk,
			Probability:        probability,
			SensitiveVariables: involved,
		})
	}

	if n := len(p.tree.ActualNodes); n > 0 {
		leaf := p.tree.ActualNodes[n-1]
		consider(leaf, 1.0, fmt.Sprintf("observed execution path to %s", p.tree.AllPaths[leaf].FunctionName))
	}
	for _, id := range p.tree.PossibleNodes {
		node := p.tree.AllPaths[id]
		consider(id, node.PathProbability, fmt.Sprintf("hypothetical path: %s", node.FunctionName))
	}

	riskRank := map[string]int{"critical": 3, "high": 2, "medium": 1, "low": 0}
	sort.SliceStable(paths, func(i, j int) bool {
		if riskRank[paths[i].Risk] != riskRank[paths[j].Risk] {
			return riskRank[paths[i].Risk] > riskRank[paths[j].Risk]
		}
		if paths[i].Probability != paths[j].Probability {
			return paths[i].Probability < paths[j].Probability
		}
		return paths[i].PathID < paths[j].PathID
	})
	return paths
}

// chainTo returns the node ids from root down to leaf.
func (p *builderPass) chainTo(leafID string) []string {
	var rev []string
	for id := leafID; id != ""; {
		rev = append(rev, id)
		node := p.tree.AllPaths[id]
		if node == nil {
			break
		}
		id = node.ParentID
	}
	chain := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		chain = append(chain, rev[i])
	}
	return chain
}

// sensitiveIn collects high-sensitivity variable names appearing in any of
// the chain's variable states.
func (p *builderPass) sensitiveIn(chain []string, highSens map[string]bool) []string {
	seen := make(map[string]bool)
	for _, id := range chain {
		node := p.tree.AllPaths[id]
		if node == nil {
			continue
		}
		for name := range node.VariableStates {
			if highSens[name] {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// finalizeTreeMetrics fills in depth and branching statistics.
func (p *builderPass) finalizeTreeMetrics() {
	maxDepth := 0
	withChildren := 0
	for _, node := range p.tree.AllPaths {
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
		if len(node.Children) > 0 {
			withChildren++
		}
	}
	p.tree.MaxDepth = maxDepth
	if withChildren > 0 {
		p.tree.BranchingFactor = float64(len(p.tree.AllPaths)-1) / float64(withChildren)
	}
}

// recommendations renders actionable follow-ups from the findings.
func (p *builderPass) recommendations(convergences []ConvergencePoint, sensitivity []VariableSensitivity, critical []CriticalPath) []string {
	var recs []string
	for _, cp := range convergences {
		for _, c := range cp.PotentialConflicts {
			recs = append(recs, fmt.Sprintf("inspect %s at %s: %s between modeled paths", c.Variable, c.Location, c.Kind))
		}
	}
	for _, s := range sensitivity {
		if s.Score > p.cfg.SensitivityThreshold {
			recs = append(recs, fmt.Sprintf("add assertions around %s; its state diverges across modeled paths", s.Name))
		}
	}
	for _, cp := range critical {
		if cp.Risk == "high" || cp.Risk == "critical" {
			recs = append(recs, fmt.Sprintf("write a test covering: %s", cp.Description))
		}
	}
	return recs
}

// statesFrom captures the observed variable set as node states.
func statesFrom(variables []dap.Variable) map[string]VariableState {
	if len(variables) == 0 {
		return nil
	}
	states := make(map[string]VariableState, len(variables))
	for _, v := range variables {
		states[v.Name] = VariableState{Value: v.Value, Type: v.Type}
	}
	return states
}

// dottedPrefix returns everything before the last dot of a qualified name.
func dottedPrefix(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return ""
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
