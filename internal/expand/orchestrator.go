package expand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/logging"
	"codebugger/internal/simplify"
)

// Orchestrator drives live variable expansion for one debug session. It owns
// the per-stop result cache; the session invalidates it on every continue.
type Orchestrator struct {
	client dap.Client
	cfg    config.ExpansionConfig
	opts   simplify.Options
	simp   *simplify.Simplifier
	cache  *Cache
}

// New creates an Orchestrator over a debugger client.
func New(client dap.Client, cfg config.ExpansionConfig, opts simplify.Options) *Orchestrator {
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		opts:   opts,
		simp:   simplify.New(opts),
		cache:  NewCache(),
	}
}

// Cache exposes the result cache for lifecycle invalidation.
func (o *Orchestrator) Cache() *Cache { return o.cache }

// candidate is one variable awaiting selection.
type candidate struct {
	v     dap.Variable
	score int
	order int
}

// ExpandFrame enumerates a frame's scopes, ranks the variables by importance,
// and expands the top N to the given depth. N shrinks as depth grows so the
// total number of debugger round-trips stays roughly constant.
//
// Per-variable failures are captured inside the returned map; the only error
// returned is a failure to enumerate scopes at all, and even then the caller
// can proceed with the (empty) map.
func (o *Orchestrator) ExpandFrame(ctx context.Context, frameID, depth int) (map[string]Result, error) {
	if depth <= 0 {
		depth = o.cfg.MaxDepth
	}
	timer := logging.StartTimer(logging.CategoryExpand, fmt.Sprintf("expand frame %d depth %d", frameID, depth))
	defer timer.Stop()

	results := make(map[string]Result)

	scopes, err := o.client.Scopes(ctx, frameID)
	if err != nil {
		logging.Expand("scopes failed for frame %d: %v", frameID, err)
		return results, fmt.Errorf("failed to enumerate scopes for frame %d: %w", frameID, err)
	}

	var candidates []candidate
	for _, scope := range scopes {
		if scope.Expensive {
			logging.ExpandDebug("skipping expensive scope %q in frame %d", scope.Name, frameID)
			continue
		}
		if err := o.pause(ctx); err != nil {
			return results, err
		}
		vars, err := o.client.Variables(ctx, scope.VariablesReference)
		if err != nil {
			logging.Expand("variables failed for scope %q in frame %d: %v", scope.Name, frameID, err)
			continue
		}
		for _, v := range vars {
			candidates = append(candidates, candidate{
				v:     v,
				score: o.opts.Importance(v.Name, v.Value),
				order: len(candidates),
			})
		}
	}

	o.rank(candidates)

	budget := o.cfg.MaxVariables / depth
	if budget < 1 {
		budget = 1
	}
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	for _, c := range candidates {
		key := cacheKey(frameID, c.v.Name, "", depth)
		if cached, ok := o.cache.Get(key); ok {
			results[c.v.Name] = cached
			continue
		}
		r := o.expandVariable(ctx, c.v, depth)
		o.cache.Put(key, r)
		results[c.v.Name] = r
	}
	return results, nil
}

// ExpandVariable expands one named variable, optionally descending a dotted
// member path first ("user.address.city"). A missing variable or path
// segment yields a failed Result rather than an error; the expansion
// boundary never propagates exceptions.
func (o *Orchestrator) ExpandVariable(ctx context.Context, frameID int, name, path string, depth int) Result {
	if depth <= 0 {
		depth = o.cfg.MaxDepth
	}
	key := cacheKey(frameID, name, path, depth)
	if cached, ok := o.cache.Get(key); ok {
		return cached
	}
	start := time.Now()

	target, err := o.resolve(ctx, frameID, name, path)
	if err != nil {
		r := failure(err, time.Since(start))
		o.cache.Put(key, r)
		return r
	}

	r := o.expandVariable(ctx, *target, depth)
	o.cache.Put(key, r)
	return r
}

// resolve locates a variable by name within a frame's scopes and follows the
// dotted path to the target member.
func (o *Orchestrator) resolve(ctx context.Context, frameID int, name, path string) (*dap.Variable, error) {
	scopes, err := o.client.Scopes(ctx, frameID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate scopes for frame %d: %w", frameID, err)
	}

	var target *dap.Variable
	for _, scope := range scopes {
		if err := o.pause(ctx); err != nil {
			return nil, err
		}
		vars, err := o.client.Variables(ctx, scope.VariablesReference)
		if err != nil {
			continue
		}
		for i := range vars {
			if vars[i].Name == name {
				target = &vars[i]
				break
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("variable %q not found in frame %d", name, frameID)
	}

	for _, seg := range splitPath(path) {
		if target.VariablesReference == 0 {
			return nil, fmt.Errorf("cannot descend into scalar %q looking for %q", target.Name, seg)
		}
		if err := o.pause(ctx); err != nil {
			return nil, err
		}
		children, err := o.client.Variables(ctx, target.VariablesReference)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", target.Name, err)
		}
		var next *dap.Variable
		for i := range children {
			if children[i].Name == seg {
				next = &children[i]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("member %q not found under %q", seg, target.Name)
		}
		target = next
	}
	return target, nil
}

// expandVariable walks one variable to the given depth and wraps the outcome.
func (o *Orchestrator) expandVariable(ctx context.Context, v dap.Variable, depth int) Result {
	start := time.Now()
	var used int64

	node, err := o.walkLive(ctx, v, depth, 0, &used)
	elapsed := time.Since(start)
	if err != nil {
		logging.Expand("expansion of %q failed: %v", v.Name, err)
		return failure(err, elapsed)
	}
	logging.ExpandDebug("expanded %q in %v (~%d bytes)", v.Name, elapsed, used)
	return Result{
		Success:       true,
		Data:          node,
		MemoryUsed:    used,
		ExpansionTime: elapsed,
	}
}

// walkLive follows live child handles breadth-limited and depth-limited. A
// variable without a handle, or one at the depth boundary, falls through to
// the string simplifier. Debugger failures below the top level degrade to a
// string-parsed node instead of failing the whole variable.
func (o *Orchestrator) walkLive(ctx context.Context, v dap.Variable, maxDepth, level int, used *int64) (*simplify.SimplifiedValue, error) {
	if v.VariablesReference == 0 || level >= maxDepth {
		node := o.simp.Simplify(v.Value, v.Type)
		*used += estimate(v.Value, false)
		if v.VariablesReference != 0 {
			node.HasMore = true
			if node.Metadata.TruncatedAt == "" {
				node.Metadata.TruncatedAt = "max depth reached"
			}
		}
		return node, nil
	}
	if o.opts.MemoryLimitBytes > 0 && *used >= o.opts.MemoryLimitBytes {
		node := o.simp.Simplify(v.Value, v.Type)
		node.HasMore = true
		node.Metadata.TruncatedAt = "memory limit reached"
		return node, nil
	}

	if err := o.pause(ctx); err != nil {
		return nil, err
	}
	children, err := o.client.Variables(ctx, v.VariablesReference)
	if err != nil {
		if level == 0 {
			return nil, fmt.Errorf("failed to expand %q: %w", v.Name, err)
		}
		logging.ExpandDebug("child fetch failed for %q, degrading to string parse: %v", v.Name, err)
		node := o.simp.Simplify(v.Value, v.Type)
		*used += estimate(v.Value, false)
		node.HasMore = true
		return node, nil
	}

	cands := make([]candidate, 0, len(children))
	for i, c := range children {
		cands = append(cands, candidate{v: c, score: o.opts.Importance(c.Name, c.Value), order: i})
	}
	o.rank(cands)

	hasMore := false
	if len(cands) > o.cfg.MaxChildrenPerLevel {
		cands = cands[:o.cfg.MaxChildrenPerLevel]
		hasMore = true
	}

	*used += estimate(v.Value, true)
	total := len(children)
	fields := make([]simplify.Field, 0, len(cands))
	truncReason := ""
	if hasMore {
		truncReason = "max children per level"
	}
	for _, c := range cands {
		if o.opts.MemoryLimitBytes > 0 && *used >= o.opts.MemoryLimitBytes {
			hasMore = true
			truncReason = "memory limit reached"
			break
		}
		childNode, err := o.walkLive(ctx, c.v, maxDepth, level+1, used)
		if err != nil {
			return nil, err
		}
		fields = append(fields, simplify.Field{Name: c.v.Name, Value: childNode})
	}

	display := strings.TrimSpace(v.Value)
	if display == "" {
		display = fmt.Sprintf("%s (%d children)", v.Type, total)
	}
	node := &simplify.SimplifiedValue{
		OriginalType: v.Type,
		DisplayValue: display,
		IsExpanded:   true,
		HasMore:      hasMore,
		Children:     fields,
		Metadata:     simplify.Metadata{RecursionDepth: level},
	}
	if truncReason != "" {
		node.Metadata.TruncatedAt = truncReason
	}
	return node, nil
}

// rank orders candidates business-first, then by importance score descending
// with enumeration order as the tiebreak. Mirrors struct field ranking.
func (o *Orchestrator) rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		bi, bj := o.isBusinessName(cands[i].v.Name), o.isBusinessName(cands[j].v.Name)
		if bi != bj {
			return bi
		}
		if bi && bj {
			return cands[i].order < cands[j].order
		}
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].order < cands[j].order
	})
}

func (o *Orchestrator) isBusinessName(name string) bool {
	for _, b := range o.opts.BusinessFields {
		if name == b || strings.EqualFold(name, b) {
			return true
		}
	}
	return false
}

// pause sleeps the configured inter-call delay, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.cfg.CallDelayMS <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(o.cfg.CallDelayMS) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// estimate mirrors the simplifier's memory heuristic: ~2 bytes per character,
// x1.5 for container nodes, plus fixed per-node overhead.
func estimate(value string, container bool) int64 {
	cost := int64(len(value)) * 2
	if container {
		cost = cost * 3 / 2
	}
	return cost + 16
}

// splitPath splits a dotted member path, tolerating empty segments.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(path, ".") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
