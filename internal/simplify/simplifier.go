package simplify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"codebugger/internal/logging"
)

// maxPointerChain caps consecutive pointer dereferences independently of
// MaxDepth, so a pathological pointer chain stays bounded even when the
// configured depth is generous.
const maxPointerChain = 8

// previewLen is how much of a raw value survives into a truncated node.
const previewLen = 64

// Simplifier performs bounded, cycle-safe value simplification.
type Simplifier struct {
	opts Options
}

// New creates a Simplifier with the given options.
func New(opts Options) *Simplifier {
	return &Simplifier{opts: opts}
}

// Simplify transforms one raw (value, type) pair into a bounded tree.
// Deterministic and side-effect-free; a fresh recursion context is created
// per call and never shared.
func (s *Simplifier) Simplify(raw, typeName string) *SimplifiedValue {
	timer := logging.StartTimer(logging.CategorySimplify, "simplify "+typeName)
	defer timer.Stop()

	p := newPass(s.opts.MemoryLimitBytes)
	return s.walk(p, raw, typeName, 0, 0)
}

// walk is the recursive core. depth is per-call; chain counts consecutive
// pointer dereferences; all shared state lives in p.
func (s *Simplifier) walk(p *pass, raw, typeName string, depth, chain int) *SimplifiedValue {
	// Budget guards come before everything else.
	if depth >= s.opts.MaxDepth {
		return s.truncated(p, raw, typeName, depth, "max depth reached")
	}
	if p.overBudget() {
		return s.truncated(p, raw, typeName, depth, "memory limit reached")
	}

	shape := classify(raw, typeName)
	switch shape.Kind {
	case KindNil:
		p.charge(3, false)
		return &SimplifiedValue{
			OriginalType: typeName,
			DisplayValue: "nil",
			IsExpanded:   true,
			Metadata:     Metadata{IsNil: true, RecursionDepth: depth},
		}
	case KindPointer:
		return s.walkPointer(p, shape, typeName, depth, chain)
	case KindCollection:
		return s.walkCollection(p, shape, typeName, depth, chain)
	case KindStruct:
		return s.walkStruct(p, shape, typeName, depth, chain)
	default:
		return s.walkPrimitive(p, raw, typeName, depth, chain)
	}
}

// walkPointer handles one dereference with cycle and sharing detection.
func (s *Simplifier) walkPointer(p *pass, shape Shape, typeName string, depth, chain int) *SimplifiedValue {
	if chain >= maxPointerChain {
		return s.truncated(p, shape.Inner, typeName, depth, "pointer chain limit reached")
	}

	addr := shape.Address
	if addr == "" {
		// Address-less pointer: dereference without cycle tracking.
		if shape.Inner == "" {
			p.charge(len(typeName), false)
			return &SimplifiedValue{
				OriginalType: typeName,
				DisplayValue: fmt.Sprintf("<%s>", shape.TypeName),
				IsExpanded:   false,
				Metadata:     Metadata{IsPointer: true, RecursionDepth: depth},
			}
		}
		node := s.walk(p, shape.Inner, shape.TypeName, depth+1, chain+1)
		node.Metadata.IsPointer = true
		return node
	}

	// Ancestor cycle: this address is still on the recursion stack.
	if p.visited[addr] {
		p.charge(len(addr), false)
		return &SimplifiedValue{
			OriginalType: typeName,
			DisplayValue: fmt.Sprintf("<circular reference %s>", addr),
			IsExpanded:   false,
			Metadata: Metadata{
				IsPointer:      true,
				MemoryAddress:  addr,
				CircularRefID:  addr,
				RecursionDepth: depth,
			},
		}
	}

	// Sibling sharing: resolved earlier in this pass, reuse the subtree.
	if cached, ok := p.addressMap[addr]; ok {
		return cached
	}

	p.visited[addr] = true
	var node *SimplifiedValue
	if shape.Inner == "" {
		p.charge(len(addr)+len(typeName), false)
		node = &SimplifiedValue{
			OriginalType: typeName,
			DisplayValue: fmt.Sprintf("<%s>(%s)", shape.TypeName, addr),
			IsExpanded:   false,
			Metadata:     Metadata{RecursionDepth: depth},
		}
	} else {
		node = s.walk(p, shape.Inner, shape.TypeName, depth+1, chain+1)
	}
	delete(p.visited, addr)

	// A cached subtree returned by the recursion already carries its own
	// address; wrap it instead of mutating the shared node.
	if node.Metadata.MemoryAddress != "" && node.Metadata.MemoryAddress != addr {
		node = &SimplifiedValue{
			OriginalType: typeName,
			DisplayValue: node.DisplayValue,
			IsExpanded:   node.IsExpanded,
			Children:     []Field{{Name: "*", Value: node}},
			Metadata:     Metadata{RecursionDepth: depth},
		}
	}
	node.Metadata.IsPointer = true
	node.Metadata.MemoryAddress = addr
	p.addressMap[addr] = node
	return node
}

// walkCollection parses element boundaries with the quote/bracket-aware
// scanner and recurses into a bounded number of elements.
func (s *Simplifier) walkCollection(p *pass, shape Shape, typeName string, depth, chain int) *SimplifiedValue {
	displayType := firstNonEmpty(typeName, shape.TypeName)

	// Size known but payload not included: terminal summary node.
	if shape.Body == "" {
		p.charge(len(displayType)+8, false)
		length := shape.Length
		display := fmt.Sprintf("<%s>", firstNonEmpty(shape.TypeName, displayType))
		if length >= 0 {
			display = fmt.Sprintf("<%s>(length: %d)", firstNonEmpty(shape.TypeName, displayType), length)
		}
		node := &SimplifiedValue{
			OriginalType: displayType,
			DisplayValue: display,
			IsExpanded:   false,
			HasMore:      length > 0,
			Metadata:     Metadata{RecursionDepth: depth},
		}
		if length >= 0 {
			node.Metadata.ArrayLength = &length
		}
		return node
	}

	p.charge(len(shape.Body), true)
	elements := splitTop(shape.Body, ',')
	total := len(elements)
	if shape.Length > total {
		total = shape.Length
	}

	elemType := elementType(displayType, shape.IsMap)

	var children []Field
	hasMore := false
	if shape.IsMap {
		// Map entries are ranked by key importance before truncation.
		entries := make([]rawField, 0, len(elements))
		for i, el := range elements {
			if k, v, ok := cutKeyValue(el); ok {
				entries = append(entries, rawField{name: k, value: v, order: i})
			} else {
				entries = append(entries, rawField{name: fmt.Sprintf("[%d]", i), value: el, order: i})
			}
		}
		ranked := s.opts.rankFields(entries)
		if len(ranked) > s.opts.MaxArrayLength {
			ranked = ranked[:s.opts.MaxArrayLength]
			hasMore = true
		}
		for _, e := range ranked {
			children = append(children, Field{
				Name:  e.name,
				Value: s.walk(p, e.value, elemType, depth+1, chain),
			})
		}
	} else {
		kept := elements
		if len(kept) > s.opts.MaxArrayLength {
			kept = kept[:s.opts.MaxArrayLength]
			hasMore = true
		}
		for i, el := range kept {
			children = append(children, Field{
				Name:  fmt.Sprintf("[%d]", i),
				Value: s.walk(p, el, elemType, depth+1, chain),
			})
		}
	}

	node := &SimplifiedValue{
		OriginalType: displayType,
		DisplayValue: fmt.Sprintf("%s (%d items)", displayType, total),
		IsExpanded:   true,
		HasMore:      hasMore,
		Children:     children,
		Metadata:     Metadata{RecursionDepth: depth, ArrayLength: &total},
	}
	if hasMore {
		node.Metadata.TruncatedAt = "max array length"
	}
	return node
}

// walkStruct parses top-level key/value pairs, reorders them by the
// two-stage field priority, and recurses into the survivors.
func (s *Simplifier) walkStruct(p *pass, shape Shape, typeName string, depth, chain int) *SimplifiedValue {
	p.charge(len(shape.Body), true)

	displayType := firstNonEmpty(shape.TypeName, typeName)
	fields := parseFields(shape.Body)
	total := len(fields)

	ranked := s.opts.rankFields(fields)
	hasMore := false
	if len(ranked) > s.opts.MaxObjectKeys {
		ranked = ranked[:s.opts.MaxObjectKeys]
		hasMore = true
	}

	children := make([]Field, 0, len(ranked))
	for _, f := range ranked {
		name := f.name
		if name == "" {
			name = fmt.Sprintf("[%d]", f.order)
		}
		children = append(children, Field{
			Name:  name,
			Value: s.walk(p, f.value, "", depth+1, chain),
		})
	}

	node := &SimplifiedValue{
		OriginalType: displayType,
		DisplayValue: fmt.Sprintf("%s (%d fields)", firstNonEmpty(displayType, "struct"), total),
		IsExpanded:   true,
		HasMore:      hasMore,
		Children:     children,
		Metadata:     Metadata{RecursionDepth: depth, ObjectKeyCount: &total},
	}
	if hasMore {
		node.Metadata.TruncatedAt = "max object keys"
	}
	return node
}

// walkPrimitive strips quotes, applies the string budget, and falls back to
// a one-level pseudo-struct when the payload turns out to be JSON.
func (s *Simplifier) walkPrimitive(p *pass, raw, typeName string, depth, chain int) *SimplifiedValue {
	display := strings.TrimSpace(raw)
	if len(display) >= 2 && display[0] == '"' && display[len(display)-1] == '"' {
		if unquoted, err := unquote(display); err == nil {
			display = unquoted
		} else {
			display = display[1 : len(display)-1]
		}
	}

	// JSON fallback: a string-encoded object or array becomes a
	// pseudo-struct one level deep.
	if len(display) > 1 && (display[0] == '{' || display[0] == '[') && json.Valid([]byte(display)) {
		if node := s.walkJSON(p, display, typeName, depth, chain); node != nil {
			return node
		}
	}

	hasMore := false
	if len(display) > s.opts.MaxStringLength {
		display = display[:s.opts.MaxStringLength] + "..."
		hasMore = true
	}
	p.charge(len(display), false)

	node := &SimplifiedValue{
		OriginalType: typeName,
		DisplayValue: display,
		IsExpanded:   true,
		HasMore:      hasMore,
		Metadata:     Metadata{RecursionDepth: depth},
	}
	if hasMore {
		node.Metadata.TruncatedAt = "max string length"
	}
	return node
}

// walkJSON re-serializes a parsed JSON payload and recurses one level.
// Keys are sorted so output never depends on map iteration order.
func (s *Simplifier) walkJSON(p *pass, payload, typeName string, depth, chain int) *SimplifiedValue {
	var parsed interface{}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil
	}
	p.charge(len(payload), true)

	switch v := parsed.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]rawField, 0, len(keys))
		for i, k := range keys {
			encoded, err := json.Marshal(v[k])
			if err != nil {
				continue
			}
			entries = append(entries, rawField{name: k, value: string(encoded), order: i})
		}
		ranked := s.opts.rankFields(entries)
		total := len(ranked)
		hasMore := false
		if len(ranked) > s.opts.MaxObjectKeys {
			ranked = ranked[:s.opts.MaxObjectKeys]
			hasMore = true
		}
		children := make([]Field, 0, len(ranked))
		for _, e := range ranked {
			children = append(children, Field{
				Name:  e.name,
				Value: s.walk(p, e.value, "json", depth+1, chain),
			})
		}
		node := &SimplifiedValue{
			OriginalType: firstNonEmpty(typeName, "json"),
			DisplayValue: fmt.Sprintf("json object (%d keys)", total),
			IsExpanded:   true,
			HasMore:      hasMore,
			Children:     children,
			Metadata:     Metadata{RecursionDepth: depth, ObjectKeyCount: &total},
		}
		if hasMore {
			node.Metadata.TruncatedAt = "max object keys"
		}
		return node
	case []interface{}:
		total := len(v)
		kept := v
		hasMore := false
		if len(kept) > s.opts.MaxArrayLength {
			kept = kept[:s.opts.MaxArrayLength]
			hasMore = true
		}
		children := make([]Field, 0, len(kept))
		for i, item := range kept {
			encoded, err := json.Marshal(item)
			if err != nil {
				continue
			}
			children = append(children, Field{
				Name:  fmt.Sprintf("[%d]", i),
				Value: s.walk(p, string(encoded), "json", depth+1, chain),
			})
		}
		node := &SimplifiedValue{
			OriginalType: firstNonEmpty(typeName, "json"),
			DisplayValue: fmt.Sprintf("json array (%d items)", total),
			IsExpanded:   true,
			HasMore:      hasMore,
			Children:     children,
			Metadata:     Metadata{RecursionDepth: depth, ArrayLength: &total},
		}
		if hasMore {
			node.Metadata.TruncatedAt = "max array length"
		}
		return node
	default:
		return nil
	}
}

// truncated emits a terminal node carrying the truncation reason. The guard
// fires before descent, so at most one node may overshoot the budget.
func (s *Simplifier) truncated(p *pass, raw, typeName string, depth int, reason string) *SimplifiedValue {
	preview := strings.TrimSpace(raw)
	if len(preview) > previewLen {
		preview = preview[:previewLen] + "..."
	}
	p.charge(len(preview), false)
	return &SimplifiedValue{
		OriginalType: typeName,
		DisplayValue: preview,
		IsExpanded:   false,
		HasMore:      true,
		Metadata:     Metadata{RecursionDepth: depth, TruncatedAt: reason},
	}
}

// elementType derives the child type for a collection's elements.
func elementType(typeName string, isMap bool) string {
	if isMap {
		if i := strings.Index(typeName, "]"); i >= 0 && strings.HasPrefix(typeName, "map[") {
			return typeName[i+1:]
		}
		return ""
	}
	if strings.HasPrefix(typeName, "[]") {
		return typeName[2:]
	}
	if m := arrayTypeRe.FindString(typeName); m != "" {
		return typeName[len(m):]
	}
	return ""
}

// unquote handles escaped quotes inside a double-quoted payload.
func unquote(s string) (string, error) {
	var b strings.Builder
	inner := s[1 : len(s)-1]
	escaped := false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(c)
			}
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		b.WriteByte(c)
	}
	if escaped {
		return "", fmt.Errorf("dangling escape in %q", s)
	}
	return b.String(), nil
}
