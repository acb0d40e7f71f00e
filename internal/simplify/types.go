// Package simplify turns raw debugger value strings into bounded,
// cycle-safe trees suitable for display or LLM consumption.
//
// The transform is pure: for a given (value, type, Options) triple the
// output is structurally identical across calls. All mutable state lives in
// a pass-scoped context created fresh for every top-level Simplify call.
package simplify

import "codebugger/internal/config"

// Options bounds one simplification pass.
type Options struct {
	MaxDepth         int
	MaxArrayLength   int
	MaxStringLength  int
	MaxObjectKeys    int
	MemoryLimitBytes int64

	// BusinessFields are surfaced ahead of any computed score.
	BusinessFields []string

	// Name keyword lists feeding the importance score.
	HighPriorityNames   []string
	MediumPriorityNames []string
	LowPriorityNames    []string
}

// OptionsFromConfig converts the config section into pass options.
func OptionsFromConfig(cfg config.SimplifyConfig) Options {
	return Options{
		MaxDepth:            cfg.MaxDepth,
		MaxArrayLength:      cfg.MaxArrayLength,
		MaxStringLength:     cfg.MaxStringLength,
		MaxObjectKeys:       cfg.MaxObjectKeys,
		MemoryLimitBytes:    int64(cfg.MemoryLimitMB) * 1024 * 1024,
		BusinessFields:      cfg.BusinessFields,
		HighPriorityNames:   cfg.HighPriorityNames,
		MediumPriorityNames: cfg.MediumPriorityNames,
		LowPriorityNames:    cfg.LowPriorityNames,
	}
}

// DefaultOptions returns the default pass options.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultSimplifyConfig())
}

// Metadata carries per-node bookkeeping.
type Metadata struct {
	IsPointer      bool   `json:"isPointer,omitempty"`
	IsNil          bool   `json:"isNil,omitempty"`
	MemoryAddress  string `json:"memoryAddress,omitempty"`
	ArrayLength    *int   `json:"arrayLength,omitempty"`
	ObjectKeyCount *int   `json:"objectKeyCount,omitempty"`
	TruncatedAt    string `json:"truncatedAt,omitempty"` // human-readable truncation reason
	RecursionDepth int    `json:"recursionDepth"`
	CircularRefID  string `json:"circularRefId,omitempty"` // address of the ancestor this node cycles back to
}

// Field is one named child; children keep their (prioritized) order.
type Field struct {
	Name  string           `json:"name"`
	Value *SimplifiedValue `json:"value"`
}

// SimplifiedValue is a node in the simplified tree. Immutable once returned
// from Simplify; subtrees may be shared when the source value shared them.
type SimplifiedValue struct {
	OriginalType string   `json:"originalType,omitempty"`
	DisplayValue string   `json:"displayValue"`
	IsExpanded   bool     `json:"isExpanded"`
	HasMore      bool     `json:"hasMore,omitempty"`
	Children     []Field  `json:"children,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

// Child returns the named child, or nil.
func (v *SimplifiedValue) Child(name string) *SimplifiedValue {
	if v == nil {
		return nil
	}
	for _, f := range v.Children {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// pass is the mutable state threaded through one simplification recursion.
// visited holds addresses currently on the recursion stack; addressMap holds
// every address fully resolved during this pass. Depth is deliberately a
// call argument, not a pass field: the sets are shared mutably while depth
// is per-call.
type pass struct {
	visited    map[string]bool
	addressMap map[string]*SimplifiedValue
	memoryUsed int64
	limit      int64
}

func newPass(limit int64) *pass {
	return &pass{
		visited:    make(map[string]bool),
		addressMap: make(map[string]*SimplifiedValue),
		limit:      limit,
	}
}

// charge adds an estimated node cost. The estimate is ~2 bytes per character
// of serialized value, x1.5 for container nodes; it is a budget signal, not
// an allocator measurement.
func (p *pass) charge(serializedLen int, container bool) {
	cost := int64(serializedLen) * 2
	if container {
		cost = cost * 3 / 2
	}
	p.memoryUsed += cost + 16
}

func (p *pass) overBudget() bool {
	return p.limit > 0 && p.memoryUsed >= p.limit
}
