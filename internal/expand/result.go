// Package expand walks a debugger's live scopes → variables → children
// graph under depth/memory budgets and produces simplified trees.
//
// All debugger calls are issued sequentially with a small inter-call delay;
// there is no concurrent fan-out within one analysis pass. Latency is traded
// for transport stability on purpose.
package expand

import (
	"fmt"
	"time"

	"codebugger/internal/simplify"
)

// Result is the outcome of expanding one variable. A failed expansion
// carries the error string; the pass continues with partial results.
type Result struct {
	Success       bool                      `json:"success"`
	Data          *simplify.SimplifiedValue `json:"data,omitempty"`
	Error         string                    `json:"error,omitempty"`
	MemoryUsed    int64                     `json:"memoryUsed"`
	ExpansionTime time.Duration             `json:"expansionTime"`
}

// failure builds an unsuccessful result.
func failure(err error, elapsed time.Duration) Result {
	return Result{Success: false, Error: err.Error(), ExpansionTime: elapsed}
}

// cacheKey identifies one expansion result within a stop event.
func cacheKey(frameID int, variable, path string, depth int) string {
	return fmt.Sprintf("%d|%s|%s|%d", frameID, variable, path, depth)
}
