// Package dap defines the debugger-protocol collaborator surface.
//
// The engine never talks to a live debugger directly; it consumes
// idempotent-but-possibly-stale snapshots through the Client interface.
// The shapes mirror the Debug Adapter Protocol's stackTrace/scopes/variables
// responses, which every supported debugger family reduces to.
package dap

import "fmt"

// Frame represents one call-stack frame as reported by the debugger.
// Index 0 is the innermost (current) frame.
type Frame struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Source *Source `json:"source,omitempty"`
	Line   int     `json:"line"`
	Column int     `json:"column,omitempty"`
}

// Source represents source file information for a frame.
type Source struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// Scope represents a lexical scope within a frame.
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
	Expensive          bool   `json:"expensive,omitempty"`
}

// Variable is the raw name/value/type triple produced by the debugger.
// VariablesReference > 0 is the opaque "expand this value" handle.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
	EvaluateName       string `json:"evaluateName,omitempty"`
}

// Snapshot is a complete captured debug state, suitable for offline replay.
type Snapshot struct {
	SessionID string             `json:"sessionId"`
	Frames    []Frame            `json:"frames"`
	Scopes    map[int][]Scope    `json:"scopes"`    // frameId -> scopes
	Variables map[int][]Variable `json:"variables"` // variablesReference -> children
}

// Location renders a frame's source position as "file:line".
func (f Frame) Location() string {
	if f.Source == nil {
		return "unknown:0"
	}
	name := f.Source.Path
	if name == "" {
		name = f.Source.Name
	}
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s:%d", name, f.Line)
}
