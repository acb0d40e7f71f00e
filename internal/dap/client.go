package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Client is the request/response surface the engine consumes from the
// protocol adapter. Implementations must be safe to call sequentially from
// a single goroutine; the engine never issues concurrent requests.
type Client interface {
	// StackTrace returns the stopped thread's frames, innermost first.
	StackTrace(ctx context.Context) ([]Frame, error)

	// Scopes returns the lexical scopes for one frame.
	Scopes(ctx context.Context, frameID int) ([]Scope, error)

	// Variables resolves an opaque expansion handle to its children.
	Variables(ctx context.Context, variablesReference int) ([]Variable, error)
}

// SnapshotClient replays a captured Snapshot through the Client interface.
// It backs the offline CLI path and most tests.
type SnapshotClient struct {
	snap Snapshot
}

// NewSnapshotClient wraps an in-memory snapshot.
func NewSnapshotClient(snap Snapshot) *SnapshotClient {
	return &SnapshotClient{snap: snap}
}

// LoadSnapshot reads a snapshot from a JSON file.
func LoadSnapshot(path string) (*SnapshotClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return NewSnapshotClient(snap), nil
}

// StackTrace implements Client.
func (c *SnapshotClient) StackTrace(ctx context.Context) ([]Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.snap.Frames, nil
}

// Scopes implements Client.
func (c *SnapshotClient) Scopes(ctx context.Context, frameID int) ([]Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scopes, ok := c.snap.Scopes[frameID]
	if !ok {
		return nil, fmt.Errorf("no scopes recorded for frame %d", frameID)
	}
	return scopes, nil
}

// Variables implements Client.
func (c *SnapshotClient) Variables(ctx context.Context, variablesReference int) ([]Variable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vars, ok := c.snap.Variables[variablesReference]
	if !ok {
		return nil, fmt.Errorf("unknown variables reference %d", variablesReference)
	}
	return vars, nil
}
