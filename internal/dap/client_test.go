package dap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		SessionID: "replay-1",
		Frames: []Frame{
			{ID: 1, Name: "handleRequest", Source: &Source{Path: "srv/handler.go"}, Line: 42},
			{ID: 2, Name: "main.main", Source: &Source{Path: "main.go"}, Line: 10},
		},
		Scopes: map[int][]Scope{
			1: {{Name: "Locals", VariablesReference: 100}},
		},
		Variables: map[int][]Variable{
			100: {{Name: "req", Value: "<*http.Request>", Type: "*http.Request", VariablesReference: 200}},
			200: {{Name: "Method", Value: `"GET"`, Type: "string"}},
		},
	}
}

func TestSnapshotReplay(t *testing.T) {
	c := NewSnapshotClient(sampleSnapshot())
	ctx := context.Background()

	frames, err := c.StackTrace(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "handleRequest", frames[0].Name)

	scopes, err := c.Scopes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, scopes, 1)

	vars, err := c.Variables(ctx, scopes[0].VariablesReference)
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "req", vars[0].Name)

	children, err := c.Variables(ctx, vars[0].VariablesReference)
	require.NoError(t, err)
	assert.Equal(t, "Method", children[0].Name)
}

func TestSnapshotUnknownReferences(t *testing.T) {
	c := NewSnapshotClient(sampleSnapshot())
	ctx := context.Background()

	_, err := c.Scopes(ctx, 99)
	assert.ErrorContains(t, err, "no scopes recorded")

	_, err = c.Variables(ctx, 999)
	assert.ErrorContains(t, err, "unknown variables reference")
}

func TestSnapshotHonorsContext(t *testing.T) {
	c := NewSnapshotClient(sampleSnapshot())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.StackTrace(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.Scopes(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.Variables(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	data := `{
		"sessionId": "from-file",
		"frames": [{"id": 1, "name": "work", "source": {"path": "w.go"}, "line": 3}],
		"scopes": {"1": [{"name": "Locals", "variablesReference": 10}]},
		"variables": {"10": [{"name": "x", "value": "1", "type": "int"}]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := LoadSnapshot(path)
	require.NoError(t, err)

	frames, err := c.StackTrace(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "w.go:3", frames[0].Location())

	vars, err := c.Variables(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "x", vars[0].Name)
}

func TestLoadSnapshotErrors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read snapshot")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadSnapshot(bad)
	assert.ErrorContains(t, err, "failed to parse snapshot")
}

func TestFrameLocation(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"path preferred", Frame{Source: &Source{Path: "a/b.go", Name: "b.go"}, Line: 7}, "a/b.go:7"},
		{"name fallback", Frame{Source: &Source{Name: "b.go"}, Line: 7}, "b.go:7"},
		{"empty source", Frame{Source: &Source{}, Line: 7}, "unknown:7"},
		{"nil source", Frame{Line: 7}, "unknown:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frame.Location())
		})
	}
}
