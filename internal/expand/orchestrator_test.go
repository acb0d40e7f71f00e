package expand

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/simplify"
)

// mockClient serves canned scope/variable tables and counts round-trips.
type mockClient struct {
	scopes    map[int][]dap.Scope
	vars      map[int][]dap.Variable
	failRefs  map[int]bool
	scopesErr error
	varCalls  int
}

func (m *mockClient) StackTrace(ctx context.Context) ([]dap.Frame, error) {
	return nil, nil
}

func (m *mockClient) Scopes(ctx context.Context, frameID int) ([]dap.Scope, error) {
	if m.scopesErr != nil {
		return nil, m.scopesErr
	}
	return m.scopes[frameID], nil
}

func (m *mockClient) Variables(ctx context.Context, ref int) ([]dap.Variable, error) {
	m.varCalls++
	if m.failRefs[ref] {
		return nil, errors.New("variable request timed out")
	}
	vars, ok := m.vars[ref]
	if !ok {
		return nil, errors.New("unknown variables reference")
	}
	return vars, nil
}

func newMockClient() *mockClient {
	return &mockClient{
		scopes: map[int][]dap.Scope{
			1: {
				{Name: "Locals", VariablesReference: 100},
				{Name: "Registers", VariablesReference: 101, Expensive: true},
			},
		},
		vars: map[int][]dap.Variable{
			100: {
				{Name: "user", Value: `<*main.User>(0xAB) {id: 42}`, Type: "*main.User", VariablesReference: 200},
				{Name: "count", Value: "3", Type: "int"},
				{Name: "internal_cache", Value: "x", Type: "string"},
			},
			101: {
				{Name: "rax", Value: "0x1f", Type: "uint64"},
			},
			200: {
				{Name: "id", Value: "42", Type: "int"},
				{Name: "name", Value: `"bob"`, Type: "string"},
				{Name: "addr", Value: `{city: "Oslo"}`, Type: "main.Address", VariablesReference: 300},
			},
			300: {
				{Name: "city", Value: `"Oslo"`, Type: "string"},
			},
		},
		failRefs: map[int]bool{},
	}
}

func newOrchestrator(client dap.Client, cfg config.ExpansionConfig) *Orchestrator {
	cfg.CallDelayMS = 0 // no pacing in tests
	return New(client, cfg, simplify.DefaultOptions())
}

func TestExpandFrameSelectsTopVariables(t *testing.T) {
	cfg := config.DefaultExpansionConfig()
	cfg.MaxVariables = 2
	o := newOrchestrator(newMockClient(), cfg)

	results, err := o.ExpandFrame(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, results, "user")
	assert.Contains(t, results, "count")
	assert.NotContains(t, results, "internal_cache", "low-priority names lose under a tight budget")
	for name, r := range results {
		assert.True(t, r.Success, "expected %s to expand", name)
		assert.NotNil(t, r.Data)
	}
}

func TestExpandFrameBudgetShrinksWithDepth(t *testing.T) {
	cfg := config.DefaultExpansionConfig()
	cfg.MaxVariables = 4
	o := newOrchestrator(newMockClient(), cfg)

	results, err := o.ExpandFrame(context.Background(), 1, 4)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results, "user")
}

func TestExpandFrameSkipsExpensiveScopes(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	results, err := o.ExpandFrame(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.NotContains(t, results, "rax")
}

func TestExpandFrameScopesFailure(t *testing.T) {
	client := newMockClient()
	client.scopesErr = errors.New("adapter disconnected")
	o := newOrchestrator(client, config.DefaultExpansionConfig())

	results, err := o.ExpandFrame(context.Background(), 1, 1)
	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestExpandVariableFollowsLiveHandles(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "user", "", 2)
	require.True(t, r.Success, r.Error)
	require.NotNil(t, r.Data)
	assert.Greater(t, r.MemoryUsed, int64(0))

	assert.Equal(t, "42", r.Data.Child("id").DisplayValue)
	assert.Equal(t, "bob", r.Data.Child("name").DisplayValue)

	addr := r.Data.Child("addr")
	require.NotNil(t, addr)
	assert.Equal(t, "Oslo", addr.Child("city").DisplayValue)
}

func TestExpandVariableDepthBoundary(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "user", "", 1)
	require.True(t, r.Success, r.Error)

	// addr still has a live handle but the walk stopped above it.
	addr := r.Data.Child("addr")
	require.NotNil(t, addr)
	assert.True(t, addr.HasMore)
	// The string parser still surfaces what the raw value carried.
	assert.Equal(t, "Oslo", addr.Child("city").DisplayValue)
}

func TestExpandVariablePath(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "user", "addr.city", 1)
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "Oslo", r.Data.DisplayValue)
}

func TestExpandVariableNotFound(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "ghost", "", 1)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "not found")
	assert.Nil(t, r.Data)
}

func TestExpandVariableScalarPath(t *testing.T) {
	o := newOrchestrator(newMockClient(), config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "count", "digits", 1)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "cannot descend")
}

func TestExpandVariableTopLevelFetchFailure(t *testing.T) {
	client := newMockClient()
	client.failRefs[200] = true
	o := newOrchestrator(client, config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "user", "", 2)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "timed out")
}

func TestExpandVariableChildFailureDegrades(t *testing.T) {
	client := newMockClient()
	client.failRefs[300] = true
	o := newOrchestrator(client, config.DefaultExpansionConfig())

	r := o.ExpandVariable(context.Background(), 1, "user", "", 2)
	require.True(t, r.Success, "a deep child failure must not fail the variable")

	addr := r.Data.Child("addr")
	require.NotNil(t, addr)
	assert.True(t, addr.HasMore)
}

func TestExpandVariableMaxChildrenPerLevel(t *testing.T) {
	cfg := config.DefaultExpansionConfig()
	cfg.MaxChildrenPerLevel = 2
	o := newOrchestrator(newMockClient(), cfg)

	r := o.ExpandVariable(context.Background(), 1, "user", "", 2)
	require.True(t, r.Success, r.Error)
	assert.Len(t, r.Data.Children, 2)
	assert.True(t, r.Data.HasMore)
	assert.Equal(t, "max children per level", r.Data.Metadata.TruncatedAt)

	// Business fields survive the cut.
	assert.NotNil(t, r.Data.Child("id"))
	assert.NotNil(t, r.Data.Child("name"))
	assert.Nil(t, r.Data.Child("addr"))
}

func TestExpandCacheHitAndInvalidation(t *testing.T) {
	client := newMockClient()
	o := newOrchestrator(client, config.DefaultExpansionConfig())
	ctx := context.Background()

	r1 := o.ExpandVariable(ctx, 1, "user", "", 2)
	require.True(t, r1.Success)
	calls := client.varCalls

	r2 := o.ExpandVariable(ctx, 1, "user", "", 2)
	assert.Equal(t, calls, client.varCalls, "cache hit must not touch the debugger")
	assert.Equal(t, r1.Data, r2.Data)

	o.Cache().InvalidateAll()
	assert.Equal(t, 0, o.Cache().Len())

	o.ExpandVariable(ctx, 1, "user", "", 2)
	assert.Greater(t, client.varCalls, calls, "invalidated cache must re-query")
}

func TestExpandFrameResultsCached(t *testing.T) {
	client := newMockClient()
	cfg := config.DefaultExpansionConfig()
	cfg.MaxVariables = 2
	o := newOrchestrator(client, cfg)
	ctx := context.Background()

	_, err := o.ExpandFrame(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, o.Cache().Len())
}

func TestExpandVariableCancelled(t *testing.T) {
	client := newMockClient()
	o := New(client, config.DefaultExpansionConfig(), simplify.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := o.ExpandVariable(ctx, 1, "user", "", 2)
	assert.False(t, r.Success)
}
