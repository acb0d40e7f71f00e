package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCategoryLog(t *testing.T, workspace string, category Category) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(workspace, ".codebugger", "logs", "*_"+string(category)+".log"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one log file for %s", category)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	assert.Error(t, Initialize("", Settings{DebugMode: true}))
}

func TestDisabledModeIsSilent(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: false}))
	defer CloseAll()

	Session("should go nowhere")

	_, err := os.Stat(filepath.Join(ws, ".codebugger", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestWritesCategoryFiles(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))
	defer CloseAll()

	Simplify("simplified %d values", 42)
	SimplifyDebug("detail line")
	CloseAll()

	content := readCategoryLog(t, ws, CategorySimplify)
	assert.Contains(t, content, "simplified 42 values")
	assert.Contains(t, content, "detail line")
}

func TestLevelFiltering(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "warn"}))
	defer CloseAll()

	l := Get(CategoryExpand)
	l.Info("filtered out")
	l.Warn("kept")
	CloseAll()

	content := readCategoryLog(t, ws, CategoryExpand)
	assert.NotContains(t, content, "filtered out")
	assert.Contains(t, content, "kept")
}

func TestCategoryFiltering(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"expand": false},
	}))
	defer CloseAll()

	Expand("suppressed")
	Session("recorded")
	CloseAll()

	matches, err := filepath.Glob(filepath.Join(ws, ".codebugger", "logs", "*_expand.log"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Contains(t, readCategoryLog(t, ws, CategorySession), "recorded")
}

func TestStructuredJSONEntries(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug", JSONFormat: true}))
	defer CloseAll()

	Get(CategoryReport).StructuredLog("INFO", "report assembled", map[string]interface{}{
		"variables": 3,
	})
	CloseAll()

	content := strings.TrimSpace(readCategoryLog(t, ws, CategoryReport))
	lines := strings.Split(content, "\n")
	last := lines[len(lines)-1]
	// Strip the std logger's timestamp prefix before the JSON payload.
	idx := strings.Index(last, "{")
	require.GreaterOrEqual(t, idx, 0)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(last[idx:]), &entry))
	assert.Equal(t, "report", entry["cat"])
	assert.Equal(t, "report assembled", entry["msg"])
}

func TestTimer(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))
	defer CloseAll()

	timer := StartTimer(CategoryPerformance, "test operation")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))

	slow := StartTimer(CategoryPerformance, "slow operation")
	assert.GreaterOrEqual(t, slow.StopWithThreshold(0).Nanoseconds(), int64(0))
}
