package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebugger.yaml")

	cfg := DefaultConfig()
	cfg.Simplify.MaxDepth = 4
	require.NoError(t, cfg.Save(path))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(next *Config) {
		select {
		case reloaded <- next:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Give the watch a moment to attach before rewriting.
	time.Sleep(100 * time.Millisecond)

	cfg.Simplify.MaxDepth = 8
	require.NoError(t, cfg.Save(path))

	select {
	case next := <-reloaded:
		assert.Equal(t, 8, next.Simplify.MaxDepth)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebugger.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, DefaultConfig().Save(filepath.Join(dir, "other.yaml")))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(700 * time.Millisecond):
	}
}
