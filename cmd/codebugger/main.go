package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/logging"
	"codebugger/internal/session"
	"codebugger/internal/simplify"
	"codebugger/internal/store"
)

// Version is stamped by the build.
var Version = "0.4.0"

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// cfg may be swapped by the config watcher while `watch` is running.
	cfgMu sync.RWMutex
	cfg   *config.Config
)

func currentConfig() *config.Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codebugger",
	Short: "codebugger - debug-context analysis engine",
	Long: `codebugger turns a debugger's raw stop-event snapshot (frames, scopes,
variables) into bounded, cycle-safe value trees plus a heuristic model of
the program's execution: the path actually taken, plausible alternative
branches, unmet constraints, and risk-ranked critical paths.

Snapshots are JSON files in the stackTrace/scopes/variables shape every
supported debugger family reduces to. Capture one with your adapter of
choice, then point a subcommand at it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(workspace, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	analyzeNoCache bool
)

// analyzeCmd runs the full stop-event pipeline over a snapshot.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [snapshot.json]",
	Short: "Run the full analysis pipeline over a captured snapshot",
	Long: `Expands the current frame's variables, runs constraint inference and
path sensitivity analysis, and prints the assembled report as JSON.

Reports are cached content-addressed in the configured SQLite database;
re-analyzing an identical snapshot is served from the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	expandFrame int
	expandVar   string
	expandPath  string
	expandDepth int
)

// expandCmd expands one variable on demand.
var expandCmd = &cobra.Command{
	Use:   "expand [snapshot.json]",
	Short: "Deep-expand one variable from a captured snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpand,
}

// watchCmd re-analyzes a snapshot whenever it changes on disk.
var watchCmd = &cobra.Command{
	Use:   "watch [snapshot.json]",
	Short: "Watch a snapshot file and re-analyze it on every change",
	Long: `Runs the analysis pipeline once, then keeps watching the snapshot file
and re-analyzes whenever the capture is rewritten. The config file is
watched too, so tuning-knob changes apply without a restart.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var simplifyType string

// simplifyCmd runs the value simplifier on a single raw value.
var simplifyCmd = &cobra.Command{
	Use:   "simplify [raw-value]",
	Short: "Simplify one raw debugger value string",
	Long: `Parses a single raw value string the way the pipeline would and prints
the bounded tree. Useful for inspecting how a specific debugger rendering
is classified and truncated.

Example:
  codebugger simplify '<*main.User>(0xc000010000) {id: 42, name: "bob"}' --type '*main.User'`,
	Args: cobra.ExactArgs(1),
	RunE: runSimplify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codebugger version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codebugger %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory for logs and cache")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "codebugger.yaml", "config file path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "analysis timeout")

	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "bypass the report cache")

	expandCmd.Flags().IntVar(&expandFrame, "frame", 0, "frame id (default: innermost frame)")
	expandCmd.Flags().StringVar(&expandVar, "var", "", "variable name to expand")
	expandCmd.Flags().StringVar(&expandPath, "path", "", "dotted member path below the variable")
	expandCmd.Flags().IntVar(&expandDepth, "depth", 0, "expansion depth (default: configured)")
	_ = expandCmd.MarkFlagRequired("var")

	simplifyCmd.Flags().StringVar(&simplifyType, "type", "", "type name reported by the debugger")

	rootCmd.AddCommand(analyzeCmd, expandCmd, simplifyCmd, watchCmd, versionCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	responses := openResponseCache()
	if responses != nil {
		defer responses.Close()
	}

	out, err := analyzeSnapshot(ctx, args[0], responses)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// openResponseCache opens the configured report cache. A cache failure is
// never fatal; analysis just runs uncached.
func openResponseCache() *store.ResponseCache {
	c := currentConfig()
	if !c.Cache.Enabled {
		return nil
	}
	responses, err := store.NewResponseCache(c.Cache.DatabasePath, c.Cache.MaxEntries)
	if err != nil {
		logger.Warn("report cache unavailable, continuing without", zap.Error(err))
		return nil
	}
	return responses
}

// analyzeSnapshot runs one full pipeline pass over a snapshot file,
// content-addressed against the report cache.
func analyzeSnapshot(ctx context.Context, path string, responses *store.ResponseCache) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	cacheKey := store.Key("analyze", Version, string(raw))
	if responses != nil && !analyzeNoCache {
		if cached, ok, err := responses.Get(cacheKey); err == nil && ok {
			logger.Debug("serving analysis from cache")
			return cached, nil
		}
	}

	var snap dap.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return "", fmt.Errorf("failed to parse snapshot: %w", err)
	}

	sess := session.New(path, dap.NewSnapshotClient(snap), currentConfig(), responses)
	rep, err := sess.OnStopped(ctx)
	if err != nil {
		return "", fmt.Errorf("analysis failed: %w", err)
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if responses != nil && !analyzeNoCache {
		if err := responses.Put(cacheKey, string(out)); err != nil {
			logger.Warn("failed to cache report", zap.Error(err))
		}
	}

	logger.Info("analysis complete",
		zap.String("location", rep.Location),
		zap.Int("variables", len(rep.Variables)),
		zap.Bool("partial", rep.Partial))
	return string(out), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := watchContext()
	defer cancel()

	cw, err := config.NewWatcher(configPath, func(next *config.Config) {
		cfgMu.Lock()
		cfg = next
		cfgMu.Unlock()
		logger.Info("config reloaded", zap.String("path", configPath))
	})
	if err != nil {
		logger.Warn("config watch unavailable", zap.Error(err))
	} else {
		if err := cw.Start(ctx); err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		} else {
			defer cw.Stop()
		}
	}

	responses := openResponseCache()
	if responses != nil {
		defer responses.Close()
	}

	reanalyze := func() {
		runCtx, done := context.WithTimeout(ctx, timeout)
		defer done()
		out, err := analyzeSnapshot(runCtx, args[0], responses)
		if err != nil {
			logger.Error("analysis failed", zap.Error(err))
			return
		}
		fmt.Println(out)
	}
	reanalyze()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start snapshot watch: %w", err)
	}
	defer fsw.Close()
	// Watch the directory: editors and capture tools replace files on save.
	if err := fsw.Add(filepath.Dir(args[0])); err != nil {
		return fmt.Errorf("failed to watch snapshot directory: %w", err)
	}

	target := filepath.Clean(args[0])
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if time.Since(last) < 500*time.Millisecond {
				continue
			}
			last = time.Now()
			reanalyze()
		case _, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, err := dap.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	frameID := expandFrame
	if frameID == 0 {
		frames, err := client.StackTrace(ctx)
		if err != nil || len(frames) == 0 {
			return fmt.Errorf("snapshot has no frames; pass --frame explicitly")
		}
		frameID = frames[0].ID
	}

	sess := session.New(args[0], client, currentConfig(), nil)
	result := sess.ExpandVariable(ctx, frameID, expandVar, expandPath, expandDepth)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))
	if !result.Success {
		return fmt.Errorf("expansion failed: %s", result.Error)
	}
	return nil
}

func runSimplify(cmd *cobra.Command, args []string) error {
	s := simplify.New(simplify.OptionsFromConfig(currentConfig().Simplify))
	node := s.Simplify(args[0], simplifyType)

	out, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// watchContext cancels on SIGINT/SIGTERM only; watch mode has no deadline.
func watchContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// signalContext cancels on SIGINT/SIGTERM or the configured timeout.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
