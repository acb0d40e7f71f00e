// Package session owns the per-debug-session pipeline: on every stop event
// it expands variables, runs both analyzers, and assembles a report; on
// every continue it invalidates stop-scoped state.
//
// There is exactly one logical thread of control per session. A continue
// arriving while a pipeline is in flight bumps the generation counter; the
// stale pipeline's result is discarded instead of being merged into state
// visible to collaborators.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"codebugger/internal/config"
	"codebugger/internal/dap"
	"codebugger/internal/expand"
	"codebugger/internal/logging"
	"codebugger/internal/pathsens"
	"codebugger/internal/report"
	"codebugger/internal/simplify"
	"codebugger/internal/store"
	"codebugger/internal/symbolic"
)

var (
	// ErrStale marks a pipeline result superseded by a newer event.
	ErrStale = errors.New("analysis superseded by a newer event")

	// ErrDetached marks operations on a detached session.
	ErrDetached = errors.New("session is detached")
)

// Session drives the analysis pipeline for one debug session.
type Session struct {
	id     string
	cfg    *config.Config
	client dap.Client

	orch      *expand.Orchestrator
	analyzer  *symbolic.Analyzer
	builder   *pathsens.Builder
	assembler *report.Assembler
	responses *store.ResponseCache // may be nil; shared across passes

	generation atomic.Int64

	mu       sync.Mutex
	latest   *report.Report
	detached bool
}

// New creates a Session over a debugger client. responses may be nil when
// response caching is disabled.
func New(id string, client dap.Client, cfg *config.Config, responses *store.ResponseCache) *Session {
	opts := simplify.OptionsFromConfig(cfg.Simplify)
	return &Session{
		id:        id,
		cfg:       cfg,
		client:    client,
		orch:      expand.New(client, cfg.Expansion, opts),
		analyzer:  symbolic.NewAnalyzer(cfg.Analysis),
		builder:   pathsens.NewBuilder(cfg.Analysis),
		assembler: report.NewAssembler(),
		responses: responses,
	}
}

// OnStopped runs the full pipeline for a stop event and publishes the
// report. Stage failures degrade the report to partial; only a stale or
// detached pipeline returns an error.
func (s *Session) OnStopped(ctx context.Context) (*report.Report, error) {
	if s.isDetached() {
		return nil, ErrDetached
	}
	gen := s.generation.Add(1)
	timer := logging.StartTimer(logging.CategorySession, "stop-event pipeline")
	defer timer.Stop()

	var errs []string
	durations := make(map[string]time.Duration)
	stage := func(name string, start time.Time) { durations[name] = time.Since(start) }

	start := time.Now()
	frames, err := s.client.StackTrace(ctx)
	if err != nil {
		errs = append(errs, fmt.Sprintf("stack trace: %v", err))
	}
	stage("stack", start)

	location := ""
	var variables map[string]expand.Result
	var raw []dap.Variable
	if len(frames) > 0 {
		location = frames[0].Location()

		start = time.Now()
		variables, err = s.orch.ExpandFrame(ctx, frames[0].ID, s.cfg.Expansion.MaxDepth)
		if err != nil {
			errs = append(errs, fmt.Sprintf("expansion: %v", err))
		}
		raw = s.collectRaw(ctx, frames[0].ID)
		stage("expand", start)
	}

	// Both analyzers are pure and independent; run them side by side.
	var sym *symbolic.ExecutionContext
	var ps *pathsens.Report
	start = time.Now()
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		sym = s.analyzer.Analyze(raw, frames, location)
		return nil
	})
	g.Go(func() error {
		ps = s.builder.Analyze(raw, frames, location)
		return nil
	})
	_ = g.Wait()
	stage("analyze", start)

	rep := s.assembler.Assemble(report.Input{
		SessionID: s.id,
		Location:  location,
		Variables: variables,
		Symbolic:  sym,
		PathSens:  ps,
		Durations: durations,
		Errors:    errs,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached || gen != s.generation.Load() {
		logging.Session("discarding stale report for session %s (gen %d)", s.id, gen)
		return nil, ErrStale
	}
	s.latest = rep
	logging.Session("session %s: %s", s.id, rep.Summary())
	return rep, nil
}

// OnContinued invalidates all stop-scoped state. An in-flight pipeline for
// the previous stop will observe the generation bump and discard its result.
func (s *Session) OnContinued() {
	s.generation.Add(1)
	s.orch.Cache().InvalidateAll()

	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
	logging.Session("session %s continued; stop-scoped caches invalidated", s.id)
}

// CurrentReport returns the report for the current stop, or nil while
// running or stopped-less.
func (s *Session) CurrentReport() *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// ExpandVariable serves on-demand deep expansion of one named variable,
// cached by (frame, variable, path, depth).
func (s *Session) ExpandVariable(ctx context.Context, frameID int, name, path string, maxDepth int) expand.Result {
	return s.orch.ExpandVariable(ctx, frameID, name, path, maxDepth)
}

// Detach tears the session down: further pipelines are rejected and both
// the stop-scoped expansion cache and the session-scoped response cache are
// invalidated.
func (s *Session) Detach() {
	s.mu.Lock()
	s.detached = true
	s.latest = nil
	s.mu.Unlock()

	s.generation.Add(1)
	s.orch.Cache().InvalidateAll()
	if s.responses != nil {
		if err := s.responses.Clear(); err != nil {
			logging.Session("failed to clear response cache on detach: %v", err)
		}
	}
	logging.Session("session %s detached", s.id)
}

func (s *Session) isDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// collectRaw flattens the current frame's scope variables for the
// analyzers. Failures yield a shorter list, never an error.
func (s *Session) collectRaw(ctx context.Context, frameID int) []dap.Variable {
	scopes, err := s.client.Scopes(ctx, frameID)
	if err != nil {
		return nil
	}
	var out []dap.Variable
	for _, scope := range scopes {
		if scope.Expensive {
			continue
		}
		vars, err := s.client.Variables(ctx, scope.VariablesReference)
		if err != nil {
			continue
		}
		out = append(out, vars...)
	}
	return out
}
