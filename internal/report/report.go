// Package report merges the per-stop analyses into one immutable report
// object handed to external consumers (UI, AI client, export).
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"codebugger/internal/expand"
	"codebugger/internal/logging"
	"codebugger/internal/pathsens"
	"codebugger/internal/symbolic"
)

// Report is the complete output of one analysis pipeline run. Immutable
// once assembled; consumers must not mutate it.
type Report struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Location    string    `json:"location,omitempty"`

	Variables       map[string]expand.Result   `json:"variables,omitempty"`
	Symbolic        *symbolic.ExecutionContext `json:"symbolic,omitempty"`
	PathSensitivity *pathsens.Report           `json:"pathSensitivity,omitempty"`

	// RootCause and Recommendations are lifted out of the analyses so a
	// consumer can surface them without walking the full structures.
	RootCause       string   `json:"rootCause,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	// Durations holds per-stage pipeline timings keyed by stage name.
	Durations map[string]time.Duration `json:"durations,omitempty"`

	// Partial marks a degraded report: some stage failed or some variable
	// did not expand. Partial results are always preferred over no report.
	Partial bool     `json:"partial,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Assembler builds reports. Stateless.
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// Input carries everything one pipeline run produced.
type Input struct {
	SessionID string
	Location  string
	Variables map[string]expand.Result
	Symbolic  *symbolic.ExecutionContext
	PathSens  *pathsens.Report
	Durations map[string]time.Duration
	Errors    []string
}

// Assemble merges one pipeline run's outputs. Missing stages and failed
// variables mark the report partial rather than failing it.
func (a *Assembler) Assemble(in Input) *Report {
	r := &Report{
		ID:              uuid.NewString(),
		SessionID:       in.SessionID,
		GeneratedAt:     a.now(),
		Location:        in.Location,
		Variables:       in.Variables,
		Symbolic:        in.Symbolic,
		PathSensitivity: in.PathSens,
		Durations:       in.Durations,
		Errors:          in.Errors,
	}

	if in.Symbolic != nil {
		r.RootCause = in.Symbolic.RootCause
	}
	if in.PathSens != nil {
		r.Recommendations = in.PathSens.Recommendations
	}

	if len(in.Errors) > 0 || in.Symbolic == nil || in.PathSens == nil {
		r.Partial = true
	}
	failed := 0
	for _, v := range in.Variables {
		if !v.Success {
			failed++
			r.Partial = true
		}
	}

	logging.Report("assembled report %s: %d variables (%d failed), partial=%v",
		r.ID, len(in.Variables), failed, r.Partial)
	return r
}

// Variable returns one variable's expansion result.
func (r *Report) Variable(name string) (expand.Result, bool) {
	v, ok := r.Variables[name]
	return v, ok
}

// Summary renders a one-paragraph overview for logs and status surfaces.
func (r *Report) Summary() string {
	issues := 0
	if r.Symbolic != nil {
		issues = len(r.Symbolic.PotentialIssues)
	}
	critical := 0
	if r.PathSensitivity != nil {
		critical = len(r.PathSensitivity.CriticalPaths)
	}
	state := "complete"
	if r.Partial {
		state = "partial"
	}
	return fmt.Sprintf("%s report at %s: %d variables, %d potential issues, %d critical paths",
		state, r.Location, len(r.Variables), issues, critical)
}
