// Package orchestrator is the thin façade over pipelinefile/template/graph:
// the four operations a caller (the CLI, or an embedding program) actually
// needs, each taking a pipeline file path and returning a plain result
// instead of exposing the loader/engine plumbing.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cosmotech/csm-orc/graph"
	"github.com/cosmotech/csm-orc/pipelinefile"
	"github.com/cosmotech/csm-orc/template"
)

// Options configures every façade operation.
type Options struct {
	// Library is the template library to resolve commandId references
	// against. Nil falls back to template.Default().
	Library *template.Library
	// Logger receives orchestrator-level lifecycle logging. Nil falls back
	// to slog.Default().
	Logger *slog.Logger
	// SkippedSteps lists step ids to mark skipped rather than executed.
	SkippedSteps []string
	// IgnoreErrors suppresses the load-time MissingEnvironment failure.
	IgnoreErrors bool
	// YAML selects the YAML pipeline-file loader instead of JSON.
	YAML bool
	// DisableExitHandlers skips exit-handler dispatch after the main graph
	// settles. Dispatch is on by default so a plain Run exercises the
	// exit-handler roster; callers opt out explicitly.
	DisableExitHandlers bool
}

func (o Options) library() *template.Library {
	if o.Library != nil {
		return o.Library
	}
	return template.Default()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) load(path string, displayEnv bool) (*pipelinefile.Result, error) {
	opts := pipelinefile.Options{
		SkippedSteps: o.SkippedSteps,
		DisplayEnv:   displayEnv,
		IgnoreErrors: o.IgnoreErrors,
	}
	if o.YAML {
		return pipelinefile.LoadYAML(path, o.library(), opts)
	}
	return pipelinefile.Load(path, o.library(), opts)
}

// Validate reports whether the pipeline file at path loads cleanly: schema
// valid, every template/precedent/input reference resolves, the precedence
// graph is acyclic, and every required environment variable has an
// effective value. It logs the failure reason on error and never returns
// the underlying error to the caller, matching the CLI's "validate" verb.
func Validate(path string, opts Options) bool {
	if _, err := opts.load(path, false); err != nil {
		opts.logger().Error("pipeline file is invalid", "path", path, "error", err)
		return false
	}
	return true
}

// DisplayEnvironment loads path ignoring the missing-environment failure and
// returns every declared environment variable name with its accumulated
// descriptions, sorted, formatted one line per variable.
func DisplayEnvironment(path string, opts Options) (string, error) {
	opts.IgnoreErrors = true
	res, err := opts.load(path, true)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(res.EnvDescr))
	for name := range res.EnvDescr {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		descrs := res.EnvDescr[name]
		if len(descrs) == 0 {
			fmt.Fprintf(&b, "%s\n", name)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(descrs, "; "))
	}
	return b.String(), nil
}

// GenerateEnvFile writes, for every discovered environment variable, a
// `NAME="<effective-or-description>"` line, sorted by name, to target.
func GenerateEnvFile(path, target string, opts Options) error {
	opts.IgnoreErrors = true
	res, err := opts.load(path, true)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(res.EnvDescr))
	for name := range res.EnvDescr {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		effective := strings.Join(res.EnvDescr[name], "; ")
		if v, ok := res.EnvVars[name]; ok {
			if ev, ok := v.EffectiveValue(); ok {
				effective = ev
			}
		}
		fmt.Fprintf(&b, "%s=%q\n", name, effective)
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(target, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", target, err)
	}
	return nil
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	Success      bool
	Statuses     map[string]string
	ExitHandlers map[string]string
}

// Run loads the pipeline file at path and runs every step to completion,
// dispatching exit handlers afterward. dryRun, when true, runs the same
// graph without launching any subprocess (every step becomes DryRun
// instead of Done/RunError).
func Run(ctx context.Context, path string, dryRun bool, opts Options) (*RunResult, error) {
	res, err := opts.load(path, false)
	if err != nil {
		return nil, err
	}

	exitLib := opts.library()
	if opts.DisableExitHandlers {
		exitLib = nil
	}
	engine := graph.New(exitLib)
	gr := engine.Run(ctx, res, graph.Options{DryRun: dryRun, Logger: opts.logger()})

	out := &RunResult{
		Success:      gr.Success,
		Statuses:     make(map[string]string, len(gr.Statuses)),
		ExitHandlers: make(map[string]string, len(gr.ExitHandlers)),
	}
	for id, st := range gr.Statuses {
		out.Statuses[id] = string(st)
	}
	for id, st := range gr.ExitHandlers {
		out.ExitHandlers[id] = string(st)
	}
	return out, nil
}
