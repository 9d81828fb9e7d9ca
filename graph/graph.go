// Package graph evaluates a pipeline's steps as a dependency DAG: one
// goroutine per step, wired together by per-edge channels, so a step starts
// the instant every precedent has posted its terminal status — never
// waiting for an artificial "wave" barrier. The shape is grounded on the
// worker-pool goroutine/channel idiom, generalized from a flat task queue to
// a dependency graph.
package graph

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cosmotech/csm-orc/env"
	"github.com/cosmotech/csm-orc/pipelinefile"
	"github.com/cosmotech/csm-orc/step"
	"github.com/cosmotech/csm-orc/template"
)

// isSuccessVar is the environment variable name every exit handler receives,
// carrying the overall run outcome.
const isSuccessVar = "CSM_ORC_IS_SUCCESS"

// Options configures one Engine.Run invocation.
type Options struct {
	DryRun bool
	Logger *slog.Logger
}

// Result is the outcome of running every step in a Result's graph to
// completion, plus whatever exit handlers were dispatched afterward.
type Result struct {
	// Statuses holds the terminal status of every step, keyed by id.
	Statuses map[string]step.Status
	// Success is true iff every non-exit-handler step reached a Terminal
	// status — no step ended in RunError, SkippedAfterFailure, or Error.
	Success bool
	// ExitHandlers holds the terminal status of every dispatched exit
	// handler, keyed by the originating template id.
	ExitHandlers map[string]step.Status
}

// node is one step wrapped with the channels it needs to synchronize with
// its precedents and dependents.
type node struct {
	step *step.Step
	// ready is closed once this node has posted its terminal status and
	// captured outputs, signalling dependents that they may read from it.
	ready chan struct{}
}

// Engine runs the steps of a loaded pipeline file to completion.
type Engine struct {
	lib *template.Library
}

// New builds an Engine that resolves exit-handler templates against lib.
func New(lib *template.Library) *Engine {
	return &Engine{lib: lib}
}

// Run evaluates every step in res to a terminal status, then dispatches the
// pipeline's exit handlers in the order Library.ListExitCommands returns.
// Run blocks until the whole graph (including exit handlers) has settled.
// Cancelling ctx kills every in-flight subprocess's process group; a step
// whose subprocess is killed or cannot start ends in RunError, and its
// dependents end in SkippedAfterFailure.
func (e *Engine) Run(ctx context.Context, res *pipelinefile.Result, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nodes := make(map[string]*node, len(res.Steps))
	for id, s := range res.Steps {
		if s.Logger == nil {
			s.Logger = logger.With("step", id)
		}
		nodes[id] = &node{step: s, ready: make(chan struct{})}
	}

	var wg sync.WaitGroup
	wg.Add(len(nodes))
	for id := range nodes {
		go func(id string) {
			defer wg.Done()
			runNode(ctx, nodes, id, opts.DryRun)
		}(id)
	}
	wg.Wait()

	result := &Result{
		Statuses:     make(map[string]step.Status, len(nodes)),
		ExitHandlers: make(map[string]step.Status),
	}
	success := true
	for id, n := range nodes {
		result.Statuses[id] = n.step.Status
		if !n.step.Status.Terminal() {
			success = false
		}
	}
	result.Success = success

	e.runExitHandlers(ctx, result, logger, opts.DryRun)
	return result
}

// runNode waits for every precedent of id to post its terminal status, then
// runs the node itself, then closes its own ready channel so its dependents
// may proceed.
func runNode(ctx context.Context, nodes map[string]*node, id string, dryRun bool) {
	n := nodes[id]
	previous := make(map[string]step.Status, len(n.step.Precedents))
	inputData := make(map[string]string, len(n.step.Inputs))

	for _, precID := range n.step.Precedents {
		prec := nodes[precID]
		<-prec.ready
		previous[precID] = prec.step.Status
	}
	for inputName, in := range n.step.Inputs {
		if prec, ok := nodes[in.StepID]; ok {
			if value, ok := prec.step.CapturedOutputs[in.Output]; ok {
				inputData[inputName] = value
			}
		}
	}

	n.step.Run(ctx, dryRun, previous, inputData)
	close(n.ready)
}

// runExitHandlers dispatches every registered exit-handler template
// sequentially, in the order Library.ListExitCommands returns, synthesizing a one-off Step per
// handler with CSM_ORC_IS_SUCCESS set to the run's overall outcome. Exit
// handlers never participate in the dependency graph: they always run,
// pass or fail, after it settles.
func (e *Engine) runExitHandlers(ctx context.Context, result *Result, logger *slog.Logger, dryRun bool) {
	if e.lib == nil {
		return
	}
	for _, templateID := range e.lib.ListExitCommands() {
		s := step.New(templateID)
		s.CommandID = templateID
		s.Logger = logger.With("exit_handler", templateID)
		if err := s.ResolveTemplate(e.lib); err != nil {
			logger.Warn("could not resolve exit handler template", "template", templateID, "error", err)
			continue
		}
		if s.Environment == nil {
			s.Environment = make(map[string]*env.Var)
		}
		v := env.New(isSuccessVar)
		v.Value = strconv.FormatBool(result.Success)
		s.Environment[isSuccessVar] = v
		s.Run(ctx, dryRun, nil, nil)
		result.ExitHandlers[templateID] = s.Status
	}
}
