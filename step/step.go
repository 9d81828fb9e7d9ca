// Package step implements the executable DAG node: resolving its template,
// composing its environment, binding predecessor outputs, and running the
// underlying subprocess.
package step

import (
	"log/slog"

	"github.com/cosmotech/csm-orc/env"
	"github.com/cosmotech/csm-orc/orcerr"
	"github.com/cosmotech/csm-orc/template"
)

// InputSpec binds a predecessor's named output to an environment variable
// in this step.
type InputSpec struct {
	As           string `json:"as" yaml:"as"`
	StepID       string `json:"stepId" yaml:"stepId"`
	Output       string `json:"output" yaml:"output"`
	Optional     bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// OutputSpec declares that a step may emit a named value via the
// output-data protocol.
type OutputSpec struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Step is the executable DAG node.
type Step struct {
	ID                   string                 `json:"id" yaml:"id"`
	Command              string                 `json:"command,omitempty" yaml:"command,omitempty"`
	CommandID            string                 `json:"commandId,omitempty" yaml:"commandId,omitempty"`
	Arguments            []string               `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Environment          map[string]*env.Var    `json:"environment,omitempty" yaml:"environment,omitempty"`
	Precedents           []string               `json:"precedents,omitempty" yaml:"precedents,omitempty"`
	Inputs               map[string]*InputSpec  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs              map[string]*OutputSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Description          string                 `json:"description,omitempty" yaml:"description,omitempty"`
	UseSystemEnvironment bool                   `json:"useSystemEnvironment,omitempty" yaml:"useSystemEnvironment,omitempty"`

	// Skipped marks a step as skipped by the caller (skippedSteps list at
	// load time). A skipped step never runs and terminates Done.
	Skipped bool `json:"-" yaml:"-"`

	// Status is the step's current/terminal status. It is mutated only by
	// the step's owning Runner, never read concurrently with a write.
	Status Status `json:"-" yaml:"-"`

	// CapturedOutputs holds every name/value pair the step emitted via the
	// output-data sentinel protocol on stdout.
	CapturedOutputs map[string]string `json:"-" yaml:"-"`

	// Logger receives per-line and lifecycle logging for this step. If nil,
	// Run falls back to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`

	loaded bool
}

// New constructs a Step in the Init state. It does not check the
// exactly-one-of command/commandId invariant; Validate does.
func New(id string) *Step {
	return &Step{ID: id, Status: StatusInit, CapturedOutputs: make(map[string]string)}
}

// Validate checks the exactly-one-of(command, commandId) invariant. Callers
// (the loader) invoke this right after decoding a step.
func (s *Step) Validate() error {
	hasCommand := s.Command != ""
	hasCommandID := s.CommandID != ""
	if hasCommand == hasCommandID {
		s.Status = StatusError
		return orcerr.New(orcerr.KindIllegalStepShape, s.ID, "a step requires exactly one of command or commandId")
	}
	if hasCommand {
		s.loaded = true
	}
	return nil
}

// ResolveTemplate resolves s.CommandID against lib, copying the template's
// command, prepending its arguments before the step's own, unioning
// environments (step wins on collisions), and inheriting UseSystemEnvironment
// (OR) and Description if unset. A no-op if s already carries a literal
// command or has already been resolved.
func (s *Step) ResolveTemplate(lib *template.Library) error {
	if s.CommandID == "" || s.loaded {
		return nil
	}
	tpl := lib.FindByName(s.CommandID)
	if tpl == nil {
		s.Status = StatusError
		return orcerr.New(orcerr.KindUnknownTemplate, s.ID, s.CommandID)
	}

	s.Command = tpl.Command
	s.Arguments = append(append([]string(nil), tpl.Arguments...), s.Arguments...)

	if s.Environment == nil {
		s.Environment = make(map[string]*env.Var)
	}
	for name, tplVar := range tpl.Environment {
		if existing, ok := s.Environment[name]; ok {
			existing.Join(tplVar)
		} else {
			s.Environment[name] = tplVar.Clone()
		}
	}
	s.UseSystemEnvironment = s.UseSystemEnvironment || tpl.UseSystemEnvironment
	if s.Description == "" {
		s.Description = tpl.Description
	}
	s.loaded = true
	return nil
}

// CheckEnv collects every required environment variable with no effective
// value, keyed by name with its description, for the loader's
// missing-environment aggregation. Optional variables are never reported:
// an unresolved one is simply omitted from the child environment. A
// skipped step has no requirements.
func (s *Step) CheckEnv() map[string]string {
	missing := make(map[string]string)
	if s.Skipped {
		return missing
	}
	for name, v := range s.Environment {
		if v.Optional {
			continue
		}
		if _, ok := v.EffectiveValue(); !ok {
			missing[name] = v.Description
		}
	}
	return missing
}

func (s *Step) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
