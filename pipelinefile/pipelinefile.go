// Package pipelinefile decodes, schema-validates, and instantiates a
// pipeline file (JSON or YAML) into a set of executable steps, resolving
// template references as it goes.
package pipelinefile

import (
	"github.com/cosmotech/csm-orc/env"
	"github.com/cosmotech/csm-orc/step"
	"github.com/cosmotech/csm-orc/template"
)

// rawEnvSpec, rawInputSpec, rawOutputSpec, rawCommandTemplate, and rawStep
// mirror the pipeline file's JSON/YAML shape with explicit field
// enumeration. Decoding into them ignores unknown fields; the schema
// validation that runs right after decoding rejects them, before any step
// is constructed.
type rawFile struct {
	CommandTemplates []rawCommandTemplate `json:"commandTemplates" yaml:"commandTemplates"`
	Steps            []rawStep            `json:"steps" yaml:"steps"`
}

type rawCommandTemplate struct {
	ID                   string                `json:"id" yaml:"id"`
	Command              string                `json:"command" yaml:"command"`
	Arguments            []string              `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Environment          map[string]rawEnvSpec `json:"environment,omitempty" yaml:"environment,omitempty"`
	Description          string                `json:"description,omitempty" yaml:"description,omitempty"`
	UseSystemEnvironment bool                  `json:"useSystemEnvironment,omitempty" yaml:"useSystemEnvironment,omitempty"`
}

type rawStep struct {
	ID                   string                   `json:"id" yaml:"id"`
	Command              string                   `json:"command,omitempty" yaml:"command,omitempty"`
	CommandID            string                   `json:"commandId,omitempty" yaml:"commandId,omitempty"`
	Arguments            []string                 `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Environment          map[string]rawEnvSpec    `json:"environment,omitempty" yaml:"environment,omitempty"`
	Precedents           []string                 `json:"precedents,omitempty" yaml:"precedents,omitempty"`
	Inputs               map[string]rawInputSpec  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs              map[string]rawOutputSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Description          string                   `json:"description,omitempty" yaml:"description,omitempty"`
	UseSystemEnvironment bool                     `json:"useSystemEnvironment,omitempty" yaml:"useSystemEnvironment,omitempty"`
}

type rawEnvSpec struct {
	Value        string `json:"value,omitempty" yaml:"value,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Optional     bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

type rawInputSpec struct {
	As           string `json:"as" yaml:"as"`
	StepID       string `json:"stepId" yaml:"stepId"`
	Output       string `json:"output" yaml:"output"`
	Optional     bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

type rawOutputSpec struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (r rawEnvSpec) toVar(name string) *env.Var {
	return &env.Var{
		Name:         name,
		Value:        r.Value,
		DefaultValue: r.DefaultValue,
		Description:  r.Description,
		Optional:     r.Optional,
	}
}

func rawEnvironment(m map[string]rawEnvSpec) map[string]*env.Var {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*env.Var, len(m))
	for name, spec := range m {
		out[name] = spec.toVar(name)
	}
	return out
}

func (r rawCommandTemplate) toTemplate() *template.Template {
	return &template.Template{
		ID:                   r.ID,
		Command:              r.Command,
		Arguments:            append([]string(nil), r.Arguments...),
		Environment:          rawEnvironment(r.Environment),
		Description:          r.Description,
		UseSystemEnvironment: r.UseSystemEnvironment,
	}
}

func (r rawStep) toStep() *step.Step {
	s := step.New(r.ID)
	s.Command = r.Command
	s.CommandID = r.CommandID
	s.Arguments = append([]string(nil), r.Arguments...)
	s.Environment = rawEnvironment(r.Environment)
	s.Precedents = append([]string(nil), r.Precedents...)
	s.Description = r.Description
	s.UseSystemEnvironment = r.UseSystemEnvironment

	if len(r.Inputs) > 0 {
		s.Inputs = make(map[string]*step.InputSpec, len(r.Inputs))
		for name, in := range r.Inputs {
			s.Inputs[name] = &step.InputSpec{
				As:           in.As,
				StepID:       in.StepID,
				Output:       in.Output,
				Optional:     in.Optional,
				DefaultValue: in.DefaultValue,
			}
		}
	}
	if len(r.Outputs) > 0 {
		s.Outputs = make(map[string]*step.OutputSpec, len(r.Outputs))
		for name, out := range r.Outputs {
			s.Outputs[name] = &step.OutputSpec{Description: out.Description}
		}
	}
	return s
}

// Result is the outcome of a successful Load: every step keyed by id, in
// the order they appeared in the pipeline file, plus the union of
// required/optional environment descriptions and a representative merged
// Var per name (for DisplayEnvironment/GenerateEnvFile).
type Result struct {
	Steps    map[string]*step.Step
	StepIDs  []string // original declaration order
	EnvDescr map[string][]string
	EnvVars  map[string]*env.Var
}

func newResult() *Result {
	return &Result{
		Steps:    make(map[string]*step.Step),
		EnvDescr: make(map[string][]string),
		EnvVars:  make(map[string]*env.Var),
	}
}
