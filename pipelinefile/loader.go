package pipelinefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/cosmotech/csm-orc/orcerr"
	"github.com/cosmotech/csm-orc/step"
	"github.com/cosmotech/csm-orc/template"
)

// Options controls how Load behaves beyond straightforward decode-and-wire.
type Options struct {
	// SkippedSteps marks these step ids as caller-skipped.
	SkippedSteps []string
	// DisplayEnv, when true, causes Load to populate Result.EnvDescr with
	// every declared environment variable (grouped by name) instead of
	// failing on missing required environment.
	DisplayEnv bool
	// IgnoreErrors suppresses the MissingEnvironment failure even when
	// DisplayEnv is false.
	IgnoreErrors bool
}

// Load reads, schema-validates, and instantiates the JSON pipeline file at
// path against lib: inline commandTemplates are resolved through a
// load-local overlay of lib (lib itself is never mutated), steps are
// constructed and checked (duplicate ids, precedent existence, cycles,
// input bindings), and the missing-environment aggregation runs last.
func Load(path string, lib *template.Library, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file %q: %w", path, err)
	}
	return load(path, data, decodeJSON, opts, lib)
}

// LoadYAML reads, schema-validates, and instantiates a YAML-encoded pipeline
// file. It decodes the YAML into the same raw structs as Load, then
// round-trips through JSON for schema validation so both encodings are
// validated against the identical JSON Schema document.
func LoadYAML(path string, lib *template.Library, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file %q: %w", path, err)
	}
	return load(path, data, decodeYAML, opts, lib)
}

func decodeJSON(data []byte, raw *rawFile) (any, error) {
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return instance, nil
}

func decodeYAML(data []byte, raw *rawFile) (any, error) {
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// Round-trip through JSON so the same schema (drafted against JSON
	// types) validates a YAML document identically.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("normalizing YAML to JSON: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("normalizing YAML to JSON: %w", err)
	}
	return instance, nil
}

func load(path string, data []byte, decode func([]byte, *rawFile) (any, error), opts Options, lib *template.Library) (*Result, error) {
	var raw rawFile
	instance, err := decode(data, &raw)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.KindSchemaInvalid, path, err)
	}

	if err := validateAgainstSchema(instance); err != nil {
		return nil, orcerr.Wrap(orcerr.KindSchemaInvalid, path, err)
	}

	skipped := make(map[string]bool, len(opts.SkippedSteps))
	for _, id := range opts.SkippedSteps {
		skipped[id] = true
	}

	result := newResult()

	// Inline commandTemplates are scoped to this load: steps resolve
	// against a local overlay of lib rather than mutating lib itself, so
	// loading the same file twice against one library (the process-wide
	// default included) never collides with templates an earlier load
	// registered.
	local := template.New()
	for _, tpl := range lib.Templates() {
		local.AddTemplate(tpl, false)
	}
	for _, rawTpl := range raw.CommandTemplates {
		if existing := local.FindByName(rawTpl.ID); existing != nil {
			return nil, orcerr.New(orcerr.KindDuplicateID, rawTpl.ID, "command template already registered")
		}
		tpl := rawTpl.toTemplate()
		tpl.SourcePlugin = path
		local.AddTemplate(tpl, false)
	}

	// Steps, with duplicate-id and skip bookkeeping.
	for _, rawS := range raw.Steps {
		if _, exists := result.Steps[rawS.ID]; exists {
			return nil, orcerr.New(orcerr.KindDuplicateID, rawS.ID, "step already defined")
		}
		s := rawS.toStep()
		if skipped[s.ID] {
			s.Skipped = true
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if err := s.ResolveTemplate(local); err != nil {
			return nil, err
		}
		result.Steps[s.ID] = s
		result.StepIDs = append(result.StepIDs, s.ID)
	}

	// Precedent existence.
	for _, s := range result.Steps {
		for _, precID := range s.Precedents {
			if _, ok := result.Steps[precID]; !ok {
				return nil, orcerr.New(orcerr.KindUnknownPrecedent, s.ID, precID)
			}
		}
	}

	// Reject cycles before any runner exists; a cyclic precedence graph
	// would otherwise deadlock the scheduler.
	if cyc := findCycle(result.Steps); cyc != "" {
		return nil, orcerr.New(orcerr.KindCycleDetected, cyc, "precedence graph contains a cycle")
	}

	// Input bindings: the precedent must exist, must be a declared
	// precedent of the consuming step, and must declare the referenced
	// output.
	for _, s := range result.Steps {
		for inputName, in := range s.Inputs {
			prec, ok := result.Steps[in.StepID]
			if !ok {
				return nil, orcerr.New(orcerr.KindUnknownPrecedent, s.ID, in.StepID)
			}
			if !isPrecedentOf(s, in.StepID) {
				return nil, orcerr.New(orcerr.KindUnknownPrecedent, s.ID,
					fmt.Sprintf("input %q references step %q which is not a declared precedent", inputName, in.StepID))
			}
			if _, ok := prec.Outputs[in.Output]; !ok {
				return nil, orcerr.New(orcerr.KindUnknownOutput, s.ID,
					fmt.Sprintf("input %q references output %q not declared by step %q", inputName, in.Output, in.StepID))
			}
		}
	}

	// Aggregate missing required env across all steps.
	missingEnv := make(map[string]string)
	for _, s := range result.Steps {
		for name, descr := range s.CheckEnv() {
			missingEnv[name] = descr
		}
	}

	// Optional env display.
	if opts.DisplayEnv {
		for _, s := range result.Steps {
			for name, v := range s.Environment {
				if v.Description != "" {
					result.EnvDescr[name] = appendUnique(result.EnvDescr[name], v.Description)
				} else if _, ok := result.EnvDescr[name]; !ok {
					result.EnvDescr[name] = nil
				}
				if existing, ok := result.EnvVars[name]; ok {
					existing.Join(v)
				} else {
					result.EnvVars[name] = v.Clone()
				}
			}
		}
		return result, nil
	}

	// Fail on missing required env unless told to ignore.
	if len(missingEnv) > 0 && !opts.IgnoreErrors {
		names := make([]string, 0, len(missingEnv))
		for name := range missingEnv {
			names = append(names, name)
		}
		sort.Strings(names)
		msg := "missing required environment variables: "
		for i, name := range names {
			if i > 0 {
				msg += ", "
			}
			msg += name
			if descr := missingEnv[name]; descr != "" {
				msg += " (" + descr + ")"
			}
		}
		return nil, orcerr.New(orcerr.KindMissingEnvironment, path, msg)
	}

	return result, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func isPrecedentOf(s *step.Step, candidate string) bool {
	for _, p := range s.Precedents {
		if p == candidate {
			return true
		}
	}
	return false
}

// findCycle runs a DFS with three-coloring over the precedence graph and
// returns the id of a step participating in a cycle, or "" if the graph is
// a DAG.
func findCycle(steps map[string]*step.Step) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, precID := range steps[id].Precedents {
			switch color[precID] {
			case gray:
				return precID
			case white:
				if found := visit(precID); found != "" {
					return found
				}
			}
		}
		color[id] = black
		return ""
	}

	for id := range steps {
		if color[id] == white {
			if found := visit(id); found != "" {
				return found
			}
		}
	}
	return ""
}
