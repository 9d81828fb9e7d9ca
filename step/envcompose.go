package step

import (
	"fmt"
	"os"

	"github.com/cosmotech/csm-orc/orcerr"
)

// EffectiveEnv composes the {name: value} map passed to the child process:
//   - every declared variable resolves via its effective-value chain;
//     undefined optional variables are omitted, undefined required
//     variables fall back to an empty string (the loader's
//     missing-environment check fires first on any load that was not told
//     to ignore errors, so this permissive fallback is only reachable
//     after an IgnoreErrors load);
//   - PATH is always present, inherited from the process environment if the
//     step did not declare it;
//   - when UseSystemEnvironment is set, the process environment is used as
//     the base layer and the step's declared variables are layered on top.
func (s *Step) EffectiveEnv() map[string]string {
	out := make(map[string]string)

	if s.UseSystemEnvironment {
		for _, kv := range os.Environ() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					out[kv[:i]] = kv[i+1:]
					break
				}
			}
		}
	}

	for name, v := range s.Environment {
		value, ok := v.EffectiveValue()
		switch {
		case ok:
			out[name] = value
		case v.Optional:
			// omit entirely
		default:
			out[name] = ""
		}
	}

	if _, ok := out["PATH"]; !ok {
		if p, ok := os.LookupEnv("PATH"); ok {
			out["PATH"] = p
		}
	}

	return out
}

// BindInputs resolves every declared InputSpec against resolved, the map of
// predecessor output values keyed by input name (the same key used in
// s.Inputs), and assigns the resolved string into dest under the input's
// declared "as" env var name. A required input with no binding and no
// default fails with MissingInput.
func (s *Step) BindInputs(resolved map[string]string, dest map[string]string) error {
	for inputName, spec := range s.Inputs {
		value, ok := resolved[inputName]
		if !ok {
			if spec.DefaultValue != "" {
				value = spec.DefaultValue
			} else if spec.Optional {
				continue
			} else {
				s.Status = StatusRunError
				return orcerr.Wrap(orcerr.KindMissingInput, s.ID,
					fmt.Errorf("input %q (from step %q output %q) has no binding and no default", inputName, spec.StepID, spec.Output))
			}
		}
		dest[spec.As] = value
	}
	return nil
}
