// Package template provides the process-wide registry of reusable command
// templates that steps resolve against during pipeline loading.
package template

import "github.com/cosmotech/csm-orc/env"

// Template is an immutable (after registration) reusable command prototype.
type Template struct {
	ID                   string              `json:"id" yaml:"id"`
	Command              string              `json:"command" yaml:"command"`
	Arguments            []string            `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Environment          map[string]*env.Var `json:"environment,omitempty" yaml:"environment,omitempty"`
	Description          string              `json:"description,omitempty" yaml:"description,omitempty"`
	UseSystemEnvironment bool                `json:"useSystemEnvironment,omitempty" yaml:"useSystemEnvironment,omitempty"`

	// SourcePlugin names the Plugin this template was registered under, or
	// the pipeline file path for an inline template. Used for the stable
	// ordering of Library.Templates.
	SourcePlugin string `json:"-" yaml:"-"`

	// IsExitHandler records whether this template was registered from the
	// plugin's exit-handler subdirectory (see Plugin.LoadFolder).
	IsExitHandler bool `json:"-" yaml:"-"`
}

// Clone returns a deep-enough copy of t suitable for a Step to adapt without
// mutating the registered original (environment map entries are copied by
// value since env.Var.Join mutates in place).
func (t *Template) Clone() *Template {
	c := *t
	c.Arguments = append([]string(nil), t.Arguments...)
	c.Environment = make(map[string]*env.Var, len(t.Environment))
	for k, v := range t.Environment {
		c.Environment[k] = v.Clone()
	}
	return &c
}
