package step

import (
	"testing"

	"github.com/cosmotech/csm-orc/env"
	"github.com/cosmotech/csm-orc/orcerr"
	"github.com/cosmotech/csm-orc/template"
)

func TestValidate_ExactlyOneOfCommandOrCommandID(t *testing.T) {
	cases := []struct {
		name    string
		s       *Step
		wantErr bool
	}{
		{"command only", &Step{ID: "s", Command: "echo hi"}, false},
		{"commandId only", &Step{ID: "s", CommandID: "tpl"}, false},
		{"neither", &Step{ID: "s"}, true},
		{"both", &Step{ID: "s", Command: "echo hi", CommandID: "tpl"}, true},
	}
	for _, c := range cases {
		err := c.s.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestResolveTemplate_MergesCommandArgsEnv(t *testing.T) {
	lib := template.New()
	tplVar := env.New("FOO")
	tplVar.DefaultValue = "tpl-default"
	lib.AddTemplate(&template.Template{
		ID:          "greet",
		Command:     "echo",
		Arguments:   []string{"hello"},
		Environment: map[string]*env.Var{"FOO": tplVar},
		Description: "greets",
	}, false)

	s := New("step1")
	s.CommandID = "greet"
	s.Arguments = []string{"world"}

	if err := s.ResolveTemplate(lib); err != nil {
		t.Fatalf("ResolveTemplate() error = %v", err)
	}
	if s.Command != "echo" {
		t.Errorf("Command = %q, want %q", s.Command, "echo")
	}
	if len(s.Arguments) != 2 || s.Arguments[0] != "hello" || s.Arguments[1] != "world" {
		t.Errorf("Arguments = %v, want [hello world] (template args prepended)", s.Arguments)
	}
	if s.Environment["FOO"].DefaultValue != "tpl-default" {
		t.Errorf("Environment[FOO].DefaultValue = %q, want %q", s.Environment["FOO"].DefaultValue, "tpl-default")
	}
	if s.Description != "greets" {
		t.Errorf("Description = %q, want inherited %q", s.Description, "greets")
	}
}

func TestResolveTemplate_UnknownTemplate(t *testing.T) {
	lib := template.New()
	s := New("step1")
	s.CommandID = "nope"

	err := s.ResolveTemplate(lib)
	if err == nil {
		t.Fatal("ResolveTemplate() error = nil, want UnknownTemplate")
	}
	if !orcerr.IsKind(err, orcerr.KindUnknownTemplate) {
		t.Errorf("ResolveTemplate() error kind mismatch: %v", err)
	}
}

func TestResolveTemplate_NoOpWithLiteralCommand(t *testing.T) {
	lib := template.New()
	s := New("step1")
	s.Command = "echo literal"
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := s.ResolveTemplate(lib); err != nil {
		t.Fatalf("ResolveTemplate() error = %v", err)
	}
	if s.Command != "echo literal" {
		t.Errorf("Command mutated to %q", s.Command)
	}
}

func TestCheckEnv_SkippedStepHasNoRequirements(t *testing.T) {
	s := New("step1")
	s.Skipped = true
	s.Environment = map[string]*env.Var{"REQUIRED": env.New("REQUIRED")}
	if missing := s.CheckEnv(); len(missing) != 0 {
		t.Errorf("CheckEnv() on skipped step = %v, want empty", missing)
	}
}

func TestCheckEnv_OptionalNeverReported(t *testing.T) {
	s := New("step1")
	v := env.New("OPT")
	v.Optional = true
	s.Environment = map[string]*env.Var{"OPT": v}
	if missing := s.CheckEnv(); len(missing) != 0 {
		t.Errorf("CheckEnv() = %v, want empty for an unresolved optional var", missing)
	}
}

func TestCheckEnv_ReportsMissingRequired(t *testing.T) {
	s := New("step1")
	v := env.New("REQUIRED")
	v.Description = "must be set"
	s.Environment = map[string]*env.Var{"REQUIRED": v}

	missing := s.CheckEnv()
	if descr, ok := missing["REQUIRED"]; !ok || descr != "must be set" {
		t.Errorf("CheckEnv() = %v, want REQUIRED: must be set", missing)
	}
}
