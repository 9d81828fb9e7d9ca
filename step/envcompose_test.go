package step

import (
	"testing"

	"github.com/cosmotech/csm-orc/env"
	"github.com/cosmotech/csm-orc/orcerr"
)

func TestEffectiveEnv_OmitsOptionalUndefinedKeepsRequiredAsEmpty(t *testing.T) {
	s := New("s")
	optional := env.New("OPT")
	optional.Optional = true
	required := env.New("REQ")
	s.Environment = map[string]*env.Var{"OPT": optional, "REQ": required}

	out := s.EffectiveEnv()
	if _, ok := out["OPT"]; ok {
		t.Error("EffectiveEnv() should omit an undefined optional variable")
	}
	if v, ok := out["REQ"]; !ok || v != "" {
		t.Errorf("EffectiveEnv()[REQ] = (%q, %v), want (\"\", true) as the permissive fallback", v, ok)
	}
}

func TestEffectiveEnv_ExplicitValueWins(t *testing.T) {
	s := New("s")
	v := env.New("FOO")
	v.Value = "bar"
	s.Environment = map[string]*env.Var{"FOO": v}

	out := s.EffectiveEnv()
	if out["FOO"] != "bar" {
		t.Errorf("EffectiveEnv()[FOO] = %q, want %q", out["FOO"], "bar")
	}
}

func TestEffectiveEnv_PathAlwaysPresent(t *testing.T) {
	s := New("s")
	out := s.EffectiveEnv()
	if _, ok := out["PATH"]; !ok {
		t.Error("EffectiveEnv() should always carry PATH")
	}
}

func TestEffectiveEnv_UseSystemEnvironmentLayersUnder(t *testing.T) {
	t.Setenv("CSM_ORC_SYSTEM_TEST", "from-system")
	s := New("s")
	s.UseSystemEnvironment = true
	out := s.EffectiveEnv()
	if out["CSM_ORC_SYSTEM_TEST"] != "from-system" {
		t.Errorf("EffectiveEnv()[CSM_ORC_SYSTEM_TEST] = %q, want %q", out["CSM_ORC_SYSTEM_TEST"], "from-system")
	}
}

func TestBindInputs_ResolvesToDeclaredName(t *testing.T) {
	s := New("s")
	s.Inputs = map[string]*InputSpec{
		"result": {As: "INPUT_RESULT", StepID: "prev", Output: "out"},
	}
	dest := make(map[string]string)
	if err := s.BindInputs(map[string]string{"result": "42"}, dest); err != nil {
		t.Fatalf("BindInputs() error = %v", err)
	}
	if dest["INPUT_RESULT"] != "42" {
		t.Errorf("dest[INPUT_RESULT] = %q, want %q", dest["INPUT_RESULT"], "42")
	}
}

func TestBindInputs_DefaultValue(t *testing.T) {
	s := New("s")
	s.Inputs = map[string]*InputSpec{
		"result": {As: "INPUT_RESULT", StepID: "prev", Output: "out", DefaultValue: "fallback"},
	}
	dest := make(map[string]string)
	if err := s.BindInputs(map[string]string{}, dest); err != nil {
		t.Fatalf("BindInputs() error = %v", err)
	}
	if dest["INPUT_RESULT"] != "fallback" {
		t.Errorf("dest[INPUT_RESULT] = %q, want %q", dest["INPUT_RESULT"], "fallback")
	}
}

func TestBindInputs_OptionalUnboundSkipped(t *testing.T) {
	s := New("s")
	s.Inputs = map[string]*InputSpec{
		"result": {As: "INPUT_RESULT", StepID: "prev", Output: "out", Optional: true},
	}
	dest := make(map[string]string)
	if err := s.BindInputs(map[string]string{}, dest); err != nil {
		t.Fatalf("BindInputs() error = %v", err)
	}
	if _, ok := dest["INPUT_RESULT"]; ok {
		t.Error("BindInputs() should not set an optional unbound input")
	}
}

func TestBindInputs_MissingRequiredFails(t *testing.T) {
	s := New("s")
	s.Inputs = map[string]*InputSpec{
		"result": {As: "INPUT_RESULT", StepID: "prev", Output: "out"},
	}
	dest := make(map[string]string)
	err := s.BindInputs(map[string]string{}, dest)
	if err == nil {
		t.Fatal("BindInputs() error = nil, want MissingInput")
	}
	if !orcerr.IsKind(err, orcerr.KindMissingInput) {
		t.Errorf("BindInputs() error kind mismatch: %v", err)
	}
	if s.Status != StatusRunError {
		t.Errorf("Status = %v, want %v", s.Status, StatusRunError)
	}
}
