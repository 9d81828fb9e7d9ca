package template

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterTemplate_MalformedSkipped(t *testing.T) {
	p := NewPlugin("test")
	if _, ok := p.RegisterTemplate(map[string]any{"command": "echo hi"}); ok {
		t.Error("RegisterTemplate() with no id should be rejected")
	}
	if len(p.Templates) != 0 {
		t.Errorf("Templates = %d entries, want 0", len(p.Templates))
	}
}

func TestRegisterExitHandler_Roster(t *testing.T) {
	p := NewPlugin("test")
	if _, ok := p.RegisterExitHandler(map[string]any{"id": "cleanup", "command": "echo bye"}); !ok {
		t.Fatal("RegisterExitHandler() failed on well-formed template")
	}
	if len(p.ExitHandlers) != 1 || p.ExitHandlers[0] != "cleanup" {
		t.Errorf("ExitHandlers = %v, want [cleanup]", p.ExitHandlers)
	}
	tpl := p.Templates["cleanup"]
	if tpl.SourcePlugin != "test" || !tpl.IsExitHandler {
		t.Errorf("template not stamped correctly: %+v", tpl)
	}
}

func TestRegisterTemplate_OrdinaryIsNotExitHandler(t *testing.T) {
	p := NewPlugin("test")
	if _, ok := p.RegisterTemplate(map[string]any{"id": "greet", "command": "echo hi"}); !ok {
		t.Fatal("RegisterTemplate() failed on well-formed template")
	}
	if len(p.ExitHandlers) != 0 {
		t.Errorf("ExitHandlers = %v, want empty for an ordinary template", p.ExitHandlers)
	}
	if p.Templates["greet"].IsExitHandler {
		t.Error("ordinary template incorrectly marked IsExitHandler")
	}
}

func TestLoadFolder_ArrayAndSingleShapes(t *testing.T) {
	dir := t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	if err := os.MkdirAll(templatesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	arrayDoc := `{"commandTemplates":[{"id":"a","command":"echo a"},{"id":"b","command":"echo b"}]}`
	if err := os.WriteFile(filepath.Join(templatesDir, "bundle.json"), []byte(arrayDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	singleDoc := `{"id":"c","command":"echo c"}`
	if err := os.WriteFile(filepath.Join(templatesDir, "single.json"), []byte(singleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	malformedDoc := `not json`
	if err := os.WriteFile(filepath.Join(templatesDir, "broken.json"), []byte(malformedDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPlugin("mine")
	n := p.LoadFolder(dir, nil)
	if n != 3 {
		t.Errorf("LoadFolder() registered %d templates, want 3", n)
	}
	for _, id := range []string{"a", "b", "c"} {
		if p.Templates[id] == nil {
			t.Errorf("missing template %q", id)
		}
	}
}

// LoadFolder additionally treats templates/on_exit/*.json as the
// exit-handler roster.
func TestLoadFolder_OnExitSubdirectoryIsExitHandlerRoster(t *testing.T) {
	dir := t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	onExitDir := filepath.Join(templatesDir, "on_exit")
	if err := os.MkdirAll(onExitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ordinaryDoc := `{"id":"template1","command":"echo"}`
	if err := os.WriteFile(filepath.Join(templatesDir, "template1.json"), []byte(ordinaryDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	exitDoc := `{"id":"exit_handler","command":"cleanup"}`
	if err := os.WriteFile(filepath.Join(onExitDir, "exit_handler.json"), []byte(exitDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPlugin("mine")
	n := p.LoadFolder(dir, nil)
	if n != 2 {
		t.Fatalf("LoadFolder() registered %d templates, want 2", n)
	}
	if len(p.ExitHandlers) != 1 || p.ExitHandlers[0] != "exit_handler" {
		t.Errorf("ExitHandlers = %v, want [exit_handler]", p.ExitHandlers)
	}
	if p.Templates["template1"].IsExitHandler {
		t.Error("template1 incorrectly marked as an exit handler")
	}
	if !p.Templates["exit_handler"].IsExitHandler {
		t.Error("exit_handler not marked as an exit handler")
	}
}

func TestLoadFolder_MissingDirIsEmpty(t *testing.T) {
	p := NewPlugin("mine")
	n := p.LoadFolder(filepath.Join(t.TempDir(), "nope"), nil)
	if n != 0 {
		t.Errorf("LoadFolder() on missing dir = %d, want 0", n)
	}
}
