package template

import "testing"

func TestFindByName_Unknown(t *testing.T) {
	l := New()
	if l.FindByName("nope") != nil {
		t.Error("FindByName() on empty library should return nil")
	}
}

func TestAddTemplate_NoOverrideByDefault(t *testing.T) {
	l := New()
	first := &Template{ID: "t", Command: "echo first"}
	second := &Template{ID: "t", Command: "echo second"}

	l.AddTemplate(first, false)
	l.AddTemplate(second, false)

	if got := l.FindByName("t"); got.Command != "echo first" {
		t.Errorf("AddTemplate() without override replaced entry: got %q", got.Command)
	}

	l.AddTemplate(second, true)
	if got := l.FindByName("t"); got.Command != "echo second" {
		t.Errorf("AddTemplate() with override = %q, want %q", got.Command, "echo second")
	}
}

func TestTemplates_SortedByPluginThenID(t *testing.T) {
	l := New()
	l.LoadPlugin(&Plugin{Name: "b-plugin", Templates: map[string]*Template{
		"z": {ID: "z", Command: "echo z", SourcePlugin: "b-plugin"},
		"a": {ID: "a", Command: "echo a", SourcePlugin: "b-plugin"},
	}})
	l.LoadPlugin(&Plugin{Name: "a-plugin", Templates: map[string]*Template{
		"m": {ID: "m", Command: "echo m", SourcePlugin: "a-plugin"},
	}})

	got := l.Templates()
	want := []string{"m", "a", "z"}
	if len(got) != len(want) {
		t.Fatalf("Templates() returned %d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Templates()[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestListExitCommands_RegistrationOrder(t *testing.T) {
	l := New()
	l.LoadPlugin(&Plugin{Name: "a", Templates: map[string]*Template{}, ExitHandlers: []string{"a.first.exit", "a.second.exit"}})
	l.LoadPlugin(&Plugin{Name: "b", Templates: map[string]*Template{}, ExitHandlers: []string{"b.only.exit"}})

	got := l.ListExitCommands()
	want := []string{"a.first.exit", "a.second.exit", "b.only.exit"}
	if len(got) != len(want) {
		t.Fatalf("ListExitCommands() = %v, want %v", got, want)
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("ListExitCommands()[%d] = %q, want %q", i, got[i], id)
		}
	}
}

func TestReload_MissingRootIsEmpty(t *testing.T) {
	l := New()
	l.Reload("/nonexistent/path/for/test", nil)
	if len(l.Templates()) != 0 {
		t.Error("Reload() on missing root should leave the library empty")
	}
}
