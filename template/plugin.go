package template

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cosmotech/csm-orc/env"
)

// Plugin is a filesystem-discovered bundle of templates contributed under
// one name.
type Plugin struct {
	Name         string
	Templates    map[string]*Template
	ExitHandlers []string // template ids, in registration order
}

// NewPlugin creates an empty Plugin named name.
func NewPlugin(name string) *Plugin {
	return &Plugin{
		Name:      name,
		Templates: make(map[string]*Template),
	}
}

// exitHandlerDirName is the templates/ subdirectory whose contents are
// additionally registered in the exit-handler roster. The convention is
// directory placement, not an id-naming pattern.
const exitHandlerDirName = "on_exit"

// register stamps t with this plugin's name and records it in Templates,
// appending it to the exit-handler roster when isExitHandler is set (i.e.
// the file it came from lived under the on_exit subdirectory).
func (p *Plugin) register(t *Template, isExitHandler bool) {
	t.SourcePlugin = p.Name
	t.IsExitHandler = isExitHandler
	p.Templates[t.ID] = t
	if isExitHandler {
		p.ExitHandlers = append(p.ExitHandlers, t.ID)
	}
}

// RegisterTemplate validates and registers a single ordinary (non-exit)
// template described as a raw map (the shape produced by decoding one JSON
// object). It returns false without error if the map does not carry a
// usable id/command pair — malformed entries are skipped, not fatal.
func (p *Plugin) RegisterTemplate(raw map[string]any) (*Template, bool) {
	return p.registerRaw(raw, false)
}

// RegisterExitHandler is RegisterTemplate's exit-handler counterpart: the
// registered template is additionally recorded in the exit-handler roster.
func (p *Plugin) RegisterExitHandler(raw map[string]any) (*Template, bool) {
	return p.registerRaw(raw, true)
}

func (p *Plugin) registerRaw(raw map[string]any, isExitHandler bool) (*Template, bool) {
	t, ok := decodeTemplate(raw)
	if !ok {
		return nil, false
	}
	p.register(t, isExitHandler)
	return t, true
}

// templateFile is the on-disk shape of a single plugin template file: either
// one template object, or a commandTemplates array of them.
type templateFile struct {
	CommandTemplates []map[string]any `json:"commandTemplates"`
}

// LoadFolder scans pluginDir/templates/*.json for ordinary templates and
// pluginDir/templates/on_exit/*.json for exit handlers, registering every
// well-formed template found under either. Malformed files and entries are
// logged and skipped, never fatal.
func (p *Plugin) LoadFolder(pluginDir string, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	count := 0
	count += p.loadGlob(filepath.Join(pluginDir, "templates", "*.json"), false, logger)
	count += p.loadGlob(filepath.Join(pluginDir, "templates", exitHandlerDirName, "*.json"), true, logger)
	return count
}

func (p *Plugin) loadGlob(pattern string, isExitHandler bool, logger *slog.Logger) int {
	count := 0
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logger.Warn("plugin template glob failed", "plugin", p.Name, "pattern", pattern, "error", err)
		return 0
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("could not read plugin template file", "path", path, "error", err)
			continue
		}

		var asArray templateFile
		if err := json.Unmarshal(data, &asArray); err == nil && len(asArray.CommandTemplates) > 0 {
			for _, raw := range asArray.CommandTemplates {
				if _, ok := p.registerRaw(raw, isExitHandler); ok {
					count++
				} else {
					logger.Warn("skipping malformed template entry", "path", path)
				}
			}
			continue
		}

		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			logger.Warn("skipping malformed plugin template file", "path", path, "error", err)
			continue
		}
		if _, ok := p.registerRaw(single, isExitHandler); ok {
			count++
		} else {
			logger.Warn("skipping malformed template entry", "path", path)
		}
	}
	return count
}

// decodeTemplate builds a *Template from a raw decoded JSON object with
// explicit field enumeration. A missing id or command is the only hard
// failure.
func decodeTemplate(raw map[string]any) (*Template, bool) {
	id, _ := raw["id"].(string)
	command, _ := raw["command"].(string)
	if id == "" || command == "" {
		return nil, false
	}
	t := &Template{ID: id, Command: command}
	if argsRaw, ok := raw["arguments"].([]any); ok {
		for _, a := range argsRaw {
			if s, ok := a.(string); ok {
				t.Arguments = append(t.Arguments, s)
			}
		}
	}
	if desc, ok := raw["description"].(string); ok {
		t.Description = desc
	}
	if use, ok := raw["useSystemEnvironment"].(bool); ok {
		t.UseSystemEnvironment = use
	}
	if envRaw, ok := raw["environment"].(map[string]any); ok {
		t.Environment = env.DecodeMap(envRaw)
	}
	return t, true
}
