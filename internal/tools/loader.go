package tools

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

// manifest is one YAML file holding custom action definitions.
type manifest struct {
	Actions []CustomActionDef `yaml:"actions"`
}

// Loader reads custom action manifests from a directory and registers them.
// It tracks its own registrations so a reload can swap them atomically.
type Loader struct {
	dir string
	mgr *browser.Manager

	mu     sync.Mutex
	loaded map[string]bool
}

// NewLoader creates a loader for *.yaml / *.yml manifests under dir.
func NewLoader(dir string, mgr *browser.Manager) *Loader {
	return &Loader{dir: dir, mgr: mgr, loaded: make(map[string]bool)}
}

// Load parses every manifest in the directory and registers its actions.
// A broken manifest or definition is logged and skipped; names colliding
// with built-in actions are skipped.
func (l *Loader) Load(reg *Registry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read actions dir: %w", err)
	}

	registered := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, e.Name())
		defs, err := l.parseManifest(path)
		if err != nil {
			slog.Warn("custom_actions: skipping manifest", "file", e.Name(), "error", err)
			continue
		}

		for _, def := range defs {
			if _, exists := reg.Get(def.Name); exists && !l.loaded[def.Name] {
				slog.Warn("custom_actions: skipping action (name collision with built-in)",
					"action", def.Name, "file", e.Name())
				continue
			}
			action, err := NewCustomAction(def, l.mgr)
			if err != nil {
				slog.Warn("custom_actions: skipping action", "action", def.Name, "error", err)
				continue
			}
			reg.Unregister(def.Name)
			if err := reg.Register(action); err != nil {
				slog.Warn("custom_actions: register failed", "action", def.Name, "error", err)
				continue
			}
			l.loaded[def.Name] = true
			registered++
		}
	}

	if registered > 0 {
		slog.Info("custom_actions: loaded", "count", registered, "dir", l.dir)
	}
	return nil
}

// Reload drops all previously loaded custom actions and re-reads the
// directory. Used by the config hot-reload watcher.
func (l *Loader) Reload(reg *Registry) {
	l.mu.Lock()
	for name := range l.loaded {
		reg.Unregister(name)
	}
	l.loaded = make(map[string]bool)
	l.mu.Unlock()

	if err := l.Load(reg); err != nil {
		slog.Warn("custom_actions: reload failed", "error", err)
	}
}

func (l *Loader) parseManifest(path string) ([]CustomActionDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return m.Actions, nil
}
