// Package plugins discovers user-supplied tool plugins. A plugin is a Go
// shared object built with -buildmode=plugin that exports
//
//	func New() plugins.Plugin
//
// The returned descriptor declares its capabilities explicitly; nothing
// else in the object file is inspected. Files whose names start with "_"
// are skipped, and a plugin that fails to load is logged and ignored so
// one bad file cannot take the application down.
package plugins

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"geode/tools"
)

// Plugin is the capability descriptor every plugin must return from its
// exported New function.
type Plugin interface {
	Name() string
	Description() string
	Tools() []*tools.Tool
}

// EntrySymbol is the exported symbol looked up in each shared object.
const EntrySymbol = "New"

// Manager owns the set of loaded plugins. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	dir     string
	plugins map[string]Plugin
	order   []string
}

func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		plugins: make(map[string]Plugin),
	}
}

// LoadAll scans the plugin directory non-recursively for *.so files and
// registers every plugin that loads cleanly. Returns the number of
// plugins registered by this call. A missing directory is not an error.
func (m *Manager) LoadAll() int {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("plugin directory does not exist, skipping discovery", "dir", m.dir)
		} else {
			slog.Error("could not read plugin directory", "dir", m.dir, "error", err)
		}
		return 0
	}

	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".so") {
			continue
		}
		if strings.HasPrefix(name, "_") {
			slog.Debug("skipping underscore-prefixed plugin file", "file", name)
			continue
		}

		p, err := load(filepath.Join(m.dir, name))
		if err != nil {
			slog.Error("failed to load plugin", "file", name, "error", err)
			continue
		}
		if err := m.Register(p); err != nil {
			slog.Warn("plugin rejected", "file", name, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("plugin discovery complete", "dir", m.dir, "loaded", loaded)
	return loaded
}

func load(path string) (Plugin, error) {
	obj, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open shared object: %w", err)
	}

	sym, err := obj.Lookup(EntrySymbol)
	if err != nil {
		return nil, fmt.Errorf("missing %s symbol: %w", EntrySymbol, err)
	}

	factory, ok := sym.(func() Plugin)
	if !ok {
		return nil, fmt.Errorf("%s has wrong type %T, want func() plugins.Plugin", EntrySymbol, sym)
	}

	p := factory()
	if p == nil {
		return nil, fmt.Errorf("%s returned nil", EntrySymbol)
	}
	return p, nil
}

// Register adds a plugin directly, bypassing file discovery. Used for
// in-process plugins and by LoadAll. Duplicate plugin names are rejected;
// the first registrant keeps its tools.
func (m *Manager) Register(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin has an empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin %q is already registered", name)
	}
	m.plugins[name] = p
	m.order = append(m.order, name)
	slog.Info("registered plugin", "name", name, "tools", len(p.Tools()))
	return nil
}

// Reload drops every loaded plugin and rescans the directory.
func (m *Manager) Reload() int {
	m.mu.Lock()
	m.plugins = make(map[string]Plugin)
	m.order = nil
	m.mu.Unlock()
	return m.LoadAll()
}

// AllTools returns the tools of every loaded plugin in registration
// order. The slice is a copy.
func (m *Manager) AllTools() []*tools.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*tools.Tool
	for _, name := range m.order {
		all = append(all, m.plugins[name].Tools()...)
	}
	return all
}

// Descriptions maps plugin name to its self-description.
func (m *Manager) Descriptions() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	desc := make(map[string]string, len(m.plugins))
	for name, p := range m.plugins {
		desc[name] = p.Description()
	}
	return desc
}

func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[name]
	return ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}
