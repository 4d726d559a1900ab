package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/scriptkit/errors"
)

// EntryFunc is a script entry point.
type EntryFunc func(ctx context.Context, rt *Runtime, arg string) error

// Module is a loadable script. Default takes precedence over Main.
type Module struct {
	Name    string
	Default EntryFunc
	Main    EntryFunc
}

// entry returns the function Run invokes, or nil when the module has none.
func (m *Module) entry() (EntryFunc, string) {
	if m.Default != nil {
		return m.Default, "default"
	}
	if m.Main != nil {
		return m.Main, "main"
	}
	return nil, ""
}

// Registry maps module names to modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds m. Registering the same name twice is an error.
func (r *Registry) Register(m *Module) error {
	if m == nil || m.Name == "" {
		return errors.InvalidConfig("module name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name]; exists {
		return errors.InvalidConfig(fmt.Sprintf("module %q already registered", m.Name))
	}
	r.modules[m.Name] = m
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(m *Module) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names lists the registered module names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
