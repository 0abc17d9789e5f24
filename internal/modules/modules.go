package modules

import (
	"errors"
	"sort"
)

// Module is a loaded unit the orchestrator drives (a Lua script, or a fake
// in tests).
type Module interface {
	// Name returns a unique identifier for the module, its source path.
	Name() string
	// Active reports whether the module still wants events.
	Active() bool
	// Execute runs the module's top-level body.
	Execute()
	// InvokeEvent calls the named handler if the module defines one.
	InvokeEvent(name string)
	// Close releases the module.
	Close() error
}

// Registry owns loaded modules by name. It is not safe for concurrent use;
// only the polling loop touches it.
type Registry struct {
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Insert adds m unless a module with the same name is already present.
// It reports whether m was added.
func (r *Registry) Insert(m Module) bool {
	if _, ok := r.modules[m.Name()]; ok {
		return false
	}
	r.modules[m.Name()] = m
	return true
}

func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// Remove takes the module out of the registry without closing it.
func (r *Registry) Remove(name string) (Module, bool) {
	m, ok := r.modules[name]
	if ok {
		delete(r.modules, name)
	}
	return m, ok
}

// Names returns the registered names in iteration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.modules))
	for name := range r.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ForEach visits every module present when the call starts, once, in name
// order. Changes made to the registry by fn do not affect the pass.
func (r *Registry) ForEach(fn func(Module)) {
	for _, m := range r.All() {
		fn(m)
	}
}

// All returns the registered modules in iteration order.
func (r *Registry) All() []Module {
	names := r.Names()
	out := make([]Module, 0, len(names))
	for _, name := range names {
		out = append(out, r.modules[name])
	}
	return out
}

func (r *Registry) Len() int    { return len(r.modules) }
func (r *Registry) Empty() bool { return len(r.modules) == 0 }

// Clear closes and removes every module.
func (r *Registry) Clear() error {
	var errs []error
	r.ForEach(func(m Module) {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	r.modules = make(map[string]Module)
	return errors.Join(errs...)
}
