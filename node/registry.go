package node

import (
	"sort"
	"sync"
)

// Factory constructs a fresh Handler instance for one node in a graph.
// Each node gets its own instance, so handlers may keep per-node state.
type Factory func() Handler

// Registry maps implementation names from the topology document to
// handler factories. Resolution happens once at graph-build time; there is
// no runtime reflection.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a handler factory under an implementation name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates a handler by implementation name.
func (r *Registry) New(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// List returns sorted names of all registered implementations.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
