package capability

import (
	"context"
	"sort"
	"sync"
)

// Func is a single host operation reachable from guest code. Arguments arrive
// as a JSON-decoded map; the return value is JSON-encoded back to the guest.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry holds the closed set of host operations exposed to guest code.
// Nothing outside this set is reachable from inside an isolate.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
