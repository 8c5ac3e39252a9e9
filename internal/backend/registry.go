// Package backend implements the CEL backend registry: a name-keyed map
// of event sinks, safe for concurrent register/unregister/iterate.
package backend

import (
	"fmt"
	"sync"

	"celengine/internal/event"
)

// Callback receives one fully-built event record. Panics inside a
// callback are recovered by ForEach and do not affect sibling backends
// or the current emission.
type Callback func(r *event.Record)

// Registry is a name -> Callback map with stable-snapshot iteration.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Callback
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Callback)}
}

// Register installs cb under name, replacing any prior entry with the
// same name. Returns an error if name is empty.
func (r *Registry) Register(name string, cb Callback) error {
	if name == "" {
		return fmt.Errorf("cel: backend name must not be empty")
	}
	if cb == nil {
		return fmt.Errorf("cel: backend %q: callback must not be nil", name)
	}
	r.mu.Lock()
	r.backends[name] = cb
	r.mu.Unlock()
	return nil
}

// Unregister removes name. Returns an error if name was not registered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("cel: backend %q is not registered", name)
	}
	delete(r.backends, name)
	return nil
}

// Names returns a stable snapshot of registered backend names. Order is
// unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	return names
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// ForEach invokes every registered backend with r. Iteration runs over a
// stable snapshot taken under the read lock and released before any
// callback runs, so a backend that registers/unregisters from within its
// own callback cannot deadlock. onInvoke, if non-nil, is called with each
// backend's name immediately before it runs, against the same snapshot
// being iterated -- this is the single place invocation counts should be
// taken from, never a separately fetched Names() list, so the count can
// never diverge from what ForEach actually iterated. A callback panic is
// recovered and does not prevent sibling callbacks from running, and
// does not abort the current emission; onPanic, if non-nil, is called
// with the backend name and recovered value for logging.
func (reg *Registry) ForEach(rec *event.Record, onInvoke func(name string), onPanic func(name string, recovered any)) {
	reg.mu.RLock()
	snapshot := make(map[string]Callback, len(reg.backends))
	for n, cb := range reg.backends {
		snapshot[n] = cb
	}
	reg.mu.RUnlock()

	for name, cb := range snapshot {
		if onInvoke != nil {
			onInvoke(name)
		}
		invoke(name, cb, rec, onPanic)
	}
}

func invoke(name string, cb Callback, rec *event.Record, onPanic func(name string, recovered any)) {
	defer func() {
		if p := recover(); p != nil && onPanic != nil {
			onPanic(name, p)
		}
	}()
	cb(rec)
}
