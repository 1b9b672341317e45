package apistore

import (
	"sort"
	"strconv"
	"sync"
)

// Registry hands out named stores. Constructing a store under an existing
// name returns the existing instance. Create one Registry at startup and
// pass it to the code that needs stores.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	next   int
	opts   []Option
}

// NewRegistry returns an empty registry. opts are applied to every store it
// creates, before the per-call options.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		stores: make(map[string]*Store),
		opts:   opts,
	}
}

// Store returns the store registered under name, creating it with opts when
// absent. opts are ignored for an existing store.
func (r *Registry) Store(name string, opts ...Option) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	return r.createLocked(name, opts)
}

// NewStore creates a store under the next free generated name: store-0,
// store-1, and so on.
func (r *Registry) NewStore(opts ...Option) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		name := "store-" + strconv.Itoa(r.next)
		r.next++
		if _, taken := r.stores[name]; !taken {
			return r.createLocked(name, opts)
		}
	}
}

func (r *Registry) createLocked(name string, opts []Option) *Store {
	all := make([]Option, 0, len(r.opts)+len(opts)+1)
	all = append(all, r.opts...)
	all = append(all, opts...)
	all = append(all, WithName(name))
	s := New(all...)
	r.stores[name] = s
	return s
}

// Lookup returns the store registered under name.
func (r *Registry) Lookup(name string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	return s, ok
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.stores))
	for name := range r.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Remove forgets the store registered under name. The store itself keeps
// working for holders of the pointer.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}
