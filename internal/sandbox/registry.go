package sandbox

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Registry guarantees at most one active provider handle per sandbox
// identifier. All file/command operations go through Acquire, which follows
// "get existing, else reconnect, else create".
type Registry struct {
	mu       sync.Mutex
	handles  map[string]Provider
	activeID string
	factory  Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		handles: map[string]Provider{},
		factory: factory,
	}
}

// Get returns the registered handle for id, if any.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.handles[id]
	return p, ok
}

// Register records a handle for its sandbox id, replacing any previous one.
// The replaced handle is terminated so two live handles never coexist.
func (r *Registry) Register(ctx context.Context, p Provider) {
	id := p.Info().ID
	r.mu.Lock()
	old, had := r.handles[id]
	r.handles[id] = p
	r.mu.Unlock()
	if had && old != p {
		if err := old.Terminate(ctx); err != nil {
			log.Printf("sandbox: terminate replaced handle %s: %v", id, err)
		}
	}
}

// SetActive marks id as the registry's active sandbox.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.activeID = id
	return nil
}

// Active returns the currently active handle, if any.
func (r *Registry) Active() (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return nil, false
	}
	p, ok := r.handles[r.activeID]
	return p, ok
}

// Acquire resolves a usable handle for id: an existing live handle first,
// then a reconnect when the provider supports it, then a fresh sandbox.
// An empty id always provisions a new sandbox.
func (r *Registry) Acquire(ctx context.Context, id string) (Provider, error) {
	if id != "" {
		if p, ok := r.Get(id); ok {
			if p.IsAlive(ctx) {
				return p, nil
			}
			if rc, ok := p.(Reconnector); ok {
				if ok2, err := rc.Reconnect(ctx, id); err == nil && ok2 {
					return p, nil
				}
			}
			r.evict(ctx, id, p)
		}
	}
	if r.factory == nil {
		return nil, fmt.Errorf("sandbox: no factory configured and no live handle for %q", id)
	}
	p, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox: create: %w", err)
	}
	r.Register(ctx, p)
	if err := r.SetActive(p.Info().ID); err != nil {
		return nil, err
	}
	return p, nil
}

// evict drops a dead handle so a stale entry never shadows its replacement.
func (r *Registry) evict(ctx context.Context, id string, p Provider) {
	r.mu.Lock()
	if cur, ok := r.handles[id]; ok && cur == p {
		delete(r.handles, id)
		if r.activeID == id {
			r.activeID = ""
		}
	}
	r.mu.Unlock()
	if err := p.Terminate(ctx); err != nil {
		log.Printf("sandbox: terminate dead handle %s: %v", id, err)
	}
}

// TerminateAll tears down every registered handle.
func (r *Registry) TerminateAll(ctx context.Context) {
	r.mu.Lock()
	handles := make([]Provider, 0, len(r.handles))
	for _, p := range r.handles {
		handles = append(handles, p)
	}
	r.handles = map[string]Provider{}
	r.activeID = ""
	r.mu.Unlock()
	for _, p := range handles {
		if err := p.Terminate(ctx); err != nil {
			log.Printf("sandbox: terminate %s: %v", p.Info().ID, err)
		}
	}
}
