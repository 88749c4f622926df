package fiber

import "sync"

// Registry is the per-actor fiber registry: bookkeeping keyed by
// coroutine identity, plus the VM context's current_fiber pointer.
// All mutation is expected to happen from the owning actor's strand
// goroutine; Registry itself only adds the locking needed because
// Interrupt and lookups may originate from other goroutines (another
// fiber of the same actor, or the scheduler reacting to a shutdown).
type Registry struct {
	mu      sync.Mutex
	fibers  map[string]*Fiber
	current *Fiber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fibers: make(map[string]*Fiber)}
}

// Add registers f.
func (r *Registry) Add(f *Fiber) {
	r.mu.Lock()
	r.fibers[f.ID()] = f
	r.mu.Unlock()
}

// Remove unregisters the fiber with the given id — the epilogue's
// "clears fiber_list_key entry" step, run once a joined-or-detached
// fiber's result has been delivered.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.fibers, id)
	r.mu.Unlock()
}

// Lookup returns the fiber registered under id, if any.
func (r *Registry) Lookup(id string) (*Fiber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fibers[id]
	return f, ok
}

// SetCurrent records which fiber is actively running — non-nil only
// between prologue and epilogue of a resume, per §3's VM-context
// invariant.
func (r *Registry) SetCurrent(f *Fiber) {
	r.mu.Lock()
	r.current = f
	r.mu.Unlock()
}

// Current returns the fiber currently executing in this actor, or nil
// if none is (the handler observing nil has no owning fiber, per §8
// universal invariant 2).
func (r *Registry) Current() *Fiber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Len reports the number of registered fibers, for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fibers)
}
