// Package pending implements the per-VM pending-operations registry:
// an auto-unlinking record of in-flight operations that must be
// cancelled on shutdown without racing a concurrent completion.
//
// The original implementation is an intrusive, unsized linked list so
// a completion handler on any thread can unlink itself without
// knowing the registry's lock. Per the design notes this module uses
// the safer reimplementation instead: an arena index plus a
// generation counter. Every Handle a caller holds carries the
// generation stamped at registration time, so a Cancel or Forget call
// that arrives after the slot was already reused is a silent no-op
// rather than a use-after-free.
package pending

import "sync"

// Op is anything that can be asked to stop. Cancel must be safe to
// call even if the operation has already completed. The Registry
// never holds its lock while calling Cancel, so Cancel may call back
// into the Registry (for example Register).
type Op interface {
	Cancel()
}

type slot struct {
	op         Op
	generation uint64
	// shared indicates the registry does not own deletion: the
	// caller retains the Op and is responsible for eventually
	// calling Forget. When false the registry deletes the slot as
	// part of Drain.
	shared bool
	live   bool
}

// Handle identifies a single registration. It is comparable and safe
// to hold past the point the underlying slot is reused; operations
// against a stale Handle are no-ops.
type Handle struct {
	index      int
	generation uint64
}

// Registry is the per-VM pending-operations list described in §4.2.
// The zero value is not usable; construct with New.
type Registry struct {
	mu   sync.Mutex
	slot []slot
	free []int
	gen  uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register adds op to the registry and returns a Handle for later
// Cancel/Forget calls. shared mirrors the shared_ownership flag: when
// true, Drain invokes op.Cancel() but does not free the slot — the
// owner must call Forget once it releases op itself.
func (r *Registry) Register(op Op, shared bool) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	gen := r.gen

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slot[idx] = slot{op: op, generation: gen, shared: shared, live: true}
		return Handle{index: idx, generation: gen}
	}

	idx := len(r.slot)
	r.slot = append(r.slot, slot{op: op, generation: gen, shared: shared, live: true})
	return Handle{index: idx, generation: gen}
}

// Forget unlinks h from the registry without invoking Cancel. A
// completion handler calls this once it has run to completion so a
// later Drain does not also cancel it — mirroring the contract that a
// pending operation must unlink itself before invoking user code.
func (r *Registry) Forget(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(h)
}

// release assumes mu is held.
func (r *Registry) release(h Handle) {
	if h.index < 0 || h.index >= len(r.slot) {
		return
	}
	s := &r.slot[h.index]
	if !s.live || s.generation != h.generation {
		return
	}
	*s = slot{}
	r.free = append(r.free, h.index)
}

// Cancel invokes Cancel() on the operation registered under h, if it
// is still live, then unlinks it. A stale or already-unlinked Handle
// is a no-op.
func (r *Registry) Cancel(h Handle) {
	r.mu.Lock()
	s, ok := r.lookup(h)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.op.Cancel()
	r.Forget(h)
}

func (r *Registry) lookup(h Handle) (slot, bool) {
	if h.index < 0 || h.index >= len(r.slot) {
		return slot{}, false
	}
	s := r.slot[h.index]
	if !s.live || s.generation != h.generation {
		return slot{}, false
	}
	return s, true
}

// Len reports the number of live registrations. Intended for tests
// and diagnostics, not hot-path logic.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slot {
		if s.live {
			n++
		}
	}
	return n
}

// Drain cancels every live operation in registration order and
// removes non-shared ones. Re-entrancy: Cancel may itself Register
// new operations (e.g. a cleanup handler posting further work); those
// are appended to r.slot with a fresh generation and are NOT visited
// by this call, matching the "nodes added during drain are not
// re-processed" rule — their lifecycle belongs to whoever registered
// them.
func (r *Registry) Drain() {
	r.mu.Lock()
	snapshot := make([]struct {
		h  Handle
		op Op
	}, 0, len(r.slot))
	for i, s := range r.slot {
		if !s.live {
			continue
		}
		snapshot = append(snapshot, struct {
			h  Handle
			op Op
		}{h: Handle{index: i, generation: s.generation}, op: s.op})
	}
	r.mu.Unlock()

	for _, entry := range snapshot {
		entry.op.Cancel()

		r.mu.Lock()
		s, ok := r.lookup(entry.h)
		if ok && !s.shared {
			r.release(entry.h)
		}
		r.mu.Unlock()
	}
}
