// Package strand implements a single-goroutine FIFO dispatch queue,
// the Go analogue of a Boost.Asio strand: every handler posted to a
// Strand runs on the same goroutine, in the order it was enqueued,
// and never overlaps another handler from the same Strand.
//
// This is the mechanism that lets §4.1's "dispatch / post / defer"
// trio and the FIFO guarantee between a send's deliver and cancel
// actions hold: both actions are Post calls against the destination
// Strand, so they execute in the order they were enqueued regardless
// of which goroutine enqueued them.
package strand

import "sync"

// Strand runs posted functions one at a time, in FIFO order, on an
// internal worker goroutine. The zero value is not usable; construct
// with New.
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// New returns a fresh, empty Strand.
func New() *Strand {
	return &Strand{}
}

// Post always enqueues fn to run later on the strand's worker
// goroutine. Use Post when ordering relative to other posted work
// matters more than latency — in particular for the deliver/cancel
// pair in §4.4, both of which are always Post calls against the same
// destination Strand and therefore preserve emission order.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	startWorker := !s.running
	if startWorker {
		s.running = true
	}
	s.mu.Unlock()

	if startWorker {
		go s.drain()
	}
}

// Defer enqueues fn at a later slot than anything currently queued,
// preserving fairness with work posted by other goroutines in the
// meantime. This queue is already strict FIFO, so Defer is equivalent
// to Post; the distinct name documents intent at call sites that rely
// on deferred semantics to avoid unbounded stack growth (e.g. a fiber
// re-yielding to itself), matching §4.1's guidance to select defer
// there explicitly.
func (s *Strand) Defer(fn func()) {
	s.Post(fn)
}

// Dispatch behaves like Post. A strand bound to a dedicated goroutine
// cannot cheaply recognise "the caller is already running on me"
// without goroutine-local storage, so this implementation always
// takes the conservative, always-correct path of enqueueing; callers
// that need a true inline fast path when already on-strand (e.g. a
// fiber resuming a join target) arrange it themselves by running the
// continuation directly instead of going through the strand.
func (s *Strand) Dispatch(fn func()) {
	s.Post(fn)
}

func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		next()
	}
}
