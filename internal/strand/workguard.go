package strand

import "sync"

// Guard is a reactor-keep-alive token: the Reactor it was obtained
// from does not consider itself idle while at least one Guard derived
// from it is still held. No other package in this module takes a
// Guard: addresses, blocked receives and in-flight completions do not
// hold one.
type Guard struct {
	r        *Reactor
	released bool
	mu       sync.Mutex
}

// Release drops this keep-alive token. Release is idempotent; a
// second call is a no-op, matching the RAII-destructor semantics of
// the original (a work-guard can be reset early or dropped once).
func (g *Guard) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	g.mu.Unlock()
	g.r.release()
}

// Reactor tracks outstanding work-guards so a driver loop can learn
// when it is safe to stop: Idle() becomes ready exactly when the
// guard count returns to zero after having been nonzero at least
// once, mirroring an Asio io_context whose run() returns once all
// work has been released.
type Reactor struct {
	mu      sync.Mutex
	count   int
	started bool
	idleCh  chan struct{}
}

// NewReactor returns an empty Reactor.
func NewReactor() *Reactor {
	return &Reactor{idleCh: make(chan struct{})}
}

// Guard returns a new keep-alive token on r.
func (r *Reactor) Guard() *Guard {
	r.mu.Lock()
	r.count++
	r.started = true
	r.mu.Unlock()
	return &Guard{r: r}
}

func (r *Reactor) release() {
	r.mu.Lock()
	r.count--
	n := r.count
	started := r.started
	r.mu.Unlock()

	if started && n == 0 {
		r.mu.Lock()
		select {
		case <-r.idleCh:
			// already closed by a concurrent release reaching zero
		default:
			close(r.idleCh)
		}
		r.mu.Unlock()
	}
}

// Idle returns a channel that closes the first time r's guard count
// returns to zero after having been held at least once. A fresh
// Reactor that has never had a Guard taken never closes this channel;
// callers should only wait on it after ensuring at least one Guard
// was requested.
func (r *Reactor) Idle() <-chan struct{} {
	return r.idleCh
}

// Outstanding reports the current live-guard count, for diagnostics.
func (r *Reactor) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
