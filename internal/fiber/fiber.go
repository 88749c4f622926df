// Package fiber implements the fiber record and lifecycle of §3/§4.3:
// spawn, join, detach, interrupt, and the interruption-disabled /
// suspension-disallowed counters.
//
// Per §9's design note, a fiber here is a goroutine whose suspension
// points are structured channel awaits rather than a goja/native
// coroutine — goja supplies the value surface (internal/engine), not
// the scheduling primitive. Cancellation stays observable the same
// way a coroutine yield would: an interrupted await returns
// actorerr.Interrupted instead of unwinding a panic.
package fiber

import (
	"sync"

	"github.com/google/uuid"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// Status mirrors the fiber record's STATUS slot: absent (running) or
// one of the two finished states.
type Status int

const (
	StatusRunning Status = iota
	StatusFinishedSuccess
	StatusFinishedError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinishedSuccess:
		return "finished_successfully"
	case StatusFinishedError:
		return "finished_with_error"
	default:
		return "unknown"
	}
}

// joinWaiter represents a fiber currently blocked in Join against
// this fiber — the JOINER slot holding "a coroutine handle (awaiting
// join)".
type joinWaiter struct {
	wake chan joinWake
}

type joinWake struct {
	interrupted bool
}

// Fiber is the per-coroutine record described in §3: JOINER,
// USER_HANDLE, STATUS, STACKTRACE, LOCAL_STORAGE, SOURCE_PATH, LEAF,
// INTERRUPTED, INTERRUPTION_DISABLED, SUSPENSION_DISALLOWED,
// INTERRUPTER, folded into a single Go struct instead of numerically
// indexed interpreter-table slots, per §9's "Registry of per-coroutine
// data" note.
type Fiber struct {
	id string

	mu sync.Mutex

	status    Status
	results   []any
	errResult error

	// joiner is non-nil exactly when some other fiber is blocked in
	// Join against this one (JOINER = coroutine handle). detached is
	// JOINER == false. Both nil/false means JOINER is absent (running,
	// not yet joined or detached).
	joiner         *joinWaiter
	detached       bool
	joinInProgress bool

	interrupted           bool
	interruptionDisabled  int
	suspensionDisallowed  int
	interrupter           func()

	sourcePath string
	isMain     bool
	local      map[string]any
	stacktrace string

	// interruptionCaught is nil until the fiber finishes; then it
	// records whether the finishing error was exactly the one
	// produced by this fiber's own latched interrupt, per the
	// join-vs-error precedence resolved from fiber.cpp.
	interruptionCaught *bool

	done chan struct{}
}

// Option configures a new Fiber at spawn time.
type Option func(*Fiber)

// WithSourcePath sets SOURCE_PATH, inherited from the parent fiber by
// convention at call sites.
func WithSourcePath(path string) Option {
	return func(f *Fiber) { f.sourcePath = path }
}

// AsMain marks the fiber as the actor's LEAF/main fiber (this_fiber.is_main).
func AsMain() Option {
	return func(f *Fiber) { f.isMain = true }
}

// New creates a fiber record with all counters at zero. It does not
// start any goroutine — callers drive the fiber's body and call
// Finish when it returns, matching spawn's "installs a fiber record
// ... posts the first resume to the strand" split between
// bookkeeping and scheduling.
func New(opts ...Option) *Fiber {
	f := &Fiber{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the fiber's identity string (this_fiber.id's backing
// value).
func (f *Fiber) ID() string { return f.id }

// IsMain reports this_fiber.is_main.
func (f *Fiber) IsMain() bool { return f.isMain }

// SourcePath returns SOURCE_PATH.
func (f *Fiber) SourcePath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sourcePath
}

// Status reports STATUS.
func (f *Fiber) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Local lazily creates and returns this_fiber.local_, the per-fiber
// table.
func (f *Fiber) Local() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.local == nil {
		f.local = make(map[string]any)
	}
	return f.local
}

// Done returns a channel closed once the fiber reaches a finished
// status, for callers that only want to wait without joining (e.g. a
// supervisor watching the main fiber to decide on VM shutdown).
func (f *Fiber) Done() <-chan struct{} { return f.done }

// Finish records the fiber's terminal outcome and wakes a blocked
// joiner, if any, exactly once. Calling Finish twice is a programming
// error (a fiber body may only return once); this method does not
// defend against it, mirroring the precondition that STATUS
// transitions from running to finished exactly once.
func (f *Fiber) Finish(results []any, err error) {
	f.mu.Lock()

	f.results = results
	f.errResult = err
	if err != nil {
		f.status = StatusFinishedError
	} else {
		f.status = StatusFinishedSuccess
	}

	caught := err != nil && actorerr.Is(err, actorerr.Interrupted) && f.interrupted
	f.interruptionCaught = &caught

	var w *joinWaiter
	if f.joiner != nil {
		w = f.joiner
		f.joiner = nil
		f.joinInProgress = false
	}
	f.mu.Unlock()

	close(f.done)

	if w != nil {
		w.wake <- joinWake{interrupted: false}
	}
}

// ShouldPanic reports whether a finished-with-error, detached fiber
// should print a panic: true unless the error carries the Interrupted
// code (§4.3 epilogue / §7 propagation policy — "User-
// visible panic output is printed only for detached fibers and only
// when the error is not an interrupt").
func (f *Fiber) ShouldPanic() (err error, shouldPanic bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusFinishedError {
		return nil, false
	}
	if !f.detached {
		return f.errResult, false
	}
	if actorerr.Is(f.errResult, actorerr.Interrupted) {
		return f.errResult, false
	}
	return f.errResult, true
}
