// Package sysapi gives §6's System API table a concrete Go shape: the
// `exit` call's force-mode enum and the master actor's signal
// registration surface, wired into the §4.6 shutdown sequencer by
// whatever owns the application context (internal/system).
//
// Grounded on the graceful-then-forced shutdown pattern in
// cmd/substrated/main.go: a first signal asks every actor to wind
// down cleanly, a second (or Force == ForceQuick/ForceAbort) exits
// immediately without waiting.
package sysapi

import (
	"os"
	"os/signal"
	"sync"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// Force mirrors the `force` argument to the `exit` system call: the
// enumerated options are absent, 0, 1 (rejected), 2 (quick exit), or
// "abort".
type Force int

const (
	// ForceNone is the absent/0 case: request a graceful shutdown.
	ForceNone Force = iota
	// ForceQuick corresponds to force == 2: skip the drain sequence
	// and terminate immediately via os.Exit.
	ForceQuick
	// ForceAbort corresponds to force == "abort": terminate via a
	// process abort rather than a normal exit.
	ForceAbort
)

// ExitRequest is the value produced by a call to `exit`.
type ExitRequest struct {
	Code  int
	Force Force
}

// ParseForce validates the raw `force` argument against §6's
// enumerated options: absent, 0, 1 (rejected as not_supported), 2, or
// "abort" — 1 is distinct from the other integer codes and always
// fails.
func ParseForce(raw any) (Force, error) {
	switch v := raw.(type) {
	case nil:
		return ForceNone, nil
	case int:
		switch v {
		case 0:
			return ForceNone, nil
		case 1:
			return ForceNone, actorerr.New(actorerr.NotSupported,
				"force=1 is not a supported exit mode")
		case 2:
			return ForceQuick, nil
		default:
			return ForceNone, actorerr.New(actorerr.InvalidArgument,
				"unrecognised force code")
		}
	case string:
		if v == "abort" {
			return ForceAbort, nil
		}
		return ForceNone, actorerr.New(actorerr.InvalidArgument,
			"unrecognised force string")
	default:
		return ForceNone, actorerr.New(actorerr.InvalidArgument,
			"force must be absent, an integer, or \"abort\"")
	}
}

// Apply terminates the process per req.Force. ForceNone falls to the
// default case and exits with req.Code without draining anything;
// callers that want a graceful exit (System.Exit) drain first and
// then call Apply.
func Apply(req ExitRequest) {
	switch req.Force {
	case ForceQuick:
		os.Exit(req.Code)
	case ForceAbort:
		panic("sysapi: process abort requested")
	default:
		os.Exit(req.Code)
	}
}

// SignalSet is owned by the master actor: it is the only actor
// authorised to register which OS signals the process reacts to.
// Non-master actors may still raise a signal to the process
// themselves (Raise), but only when that signal's default disposition
// for the process is not already "terminate" — raising SIGKILL, for
// instance, is always rejected.
type SignalSet struct {
	mu       sync.Mutex
	notified bool
	ch       chan os.Signal
	allowed  map[os.Signal]bool
}

// NewSignalSet returns a SignalSet with no signals registered yet.
func NewSignalSet() *SignalSet {
	return &SignalSet{ch: make(chan os.Signal, 2)}
}

// Register installs signal.Notify for the given signals — a
// master-actor-only operation; callers enforce the master check
// before calling this.
func (s *SignalSet) Register(sigs ...os.Signal) <-chan os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	signal.Notify(s.ch, sigs...)
	s.notified = true
	if s.allowed == nil {
		s.allowed = make(map[os.Signal]bool, len(sigs))
	}
	for _, sig := range sigs {
		s.allowed[sig] = true
	}
	return s.ch
}

// Raise reports whether a non-master actor may raise sig to the
// process: only signals whose disposition is not default-terminate,
// i.e. ones the master actor has explicitly opted into handling.
func (s *SignalSet) Raise(sig os.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.allowed[sig] {
		return actorerr.New(actorerr.InvalidArgument,
			"signal has default-terminate disposition and cannot be raised")
	}
	return nil
}

// Stop cancels signal.Notify registration. Safe to call even if
// Register was never called.
func (s *SignalSet) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified {
		signal.Stop(s.ch)
		s.notified = false
	}
}
