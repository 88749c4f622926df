package fiber

import "github.com/strandrt/fibercore/internal/actorerr"

// DisableInterruption increments INTERRUPTION_DISABLED. Increment
// never fails.
func (f *Fiber) DisableInterruption() {
	f.mu.Lock()
	f.interruptionDisabled++
	f.mu.Unlock()
}

// RestoreInterruption decrements INTERRUPTION_DISABLED, failing with
// InterruptionAlreadyAllowed on underflow; the counter is left
// unchanged on failure.
func (f *Fiber) RestoreInterruption() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interruptionDisabled == 0 {
		return actorerr.New(actorerr.InterruptionAlreadyAllowed,
			"interruption already allowed")
	}
	f.interruptionDisabled--
	return nil
}

// ForbidSuspend increments SUSPENSION_DISALLOWED. Increment never
// fails.
//
// TODO: add overflow detection once a VM-wide shutdown hook exists to
// react to it; the original carries the same open TODO for its
// counters.
func (f *Fiber) ForbidSuspend() {
	f.mu.Lock()
	f.suspensionDisallowed++
	f.mu.Unlock()
}

// AllowSuspend decrements SUSPENSION_DISALLOWED, failing with
// SuspensionAlreadyAllowed on underflow; the counter is left
// unchanged on failure.
func (f *Fiber) AllowSuspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suspensionDisallowed == 0 {
		return actorerr.New(actorerr.SuspensionAlreadyAllowed,
			"suspension already allowed")
	}
	f.suspensionDisallowed--
	return nil
}

// CheckSuspend implements the suspension-point preamble from §4.3/§5:
// check SUSPENSION_DISALLOWED first (fail forbid_suspend_block if
// nonzero), then — unless interruption is disabled — consume
// INTERRUPTED and fail `interrupted` if it was set. Call this
// immediately before blocking at any of recv/send/join/yield.
func (f *Fiber) CheckSuspend() error {
	f.mu.Lock()
	disallowed := f.suspensionDisallowed > 0
	f.mu.Unlock()
	if disallowed {
		return actorerr.New(actorerr.ForbidSuspendBlock, "suspension is forbidden in this scope")
	}

	if f.ConsumeInterrupted() {
		return actorerr.New(actorerr.Interrupted, "fiber was interrupted")
	}
	return nil
}
