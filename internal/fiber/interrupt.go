package fiber

// InstallInterrupter sets the callable a suspension point installs
// before blocking: invoked (at most once) to cancel that specific
// wait. Installing a new interrupter implicitly discards any stale
// one left from a previous suspension point that already resumed
// without going through invokeInterrupter/ClearInterrupter
// (shouldn't happen in well-formed callers, but matches the
// prologue's unconditional "clear any previous interrupter").
//
// Exported so packages outside fiber that implement a suspension
// point — mailbox's Recv/Send rendezvous, in particular — can wire
// their own cancellation into this fiber's INTERRUPTER slot without
// this package importing theirs.
func (f *Fiber) InstallInterrupter(cancel func()) {
	f.mu.Lock()
	f.interrupter = cancel
	f.mu.Unlock()
}

// ClearInterrupter removes the currently-installed interrupter.
// Suspension points call this via defer once they return control,
// whether or not the interrupter was actually invoked, so a late
// Interrupt call against a fiber that already resumed normally is a
// harmless no-op instead of firing a stale cancel.
func (f *Fiber) ClearInterrupter() {
	f.mu.Lock()
	f.interrupter = nil
	f.mu.Unlock()
}

// invokeInterrupter takes the installed interrupter, if any, clearing
// the slot under the same lock that reads it, then calls it — one-shot,
// so the slot is already empty before the call and before any
// continuation the interrupter itself posts gets to run, per
// fiber.cpp's fiber_interrupt.
func (f *Fiber) invokeInterrupter() {
	f.mu.Lock()
	cancel := f.interrupter
	f.interrupter = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Interrupt implements h:interrupt(). It unconditionally latches
// INTERRUPTED, then — unless the caller reports this is a
// self-interrupt — invokes and clears the installed interrupter.
// Self-interrupt only latches: a fiber interrupting itself cannot be
// suspended (it is the one making the call), so there is nothing to
// unblock synchronously; it will observe the flag at its next
// suspension point instead.
func (f *Fiber) Interrupt(self bool) {
	f.mu.Lock()
	f.interrupted = true
	f.mu.Unlock()

	if self {
		return
	}
	f.invokeInterrupter()
}

// ConsumeInterrupted checks and clears INTERRUPTED, honoring
// INTERRUPTION_DISABLED: if interruption is disabled the flag is left
// untouched (masked, not cleared — "disable_interruption masks
// observation but does not clear the latch") and this reports false.
func (f *Fiber) ConsumeInterrupted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interruptionDisabled > 0 {
		return false
	}
	if !f.interrupted {
		return false
	}
	f.interrupted = false
	return true
}
