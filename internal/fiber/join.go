package fiber

import "github.com/strandrt/fibercore/internal/actorerr"

// JoinResult is what h:join() resolves to.
type JoinResult struct {
	// Results holds the joinee's return values on success.
	Results []any
	// Err holds the joinee's raised error, to be re-raised by the
	// caller unless Interrupted is true (join-vs-error precedence:
	// an interrupt on the joiner always wins for the joiner's return
	// value, per the §9 open question resolved against fiber.cpp).
	Err error
	// Interrupted is true when this Join call returned because the
	// calling (joiner) fiber was interrupted while blocked, not
	// because the joinee finished.
	Interrupted bool
}

// Join blocks caller until f finishes or caller is interrupted via
// interrupt. Calling Join with caller == f fails with
// ResourceDeadlockWouldOccur. Calling Join on a fiber that is already
// detached, or already has another joiner blocked on it, fails with
// InvalidArgument. Joining a fiber that has already finished returns
// its stored result at once; that result is not marked as consumed,
// so a later Join on the same fiber returns it again.
func (f *Fiber) Join(caller *Fiber, interrupt <-chan struct{}) (JoinResult, error) {
	if f == caller {
		return JoinResult{}, actorerr.New(actorerr.ResourceDeadlockWouldOccur,
			"fiber cannot join itself")
	}

	f.mu.Lock()
	switch {
	case f.detached:
		f.mu.Unlock()
		return JoinResult{}, actorerr.New(actorerr.InvalidArgument,
			"fiber already detached")
	case f.joinInProgress:
		f.mu.Unlock()
		return JoinResult{}, actorerr.New(actorerr.InvalidArgument,
			"join already in progress")
	case f.status != StatusRunning:
		results, err := f.results, f.errResult
		caught := f.interruptionCaught != nil && *f.interruptionCaught
		f.status = consumedStatus(f.status)
		f.mu.Unlock()
		return JoinResult{Results: results, Err: suppressCaughtInterrupt(err, caught)}, nil
	}

	w := &joinWaiter{wake: make(chan joinWake, 1)}
	f.joiner = w
	f.joinInProgress = true
	f.mu.Unlock()

	caller.InstallInterrupter(func() {
		f.mu.Lock()
		if f.joiner == w {
			f.joiner = nil
			f.joinInProgress = false
			f.mu.Unlock()
			w.wake <- joinWake{interrupted: true}
			return
		}
		f.mu.Unlock()
	})
	defer caller.ClearInterrupter()

	select {
	case wake := <-w.wake:
		if wake.interrupted {
			return JoinResult{Interrupted: true}, nil
		}
		f.mu.Lock()
		results, err := f.results, f.errResult
		caught := f.interruptionCaught != nil && *f.interruptionCaught
		f.mu.Unlock()
		return JoinResult{Results: results, Err: suppressCaughtInterrupt(err, caught)}, nil
	case <-interrupt:
		caller.invokeInterrupter()
		wake := <-w.wake
		return JoinResult{Interrupted: wake.interrupted, Results: f.resultsIfReady(),
			Err: suppressCaughtInterrupt(f.errIfReady(), !wake.interrupted && f.caughtOwnInterrupt())}, nil
	}
}

// suppressCaughtInterrupt implements the join-vs-error precedence of
// fiber.cpp's epilogue: a joinee that finished with an error equal to
// its own latched interrupt reports a clean join ((true), no error)
// rather than re-raising that interrupt to the joiner. Any other
// error, including one raised while interruption was disabled or one
// that merely happens to carry the Interrupted code but wasn't this
// fiber's own caught interrupt, still propagates.
func suppressCaughtInterrupt(err error, caught bool) error {
	if caught {
		return nil
	}
	return err
}

// caughtOwnInterrupt reports whether the fiber has finished with its
// own latched interrupt as the terminal error, for the Join path where
// the joiner raced the joinee's finish against its own interrupt
// signal and must recheck after the joinee settles.
func (f *Fiber) caughtOwnInterrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interruptionCaught != nil && *f.interruptionCaught
}

func (f *Fiber) resultsIfReady() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusRunning {
		return nil
	}
	return f.results
}

func (f *Fiber) errIfReady() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusRunning {
		return nil
	}
	return f.errResult
}

// consumedStatus marks a finished fiber's result as having been
// delivered to a joiner: the registry entry is cleared ("clears
// fiber_list_key entry, nulls handle->fiber") on the epilogue side;
// here we just leave Status as-is since a second Join attempt is
// already rejected by joinInProgress/detached checks above — a
// finished, not-yet-detached fiber can still be joined exactly once
// more only if no one has joined it yet, which the caller enforces by
// discarding the Fiber handle after a successful Join.
func consumedStatus(s Status) Status { return s }

// Detach marks the fiber detached. If it has already finished with an
// error, the caller should print the panic message (ShouldPanic
// reports true after this call for such a fiber).
func (f *Fiber) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached || f.joinInProgress {
		return actorerr.New(actorerr.InvalidArgument,
			"fiber already detached or being joined")
	}
	f.detached = true
	f.results = nil
	return nil
}

// Joinable reports h:joinable(): true iff the fiber has not finished,
// is not detached, and is not currently being joined.
func (f *Fiber) Joinable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status == StatusRunning && !f.detached && !f.joinInProgress
}

// InterruptionCaught reports h:interruption_caught(). It is only
// valid after Join has returned due to the joinee finishing; calling
// it before the fiber has finished fails with InvalidArgument.
func (f *Fiber) InterruptionCaught() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interruptionCaught == nil {
		return false, actorerr.New(actorerr.InvalidArgument,
			"fiber has not finished")
	}
	return *f.interruptionCaught, nil
}
