// Package vmctx implements the per-actor VM context of §3 and the
// shutdown sequencer of §4.6: the object that owns an actor's strand,
// inbox, fiber registry, and pending-operations list, and tears all
// four down exactly once.
package vmctx

import (
	"context"
	"sync"

	"github.com/strandrt/fibercore/internal/fiber"
	"github.com/strandrt/fibercore/internal/mailbox"
	"github.com/strandrt/fibercore/internal/pending"
	"github.com/strandrt/fibercore/internal/strand"
)

// Interpreter is the opaque scripting-engine handle a VM owns, per
// §6's interpreter contract. The core only needs to be able to tear
// it down; internal/engine's goja adapter implements this.
type Interpreter interface {
	Close() error
}

// VM is one actor's context: a back-reference-free bundle of the
// strand, interpreter handle, inbox, fiber registry and pending-
// operations list, plus the boolean flags §3 lists (Valid,
// MemoryFault, ExitRequested, SuppressTailErrors).
type VM struct {
	id      string
	Strand  *strand.Strand
	Inbox   *mailbox.Inbox
	Fibers  *fiber.Registry
	Pending *pending.Registry

	interp Interpreter

	mu                 sync.Mutex
	valid              bool
	memoryFault        bool
	exitRequested      bool
	exitCode           int
	suppressTailErrors bool

	cleanupErrors   []error
	deadlockReports []string

	closeOnce sync.Once
}

// New constructs a VM context identified by id, bound to a fresh
// strand, open inbox, empty fiber registry and empty pending-
// operations list. interp may be nil if the caller attaches one
// later via SetInterpreter.
func New(id string, interp Interpreter) *VM {
	s := strand.New()
	return &VM{
		id:      id,
		Strand:  s,
		Inbox:   mailbox.New(s, id),
		Fibers:  fiber.NewRegistry(),
		Pending: pending.New(),
		interp:  interp,
		valid:   true,
	}
}

// ID returns the VM's identity string.
func (vm *VM) ID() string { return vm.id }

// SetInterpreter attaches the interpreter handle, for callers that
// construct the VM before the interpreter is ready (e.g. spawn_vm
// needs a VM id before compiling the target module).
func (vm *VM) SetInterpreter(interp Interpreter) {
	vm.mu.Lock()
	vm.interp = interp
	vm.mu.Unlock()
}

// Valid reports whether the VM is still open for business. After
// Close, Valid is false and no further completion handler may resume
// a fiber in this VM.
func (vm *VM) Valid() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.valid
}

// MarkMemoryFault records that an allocation failure occurred while
// mutating VM state (the lua_errmem flag). It schedules a panic line
// at the next Close.
func (vm *VM) MarkMemoryFault() {
	vm.mu.Lock()
	vm.memoryFault = true
	vm.mu.Unlock()
}

// RecordCleanupError records that a fiber's cleanup handler faulted,
// to be reported at shutdown.
func (vm *VM) RecordCleanupError(err error) {
	vm.mu.Lock()
	vm.cleanupErrors = append(vm.cleanupErrors, err)
	vm.mu.Unlock()
}

// RecordDeadlockReport appends a deferred deadlock diagnostic string.
func (vm *VM) RecordDeadlockReport(msg string) {
	vm.mu.Lock()
	vm.deadlockReports = append(vm.deadlockReports, msg)
	vm.mu.Unlock()
}

// RequestExit records the System API's exit(code) call; the recorded
// request is read back through ExitRequest.
func (vm *VM) RequestExit(code int) {
	vm.mu.Lock()
	vm.exitRequested = true
	vm.exitCode = code
	vm.mu.Unlock()
}

// ExitRequest reports whether exit was requested and with what code.
func (vm *VM) ExitRequest() (requested bool, code int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.exitRequested, vm.exitCode
}

// Close runs the §4.6 shutdown sequence exactly once, regardless of
// how many goroutines call it concurrently:
//
//  1. emit deferred diagnostics (memory-fault panic line, cleanup
//     errors, deadlock reports) gated behind the package logger's
//     level, per "Emits, under log-level gate, ...";
//  2. tear down the interpreter;
//  3. close the inbox, which wakes a blocked receiver and every
//     queued sender with channel_closed and clears the queue;
//  4. drain the pending-operations registry, cancelling every live
//     operation in registration order.
//
// After Close returns, Valid() is false and no completion handler may
// resume a fiber in this VM — callers arrange that on their own side
// by checking Valid() before posting a resume, since vmctx has no way
// to intercept an already-scheduled strand callback.
func (vm *VM) Close() {
	vm.closeOnce.Do(vm.close)
}

func (vm *VM) close() {
	vm.mu.Lock()
	vm.valid = false
	memFault := vm.memoryFault
	cleanupErrs := vm.cleanupErrors
	deadlocks := vm.deadlockReports
	interp := vm.interp
	vm.mu.Unlock()

	ctx := context.Background()

	if memFault {
		log.ErrorS(ctx, "vm closing after memory allocation fault",
			nil, "vm_id", vm.id)
	}
	for _, cerr := range cleanupErrs {
		log.ErrorS(ctx, "fiber cleanup handler faulted", cerr, "vm_id", vm.id)
	}
	for _, d := range deadlocks {
		log.WarnS(ctx, "deferred deadlock report", nil, "vm_id", vm.id, "report", d)
	}

	if interp != nil {
		if err := interp.Close(); err != nil {
			log.WarnS(ctx, "interpreter close failed", err, "vm_id", vm.id)
		}
	}

	vm.Inbox.Close()
	vm.Pending.Drain()
}
