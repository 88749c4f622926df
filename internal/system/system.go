// Package system provides the top-level wiring the rest of the core
// assumes but doesn't own: an application-context that tracks every
// spawned VM, implements the `spawn_vm` operation from §6's Actor API,
// and drives the §4.6 shutdown sequence across all of them when the
// process is asked to exit.
package system

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/strandrt/fibercore/internal/engine"
	"github.com/strandrt/fibercore/internal/fiber"
	"github.com/strandrt/fibercore/internal/mailbox"
	"github.com/strandrt/fibercore/internal/moduleload"
	"github.com/strandrt/fibercore/internal/sysapi"
	"github.com/strandrt/fibercore/internal/vmctx"
)

// Config is a small value-object describing system-wide limits and
// policy, with a DefaultConfig constructor.
type Config struct {
	// ValueDepthLimit and ValueArrayLimit are the depth/array-length
	// bounds in the shape of internal/xvalue.Limits, reported by
	// System.ValueLimits. Nothing in System applies them to sends, and
	// a zero value is reported as zero.
	ValueDepthLimit int
	ValueArrayLimit int
}

// DefaultConfig returns the system's default configuration.
func DefaultConfig() Config {
	return Config{ValueDepthLimit: 64, ValueArrayLimit: 1 << 20}
}

// System is the application context: it owns the master actor's
// identity, the resolver shared by every spawn_vm call, and the
// registry of live VMs needed to drive an orderly shutdown. Per §9's
// "Global interpreter state" note, teardown order is actors first,
// context last — Shutdown enforces that by closing every tracked VM
// before returning.
type System struct {
	cfg Config

	mu       sync.Mutex
	vms      map[string]*vmctx.VM
	masterID string

	resolver *moduleload.Resolver
	signals  *sysapi.SignalSet
}

// New constructs an empty System and spawns no actors yet.
func New(cfg Config) *System {
	return &System{
		cfg:      cfg,
		vms:      make(map[string]*vmctx.VM),
		resolver: moduleload.New(),
		signals:  sysapi.NewSignalSet(),
	}
}

// Signals returns the process-wide signal set the master actor
// registers against.
func (s *System) Signals() *sysapi.SignalSet { return s.signals }

// SpawnResult is spawn_vm's successful outcome: a send-only Address
// bound to the new VM's inbox, mirroring the actor_address userdata
// actor.cpp's spawn_vm returns.
type SpawnResult struct {
	Addr *mailbox.Address
	VM   *vmctx.VM
}

// SpawnVM implements §6's `spawn_vm(module)`: it resolves module
// against the calling fiber's own SOURCE_PATH (or self-spawns on
// "."), constructs a fresh VM with its own strand/inbox/fiber
// registry/pending list and a goja Runtime, registers it with the
// system, and posts the new VM's main fiber for its first resume.
//
// isMainFiber/callerIsRoot/chain/callerIsLeaf are the bookkeeping
// spawn_vm needs from the calling actor to enforce the module-loader
// rules in §7; a caller spawning the very first (master) actor passes
// module == "." with isMainFiber=true and an empty chain.
func (s *System) SpawnVM(
	module, callerSourcePath string,
	isMainFiber, callerIsRoot, callerIsLeaf bool,
	chain []string,
	main fiber.Body,
) fn.Result[SpawnResult] {

	if err := moduleload.CheckLeaf(callerIsLeaf); err != nil {
		return fn.Err[SpawnResult](err)
	}

	resolved, err := moduleload.Resolve(module, callerSourcePath, isMainFiber, callerIsRoot)
	if err != nil {
		return fn.Err[SpawnResult](err)
	}

	if err := moduleload.CheckCycle(chain, resolved); err != nil {
		return fn.Err[SpawnResult](err)
	}

	id := uuid.NewString()
	vm := vmctx.New(id, engine.New())

	s.mu.Lock()
	s.vms[id] = vm
	if s.masterID == "" {
		s.masterID = id
		s.resolver.MarkRoot(resolved)
	}
	s.mu.Unlock()

	addr := vm.Inbox.NewAddress()

	vm.Strand.Post(func() {
		fiber.Spawn(vm.Fibers, main, fiber.WithSourcePath(resolved), fiber.AsMain())
	})

	return fn.Ok(SpawnResult{Addr: addr, VM: vm})
}

// IsMaster reports whether vmID identifies the first VM this System
// spawned — the only actor authorised to register process signals or
// call Exit with process-wide effect.
func (s *System) IsMaster(vmID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return vmID != "" && vmID == s.masterID
}

// Lookup returns the VM registered under id, if any.
func (s *System) Lookup(id string) (*vmctx.VM, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[id]
	return vm, ok
}

// Unregister removes a VM from the system's bookkeeping once it has
// fully closed, so a later Shutdown does not attempt to close it
// again.
func (s *System) Unregister(id string) {
	s.mu.Lock()
	delete(s.vms, id)
	s.mu.Unlock()
}

// Exit implements the System API's `exit` call. ForceNone drains
// every tracked VM via Shutdown and then terminates the process via
// sysapi.Apply; ForceQuick/ForceAbort terminate immediately via
// sysapi.Apply without draining.
func (s *System) Exit(req sysapi.ExitRequest) error {
	if req.Force != sysapi.ForceNone {
		sysapi.Apply(req)
		return nil // unreachable: Apply terminates the process
	}
	s.Shutdown()
	sysapi.Apply(req)
	return nil
}

// Shutdown closes every tracked VM — actors first, context last, per
// §9 — by invoking each VM's §4.6 Close sequence. Order among VMs is
// unspecified; each VM's own Close is independently safe to call
// concurrently from multiple goroutines (sync.Once-guarded).
func (s *System) Shutdown() {
	s.mu.Lock()
	vms := make([]*vmctx.VM, 0, len(s.vms))
	for _, vm := range s.vms {
		vms = append(vms, vm)
	}
	s.mu.Unlock()

	log.InfoS(context.Background(), "system shutdown draining vms", "vm_count", len(vms))

	var wg sync.WaitGroup
	for _, vm := range vms {
		wg.Add(1)
		go func(vm *vmctx.VM) {
			defer wg.Done()
			vm.Close()
		}(vm)
	}
	wg.Wait()

	log.InfoS(context.Background(), "system shutdown completed")

	s.signals.Stop()
}

// ValueLimits returns the configured depth and array-length limits.
// The System does not apply them to inbox sends itself.
func (s *System) ValueLimits() (depth, array int) {
	return s.cfg.ValueDepthLimit, s.cfg.ValueArrayLimit
}
