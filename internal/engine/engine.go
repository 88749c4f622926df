// Package engine adapts goja to the §6 interpreter contract: a
// distinct per-actor runtime, an opaque registry indexed by
// host-side keys, an exception-like error channel, and a bytecode
// loader for small precompiled helper snippets.
//
// Per §9's "Coroutine as task" design note and SPEC_FULL.md's DOMAIN
// STACK section, goja does not supply stackful coroutines, so fibers
// are never modeled as goja coroutines here — internal/fiber models
// them as goroutines with structured suspension points instead. This
// package only owns the single-threaded value/registry/error-channel
// surface of one actor's VM, exactly the slice of the interpreter
// contract the core is allowed to depend on.
package engine

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// Runtime is one actor's scripting engine instance. It implements
// vmctx.Interpreter. All methods must be called from the owning
// actor's strand goroutine; Runtime performs no internal locking of
// its own beyond the registry, matching the "single logical thread"
// guarantee actors already provide for their VM state.
type Runtime struct {
	vm *goja.Runtime

	mu       sync.Mutex
	registry map[string]goja.Value
	closed   bool
}

// New constructs a fresh goja runtime for one actor.
func New() *Runtime {
	return &Runtime{
		vm:       goja.New(),
		registry: make(map[string]goja.Value),
	}
}

// Compile implements the bytecode-loader analogue of §6: a small
// precompiled helper snippet is parsed once via goja.Compile and can
// be run repeatedly without re-parsing, the same role
// luaL_loadbuffer plays for precompiled Lua chunks.
func (r *Runtime) Compile(name, src string) (*goja.Program, error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, actorerr.Wrap(actorerr.InternalModule, err)
	}
	return prog, nil
}

// Run executes a compiled program against this runtime and returns
// its result value, translating a thrown exception into a structured
// actorerr.Error — the Go analogue of the interpreter's
// "exception-like error channel raising host-provided error objects".
func (r *Runtime) Run(prog *goja.Program) (goja.Value, error) {
	v, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, translateException(err)
	}
	return v, nil
}

// RunString is a convenience wrapper for ad-hoc snippets that don't
// need a cached *goja.Program.
func (r *Runtime) RunString(src string) (goja.Value, error) {
	v, err := r.vm.RunString(src)
	if err != nil {
		return nil, translateException(err)
	}
	return v, nil
}

func translateException(err error) error {
	var exc *goja.Exception
	if e, ok := err.(*goja.Exception); ok {
		exc = e
		return actorerr.Newf(actorerr.RaiseError, "script error: %v", exc.Value())
	}
	return actorerr.Wrap(actorerr.RaiseError, err)
}

// RegistrySet stores v under key in the opaque, host-side-keyed
// registry — the Go counterpart of LUA_REGISTRYINDEX entries pinned
// by a module-scope lightuserdata key.
func (r *Runtime) RegistrySet(key string, v goja.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[key] = v
}

// RegistryGet retrieves a value previously stored with RegistrySet.
func (r *Runtime) RegistryGet(key string) (goja.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.registry[key]
	return v, ok
}

// GlobalObject exposes the runtime's global object, for callers
// installing host functions (e.g. the actor/fiber API surface) before
// running user scripts.
func (r *Runtime) GlobalObject() *goja.Object {
	return r.vm.GlobalObject()
}

// Set installs name = value as a global, analogous to registering a
// C function or table into the Lua globals table.
func (r *Runtime) Set(name string, value any) error {
	return r.vm.Set(name, value)
}

// ToValue wraps a Go value as a goja.Value, used when bridging a
// decoded xvalue.Value (see internal/xvalue) into this runtime.
func (r *Runtime) ToValue(v any) goja.Value {
	return r.vm.ToValue(v)
}

// Export converts a goja.Value back to a plain Go value, the
// counterpart used before handing a script-produced message to
// xvalue.Encode.
func (r *Runtime) Export(v goja.Value) any {
	if v == nil {
		return nil
	}
	return v.Export()
}

// Close tears the runtime down. goja.Runtime has no explicit
// teardown beyond becoming garbage; Close exists so Runtime satisfies
// vmctx.Interpreter and so double-close is reported rather than
// silently ignored, mirroring "after close(), valid is false".
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("engine: runtime already closed")
	}
	r.closed = true
	r.registry = nil
	return nil
}
