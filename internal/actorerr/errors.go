// Package actorerr defines the stable error taxonomy shared by every
// layer of the concurrency core: fiber control, inbox rendezvous, the
// value serialiser, and the container wire format all raise Error
// values from this package instead of ad-hoc sentinels, so a caller
// can switch on Code regardless of which subsystem produced it.
package actorerr

import (
	"errors"
	"fmt"
)

// Code identifies a specific failure at the core boundary. Names and
// meanings are fixed; adding a new one is additive, removing or
// renaming one is a breaking change for anything that inspects Code.
type Code int

const (
	// Module-loader surface. The core only needs to be able to
	// produce these; resolving and executing modules is delegated.
	InvalidModuleName Code = iota + 1
	ModuleNotFound
	RootCannotImportParent
	CyclicImport
	LeafCannotImportChild
	OnlyMainFiberMayImport
	BadRootContext
	InternalModule

	// Handle / lookup errors.
	BadIndex
	BadCoroutine

	// Fiber-control errors.
	SuspensionAlreadyAllowed
	InterruptionAlreadyAllowed
	ForbidSuspendBlock
	Interrupted
	ResourceDeadlockWouldOccur

	// Cleanup misuse.
	UnmatchedScopeCleanup

	// Inbox errors.
	ChannelClosed
	NoSenders
	DeviceOrResourceBusy

	// Value-serialiser errors.
	NotSupported
	InvalidArgument
	CycleExists
	TooManyLevels
	ArrayTooLong

	// VM / system errors.
	NotEnoughMemory
	RaiseError
)

// Category groups codes that share recovery semantics, mirroring the
// groupings in the error-kind list: callers that only care about
// "this was a fiber-control misuse" don't need to enumerate every
// Code in the group.
type Category int

const (
	CategoryModuleLoader Category = iota + 1
	CategoryHandle
	CategoryFiberControl
	CategoryCleanup
	CategoryInbox
	CategorySerialiser
	CategorySystem
)

var codeCategory = map[Code]Category{
	InvalidModuleName:      CategoryModuleLoader,
	ModuleNotFound:         CategoryModuleLoader,
	RootCannotImportParent: CategoryModuleLoader,
	CyclicImport:           CategoryModuleLoader,
	LeafCannotImportChild:  CategoryModuleLoader,
	OnlyMainFiberMayImport: CategoryModuleLoader,
	BadRootContext:         CategoryModuleLoader,
	InternalModule:         CategoryModuleLoader,

	BadIndex:     CategoryHandle,
	BadCoroutine: CategoryHandle,

	SuspensionAlreadyAllowed:   CategoryFiberControl,
	InterruptionAlreadyAllowed: CategoryFiberControl,
	ForbidSuspendBlock:         CategoryFiberControl,
	Interrupted:                CategoryFiberControl,
	ResourceDeadlockWouldOccur: CategoryFiberControl,

	UnmatchedScopeCleanup: CategoryCleanup,

	ChannelClosed:          CategoryInbox,
	NoSenders:              CategoryInbox,
	DeviceOrResourceBusy:   CategoryInbox,

	NotSupported:  CategorySerialiser,
	InvalidArgument: CategorySerialiser,
	CycleExists:   CategorySerialiser,
	TooManyLevels: CategorySerialiser,
	ArrayTooLong:  CategorySerialiser,

	NotEnoughMemory: CategorySystem,
	RaiseError:      CategorySystem,
}

var codeName = map[Code]string{
	InvalidModuleName:          "invalid_module_name",
	ModuleNotFound:             "module_not_found",
	RootCannotImportParent:     "root_cannot_import_parent",
	CyclicImport:               "cyclic_import",
	LeafCannotImportChild:      "leaf_cannot_import_child",
	OnlyMainFiberMayImport:     "only_main_fiber_may_import",
	BadRootContext:             "bad_root_context",
	InternalModule:             "internal_module",
	BadIndex:                   "bad_index",
	BadCoroutine:               "bad_coroutine",
	SuspensionAlreadyAllowed:   "suspension_already_allowed",
	InterruptionAlreadyAllowed: "interruption_already_allowed",
	ForbidSuspendBlock:         "forbid_suspend_block",
	Interrupted:                "interrupted",
	ResourceDeadlockWouldOccur: "resource_deadlock_would_occur",
	UnmatchedScopeCleanup:      "unmatched_scope_cleanup",
	ChannelClosed:              "channel_closed",
	NoSenders:                  "no_senders",
	DeviceOrResourceBusy:       "device_or_resource_busy",
	NotSupported:               "not_supported",
	InvalidArgument:            "invalid_argument",
	CycleExists:                "cycle_exists",
	TooManyLevels:              "too_many_levels",
	ArrayTooLong:               "array_too_long",
	NotEnoughMemory:            "not_enough_memory",
	RaiseError:                 "raise_error",
}

func (c Code) String() string {
	if name, ok := codeName[c]; ok {
		return name
	}
	return fmt.Sprintf("actorerr.Code(%d)", int(c))
}

// Category reports the grouping for c, or 0 if c is unregistered.
func (c Code) Category() Category {
	return codeCategory[c]
}

// Error is the structured error object raised at the core boundary:
// a stable Code, its Category, and ancillary fields such as the
// offending argument index. It is the Go analogue of the {code,
// category, ...} error objects the embedded interpreter raises
// verbatim to user code.
type Error struct {
	Code    Code
	Message string
	// Fields carries ancillary context, e.g. "argument_index" for
	// invalid_argument or "module" for module_not_found. Keys are
	// part of the stable contract for a given Code; values are not.
	Fields map[string]any
	// Wrapped is set when this Error decorates an underlying cause
	// (e.g. a propagated syscall error during spawn_vm).
	Wrapped error
}

// New constructs an Error with no ancillary fields.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap decorates cause with a structured Code while preserving it for
// errors.Unwrap / errors.Is traversal.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Message: cause.Error(), Wrapped: cause}
}

// WithField returns e with field=value added to its ancillary fields.
// It mutates and returns e for chaining at the call site that
// constructs the error.
func (e *Error) WithField(field string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any, 1)
	}
	e.Fields[field] = value
	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target carries the same Code, so callers can
// write errors.Is(err, actorerr.New(actorerr.Interrupted, "")) or,
// more commonly, errors.Is(err, actorerr.AsSentinel(actorerr.Interrupted))
// via the AsSentinel helper below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	var ce codeSentinel
	if errors.As(target, &ce) {
		return e.Code == Code(ce)
	}
	return false
}

// codeSentinel lets a bare Code be used directly as an errors.Is
// target, e.g. errors.Is(err, actorerr.AsSentinel(actorerr.Interrupted)).
type codeSentinel Code

func (c codeSentinel) Error() string   { return Code(c).String() }
func (c codeSentinel) Is(t error) bool { return Code(c) == CodeOf(t) }

// AsSentinel wraps a Code as a comparable error for use with errors.Is.
func AsSentinel(c Code) error { return codeSentinel(c) }

// CodeOf extracts the Code carried by err, or 0 if err does not wrap
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var cs codeSentinel
	if errors.As(err, &cs) {
		return Code(cs)
	}
	return 0
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code && err != nil
}
