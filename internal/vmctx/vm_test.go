package vmctx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeInterp struct {
	closed   bool
	closeErr error
}

func (f *fakeInterp) Close() error {
	f.closed = true
	return f.closeErr
}

func TestNewVMStartsValid(t *testing.T) {
	t.Parallel()

	vm := New("vm-1", nil)
	require.True(t, vm.Valid())
	require.Equal(t, "vm-1", vm.ID())
	require.True(t, vm.Inbox.IsOpen())
}

func TestCloseClosesInterpreterInboxAndPending(t *testing.T) {
	t.Parallel()

	interp := &fakeInterp{}
	vm := New("vm-2", interp)

	cancelled := false
	op := cancelOpFor(func() { cancelled = true })
	vm.Pending.Register(op, false)

	vm.Close()

	require.False(t, vm.Valid())
	require.True(t, interp.closed)
	require.False(t, vm.Inbox.IsOpen())
	require.True(t, cancelled)
	require.Equal(t, 0, vm.Pending.Len())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	interp := &fakeInterp{}
	vm := New("vm-3", interp)

	vm.Close()
	vm.Close()
	require.False(t, vm.Valid())
}

func TestSetInterpreterAfterConstruction(t *testing.T) {
	t.Parallel()

	vm := New("vm-4", nil)
	interp := &fakeInterp{}
	vm.SetInterpreter(interp)
	vm.Close()
	require.True(t, interp.closed)
}

func TestExitRequestRoundTrip(t *testing.T) {
	t.Parallel()

	vm := New("vm-5", nil)
	requested, code := vm.ExitRequest()
	require.False(t, requested)
	require.Equal(t, 0, code)

	vm.RequestExit(7)
	requested, code = vm.ExitRequest()
	require.True(t, requested)
	require.Equal(t, 7, code)
}

func TestRecordCleanupErrorAndDeadlockDoNotPanicOnClose(t *testing.T) {
	t.Parallel()

	vm := New("vm-6", nil)
	vm.MarkMemoryFault()
	vm.RecordCleanupError(errors.New("cleanup handler faulted"))
	vm.RecordDeadlockReport("fiber 3 stuck in recv")
	vm.Close()
	require.False(t, vm.Valid())
}

type cancelOpFunc func()

func (f cancelOpFunc) Cancel() { f() }

func cancelOpFor(fn func()) cancelOpFunc {
	return cancelOpFunc(fn)
}
