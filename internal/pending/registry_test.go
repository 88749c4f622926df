package pending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type countingOp struct{ cancels int }

func (o *countingOp) Cancel() { o.cancels++ }

func TestDrainCancelsInOrderOnce(t *testing.T) {
	t.Parallel()

	r := New()
	var order []int
	op1 := opFunc(func() { order = append(order, 1) })
	op2 := opFunc(func() { order = append(order, 2) })
	r.Register(op1, false)
	r.Register(op2, false)

	require.Equal(t, 2, r.Len())
	r.Drain()
	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, 0, r.Len())
}

func TestSharedOwnershipNotFreedByDrain(t *testing.T) {
	t.Parallel()

	r := New()
	op := &countingOp{}
	h := r.Register(op, true)

	r.Drain()
	require.Equal(t, 1, op.cancels)
	require.Equal(t, 1, r.Len(), "shared node must not be auto-deleted")

	r.Forget(h)
	require.Equal(t, 0, r.Len())
}

func TestStaleHandleIsNoop(t *testing.T) {
	t.Parallel()

	r := New()
	op := &countingOp{}
	h := r.Register(op, false)
	r.Forget(h)

	r.Cancel(h)
	require.Equal(t, 0, op.cancels)
}

func TestReentrantRegisterDuringDrainNotReprocessed(t *testing.T) {
	t.Parallel()

	r := New()
	var secondCancelled bool
	first := opFunc(func() {
		r.Register(opFunc(func() { secondCancelled = true }), false)
	})
	r.Register(first, false)

	r.Drain()
	require.False(t, secondCancelled, "nodes added during drain must not be reprocessed")
	require.Equal(t, 1, r.Len())
}

type opFunc func()

func (f opFunc) Cancel() { f() }
