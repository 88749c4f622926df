package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJoinSuccess(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	caller := New()

	target := Spawn(reg, func(f *Fiber) ([]any, error) {
		return []any{1, "two", true}, nil
	})

	result, err := target.Join(caller, nil)
	require.NoError(t, err)
	require.False(t, result.Interrupted)
	require.NoError(t, result.Err)
	require.Equal(t, []any{1, "two", true}, result.Results)
}

func TestJoinError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	caller := New()

	sentinel := errMarker{code: 42}
	target := Spawn(reg, func(f *Fiber) ([]any, error) {
		return nil, sentinel
	})

	result, err := target.Join(caller, nil)
	require.NoError(t, err)
	require.Equal(t, sentinel, result.Err)
}

func TestJoinSelfFails(t *testing.T) {
	t.Parallel()

	self := New()
	_, err := self.Join(self, nil)
	require.Error(t, err)
}

func TestJoinInterrupted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	caller := New()
	blockForever := make(chan struct{})

	target := Spawn(reg, func(f *Fiber) ([]any, error) {
		<-blockForever
		return nil, nil
	})

	interrupt := make(chan struct{})
	done := make(chan JoinResult, 1)
	go func() {
		result, err := target.Join(caller, interrupt)
		require.NoError(t, err)
		done <- result
	}()

	time.Sleep(10 * time.Millisecond)
	close(interrupt)

	select {
	case result := <-done:
		require.True(t, result.Interrupted)
	case <-time.After(2 * time.Second):
		t.Fatal("join did not return after interrupt")
	}

	close(blockForever)
}

func TestForbidSuspendBlocksYield(t *testing.T) {
	t.Parallel()

	f := New()
	f.ForbidSuspend()

	err := f.CheckSuspend()
	require.Error(t, err)

	// counter unchanged on a failed suspension check
	require.NoError(t, f.AllowSuspend())
	require.Error(t, f.AllowSuspend()) // now at zero, underflow fails
}

func TestInterruptionDisabledMasksLatch(t *testing.T) {
	t.Parallel()

	f := New()
	f.DisableInterruption()
	f.Interrupt(true)

	require.False(t, f.ConsumeInterrupted())

	require.NoError(t, f.RestoreInterruption())
	require.True(t, f.ConsumeInterrupted())
}

func TestDetachThenJoinFails(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	caller := New()
	blockForever := make(chan struct{})
	target := Spawn(reg, func(f *Fiber) ([]any, error) {
		<-blockForever
		return nil, nil
	})
	defer close(blockForever)

	require.NoError(t, target.Detach())
	_, err := target.Join(caller, nil)
	require.Error(t, err)
}

type errMarker struct{ code int }

func (e errMarker) Error() string { return "marker error" }
