package strand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostRunsInFIFOOrder(t *testing.T) {
	t.Parallel()

	s := New()
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		s.Post(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("strand did not drain in time")
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPostFromWithinHandlerPreservesOrder(t *testing.T) {
	t.Parallel()

	s := New()
	var order []int
	done := make(chan struct{})

	s.Post(func() {
		order = append(order, 1)
		s.Post(func() {
			order = append(order, 3)
			close(done)
		})
		order = append(order, 2)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("strand did not drain in time")
	}
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestDeferAndDispatchBehaveLikePost(t *testing.T) {
	t.Parallel()

	s := New()
	var order []int
	done := make(chan struct{})

	s.Post(func() { order = append(order, 1) })
	s.Defer(func() { order = append(order, 2) })
	s.Dispatch(func() {
		order = append(order, 3)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("strand did not drain in time")
	}
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestConcurrentPostersStillSerialiseExecution(t *testing.T) {
	t.Parallel()

	s := New()
	const n = 50
	var count int
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		go s.Post(func() {
			<-mu
			count++
			mu <- struct{}{}
			done <- struct{}{}
		})
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("not all posted work completed")
		}
	}
	require.Equal(t, n, count)
}
