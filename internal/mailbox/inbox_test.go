package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strandrt/fibercore/internal/actorerr"
	"github.com/strandrt/fibercore/internal/strand"
	"github.com/strandrt/fibercore/internal/xvalue"
)

func TestSendThenRecvDelivers(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()
	defer addr.Release()

	go func() {
		err := addr.Send(xvalue.String("ping"), nil)
		require.NoError(t, err)
	}()

	v, err := ib.Recv(nil)
	require.NoError(t, err)
	require.Equal(t, "ping", v.String())
}

func TestRecvBeforeSendQueuesThenDelivers(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()
	defer addr.Release()

	results := make(chan xvalue.Value, 1)
	go func() {
		v, err := ib.Recv(nil)
		require.NoError(t, err)
		results <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, addr.Send(xvalue.Number(7), nil))

	select {
	case v := <-results:
		require.Equal(t, float64(7), v.Number())
	case <-time.After(2 * time.Second):
		t.Fatal("recv never observed delivery")
	}
}

func TestRecvNoSendersFails(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")

	_, err := ib.Recv(nil)
	require.True(t, actorerr.Is(err, actorerr.NoSenders))
}

// testInterrupter is a minimal Interrupter double standing in for a
// fiber's INTERRUPTER slot: it records the installed cancel callback
// so the test can invoke it directly, the way Fiber.Interrupt would.
type testInterrupter struct {
	mu     sync.Mutex
	cancel func()
}

func (t *testInterrupter) InstallInterrupter(cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = cancel
}

func (t *testInterrupter) ClearInterrupter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = nil
}

func (t *testInterrupter) fire() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func TestRecvBusyOnSecondConcurrentRecv(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()
	defer addr.Release()

	blocked := &testInterrupter{}
	firstDone := make(chan struct{})
	go func() {
		_, _ = ib.Recv(blocked)
		close(firstDone)
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := ib.Recv(nil)
	require.True(t, actorerr.Is(err, actorerr.DeviceOrResourceBusy))

	blocked.fire()
	<-firstDone
}

func TestInterruptRecvLeavesQueueEmpty(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()
	defer addr.Release()

	caller := &testInterrupter{}
	result := make(chan error, 1)
	go func() {
		_, err := ib.Recv(caller)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	caller.fire()

	err := <-result
	require.True(t, actorerr.Is(err, actorerr.Interrupted))

	// A fresh recv should now see no waiter installed and, with
	// senders still outstanding, simply block again (verified here by
	// checking NoSenders is NOT returned immediately, i.e. a receiver
	// can be installed again).
	go func() { _, _ = ib.Recv(nil) }()
	time.Sleep(20 * time.Millisecond)
	_, err2 := ib.Recv(nil)
	require.True(t, actorerr.Is(err2, actorerr.DeviceOrResourceBusy))
}

func TestCloseWakesBlockedReceiverAndFailsLaterSend(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()
	defer addr.Release()

	recvErr := make(chan error, 1)
	go func() {
		_, err := ib.Recv(nil)
		recvErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	ib.Close()
	require.True(t, actorerr.Is(<-recvErr, actorerr.ChannelClosed))

	err := addr.Send(xvalue.Bool(true), nil)
	require.True(t, actorerr.Is(err, actorerr.ChannelClosed))
}

func TestLastAddressDropWakesReceiverWithNoSenders(t *testing.T) {
	t.Parallel()

	s := strand.New()
	ib := New(s, "actor-b")
	addr := ib.NewAddress()

	recvErr := make(chan error, 1)
	go func() {
		_, err := ib.Recv(nil)
		recvErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	addr.Release()

	select {
	case err := <-recvErr:
		require.True(t, actorerr.Is(err, actorerr.NoSenders))
	case <-time.After(2 * time.Second):
		t.Fatal("receiver was never woken on final address drop")
	}
}
