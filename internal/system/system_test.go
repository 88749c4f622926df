package system

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strandrt/fibercore/internal/fiber"
	"github.com/strandrt/fibercore/internal/mailbox"
	"github.com/strandrt/fibercore/internal/xvalue"
)

// TestPingPongAcrossTwoVMs spawns two actors under one System and
// exchanges a ping/pong message pair, checking that both inboxes
// report no outstanding senders once every address is released.
func TestPingPongAcrossTwoVMs(t *testing.T) {
	t.Parallel()

	sys := New(DefaultConfig())

	done := make(chan error, 1)

	spawnedB := sys.SpawnVM(".", "/root/b.vm", true, true, false, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	resB, err := spawnedB.Unpack()
	require.NoError(t, err)
	vmB := resB.VM
	defer vmB.Close()

	bAddr := resB.Addr

	fiber.Spawn(vmB.Fibers, func(f *fiber.Fiber) ([]any, error) {
		msg, err := vmB.Inbox.Recv(nil)
		if err != nil {
			done <- err
			return nil, err
		}
		obj := msg.Object()
		cmd, _ := obj.Get("cmd")
		if cmd.String() != "ping" {
			err := fmt.Errorf("expected ping, got %q", cmd.String())
			done <- err
			return nil, err
		}
		replyVal, _ := obj.Get("reply_to")
		reply := replyVal.Address().(*mailbox.Address)

		pong := xvalue.NewObject()
		pong.Set("cmd", xvalue.String("pong"))
		if err := reply.Send(xvalue.ObjectValue(pong), nil); err != nil {
			done <- err
			return nil, err
		}
		reply.Release()
		done <- nil
		return nil, nil
	})

	spawnedA := sys.SpawnVM(".", "/root/a.vm", true, true, false, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	resA, err := spawnedA.Unpack()
	require.NoError(t, err)
	vmA := resA.VM
	defer vmA.Close()

	aReplyAddr := vmA.Inbox.NewAddress()
	ping := xvalue.NewObject()
	ping.Set("cmd", xvalue.String("ping"))
	ping.Set("reply_to", xvalue.Addr(aReplyAddr))
	require.NoError(t, bAddr.Send(xvalue.ObjectValue(ping), nil))
	bAddr.Release()

	reply, err := vmA.Inbox.Recv(nil)
	require.NoError(t, err)
	obj := reply.Object()
	cmd, _ := obj.Get("cmd")
	require.Equal(t, "pong", cmd.String())

	require.NoError(t, <-done)

	require.Equal(t, int64(0), vmA.Inbox.NSenders())
	require.Equal(t, int64(0), vmB.Inbox.NSenders())
}

func TestSpawnVMFirstCallBecomesMaster(t *testing.T) {
	t.Parallel()

	sys := New(DefaultConfig())
	spawned := sys.SpawnVM(".", "/root/master.vm", true, true, false, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	res, err := spawned.Unpack()
	require.NoError(t, err)
	defer res.VM.Close()

	require.True(t, sys.IsMaster(res.VM.ID()))
}

func TestSpawnVMRejectsLeafCaller(t *testing.T) {
	t.Parallel()

	sys := New(DefaultConfig())
	spawned := sys.SpawnVM("helper.vm", "/root/main.vm", true, false, true, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	_, err := spawned.Unpack()
	require.Error(t, err)
}

func TestShutdownClosesAllTrackedVMs(t *testing.T) {
	t.Parallel()

	sys := New(DefaultConfig())

	var vmIDs []string
	for i := 0; i < 3; i++ {
		spawned := sys.SpawnVM(".", fmt.Sprintf("/root/v%d.vm", i), true, i == 0, false, nil,
			func(f *fiber.Fiber) ([]any, error) { return nil, nil })
		res, err := spawned.Unpack()
		require.NoError(t, err)
		vmIDs = append(vmIDs, res.VM.ID())
	}

	sys.Shutdown()

	for _, id := range vmIDs {
		vm, ok := sys.Lookup(id)
		require.True(t, ok)
		require.False(t, vm.Valid())
	}
}

func TestUnregisterRemovesVMFromShutdownSet(t *testing.T) {
	t.Parallel()

	sys := New(DefaultConfig())
	spawned := sys.SpawnVM(".", "/root/v.vm", true, true, false, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	res, err := spawned.Unpack()
	require.NoError(t, err)

	sys.Unregister(res.VM.ID())
	_, ok := sys.Lookup(res.VM.ID())
	require.False(t, ok)

	// Shutdown must not touch a VM removed from bookkeeping.
	sys.Shutdown()
	require.True(t, res.VM.Valid())
	res.VM.Close()
}

func TestValueLimitsReflectConfig(t *testing.T) {
	t.Parallel()

	sys := New(Config{ValueDepthLimit: 3, ValueArrayLimit: 10})
	depth, arr := sys.ValueLimits()
	require.Equal(t, 3, depth)
	require.Equal(t, 10, arr)
}
