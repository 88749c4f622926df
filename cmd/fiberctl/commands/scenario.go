package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strandrt/fibercore/internal/actorerr"
	"github.com/strandrt/fibercore/internal/fiber"
	"github.com/strandrt/fibercore/internal/mailbox"
	"github.com/strandrt/fibercore/internal/pending"
	"github.com/strandrt/fibercore/internal/sysapi"
	"github.com/strandrt/fibercore/internal/system"
	"github.com/strandrt/fibercore/internal/vmctx"
	"github.com/strandrt/fibercore/internal/xvalue"
)

// scenarioCmd groups the testable end-to-end scenarios as
// subcommands, one per seed scenario.
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a seed scenario against the concurrency core",
}

func init() {
	for _, s := range []struct {
		use  string
		desc string
		run  func() error
	}{
		{"ping", "Spawn two actors and exchange ping/pong", runPingScenario},
		{"join-success", "Join a fiber that returns normally", runJoinSuccessScenario},
		{"join-error", "Join a fiber that raises an error", runJoinErrorScenario},
		{"interrupt-recv", "Interrupt a fiber blocked in recv", runInterruptRecvScenario},
		{"forbid-suspend", "Exercise forbid_suspend/allow_suspend", runForbidSuspendScenario},
		{"shutdown-drain", "Drain a pending operation on shutdown", runShutdownDrainScenario},
	} {
		s := s
		scenarioCmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.desc,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := s.run(); err != nil {
					return err
				}
				fmt.Printf("%s: PASS\n", s.use)
				return nil
			},
		})
	}
}

// newDemoVM builds a bare VM context for scenarios that only need a
// strand/inbox/fiber-registry triple and no interpreter.
func newDemoVM(id string) *vmctx.VM {
	return vmctx.New(id, nil)
}

// runPingScenario implements seed scenario 1: actor A spawns actor B,
// A sends {cmd="ping"} to B, B recvs and replies {cmd="pong"} on the
// embedded reply address, A recvs and closes. Both inboxes must reach
// no_senders once every address referencing them is released.
func runPingScenario() error {
	a := newDemoVM("actor-a")
	b := newDemoVM("actor-b")
	defer a.Close()
	defer b.Close()

	bAddr := b.Inbox.NewAddress()
	done := make(chan error, 1)

	fiber.Spawn(b.Fibers, func(f *fiber.Fiber) ([]any, error) {
		msg, err := b.Inbox.Recv(nil)
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

	aReplyAddr := a.Inbox.NewAddress()
	ping := xvalue.NewObject()
	ping.Set("cmd", xvalue.String("ping"))
	ping.Set("reply_to", xvalue.Addr(aReplyAddr))
	if err := bAddr.Send(xvalue.ObjectValue(ping), nil); err != nil {
		return err
	}
	bAddr.Release()

	reply, err := a.Inbox.Recv(nil)
	if err != nil {
		return err
	}
	obj := reply.Object()
	cmd, _ := obj.Get("cmd")
	if cmd.String() != "pong" {
		return fmt.Errorf("expected pong, got %q", cmd.String())
	}

	if err := <-done; err != nil {
		return err
	}

	if n := a.Inbox.NSenders(); n != 0 {
		return fmt.Errorf("actor A inbox has %d outstanding senders, want 0", n)
	}
	if n := b.Inbox.NSenders(); n != 0 {
		return fmt.Errorf("actor B inbox has %d outstanding senders, want 0", n)
	}
	return nil
}

// runJoinSuccessScenario implements seed scenario 2: F returns
// (1, "two", true); F:join() returns those same results with no
// error.
func runJoinSuccessScenario() error {
	vm := newDemoVM("join-success")
	defer vm.Close()

	parent := fiber.New(fiber.WithSourcePath("."))
	child := fiber.Spawn(vm.Fibers, func(f *fiber.Fiber) ([]any, error) {
		return []any{1, "two", true}, nil
	})

	<-child.Done()
	result, err := child.Join(parent, nil)
	if err != nil {
		return err
	}
	if result.Err != nil {
		return fmt.Errorf("unexpected join error: %w", result.Err)
	}
	want := []any{1, "two", true}
	if len(result.Results) != len(want) {
		return fmt.Errorf("got %d results, want %d", len(result.Results), len(want))
	}
	for i := range want {
		if result.Results[i] != want[i] {
			return fmt.Errorf("result[%d] = %v, want %v", i, result.Results[i], want[i])
		}
	}
	return nil
}

// runJoinErrorScenario implements seed scenario 3: F raises
// {code=42, category=X}; F:join() re-raises the same error verbatim.
func runJoinErrorScenario() error {
	vm := newDemoVM("join-error")
	defer vm.Close()

	raised := actorerr.New(actorerr.RaiseError, "raised error").
		WithField("code", 42).WithField("category", "X")

	parent := fiber.New(fiber.WithSourcePath("."))
	child := fiber.Spawn(vm.Fibers, func(f *fiber.Fiber) ([]any, error) {
		return nil, raised
	})

	<-child.Done()
	result, err := child.Join(parent, nil)
	if err != nil {
		return err
	}
	if result.Err == nil {
		return fmt.Errorf("expected a join error, got none")
	}
	if !actorerr.Is(result.Err, actorerr.RaiseError) {
		return fmt.Errorf("join error lost its code: %v", result.Err)
	}
	return nil
}

// runInterruptRecvScenario implements seed scenario 4: F calls
// inbox:recv and blocks; the parent interrupts F; F's join returns
// cleanly with interruption_caught() == true and the inbox still open
// (the recv waiter slot itself is not inspected here).
func runInterruptRecvScenario() error {
	vm := newDemoVM("interrupt-recv")
	defer vm.Close()

	// Hold an address on the inbox so nsenders > 0 and the child's
	// Recv genuinely blocks instead of failing immediately with
	// no_senders.
	addr := vm.Inbox.NewAddress()
	defer addr.Release()

	parent := fiber.New(fiber.WithSourcePath("."))

	child := fiber.Spawn(vm.Fibers, func(f *fiber.Fiber) ([]any, error) {
		_, err := vm.Inbox.Recv(f)
		if err != nil {
			return nil, err
		}
		return nil, nil
	})

	// Give the child a moment to reach Recv and block, then interrupt
	// it. A real scheduler would observe the suspension point directly;
	// this stand-in just waits long enough for the goroutine to start.
	// The wake comes entirely through h:interrupt() invoking the
	// INTERRUPTER the child installed on itself for the blocked recv.
	time.Sleep(10 * time.Millisecond)
	child.Interrupt(false)

	<-child.Done()
	result, err := child.Join(parent, nil)
	if err != nil {
		return err
	}
	if result.Err != nil && !actorerr.Is(result.Err, actorerr.Interrupted) {
		return fmt.Errorf("unexpected join error: %w", result.Err)
	}
	caught, err := child.InterruptionCaught()
	if err != nil {
		return err
	}
	if !caught {
		return fmt.Errorf("expected interruption_caught() == true")
	}
	if vm.Inbox.IsOpen() == false {
		return fmt.Errorf("inbox unexpectedly closed")
	}
	return nil
}

// runForbidSuspendScenario implements seed scenario 5: inside
// forbid_suspend...allow_suspend, a suspension-point check fails with
// forbid_suspend_block and the counter is unchanged on failure.
func runForbidSuspendScenario() error {
	f := fiber.New(fiber.WithSourcePath("."))

	f.ForbidSuspend()
	if err := f.CheckSuspend(); !actorerr.Is(err, actorerr.ForbidSuspendBlock) {
		return fmt.Errorf("expected forbid_suspend_block, got %v", err)
	}
	// A second suspension attempt must fail identically — the counter
	// was left unchanged by the first failed check.
	if err := f.CheckSuspend(); !actorerr.Is(err, actorerr.ForbidSuspendBlock) {
		return fmt.Errorf("expected forbid_suspend_block again, got %v", err)
	}
	if err := f.AllowSuspend(); err != nil {
		return fmt.Errorf("allow_suspend failed: %w", err)
	}
	if err := f.CheckSuspend(); err != nil {
		return fmt.Errorf("expected suspension to be allowed again, got %v", err)
	}
	return nil
}

// cancelOp is a pending.Op stub that records whether Cancel ran and
// how many times.
type cancelOp struct {
	calls chan struct{}
}

func (c *cancelOp) Cancel() {
	c.calls <- struct{}{}
}

// runShutdownDrainScenario implements seed scenario 6: it spawns a
// master VM (whose main fiber returns at once), registers a pending
// operation on that VM from the command goroutine, checks that force=0
// parses as a graceful exit, and calls sys.Shutdown; the pending op's
// Cancel must run exactly once and the VM must be drained and invalid
// afterwards. (sys.Exit itself is not called here — unlike the other
// scenarios this one would otherwise end the fiberctl process via
// sysapi.Apply before this command could report its result, so the
// drain half — sys.Shutdown, exactly what Exit calls before Apply —
// is exercised directly and the force/exit-code parsing is verified
// separately against sysapi.ParseForce.)
func runShutdownDrainScenario() error {
	sys := system.New(system.DefaultConfig())

	spawned := sys.SpawnVM(".", "/root", true, true, false, nil,
		func(f *fiber.Fiber) ([]any, error) { return nil, nil })
	res, err := spawned.Unpack()
	if err != nil {
		return err
	}
	vm := res.VM

	op := &cancelOp{calls: make(chan struct{}, 4)}
	var handle pending.Handle = vm.Pending.Register(op, false)
	_ = handle

	if _, err := sysapi.ParseForce(0); err != nil {
		return fmt.Errorf("force=0 should parse as graceful exit: %w", err)
	}

	sys.Shutdown()

	select {
	case <-op.calls:
	default:
		return fmt.Errorf("pending operation was never cancelled")
	}
	select {
	case <-op.calls:
		return fmt.Errorf("pending operation was cancelled more than once")
	default:
	}

	if vm.Pending.Len() != 0 {
		return fmt.Errorf("pending registry still has %d live entries after drain", vm.Pending.Len())
	}
	if vm.Valid() {
		return fmt.Errorf("vm still reports valid after shutdown")
	}
	return nil
}
