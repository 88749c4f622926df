// Package mailbox implements the inbox/address rendezvous protocol of
// §4.4: an unbuffered channel with multiple senders and a single
// receiver per actor, FIFO ordering between a send's delivery and its
// cancellation, and reference-counted sender addresses that wake a
// blocked receiver with no_senders on the final drop.
//
// Every state-mutating step happens inside a closure posted to the
// inbox's owning Strand, which is what makes the deliver/cancel FIFO
// guarantee hold: Send enqueues its delivery action first, and any
// later interrupt enqueues a cancellation behind it on the same
// queue, so the cancellation can never observe an already-consumed
// delivery as if it were still pending.
package mailbox

import (
	"context"
	"sync/atomic"

	"github.com/strandrt/fibercore/internal/actorerr"
	"github.com/strandrt/fibercore/internal/strand"
	"github.com/strandrt/fibercore/internal/xvalue"
)

// Outcome is what a blocked recv resolves to: either a delivered
// Value or a structured error (channel_closed, no_senders, ...).
type Outcome struct {
	Value xvalue.Value
	Err   error
}

// Interrupter lets Recv/Send install a one-shot cancellation callback
// on whichever fiber called in, without this package importing
// internal/fiber — the same decoupling xvalue.AddressHandle uses to
// keep mailbox's dependents out of xvalue. The caller's fiber
// satisfies this with its exported InstallInterrupter/ClearInterrupter
// methods; a caller with no interruption capability (e.g. a plain
// goroutine driving a test) passes nil and blocks unconditionally.
type Interrupter interface {
	InstallInterrupter(cancel func())
	ClearInterrupter()
}

type recvWaiter struct {
	out chan Outcome
}

type senderEntry struct {
	value xvalue.Value
	// result receives nil on successful delivery, or the error the
	// sender fiber should observe (channel_closed, interrupted).
	result chan error
}

// Inbox is the receiving half of an actor's mailbox. The zero value is
// not usable; construct with New.
type Inbox struct {
	s  *strand.Strand
	id string

	// recvWaiter, incoming and open are only ever touched inside a
	// closure running on s — no mutex needed for them.
	recvWaiter *recvWaiter
	incoming   []*senderEntry
	open       bool
	imported   bool

	// nsenders is genuinely cross-strand: addresses are retained and
	// released from arbitrary goroutines, so it is atomic per §3's
	// "Construction and copy increment nsenders atomically".
	nsenders atomic.Int64
}

// New returns an open Inbox bound to s, identified by id (used for
// Address equality and diagnostics — the destination-VM identity
// string from §9's "supplemented" Address identity semantics).
func New(s *strand.Strand, id string) *Inbox {
	return &Inbox{s: s, id: id, open: true}
}

// ID returns the owning VM's identity string.
func (ib *Inbox) ID() string { return ib.id }

// Recv implements §4.4's recv operation. caller, if non-nil, has a
// cancellation callback installed on its INTERRUPTER slot for the
// duration of the wait, so that caller's h:interrupt() unblocks this
// Recv with actorerr.Interrupted instead of leaving it parked forever;
// a nil caller blocks unconditionally. Recv guarantees the inbox's
// recvWaiter slot is cleared before returning, matching property 4 in
// §8 ("recv_fiber is cleared before the receiver is resumed").
func (ib *Inbox) Recv(caller Interrupter) (xvalue.Value, error) {
	out := make(chan Outcome, 1)
	ib.s.Post(func() { ib.beginRecv(out) })

	if caller == nil {
		o := <-out
		return o.Value, o.Err
	}

	caller.InstallInterrupter(func() {
		ib.s.Post(func() { ib.cancelRecv(out) })
	})
	defer caller.ClearInterrupter()

	o := <-out
	return o.Value, o.Err
}

// beginRecv runs on ib.s.
func (ib *Inbox) beginRecv(out chan Outcome) {
	if !ib.open {
		out <- Outcome{Err: actorerr.New(actorerr.ChannelClosed, "inbox closed")}
		return
	}
	if ib.recvWaiter != nil {
		out <- Outcome{Err: actorerr.New(actorerr.DeviceOrResourceBusy, "recv already in progress")}
		return
	}
	if len(ib.incoming) > 0 {
		entry := ib.incoming[0]
		ib.incoming = ib.incoming[1:]
		out <- Outcome{Value: entry.value}
		if entry.result != nil {
			entry.result <- nil
		}
		return
	}
	if ib.nsenders.Load() == 0 {
		out <- Outcome{Err: actorerr.New(actorerr.NoSenders, "no outstanding senders")}
		return
	}
	ib.recvWaiter = &recvWaiter{out: out}
}

// cancelRecv runs on ib.s. Because beginRecv and cancelRecv for the
// same wait are always posted to ib.s in emission order, cancelRecv
// only ever fires against a still-pending recvWaiter — a recv that a
// concurrent deliver already resolved is simply a no-op here, so a
// delivery racing an interrupt on the strand's queue always wins
// instead of being reported as a spurious interruption.
func (ib *Inbox) cancelRecv(out chan Outcome) {
	if ib.recvWaiter != nil && ib.recvWaiter.out == out {
		ib.recvWaiter = nil
		out <- Outcome{Err: actorerr.New(actorerr.Interrupted, "recv interrupted")}
	}
}

// Send implements §4.4's send operation, always posted to this
// (destination) inbox's strand regardless of which strand the caller
// is on. caller, if non-nil, has a cancellation callback installed on
// its INTERRUPTER slot for the duration of the wait, so that caller's
// h:interrupt() unblocks a send still queued behind a slow receiver
// with actorerr.Interrupted; a nil caller blocks unconditionally.
func (ib *Inbox) Send(v xvalue.Value, caller Interrupter) error {
	result := make(chan error, 1)
	entry := &senderEntry{value: v, result: result}
	ib.s.Post(func() { ib.deliver(entry) })

	if caller == nil {
		return <-result
	}

	caller.InstallInterrupter(func() {
		ib.s.Post(func() { ib.cancelSend(entry) })
	})
	defer caller.ClearInterrupter()

	return <-result
}

// deliver runs on ib.s — the destination strand, per §4.4.
func (ib *Inbox) deliver(entry *senderEntry) {
	if !ib.open {
		entry.result <- actorerr.New(actorerr.ChannelClosed, "inbox closed")
		return
	}
	if ib.recvWaiter != nil {
		w := ib.recvWaiter
		ib.recvWaiter = nil
		w.out <- Outcome{Value: entry.value}
		entry.result <- nil
		return
	}
	log.TraceS(context.Background(), "queueing message, no receiver blocked",
		"inbox_id", ib.id, "queue_depth", len(ib.incoming)+1)
	ib.incoming = append(ib.incoming, entry)
}

// cancelSend runs on ib.s. Because deliver and cancelSend for the
// same entry are always posted to ib.s in emission order, cancelSend
// only ever removes an entry that is still genuinely queued — it can
// never race an already-delivered one.
func (ib *Inbox) cancelSend(entry *senderEntry) {
	for i, e := range ib.incoming {
		if e == entry {
			ib.incoming = append(ib.incoming[:i], ib.incoming[i+1:]...)
			e.result <- actorerr.New(actorerr.Interrupted, "send interrupted")
			return
		}
	}
}

// Close implements §4.6's inbox teardown: idempotent, wakes a blocked
// receiver and every queued sender with channel_closed, and clears
// the queue. Close blocks until applied so callers can sequence
// shutdown steps deterministically.
func (ib *Inbox) Close() {
	done := make(chan struct{})
	ib.s.Post(func() {
		ib.doClose()
		close(done)
	})
	<-done
}

func (ib *Inbox) doClose() {
	if !ib.open {
		return
	}
	ib.open = false
	if ib.recvWaiter != nil {
		ib.recvWaiter.out <- Outcome{Err: actorerr.New(actorerr.ChannelClosed, "inbox closed")}
		ib.recvWaiter = nil
	}
	for _, e := range ib.incoming {
		e.result <- actorerr.New(actorerr.ChannelClosed, "inbox closed")
	}
	ib.incoming = nil
}

// IsOpen reports whether the inbox is still open. Safe to call from
// any goroutine; it posts to the strand and waits, so it is not a
// hot-path operation.
func (ib *Inbox) IsOpen() bool {
	result := make(chan bool, 1)
	ib.s.Post(func() { result <- ib.open })
	return <-result
}

// NSenders reports the current live sender-address count.
func (ib *Inbox) NSenders() int64 {
	return ib.nsenders.Load()
}

// MarkImported records that the inbox capability itself (not just a
// derived send-only Address) was handed out to user code — e.g. a
// container supervisor receiving the raw inbox endpoint.
func (ib *Inbox) MarkImported() {
	done := make(chan struct{})
	ib.s.Post(func() {
		ib.imported = true
		close(done)
	})
	<-done
}
