package mailbox

import (
	"github.com/strandrt/fibercore/internal/xvalue"
)

// Address is a send-only capability referencing an actor's inbox.
// Construction and every Retain increment the target inbox's sender
// count; Release decrements it and, on the final drop, wakes a
// blocked receiver with no_senders.
//
// Per the address-identity supplement in SPEC_FULL.md, two Address
// values name the same actor iff they share the same underlying
// Inbox, regardless of how many times the capability was copied —
// mirrored here as value equality over ib.id via ID(), the Go
// counterpart to the original's weak_ptr owner-before comparison.
type Address struct {
	ib *Inbox
}

// NewAddress mints a fresh send-only capability for ib, incrementing
// its sender count.
func (ib *Inbox) NewAddress() *Address {
	ib.nsenders.Add(1)
	return &Address{ib: ib}
}

// ID returns the destination inbox's identity string.
func (a *Address) ID() string { return a.ib.id }

// Retain implements xvalue.AddressHandle: it mints a new capability
// on the same destination inbox, adding one sender. xvalue.Encode does
// not call it; an address placed into a message payload is carried as
// the same handle, with no sender added. The forVM argument is
// informational only — it names the VM performing the retain, not
// the destination, which never changes.
func (a *Address) Retain(forVM string) xvalue.AddressHandle {
	return a.ib.NewAddress()
}

// Send forwards to the destination inbox's Send.
func (a *Address) Send(v xvalue.Value, caller Interrupter) error {
	return a.ib.Send(v, caller)
}

// Release drops this capability. It must be called exactly once per
// Address value (including ones produced by Retain); a second call
// would double-decrement nsenders and is a programming error, not a
// recoverable runtime condition, matching the capability-ownership
// contract addresses carry throughout §3/§4.4.
func (a *Address) Release() {
	n := a.ib.nsenders.Add(-1)
	if n == 0 {
		a.ib.s.Post(a.ib.wakeOnNoSenders)
	}
}

// wakeOnNoSenders runs on ib.s. It re-checks nsenders before waking a
// blocked receiver to avoid a spurious no_senders wake when a fresh
// Address was minted concurrently with this drop finishing — the
// race §3 calls out explicitly ("re-checks nsenders on the
// destination strand").
func (ib *Inbox) wakeOnNoSenders() {
	if ib.nsenders.Load() != 0 {
		return
	}
	if ib.recvWaiter != nil {
		ib.recvWaiter.out <- Outcome{Err: noSendersErr()}
		ib.recvWaiter = nil
	}
}
