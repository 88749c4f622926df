// Package xvalue implements the cross-VM value: the recursive sum
// type (§3) that a message payload is copied into on send and rebuilt
// from on receive, plus the serialiser and deserialiser described in
// §4.5. The serialiser (Encode) is iterative; the deserialiser
// (Decode) recurses once per nesting level.
//
// Value itself has no dependency on any concrete interpreter or on
// the mailbox package's Address type — it only depends on the
// AddressHandle interface below, which mailbox.Address implements.
// That keeps the serialiser reusable from both the in-process goja
// adapter (internal/engine) and the container wire codec
// (internal/wire), and avoids an import cycle with internal/mailbox.
package xvalue

import "fmt"

// AddressHandle is the capability surface a Value needs from an actor
// address: enough to transfer it between VMs without xvalue knowing
// anything about strands, inboxes, or reference counting.
type AddressHandle interface {
	// Retain returns a new handle for use inside forVM, incrementing
	// whatever sender-count bookkeeping the concrete type performs.
	// Encode and Decode do not call it: an AddressHandle passes through
	// them unchanged, so no new handle is minted and no sender is added
	// when an address is transferred.
	Retain(forVM string) AddressHandle
	// ID returns a stable string identity. Equal compares addresses by
	// it, and internal/wire transmits it as the address's correlation
	// id.
	ID() string
}

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
	KindAddress
)

// Value is the recursive sum type bool | number | string |
// object(map<string,value>) | array(list<value>) | actor_address.
// The zero Value is KindNil.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	object  *Object
	array   *Array
	address AddressHandle
}

// Object is an ordered string-keyed map. Order is preserved from
// traversal so re-serialisation is deterministic; it carries no
// semantic weight of its own.
type Object struct {
	keys   []string
	values map[string]Value
}

// Array is an ordered list of Values.
type Array struct {
	items []Value
}

func Nil() Value                { return Value{kind: KindNil} }
func Bool(b bool) Value         { return Value{kind: KindBool, boolean: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, number: n} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Addr(h AddressHandle) Value { return Value{kind: KindAddress, address: h} }

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set assigns key=v, appending key to the order the first time it is
// seen. Non-string keys never reach this type — the serialiser drops
// them before constructing an Object, per §4.5 rule 3.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Keys() []string { return o.keys }
func (o *Object) Len() int       { return len(o.keys) }

func NewArray() *Array { return &Array{} }

func (a *Array) Append(v Value) { a.items = append(a.items, v) }
func (a *Array) Len() int       { return len(a.items) }
func (a *Array) At(i int) Value { return a.items[i] }
func (a *Array) Items() []Value { return a.items }

func ObjectValue(o *Object) Value { return Value{kind: KindObject, object: o} }
func ArrayValue(a *Array) Value   { return Value{kind: KindArray, array: a} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool              { return v.boolean }
func (v Value) Number() float64         { return v.number }
func (v Value) String() string         { return v.str }
func (v Value) Object() *Object         { return v.object }
func (v Value) Array() *Array           { return v.array }
func (v Value) Address() AddressHandle  { return v.address }

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindAddress:
		return "actor_address"
	default:
		return fmt.Sprintf("xvalue.Kind(%d)", int(k))
	}
}

// Equal reports deep structural equality, used by the serialiser
// round-trip tests. Address values compare by ID since two retained
// handles to the same destination are not the same Go value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return a.number == b.number
	case KindString:
		return a.str == b.str
	case KindAddress:
		if a.address == nil || b.address == nil {
			return a.address == b.address
		}
		return a.address.ID() == b.address.ID()
	case KindObject:
		if a.object.Len() != b.object.Len() {
			return false
		}
		for _, k := range a.object.keys {
			av, _ := a.object.Get(k)
			bv, ok := b.object.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindArray:
		if a.array.Len() != b.array.Len() {
			return false
		}
		for i := range a.array.items {
			if !Equal(a.array.items[i], b.array.items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
