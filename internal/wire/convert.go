package wire

import (
	"github.com/strandrt/fibercore/internal/actorerr"
	"github.com/strandrt/fibercore/internal/xvalue"
)

// EncodeValue converts an xvalue.Value into a Frame. Only the shapes
// a container message realistically carries are supported: a scalar
// leaf, or a flat string-keyed object of scalar values — nested
// containers and arrays don't fit a fixed N-member frame and are
// rejected with NotSupported, matching this format's role as a
// narrow supervisor<->container control channel rather than a
// general transport for the full cross-VM value graph (that's
// internal/xvalue's job for in-process actors).
func EncodeValue(v xvalue.Value) (*Frame, []int, error) {
	switch v.Kind() {
	case xvalue.KindObject:
		return encodeObject(v.Object())
	default:
		var strbuf []byte
		slot, err := encodeLeaf(v, &strbuf)
		if err != nil {
			return nil, nil, err
		}
		return &Frame{Kind: KindLeaf, Slots: [NumMembers]Slot{slot}, Strbuf: strbuf}, nil, nil
	}
}

func encodeObject(obj *xvalue.Object) (*Frame, []int, error) {
	if obj.Len() == 0 {
		return nil, nil, actorerr.New(actorerr.NotSupported, "object root has zero entries")
	}
	if obj.Len() >= NumMembers {
		return nil, nil, actorerr.New(actorerr.NotSupported, "object root exceeds frame capacity")
	}

	f := &Frame{Kind: KindObject, EntryCount: uint8(obj.Len())}
	var strbuf []byte

	// All length-prefixed keys go first, packed from the start of
	// Strbuf, so Unmarshal can read them back in sequence; string and
	// address values are appended after them.
	for _, key := range obj.Keys() {
		if len(key) > 255 {
			return nil, nil, actorerr.New(actorerr.NotSupported, "object key too long for wire frame")
		}
		strbuf = append(strbuf, byte(len(key)))
		strbuf = append(strbuf, key...)
	}
	for i, key := range obj.Keys() {
		val, _ := obj.Get(key)
		slot, err := encodeLeaf(val, &strbuf)
		if err != nil {
			return nil, nil, err
		}
		f.Slots[i] = slot
	}
	f.Slots[obj.Len()] = NilSlot()
	f.Strbuf = strbuf
	return f, nil, nil
}

// encodeLeaf encodes a scalar (or address) value as a Slot, appending
// any string/address payload bytes to *buf. File-descriptor leaves
// have no xvalue representation (xvalue's sum type has no fd kind —
// fds only appear on the decode side, produced by the receiving
// collaborator that owns the accepted descriptor), so encoding never
// emits a TagFD slot.
func encodeLeaf(v xvalue.Value, buf *[]byte) (Slot, error) {
	switch v.Kind() {
	case xvalue.KindBool:
		return BoolSlot(v.Bool()), nil
	case xvalue.KindNumber:
		return NumberSlot(v.Number()), nil
	case xvalue.KindString:
		off := uint32(len(*buf))
		*buf = append(*buf, v.String()...)
		return StringSlot(off, uint32(len(v.String()))), nil
	case xvalue.KindAddress:
		id := v.Address().ID()
		off := uint32(len(*buf))
		*buf = append(*buf, id...)
		return AddressSlot(off, uint32(len(id))), nil
	default:
		return Slot(0), actorerr.New(actorerr.NotSupported,
			"value kind is not transferable over the container wire format")
	}
}

// DecodeValue rebuilds an xvalue.Value from a validated Frame. fds
// are the ancillary descriptors received alongside it (already
// matched to TagFD slots by position); rebindAddress converts a
// decoded address correlation id plus fd-free supervisor context
// into a concrete xvalue.AddressHandle — callers without a live
// supervisor link (e.g. tests) may pass nil, in which case address
// leaves decode to a nil AddressHandle.
func DecodeValue(f *Frame, fds []int, rebindAddress func(id string) xvalue.AddressHandle) (xvalue.Value, error) {
	switch f.Kind {
	case KindLeaf:
		return decodeLeaf(f, f.Slots[0], fds, rebindAddress)
	case KindObject:
		obj := xvalue.NewObject()
		for i, key := range f.Keys {
			v, err := decodeLeaf(f, f.Slots[i], fds, rebindAddress)
			if err != nil {
				return xvalue.Value{}, err
			}
			obj.Set(key, v)
		}
		return xvalue.ObjectValue(obj), nil
	default:
		return xvalue.Value{}, actorerr.New(actorerr.InvalidArgument, "unrecognised frame kind")
	}
}

func decodeLeaf(f *Frame, s Slot, fds []int, rebindAddress func(string) xvalue.AddressHandle) (xvalue.Value, error) {
	if !s.IsBoxed() {
		return xvalue.Number(s.Number()), nil
	}
	switch s.Tag() {
	case TagFalse:
		return xvalue.Bool(false), nil
	case TagTrue:
		return xvalue.Bool(true), nil
	case TagString:
		off, length := s.StringRef()
		return xvalue.String(string(f.Strbuf[off : off+length])), nil
	case TagAddress:
		off, length := s.StringRef()
		id := string(f.Strbuf[off : off+length])
		if rebindAddress == nil {
			return xvalue.Addr(nil), nil
		}
		return xvalue.Addr(rebindAddress(id)), nil
	case TagFD:
		idx := int(s.FDIndex())
		if idx >= len(fds) {
			return xvalue.Value{}, actorerr.New(actorerr.InvalidArgument,
				"fd slot references a descriptor that was not received")
		}
		// File descriptors are represented as a number (the local fd
		// value) once capability-transferred into the receiver; the
		// receiving collaborator (the stated I/O subsystem, §1) is
		// responsible for wrapping it in a real file/socket object.
		return xvalue.Number(float64(fds[idx])), nil
	case TagNil:
		return xvalue.Value{}, actorerr.New(actorerr.InvalidArgument,
			"nil sentinel cannot appear as a decoded leaf value")
	default:
		return xvalue.Value{}, actorerr.New(actorerr.InvalidArgument,
			"unknown signalling-NaN mantissa")
	}
}
