package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// NumMembers is N, the fixed number of value slots a Frame carries.
// Chosen generously enough for a typical supervisor<->container
// control message (status updates, small key/value records) while
// keeping frames a small multiple of a page.
const NumMembers = 16

// MaxStrbuf bounds the auxiliary string buffer's length, so a
// corrupt declared length can never be used to justify an
// unreasonably large allocation before validation runs.
const MaxStrbuf = 4096

// headerSize is the fixed 8-byte header Marshal writes ahead of the
// slots: Kind, EntryCount, FDCount, a reserved pad byte, and a
// little-endian uint32 Strbuf length.
const headerSize = 8

// FrameSize is the size in bytes of a maximally-sized well-formed
// frame: header + N slots + the full Strbuf. A supervisor rejects any
// datagram longer than this without attempting to parse it.
const FrameSize = headerSize + NumMembers*8 + MaxStrbuf

// Kind discriminates the two root shapes §4.7 describes.
type Kind uint8

const (
	// KindLeaf: the root is a single leaf value at Slots[0].
	KindLeaf Kind = iota
	// KindObject: the root is a string-keyed object with EntryCount
	// values at Slots[0:EntryCount], terminated by Slots[EntryCount]
	// holding NilSlot().
	KindObject
)

// Frame is the decoded, not-yet-validated wire structure.
type Frame struct {
	Kind       Kind
	EntryCount uint8
	FDCount    uint8
	Slots      [NumMembers]Slot
	Strbuf     []byte
	// Keys holds the EntryCount key strings read from Strbuf, in
	// slot order, for KindObject frames.
	Keys []string
}

// Marshal serialises f into a byte slice, ready to hand to SendFrame
// together with whatever fds the caller passes alongside it. It
// performs no validation (a Strbuf longer than MaxStrbuf is written as
// is); Unmarshal is solely responsible for rejecting hostile input.
func (f *Frame) Marshal() []byte {
	buf := make([]byte, headerSize+NumMembers*8+len(f.Strbuf))
	buf[0] = byte(f.Kind)
	buf[1] = f.EntryCount
	buf[2] = f.FDCount
	buf[3] = 0
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(f.Strbuf)))

	for i, s := range f.Slots {
		binary.LittleEndian.PutUint64(buf[headerSize+i*8:headerSize+i*8+8], uint64(s))
	}
	copy(buf[headerSize+NumMembers*8:], f.Strbuf)
	return buf
}

// Unmarshal validates and decodes raw into a Frame. fdCount is the
// number of file descriptors actually received via ancillary data
// alongside raw; Unmarshal only counts them and never takes
// ownership of any descriptor.
//
// Checks run in this order:
//  1. short read (< 2 slots worth of payload) or long read (> one
//     full frame);
//  2. a declared Strbuf length over MaxStrbuf, or raw too short to
//     hold the slots plus the declared Strbuf;
//  3. an unknown signalling-NaN mantissa;
//  4. fd count greater than the number of slots that require fds;
//  5. for a leaf root: a leaf tag that requires a missing fd, then a
//     string whose declared length plus position overruns strbuf;
//  6. for an object root: zero entries or no terminating nil slot,
//     then per entry its key, a missing fd and a string overrun.
func Unmarshal(raw []byte, fdCount int) (*Frame, error) {
	if len(raw) < headerSize+2*8 {
		return nil, shortRead()
	}
	if len(raw) > FrameSize {
		return nil, longRead()
	}

	f := &Frame{
		Kind:       Kind(raw[0]),
		EntryCount: raw[1],
		FDCount:    raw[2],
	}
	strbufLen := binary.LittleEndian.Uint32(raw[4:8])
	if int(strbufLen) > MaxStrbuf {
		return nil, longRead()
	}

	slotsEnd := headerSize + NumMembers*8
	if slotsEnd+int(strbufLen) > len(raw) {
		return nil, actorerr.New(actorerr.InvalidArgument,
			"frame shorter than its slots plus declared strbuf")
	}
	for i := 0; i < NumMembers; i++ {
		off := headerSize + i*8
		f.Slots[i] = Slot(binary.LittleEndian.Uint64(raw[off : off+8]))
	}
	f.Strbuf = raw[slotsEnd : slotsEnd+int(strbufLen)]

	fdSlots := 0
	for i := 0; i < NumMembers; i++ {
		s := f.Slots[i]
		if s.IsBoxed() && !s.Tag().KnownTag() {
			return nil, actorerr.New(actorerr.InvalidArgument,
				"unknown signalling-NaN mantissa in frame slot")
		}
		if s.IsBoxed() && s.Tag() == TagFD {
			fdSlots++
		}
	}
	if fdCount > fdSlots {
		return nil, actorerr.New(actorerr.InvalidArgument,
			"more file descriptors received than slots require")
	}
	if int(f.FDCount) > fdSlots {
		return nil, actorerr.New(actorerr.InvalidArgument,
			"declared fd count exceeds fd-requiring slots")
	}

	switch f.Kind {
	case KindLeaf:
		if err := f.validateLeafRoot(fdCount); err != nil {
			return nil, err
		}
	case KindObject:
		if err := f.validateObjectRoot(fdCount); err != nil {
			return nil, err
		}
	default:
		return nil, actorerr.New(actorerr.InvalidArgument, "unrecognised frame kind")
	}

	return f, nil
}

func (f *Frame) validateLeafRoot(fdCount int) error {
	root := f.Slots[0]
	if root.IsBoxed() && root.Tag() == TagFD && fdCount == 0 {
		return actorerr.New(actorerr.InvalidArgument,
			"leaf root requires a file descriptor that was not received")
	}
	return f.validateStringRef(root)
}

func (f *Frame) validateObjectRoot(fdCount int) error {
	if f.EntryCount == 0 {
		return actorerr.New(actorerr.InvalidArgument, "object root has zero entries")
	}
	if int(f.EntryCount) >= NumMembers {
		return actorerr.New(actorerr.InvalidArgument, "object root entry count exceeds frame capacity")
	}
	if term := f.Slots[f.EntryCount]; !(term.IsBoxed() && term.Tag() == TagNil) {
		return actorerr.New(actorerr.InvalidArgument, "object root missing terminating nil slot")
	}

	keys := make([]string, 0, f.EntryCount)
	pos := 0
	for i := 0; i < int(f.EntryCount); i++ {
		if pos >= len(f.Strbuf) {
			return actorerr.New(actorerr.InvalidArgument, "object key overruns strbuf")
		}
		klen := int(f.Strbuf[pos])
		pos++
		if pos+klen > len(f.Strbuf) {
			return actorerr.New(actorerr.InvalidArgument, "object key overruns strbuf")
		}
		keys = append(keys, string(f.Strbuf[pos:pos+klen]))
		pos += klen

		v := f.Slots[i]
		if v.IsBoxed() && v.Tag() == TagFD && fdCount == 0 {
			return actorerr.New(actorerr.InvalidArgument,
				"object value requires a file descriptor that was not received")
		}
		if err := f.validateStringRef(v); err != nil {
			return err
		}
	}
	f.Keys = keys
	return nil
}

// validateStringRef checks a TagString/TagAddress slot's declared
// offset+length against the actual Strbuf bounds.
func (f *Frame) validateStringRef(s Slot) error {
	if !s.IsBoxed() {
		return nil
	}
	if s.Tag() != TagString && s.Tag() != TagAddress {
		return nil
	}
	offset, length := s.StringRef()
	if uint64(offset)+uint64(length) > uint64(len(f.Strbuf)) {
		return actorerr.New(actorerr.InvalidArgument,
			"string slot overruns strbuf")
	}
	return nil
}

func shortRead() error {
	return actorerr.New(actorerr.InvalidArgument, "frame shorter than two slots")
}

func longRead() error {
	return actorerr.New(actorerr.InvalidArgument, "frame longer than one full frame")
}

// String renders a compact diagnostic summary, never the full
// Strbuf contents (which may carry capability-bearing names).
func (f *Frame) String() string {
	return fmt.Sprintf("wire.Frame{kind=%d entries=%d fds=%d strbuf=%dB}",
		f.Kind, f.EntryCount, f.FDCount, len(f.Strbuf))
}
