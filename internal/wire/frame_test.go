package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/strandrt/fibercore/internal/xvalue"
)

func TestRoundTripScalarLeaf(t *testing.T) {
	t.Parallel()

	for _, v := range []xvalue.Value{
		xvalue.Bool(true),
		xvalue.Bool(false),
		xvalue.Number(42.5),
		xvalue.String("hello world"),
	} {
		f, fds, err := EncodeValue(v)
		require.NoError(t, err)
		require.Empty(t, fds)

		raw := f.Marshal()
		decoded, err := Unmarshal(raw, 0)
		require.NoError(t, err)

		out, err := DecodeValue(decoded, nil, nil)
		require.NoError(t, err)
		require.True(t, xvalue.Equal(v, out))
	}
}

func TestRoundTripObject(t *testing.T) {
	t.Parallel()

	obj := xvalue.NewObject()
	obj.Set("cmd", xvalue.String("ping"))
	obj.Set("seq", xvalue.Number(7))
	root := xvalue.ObjectValue(obj)

	f, _, err := EncodeValue(root)
	require.NoError(t, err)

	decoded, err := Unmarshal(f.Marshal(), 0)
	require.NoError(t, err)

	out, err := DecodeValue(decoded, nil, nil)
	require.NoError(t, err)
	require.True(t, xvalue.Equal(root, out))
}

func TestEmptyObjectRejected(t *testing.T) {
	t.Parallel()

	_, _, err := EncodeValue(xvalue.ObjectValue(xvalue.NewObject()))
	require.Error(t, err)
}

func TestUnmarshalRejectsShortRead(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal([]byte{0, 0, 0, 0}, 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsLongRead(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal(make([]byte, FrameSize+1), 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsExcessFDs(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindLeaf}
	f.Slots[0] = BoolSlot(true) // no TagFD slots present
	_, err := Unmarshal(f.Marshal(), 1)
	require.Error(t, err)
}

func TestUnmarshalRejectsMissingLeafFD(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindLeaf}
	f.Slots[0] = FDSlot(0)
	_, err := Unmarshal(f.Marshal(), 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsZeroEntryObject(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindObject, EntryCount: 0}
	_, err := Unmarshal(f.Marshal(), 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsMissingTerminator(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindObject, EntryCount: 1}
	f.Strbuf = append([]byte{byte('k')}, "k"...)
	f.Slots[0] = BoolSlot(true)
	f.Slots[1] = BoolSlot(true) // not a nil terminator
	_, err := Unmarshal(f.Marshal(), 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsStringOverrun(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindLeaf}
	f.Slots[0] = StringSlot(0, 100) // declares 100 bytes, strbuf is empty
	_, err := Unmarshal(f.Marshal(), 0)
	require.Error(t, err)
}

func TestUnmarshalRejectsUnknownTag(t *testing.T) {
	t.Parallel()

	f := &Frame{Kind: KindLeaf}
	// Craft a boxed slot with a tag value beyond the recognised set.
	f.Slots[0] = Slot(boxMask | uint64(tagCount)<<tagShift)
	_, err := Unmarshal(f.Marshal(), 0)
	require.Error(t, err)
}

// TestFuzzNeverPanicsAndRejectsOrDecodes feeds Unmarshal arbitrary
// byte slices — both well-formed frames (built via EncodeValue) and
// purely random/mutated bytes — and checks it either returns a
// structured error or a Frame that DecodeValue can consume without
// panicking, never the reverse. This is the fuzz obligation §4.7
// mandates: exercise both well-formed and mutated frames and confirm
// validation rejects every ill-formed one.
func TestFuzzNeverPanicsAndRejectsOrDecodes(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		useValid := rapid.Bool().Draw(t, "useValid")

		var raw []byte
		if useValid {
			s := rapid.String().Draw(t, "s")
			v := xvalue.String(s)
			f, _, err := EncodeValue(v)
			require.NoError(t, err)
			raw = f.Marshal()

			// Optionally flip a random byte to simulate transport
			// corruption of an otherwise well-formed frame.
			if rapid.Bool().Draw(t, "corrupt") && len(raw) > 0 {
				idx := rapid.IntRange(0, len(raw)-1).Draw(t, "idx")
				raw[idx] ^= 0xFF
			}
		} else {
			n := rapid.IntRange(0, FrameSize+16).Draw(t, "n")
			raw = make([]byte, n)
			for i := range raw {
				raw[i] = byte(rapid.IntRange(0, 255).Draw(t, "byte"))
			}
		}

		fdCount := rapid.IntRange(0, NumMembers+1).Draw(t, "fdCount")

		frame, err := Unmarshal(raw, fdCount)
		if err != nil {
			return
		}
		// A Frame that passed validation must always be safely
		// decodable (or cleanly rejected by DecodeValue) without
		// panicking and without reading past Strbuf bounds.
		require.NotPanics(t, func() {
			_, _ = DecodeValue(frame, nil, nil)
		})
	})
}
