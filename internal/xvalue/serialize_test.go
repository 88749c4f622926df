package xvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/strandrt/fibercore/internal/actorerr"
)

func TestEncodeScalarRoot(t *testing.T) {
	t.Parallel()

	v, err := Encode("hello", DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, KindString, v.Kind())
	require.Equal(t, "hello", v.String())
}

func TestEncodeDropsNonSerialisableLeaf(t *testing.T) {
	t.Parallel()

	root := map[string]any{
		"ok":      "fine",
		"bad":     func() {},
		"nested":  []any{1.0, func() {}, "kept"},
	}
	v, err := Encode(root, DefaultLimits)
	require.NoError(t, err)

	obj := v.Object()
	_, hasBad := obj.Get("bad")
	require.False(t, hasBad)
	ok, _ := obj.Get("ok")
	require.Equal(t, "fine", ok.String())

	nested, _ := obj.Get("nested")
	require.Equal(t, 2, nested.Array().Len())
}

func TestEncodeRejectsNonSerialisableRoot(t *testing.T) {
	t.Parallel()

	_, err := Encode(func() {}, DefaultLimits)
	require.True(t, actorerr.Is(err, actorerr.InvalidArgument))
}

func TestEncodeDetectsCycle(t *testing.T) {
	t.Parallel()

	m := map[string]any{}
	m["self"] = m

	_, err := Encode(m, DefaultLimits)
	require.True(t, actorerr.Is(err, actorerr.CycleExists))
}

func TestEncodeArrayTooLong(t *testing.T) {
	t.Parallel()

	arr := make([]any, 3)
	for i := range arr {
		arr[i] = float64(i)
	}
	_, err := Encode(arr, Limits{MaxLevels: 64, MaxArray: 2})
	require.True(t, actorerr.Is(err, actorerr.ArrayTooLong))
}

func TestEncodeTooManyLevels(t *testing.T) {
	t.Parallel()

	root := map[string]any{"a": map[string]any{"b": map[string]any{"c": "deep"}}}
	_, err := Encode(root, Limits{MaxLevels: 1, MaxArray: 100})
	require.True(t, actorerr.Is(err, actorerr.TooManyLevels))
}

func TestNonStringKeysNeverReachObject(t *testing.T) {
	t.Parallel()

	// xvalue's input shape only accepts map[string]any, so non-string
	// keys cannot be constructed in Go the way a Lua table could hold
	// them; this test documents that the type system enforces §4.5
	// rule 3 for us rather than needing a runtime check.
	obj := NewObject()
	obj.Set("k", Number(1))
	require.Equal(t, []string{"k"}, obj.Keys())
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		root := genValue(rt, 0)
		encoded, err := Encode(root, DefaultLimits)
		require.NoError(rt, err)

		decoded := Decode(encoded, nil)
		reEncoded, err := Encode(decoded, DefaultLimits)
		require.NoError(rt, err)

		require.True(rt, Equal(encoded, reEncoded))
	})
}

func genValue(rt *rapid.T, depth int) any {
	if depth > 3 {
		return rapid.Float64().Draw(rt, "leaf")
	}
	kind := rapid.IntRange(0, 4).Draw(rt, "kind")
	switch kind {
	case 0:
		return rapid.Bool().Draw(rt, "bool")
	case 1:
		return rapid.Float64().Draw(rt, "number")
	case 2:
		return rapid.String().Draw(rt, "string")
	case 3:
		n := rapid.IntRange(0, 4).Draw(rt, "arrlen")
		arr := make([]any, n)
		for i := range arr {
			arr[i] = genValue(rt, depth+1)
		}
		return arr
	default:
		n := rapid.IntRange(0, 4).Draw(rt, "objlen")
		obj := make(map[string]any, n)
		for i := 0; i < n; i++ {
			key := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "key")
			obj[key] = genValue(rt, depth+1)
		}
		return obj
	}
}
