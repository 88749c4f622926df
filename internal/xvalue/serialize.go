package xvalue

import (
	"fmt"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// Limits bounds the traversal, matching the "implementation constants"
// §4.5 requires for depth and array length.
type Limits struct {
	MaxLevels int
	MaxArray  int
}

// DefaultLimits mirrors typical embedded-interpreter defaults: deep
// enough for realistic message shapes, shallow enough to bound stack
// use during iterative traversal.
var DefaultLimits = Limits{MaxLevels: 64, MaxArray: 1 << 20}

// Encode walks root, a Go value built from bool, int, int64, float32
// and float64 (normalised to float64), string, map[string]any, []any,
// AddressHandle, or a Value already in neutral form, and produces an
// immutable Value graph ready for transport to another VM.
//
// Per §4.5 rule 2 the traversal is iterative: depth is tracked by an
// explicit stack of frames (one per in-progress map/array), not by Go
// call recursion, so nesting depth never costs Go stack — see
// encodeIterative and the frame type below.
func Encode(root any, limits Limits) (Value, error) {
	switch t := root.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case AddressHandle:
		return Addr(t), nil
	case map[string]any, []any:
		return encodeIterative(t, limits)
	default:
		return Value{}, actorerr.New(actorerr.InvalidArgument,
			fmt.Sprintf("unsupported root value of type %T", root))
	}
}

// frameKind discriminates the two container shapes a frame can hold.
type frameKind int

const (
	frameObject frameKind = iota
	frameArray
)

// frame is one level of an in-progress container encode, standing in
// for a Go call stack frame. source is the original map/slice, kept
// around so the driving loop can clear its visited-set entry once the
// frame is fully consumed. attachKey is where this frame's finished
// Value gets installed in its parent once popped — a key for an
// object parent, ignored for an array parent.
type frame struct {
	kind  frameKind
	depth int

	obj     *Object
	objSrc  map[string]any
	objKeys []string
	objIdx  int

	arr      *Array
	arrItems []any
	arrIdx   int

	source    any
	attachKey string
}

// newFrame validates v against limits and the visited set, then opens
// a fresh frame for it. v must be a map[string]any or []any; callers
// only ever reach here for those two types, everything else goes
// through leafValue instead.
func newFrame(v any, depth int, limits Limits, visited map[any]bool) (*frame, error) {
	if depth > limits.MaxLevels {
		return nil, actorerr.New(actorerr.TooManyLevels, "value nesting exceeds limit")
	}
	if isCyclic(v, visited) {
		return nil, actorerr.New(actorerr.CycleExists, "cyclic reference in transferred value")
	}

	switch t := v.(type) {
	case map[string]any:
		markVisited(v, visited, true)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		return &frame{kind: frameObject, depth: depth, obj: NewObject(), objSrc: t, objKeys: keys, source: v}, nil
	case []any:
		if len(t) > limits.MaxArray {
			return nil, actorerr.New(actorerr.ArrayTooLong, "array length exceeds limit")
		}
		markVisited(v, visited, true)
		return &frame{kind: frameArray, depth: depth, arr: NewArray(), arrItems: t, source: v}, nil
	default:
		return nil, actorerr.New(actorerr.NotSupported, fmt.Sprintf("%T is not a container", v))
	}
}

// nextChild returns the frame's next unvisited element, advancing its
// cursor, or ok=false once the frame is exhausted.
func nextChild(f *frame) (child any, key string, ok bool) {
	switch f.kind {
	case frameObject:
		if f.objIdx >= len(f.objKeys) {
			return nil, "", false
		}
		k := f.objKeys[f.objIdx]
		f.objIdx++
		return f.objSrc[k], k, true
	default:
		if f.arrIdx >= len(f.arrItems) {
			return nil, "", false
		}
		v := f.arrItems[f.arrIdx]
		f.arrIdx++
		return v, "", true
	}
}

// attach installs a finished child Value into parent, using key only
// when parent is an object frame.
func attach(parent *frame, key string, v Value) {
	if parent.kind == frameObject {
		parent.obj.Set(key, v)
	} else {
		parent.arr.Append(v)
	}
}

// leafValue converts a non-container Go value to its Value form, or
// reports drop=true for anything §4.5 rule 3 says to silently omit.
func leafValue(v any) (value Value, drop bool) {
	switch t := v.(type) {
	case nil:
		return Nil(), false
	case Value:
		return t, false
	case bool:
		return Bool(t), false
	case string:
		return String(t), false
	case float64:
		return Number(t), false
	case float32:
		return Number(float64(t)), false
	case int:
		return Number(float64(t)), false
	case int64:
		return Number(float64(t)), false
	case AddressHandle:
		return Addr(t), false
	default:
		return Value{}, true
	}
}

// finish renders a fully-visited frame's accumulated object/array into
// its final Value.
func finish(f *frame) Value {
	if f.kind == frameObject {
		return ObjectValue(f.obj)
	}
	return ArrayValue(f.arr)
}

// encodeIterative walks root using an explicit stack of frames instead
// of recursion, per §9's design note: a frame is pushed for each
// container entered and popped once every element has been visited,
// with the popped frame's Value attached into its parent (now back on
// top of the stack) before the loop continues. A cycle, depth, or
// array-length violation is a hard error that aborts the whole encode;
// any other unsupported child is dropped in place, per §4.5 rule 3.
func encodeIterative(root any, limits Limits) (Value, error) {
	visited := make(map[any]bool)

	rootFrame, err := newFrame(root, 0, limits, visited)
	if err != nil {
		return Value{}, err
	}
	stack := []*frame{rootFrame}

	for {
		top := stack[len(stack)-1]

		child, key, ok := nextChild(top)
		if !ok {
			v := finish(top)
			markVisited(top.source, visited, false)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return v, nil
			}
			attach(stack[len(stack)-1], top.attachKey, v)
			continue
		}

		switch child.(type) {
		case map[string]any, []any:
			cf, cerr := newFrame(child, top.depth+1, limits, visited)
			if cerr != nil {
				if actorerr.Is(cerr, actorerr.CycleExists) || actorerr.Is(cerr, actorerr.TooManyLevels) ||
					actorerr.Is(cerr, actorerr.ArrayTooLong) {
					return Value{}, cerr
				}
				continue
			}
			cf.attachKey = key
			stack = append(stack, cf)
		default:
			v, drop := leafValue(child)
			if drop {
				continue
			}
			attach(top, key, v)
		}
	}
}

func isCyclic(v any, visited map[any]bool) bool {
	key, ok := identityKey(v)
	if !ok {
		return false
	}
	return visited[key]
}

func markVisited(v any, visited map[any]bool, on bool) {
	key, ok := identityKey(v)
	if !ok {
		return
	}
	if on {
		visited[key] = true
	} else {
		delete(visited, key)
	}
}

// identityKey returns a comparable key for maps/slices, the only two
// reference types that can carry a cycle through this traversal;
// scalars and AddressHandle values can't participate in a cycle.
func identityKey(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return fmt.Sprintf("%p", t), true
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		return fmt.Sprintf("%p", t), true
	default:
		return nil, false
	}
}
