package xvalue

// Decode rebuilds v into plain Go values: map[string]any for objects,
// []any for arrays, and the scalar/AddressHandle leaves unchanged.
// rebind, if non-nil, is applied to every AddressHandle encountered so
// the caller can bind it into the receiving VM (e.g. wrapping a remote
// address with receiver-side bookkeeping); pass nil to leave addresses
// as-is.
//
// This is the deserialiser side of §4.5; Closure below wraps it as a
// deferred call. Inbox.Recv does not use either: it returns the
// received Value itself.
func Decode(v Value, rebind func(AddressHandle) AddressHandle) any {
	switch v.Kind() {
	case KindNil:
		return nil
	case KindBool:
		return v.Bool()
	case KindNumber:
		return v.Number()
	case KindString:
		return v.String()
	case KindAddress:
		h := v.Address()
		if rebind != nil && h != nil {
			h = rebind(h)
		}
		return h
	case KindObject:
		obj := v.Object()
		out := make(map[string]any, obj.Len())
		for _, k := range obj.Keys() {
			cv, _ := obj.Get(k)
			out[k] = Decode(cv, rebind)
		}
		return out
	case KindArray:
		arr := v.Array()
		out := make([]any, arr.Len())
		for i, cv := range arr.Items() {
			out[i] = Decode(cv, rebind)
		}
		return out
	default:
		return nil
	}
}

// Closure returns a zero-argument function that performs Decode(v,
// rebind) when called, matching the shape of the original's
// deserialiser closure: captured at send time, invoked later on the
// receiver's strand.
func Closure(v Value, rebind func(AddressHandle) AddressHandle) func() any {
	return func() any {
		return Decode(v, rebind)
	}
}
