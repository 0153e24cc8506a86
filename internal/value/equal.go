// internal/value/equal.go
package value

import (
	"reflect"
	"strconv"
)

// Equal is structural equality: content-based for primitives and every
// collection variant, reference-based only for Shared cells and functions.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		return ok && elemsEqual(x.store.elems, y.store.elems)
	case Map:
		y, ok := b.(Map)
		if !ok || len(x.store.items) != len(y.store.items) {
			return false
		}
		for k, v := range x.store.items {
			w, present := y.store.items[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	case Set:
		y, ok := b.(Set)
		if !ok || len(x.store.items) != len(y.store.items) {
			return false
		}
		for k := range x.store.items {
			if _, present := y.store.items[k]; !present {
				return false
			}
		}
		return true
	case Queue:
		y, ok := b.(Queue)
		return ok && elemsEqual(x.store.elems, y.store.elems)
	case Stack:
		y, ok := b.(Stack)
		return ok && elemsEqual(x.store.elems, y.store.elems)
	case Option:
		y, ok := b.(Option)
		if !ok || x.Some != y.Some {
			return false
		}
		return !x.Some || Equal(x.Inner, y.Inner)
	case Result:
		y, ok := b.(Result)
		if !ok || x.Ok != y.Ok {
			return false
		}
		return Equal(x.Inner, y.Inner)
	case Json:
		y, ok := b.(Json)
		return ok && reflect.DeepEqual(x.Data, y.Data)
	case *Function:
		y, ok := b.(*Function)
		return ok && x == y
	case *Builtin:
		y, ok := b.(*Builtin)
		return ok && x == y
	case *Shared:
		y, ok := b.(*Shared)
		return ok && x == y
	}
	return false
}

func elemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// setKey is the canonical encoding used to key set members. Only primitive
// values are meaningful set members; anything else keys by its display form.
func setKey(v Value) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case bool:
		return "b:" + strconv.FormatBool(x)
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s:" + x
	default:
		return "o:" + Format(v)
	}
}
