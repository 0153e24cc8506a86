// internal/stdlib/collections.go
//
// Collection builtins. Per the call convention every mutating builtin
// returns the new collection value and the evaluator writes it back; the
// CoW check inside the value model decides between in-place mutation and
// clone.
package stdlib

import (
	"rill/internal/fault"
	"rill/internal/value"
)

func init() {
	Register("push", 2, func(args []value.Value) (value.Value, error) {
		switch c := args[0].(type) {
		case value.Array:
			return c.Push(args[1]), nil
		case value.Stack:
			return c.Push(args[1]), nil
		}
		return nil, typeFault("push", "array or stack", args[0])
	})
	Register("pop", 1, func(args []value.Value) (value.Value, error) {
		switch c := args[0].(type) {
		case value.Array:
			out, f := c.Pop()
			if f != nil {
				return nil, f
			}
			return out, nil
		case value.Stack:
			out, f := c.Pop()
			if f != nil {
				return nil, f
			}
			return out, nil
		}
		return nil, typeFault("pop", "array or stack", args[0])
	})
	Register("insert", 3, func(args []value.Value) (value.Value, error) {
		a, ok := args[0].(value.Array)
		if !ok {
			return nil, typeFault("insert", "array", args[0])
		}
		out, f := a.Insert(args[1], args[2])
		if f != nil {
			return nil, f
		}
		return out, nil
	})
	Register("remove", 2, func(args []value.Value) (value.Value, error) {
		switch c := args[0].(type) {
		case value.Array:
			out, f := c.Remove(args[1])
			if f != nil {
				return nil, f
			}
			return out, nil
		case value.Set:
			return c.Remove(args[1]), nil
		}
		return nil, typeFault("remove", "array or set", args[0])
	})
	Register("delete", 2, func(args []value.Value) (value.Value, error) {
		m, ok := args[0].(value.Map)
		if !ok {
			return nil, typeFault("delete", "map", args[0])
		}
		key, ok := args[1].(string)
		if !ok {
			return nil, typeFault("delete", "string key", args[1])
		}
		return m.Delete(key), nil
	})
	Register("has", 2, func(args []value.Value) (value.Value, error) {
		switch c := args[0].(type) {
		case value.Map:
			key, ok := args[1].(string)
			if !ok {
				return nil, typeFault("has", "string key", args[1])
			}
			return c.Has(key), nil
		case value.Set:
			return c.Has(args[1]), nil
		}
		return nil, typeFault("has", "map or set", args[0])
	})
	Register("keys", 1, func(args []value.Value) (value.Value, error) {
		m, ok := args[0].(value.Map)
		if !ok {
			return nil, typeFault("keys", "map", args[0])
		}
		keys := m.Keys()
		elems := make([]value.Value, len(keys))
		for i, k := range keys {
			elems[i] = k
		}
		return value.NewArray(elems), nil
	})

	// sets
	Register("new_set", 0, func(args []value.Value) (value.Value, error) {
		return value.NewSet(), nil
	})
	Register("add", 2, func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(value.Set)
		if !ok {
			return nil, typeFault("add", "set", args[0])
		}
		return s.Add(args[1]), nil
	})

	// queues
	Register("new_queue", 0, func(args []value.Value) (value.Value, error) {
		return value.NewQueue(), nil
	})
	Register("enqueue", 2, func(args []value.Value) (value.Value, error) {
		q, ok := args[0].(value.Queue)
		if !ok {
			return nil, typeFault("enqueue", "queue", args[0])
		}
		return q.Enqueue(args[1]), nil
	})
	Register("dequeue", 1, func(args []value.Value) (value.Value, error) {
		q, ok := args[0].(value.Queue)
		if !ok {
			return nil, typeFault("dequeue", "queue", args[0])
		}
		out, f := q.Dequeue()
		if f != nil {
			return nil, f
		}
		return out, nil
	})
	Register("front", 1, func(args []value.Value) (value.Value, error) {
		q, ok := args[0].(value.Queue)
		if !ok {
			return nil, typeFault("front", "queue", args[0])
		}
		v, f := q.Front()
		if f != nil {
			return nil, f
		}
		return v, nil
	})

	// stacks
	Register("new_stack", 0, func(args []value.Value) (value.Value, error) {
		return value.NewStack(), nil
	})
	Register("peek", 1, func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(value.Stack)
		if !ok {
			return nil, typeFault("peek", "stack", args[0])
		}
		v, f := s.Peek()
		if f != nil {
			return nil, f
		}
		return v, nil
	})

	Register("contains", 2, func(args []value.Value) (value.Value, error) {
		a, ok := args[0].(value.Array)
		if !ok {
			return nil, typeFault("contains", "array", args[0])
		}
		for _, e := range a.Elems() {
			if value.Equal(e, args[1]) {
				return true, nil
			}
		}
		return false, nil
	})
	Register("slice", 3, func(args []value.Value) (value.Value, error) {
		a, ok := args[0].(value.Array)
		if !ok {
			return nil, typeFault("slice", "array", args[0])
		}
		lo, lok := args[1].(float64)
		hi, hok := args[2].(float64)
		if !lok || !hok {
			return nil, fault.NonIntegerIndex()
		}
		n := a.Len()
		if lo != float64(int(lo)) || hi != float64(int(hi)) || lo < 0 || hi < lo {
			return nil, fault.NonIntegerIndex()
		}
		if int(hi) > n {
			return nil, fault.IndexOutOfRange(int(hi), n)
		}
		elems := make([]value.Value, 0, int(hi)-int(lo))
		for _, e := range a.Elems()[int(lo):int(hi)] {
			elems = append(elems, value.Retain(e))
		}
		return value.NewArray(elems), nil
	})
}
