// internal/value/cow.go
//
// Copy-on-write backing stores. Every collection wraps a store with an
// atomic reference count. Reads never allocate. A mutation checks whether
// the store is uniquely referenced: if so it writes in place, otherwise it
// clones the store, writes the clone, and the evaluator rebinds the result.
//
// The count tracks duplicated bindings, not object lifetime: the Go GC owns
// deallocation. An over-count (a release the evaluator skipped, e.g. O(1)
// frame teardown) can only force an extra clone, never observable aliasing.
package value

import (
	"math"
	"sort"
	"sync/atomic"

	"rill/internal/fault"
)

type arrayStore struct {
	refs  atomic.Int32
	elems []Value
}

type mapStore struct {
	refs  atomic.Int32
	items map[string]Value
}

type setStore struct {
	refs  atomic.Int32
	items map[string]Value
}

type queueStore struct {
	refs  atomic.Int32
	elems []Value
}

type stackStore struct {
	refs  atomic.Int32
	elems []Value
}

// Array is a copy-on-write array value.
type Array struct{ store *arrayStore }

// Map is a copy-on-write string-keyed map value.
type Map struct{ store *mapStore }

// Set is a copy-on-write set of primitive values, keyed by their canonical
// string encoding.
type Set struct{ store *setStore }

// Queue is a copy-on-write FIFO queue value.
type Queue struct{ store *queueStore }

// Stack is a copy-on-write LIFO stack value.
type Stack struct{ store *stackStore }

func newStore(elems []Value) *arrayStore {
	s := &arrayStore{elems: elems}
	s.refs.Store(1)
	return s
}

func NewArray(elems []Value) Array {
	return Array{store: newStore(elems)}
}

func NewMap(items map[string]Value) Map {
	if items == nil {
		items = map[string]Value{}
	}
	s := &mapStore{items: items}
	s.refs.Store(1)
	return Map{store: s}
}

func NewSet() Set {
	s := &setStore{items: map[string]Value{}}
	s.refs.Store(1)
	return Set{store: s}
}

func NewQueue() Queue {
	s := &queueStore{}
	s.refs.Store(1)
	return Queue{store: s}
}

func NewStack() Stack {
	s := &stackStore{}
	s.refs.Store(1)
	return Stack{store: s}
}

// Retain records one more binding sharing v's backing store. Non-collection
// values pass through untouched.
func Retain(v Value) Value {
	switch c := v.(type) {
	case Array:
		c.store.refs.Add(1)
	case Map:
		c.store.refs.Add(1)
	case Set:
		c.store.refs.Add(1)
	case Queue:
		c.store.refs.Add(1)
	case Stack:
		c.store.refs.Add(1)
	}
	return v
}

// Release drops one binding's claim on v's backing store.
func Release(v Value) {
	switch c := v.(type) {
	case Array:
		c.store.refs.Add(-1)
	case Map:
		c.store.refs.Add(-1)
	case Set:
		c.store.refs.Add(-1)
	case Queue:
		c.store.refs.Add(-1)
	case Stack:
		c.store.refs.Add(-1)
	}
}

// cloneElems shallow-copies a slice of values, retaining each element since
// the clone duplicates every element reference.
func cloneElems(elems []Value) []Value {
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = Retain(e)
	}
	return out
}

func cloneItems(items map[string]Value) map[string]Value {
	out := make(map[string]Value, len(items))
	for k, v := range items {
		out[k] = Retain(v)
	}
	return out
}

// checkIndex validates a numeric index against a collection length. Indices
// must be non-negative integers representable exactly in float64.
func checkIndex(idx Value, length int) (int, *fault.Fault) {
	n, ok := idx.(float64)
	if !ok || n != math.Trunc(n) || n < 0 {
		return 0, fault.NonIntegerIndex()
	}
	i := int(n)
	if i >= length {
		return 0, fault.IndexOutOfRange(i, length)
	}
	return i, nil
}

// ---- Array ----

func (a Array) Len() int { return len(a.store.elems) }

// At reads one element; it never allocates.
func (a Array) At(idx Value) (Value, *fault.Fault) {
	i, f := checkIndex(idx, len(a.store.elems))
	if f != nil {
		return nil, f
	}
	return Retain(a.store.elems[i]), nil
}

// Elems exposes the backing slice for read-only iteration.
func (a Array) Elems() []Value { return a.store.elems }

func (a Array) unique() Array {
	if a.store.refs.Load() == 1 {
		return a
	}
	a.store.refs.Add(-1)
	return Array{store: newStore(cloneElems(a.store.elems))}
}

func (a Array) Push(v Value) Array {
	out := a.unique()
	out.store.elems = append(out.store.elems, v)
	return out
}

func (a Array) Pop() (Array, *fault.Fault) {
	n := len(a.store.elems)
	if n == 0 {
		return a, fault.IndexOutOfRange(0, 0)
	}
	out := a.unique()
	Release(out.store.elems[n-1])
	out.store.elems = out.store.elems[:n-1]
	return out, nil
}

func (a Array) SetAt(idx Value, v Value) (Array, *fault.Fault) {
	i, f := checkIndex(idx, len(a.store.elems))
	if f != nil {
		return a, f
	}
	out := a.unique()
	Release(out.store.elems[i])
	out.store.elems[i] = v
	return out, nil
}

func (a Array) Insert(idx Value, v Value) (Array, *fault.Fault) {
	// inserting at Len() is legal
	i, f := checkIndex(idx, len(a.store.elems)+1)
	if f != nil {
		return a, f
	}
	out := a.unique()
	out.store.elems = append(out.store.elems, nil)
	copy(out.store.elems[i+1:], out.store.elems[i:])
	out.store.elems[i] = v
	return out, nil
}

func (a Array) Remove(idx Value) (Array, *fault.Fault) {
	i, f := checkIndex(idx, len(a.store.elems))
	if f != nil {
		return a, f
	}
	out := a.unique()
	Release(out.store.elems[i])
	copy(out.store.elems[i:], out.store.elems[i+1:])
	out.store.elems = out.store.elems[:len(out.store.elems)-1]
	return out, nil
}

// ---- Map ----

func (m Map) Len() int { return len(m.store.items) }

func (m Map) Get(key string) (Value, bool) {
	v, ok := m.store.items[key]
	if !ok {
		return nil, false
	}
	return Retain(v), true
}

func (m Map) Has(key string) bool {
	_, ok := m.store.items[key]
	return ok
}

// Keys returns the keys in sorted order so both engines iterate and print
// maps deterministically.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m.store.items))
	for k := range m.store.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Map) unique() Map {
	if m.store.refs.Load() == 1 {
		return m
	}
	m.store.refs.Add(-1)
	s := &mapStore{items: cloneItems(m.store.items)}
	s.refs.Store(1)
	return Map{store: s}
}

func (m Map) Set(key string, v Value) Map {
	out := m.unique()
	if old, ok := out.store.items[key]; ok {
		Release(old)
	}
	out.store.items[key] = v
	return out
}

func (m Map) Delete(key string) Map {
	out := m.unique()
	if old, ok := out.store.items[key]; ok {
		Release(old)
		delete(out.store.items, key)
	}
	return out
}

// ---- Set ----

func (s Set) Len() int { return len(s.store.items) }

func (s Set) Has(v Value) bool {
	_, ok := s.store.items[setKey(v)]
	return ok
}

// Members returns the members ordered by canonical key.
func (s Set) Members() []Value {
	keys := make([]string, 0, len(s.store.items))
	for k := range s.store.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = s.store.items[k]
	}
	return out
}

func (s Set) unique() Set {
	if s.store.refs.Load() == 1 {
		return s
	}
	s.store.refs.Add(-1)
	ns := &setStore{items: cloneItems(s.store.items)}
	ns.refs.Store(1)
	return Set{store: ns}
}

func (s Set) Add(v Value) Set {
	out := s.unique()
	out.store.items[setKey(v)] = v
	return out
}

func (s Set) Remove(v Value) Set {
	out := s.unique()
	delete(out.store.items, setKey(v))
	return out
}

// ---- Queue ----

func (q Queue) Len() int { return len(q.store.elems) }

func (q Queue) Front() (Value, *fault.Fault) {
	if len(q.store.elems) == 0 {
		return nil, fault.IndexOutOfRange(0, 0)
	}
	return Retain(q.store.elems[0]), nil
}

func (q Queue) Elems() []Value { return q.store.elems }

func (q Queue) unique() Queue {
	if q.store.refs.Load() == 1 {
		return q
	}
	q.store.refs.Add(-1)
	s := &queueStore{elems: cloneElems(q.store.elems)}
	s.refs.Store(1)
	return Queue{store: s}
}

func (q Queue) Enqueue(v Value) Queue {
	out := q.unique()
	out.store.elems = append(out.store.elems, v)
	return out
}

func (q Queue) Dequeue() (Queue, *fault.Fault) {
	if len(q.store.elems) == 0 {
		return q, fault.IndexOutOfRange(0, 0)
	}
	out := q.unique()
	Release(out.store.elems[0])
	out.store.elems = out.store.elems[1:]
	return out, nil
}

// ---- Stack ----

func (s Stack) Len() int { return len(s.store.elems) }

func (s Stack) Peek() (Value, *fault.Fault) {
	n := len(s.store.elems)
	if n == 0 {
		return nil, fault.IndexOutOfRange(0, 0)
	}
	return Retain(s.store.elems[n-1]), nil
}

func (s Stack) Elems() []Value { return s.store.elems }

func (s Stack) unique() Stack {
	if s.store.refs.Load() == 1 {
		return s
	}
	s.store.refs.Add(-1)
	ns := &stackStore{elems: cloneElems(s.store.elems)}
	ns.refs.Store(1)
	return Stack{store: ns}
}

func (s Stack) Push(v Value) Stack {
	out := s.unique()
	out.store.elems = append(out.store.elems, v)
	return out
}

func (s Stack) Pop() (Stack, *fault.Fault) {
	n := len(s.store.elems)
	if n == 0 {
		return s, fault.IndexOutOfRange(0, 0)
	}
	out := s.unique()
	Release(out.store.elems[n-1])
	out.store.elems = out.store.elems[:n-1]
	return out, nil
}
