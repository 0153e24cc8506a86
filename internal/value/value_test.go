package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/fault"
)

func TestArrayCopyOnWriteClonesWhenShared(t *testing.T) {
	a := NewArray([]Value{float64(1), float64(2)})
	b := Retain(a).(Array)

	c := b.Push(float64(3))

	assert.Equal(t, 2, a.Len(), "original must not see the push")
	assert.Equal(t, 3, c.Len())
	// the clone took over b's claim, the original is unique again
	assert.Equal(t, int32(1), a.store.refs.Load())
	assert.Equal(t, int32(1), c.store.refs.Load())
}

func TestArrayMutatesInPlaceWhenUnique(t *testing.T) {
	a := NewArray([]Value{float64(1)})
	b := a.Push(float64(2))
	assert.Same(t, a.store, b.store, "unique array must mutate in place")
}

func TestArrayIndexFaults(t *testing.T) {
	a := NewArray([]Value{float64(1), float64(2)})
	tests := []struct {
		name string
		idx  Value
		kind fault.Kind
		msg  string
	}{
		{"negative", float64(-1), fault.BoundsFault, "collection index must be a non-negative integer"},
		{"fractional", float64(1.5), fault.BoundsFault, "collection index must be a non-negative integer"},
		{"string", "0", fault.BoundsFault, "collection index must be a non-negative integer"},
		{"past end", float64(2), fault.BoundsFault, "index 2 out of range for length 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := a.At(tt.idx)
			require.NotNil(t, f)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.msg, f.Message)
		})
	}
}

func TestMapCopyOnWrite(t *testing.T) {
	m := NewMap(map[string]Value{"x": float64(1)})
	shared := Retain(m).(Map)

	updated := shared.Set("y", float64(2))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, updated.Len())
	v, ok := m.Get("y")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestMapKeysSorted(t *testing.T) {
	m := NewMap(map[string]Value{"b": float64(2), "a": float64(1), "c": float64(3)})
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}

func TestCloneRetainsElements(t *testing.T) {
	inner := NewArray([]Value{float64(1)})
	outer := NewArray([]Value{inner})
	shared := Retain(outer).(Array)

	shared.Push(float64(2)) // forces a clone of outer

	// the clone holds a second claim on inner
	assert.Equal(t, int32(2), inner.store.refs.Load())
}

func TestSetQueueStack(t *testing.T) {
	s := NewSet().Add(float64(2)).Add(float64(1)).Add(float64(2))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(float64(1)))
	assert.False(t, s.Has(float64(3)))

	q := NewQueue().Enqueue("a").Enqueue("b")
	front, f := q.Front()
	require.Nil(t, f)
	assert.Equal(t, "a", front)
	q2, f := q.Dequeue()
	require.Nil(t, f)
	assert.Equal(t, 1, q2.Len())

	st := NewStack().Push(float64(1)).Push(float64(2))
	top, f := st.Peek()
	require.Nil(t, f)
	assert.Equal(t, float64(2), top)
	_, f = NewStack().Pop()
	require.NotNil(t, f)
	assert.Equal(t, fault.BoundsFault, f.Kind)
}

func TestEqualStructural(t *testing.T) {
	assert.True(t, Equal(NewArray([]Value{float64(1), "x"}), NewArray([]Value{float64(1), "x"})))
	assert.False(t, Equal(NewArray([]Value{float64(1)}), NewArray([]Value{float64(2)})))
	assert.True(t, Equal(
		NewMap(map[string]Value{"k": float64(1)}),
		NewMap(map[string]Value{"k": float64(1)}),
	))
	assert.True(t, Equal(Option{Some: true, Inner: float64(1)}, Option{Some: true, Inner: float64(1)}))
	assert.False(t, Equal(Option{}, Option{Some: true, Inner: float64(1)}))

	// shared cells compare by reference
	a := NewShared(float64(1))
	b := NewShared(float64(1))
	assert.True(t, Equal(a, a))
	assert.False(t, Equal(a, b))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", nil, "null"},
		{"integer", float64(42), "42"},
		{"fraction", 2.5, "2.5"},
		{"bool", true, "true"},
		{"bare string", "hi", "hi"},
		{"array quotes nested strings", NewArray([]Value{float64(1), "x"}), `[1, "x"]`},
		{"map sorted", NewMap(map[string]Value{"b": float64(2), "a": float64(1)}), "{a: 1, b: 2}"},
		{"set", NewSet().Add(float64(1)), "set{1}"},
		{"option", Option{Some: true, Inner: "v"}, `Some("v")`},
		{"none", Option{}, "None"},
		{"result", Result{Inner: "boom"}, `Err("boom")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.v))
		})
	}
}

func TestArithmeticFaults(t *testing.T) {
	_, f := Div(float64(1), float64(0))
	require.NotNil(t, f)
	assert.Equal(t, fault.ArithmeticFault, f.Kind)
	assert.Equal(t, "division by zero", f.Message)

	_, f = Mod(float64(5), float64(0))
	require.NotNil(t, f)
	assert.Equal(t, "modulo by zero", f.Message)

	_, f = Mul(1e308, 1e308)
	require.NotNil(t, f)
	assert.Equal(t, fault.ArithmeticFault, f.Kind)
	assert.Equal(t, "numeric overflow in '*'", f.Message)

	_, f = Add(math.MaxFloat64, math.MaxFloat64)
	require.NotNil(t, f)
	assert.Equal(t, "numeric overflow in '+'", f.Message)

	_, f = Add(float64(1), "x")
	require.NotNil(t, f)
	assert.Equal(t, fault.TypeFault, f.Kind)
}

func TestAddConcatenatesStrings(t *testing.T) {
	v, f := Add("foo", "bar")
	require.Nil(t, f)
	assert.Equal(t, "foobar", v)
}

func TestAsBoolRejectsNonBool(t *testing.T) {
	_, f := AsBool(float64(1))
	require.NotNil(t, f)
	assert.Equal(t, fault.TypeFault, f.Kind)
	assert.Equal(t, "condition must be a bool, got number", f.Message)
}

func TestCompare(t *testing.T) {
	lt, f := Compare("<", float64(1), float64(2))
	require.Nil(t, f)
	assert.Equal(t, true, lt)

	ge, f := Compare(">=", "b", "a")
	require.Nil(t, f)
	assert.Equal(t, true, ge)

	_, f = Compare("<", float64(1), "a")
	require.NotNil(t, f)
	assert.Equal(t, fault.TypeFault, f.Kind)
}

func TestSharedCell(t *testing.T) {
	cell := NewShared(float64(1))
	assert.Equal(t, float64(1), cell.Get())
	cell.Set(float64(2))
	assert.Equal(t, float64(2), cell.Get())
}
