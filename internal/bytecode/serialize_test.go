package bytecode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/value"
)

func sampleChunk() *Chunk {
	fn := NewChunk("adder")
	fn.SetSpan("lib.rill", 1, 10)
	fn.WriteOp(OpGetLocal)
	fn.WriteByte(0)
	fn.WriteOp(OpGetLocal)
	fn.WriteByte(1)
	fn.WriteOp(OpAdd)
	fn.WriteOp(OpReturn)

	proto := &FuncProto{
		Name:       "adder",
		Arity:      2,
		Modes:      []value.Mode{value.ModeBorrow, value.ModeOwn},
		Params:     []string{"a", "b"},
		LocalNames: []string{"a", "b"},
		Chunk:      fn,
	}

	c := NewChunk("<script>")
	c.SetSpan("main.rill", 3, 1)
	c.WriteOp(OpConstant)
	c.WriteU16(uint16(c.AddConstant(proto)))
	c.WriteOp(OpConstant)
	c.WriteU16(uint16(c.AddConstant("adder")))
	c.AddConstant(float64(1.5))
	c.AddConstant(true)
	c.AddConstant(nil)
	c.WriteOp(OpPop)
	c.WriteOp(OpPop)
	c.WriteOp(OpNull)
	c.WriteOp(OpReturn)
	return c
}

func TestSerializeRoundTrip(t *testing.T) {
	c := sampleChunk()
	data, err := Serialize(c)
	require.NoError(t, err)
	assert.Equal(t, "RILB", string(data[:4]))

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Code, got.Code)
	assert.Equal(t, c.Files, got.Files)
	assert.Equal(t, c.Spans, got.Spans)
	assert.Equal(t, c.SpanIdx, got.SpanIdx)
	require.Len(t, got.Constants, len(c.Constants))
	assert.Equal(t, float64(1.5), got.Constants[2])
	assert.Equal(t, true, got.Constants[3])
	assert.Nil(t, got.Constants[4])

	proto, ok := got.Constants[0].(*FuncProto)
	require.True(t, ok)
	assert.Equal(t, "adder", proto.Name)
	assert.Equal(t, 2, proto.Arity)
	assert.Equal(t, []value.Mode{value.ModeBorrow, value.ModeOwn}, proto.Modes)
	assert.Equal(t, []string{"a", "b"}, proto.Params)
	require.NotNil(t, proto.Chunk)
	orig := c.Constants[0].(*FuncProto)
	assert.Equal(t, orig.Chunk.Code, proto.Chunk.Code)

	// the rebuilt chunk still resolves locations
	assert.Equal(t, "main.rill", got.Location(0).File)
	assert.Equal(t, 3, got.Location(0).Line)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := Deserialize([]byte("NOPE\x01\x00\x00\x00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a rill bytecode file")
}

func TestDeserializeRejectsVersionMismatch(t *testing.T) {
	data, err := Serialize(sampleChunk())
	require.NoError(t, err)
	data[4] = 0xfe // corrupt the version word

	_, err = Deserialize(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionMismatch))
}

func TestDeserializeRejectsTruncatedInput(t *testing.T) {
	data, err := Serialize(sampleChunk())
	require.NoError(t, err)
	_, err = Deserialize(data[:len(data)/2])
	require.Error(t, err)
}

func TestConstantDedup(t *testing.T) {
	c := NewChunk("x")
	a := c.AddConstant(float64(7))
	b := c.AddConstant(float64(7))
	s1 := c.AddConstant("s")
	s2 := c.AddConstant("s")
	assert.Equal(t, a, b)
	assert.Equal(t, s1, s2)
	assert.Len(t, c.Constants, 2)
}

func TestSpanDedup(t *testing.T) {
	c := NewChunk("x")
	c.SetSpan("f.rill", 1, 1)
	c.WriteOp(OpNull)
	c.WriteOp(OpPop)
	c.SetSpan("f.rill", 2, 1)
	c.WriteOp(OpNull)
	c.SetSpan("f.rill", 1, 1)
	c.WriteOp(OpReturn)

	assert.Len(t, c.Spans, 2, "identical spans share one table entry")
	assert.Len(t, c.Files, 1)
	assert.Equal(t, 1, c.Location(0).Line)
	assert.Equal(t, 2, c.Location(2).Line)
	assert.Equal(t, 1, c.Location(3).Line)
}
