package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/fault"
)

// raw builds a chunk straight from bytes, bypassing the compiler, so the
// validator can be probed with programs the compiler would never emit.
func raw(constants []interface{}, code ...byte) *Chunk {
	c := NewChunk("raw")
	c.SetSpan("raw", 1, 1)
	for _, k := range constants {
		c.AddConstant(k)
	}
	for _, b := range code {
		c.WriteByte(b)
	}
	return c
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	c := raw([]interface{}{float64(1), float64(2)},
		byte(OpConstant), 0, 0,
		byte(OpConstant), 0, 1,
		byte(OpAdd),
		byte(OpReturn),
	)
	assert.Nil(t, Validate(c))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		c    *Chunk
		msg  string
	}{
		{
			"stack underflow",
			raw(nil, byte(OpAdd), byte(OpReturn)),
			"operand stack underflow at offset 0",
		},
		{
			"underflow on peek",
			raw(nil, byte(OpDup), byte(OpReturn)),
			"operand stack underflow at offset 0",
		},
		{
			"illegal opcode",
			raw(nil, 0xf0, byte(OpReturn)),
			"illegal opcode 0xf0 at offset 0",
		},
		{
			"constant index out of range",
			raw(nil, byte(OpConstant), 0, 3, byte(OpReturn)),
			"constant index 3 out of range at offset 0",
		},
		{
			"jump into an operand",
			raw(nil, byte(OpNull), byte(OpJump), 0, 2, byte(OpReturn)),
			"jump target 2 is not an instruction boundary",
		},
		{
			"jump out of range",
			raw(nil, byte(OpJump), 0, 200, byte(OpNull), byte(OpReturn)),
			"jump target 200 is not an instruction boundary",
		},
		{
			"falls off the end",
			raw(nil, byte(OpNull), byte(OpPop)),
			`control falls off the end of chunk "raw"`,
		},
		{
			"truncated instruction",
			raw(nil, byte(OpConstant), 0),
			"truncated instruction at offset 0",
		},
		{
			"local slot out of range",
			raw(nil, byte(OpGetLocal), 9, byte(OpReturn)),
			"local slot 9 out of range at offset 0",
		},
		{
			"empty chunk",
			raw(nil),
			`empty chunk "raw"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Validate(tt.c)
			require.NotNil(t, f)
			assert.Equal(t, fault.ValidationFault, f.Kind)
			assert.Equal(t, tt.msg, f.Message)
		})
	}
}

func TestValidateInconsistentDepth(t *testing.T) {
	// two paths meet at the same instruction with different stack depths:
	// the true branch pushes an extra value before rejoining
	c := raw(nil,
		byte(OpTrue),            // 0
		byte(OpJumpIfFalse), 0, 7, // 1: false -> 7
		byte(OpNull), // 4
		byte(OpNull), // 5  (depth 2 going into 7)
		byte(OpPop),  // 6
		byte(OpNull), // 7  (reached at depth 0 and depth 1)
		byte(OpReturn),
	)
	f := Validate(c)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "inconsistent stack depth")
}

func TestValidateCallShapes(t *testing.T) {
	// provenance argument position past argc
	c := raw([]interface{}{"f"},
		byte(OpGetGlobal), 0, 0,
		byte(OpCall), 0, 1, 5, byte(ProvLocal), 0, 0,
		byte(OpReturn),
	)
	f := Validate(c)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "provenance for argument 5")

	// provenance name index outside the constant pool
	c = raw([]interface{}{"f"},
		byte(OpGetGlobal), 0, 0,
		byte(OpNull),
		byte(OpCall), 1, 1, 0, byte(ProvGlobal), 0, 9,
		byte(OpReturn),
	)
	f = Validate(c)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "provenance name index 9")
}

func TestValidateFunctionChunks(t *testing.T) {
	bad := NewChunk("broken")
	bad.SetSpan("raw", 1, 1)
	bad.WriteOp(OpAdd) // underflow inside the function body
	bad.WriteOp(OpReturn)
	proto := &FuncProto{Name: "broken", Arity: 0, Chunk: bad}

	c := NewChunk("<script>")
	c.SetSpan("raw", 1, 1)
	c.AddConstant(proto)
	c.WriteOp(OpNull)
	c.WriteOp(OpReturn)

	f := Validate(c)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "operand stack underflow")
}

func TestValidateArgumentsCountAsLocals(t *testing.T) {
	body := raw(nil,
		byte(OpGetLocal), 1,
		byte(OpReturn),
	)
	proto := &FuncProto{Name: "second", Arity: 2, Params: []string{"a", "b"}, Chunk: body}

	c := NewChunk("<script>")
	c.SetSpan("raw", 1, 1)
	c.AddConstant(proto)
	c.WriteOp(OpNull)
	c.WriteOp(OpReturn)
	assert.Nil(t, Validate(c))
}

func TestValidateRejectsCorruptDebugTables(t *testing.T) {
	// fault annotation dereferences the span tables without checks, so the
	// validator must reject out-of-range indices up front
	c := raw(nil, byte(OpNull), byte(OpReturn))
	c.SpanIdx[0] = 99
	f := Validate(c)
	require.NotNil(t, f)
	assert.Equal(t, fault.ValidationFault, f.Kind)
	assert.Equal(t, "span index 99 out of range at offset 0", f.Message)

	c = raw(nil, byte(OpNull), byte(OpReturn))
	c.Spans[0].File = 7
	f = Validate(c)
	require.NotNil(t, f)
	assert.Equal(t, "file index 7 out of range in span 0", f.Message)

	c = raw(nil, byte(OpNull), byte(OpReturn))
	c.SpanIdx = c.SpanIdx[:1]
	f = Validate(c)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "does not match code length")
}

func TestLocationToleratesCorruptSpanIndex(t *testing.T) {
	c := raw(nil, byte(OpNull), byte(OpReturn))
	c.SpanIdx[0] = 99
	assert.Equal(t, fault.Location{}, c.Location(0))
}

func TestDecodeCallShape(t *testing.T) {
	c := raw(nil,
		byte(OpCall), 2, 1, 1, byte(ProvGlobal), 0, 4,
		byte(OpReturn),
	)
	instrs, f := Decode(c)
	require.Nil(t, f)
	require.Len(t, instrs, 2)
	argc, prov := instrs[0].CallShape()
	assert.Equal(t, 2, argc)
	require.Len(t, prov, 1)
	assert.Equal(t, 1, prov[0].ArgPos)
	assert.Equal(t, ProvGlobal, prov[0].Kind)
	assert.Equal(t, 4, prov[0].Index)
}
