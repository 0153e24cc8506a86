package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/bytecode"
	"rill/internal/parser"
)

func compile(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	stmts, err := parser.ParseSource(src)
	require.NoError(t, err)
	chunk, err := Compile(stmts, "test.rill")
	require.NoError(t, err)
	return chunk
}

func ops(t *testing.T, c *bytecode.Chunk) []bytecode.OpCode {
	t.Helper()
	instrs, f := bytecode.Decode(c)
	require.Nil(t, f)
	out := make([]bytecode.OpCode, len(instrs))
	for i, in := range instrs {
		out[i] = in.Op
	}
	return out
}

func TestCompiledChunksValidate(t *testing.T) {
	sources := []string{
		`print 1 + 2 * 3;`,
		`let a = [1, 2, 3]; print a[1];`,
		`let m = {x: 1}; m["y"] = 2; print m;`,
		`let i = 0; while i < 3 { print i; i = i + 1; }`,
		`if 1 < 2 { print "yes"; } else { print "no"; }`,
		`fn add(a, b) { return a + b; } print add(1, 2);`,
		`fn f(own x) { return x; } let v = [1]; f(v);`,
		`let done = false; print !done and 1 < 2;`,
		`let s = "abc"; print s[0];`,
		`fn loopy(n) { let i = 0; let acc = 0; while i < n { let step = i; acc = acc + step; i = i + 1; } return acc; } print loopy(4);`,
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			assert.Nil(t, bytecode.Validate(compile(t, src)))
		})
	}
}

func TestJumpRangeOverflowIsACompileError(t *testing.T) {
	// jump operands are u16; a loop body pushing the exit target past
	// 64KiB must be rejected, not silently truncated
	var sb strings.Builder
	sb.WriteString("let x = 0; while x < 1 { ")
	for i := 0; i < 12000; i++ {
		sb.WriteString("x = x + 1; ")
	}
	sb.WriteString("}")

	stmts, err := parser.ParseSource(sb.String())
	require.NoError(t, err)
	_, err = Compile(stmts, "big.rill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the 64KiB jump range")
}

func TestScriptEndsWithNullReturn(t *testing.T) {
	c := compile(t, `print 1;`)
	got := ops(t, c)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, bytecode.OpNull, got[len(got)-2])
	assert.Equal(t, bytecode.OpReturn, got[len(got)-1])
}

func TestLogicalOperatorsUsePeekJumps(t *testing.T) {
	and := ops(t, compile(t, `print true and false;`))
	assert.Contains(t, and, bytecode.OpJumpIfFalsePeek)
	assert.NotContains(t, and, bytecode.OpJumpIfTruePeek)

	or := ops(t, compile(t, `print true or false;`))
	assert.Contains(t, or, bytecode.OpJumpIfTruePeek)
}

func TestFunctionHoistsLoopLocals(t *testing.T) {
	c := compile(t, `fn f() { let i = 0; while i < 2 { let x = i; i = i + 1; } return i; }`)
	var proto *bytecode.FuncProto
	for _, konst := range c.Constants {
		if p, ok := konst.(*bytecode.FuncProto); ok {
			proto = p
		}
	}
	require.NotNil(t, proto)
	assert.Equal(t, []string{"i", "x"}, proto.LocalNames)

	// one reserved slot per hoisted let at function entry
	body := ops(t, proto.Chunk)
	assert.Equal(t, bytecode.OpNull, body[0])
	assert.Equal(t, bytecode.OpNull, body[1])
}

func TestCallCarriesProvenanceForBareBindings(t *testing.T) {
	c := compile(t, `fn f(own x) { return x; } let v = [1]; f(v);`)
	instrs, f := bytecode.Decode(c)
	require.Nil(t, f)
	var found bool
	for _, in := range instrs {
		if in.Op != bytecode.OpCall {
			continue
		}
		argc, prov := in.CallShape()
		assert.Equal(t, 1, argc)
		require.Len(t, prov, 1)
		assert.Equal(t, 0, prov[0].ArgPos)
		assert.Equal(t, bytecode.ProvGlobal, prov[0].Kind)
		assert.Equal(t, "v", c.Constants[prov[0].Index])
		found = true
	}
	assert.True(t, found, "expected an OpCall in the script chunk")
}

func TestCallOmitsProvenanceForExpressions(t *testing.T) {
	c := compile(t, `fn f(own x) { return x; } f([1]);`)
	instrs, fl := bytecode.Decode(c)
	require.Nil(t, fl)
	for _, in := range instrs {
		if in.Op == bytecode.OpCall {
			_, prov := in.CallShape()
			assert.Empty(t, prov, "a literal argument has no binding to consume")
		}
	}
}

func TestMutatingMethodCallWritesBack(t *testing.T) {
	got := ops(t, compile(t, `let a = [1]; a.push(2);`))
	assert.Contains(t, got, bytecode.OpSetGlobal, "push writes the new array back to the receiver")

	// non-mutating method: no write-back
	got = ops(t, compile(t, `let a = [1]; a.contains(1);`))
	assert.NotContains(t, got, bytecode.OpSetGlobal)
}

func TestIndexAssignNestedReceiverNoWriteBack(t *testing.T) {
	bare := ops(t, compile(t, `let a = [1]; a[0] = 2;`))
	assert.Contains(t, bare, bytecode.OpSetGlobal)

	nested := ops(t, compile(t, `let m = {k: [1]}; m["k"][0] = 2;`))
	count := 0
	for _, op := range nested {
		if op == bytecode.OpSetGlobal {
			count++
		}
	}
	assert.Zero(t, count, "a nested receiver must not be written back")
}

func TestNestedFunctionRejected(t *testing.T) {
	stmts, err := parser.ParseSource(`fn outer() { fn inner() { return 1; } return 2; }`)
	if err != nil {
		return // the parser may refuse it outright, which is fine too
	}
	_, err = Compile(stmts, "test.rill")
	assert.Error(t, err)
}
