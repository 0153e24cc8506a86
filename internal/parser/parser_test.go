package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/ast"
	"rill/internal/value"
)

func parse(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	stmts, err := ParseSource(src)
	require.NoError(t, err)
	return stmts
}

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	stmts := parse(t, src)
	require.Len(t, stmts, 1)
	es, ok := stmts[0].(*ast.ExprStmt)
	require.True(t, ok, "expected expression statement, got %T", stmts[0])
	return es.Expr
}

func TestPrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3)
	e := parseExpr(t, `1 + 2 * 3;`)
	add, ok := e.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	// comparison binds tighter than equality
	e = parseExpr(t, `1 < 2 == true;`)
	eq, ok := e.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "==", eq.Op)
	lt, ok := eq.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "<", lt.Op)

	// and binds tighter than or
	e = parseExpr(t, `a or b and c;`)
	or, ok := e.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, "or", or.Op)
	and, ok := or.Right.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, "and", and.Op)
}

func TestParensOverridePrecedence(t *testing.T) {
	e := parseExpr(t, `(1 + 2) * 3;`)
	mul, ok := e.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
	add, ok := mul.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
}

func TestUnaryChains(t *testing.T) {
	e := parseExpr(t, `--1;`)
	outer, ok := e.(*ast.Unary)
	require.True(t, ok)
	assert.Equal(t, "-", outer.Op)
	inner, ok := outer.Operand.(*ast.Unary)
	require.True(t, ok)
	assert.Equal(t, "-", inner.Op)

	e = parseExpr(t, `share 0;`)
	sh, ok := e.(*ast.Share)
	require.True(t, ok)
	lit, ok := sh.Inner.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, float64(0), lit.Value)
}

func TestLiterals(t *testing.T) {
	assert.Equal(t, float64(1.5), parseExpr(t, `1.5;`).(*ast.Literal).Value)
	assert.Equal(t, "hi", parseExpr(t, `"hi";`).(*ast.Literal).Value)
	assert.Equal(t, true, parseExpr(t, `true;`).(*ast.Literal).Value)
	assert.Equal(t, false, parseExpr(t, `false;`).(*ast.Literal).Value)
	assert.Nil(t, parseExpr(t, `null;`).(*ast.Literal).Value)
}

func TestArrayAndMapLiterals(t *testing.T) {
	arr, ok := parseExpr(t, `[1, 2, 3];`).(*ast.ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Elems, 3)

	empty, ok := parseExpr(t, `[];`).(*ast.ArrayLit)
	require.True(t, ok)
	assert.Empty(t, empty.Elems)

	// map keys may be identifiers or string literals
	m, ok := parseExpr(t, `{a: 1, "b c": 2};`).(*ast.MapLit)
	require.True(t, ok)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "a", m.Entries[0].Key)
	assert.Equal(t, "b c", m.Entries[1].Key)
}

func TestPostfixChains(t *testing.T) {
	// f(1)[2].push(3) nests call -> index -> method call
	e := parseExpr(t, `f(1)[2].push(3);`)
	mc, ok := e.(*ast.MethodCall)
	require.True(t, ok)
	assert.Equal(t, "push", mc.Name)
	require.Len(t, mc.Args, 1)
	idx, ok := mc.Recv.(*ast.Index)
	require.True(t, ok)
	call, ok := idx.Recv.(*ast.Call)
	require.True(t, ok)
	v, ok := call.Callee.(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "f", v.Name)
}

func TestAssignmentTargets(t *testing.T) {
	stmts := parse(t, `x = 1;`)
	as, ok := stmts[0].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "x", as.Name)

	stmts = parse(t, `m["k"][0] = 2;`)
	ia, ok := stmts[0].(*ast.IndexAssign)
	require.True(t, ok)
	inner, ok := ia.Recv.(*ast.Index)
	require.True(t, ok)
	_, ok = inner.Recv.(*ast.Variable)
	assert.True(t, ok)
}

func TestParamModes(t *testing.T) {
	stmts := parse(t, `fn f(a, borrow b, own c, shared d, own e: List) { return a; }`)
	fd, ok := stmts[0].(*ast.FuncDecl)
	require.True(t, ok)
	require.Len(t, fd.Params, 5)
	assert.Equal(t, value.ModeBorrow, fd.Params[0].Mode)
	assert.Equal(t, value.ModeBorrow, fd.Params[1].Mode)
	assert.Equal(t, value.ModeOwn, fd.Params[2].Mode)
	assert.Equal(t, value.ModeShared, fd.Params[3].Mode)
	assert.Equal(t, value.ModeOwn, fd.Params[4].Mode)
	assert.Equal(t, "List", fd.Params[4].TypeName)
	assert.Equal(t, "", fd.Params[0].TypeName)
}

func TestElseIfChains(t *testing.T) {
	stmts := parse(t, `if a { 1; } else if b { 2; } else { 3; }`)
	outer, ok := stmts[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, outer.Else, 1)
	inner, ok := outer.Else[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, inner.Else, 1)
}

func TestBareReturnInsideFunction(t *testing.T) {
	stmts := parse(t, `fn f() { return; }`)
	fd := stmts[0].(*ast.FuncDecl)
	require.Len(t, fd.Body, 1)
	ret, ok := fd.Body[0].(*ast.Return)
	require.True(t, ok)
	assert.Nil(t, ret.Expr)
}

func TestStatementTerminators(t *testing.T) {
	// semicolons optional before '}' and at EOF
	parse(t, `print 1`)
	parse(t, `if true { print 1 }`)
	_, err := ParseSource(`print 1 print 2;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected ';' after statement")
}

func TestPositionsOnNodes(t *testing.T) {
	stmts := parse(t, "let a = 1;\n  a = 2;")
	line, col := stmts[0].Pos()
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)
	line, col = stmts[1].Pos()
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"top-level return", `return 1;`, "'return' outside of a function"},
		{"nested fn", `fn f() { fn g() { return 1; } }`, "nested function declarations are not supported"},
		{"invalid assignment target", `1 + 2 = 3;`, "invalid assignment target"},
		{"missing let name", `let = 1;`, "expected variable name after 'let'"},
		{"missing index close", `a[1;`, "expected ']' after index"},
		{"method without call", `a.push;`, "expected '(' after method name"},
		{"bad map key", `{1: 2};`, "expected map key"},
		{"unexpected token", `let x = ;`, `unexpected token ";"`},
		{"unclosed block", `if true { print 1;`, "expected '}'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
