// internal/compiler/compiler.go
//
// Lowers the type-checked, ownership-annotated AST into bytecode chunks.
// Operand evaluation is left-to-right, boolean operators short-circuit by
// jumping, and nothing is reordered across a potential fault so fault
// timing matches the tree-walking interpreter exactly. Expressions leave
// one value on the operand stack; statements leave none.
package compiler

import (
	"fmt"
	"math"

	"rill/internal/ast"
	"rill/internal/bytecode"
	"rill/internal/stdlib"
)

type Compiler struct {
	chunk    *bytecode.Chunk
	fileName string

	// function scope; nil while compiling the script top level
	fn     *bytecode.FuncProto
	locals []string
	errs   []error
}

// Compile lowers a program into a script chunk.
func Compile(stmts []ast.Stmt, fileName string) (*bytecode.Chunk, error) {
	c := &Compiler{chunk: bytecode.NewChunk("<script>"), fileName: fileName}
	c.chunk.SetSpan(fileName, 1, 1)
	for _, s := range stmts {
		s.Accept(c)
	}
	c.emitOp(bytecode.OpNull)
	c.emitOp(bytecode.OpReturn)
	if len(c.errs) > 0 {
		return nil, c.errs[0]
	}
	return c.chunk, nil
}

func (c *Compiler) errorf(n interface{ Pos() (int, int) }, format string, args ...interface{}) {
	line, col := n.Pos()
	c.errs = append(c.errs, fmt.Errorf("compile error at %s:%d:%d: %s",
		c.fileName, line, col, fmt.Sprintf(format, args...)))
}

// emit helpers: every write carries the current source span

func (c *Compiler) at(n interface{ Pos() (int, int) }) {
	line, col := n.Pos()
	c.chunk.SetSpan(c.fileName, line, col)
}

func (c *Compiler) emitOp(op bytecode.OpCode) { c.chunk.WriteOp(op) }

func (c *Compiler) emitOpU16(op bytecode.OpCode, v uint16) {
	c.chunk.WriteOp(op)
	c.chunk.WriteU16(v)
}

// emitJump writes op with a placeholder target and returns the operand
// offset for backpatching.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.chunk.WriteOp(op)
	operand := len(c.chunk.Code)
	c.chunk.WriteU16(0xffff)
	return operand
}

// patchJump resolves a forward jump to the current end of code. Jump
// operands are u16, so a chunk past 64KiB is a compile error, never a
// silently truncated target.
func (c *Compiler) patchJump(operand int, n interface{ Pos() (int, int) }) {
	target := len(c.chunk.Code)
	if target > math.MaxUint16 {
		c.errorf(n, "chunk %q exceeds the 64KiB jump range", c.chunk.Name)
		return
	}
	c.chunk.PatchU16(operand, uint16(target))
}

func (c *Compiler) resolveLocal(name string) int {
	for i, n := range c.locals {
		if n == name {
			return i
		}
	}
	return -1
}

// ---- statements ----

func (c *Compiler) VisitLet(s *ast.Let) interface{} {
	s.Expr.Accept(c)
	c.at(s)
	if c.fn != nil {
		slot := c.resolveLocal(s.Name)
		if slot < 0 {
			// hoisting pre-declared every let; missing means a compiler bug
			c.errorf(s, "unhoisted local %q", s.Name)
			return nil
		}
		c.emitOp(bytecode.OpSetLocal)
		c.chunk.WriteByte(byte(slot))
		c.emitOp(bytecode.OpPop)
		return nil
	}
	idx := c.chunk.AddConstant(s.Name)
	c.emitOpU16(bytecode.OpDefineGlobal, uint16(idx))
	return nil
}

func (c *Compiler) VisitAssign(s *ast.Assign) interface{} {
	s.Expr.Accept(c)
	c.at(s)
	c.storeVariable(s.Name)
	c.emitOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) storeVariable(name string) {
	if c.fn != nil {
		if slot := c.resolveLocal(name); slot >= 0 {
			c.emitOp(bytecode.OpSetLocal)
			c.chunk.WriteByte(byte(slot))
			return
		}
	}
	idx := c.chunk.AddConstant(name)
	c.emitOpU16(bytecode.OpSetGlobal, uint16(idx))
}

func (c *Compiler) VisitIndexAssign(s *ast.IndexAssign) interface{} {
	s.Recv.Accept(c)
	s.Idx.Accept(c)
	s.Value.Accept(c)
	c.at(s)
	c.emitOp(bytecode.OpIndexSet)
	// write the updated collection back only when the receiver is a bare
	// binding; nested receivers require explicit reassignment or a shared
	// cell (see DESIGN.md)
	if recv, ok := s.Recv.(*ast.Variable); ok {
		c.storeVariable(recv.Name)
	}
	c.emitOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitExprStmt(s *ast.ExprStmt) interface{} {
	s.Expr.Accept(c)
	c.at(s)
	c.emitOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitPrint(s *ast.Print) interface{} {
	s.Expr.Accept(c)
	c.at(s)
	c.emitOp(bytecode.OpPrint)
	return nil
}

func (c *Compiler) VisitIf(s *ast.If) interface{} {
	s.Cond.Accept(c)
	c.at(s)
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	for _, st := range s.Then {
		st.Accept(c)
	}
	if len(s.Else) > 0 {
		endJump := c.emitJump(bytecode.OpJump)
		c.patchJump(elseJump, s)
		for _, st := range s.Else {
			st.Accept(c)
		}
		c.patchJump(endJump, s)
	} else {
		c.patchJump(elseJump, s)
	}
	return nil
}

func (c *Compiler) VisitWhile(s *ast.While) interface{} {
	loopStart := len(c.chunk.Code)
	s.Cond.Accept(c)
	c.at(s)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	for _, st := range s.Body {
		st.Accept(c)
	}
	c.at(s)
	if loopStart > math.MaxUint16 {
		c.errorf(s, "chunk %q exceeds the 64KiB jump range", c.chunk.Name)
		return nil
	}
	c.emitOpU16(bytecode.OpJump, uint16(loopStart))
	c.patchJump(exitJump, s)
	return nil
}

func (c *Compiler) VisitFuncDecl(s *ast.FuncDecl) interface{} {
	if c.fn != nil {
		c.errorf(s, "nested function declarations are not supported")
		return nil
	}
	proto := &bytecode.FuncProto{
		Name:  s.Name,
		Arity: len(s.Params),
		Chunk: bytecode.NewChunk(s.Name),
	}
	for _, p := range s.Params {
		proto.Modes = append(proto.Modes, p.Mode)
		proto.Params = append(proto.Params, p.Name)
	}

	sub := &Compiler{chunk: proto.Chunk, fileName: c.fileName, fn: proto}
	sub.at(s)
	sub.locals = append(sub.locals, proto.Params...)
	// hoist every let in the body so a slot exists even when the
	// declaration re-executes inside a loop
	for _, name := range hoistedLets(s.Body, nil) {
		if sub.resolveLocal(name) < 0 {
			sub.locals = append(sub.locals, name)
			sub.emitOp(bytecode.OpNull)
		}
	}
	proto.LocalNames = sub.locals
	for _, st := range s.Body {
		st.Accept(sub)
	}
	sub.at(s)
	sub.emitOp(bytecode.OpNull)
	sub.emitOp(bytecode.OpReturn)
	c.errs = append(c.errs, sub.errs...)

	c.at(s)
	idx := c.chunk.AddConstant(proto)
	c.emitOpU16(bytecode.OpConstant, uint16(idx))
	nameIdx := c.chunk.AddConstant(s.Name)
	c.emitOpU16(bytecode.OpDefineGlobal, uint16(nameIdx))
	return nil
}

func hoistedLets(stmts []ast.Stmt, acc []string) []string {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.Let:
			acc = append(acc, st.Name)
		case *ast.If:
			acc = hoistedLets(st.Then, acc)
			acc = hoistedLets(st.Else, acc)
		case *ast.While:
			acc = hoistedLets(st.Body, acc)
		}
	}
	return acc
}

func (c *Compiler) VisitReturn(s *ast.Return) interface{} {
	if s.Expr != nil {
		s.Expr.Accept(c)
	} else {
		c.at(s)
		c.emitOp(bytecode.OpNull)
	}
	c.at(s)
	c.emitOp(bytecode.OpReturn)
	return nil
}

// ---- expressions ----

func (c *Compiler) VisitLiteral(e *ast.Literal) interface{} {
	c.at(e)
	switch v := e.Value.(type) {
	case nil:
		c.emitOp(bytecode.OpNull)
	case bool:
		if v {
			c.emitOp(bytecode.OpTrue)
		} else {
			c.emitOp(bytecode.OpFalse)
		}
	default:
		idx := c.chunk.AddConstant(e.Value)
		c.emitOpU16(bytecode.OpConstant, uint16(idx))
	}
	return nil
}

func (c *Compiler) VisitArrayLit(e *ast.ArrayLit) interface{} {
	for _, el := range e.Elems {
		el.Accept(c)
	}
	c.at(e)
	c.emitOpU16(bytecode.OpArray, uint16(len(e.Elems)))
	return nil
}

func (c *Compiler) VisitMapLit(e *ast.MapLit) interface{} {
	for _, entry := range e.Entries {
		c.at(e)
		idx := c.chunk.AddConstant(entry.Key)
		c.emitOpU16(bytecode.OpConstant, uint16(idx))
		entry.Value.Accept(c)
	}
	c.at(e)
	c.emitOpU16(bytecode.OpMap, uint16(len(e.Entries)))
	return nil
}

func (c *Compiler) VisitVariable(e *ast.Variable) interface{} {
	c.at(e)
	if c.fn != nil {
		if slot := c.resolveLocal(e.Name); slot >= 0 {
			c.emitOp(bytecode.OpGetLocal)
			c.chunk.WriteByte(byte(slot))
			return nil
		}
	}
	idx := c.chunk.AddConstant(e.Name)
	c.emitOpU16(bytecode.OpGetGlobal, uint16(idx))
	return nil
}

func (c *Compiler) VisitUnary(e *ast.Unary) interface{} {
	e.Operand.Accept(c)
	c.at(e)
	if e.Op == "-" {
		c.emitOp(bytecode.OpNegate)
	} else {
		c.emitOp(bytecode.OpNot)
	}
	return nil
}

func (c *Compiler) VisitBinary(e *ast.Binary) interface{} {
	e.Left.Accept(c)
	e.Right.Accept(c)
	c.at(e)
	switch e.Op {
	case "+":
		c.emitOp(bytecode.OpAdd)
	case "-":
		c.emitOp(bytecode.OpSub)
	case "*":
		c.emitOp(bytecode.OpMul)
	case "/":
		c.emitOp(bytecode.OpDiv)
	case "%":
		c.emitOp(bytecode.OpMod)
	case "==":
		c.emitOp(bytecode.OpEqual)
	case "!=":
		c.emitOp(bytecode.OpNotEqual)
	case "<":
		c.emitOp(bytecode.OpLess)
	case "<=":
		c.emitOp(bytecode.OpLessEqual)
	case ">":
		c.emitOp(bytecode.OpGreater)
	case ">=":
		c.emitOp(bytecode.OpGreaterEqual)
	default:
		c.errorf(e, "unknown operator %q", e.Op)
	}
	return nil
}

func (c *Compiler) VisitLogical(e *ast.Logical) interface{} {
	e.Left.Accept(c)
	c.at(e)
	var short int
	if e.Op == "and" {
		short = c.emitJump(bytecode.OpJumpIfFalsePeek)
	} else {
		short = c.emitJump(bytecode.OpJumpIfTruePeek)
	}
	c.emitOp(bytecode.OpPop)
	e.Right.Accept(c)
	c.patchJump(short, e)
	return nil
}

func (c *Compiler) VisitCall(e *ast.Call) interface{} {
	e.Callee.Accept(c)
	var prov []bytecode.Provenance
	for i, a := range e.Args {
		a.Accept(c)
		if p, ok := c.provenance(a, i); ok {
			prov = append(prov, p)
		}
	}
	c.at(e)
	c.emitCall(len(e.Args), prov)
	return nil
}

func (c *Compiler) VisitMethodCall(e *ast.MethodCall) interface{} {
	// recv.name(args) is a builtin call with the receiver first
	c.at(e)
	nameIdx := c.chunk.AddConstant(e.Name)
	c.emitOpU16(bytecode.OpGetGlobal, uint16(nameIdx))
	e.Recv.Accept(c)
	var prov []bytecode.Provenance
	if p, ok := c.provenance(e.Recv, 0); ok {
		prov = append(prov, p)
	}
	for i, a := range e.Args {
		a.Accept(c)
		if p, ok := c.provenance(a, i+1); ok {
			prov = append(prov, p)
		}
	}
	c.at(e)
	c.emitCall(len(e.Args)+1, prov)
	if recv, ok := e.Recv.(*ast.Variable); ok && stdlib.Mutating(e.Name) {
		c.storeVariable(recv.Name)
	}
	return nil
}

// provenance records arguments that are bare bindings so own parameters
// can consume the caller's binding at the call site.
func (c *Compiler) provenance(arg ast.Expr, pos int) (bytecode.Provenance, bool) {
	v, ok := arg.(*ast.Variable)
	if !ok {
		return bytecode.Provenance{}, false
	}
	if c.fn != nil {
		if slot := c.resolveLocal(v.Name); slot >= 0 {
			return bytecode.Provenance{ArgPos: pos, Kind: bytecode.ProvLocal, Index: slot}, true
		}
	}
	idx := c.chunk.AddConstant(v.Name)
	return bytecode.Provenance{ArgPos: pos, Kind: bytecode.ProvGlobal, Index: idx}, true
}

func (c *Compiler) emitCall(argc int, prov []bytecode.Provenance) {
	c.emitOp(bytecode.OpCall)
	c.chunk.WriteByte(byte(argc))
	c.chunk.WriteByte(byte(len(prov)))
	for _, p := range prov {
		c.chunk.WriteByte(byte(p.ArgPos))
		c.chunk.WriteByte(byte(p.Kind))
		c.chunk.WriteU16(uint16(p.Index))
	}
}

func (c *Compiler) VisitIndex(e *ast.Index) interface{} {
	e.Recv.Accept(c)
	e.Idx.Accept(c)
	c.at(e)
	c.emitOp(bytecode.OpIndexGet)
	return nil
}

func (c *Compiler) VisitShare(e *ast.Share) interface{} {
	e.Inner.Accept(c)
	c.at(e)
	c.emitOp(bytecode.OpShare)
	return nil
}
