// internal/ast/ast.go
//
// The typed, ownership-annotated AST consumed by the compiler and the
// tree-walking interpreter. This is the boundary contract with the front
// end: the parser in this repository produces it, and an external type
// checker/binder annotates it (parameter modes and type names are carried
// here; checking them statically is outside this core).
package ast

import "rill/internal/value"

// Expr is an expression node.
type Expr interface {
	Accept(v ExprVisitor) interface{}
	Pos() (line, col int)
}

// Stmt is a statement node.
type Stmt interface {
	Accept(v StmtVisitor) interface{}
	Pos() (line, col int)
}

type ExprVisitor interface {
	VisitLiteral(e *Literal) interface{}
	VisitArrayLit(e *ArrayLit) interface{}
	VisitMapLit(e *MapLit) interface{}
	VisitVariable(e *Variable) interface{}
	VisitUnary(e *Unary) interface{}
	VisitBinary(e *Binary) interface{}
	VisitLogical(e *Logical) interface{}
	VisitCall(e *Call) interface{}
	VisitMethodCall(e *MethodCall) interface{}
	VisitIndex(e *Index) interface{}
	VisitShare(e *Share) interface{}
}

type StmtVisitor interface {
	VisitLet(s *Let) interface{}
	VisitAssign(s *Assign) interface{}
	VisitIndexAssign(s *IndexAssign) interface{}
	VisitExprStmt(s *ExprStmt) interface{}
	VisitPrint(s *Print) interface{}
	VisitIf(s *If) interface{}
	VisitWhile(s *While) interface{}
	VisitFuncDecl(s *FuncDecl) interface{}
	VisitReturn(s *Return) interface{}
}

// Param is one function parameter with its ownership annotation. TypeName
// is the declared type, carried for diagnostics; the checker owns it.
type Param struct {
	Name     string
	Mode     value.Mode
	TypeName string
}

type Base struct {
	Line, Col int
}

func (n Base) Pos() (int, int) { return n.Line, n.Col }


// Literal holds a number, string, bool or null constant.
type Literal struct {
	Base
	Value value.Value
}

type ArrayLit struct {
	Base
	Elems []Expr
}

type MapEntry struct {
	Key   string
	Value Expr
}

type MapLit struct {
	Base
	Entries []MapEntry
}

type Variable struct {
	Base
	Name string
}

type Unary struct {
	Base
	Op      string // "-" or "!"
	Operand Expr
}

type Binary struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

// Logical is short-circuit "and"/"or".
type Logical struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

type Call struct {
	Base
	Callee Expr
	Args   []Expr
}

// MethodCall is recv.name(args) sugar for a builtin call with the receiver
// as first argument. When the builtin mutates and recv is a bare binding,
// the evaluator writes the returned collection back into the binding.
type MethodCall struct {
	Base
	Recv Expr
	Name string
	Args []Expr
}

type Index struct {
	Base
	Recv Expr
	Idx  Expr
}

// Share wraps a value in an explicit Shared reference cell.
type Share struct {
	Base
	Inner Expr
}

type Let struct {
	Base
	Name string
	Expr Expr
}

type Assign struct {
	Base
	Name string
	Expr Expr
}

type IndexAssign struct {
	Base
	Recv  Expr
	Idx   Expr
	Value Expr
}

type ExprStmt struct {
	Base
	Expr Expr
}

type Print struct {
	Base
	Expr Expr
}

type If struct {
	Base
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type While struct {
	Base
	Cond Expr
	Body []Stmt
}

type FuncDecl struct {
	Base
	Name   string
	Params []Param
	Body   []Stmt
}

type Return struct {
	Base
	Expr Expr // nil for a bare return
}

func (e *Literal) Accept(v ExprVisitor) interface{}    { return v.VisitLiteral(e) }
func (e *ArrayLit) Accept(v ExprVisitor) interface{}   { return v.VisitArrayLit(e) }
func (e *MapLit) Accept(v ExprVisitor) interface{}     { return v.VisitMapLit(e) }
func (e *Variable) Accept(v ExprVisitor) interface{}   { return v.VisitVariable(e) }
func (e *Unary) Accept(v ExprVisitor) interface{}      { return v.VisitUnary(e) }
func (e *Binary) Accept(v ExprVisitor) interface{}     { return v.VisitBinary(e) }
func (e *Logical) Accept(v ExprVisitor) interface{}    { return v.VisitLogical(e) }
func (e *Call) Accept(v ExprVisitor) interface{}       { return v.VisitCall(e) }
func (e *MethodCall) Accept(v ExprVisitor) interface{} { return v.VisitMethodCall(e) }
func (e *Index) Accept(v ExprVisitor) interface{}      { return v.VisitIndex(e) }
func (e *Share) Accept(v ExprVisitor) interface{}      { return v.VisitShare(e) }

func (s *Let) Accept(v StmtVisitor) interface{}         { return v.VisitLet(s) }
func (s *Assign) Accept(v StmtVisitor) interface{}      { return v.VisitAssign(s) }
func (s *IndexAssign) Accept(v StmtVisitor) interface{} { return v.VisitIndexAssign(s) }
func (s *ExprStmt) Accept(v StmtVisitor) interface{}    { return v.VisitExprStmt(s) }
func (s *Print) Accept(v StmtVisitor) interface{}       { return v.VisitPrint(s) }
func (s *If) Accept(v StmtVisitor) interface{}          { return v.VisitIf(s) }
func (s *While) Accept(v StmtVisitor) interface{}       { return v.VisitWhile(s) }
func (s *FuncDecl) Accept(v StmtVisitor) interface{}    { return v.VisitFuncDecl(s) }
func (s *Return) Accept(v StmtVisitor) interface{}      { return v.VisitReturn(s) }
