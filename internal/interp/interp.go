// internal/interp/interp.go
//
// The tree-walking evaluator: recurses directly over the AST with no
// compilation step, sharing the value model, the ownership enforcement
// entry points and the stdlib call convention with the VM. It must match
// the VM on every observable: evaluation order, fault kind and timing,
// and print output. The REPL uses it for single-expression latency.
package interp

import (
	"fmt"
	"io"
	"os"

	"rill/internal/ast"
	"rill/internal/fault"
	"rill/internal/stdlib"
	"rill/internal/value"
)

const maxCallDepth = 1024

// Env is one binding scope: function locals chained to the globals.
type Env struct {
	vars   map[string]value.Value
	parent *Env
}

func newEnv(parent *Env) *Env {
	return &Env{vars: map[string]value.Value{}, parent: parent}
}

func (e *Env) lookup(name string) (value.Value, *Env, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, env, true
		}
	}
	return nil, nil, false
}

func (e *Env) define(name string, v value.Value) {
	if old, ok := e.vars[name]; ok {
		value.Release(old)
	}
	e.vars[name] = v
}

// Interp is the tree-walking engine. Globals persist across Exec calls so
// an interactive session keeps its bindings after a fault.
type Interp struct {
	globals  *Env
	out      io.Writer
	fileName string
	depth    int
}

func New() *Interp {
	in := &Interp{globals: newEnv(nil), out: os.Stdout, fileName: "<input>"}
	for name, b := range stdlib.All() {
		in.globals.vars[name] = b
	}
	return in
}

func (in *Interp) SetOutput(w io.Writer) { in.out = w }

func (in *Interp) SetFileName(name string) { in.fileName = name }

// Globals exposes final global state for observation in tests.
func (in *Interp) Globals() map[string]value.Value { return in.globals.vars }

// returnSignal unwinds a function body; it is not a fault.
type returnSignal struct {
	v value.Value
}

func (returnSignal) Error() string { return "return outside function" }

// Exec runs a program. The value of the last top-level expression
// statement is returned for the REPL to echo.
func (in *Interp) Exec(stmts []ast.Stmt) (value.Value, error) {
	var last value.Value
	for _, s := range stmts {
		v, err := in.execStmt(in.globals, s)
		if err != nil {
			if _, ok := err.(returnSignal); ok {
				return nil, fault.New(fault.ValidationFault, "'return' outside of a function")
			}
			return nil, err
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

func (in *Interp) at(n interface{ Pos() (int, int) }) fault.Location {
	line, col := n.Pos()
	return fault.Location{File: in.fileName, Line: line, Column: col}
}

func (in *Interp) located(err error, n interface{ Pos() (int, int) }) error {
	if f, ok := err.(*fault.Fault); ok {
		return f.At(in.at(n))
	}
	return err
}

// execStmt returns a non-nil value only for expression statements, so the
// REPL can echo results.
func (in *Interp) execStmt(env *Env, s ast.Stmt) (value.Value, error) {
	switch st := s.(type) {
	case *ast.Let:
		v, err := in.evalExpr(env, st.Expr)
		if err != nil {
			return nil, err
		}
		env.define(st.Name, v)
		return nil, nil

	case *ast.Assign:
		v, err := in.evalExpr(env, st.Expr)
		if err != nil {
			return nil, err
		}
		if err := in.assign(env, st.Name, v, st); err != nil {
			return nil, err
		}
		return nil, nil

	case *ast.IndexAssign:
		return nil, in.execIndexAssign(env, st)

	case *ast.ExprStmt:
		v, err := in.evalExpr(env, st.Expr)
		if err != nil {
			return nil, err
		}
		return v, nil

	case *ast.Print:
		v, err := in.evalExpr(env, st.Expr)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(in.out, value.Format(v))
		value.Release(v)
		return nil, nil

	case *ast.If:
		cond, err := in.evalExpr(env, st.Cond)
		if err != nil {
			return nil, err
		}
		b, f := value.AsBool(cond)
		if f != nil {
			return nil, f.At(in.at(st))
		}
		if b {
			return nil, in.execBlock(env, st.Then)
		}
		return nil, in.execBlock(env, st.Else)

	case *ast.While:
		for {
			cond, err := in.evalExpr(env, st.Cond)
			if err != nil {
				return nil, err
			}
			b, f := value.AsBool(cond)
			if f != nil {
				return nil, f.At(in.at(st))
			}
			if !b {
				return nil, nil
			}
			if err := in.execBlock(env, st.Body); err != nil {
				return nil, err
			}
		}

	case *ast.FuncDecl:
		fn := &value.Function{
			Name:  st.Name,
			Arity: len(st.Params),
			Impl:  st,
		}
		for _, p := range st.Params {
			fn.Modes = append(fn.Modes, p.Mode)
			fn.ParamNames = append(fn.ParamNames, p.Name)
		}
		in.globals.define(st.Name, fn)
		return nil, nil

	case *ast.Return:
		var v value.Value
		if st.Expr != nil {
			var err error
			v, err = in.evalExpr(env, st.Expr)
			if err != nil {
				return nil, err
			}
		}
		return nil, returnSignal{v: v}

	default:
		return nil, fault.New(fault.ValidationFault, "unknown statement %T", s)
	}
}

func (in *Interp) execBlock(env *Env, stmts []ast.Stmt) error {
	for _, s := range stmts {
		if _, err := in.execStmt(env, s); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) assign(env *Env, name string, v value.Value, n interface{ Pos() (int, int) }) error {
	if _, owner, ok := env.lookup(name); ok {
		owner.define(name, v)
		return nil
	}
	return fault.UndefinedName(name).At(in.at(n))
}

func (in *Interp) execIndexAssign(env *Env, st *ast.IndexAssign) error {
	recv, err := in.evalExpr(env, st.Recv)
	if err != nil {
		return err
	}
	idx, err := in.evalExpr(env, st.Idx)
	if err != nil {
		return err
	}
	val, err := in.evalExpr(env, st.Value)
	if err != nil {
		return err
	}
	updated, f := indexSet(recv, idx, val)
	if f != nil {
		return f.At(in.at(st))
	}
	// write back only through a bare binding (see DESIGN.md)
	if v, ok := st.Recv.(*ast.Variable); ok {
		return in.assign(env, v.Name, updated, st)
	}
	value.Release(updated)
	return nil
}
