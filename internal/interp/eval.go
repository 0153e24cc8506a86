// internal/interp/eval.go
package interp

import (
	"rill/internal/ast"
	"rill/internal/fault"
	"rill/internal/ownership"
	"rill/internal/stdlib"
	"rill/internal/value"
)

func (in *Interp) evalExpr(env *Env, e ast.Expr) (value.Value, error) {
	switch ex := e.(type) {
	case *ast.Literal:
		return ex.Value, nil

	case *ast.ArrayLit:
		elems := make([]value.Value, 0, len(ex.Elems))
		for _, el := range ex.Elems {
			v, err := in.evalExpr(env, el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return value.NewArray(elems), nil

	case *ast.MapLit:
		items := make(map[string]value.Value, len(ex.Entries))
		for _, entry := range ex.Entries {
			v, err := in.evalExpr(env, entry.Value)
			if err != nil {
				return nil, err
			}
			if old, present := items[entry.Key]; present {
				value.Release(old)
			}
			items[entry.Key] = v
		}
		return value.NewMap(items), nil

	case *ast.Variable:
		v, _, ok := env.lookup(ex.Name)
		if !ok {
			return nil, fault.UndefinedName(ex.Name).At(in.at(ex))
		}
		if f := ownership.CheckRead(v); f != nil {
			return nil, f.At(in.at(ex))
		}
		return value.Retain(v), nil

	case *ast.Unary:
		operand, err := in.evalExpr(env, ex.Operand)
		if err != nil {
			return nil, err
		}
		var res value.Value
		var f *fault.Fault
		if ex.Op == "-" {
			res, f = value.Neg(operand)
		} else {
			res, f = value.Not(operand)
		}
		if f != nil {
			return nil, f.At(in.at(ex))
		}
		return res, nil

	case *ast.Binary:
		return in.evalBinary(env, ex)

	case *ast.Logical:
		left, err := in.evalExpr(env, ex.Left)
		if err != nil {
			return nil, err
		}
		b, f := value.AsBool(left)
		if f != nil {
			return nil, f.At(in.at(ex))
		}
		// short-circuit keeps the left operand as the result
		if ex.Op == "and" && !b {
			return left, nil
		}
		if ex.Op == "or" && b {
			return left, nil
		}
		value.Release(left)
		return in.evalExpr(env, ex.Right)

	case *ast.Call:
		callee, err := in.evalExpr(env, ex.Callee)
		if err != nil {
			return nil, err
		}
		args, err := in.evalArgs(env, ex.Args)
		if err != nil {
			return nil, err
		}
		return in.invoke(env, callee, args, ex.Args, ex)

	case *ast.MethodCall:
		return in.evalMethodCall(env, ex)

	case *ast.Index:
		recv, err := in.evalExpr(env, ex.Recv)
		if err != nil {
			return nil, err
		}
		idx, err := in.evalExpr(env, ex.Idx)
		if err != nil {
			return nil, err
		}
		res, f := indexGet(recv, idx)
		value.Release(recv)
		if f != nil {
			return nil, f.At(in.at(ex))
		}
		return res, nil

	case *ast.Share:
		inner, err := in.evalExpr(env, ex.Inner)
		if err != nil {
			return nil, err
		}
		return value.NewShared(inner), nil

	default:
		return nil, fault.New(fault.ValidationFault, "unknown expression %T", e)
	}
}

func (in *Interp) evalBinary(env *Env, ex *ast.Binary) (value.Value, error) {
	left, err := in.evalExpr(env, ex.Left)
	if err != nil {
		return nil, err
	}
	right, err := in.evalExpr(env, ex.Right)
	if err != nil {
		return nil, err
	}

	var res value.Value
	var f *fault.Fault
	switch ex.Op {
	case "+":
		res, f = value.Add(left, right)
	case "-":
		res, f = value.Sub(left, right)
	case "*":
		res, f = value.Mul(left, right)
	case "/":
		res, f = value.Div(left, right)
	case "%":
		res, f = value.Mod(left, right)
	case "==", "!=":
		eq := value.Equal(left, right)
		value.Release(left)
		value.Release(right)
		return eq == (ex.Op == "=="), nil
	default:
		res, f = value.Compare(ex.Op, left, right)
	}
	if f != nil {
		return nil, f.At(in.at(ex))
	}
	return res, nil
}

func (in *Interp) evalArgs(env *Env, args []ast.Expr) ([]value.Value, error) {
	vals := make([]value.Value, 0, len(args))
	for _, a := range args {
		v, err := in.evalExpr(env, a)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// evalMethodCall desugars recv.name(args) into name(recv, args...), with
// the write-back rule for mutating builtins on bare bindings. The method
// name resolves in the globals only; locals never shadow it, matching the
// compiled form.
func (in *Interp) evalMethodCall(env *Env, ex *ast.MethodCall) (value.Value, error) {
	callee, _, ok := in.globals.lookup(ex.Name)
	if !ok {
		return nil, fault.UndefinedName(ex.Name).At(in.at(ex))
	}
	if f := ownership.CheckRead(callee); f != nil {
		return nil, f.At(in.at(ex))
	}

	argNodes := make([]ast.Expr, 0, len(ex.Args)+1)
	argNodes = append(argNodes, ex.Recv)
	argNodes = append(argNodes, ex.Args...)
	args, err := in.evalArgs(env, argNodes)
	if err != nil {
		return nil, err
	}

	res, err := in.invoke(env, callee, args, argNodes, ex)
	if err != nil {
		return nil, err
	}
	if recv, bare := ex.Recv.(*ast.Variable); bare && stdlib.Mutating(ex.Name) {
		if err := in.assign(env, recv.Name, value.Retain(res), ex); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// invoke applies a callee to already-evaluated arguments. argNodes carries
// the source expressions so own parameters can consume bare bindings.
func (in *Interp) invoke(env *Env, callee value.Value, args []value.Value, argNodes []ast.Expr, node ast.Expr) (value.Value, error) {
	switch fn := callee.(type) {
	case *value.Function:
		return in.callFunction(env, fn, args, argNodes, node)
	case *value.Builtin:
		res, err := stdlib.Call(fn, args)
		if err != nil {
			return nil, in.located(err, node)
		}
		return res, nil
	default:
		return nil, fault.NotCallable(value.TypeName(callee)).At(in.at(node))
	}
}

func (in *Interp) callFunction(env *Env, fn *value.Function, args []value.Value, argNodes []ast.Expr, node ast.Expr) (value.Value, error) {
	if len(args) != fn.Arity {
		return nil, fault.ArityMismatch(fn.Name, fn.Arity, len(args)).At(in.at(node))
	}
	decl, ok := fn.Impl.(*ast.FuncDecl)
	if !ok {
		return nil, fault.NotCallable("function").At(in.at(node))
	}

	// shared parameters must receive an actual Shared cell
	for i, mode := range fn.Modes {
		if mode == value.ModeShared {
			if f := ownership.CheckShared(fn.ParamNames[i], args[i]); f != nil {
				return nil, f.At(in.at(node))
			}
		}
	}
	// own parameters consume the caller's bare binding
	for i, mode := range fn.Modes {
		if mode != value.ModeOwn {
			continue
		}
		v, bare := argNodes[i].(*ast.Variable)
		if !bare {
			continue
		}
		if old, owner, found := env.lookup(v.Name); found {
			value.Release(old)
			owner.vars[v.Name] = ownership.Consumed{Name: v.Name}
		}
	}

	if in.depth >= maxCallDepth {
		return nil, fault.CallStackOverflow().At(in.at(node))
	}
	in.depth++
	defer func() { in.depth-- }()

	// function scope sees its locals and the globals, nothing in between
	local := newEnv(in.globals)
	for i, name := range fn.ParamNames {
		local.vars[name] = args[i]
	}
	// pre-bind every let in the body so redeclaration inside a loop reuses
	// one binding and early reads observe null, as the compiled form does
	for _, name := range hoistLets(decl.Body, nil) {
		if _, bound := local.vars[name]; !bound {
			local.vars[name] = nil
		}
	}

	for _, s := range decl.Body {
		if _, err := in.execStmt(local, s); err != nil {
			if rs, returned := err.(returnSignal); returned {
				return rs.v, nil
			}
			return nil, err
		}
	}
	return nil, nil
}

func hoistLets(stmts []ast.Stmt, acc []string) []string {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.Let:
			acc = append(acc, st.Name)
		case *ast.If:
			acc = hoistLets(st.Then, acc)
			acc = hoistLets(st.Else, acc)
		case *ast.While:
			acc = hoistLets(st.Body, acc)
		}
	}
	return acc
}

func indexGet(recv, idx value.Value) (value.Value, *fault.Fault) {
	switch c := recv.(type) {
	case value.Array:
		return c.At(idx)
	case value.Map:
		key, ok := idx.(string)
		if !ok {
			return nil, fault.New(fault.TypeFault, "map index must be a string")
		}
		v, found := c.Get(key)
		if !found {
			return nil, fault.New(fault.BoundsFault, "key %q not found", key)
		}
		return v, nil
	case string:
		i, ok := idx.(float64)
		if !ok || i != float64(int(i)) || i < 0 {
			return nil, fault.NonIntegerIndex()
		}
		if int(i) >= len(c) {
			return nil, fault.IndexOutOfRange(int(i), len(c))
		}
		return string(c[int(i)]), nil
	}
	return nil, fault.New(fault.TypeFault, "value of type %s is not indexable", value.TypeName(recv))
}

func indexSet(recv, idx, val value.Value) (value.Value, *fault.Fault) {
	switch c := recv.(type) {
	case value.Array:
		return c.SetAt(idx, val)
	case value.Map:
		key, ok := idx.(string)
		if !ok {
			return nil, fault.New(fault.TypeFault, "map index must be a string")
		}
		return c.Set(key, val), nil
	}
	return nil, fault.New(fault.TypeFault, "value of type %s is not indexable", value.TypeName(recv))
}
