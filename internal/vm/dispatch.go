// internal/vm/dispatch.go
//
// The opcode dispatch table: execution indexes directly into it, no
// fallback scan. The validator has already rejected illegal opcodes, so
// every slot reached at runtime is populated.
package vm

import (
	"fmt"

	"rill/internal/bytecode"
	"rill/internal/fault"
	"rill/internal/ownership"
	"rill/internal/value"
)

type handler func(*VM) *fault.Fault

var dispatch [bytecode.OpCount]handler

func init() {
	dispatch[bytecode.OpConstant] = opConstant
	dispatch[bytecode.OpNull] = func(vm *VM) *fault.Fault { return vm.push(nil) }
	dispatch[bytecode.OpTrue] = func(vm *VM) *fault.Fault { return vm.push(true) }
	dispatch[bytecode.OpFalse] = func(vm *VM) *fault.Fault { return vm.push(false) }
	dispatch[bytecode.OpPop] = opPop
	dispatch[bytecode.OpDup] = opDup
	dispatch[bytecode.OpPrint] = opPrint
	dispatch[bytecode.OpAdd] = binaryOp(value.Add)
	dispatch[bytecode.OpSub] = binaryOp(value.Sub)
	dispatch[bytecode.OpMul] = binaryOp(value.Mul)
	dispatch[bytecode.OpDiv] = binaryOp(value.Div)
	dispatch[bytecode.OpMod] = binaryOp(value.Mod)
	dispatch[bytecode.OpNegate] = opNegate
	dispatch[bytecode.OpNot] = opNot
	dispatch[bytecode.OpEqual] = opEqual(false)
	dispatch[bytecode.OpNotEqual] = opEqual(true)
	dispatch[bytecode.OpGreater] = compareOp(">")
	dispatch[bytecode.OpGreaterEqual] = compareOp(">=")
	dispatch[bytecode.OpLess] = compareOp("<")
	dispatch[bytecode.OpLessEqual] = compareOp("<=")
	dispatch[bytecode.OpJump] = opJump
	dispatch[bytecode.OpJumpIfFalse] = opJumpIfFalse
	dispatch[bytecode.OpJumpIfFalsePeek] = opJumpIfFalsePeek
	dispatch[bytecode.OpJumpIfTruePeek] = opJumpIfTruePeek
	dispatch[bytecode.OpDefineGlobal] = opDefineGlobal
	dispatch[bytecode.OpGetGlobal] = opGetGlobal
	dispatch[bytecode.OpSetGlobal] = opSetGlobal
	dispatch[bytecode.OpGetLocal] = opGetLocal
	dispatch[bytecode.OpSetLocal] = opSetLocal
	dispatch[bytecode.OpCall] = (*VM).call
	dispatch[bytecode.OpReturn] = (*VM).ret
	dispatch[bytecode.OpArray] = opArray
	dispatch[bytecode.OpMap] = opMap
	dispatch[bytecode.OpIndexGet] = opIndexGet
	dispatch[bytecode.OpIndexSet] = opIndexSet
	dispatch[bytecode.OpShare] = opShare
}

func opConstant(vm *VM) *fault.Fault {
	konst := vm.constant(vm.readU16())
	if proto, ok := konst.(*bytecode.FuncProto); ok {
		return vm.push(&value.Function{
			Name:       proto.Name,
			Arity:      proto.Arity,
			Modes:      proto.Modes,
			ParamNames: proto.Params,
			Impl:       proto,
		})
	}
	return vm.push(konst)
}

func opPop(vm *VM) *fault.Fault {
	value.Release(vm.pop())
	return nil
}

func opDup(vm *VM) *fault.Fault {
	return vm.push(value.Retain(vm.peek()))
}

func opPrint(vm *VM) *fault.Fault {
	v := vm.pop()
	fmt.Fprintln(vm.out, value.Format(v))
	value.Release(v)
	return nil
}

func binaryOp(fn func(a, b value.Value) (value.Value, *fault.Fault)) handler {
	return func(vm *VM) *fault.Fault {
		b := vm.pop()
		a := vm.pop()
		res, f := fn(a, b)
		if f != nil {
			return f
		}
		return vm.push(res)
	}
}

func opNegate(vm *VM) *fault.Fault {
	res, f := value.Neg(vm.pop())
	if f != nil {
		return f
	}
	return vm.push(res)
}

func opNot(vm *VM) *fault.Fault {
	res, f := value.Not(vm.pop())
	if f != nil {
		return f
	}
	return vm.push(res)
}

func opEqual(negate bool) handler {
	return func(vm *VM) *fault.Fault {
		b := vm.pop()
		a := vm.pop()
		eq := value.Equal(a, b)
		value.Release(a)
		value.Release(b)
		return vm.push(eq != negate)
	}
}

func compareOp(op string) handler {
	return func(vm *VM) *fault.Fault {
		b := vm.pop()
		a := vm.pop()
		res, f := value.Compare(op, a, b)
		if f != nil {
			return f
		}
		return vm.push(res)
	}
}

func opJump(vm *VM) *fault.Fault {
	target := vm.readU16()
	vm.frame().ip = int(target)
	return nil
}

func opJumpIfFalse(vm *VM) *fault.Fault {
	target := vm.readU16()
	cond, f := value.AsBool(vm.pop())
	if f != nil {
		return f
	}
	if !cond {
		vm.frame().ip = int(target)
	}
	return nil
}

func opJumpIfFalsePeek(vm *VM) *fault.Fault {
	target := vm.readU16()
	cond, f := value.AsBool(vm.peek())
	if f != nil {
		return f
	}
	if !cond {
		vm.frame().ip = int(target)
	}
	return nil
}

func opJumpIfTruePeek(vm *VM) *fault.Fault {
	target := vm.readU16()
	cond, f := value.AsBool(vm.peek())
	if f != nil {
		return f
	}
	if cond {
		vm.frame().ip = int(target)
	}
	return nil
}

func opDefineGlobal(vm *VM) *fault.Fault {
	name := vm.constant(vm.readU16()).(string)
	if old, ok := vm.globals[name]; ok {
		value.Release(old)
	}
	vm.globals[name] = vm.pop()
	return nil
}

func opGetGlobal(vm *VM) *fault.Fault {
	name := vm.constant(vm.readU16()).(string)
	v, ok := vm.globals[name]
	if !ok {
		return fault.UndefinedName(name)
	}
	if f := ownership.CheckRead(v); f != nil {
		return f
	}
	return vm.push(value.Retain(v))
}

func opSetGlobal(vm *VM) *fault.Fault {
	name := vm.constant(vm.readU16()).(string)
	old, ok := vm.globals[name]
	if !ok {
		return fault.UndefinedName(name)
	}
	value.Release(old)
	vm.globals[name] = value.Retain(vm.peek())
	return nil
}

func opGetLocal(vm *VM) *fault.Fault {
	slot := int(vm.readByte())
	v := vm.stack[vm.frame().base+slot]
	if f := ownership.CheckRead(v); f != nil {
		return f
	}
	return vm.push(value.Retain(v))
}

func opSetLocal(vm *VM) *fault.Fault {
	slot := int(vm.readByte())
	frame := vm.frame()
	value.Release(vm.stack[frame.base+slot])
	vm.stack[frame.base+slot] = value.Retain(vm.peek())
	return nil
}

func opArray(vm *VM) *fault.Fault {
	n := int(vm.readU16())
	elems := make([]value.Value, n)
	copy(elems, vm.stack[vm.stackTop-n:vm.stackTop])
	for i := vm.stackTop - n; i < vm.stackTop; i++ {
		vm.stack[i] = nil
	}
	vm.stackTop -= n
	return vm.push(value.NewArray(elems))
}

func opMap(vm *VM) *fault.Fault {
	n := int(vm.readU16())
	items := make(map[string]value.Value, n)
	base := vm.stackTop - 2*n
	for i := 0; i < n; i++ {
		key, ok := vm.stack[base+2*i].(string)
		if !ok {
			return fault.New(fault.TypeFault, "map key must be a string")
		}
		if old, present := items[key]; present {
			value.Release(old)
		}
		items[key] = vm.stack[base+2*i+1]
	}
	for i := base; i < vm.stackTop; i++ {
		vm.stack[i] = nil
	}
	vm.stackTop = base
	return vm.push(value.NewMap(items))
}

func opIndexGet(vm *VM) *fault.Fault {
	idx := vm.pop()
	recv := vm.pop()
	res, f := indexGet(recv, idx)
	value.Release(recv)
	if f != nil {
		return f
	}
	return vm.push(res)
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

func opIndexSet(vm *VM) *fault.Fault {
	val := vm.pop()
	idx := vm.pop()
	recv := vm.pop()
	res, f := indexSet(recv, idx, val)
	if f != nil {
		return f
	}
	return vm.push(res)
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

func opShare(vm *VM) *fault.Fault {
	return vm.push(value.NewShared(vm.pop()))
}
