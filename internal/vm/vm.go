// internal/vm/vm.go
package vm

import (
	"fmt"
	"io"
	"os"

	"rill/internal/bytecode"
	"rill/internal/fault"
	"rill/internal/ownership"
	"rill/internal/stdlib"
	"rill/internal/value"
)

const (
	initialStack = 256
	maxStackSize = 65536
	maxFrames    = 1024
)

// CallFrame is one function activation: the active chunk, the instruction
// pointer, and the operand-stack offset of local slot 0. Teardown is O(1):
// truncate the operand stack to base-1.
type CallFrame struct {
	chunk *bytecode.Chunk
	proto *bytecode.FuncProto // nil for the script frame
	ip    int
	base  int
}

// VM is the stack-based bytecode interpreter.
type VM struct {
	frames     []CallFrame
	frameCount int
	stack      []value.Value
	stackTop   int
	globals    map[string]value.Value
	out        io.Writer

	halted bool
	result value.Value
}

// New creates a VM for one script chunk. Builtins are preloaded as
// globals so user code and compiled method calls resolve them by name.
func New(chunk *bytecode.Chunk) *VM {
	vm := &VM{
		frames:  make([]CallFrame, maxFrames),
		stack:   make([]value.Value, initialStack),
		globals: make(map[string]value.Value, 64),
		out:     os.Stdout,
	}
	for name, b := range stdlib.All() {
		vm.globals[name] = b
	}
	vm.frames[0] = CallFrame{chunk: chunk}
	vm.frameCount = 1
	return vm
}

// SetOutput redirects the print statement, used by the REPL and tests.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// Globals exposes final global state for observation in tests.
func (vm *VM) Globals() map[string]value.Value { return vm.globals }

// Run validates the chunk, then executes until the script returns or a
// fault unwinds. Dispatch is a direct index into the opcode handler
// table; the instruction pointer is bounds-checked at every fetch.
func (vm *VM) Run() (value.Value, error) {
	if f := bytecode.Validate(vm.frames[0].chunk); f != nil {
		return nil, f
	}
	for vm.frameCount > 0 && !vm.halted {
		frame := &vm.frames[vm.frameCount-1]
		if frame.ip >= len(frame.chunk.Code) {
			return nil, fault.Malformed("instruction pointer %d out of bounds", frame.ip)
		}
		opOffset := frame.ip
		op := frame.chunk.Code[frame.ip]
		frame.ip++
		if f := dispatch[op](vm); f != nil {
			return nil, vm.annotate(f, opOffset)
		}
	}
	return vm.result, nil
}

// annotate attaches the faulting instruction's source location and the
// call stack, resolved in O(1) per frame via the span tables.
func (vm *VM) annotate(f *fault.Fault, opOffset int) *fault.Fault {
	top := &vm.frames[vm.frameCount-1]
	f.At(top.chunk.Location(opOffset))
	for i := vm.frameCount - 2; i >= 0; i-- {
		frame := &vm.frames[i]
		loc := frame.chunk.Location(frame.ip - 1)
		f.PushFrame(frame.chunk.Name, loc.File, loc.Line, loc.Column)
	}
	return f
}

// ---- stack primitives ----

func (vm *VM) push(v value.Value) *fault.Fault {
	if vm.stackTop == len(vm.stack) {
		if len(vm.stack) >= maxStackSize {
			return fault.OperandStackOverflow()
		}
		grown := make([]value.Value, len(vm.stack)*2)
		copy(grown, vm.stack)
		vm.stack = grown
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
	return nil
}

// pop's non-empty precondition is guaranteed by the validator's stack
// simulation, so no depth check is repeated here.
func (vm *VM) pop() value.Value {
	vm.stackTop--
	v := vm.stack[vm.stackTop]
	vm.stack[vm.stackTop] = nil
	return v
}

func (vm *VM) peek() value.Value { return vm.stack[vm.stackTop-1] }

func (vm *VM) readByte() byte {
	frame := &vm.frames[vm.frameCount-1]
	b := frame.chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readU16() uint16 {
	frame := &vm.frames[vm.frameCount-1]
	hi := uint16(frame.chunk.Code[frame.ip])
	lo := uint16(frame.chunk.Code[frame.ip+1])
	frame.ip += 2
	return hi<<8 | lo
}

func (vm *VM) frame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) constant(idx uint16) interface{} {
	return vm.frame().chunk.Constants[idx]
}

// ---- calls ----

func (vm *VM) call() *fault.Fault {
	argc := int(vm.readByte())
	nprov := int(vm.readByte())
	prov := make([]bytecode.Provenance, 0, nprov)
	for i := 0; i < nprov; i++ {
		argPos := int(vm.readByte())
		kind := int(vm.readByte())
		idx := int(vm.readU16())
		prov = append(prov, bytecode.Provenance{ArgPos: argPos, Kind: kind, Index: idx})
	}

	callee := vm.stack[vm.stackTop-argc-1]
	switch fn := callee.(type) {
	case *value.Function:
		return vm.callFunction(fn, argc, prov)
	case *value.Builtin:
		args := make([]value.Value, argc)
		copy(args, vm.stack[vm.stackTop-argc:vm.stackTop])
		for i := vm.stackTop - argc - 1; i < vm.stackTop; i++ {
			vm.stack[i] = nil
		}
		vm.stackTop -= argc + 1
		res, err := stdlib.Call(fn, args)
		if err != nil {
			return fault.Of(err)
		}
		return vm.push(res)
	default:
		return fault.NotCallable(value.TypeName(callee))
	}
}

func (vm *VM) callFunction(fn *value.Function, argc int, prov []bytecode.Provenance) *fault.Fault {
	if argc != fn.Arity {
		return fault.ArityMismatch(fn.Name, fn.Arity, argc)
	}
	proto, ok := fn.Impl.(*bytecode.FuncProto)
	if !ok {
		return fault.NotCallable("function")
	}
	base := vm.stackTop - argc

	// shared parameters must receive an actual Shared cell
	for i, mode := range fn.Modes {
		if mode == value.ModeShared {
			if f := ownership.CheckShared(fn.ParamNames[i], vm.stack[base+i]); f != nil {
				return f
			}
		}
	}
	// own parameters consume the caller's bare binding
	caller := vm.frame()
	for _, p := range prov {
		if p.ArgPos >= len(fn.Modes) || fn.Modes[p.ArgPos] != value.ModeOwn {
			continue
		}
		switch p.Kind {
		case bytecode.ProvLocal:
			name := localName(caller, p.Index)
			value.Release(vm.stack[caller.base+p.Index])
			vm.stack[caller.base+p.Index] = ownership.Consumed{Name: name}
		case bytecode.ProvGlobal:
			name, _ := caller.chunk.Constants[p.Index].(string)
			value.Release(vm.globals[name])
			vm.globals[name] = ownership.Consumed{Name: name}
		}
	}

	if vm.frameCount >= maxFrames {
		return fault.CallStackOverflow()
	}
	vm.frames[vm.frameCount] = CallFrame{chunk: proto.Chunk, proto: proto, base: base}
	vm.frameCount++
	return nil
}

func localName(frame *CallFrame, slot int) string {
	if frame.proto != nil && slot < len(frame.proto.LocalNames) {
		return frame.proto.LocalNames[slot]
	}
	return fmt.Sprintf("local#%d", slot)
}

func (vm *VM) ret() *fault.Fault {
	result := vm.pop()
	frame := vm.frame()
	if vm.frameCount == 1 {
		vm.halted = true
		vm.result = result
		return nil
	}
	// O(1) frame teardown: truncate to the saved base, dropping the
	// callee slot below it. Skipped releases only risk an extra clone.
	for i := frame.base - 1; i < vm.stackTop; i++ {
		vm.stack[i] = nil
	}
	vm.stackTop = frame.base - 1
	vm.frameCount--
	return vm.push(result)
}
