// internal/bytecode/validate.go
package bytecode

import "rill/internal/fault"

// Validate checks a chunk before execution: every opcode legal, operands
// in range, jump targets on instruction boundaries, constant-pool and
// provenance indices in range, and the operand stack depth never negative
// along any path. Function prototypes in the pool are validated
// recursively. A malformed chunk never executes a single instruction.
func Validate(c *Chunk) *fault.Fault {
	if f := validateOne(c, 0); f != nil {
		return f
	}
	for _, konst := range c.Constants {
		if proto, ok := konst.(*FuncProto); ok {
			if proto.Chunk == nil {
				return fault.Malformed("function %q has no code", proto.Name)
			}
			if f := validateOne(proto.Chunk, proto.Arity); f != nil {
				return f
			}
		}
	}
	return nil
}

func validateOne(c *Chunk, arity int) *fault.Fault {
	instrs, f := Decode(c)
	if f != nil {
		return f
	}
	if len(instrs) == 0 {
		return fault.Malformed("empty chunk %q", c.Name)
	}
	// the debug side tables are dereferenced without checks during fault
	// annotation, so their indices are range-checked here instead
	if len(c.SpanIdx) != len(c.Code) {
		return fault.Malformed("span table length %d does not match code length %d in chunk %q",
			len(c.SpanIdx), len(c.Code), c.Name)
	}
	for off, idx := range c.SpanIdx {
		if int(idx) >= len(c.Spans) {
			return fault.Malformed("span index %d out of range at offset %d", idx, off)
		}
	}
	for i, sp := range c.Spans {
		if int(sp.File) >= len(c.Files) {
			return fault.Malformed("file index %d out of range in span %d", sp.File, i)
		}
	}
	byOffset := make(map[int]int, len(instrs))
	for i, in := range instrs {
		byOffset[in.Offset] = i
	}

	// locals below the frame base are the arguments
	localCeiling := func(depth int) int { return arity + depth }

	type state struct {
		instr int
		depth int
	}
	seen := make(map[int]int, len(instrs))
	work := []state{{0, 0}}
	for len(work) > 0 {
		st := work[len(work)-1]
		work = work[:len(work)-1]
		if d, ok := seen[st.instr]; ok {
			if d == st.depth {
				continue
			}
			return fault.Malformed("inconsistent stack depth at offset %d", instrs[st.instr].Offset)
		}
		seen[st.instr] = st.depth

		in := instrs[st.instr]
		info := Info(in.Op)

		pops := info.Pops
		switch in.Op {
		case OpCall:
			argc, prov := in.CallShape()
			pops = argc + 1
			for _, p := range prov {
				if p.ArgPos >= argc {
					return fault.Malformed("provenance for argument %d of a %d-argument call", p.ArgPos, argc)
				}
				if p.Kind != ProvLocal && p.Kind != ProvGlobal {
					return fault.Malformed("unknown provenance kind %d", p.Kind)
				}
				if p.Kind == ProvGlobal && p.Index >= len(c.Constants) {
					return fault.Malformed("provenance name index %d out of range", p.Index)
				}
			}
		case OpArray:
			pops = int(in.U16(0))
		case OpMap:
			pops = 2 * int(in.U16(0))
		}
		needs := pops
		switch in.Op {
		case OpDup, OpSetGlobal, OpSetLocal, OpJumpIfFalsePeek, OpJumpIfTruePeek:
			// these peek at the top without popping
			needs = 1
		}
		if st.depth < needs {
			return fault.Malformed("operand stack underflow at offset %d", in.Offset)
		}
		depth := st.depth - pops + info.Pushes

		switch in.Op {
		case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
			if int(in.U16(0)) >= len(c.Constants) {
				return fault.Malformed("constant index %d out of range at offset %d", in.U16(0), in.Offset)
			}
		case OpGetLocal, OpSetLocal:
			if int(in.Operands[0]) >= localCeiling(st.depth) {
				return fault.Malformed("local slot %d out of range at offset %d", in.Operands[0], in.Offset)
			}
		}

		switch in.Op {
		case OpReturn:
			continue // path ends
		case OpJump:
			next, ok := byOffset[int(in.U16(0))]
			if !ok {
				return fault.Malformed("jump target %d is not an instruction boundary", in.U16(0))
			}
			work = append(work, state{next, depth})
			continue
		case OpJumpIfFalse, OpJumpIfFalsePeek, OpJumpIfTruePeek:
			next, ok := byOffset[int(in.U16(0))]
			if !ok {
				return fault.Malformed("jump target %d is not an instruction boundary", in.U16(0))
			}
			work = append(work, state{next, depth})
		}

		if st.instr+1 >= len(instrs) {
			return fault.Malformed("control falls off the end of chunk %q", c.Name)
		}
		work = append(work, state{st.instr + 1, depth})
	}
	return nil
}
