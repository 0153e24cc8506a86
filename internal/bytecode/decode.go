// internal/bytecode/decode.go
package bytecode

import "rill/internal/fault"

// Instr is one decoded instruction, used by the validator, the optimizer
// and the disassembler. The VM never decodes ahead of time; it reads the
// raw stream.
type Instr struct {
	Offset   int
	Op       OpCode
	Operands []byte
	SpanIdx  uint32
}

// U16 reads a big-endian u16 operand at byte position i.
func (in Instr) U16(i int) uint16 {
	return uint16(in.Operands[i])<<8 | uint16(in.Operands[i+1])
}

// CallShape decodes an OpCall operand block.
func (in Instr) CallShape() (argc int, prov []Provenance) {
	argc = int(in.Operands[0])
	n := int(in.Operands[1])
	for i := 0; i < n; i++ {
		base := 2 + i*4
		prov = append(prov, Provenance{
			ArgPos: int(in.Operands[base]),
			Kind:   int(in.Operands[base+1]),
			Index:  int(uint16(in.Operands[base+2])<<8 | uint16(in.Operands[base+3])),
		})
	}
	return argc, prov
}

// Provenance records that one call argument was a bare binding in the
// caller, so an own parameter can consume it.
type Provenance struct {
	ArgPos int
	Kind   int // ProvLocal or ProvGlobal
	Index  int
}

// operandWidth computes the operand byte count for the opcode at offset.
func operandWidth(code []byte, offset int) (int, *fault.Fault) {
	op := OpCode(code[offset])
	info := Info(op)
	if info.Name == "ILLEGAL" {
		return 0, fault.Malformed("illegal opcode 0x%02x at offset %d", code[offset], offset)
	}
	if info.OperandBytes >= 0 {
		return info.OperandBytes, nil
	}
	// OpCall: argc, nprov, then nprov 4-byte entries
	if offset+2 >= len(code) {
		return 0, fault.Malformed("truncated CALL at offset %d", offset)
	}
	return 2 + 4*int(code[offset+2]), nil
}

// Decode splits a chunk's code into instructions, faulting on truncated or
// illegal encodings.
func Decode(c *Chunk) ([]Instr, *fault.Fault) {
	var out []Instr
	for offset := 0; offset < len(c.Code); {
		width, f := operandWidth(c.Code, offset)
		if f != nil {
			return nil, f
		}
		end := offset + 1 + width
		if end > len(c.Code) {
			return nil, fault.Malformed("truncated instruction at offset %d", offset)
		}
		var span uint32
		if offset < len(c.SpanIdx) {
			span = c.SpanIdx[offset]
		}
		out = append(out, Instr{
			Offset:   offset,
			Op:       OpCode(c.Code[offset]),
			Operands: c.Code[offset+1 : end],
			SpanIdx:  span,
		})
		offset = end
	}
	return out, nil
}
