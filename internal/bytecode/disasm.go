// internal/bytecode/disasm.go
package bytecode

import (
	"fmt"
	"strings"

	"rill/internal/value"
)

// Disassemble renders a chunk and every function chunk it references.
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	disasmChunk(&sb, c)
	for _, konst := range c.Constants {
		if proto, ok := konst.(*FuncProto); ok {
			sb.WriteByte('\n')
			disasmChunk(&sb, proto.Chunk)
		}
	}
	return sb.String()
}

func disasmChunk(sb *strings.Builder, c *Chunk) {
	name := c.Name
	if name == "" {
		name = "<script>"
	}
	fmt.Fprintf(sb, "== %s ==\n", name)
	instrs, f := Decode(c)
	if f != nil {
		fmt.Fprintf(sb, "  %s\n", f.Message)
		return
	}
	lastLine := -1
	for _, in := range instrs {
		loc := c.Location(in.Offset)
		if loc.Line != lastLine {
			fmt.Fprintf(sb, "%04d %4d ", in.Offset, loc.Line)
			lastLine = loc.Line
		} else {
			fmt.Fprintf(sb, "%04d    | ", in.Offset)
		}
		sb.WriteString(Info(in.Op).Name)
		switch in.Op {
		case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
			idx := int(in.U16(0))
			fmt.Fprintf(sb, " %d", idx)
			if idx < len(c.Constants) {
				fmt.Fprintf(sb, " (%s)", constName(c.Constants[idx]))
			}
		case OpJump, OpJumpIfFalse, OpJumpIfFalsePeek, OpJumpIfTruePeek:
			fmt.Fprintf(sb, " -> %d", in.U16(0))
		case OpGetLocal, OpSetLocal:
			fmt.Fprintf(sb, " slot %d", in.Operands[0])
		case OpCall:
			argc, prov := in.CallShape()
			fmt.Fprintf(sb, " argc %d", argc)
			if len(prov) > 0 {
				fmt.Fprintf(sb, " prov %d", len(prov))
			}
		case OpArray, OpMap:
			fmt.Fprintf(sb, " n %d", in.U16(0))
		}
		sb.WriteByte('\n')
	}
}

func constName(konst interface{}) string {
	switch v := konst.(type) {
	case *FuncProto:
		return "<fn " + v.Name + ">"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return value.Format(v)
	}
}
