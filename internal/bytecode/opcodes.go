// internal/bytecode/opcodes.go
package bytecode

type OpCode byte

const (
	OpConstant OpCode = iota // u16 constant-pool index
	OpNull
	OpTrue
	OpFalse
	OpPop
	OpDup
	OpPrint
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpNot
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpJump            // u16 absolute target
	OpJumpIfFalse     // u16 absolute target; pops the condition
	OpJumpIfFalsePeek // u16 absolute target; leaves the condition (and)
	OpJumpIfTruePeek  // u16 absolute target; leaves the condition (or)
	OpDefineGlobal    // u16 name-constant index
	OpGetGlobal       // u16 name-constant index
	OpSetGlobal       // u16 name-constant index; leaves the value
	OpGetLocal        // u8 slot
	OpSetLocal        // u8 slot; leaves the value
	OpCall            // u8 argc, u8 nprov, nprov * (u8 argPos, u8 kind, u16 idx)
	OpReturn
	OpArray    // u16 element count
	OpMap      // u16 pair count
	OpIndexGet // recv idx -> element
	OpIndexSet // recv idx val -> updated recv
	OpShare

	opCount
)

// OpCount is the size of the dispatch table.
const OpCount = int(opCount)

// Provenance kinds carried on OpCall for arguments that are bare bindings,
// so the VM can mark the caller's binding consumed for own parameters.
const (
	ProvLocal  = 0
	ProvGlobal = 1
)

// OpInfo describes one opcode's encoding and constant operand-stack effect.
// OperandBytes < 0 means variable-width (OpCall). Pops < 0 means the pop
// count derives from an operand (OpCall, OpArray, OpMap).
type OpInfo struct {
	Name         string
	OperandBytes int
	Pops         int
	Pushes       int
}

var opTable = [OpCount]OpInfo{
	OpConstant:        {"CONSTANT", 2, 0, 1},
	OpNull:            {"NULL", 0, 0, 1},
	OpTrue:            {"TRUE", 0, 0, 1},
	OpFalse:           {"FALSE", 0, 0, 1},
	OpPop:             {"POP", 0, 1, 0},
	OpDup:             {"DUP", 0, 0, 1},
	OpPrint:           {"PRINT", 0, 1, 0},
	OpAdd:             {"ADD", 0, 2, 1},
	OpSub:             {"SUB", 0, 2, 1},
	OpMul:             {"MUL", 0, 2, 1},
	OpDiv:             {"DIV", 0, 2, 1},
	OpMod:             {"MOD", 0, 2, 1},
	OpNegate:          {"NEGATE", 0, 1, 1},
	OpNot:             {"NOT", 0, 1, 1},
	OpEqual:           {"EQUAL", 0, 2, 1},
	OpNotEqual:        {"NOT_EQUAL", 0, 2, 1},
	OpGreater:         {"GREATER", 0, 2, 1},
	OpGreaterEqual:    {"GREATER_EQUAL", 0, 2, 1},
	OpLess:            {"LESS", 0, 2, 1},
	OpLessEqual:       {"LESS_EQUAL", 0, 2, 1},
	OpJump:            {"JUMP", 2, 0, 0},
	OpJumpIfFalse:     {"JUMP_IF_FALSE", 2, 1, 0},
	OpJumpIfFalsePeek: {"JUMP_IF_FALSE_PEEK", 2, 0, 0},
	OpJumpIfTruePeek:  {"JUMP_IF_TRUE_PEEK", 2, 0, 0},
	OpDefineGlobal:    {"DEFINE_GLOBAL", 2, 1, 0},
	OpGetGlobal:       {"GET_GLOBAL", 2, 0, 1},
	OpSetGlobal:       {"SET_GLOBAL", 2, 0, 0},
	OpGetLocal:        {"GET_LOCAL", 1, 0, 1},
	OpSetLocal:        {"SET_LOCAL", 1, 0, 0},
	OpCall:            {"CALL", -1, -1, 1},
	OpReturn:          {"RETURN", 0, 1, 0},
	OpArray:           {"ARRAY", 2, -1, 1},
	OpMap:             {"MAP", 2, -1, 1},
	OpIndexGet:        {"INDEX_GET", 0, 2, 1},
	OpIndexSet:        {"INDEX_SET", 0, 3, 1},
	OpShare:           {"SHARE", 0, 1, 1},
}

// Info returns the encoding/effect descriptor for op.
func Info(op OpCode) OpInfo {
	if int(op) >= OpCount {
		return OpInfo{Name: "ILLEGAL", OperandBytes: 0}
	}
	return opTable[op]
}
