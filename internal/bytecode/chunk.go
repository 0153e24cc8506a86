// internal/bytecode/chunk.go
package bytecode

import (
	"fmt"

	"rill/internal/fault"
	"rill/internal/value"
)

// Span is one deduplicated source-span table entry. File indexes the
// chunk's file-name table.
type Span struct {
	File uint16
	Line uint32
	Col  uint32
}

// FuncProto is the compiled form of one function: metadata plus its own
// independently addressable chunk. It appears in constant pools and is
// converted to a runtime function value when loaded.
type FuncProto struct {
	Name       string
	Arity      int
	Modes      []value.Mode
	Params     []string
	LocalNames []string // params first, then hoisted locals, in slot order
	Chunk      *Chunk
}

// Chunk is one compiled unit: an instruction stream, a deduplicated
// constant pool, and a debug-info side table mapping every code offset to
// a deduplicated span. Chunks are produced by the compiler, optionally
// rewritten by the optimizer, and are read-only during execution.
type Chunk struct {
	Name      string
	Code      []byte
	Constants []interface{} // float64, string, bool, nil, *FuncProto
	Files     []string
	Spans     []Span
	SpanIdx   []uint32 // parallel to Code

	pending    Span
	constIndex map[string]int
	spanIndex  map[Span]uint32
	fileIndex  map[string]uint16
}

func NewChunk(name string) *Chunk {
	return &Chunk{
		Name:       name,
		constIndex: map[string]int{},
		spanIndex:  map[Span]uint32{},
		fileIndex:  map[string]uint16{},
	}
}

// SetSpan sets the source span recorded for subsequently written bytes.
func (c *Chunk) SetSpan(file string, line, col int) {
	idx, ok := c.fileIndex[file]
	if !ok {
		idx = uint16(len(c.Files))
		c.Files = append(c.Files, file)
		c.fileIndex[file] = idx
	}
	c.pending = Span{File: idx, Line: uint32(line), Col: uint32(col)}
}

func (c *Chunk) spanRef() uint32 {
	if i, ok := c.spanIndex[c.pending]; ok {
		return i
	}
	i := uint32(len(c.Spans))
	c.Spans = append(c.Spans, c.pending)
	c.spanIndex[c.pending] = i
	return i
}

func (c *Chunk) WriteOp(op OpCode) {
	c.Code = append(c.Code, byte(op))
	c.SpanIdx = append(c.SpanIdx, c.spanRef())
}

func (c *Chunk) WriteByte(b byte) {
	c.Code = append(c.Code, b)
	c.SpanIdx = append(c.SpanIdx, c.spanRef())
}

func (c *Chunk) WriteU16(v uint16) {
	c.WriteByte(byte(v >> 8))
	c.WriteByte(byte(v))
}

// PatchU16 overwrites a previously written u16 operand (jump backpatching).
func (c *Chunk) PatchU16(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

// AddConstant interns val into the pool, deduplicating numbers, strings,
// bools and null. Function prototypes are always appended.
func (c *Chunk) AddConstant(val interface{}) int {
	key := ""
	switch v := val.(type) {
	case nil:
		key = "n:"
	case bool:
		key = fmt.Sprintf("b:%t", v)
	case float64:
		key = fmt.Sprintf("f:%x", v)
	case string:
		key = "s:" + v
	}
	if key != "" {
		if i, ok := c.constIndex[key]; ok {
			return i
		}
	}
	i := len(c.Constants)
	c.Constants = append(c.Constants, val)
	if key != "" {
		if c.constIndex == nil {
			c.constIndex = map[string]int{}
		}
		c.constIndex[key] = i
	}
	return i
}

// Location resolves a code offset to its source location in O(1) via the
// span table; used for fault reporting.
func (c *Chunk) Location(offset int) fault.Location {
	if offset < 0 || offset >= len(c.SpanIdx) {
		return fault.Location{}
	}
	if int(c.SpanIdx[offset]) >= len(c.Spans) {
		return fault.Location{}
	}
	sp := c.Spans[c.SpanIdx[offset]]
	file := ""
	if int(sp.File) < len(c.Files) {
		file = c.Files[sp.File]
	}
	return fault.Location{File: file, Line: int(sp.Line), Column: int(sp.Col)}
}
