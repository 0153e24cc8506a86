// internal/bytecode/serialize.go
//
// The on-disk bytecode format, version 1:
//
//	magic "RILB" | u32 version | u32 chunk count | chunks
//
// Each chunk: name, file-name table, constant pool (length-prefixed
// entries: f64 LE numbers, length-prefixed UTF-8 strings, function
// metadata records referencing other chunks by index), the deduplicated
// span table with per-instruction indices, then the raw instruction
// stream. All integers little-endian. A version mismatch invalidates the
// file and forces recompilation; it is never executed.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"rill/internal/value"
)

const (
	magic         = "RILB"
	FormatVersion = uint32(1)
)

// ErrVersionMismatch marks a cache file written by a different format
// version; the caller recompiles from source.
var ErrVersionMismatch = errors.New("bytecode format version mismatch")

const (
	constNumber = 0
	constString = 1
	constBool   = 2
	constNull   = 3
	constFunc   = 4
)

// Serialize writes root and every chunk reachable from it.
func Serialize(root *Chunk) ([]byte, error) {
	var chunks []*Chunk
	index := map[*Chunk]uint32{}
	var collect func(c *Chunk)
	collect = func(c *Chunk) {
		if _, ok := index[c]; ok {
			return
		}
		index[c] = uint32(len(chunks))
		chunks = append(chunks, c)
		for _, konst := range c.Constants {
			if proto, ok := konst.(*FuncProto); ok {
				collect(proto.Chunk)
			}
		}
	}
	collect(root)

	var buf bytes.Buffer
	buf.WriteString(magic)
	writeU32(&buf, FormatVersion)
	writeU32(&buf, uint32(len(chunks)))
	for _, c := range chunks {
		if err := writeChunk(&buf, c, index); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeChunk(buf *bytes.Buffer, c *Chunk, index map[*Chunk]uint32) error {
	writeStr(buf, c.Name)
	writeU32(buf, uint32(len(c.Files)))
	for _, f := range c.Files {
		writeStr(buf, f)
	}
	writeU32(buf, uint32(len(c.Constants)))
	for _, konst := range c.Constants {
		switch v := konst.(type) {
		case float64:
			buf.WriteByte(constNumber)
			writeU64(buf, math.Float64bits(v))
		case string:
			buf.WriteByte(constString)
			writeStr(buf, v)
		case bool:
			buf.WriteByte(constBool)
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case nil:
			buf.WriteByte(constNull)
		case *FuncProto:
			buf.WriteByte(constFunc)
			writeStr(buf, v.Name)
			buf.WriteByte(byte(v.Arity))
			buf.WriteByte(byte(len(v.Params)))
			for i, p := range v.Params {
				buf.WriteByte(byte(v.Modes[i]))
				writeStr(buf, p)
			}
			writeU32(buf, uint32(len(v.LocalNames)))
			for _, n := range v.LocalNames {
				writeStr(buf, n)
			}
			writeU32(buf, index[v.Chunk])
		default:
			return errors.Errorf("unserializable constant %T", konst)
		}
	}
	writeU32(buf, uint32(len(c.Spans)))
	for _, sp := range c.Spans {
		writeU16(buf, sp.File)
		writeU32(buf, sp.Line)
		writeU32(buf, sp.Col)
	}
	writeU32(buf, uint32(len(c.SpanIdx)))
	for _, i := range c.SpanIdx {
		writeU32(buf, i)
	}
	writeU32(buf, uint32(len(c.Code)))
	buf.Write(c.Code)
	return nil
}

// Deserialize parses a bytecode file. The result still passes through
// Validate before execution.
func Deserialize(data []byte) (*Chunk, error) {
	r := bytes.NewReader(data)
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil || string(head) != magic {
		return nil, errors.New("not a rill bytecode file")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading format version")
	}
	if version != FormatVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "file version %d, runtime version %d", version, FormatVersion)
	}
	count, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading chunk count")
	}
	chunks := make([]*Chunk, count)
	for i := range chunks {
		chunks[i] = NewChunk("")
	}
	// protos reference chunks by index; resolve after all chunks are read
	var fixups []fixup
	for i := range chunks {
		if err := readChunk(r, chunks[i], &fixups); err != nil {
			return nil, err
		}
	}
	for _, fx := range fixups {
		if int(fx.chunk) >= len(chunks) {
			return nil, errors.Errorf("function %q references chunk %d of %d", fx.proto.Name, fx.chunk, len(chunks))
		}
		fx.proto.Chunk = chunks[fx.chunk]
	}
	if len(chunks) == 0 {
		return nil, errors.New("bytecode file has no chunks")
	}
	return chunks[0], nil
}

func readChunk(r *bytes.Reader, c *Chunk, fixups *[]fixup) error {
	var err error
	if c.Name, err = readStr(r); err != nil {
		return errors.Wrap(err, "reading chunk name")
	}
	nFiles, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nFiles; i++ {
		f, err := readStr(r)
		if err != nil {
			return err
		}
		c.Files = append(c.Files, f)
	}
	nConst, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nConst; i++ {
		tag, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch tag {
		case constNumber:
			bits, err := readU64(r)
			if err != nil {
				return err
			}
			c.Constants = append(c.Constants, math.Float64frombits(bits))
		case constString:
			s, err := readStr(r)
			if err != nil {
				return err
			}
			c.Constants = append(c.Constants, s)
		case constBool:
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			c.Constants = append(c.Constants, b != 0)
		case constNull:
			c.Constants = append(c.Constants, nil)
		case constFunc:
			proto := &FuncProto{}
			if proto.Name, err = readStr(r); err != nil {
				return err
			}
			arity, err := r.ReadByte()
			if err != nil {
				return err
			}
			proto.Arity = int(arity)
			nParams, err := r.ReadByte()
			if err != nil {
				return err
			}
			for p := byte(0); p < nParams; p++ {
				mode, err := r.ReadByte()
				if err != nil {
					return err
				}
				name, err := readStr(r)
				if err != nil {
					return err
				}
				proto.Modes = append(proto.Modes, value.Mode(mode))
				proto.Params = append(proto.Params, name)
			}
			nLocals, err := readU32(r)
			if err != nil {
				return err
			}
			for l := uint32(0); l < nLocals; l++ {
				name, err := readStr(r)
				if err != nil {
					return err
				}
				proto.LocalNames = append(proto.LocalNames, name)
			}
			chunkIdx, err := readU32(r)
			if err != nil {
				return err
			}
			*fixups = append(*fixups, fixup{proto: proto, chunk: chunkIdx})
			c.Constants = append(c.Constants, proto)
		default:
			return errors.Errorf("unknown constant tag %d", tag)
		}
	}
	nSpans, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nSpans; i++ {
		var sp Span
		if sp.File, err = readU16(r); err != nil {
			return err
		}
		if sp.Line, err = readU32(r); err != nil {
			return err
		}
		if sp.Col, err = readU32(r); err != nil {
			return err
		}
		c.Spans = append(c.Spans, sp)
	}
	nIdx, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nIdx; i++ {
		v, err := readU32(r)
		if err != nil {
			return err
		}
		c.SpanIdx = append(c.SpanIdx, v)
	}
	nCode, err := readU32(r)
	if err != nil {
		return err
	}
	c.Code = make([]byte, nCode)
	if _, err := io.ReadFull(r, c.Code); err != nil {
		return errors.Wrap(err, "reading instruction stream")
	}
	return nil
}

type fixup struct {
	proto *FuncProto
	chunk uint32
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeStr(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readStr(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", errors.Errorf("string length %d exceeds remaining input", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
