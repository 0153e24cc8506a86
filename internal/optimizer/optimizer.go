// internal/optimizer/optimizer.go
//
// Post-compile bytecode rewriting. Every pass is semantics-preserving on
// the observable level: values produced, print output, fault kind and
// location. A fold that could fault at runtime (division by zero, a
// non-finite result) is left in place so the fault still surfaces at its
// instruction. Passes run to a fixpoint and can be toggled independently.
package optimizer

import (
	"rill/internal/bytecode"
	"rill/internal/fault"
	"rill/internal/value"
)

// Options selects which passes run.
type Options struct {
	Fold     bool // constant folding
	DCE      bool // unreachable-code elimination
	Peephole bool // local pattern rewrites
}

func All() Options { return Options{Fold: true, DCE: true, Peephole: true} }

func None() Options { return Options{} }

// node is one instruction in symbolic form: jumps hold a pointer to their
// target instruction instead of a byte offset, so passes can insert and
// remove freely and targets survive.
type node struct {
	op       bytecode.OpCode
	operands []byte
	target   *node // non-nil for jump opcodes
	span     uint32
	offset   int // assigned during encoding
}

func isJump(op bytecode.OpCode) bool {
	switch op {
	case bytecode.OpJump, bytecode.OpJumpIfFalse,
		bytecode.OpJumpIfFalsePeek, bytecode.OpJumpIfTruePeek:
		return true
	}
	return false
}

// Optimize rewrites a chunk under the given options. The input chunk is
// left untouched; function prototypes in the constant pool are rewritten
// recursively.
func Optimize(c *bytecode.Chunk, opts Options) (*bytecode.Chunk, error) {
	if !opts.Fold && !opts.DCE && !opts.Peephole {
		return c, nil
	}
	consts := make([]interface{}, len(c.Constants))
	copy(consts, c.Constants)
	for i, konst := range consts {
		proto, ok := konst.(*bytecode.FuncProto)
		if !ok {
			continue
		}
		sub, err := Optimize(proto.Chunk, opts)
		if err != nil {
			return nil, err
		}
		consts[i] = &bytecode.FuncProto{
			Name:       proto.Name,
			Arity:      proto.Arity,
			Modes:      proto.Modes,
			Params:     proto.Params,
			LocalNames: proto.LocalNames,
			Chunk:      sub,
		}
	}

	nodes, f := buildGraph(c)
	if f != nil {
		return nil, f
	}
	for {
		changed := false
		if opts.Fold {
			var did bool
			nodes, did = foldPass(nodes, &consts)
			changed = changed || did
		}
		if opts.Peephole {
			var did bool
			nodes, did = peepholePass(nodes)
			changed = changed || did
		}
		if opts.DCE {
			var did bool
			nodes, did = dcePass(nodes)
			changed = changed || did
		}
		if !changed {
			break
		}
	}
	return encode(c, nodes, consts), nil
}

func buildGraph(c *bytecode.Chunk) ([]*node, *fault.Fault) {
	instrs, f := bytecode.Decode(c)
	if f != nil {
		return nil, f
	}
	nodes := make([]*node, len(instrs))
	byOffset := make(map[int]*node, len(instrs))
	for i, in := range instrs {
		operands := make([]byte, len(in.Operands))
		copy(operands, in.Operands)
		nodes[i] = &node{op: in.Op, operands: operands, span: in.SpanIdx, offset: in.Offset}
		byOffset[in.Offset] = nodes[i]
	}
	for _, n := range nodes {
		if !isJump(n.op) {
			continue
		}
		target := int(uint16(n.operands[0])<<8 | uint16(n.operands[1]))
		t, ok := byOffset[target]
		if !ok {
			return nil, fault.Malformed("jump target %d is not an instruction boundary", target)
		}
		n.target = t
	}
	return nodes, nil
}

// targeted returns the set of nodes some jump lands on.
func targeted(nodes []*node) map[*node]bool {
	set := map[*node]bool{}
	for _, n := range nodes {
		if n.target != nil {
			set[n.target] = true
		}
	}
	return set
}

func retarget(nodes []*node, from, to *node) {
	for _, n := range nodes {
		if n.target == from {
			n.target = to
		}
	}
}

// constVal extracts the compile-time value a pure push produces.
func constVal(n *node, consts []interface{}) (value.Value, bool) {
	switch n.op {
	case bytecode.OpNull:
		return nil, true
	case bytecode.OpTrue:
		return true, true
	case bytecode.OpFalse:
		return false, true
	case bytecode.OpConstant:
		idx := int(uint16(n.operands[0])<<8 | uint16(n.operands[1]))
		switch v := consts[idx].(type) {
		case float64, string, bool:
			return v, true
		case nil:
			return nil, true
		}
	}
	return nil, false
}

func addConst(consts *[]interface{}, v interface{}) int {
	for i, existing := range *consts {
		if _, isProto := existing.(*bytecode.FuncProto); isProto {
			continue
		}
		if existing == v {
			return i
		}
	}
	*consts = append(*consts, v)
	return len(*consts) - 1
}

// pushNode rewrites n in place into a push of v, so jumps aimed at the
// start of a folded pattern keep working.
func pushNode(n *node, v value.Value, consts *[]interface{}) {
	switch tv := v.(type) {
	case nil:
		n.op, n.operands = bytecode.OpNull, nil
	case bool:
		if tv {
			n.op, n.operands = bytecode.OpTrue, nil
		} else {
			n.op, n.operands = bytecode.OpFalse, nil
		}
	default:
		idx := addConst(consts, v)
		n.op = bytecode.OpConstant
		n.operands = []byte{byte(idx >> 8), byte(idx)}
	}
	n.target = nil
}

// foldBinary evaluates op over two compile-time operands. A nil result
// with ok=false means the fold must not happen (runtime fault or type
// mismatch that should surface at runtime).
func foldBinary(op bytecode.OpCode, a, b value.Value) (value.Value, bool) {
	var res value.Value
	var f *fault.Fault
	switch op {
	case bytecode.OpAdd:
		res, f = value.Add(a, b)
	case bytecode.OpSub:
		res, f = value.Sub(a, b)
	case bytecode.OpMul:
		res, f = value.Mul(a, b)
	case bytecode.OpDiv:
		res, f = value.Div(a, b)
	case bytecode.OpMod:
		res, f = value.Mod(a, b)
	case bytecode.OpEqual:
		return value.Equal(a, b), true
	case bytecode.OpNotEqual:
		return !value.Equal(a, b), true
	case bytecode.OpLess:
		res, f = value.Compare("<", a, b)
	case bytecode.OpLessEqual:
		res, f = value.Compare("<=", a, b)
	case bytecode.OpGreater:
		res, f = value.Compare(">", a, b)
	case bytecode.OpGreaterEqual:
		res, f = value.Compare(">=", a, b)
	default:
		return nil, false
	}
	if f != nil {
		return nil, false
	}
	return res, true
}

func foldUnary(op bytecode.OpCode, a value.Value) (value.Value, bool) {
	var res value.Value
	var f *fault.Fault
	switch op {
	case bytecode.OpNegate:
		res, f = value.Neg(a)
	case bytecode.OpNot:
		res, f = value.Not(a)
	default:
		return nil, false
	}
	if f != nil {
		return nil, false
	}
	return res, true
}

// foldPass runs one sweep of constant folding. Folding nested expressions
// converges because each fold produces a new push that the next sweep can
// fold again (2 + 3 * 4 reaches 14 in two sweeps).
func foldPass(nodes []*node, consts *[]interface{}) ([]*node, bool) {
	tset := targeted(nodes)
	changed := false
	out := nodes[:0]
	i := 0
	for i < len(nodes) {
		// binary: push a, push b, op
		if i+2 < len(nodes) && !tset[nodes[i+1]] && !tset[nodes[i+2]] {
			a, okA := constVal(nodes[i], *consts)
			b, okB := constVal(nodes[i+1], *consts)
			if okA && okB {
				if res, ok := foldBinary(nodes[i+2].op, a, b); ok {
					pushNode(nodes[i], res, consts)
					out = append(out, nodes[i])
					i += 3
					changed = true
					continue
				}
			}
		}
		// unary: push a, op
		if i+1 < len(nodes) && !tset[nodes[i+1]] {
			if a, okA := constVal(nodes[i], *consts); okA {
				if res, ok := foldUnary(nodes[i+1].op, a); ok {
					pushNode(nodes[i], res, consts)
					out = append(out, nodes[i])
					i += 2
					changed = true
					continue
				}
			}
		}
		out = append(out, nodes[i])
		i++
	}
	return out, changed
}

// producesBool reports opcodes whose result is always a bool.
func producesBool(op bytecode.OpCode) bool {
	switch op {
	case bytecode.OpTrue, bytecode.OpFalse, bytecode.OpNot,
		bytecode.OpEqual, bytecode.OpNotEqual,
		bytecode.OpLess, bytecode.OpLessEqual,
		bytecode.OpGreater, bytecode.OpGreaterEqual:
		return true
	}
	return false
}

// purePush reports opcodes with no effect other than pushing a constant.
func purePush(op bytecode.OpCode) bool {
	switch op {
	case bytecode.OpConstant, bytecode.OpNull, bytecode.OpTrue, bytecode.OpFalse:
		return true
	}
	return false
}

func peepholePass(nodes []*node) ([]*node, bool) {
	tset := targeted(nodes)
	changed := false
	out := nodes[:0]
	i := 0
	for i < len(nodes) {
		n := nodes[i]
		// unconditional jump to the next instruction
		if n.op == bytecode.OpJump && i+1 < len(nodes) && n.target == nodes[i+1] {
			retarget(nodes, n, nodes[i+1])
			i++
			changed = true
			continue
		}
		// pure push immediately discarded
		if i+2 < len(nodes) && purePush(n.op) &&
			nodes[i+1].op == bytecode.OpPop && !tset[nodes[i+1]] {
			retarget(nodes, n, nodes[i+2])
			i += 2
			changed = true
			continue
		}
		// double negation, removable only when the operand is provably a
		// bool: OpNot faults on anything else, and that fault must survive
		if n.op == bytecode.OpNot && i+2 < len(nodes) &&
			nodes[i+1].op == bytecode.OpNot && !tset[n] && !tset[nodes[i+1]] &&
			len(out) > 0 && producesBool(out[len(out)-1].op) {
			retarget(nodes, n, nodes[i+2])
			i += 2
			changed = true
			continue
		}
		out = append(out, n)
		i++
	}
	return out, changed
}

// dcePass drops instructions no control path reaches. Reachability walks
// fallthrough and jump edges from the entry; OpReturn and OpJump end a
// straight-line run.
func dcePass(nodes []*node) ([]*node, bool) {
	if len(nodes) == 0 {
		return nodes, false
	}
	index := make(map[*node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	reachable := make([]bool, len(nodes))
	work := []int{0}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		if i >= len(nodes) || reachable[i] {
			continue
		}
		reachable[i] = true
		n := nodes[i]
		switch {
		case n.op == bytecode.OpReturn:
		case n.op == bytecode.OpJump:
			work = append(work, index[n.target])
		case isJump(n.op):
			work = append(work, i+1, index[n.target])
		default:
			work = append(work, i+1)
		}
	}
	out := nodes[:0]
	changed := false
	for i, n := range nodes {
		if reachable[i] {
			out = append(out, n)
		} else {
			changed = true
		}
	}
	return out, changed
}

// encode lays the node list back out as bytecode, resolving symbolic jump
// targets to the new offsets. The span side table is carried through
// byte-for-byte so fault locations survive every rewrite.
func encode(src *bytecode.Chunk, nodes []*node, consts []interface{}) *bytecode.Chunk {
	offset := 0
	for _, n := range nodes {
		n.offset = offset
		offset += 1 + len(n.operands)
	}
	out := bytecode.NewChunk(src.Name)
	out.Constants = consts
	out.Files = append([]string(nil), src.Files...)
	out.Spans = append([]bytecode.Span(nil), src.Spans...)
	out.Code = make([]byte, 0, offset)
	out.SpanIdx = make([]uint32, 0, offset)
	emit := func(b byte, span uint32) {
		out.Code = append(out.Code, b)
		out.SpanIdx = append(out.SpanIdx, span)
	}
	for _, n := range nodes {
		emit(byte(n.op), n.span)
		if n.target != nil {
			t := uint16(n.target.offset)
			emit(byte(t>>8), n.span)
			emit(byte(t), n.span)
			continue
		}
		for _, b := range n.operands {
			emit(b, n.span)
		}
	}
	return out
}
