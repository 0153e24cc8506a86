// internal/value/arith.go
//
// Checked arithmetic and comparison over values. Both engines dispatch here
// so a given operation faults with the same kind and message at the same
// point: divide/modulo by zero faults before the operation, and any result
// that is NaN or infinite faults at the instruction that produced it.
package value

import (
	"math"

	"rill/internal/fault"
)

func numericResult(op string, n float64) (Value, *fault.Fault) {
	if math.IsNaN(n) {
		return nil, fault.InvalidNumericResult(op)
	}
	if math.IsInf(n, 0) {
		return nil, fault.NumericOverflow(op)
	}
	return n, nil
}

// Add evaluates a + b: numeric addition or string concatenation.
func Add(a, b Value) (Value, *fault.Fault) {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return numericResult("+", x+y)
		}
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	}
	return nil, fault.OperandTypes("+", TypeName(a), TypeName(b))
}

func Sub(a, b Value) (Value, *fault.Fault) {
	x, xok := a.(float64)
	y, yok := b.(float64)
	if !xok || !yok {
		return nil, fault.OperandTypes("-", TypeName(a), TypeName(b))
	}
	return numericResult("-", x-y)
}

func Mul(a, b Value) (Value, *fault.Fault) {
	x, xok := a.(float64)
	y, yok := b.(float64)
	if !xok || !yok {
		return nil, fault.OperandTypes("*", TypeName(a), TypeName(b))
	}
	return numericResult("*", x*y)
}

func Div(a, b Value) (Value, *fault.Fault) {
	x, xok := a.(float64)
	y, yok := b.(float64)
	if !xok || !yok {
		return nil, fault.OperandTypes("/", TypeName(a), TypeName(b))
	}
	if y == 0 {
		return nil, fault.DivisionByZero()
	}
	return numericResult("/", x/y)
}

func Mod(a, b Value) (Value, *fault.Fault) {
	x, xok := a.(float64)
	y, yok := b.(float64)
	if !xok || !yok {
		return nil, fault.OperandTypes("%", TypeName(a), TypeName(b))
	}
	if y == 0 {
		return nil, fault.ModuloByZero()
	}
	return numericResult("%", math.Mod(x, y))
}

func Neg(a Value) (Value, *fault.Fault) {
	x, ok := a.(float64)
	if !ok {
		return nil, fault.OperandTypes("-", TypeName(a), "nothing")
	}
	return numericResult("-", -x)
}

// Not evaluates logical negation; the operand must be a bool.
func Not(a Value) (Value, *fault.Fault) {
	x, ok := a.(bool)
	if !ok {
		return nil, fault.ConditionNotBool(TypeName(a))
	}
	return !x, nil
}

// AsBool asserts a condition value is a bool; the language has no truthiness.
func AsBool(v Value) (bool, *fault.Fault) {
	b, ok := v.(bool)
	if !ok {
		return false, fault.ConditionNotBool(TypeName(v))
	}
	return b, nil
}

// Compare evaluates an ordering operator: "<", "<=", ">" or ">=".
// Numbers compare numerically, strings lexicographically.
func Compare(op string, a, b Value) (Value, *fault.Fault) {
	var cmp int
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return nil, fault.OperandTypes(op, TypeName(a), TypeName(b))
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	case string:
		y, ok := b.(string)
		if !ok {
			return nil, fault.OperandTypes(op, TypeName(a), TypeName(b))
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	default:
		return nil, fault.OperandTypes(op, TypeName(a), TypeName(b))
	}
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, fault.OperandTypes(op, TypeName(a), TypeName(b))
}
