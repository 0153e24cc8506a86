// internal/fault/fault.go
package fault

import (
	"fmt"
	"strings"
)

// Kind classifies a runtime fault
type Kind string

const (
	ArithmeticFault Kind = "ArithmeticFault"
	BoundsFault     Kind = "BoundsFault"
	OwnershipFault  Kind = "OwnershipFault"
	StackDepthFault Kind = "StackDepthFault"
	ValidationFault Kind = "ValidationFault"
	TypeFault       Kind = "TypeFault"
	ReferenceFault  Kind = "ReferenceFault"
)

// Location represents a location in source code
type Location struct {
	File   string
	Line   int
	Column int
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Fault is a runtime fault with source location information.
// Both execution engines construct faults only through this package,
// so kind and message are identical for the same violation.
type Fault struct {
	Kind      Kind
	Message   string
	Location  Location
	CallStack []StackFrame
}

// Error implements the error interface
func (f *Fault) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", f.Kind, f.Message))
	if f.Location.Line > 0 {
		file := f.Location.File
		if file == "" {
			file = "<input>"
		}
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", file, f.Location.Line, f.Location.Column))
	}
	if len(f.CallStack) > 0 {
		sb.WriteString("\nCall Stack:")
		for _, fr := range f.CallStack {
			if fr.Function != "" {
				sb.WriteString(fmt.Sprintf("\n  at %s (%s:%d:%d)", fr.Function, fr.File, fr.Line, fr.Column))
			} else {
				sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", fr.File, fr.Line, fr.Column))
			}
		}
	}
	return sb.String()
}

// New creates a fault with a formatted message
func New(kind Kind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At attaches a source location; the first location attached wins so the
// fault always points at the instruction that produced it.
func (f *Fault) At(loc Location) *Fault {
	if f.Location.Line == 0 {
		f.Location = loc
	}
	return f
}

// PushFrame appends a call-stack frame (innermost first)
func (f *Fault) PushFrame(function, file string, line, column int) *Fault {
	f.CallStack = append(f.CallStack, StackFrame{
		Function: function,
		File:     file,
		Line:     line,
		Column:   column,
	})
	return f
}

// Of extracts the Fault from err, or wraps a foreign error as a TypeFault
// so no error is ever silently swallowed or coerced into a value.
func Of(err error) *Fault {
	if f, ok := err.(*Fault); ok {
		return f
	}
	return &Fault{Kind: TypeFault, Message: err.Error()}
}

// Shared constructors: every violation both engines can raise goes through
// one of these so the fault kind and message match byte for byte.

func DivisionByZero() *Fault {
	return New(ArithmeticFault, "division by zero")
}

func ModuloByZero() *Fault {
	return New(ArithmeticFault, "modulo by zero")
}

func NumericOverflow(op string) *Fault {
	return New(ArithmeticFault, "numeric overflow in '%s'", op)
}

func InvalidNumericResult(op string) *Fault {
	return New(ArithmeticFault, "invalid numeric result in '%s'", op)
}

func IndexOutOfRange(index, length int) *Fault {
	return New(BoundsFault, "index %d out of range for length %d", index, length)
}

func NonIntegerIndex() *Fault {
	return New(BoundsFault, "collection index must be a non-negative integer")
}

func UseOfConsumed(name string) *Fault {
	return New(OwnershipFault, "use of consumed binding '%s'", name)
}

func SharedRequired(param string) *Fault {
	return New(OwnershipFault, "parameter '%s' requires a shared value", param)
}

func OperandStackOverflow() *Fault {
	return New(StackDepthFault, "operand stack overflow")
}

func CallStackOverflow() *Fault {
	return New(StackDepthFault, "call stack overflow")
}

func ArityMismatch(name string, want, got int) *Fault {
	return New(TypeFault, "function '%s' expects %d arguments, got %d", name, want, got)
}

func NotCallable(what string) *Fault {
	return New(TypeFault, "value of type %s is not callable", what)
}

func UndefinedName(name string) *Fault {
	return New(ReferenceFault, "undefined name '%s'", name)
}

func OperandTypes(op, left, right string) *Fault {
	return New(TypeFault, "operator '%s' cannot be applied to %s and %s", op, left, right)
}

func ConditionNotBool(got string) *Fault {
	return New(TypeFault, "condition must be a bool, got %s", got)
}

func Malformed(format string, args ...interface{}) *Fault {
	return New(ValidationFault, format, args...)
}
