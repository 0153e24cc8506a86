// internal/ownership/ownership.go
//
// Runtime enforcement of the own/borrow/shared parameter contract. The
// modes themselves live with the value model (value.Mode); this package
// holds the checks both engines call at call boundaries so a violation
// produces the identical fault from either engine.
//
// borrow needs no bookkeeping: correctness follows from value semantics.
package ownership

import (
	"rill/internal/fault"
	"rill/internal/value"
)

// Consumed is the sentinel written over a caller's binding after the
// binding is passed to an own parameter. Any later read of the binding
// finds the sentinel and faults.
type Consumed struct {
	Name string
}

// CheckRead faults if v is a consumed binding sentinel.
func CheckRead(v value.Value) *fault.Fault {
	if c, ok := v.(Consumed); ok {
		return fault.UseOfConsumed(c.Name)
	}
	return nil
}

// CheckShared asserts that an argument bound to a shared parameter is
// actually a Shared reference cell. Mismatch is a fault, never a coercion.
func CheckShared(param string, arg value.Value) *fault.Fault {
	if _, ok := arg.(*value.Shared); !ok {
		return fault.SharedRequired(param)
	}
	return nil
}
