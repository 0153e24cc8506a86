// internal/stdlib/registry.go
//
// The builtin registry and call convention shared by both engines: a
// builtin takes a fixed-arity or variadic list of values and returns a
// value or a fault. Mutating collection builtins return the new collection
// value; the evaluator writes it back into the caller's binding when the
// receiver is a bare local or global binding.
package stdlib

import (
	"rill/internal/fault"
	"rill/internal/value"
)

var registry = map[string]*value.Builtin{}

// mutating names trigger the evaluator's write-back after a method call
var mutating = map[string]bool{
	"push":    true,
	"pop":     true,
	"insert":  true,
	"remove":  true,
	"delete":  true,
	"add":     true,
	"enqueue": true,
	"dequeue": true,
}

// Register installs a builtin. arity < 0 means variadic.
func Register(name string, arity int, fn func(args []value.Value) (value.Value, error)) {
	registry[name] = &value.Builtin{Name: name, Arity: arity, Fn: fn}
}

func Lookup(name string) (*value.Builtin, bool) {
	b, ok := registry[name]
	return b, ok
}

// All returns the registry for an engine to preload into its globals.
func All() map[string]*value.Builtin {
	out := make(map[string]*value.Builtin, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// Mutating reports whether a builtin's result is written back into the
// receiver binding of a method call.
func Mutating(name string) bool { return mutating[name] }

// Call applies the convention: arity check, then the builtin. Used by both
// engines so arity faults are identical.
func Call(b *value.Builtin, args []value.Value) (value.Value, error) {
	if b.Arity >= 0 && len(args) != b.Arity {
		return nil, fault.ArityMismatch(b.Name, b.Arity, len(args))
	}
	return b.Fn(args)
}

func typeFault(name, want string, got value.Value) error {
	return fault.New(fault.TypeFault, "%s: expected %s, got %s", name, want, value.TypeName(got))
}
