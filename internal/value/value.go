// internal/value/value.go
package value

import "sync"

// Value is the runtime value shared by both execution engines.
// Concrete variants:
//
//	nil        Null
//	float64    Number
//	bool       Bool
//	string     String (immutable, shared)
//	Array      copy-on-write array
//	Map        copy-on-write string-keyed map
//	Set        copy-on-write set
//	Queue      copy-on-write FIFO queue
//	Stack      copy-on-write LIFO stack
//	Option     tagged optional value
//	Result     tagged ok/err value
//	Json       isolated dynamic JSON value
//	*Function  user-defined function
//	*Builtin   standard-library function
//	*Shared    explicit mutable reference cell
type Value interface{}

// Mode is the ownership annotation on a function parameter.
type Mode uint8

const (
	ModeBorrow Mode = iota // callee reads only, caller retains ownership
	ModeOwn                // callee takes the value, caller binding is consumed
	ModeShared             // argument must already be a *Shared cell
)

func (m Mode) String() string {
	switch m {
	case ModeOwn:
		return "own"
	case ModeShared:
		return "shared"
	default:
		return "borrow"
	}
}

// Function is a user-defined function value. Impl is engine specific: the
// VM stores the compiled function prototype, the tree-walking interpreter
// stores the declaration node. Functions compare by reference.
type Function struct {
	Name       string
	Arity      int
	Modes      []Mode
	ParamNames []string
	Impl       interface{}
}

// Builtin is a standard-library function. Arity < 0 means variadic.
// Mutating builtins return the new collection value; the evaluator writes
// it back into the caller's binding (see the stdlib call convention).
type Builtin struct {
	Name  string
	Arity int
	Fn    func(args []Value) (Value, error)
}

// Shared is the explicit mutable reference cell, the single escape hatch
// from value semantics. It carries a mutex because mutation coordination
// for shared values is the program's responsibility, not the CoW protocol's.
type Shared struct {
	mu  sync.Mutex
	val Value
}

func NewShared(v Value) *Shared {
	return &Shared{val: v}
}

func (s *Shared) Get() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Retain(s.val)
}

func (s *Shared) Set(v Value) {
	s.mu.Lock()
	old := s.val
	s.val = v
	s.mu.Unlock()
	Release(old)
}

// Option holds zero or one inner value.
type Option struct {
	Some  bool
	Inner Value
}

// Result holds an ok value or an error value.
type Result struct {
	Ok    bool
	Inner Value
}

// TypeName reports the language-level type of v for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case bool:
		return "bool"
	case string:
		return "string"
	case Array:
		return "array"
	case Map:
		return "map"
	case Set:
		return "set"
	case Queue:
		return "queue"
	case Stack:
		return "stack"
	case Option:
		return "option"
	case Result:
		return "result"
	case Json:
		return "json"
	case *Function:
		return "function"
	case *Builtin:
		return "function"
	case *Shared:
		return "shared"
	default:
		return "unknown"
	}
}
