// internal/stdlib/core.go
package stdlib

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"rill/internal/fault"
	"rill/internal/value"
)

func init() {
	Register("len", 1, builtinLen)
	Register("str", 1, func(args []value.Value) (value.Value, error) {
		return value.Format(args[0]), nil
	})
	Register("num", 1, func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, typeFault("num", "string", args[0])
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fault.New(fault.TypeFault, "num: %q is not a number", s)
		}
		return n, nil
	})
	Register("abs", 1, numeric1("abs", math.Abs))
	Register("floor", 1, numeric1("floor", math.Floor))
	Register("ceil", 1, numeric1("ceil", math.Ceil))
	Register("sqrt", 1, func(args []value.Value) (value.Value, error) {
		n, ok := args[0].(float64)
		if !ok {
			return nil, typeFault("sqrt", "number", args[0])
		}
		if n < 0 {
			return nil, fault.InvalidNumericResult("sqrt")
		}
		return math.Sqrt(n), nil
	})
	Register("type", 1, func(args []value.Value) (value.Value, error) {
		return value.TypeName(args[0]), nil
	})

	// option / result constructors and accessors
	Register("some", 1, func(args []value.Value) (value.Value, error) {
		return value.Option{Some: true, Inner: args[0]}, nil
	})
	Register("none", 0, func(args []value.Value) (value.Value, error) {
		return value.Option{}, nil
	})
	Register("ok", 1, func(args []value.Value) (value.Value, error) {
		return value.Result{Ok: true, Inner: args[0]}, nil
	})
	Register("err", 1, func(args []value.Value) (value.Value, error) {
		return value.Result{Inner: args[0]}, nil
	})
	Register("is_some", 1, func(args []value.Value) (value.Value, error) {
		o, ok := args[0].(value.Option)
		if !ok {
			return nil, typeFault("is_some", "option", args[0])
		}
		return o.Some, nil
	})
	Register("is_ok", 1, func(args []value.Value) (value.Value, error) {
		r, ok := args[0].(value.Result)
		if !ok {
			return nil, typeFault("is_ok", "result", args[0])
		}
		return r.Ok, nil
	})
	Register("unwrap", 1, builtinUnwrap)
	Register("unwrap_or", 2, func(args []value.Value) (value.Value, error) {
		switch v := args[0].(type) {
		case value.Option:
			if v.Some {
				return value.Retain(v.Inner), nil
			}
			return args[1], nil
		case value.Result:
			if v.Ok {
				return value.Retain(v.Inner), nil
			}
			return args[1], nil
		}
		return nil, typeFault("unwrap_or", "option or result", args[0])
	})

	// shared reference cells
	Register("get", 1, func(args []value.Value) (value.Value, error) {
		cell, ok := args[0].(*value.Shared)
		if !ok {
			return nil, typeFault("get", "shared", args[0])
		}
		return cell.Get(), nil
	})
	Register("set", 2, func(args []value.Value) (value.Value, error) {
		cell, ok := args[0].(*value.Shared)
		if !ok {
			return nil, typeFault("set", "shared", args[0])
		}
		cell.Set(args[1])
		return nil, nil
	})

	// json, the one dynamic kind
	Register("json_parse", 1, func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, typeFault("json_parse", "string", args[0])
		}
		v, f := value.ParseJson(s)
		if f != nil {
			return nil, f
		}
		return v, nil
	})
	Register("json_str", 1, func(args []value.Value) (value.Value, error) {
		j, ok := args[0].(value.Json)
		if !ok {
			return nil, typeFault("json_str", "json", args[0])
		}
		return j.String(), nil
	})
	Register("lift", 1, func(args []value.Value) (value.Value, error) {
		j, ok := args[0].(value.Json)
		if !ok {
			return nil, typeFault("lift", "json", args[0])
		}
		return j.Lift(), nil
	})

	Register("clock", 0, func(args []value.Value) (value.Value, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	Register("uuid", 0, func(args []value.Value) (value.Value, error) {
		return uuid.NewString(), nil
	})
}

func numeric1(name string, fn func(float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		n, ok := args[0].(float64)
		if !ok {
			return nil, typeFault(name, "number", args[0])
		}
		return fn(n), nil
	}
}

func builtinLen(args []value.Value) (value.Value, error) {
	switch v := args[0].(type) {
	case string:
		return float64(len(v)), nil
	case value.Array:
		return float64(v.Len()), nil
	case value.Map:
		return float64(v.Len()), nil
	case value.Set:
		return float64(v.Len()), nil
	case value.Queue:
		return float64(v.Len()), nil
	case value.Stack:
		return float64(v.Len()), nil
	}
	return nil, typeFault("len", "string or collection", args[0])
}

func builtinUnwrap(args []value.Value) (value.Value, error) {
	switch v := args[0].(type) {
	case value.Option:
		if !v.Some {
			return nil, fault.New(fault.TypeFault, "unwrap of None")
		}
		return value.Retain(v.Inner), nil
	case value.Result:
		if !v.Ok {
			return nil, fault.New(fault.TypeFault, "unwrap of Err(%s)", value.Format(v.Inner))
		}
		return value.Retain(v.Inner), nil
	}
	return nil, typeFault("unwrap", "option or result", args[0])
}
