// internal/value/json.go
package value

import (
	"encoding/json"

	"rill/internal/fault"
)

// Json is the one dynamically-typed value kind, isolated from the rest of
// the type system. Data holds what encoding/json produced: nil, bool,
// float64, string, []interface{} or map[string]interface{}.
type Json struct {
	Data interface{}
}

// ParseJson decodes src into a Json value. A decode failure is a type
// fault, not a sentinel.
func ParseJson(src string) (Value, *fault.Fault) {
	var data interface{}
	if err := json.Unmarshal([]byte(src), &data); err != nil {
		return nil, fault.New(fault.TypeFault, "invalid json: %s", err.Error())
	}
	return Json{Data: data}, nil
}

func (j Json) String() string {
	out, err := json.Marshal(j.Data)
	if err != nil {
		return "json(<invalid>)"
	}
	return string(out)
}

// Lift converts a Json payload into language values: objects become maps,
// arrays become arrays, scalars become their primitive kinds.
func (j Json) Lift() Value {
	return liftJson(j.Data)
}

func liftJson(data interface{}) Value {
	switch d := data.(type) {
	case nil:
		return nil
	case bool:
		return d
	case float64:
		return d
	case string:
		return d
	case []interface{}:
		elems := make([]Value, len(d))
		for i, e := range d {
			elems[i] = liftJson(e)
		}
		return NewArray(elems)
	case map[string]interface{}:
		items := make(map[string]Value, len(d))
		for k, v := range d {
			items[k] = liftJson(v)
		}
		return NewMap(items)
	default:
		return nil
	}
}
