// internal/value/format.go
package value

import (
	"strconv"
	"strings"
)

// Format renders v for the print statement. Both engines print through this
// one function so output is comparable byte for byte.
func Format(v Value) string {
	var sb strings.Builder
	formatInto(&sb, v, false)
	return sb.String()
}

func formatInto(sb *strings.Builder, v Value, quoted bool) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case float64:
		sb.WriteString(FormatNumber(x))
	case bool:
		sb.WriteString(strconv.FormatBool(x))
	case string:
		if quoted {
			sb.WriteString(strconv.Quote(x))
		} else {
			sb.WriteString(x)
		}
	case Array:
		sb.WriteByte('[')
		for i, e := range x.store.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInto(sb, e, true)
		}
		sb.WriteByte(']')
	case Map:
		sb.WriteByte('{')
		for i, k := range x.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			formatInto(sb, x.store.items[k], true)
		}
		sb.WriteByte('}')
	case Set:
		sb.WriteString("set{")
		for i, e := range x.Members() {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInto(sb, e, true)
		}
		sb.WriteByte('}')
	case Queue:
		sb.WriteString("queue[")
		for i, e := range x.store.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInto(sb, e, true)
		}
		sb.WriteByte(']')
	case Stack:
		sb.WriteString("stack[")
		for i, e := range x.store.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInto(sb, e, true)
		}
		sb.WriteByte(']')
	case Option:
		if x.Some {
			sb.WriteString("Some(")
			formatInto(sb, x.Inner, true)
			sb.WriteByte(')')
		} else {
			sb.WriteString("None")
		}
	case Result:
		if x.Ok {
			sb.WriteString("Ok(")
		} else {
			sb.WriteString("Err(")
		}
		formatInto(sb, x.Inner, true)
		sb.WriteByte(')')
	case Json:
		sb.WriteString(x.String())
	case *Function:
		sb.WriteString("<fn ")
		sb.WriteString(x.Name)
		sb.WriteByte('>')
	case *Builtin:
		sb.WriteString("<builtin ")
		sb.WriteString(x.Name)
		sb.WriteByte('>')
	case *Shared:
		sb.WriteString("shared(")
		inner := x.Get()
		formatInto(sb, inner, true)
		Release(inner)
		sb.WriteByte(')')
	default:
		sb.WriteString("<unknown>")
	}
}

// FormatNumber renders a number the way the REPL shows it: integers without
// a decimal point, everything else in shortest round-trip form.
func FormatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
