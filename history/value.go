// Step values and their wire encoding.
//
// Information Hiding:
// - Variant representation (kind tag + payload) hidden behind constructors
// - Wire encoding and cast order encapsulated in encode/decodeValue
package history

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindColor
	KindList
)

// Value is the payload of one history slot: a scalar, an RGB color or a
// flat list of scalars. The zero Value is the null value.
type Value struct {
	kind Kind
	b    bool
	i    int
	f    float64
	s    string
	c    [3]int
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Color returns an RGB color value.
func Color(r, g, b int) Value { return Value{kind: KindColor, c: [3]int{r, g, b}} }

// List returns a flat list of scalar values.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload. Valid only for KindInt.
func (v Value) Int() int { return v.i }

// Float returns the floating-point payload. Valid only for KindFloat.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.s }

// RGB returns the color payload. Valid only for KindColor.
func (v Value) RGB() (r, g, b int) { return v.c[0], v.c[1], v.c[2] }

// Items returns the list payload. Valid only for KindList.
func (v Value) Items() []Value { return v.list }

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindColor:
		return v.c == o.c
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value in its wire form.
func (v Value) String() string { return v.encode() }

// encode renders v in the history wire form. Colors become R:G:B, lists
// become [v1,v2,...] with string elements quoted, scalars are stringified
// directly. Floats with integral magnitude encode without a fraction and
// read back as integers; the cast order in decodeValue makes that lossy
// round trip deliberate.
func (v Value) encode() string {
	switch v.kind {
	case KindNull:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.Itoa(v.i)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindColor:
		return fmt.Sprintf("%d:%d:%d", v.c[0], v.c[1], v.c[2])
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			if item.kind == KindString {
				parts[i] = "'" + item.s + "'"
			} else {
				parts[i] = item.encode()
			}
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

// decodeValue casts a wire field back to a Value. The cast order is fixed:
// bracketed list, True/False/None literals, colon-separated color, integer,
// float, with plain string as the final fallback.
func decodeValue(s string) Value {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		parts := strings.Split(s[1:len(s)-1], ",")
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = castListItem(p)
		}
		return List(items...)
	}

	switch s {
	case "True":
		return Bool(true)
	case "False":
		return Bool(false)
	case "None":
		return Null()
	}

	if strings.Contains(s, ":") {
		if c, ok := parseColor(s); ok {
			return c
		}
		return Str(s)
	}

	if i, err := strconv.Atoi(s); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return Str(s)
}

// castListItem casts one list element: integer, then float, then string
// with its quoting markers stripped.
func castListItem(s string) Value {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	if len(s) >= 2 {
		return Str(s[1 : len(s)-1])
	}
	return Str("")
}

func parseColor(s string) (Value, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Value{}, false
	}
	var c [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Value{}, false
		}
		c[i] = n
	}
	return Color(c[0], c[1], c[2]), true
}
