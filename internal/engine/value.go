package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Kind identifies the shape of a FieldValue.
type Kind int

const (
	KindNull Kind = iota
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldValue is a value exchanged with the query engine. The zero value is null.
type FieldValue struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    bool
	list []FieldValue
}

// Null is the null FieldValue.
var Null = FieldValue{}

func Int64(v int64) FieldValue     { return FieldValue{kind: KindInt64, i: v} }
func Uint64(v uint64) FieldValue   { return FieldValue{kind: KindUint64, u: v} }
func Float64(v float64) FieldValue { return FieldValue{kind: KindFloat64, f: v} }
func String(v string) FieldValue   { return FieldValue{kind: KindString, s: v} }
func Bool(v bool) FieldValue       { return FieldValue{kind: KindBool, b: v} }

// List creates a list value. The items are copied.
func List(items ...FieldValue) FieldValue {
	return FieldValue{kind: KindList, list: append([]FieldValue{}, items...)}
}

// OptionalString returns null for a nil pointer and a string value otherwise.
func OptionalString(v *string) FieldValue {
	if v == nil {
		return Null
	}
	return String(*v)
}

// FromInterface converts decoded JSON or GraphQL literal values into a FieldValue.
func FromInterface(v interface{}) (FieldValue, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case FieldValue:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int64(int64(x)), nil
	case int32:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case uint:
		return Uint64(uint64(x)), nil
	case uint32:
		return Uint64(uint64(x)), nil
	case uint64:
		return Uint64(x), nil
	case float32:
		return Float64(float64(x)), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Int64(int64(x)), nil
		}
		return Float64(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int64(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Null, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Float64(f), nil
	case []interface{}:
		items := make([]FieldValue, 0, len(x))
		for i, item := range x {
			converted, err := FromInterface(item)
			if err != nil {
				return Null, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, converted)
		}
		return FieldValue{kind: KindList, list: items}, nil
	case []string:
		items := make([]FieldValue, 0, len(x))
		for _, item := range x {
			items = append(items, String(item))
		}
		return FieldValue{kind: KindList, list: items}, nil
	default:
		return Null, fmt.Errorf("unsupported value type %T", v)
	}
}

func (v FieldValue) Kind() Kind   { return v.kind }
func (v FieldValue) IsNull() bool { return v.kind == KindNull }

func (v FieldValue) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v FieldValue) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt64 returns the value as int64 if it is an integer that fits.
func (v FieldValue) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.i, true
	case KindUint64:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	default:
		return 0, false
	}
}

// AsFloat64 returns any numeric value as float64.
func (v FieldValue) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInt64:
		return float64(v.i), true
	case KindUint64:
		return float64(v.u), true
	case KindFloat64:
		return v.f, true
	default:
		return 0, false
	}
}

func (v FieldValue) AsList() ([]FieldValue, bool) {
	return v.list, v.kind == KindList
}

func (v FieldValue) isNumber() bool {
	return v.kind == KindInt64 || v.kind == KindUint64 || v.kind == KindFloat64
}

// Interface returns the plain Go representation. Non-finite floats become nil.
func (v FieldValue) Interface() interface{} {
	switch v.kind {
	case KindInt64:
		return v.i
	case KindUint64:
		return v.u
	case KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil
		}
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.Interface()
		}
		return items
	default:
		return nil
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(v.Interface())
}

// String formats the value for tabular display.
func (v FieldValue) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUint64:
		return strconv.FormatUint(v.u, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// Literal formats the value the way it would be written in a query: strings
// are quoted.
func (v FieldValue) Literal() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Literal()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.String()
	}
}

// Equal reports whether both values are equal. Numbers compare by value
// across integer and float kinds.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.isNumber() && other.isNumber() {
		c, ok := compareNumbers(v, other)
		return ok && c == 0
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two numbers or two strings. The second result is false when
// the values are not comparable.
func (v FieldValue) Compare(other FieldValue) (int, bool) {
	if v.isNumber() && other.isNumber() {
		return compareNumbers(v, other)
	}
	if v.kind == KindString && other.kind == KindString {
		return strings.Compare(v.s, other.s), true
	}
	return 0, false
}

func compareNumbers(a, b FieldValue) (int, bool) {
	if a.kind == KindFloat64 || b.kind == KindFloat64 {
		x, _ := a.AsFloat64()
		y, _ := b.AsFloat64()
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return cmpOrdered(x, y), true
	}
	if a.kind == KindUint64 && b.kind == KindUint64 {
		return cmpOrdered(a.u, b.u), true
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		return cmpOrdered(a.i, b.i), true
	}
	// one signed, one unsigned
	if a.kind == KindInt64 {
		if a.i < 0 {
			return -1, true
		}
		return cmpOrdered(uint64(a.i), b.u), true
	}
	if b.i < 0 {
		return 1, true
	}
	return cmpOrdered(a.u, uint64(b.i)), true
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
