package ir

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface representing filter operand types.
// Only Null, String, Int, Float, Bool, Time, List and Object implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Valuer is implemented by types that know how to present themselves as an
// operand, e.g. instance identifiers that become {"externalId", "space"} objects.
type Valuer interface {
	IRValue() Value
}

// Null represents an explicit null operand.
type Null struct{}

func (Null) irValue() {}

// String represents a string operand.
type String string

func (String) irValue() {}

// Int represents an integer operand.
type Int int64

func (Int) irValue() {}

// Float represents a floating point operand.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean operand.
type Bool bool

func (Bool) irValue() {}

// Time represents a timestamp operand. Encoded as RFC 3339 in UTC.
type Time time.Time

func (Time) irValue() {}

// List represents an ordered list of operands.
type List []Value

func (List) irValue() {}

// Object represents a map of string keys to operands.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*Valuer)(nil)).Elem()
)

// Of converts a Go value into an operand.
//
// Supported inputs: nil, Value, Valuer, strings, every integer kind, floats,
// bools, time.Time, slices/arrays of supported values and maps keyed by
// string. Pointers are followed; a nil pointer becomes Null.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case time.Time:
		return Time(val), nil
	case []string:
		out := make(List, len(val))
		for i, s := range val {
			out[i] = String(s)
		}
		return out, nil
	case []any:
		return listOf(reflect.ValueOf(val))
	case map[string]any:
		return objectOf(reflect.ValueOf(val))
	}
	return reflectOf(reflect.ValueOf(v))
}

// MustOf is like Of but panics when the value cannot be represented.
// Filter builders use it: an unrepresentable operand is a programming error.
func MustOf(v any) Value {
	out, err := Of(v)
	if err != nil {
		panic(err)
	}
	return out
}

func reflectOf(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null{}, nil
	}
	if rv.Type().Implements(valuerType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null{}, nil
		}
		return rv.Interface().(Valuer).IRValue(), nil
	}
	if rv.Type() == timeType {
		return Time(rv.Interface().(time.Time)), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return reflectOf(rv.Elem())
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Null{}, nil
		}
		return listOf(rv)
	case reflect.Array:
		return listOf(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return Null{}, nil
		}
		return objectOf(rv)
	default:
		return nil, fmt.Errorf("unsupported operand type: %s", rv.Type())
	}
}

func listOf(rv reflect.Value) (Value, error) {
	out := make(List, rv.Len())
	for i := range rv.Len() {
		elem, err := reflectOf(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = elem
	}
	return out, nil
}

func objectOf(rv reflect.Value) (Value, error) {
	out := make(Object, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		elem, err := reflectOf(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
		}
		out[iter.Key().String()] = elem
	}
	return out, nil
}

// Native converts an operand back into plain Go values:
// nil, string, int64, float64, bool, time.Time, []any and map[string]any.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return time.Time(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}

// IsList reports whether v is a List.
func IsList(v Value) bool {
	_, ok := v.(List)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders some keys differently.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(formatTime(time.Time(t)))
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
