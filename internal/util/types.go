package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind classifies a dynamically typed value the way filter mappings and
// document payloads are validated.
type Kind int

const (
	KindUnknown Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// TypeOf reports the Kind of v. Slices and arrays are arrays, maps keyed by
// string are objects, and every Go numeric type (plus json.Number) is a number.
func TypeOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case json.Number, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindNumber
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return KindObject
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNull
		}
	}
	return KindUnknown
}

// TypeError reports a value whose Kind is not in the allowed set.
type TypeError struct {
	Name    string
	Got     Kind
	Allowed []Kind
}

func (e *TypeError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, k := range e.Allowed {
		names[i] = k.String()
	}
	return fmt.Sprintf("%s should be one of %s", e.Name, strings.Join(names, ", "))
}

// ValidateType returns a *TypeError naming name when v is none of allowed.
func ValidateType(v any, name string, allowed ...Kind) error {
	got := TypeOf(v)
	for _, k := range allowed {
		if k == got {
			return nil
		}
	}
	return &TypeError{Name: name, Got: got, Allowed: allowed}
}

// AsMap returns v as a map[string]any. Maps keyed by string with any other
// value type are copied.
func AsMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// AsSlice returns v as a []any, copying typed slices and arrays.
func AsSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Stringify renders a scalar identifier the way it is sent to the engine.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
