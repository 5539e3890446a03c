package contract

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// stringify renders any value the way a loosely typed document author would
// expect: nil is empty, scalars are formatted, composites are printed.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any, []any:
		return fmt.Sprint(x)
	default:
		if s, err := cast.ToStringE(x); err == nil {
			return s
		}
		return fmt.Sprint(x)
	}
}

// truthy reports whether v is a non-empty, non-zero value.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}

// flag coerces a loosely typed boolean. Strings like "true" and "1" are
// parsed; anything else falls back to truthiness.
func flag(v any) bool {
	if b, err := cast.ToBoolE(v); err == nil {
		return b
	}
	return truthy(v)
}

// number returns v as a float64 when it is numeric. Booleans are not numbers.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f := cast.ToFloat64(x)
		if math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// integer returns v as an int when it is an integral number.
func integer(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// stringList converts a list of scalars to strings. Anything that is not a
// list yields an empty, non-nil slice.
func stringList(v any) []string {
	list := asList(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, stringify(item))
	}
	return out
}

// normalizeValue rewrites decoded documents so every nested map has string
// keys and every list is []any.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[stringify(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalizeValue(val)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// looseHook coerces document values into typed record fields: strings are
// stringified and trimmed, booleans use truthiness, and a scalar in place of
// a list becomes a single-element list when truthy.
func looseHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.String:
		return strings.TrimSpace(stringify(data)), nil
	case reflect.Bool:
		return flag(data), nil
	case reflect.Slice:
		if from.Kind() == reflect.Slice {
			return data, nil
		}
		if truthy(data) {
			return []any{data}, nil
		}
		return []any{}, nil
	default:
		return data, nil
	}
}

// decodeLoose decodes a document map into a typed record through looseHook.
func decodeLoose(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       looseHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
