// Package record resolves values from loosely-typed vendor payloads.
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is a decoded JSON object as returned by the billing API.
type Record map[string]any

// Get returns the value of the first key present in r with a non-nil value.
func Get(r Record, keys ...string) (any, bool) {
	if r == nil {
		return nil, false
	}
	for _, key := range keys {
		if value, ok := r[key]; ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

// Nested walks path through nested objects. It stops as soon as an
// intermediate value is not an object or the final key is absent.
func Nested(r Record, path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var current any = r
	for _, key := range path {
		obj, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// GetString is Get followed by String; absent values yield "".
func GetString(r Record, keys ...string) string {
	value, ok := Get(r, keys...)
	if !ok {
		return ""
	}
	return String(value)
}

// NestedString is Nested followed by String; absent values yield "".
func NestedString(r Record, path ...string) string {
	value, ok := Nested(r, path...)
	if !ok {
		return ""
	}
	return String(value)
}

// String renders scalar values the way they appear in the payload.
// Integral floats lose their fraction so numeric ids stay stable.
func String(value any) string {
	switch cast := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(cast)
	case json.Number:
		return cast.String()
	case float64:
		if cast == math.Trunc(cast) && math.Abs(cast) < 1e15 {
			return strconv.FormatInt(int64(cast), 10)
		}
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case float32:
		return String(float64(cast))
	case int:
		return strconv.Itoa(cast)
	case int64:
		return strconv.FormatInt(cast, 10)
	case int32:
		return strconv.FormatInt(int64(cast), 10)
	case bool:
		if cast {
			return "True"
		}
		return "False"
	}
	return ""
}

// Int coerces numeric values and numeric strings to int.
func Int(value any) (int, bool) {
	switch cast := value.(type) {
	case int:
		return cast, true
	case int64:
		return int(cast), true
	case int32:
		return int(cast), true
	case float64:
		return int(cast), true
	case json.Number:
		if parsed, err := cast.Int64(); err == nil {
			return int(parsed), true
		}
		if parsed, err := cast.Float64(); err == nil {
			return int(parsed), true
		}
	case string:
		trimmed := strings.TrimSpace(cast)
		if parsed, err := strconv.Atoi(trimmed); err == nil {
			return parsed, true
		}
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int(parsed), true
		}
	}
	return 0, false
}

// Truthy reports whether value would pass a boolean test in the payload's
// source language: nil, "", zero numbers, false and empty containers do not.
func Truthy(value any) bool {
	switch cast := value.(type) {
	case nil:
		return false
	case string:
		return cast != ""
	case bool:
		return cast
	case float64:
		return cast != 0
	case float32:
		return cast != 0
	case int:
		return cast != 0
	case int64:
		return cast != 0
	case int32:
		return cast != 0
	case json.Number:
		parsed, err := cast.Float64()
		return err != nil || parsed != 0
	case map[string]any:
		return len(cast) > 0
	case Record:
		return len(cast) > 0
	case []any:
		return len(cast) > 0
	}
	return true
}

func asMap(value any) (map[string]any, bool) {
	switch cast := value.(type) {
	case Record:
		return cast, true
	case map[string]any:
		return cast, true
	}
	return nil, false
}
