package coze

import (
	"encoding/json"
	"strconv"
)

// Permissive accessors over decoded JSON objects. The upstream API has
// shipped several envelope shapes for the same logical resource, and numeric
// fields arrive as either JSON numbers or numeric strings (some, like
// aggregate byte counts, overflow 53-bit float precision as numbers), so all
// field access goes through these helpers instead of direct type assertions.

// Object is a decoded JSON object.
type Object = map[string]any

// asString returns the first of keys whose value is a non-empty string.
func asString(obj Object, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// asInt returns the first of keys holding an integer, accepting JSON numbers
// (float64 or json.Number) and numeric strings.
func asInt(obj Object, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, true
			}
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
	}
	return 0, false
}

// asIntDefault is asInt with a fallback.
func asIntDefault(obj Object, def int64, keys ...string) int64 {
	if i, ok := asInt(obj, keys...); ok {
		return i
	}
	return def
}

// asBool returns the first of keys holding a bool.
func asBool(obj Object, keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := obj[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// asObject returns the value at key if it is a JSON object.
func asObject(obj Object, key string) (Object, bool) {
	m, ok := obj[key].(map[string]any)
	return m, ok
}

// asArray returns the first of keys whose value is a JSON array.
func asArray(obj Object, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// asStringSlice converts a JSON array of strings, dropping non-string items.
func asStringSlice(obj Object, key string) []string {
	arr, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// unwrapData returns the "data" sub-object when present, else the value
// itself. Every Coze envelope nests the payload under "data", except when it
// doesn't.
func unwrapData(obj Object) Object {
	if data, ok := asObject(obj, "data"); ok {
		return data
	}
	return obj
}
