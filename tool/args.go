package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String reads a string argument, falling back to def when absent or empty.
// Non-string scalars are formatted.
func String(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}

	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}

	if strings.TrimSpace(s) == "" {
		return def
	}

	return s
}

// Int reads an integer argument. Models occasionally send numbers as strings;
// those are parsed too.
func Int(args map[string]any, key string, def int) int {
	switch x := args[key].(type) {
	case float64:
		return int(math.Round(x))
	case int:
		return x
	case int64:
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}

	return def
}

// Float reads a numeric argument.
func Float(args map[string]any, key string, def float64) float64 {
	switch x := args[key].(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}

	return def
}

// Object builds an object schema from properties and required names.
func Object(props map[string]any, required ...string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// StringParam describes a string property.
func StringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// EnumParam describes a string property restricted to values.
func EnumParam(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

// IntParam describes an integer property.
func IntParam(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// NumberParam describes a numeric property.
func NumberParam(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}
