package tool

import (
	"encoding/json"
	"strings"
)

// String returns the trimmed string under key.
func String(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Number accepts the numeric shapes a decoded tool call can carry.
func Number(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
