// Package callkey derives the canonical identity of a tool call.
package callkey

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// canonical sorts map keys at every depth.
var canonical = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// Key returns "<tool>:<args>" where args is serialized with sorted keys, so
// insertion order never changes the result. Arguments that cannot be
// serialized fall back to their sorted key=value pairs.
func Key(tool string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := canonical.Marshal(args)
	if err != nil {
		return tool + ":" + sortedPairs(args)
	}
	return tool + ":" + string(raw)
}

func sortedPairs(args map[string]any) string {
	pairs := make([]string, 0, len(args))
	for k, v := range args {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(pairs)
	return "[" + strings.Join(pairs, ", ") + "]"
}

// Scoped returns a copy of args with the scope entries added under reserved
// names. The copy is only used for keying; it never reaches a tool.
func Scoped(args map[string]any, scope map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(scope))
	for k, v := range args {
		out[k] = v
	}
	for k, v := range scope {
		out["__"+k] = v
	}
	return out
}
