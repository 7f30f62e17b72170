package message

import "github.com/stacknerd/msghub/codec"

// IsEqual performs a structural comparison across Maps, slices and plain
// values — the deterministic equality the spec requires for diffing and
// for "did anything meaningful change" detection.
func IsEqual(a, b any) bool {
	return codec.DeepEqual(normalizeForCompare(a), normalizeForCompare(b))
}

// normalizeForCompare turns typed slices/maps into the []any/map[string]any
// shape codec.DeepEqual understands, and leaves codec.Map/*codec.Map
// untouched.
func normalizeForCompare(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForCompare(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForCompare(val)
		}
		return out
	default:
		return v
	}
}
