package message

import (
	"strings"

	"github.com/golobby/cast"
)

// trimmedString coerces v (string or anything castable) to a trimmed
// string, tolerating absent/nil input as "".
func trimmedString(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToString(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// toInt64 coerces v to an int64, accepting JSON-decoded float64, int,
// or numeric strings. Returns 0, false on failure.
func toInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if n, err := cast.ToInt64(v); err == nil {
		return n, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	n, ok := toInt64(v)
	return int(n), ok
}

// csvOrArrayToSlice accepts either a CSV string ("a, b ,c") or an
// []any/[]string and returns a trimmed, de-duplicated, order-preserving
// slice of non-empty strings.
func csvOrArrayToSlice(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = append(raw, t...)
	case []any:
		for _, item := range t {
			raw = append(raw, trimmedString(item))
		}
	default:
		return nil
	}
	return dedupeTrim(raw)
}

// dedupeTrim trims each entry, drops empties, and removes duplicates
// while preserving first-seen order.
func dedupeTrim(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// mapOf returns the map[string]any view of v, or nil if v isn't one.
func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// sliceOf returns the []any view of v, or nil if v isn't one.
func sliceOf(v any) []any {
	s, _ := v.([]any)
	return s
}
