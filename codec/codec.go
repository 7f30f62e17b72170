// Package codec provides JSON encode/decode with structural preservation
// of *Map values, which are encoded tagged with a reserved type marker, so
// that "this field is a Map, not a plain object" survives a JSON
// round-trip. A plain map[string]any encodes as an ordinary object.
package codec

import (
	"encoding/json"
	"fmt"
)

// MapMarkerField is the reserved field name used to tag an encoded Map.
// Configurable via Codec.MarkerField; this is the default that must be
// preserved across restarts.
const MapMarkerField = "__msghubType"

// MapMarkerValue is the value stored under MarkerField for Map nodes.
const MapMarkerValue = "Map"

// Map is a structural, order-preserving map used for fields the spec
// requires to "always remain a Map (not an object) end-to-end" (e.g.
// Message.Metrics). Iteration order follows insertion order via Keys.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set inserts or overwrites key with value, preserving first-insertion
// order for new keys.
func (m *Map) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key, if present.
func (m *Map) Delete(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Equal reports whether m and other contain the same key/value pairs,
// irrespective of order.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, k := range m.Keys() {
		v1, _ := m.Get(k)
		v2, ok := other.Get(k)
		if !ok || !DeepEqual(v1, v2) {
			return false
		}
	}
	return true
}

// MarshalJSON makes Map self-describing under plain encoding/json, so a
// *Map nested inside an ordinary Go struct field (e.g. Message.Metrics)
// round-trips correctly even when the caller never touches Codec
// directly.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(Default.encodeValue(m))
}

// UnmarshalJSON is MarshalJSON's counterpart, recognizing the tagged
// record shape and any Maps nested within it.
func (m *Map) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("codec: unmarshal map: %w", err)
	}
	decoded := Default.decodeValue(raw)
	dm, ok := decoded.(*Map)
	if !ok {
		return fmt.Errorf("codec: not a Map: %s", string(data))
	}
	*m = *dm
	return nil
}

// Codec encodes/decodes values with Map-preservation.
type Codec struct {
	// MarkerField overrides the reserved field name. Empty uses the
	// default MapMarkerField.
	MarkerField string
}

// Default is the package-level codec using the default marker.
var Default = &Codec{}

func (c *Codec) marker() string {
	if c.MarkerField == "" {
		return MapMarkerField
	}
	return c.MarkerField
}

// Encode serializes v to a JSON string, preserving *Map nodes as tagged
// records: {"<marker>":"Map","entries":[[k,v],...]}.
func (c *Codec) Encode(v any) (string, error) {
	node := c.encodeValue(v)
	b, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}
	return string(b), nil
}

func (c *Codec) encodeValue(v any) any {
	switch t := v.(type) {
	case *Map:
		entries := make([][2]any, 0, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			entries = append(entries, [2]any{k, c.encodeValue(val)})
		}
		return map[string]any{
			c.marker(): MapMarkerValue,
			"entries":  entries,
		}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = c.encodeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = c.encodeValue(val)
		}
		return out
	default:
		return v
	}
}

// Decode parses a JSON string into a generic value, reconstructing
// tagged Map nodes back into *Map.
func (c *Codec) Decode(s string) (any, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return c.decodeValue(raw), nil
}

func (c *Codec) decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if marker, ok := t[c.marker()]; ok && marker == MapMarkerValue {
			entriesRaw, _ := t["entries"].([]any)
			m := NewMap()
			for _, e := range entriesRaw {
				pair, ok := e.([]any)
				if !ok || len(pair) != 2 {
					continue
				}
				key, _ := pair[0].(string)
				m.Set(key, c.decodeValue(pair[1]))
			}
			return m
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = c.decodeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = c.decodeValue(val)
		}
		return out
	default:
		return v
	}
}

// Encode serializes v using the default codec.
func Encode(v any) (string, error) { return Default.Encode(v) }

// Decode parses s using the default codec.
func Decode(s string) (any, error) { return Default.Decode(s) }

// DeepEqual performs a structural comparison across Maps, slices and
// plain JSON-shaped values, as produced by Decode.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !DeepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
