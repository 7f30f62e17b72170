package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripMap(t *testing.T) {
	m := NewMap()
	m.Set("temp", map[string]any{"val": 21.7, "unit": "C", "ts": float64(1700000)})
	m.Set("humidity", map[string]any{"val": 55.0, "unit": "%", "ts": float64(1700001)})

	in := map[string]any{
		"ref":     "a1",
		"metrics": m,
	}

	s, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, s, `"__msghubType":"Map"`)

	out, err := Decode(s)
	require.NoError(t, err)

	outMap, ok := out.(map[string]any)
	require.True(t, ok)
	decodedMetrics, ok := outMap["metrics"].(*Map)
	require.True(t, ok, "metrics must decode back into a *Map")
	assert.Equal(t, 2, decodedMetrics.Len())
	assert.True(t, DeepEqual(m, decodedMetrics))
}

func TestRoundTripPlainValues(t *testing.T) {
	in := map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"level": float64(20),
	}
	s, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(s)
	require.NoError(t, err)
	assert.True(t, DeepEqual(in, out))
}

func TestMapDeleteAndKeysOrder(t *testing.T) {
	m := NewMap()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	m.Delete("b")
	assert.Equal(t, []string{"a", "c"}, m.Keys())
}

func TestCustomMarkerField(t *testing.T) {
	c := &Codec{MarkerField: "_type"}
	m := NewMap()
	m.Set("x", 1.0)
	s, err := c.Encode(map[string]any{"m": m})
	require.NoError(t, err)
	assert.Contains(t, s, `"_type":"Map"`)
	out, err := c.Decode(s)
	require.NoError(t, err)
	outMap := out.(map[string]any)
	_, ok := outMap["m"].(*Map)
	assert.True(t, ok)
}
