package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "Haake Beck", "Haake Beck"},
		{"empty string", "", ""},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"negative int", int64(-7), "-7"},
		{"uint", uint(19), "19"},
		{"float", 2.5, "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, serialized, err := EncodeValue(tt.value)
			require.NoError(t, err)
			assert.False(t, serialized)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestEncodeValue_Nil(t *testing.T) {
	text, serialized, err := EncodeValue(nil)
	require.NoError(t, err)
	assert.False(t, serialized)
	assert.Equal(t, "", text)
}

func TestEncodeValue_Structured(t *testing.T) {
	text, serialized, err := EncodeValue([]any{"a", "b"})
	require.NoError(t, err)
	assert.True(t, serialized)
	assert.JSONEq(t, `["a","b"]`, text)

	text, serialized, err = EncodeValue(map[string]any{"id": 7})
	require.NoError(t, err)
	assert.True(t, serialized)
	assert.JSONEq(t, `{"id":7}`, text)
}

func TestDecodeValue_ScalarPassthrough(t *testing.T) {
	v, err := DecodeValue("Hemelinger", false)
	require.NoError(t, err)
	assert.Equal(t, "Hemelinger", v)
}

func TestDecodeValue_RoundTrip(t *testing.T) {
	// decode(encode(v)) == v for every JSON-generic structured value
	values := []any{
		[]any{"x", "y", "z"},
		map[string]any{"name": "pilsner", "abv": 4.9},
		[]any{map[string]any{"k": "v"}, float64(3)},
	}
	for _, v := range values {
		text, serialized, err := EncodeValue(v)
		require.NoError(t, err)
		require.True(t, serialized)

		decoded, err := DecodeValue(text, serialized)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestDecodeValue_BadPayload(t *testing.T) {
	_, err := DecodeValue("{not json", true)
	assert.Error(t, err)
}

func TestEncodeID_RoundTrip(t *testing.T) {
	ids := []any{
		"simple-id",
		float64(12345),
		map[string]any{"tenant": "a", "seq": float64(9)}, // composite key
	}
	for _, id := range ids {
		encoded, err := EncodeID(id)
		require.NoError(t, err)

		decoded, err := DecodeID(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestEncodeID_Deterministic(t *testing.T) {
	a, err := EncodeID("beer-1")
	require.NoError(t, err)
	b, err := EncodeID("beer-1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
