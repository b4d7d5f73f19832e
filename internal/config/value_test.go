package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/errors"
)

// mustValue builds a Value from a plain tree or fails the test.
func mustValue(t *testing.T, v interface{}) Value {
	t.Helper()
	out, err := FromAny(v)
	require.NoError(t, err)
	return out
}

// mustMapping builds a Mapping from a plain map or fails the test.
func mustMapping(t *testing.T, m map[string]interface{}) Mapping {
	t.Helper()
	v := mustValue(t, m)
	require.Equal(t, KindMapping, v.Kind())
	return v.Map()
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "scalar", KindScalar.String())
	assert.Equal(t, "sequence", KindSequence.String())
	assert.Equal(t, "mapping", KindMapping.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		wantKind Kind
		wantErr  string
	}{
		{"nil scalar", nil, KindScalar, ""},
		{"string scalar", "hello", KindScalar, ""},
		{"int scalar", 42, KindScalar, ""},
		{"bool scalar", true, KindScalar, ""},
		{"float scalar", 3.14, KindScalar, ""},
		{"sequence", []interface{}{1, "two", false}, KindSequence, ""},
		{"mapping", map[string]interface{}{"a": 1}, KindMapping, ""},
		{"nested", map[string]interface{}{"a": []interface{}{map[string]interface{}{"b": 2}}}, KindMapping, ""},
		{"unsupported type", struct{}{}, 0, "unsupported configuration value type"},
		{"dotted key", map[string]interface{}{"a.b": 1}, 0, "contains a dot"},
		{"empty key", map[string]interface{}{"": 1}, 0, "key is empty"},
		{"non-string key", map[interface{}]interface{}{1: "x"}, 0, "not a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromAny(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind())
		})
	}
}

func TestFromAnyInterfaceKeyedMap(t *testing.T) {
	v, err := FromAny(map[interface{}]interface{}{"a": 1, "b": "two"})
	require.NoError(t, err)
	require.Equal(t, KindMapping, v.Kind())
	assert.Equal(t, 1, v.Map()["a"].Scalar())
	assert.Equal(t, "two", v.Map()["b"].Scalar())
}

func TestAsAnyRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"name":  "lode",
		"count": 7,
		"flags": []interface{}{true, false},
		"nested": map[string]interface{}{
			"ratio": 0.5,
			"empty": nil,
		},
	}

	v := mustValue(t, original)
	assert.Equal(t, original, v.AsAny())
}

func TestCloneIndependence(t *testing.T) {
	original := mustMapping(t, map[string]interface{}{
		"list": []interface{}{1, 2},
		"sub":  map[string]interface{}{"k": "v"},
	})

	clone := original.Clone()
	clone["sub"].Map()["k"] = scalarValue("changed")
	clone["extra"] = scalarValue(true)

	assert.Equal(t, "v", original["sub"].Map()["k"].Scalar())
	assert.False(t, original.Equal(clone))
}

func TestValueEqualTypeStrict(t *testing.T) {
	tests := []struct {
		name  string
		a, b  interface{}
		equal bool
	}{
		{"same ints", 1, 1, true},
		{"int vs float", 1, 1.0, false},
		{"int vs string", 1, "1", false},
		{"int vs int64", 1, int64(1), false},
		{"same strings", "x", "x", true},
		{"different strings", "x", "y", false},
		{"bool vs int", true, 1, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs zero", nil, 0, false},
		{"same sequences", []interface{}{1, 2}, []interface{}{1, 2}, true},
		{"sequence order matters", []interface{}{1, 2}, []interface{}{2, 1}, false},
		{"sequence length differs", []interface{}{1}, []interface{}{1, 1}, false},
		{"scalar vs sequence", 1, []interface{}{1}, false},
		{"scalar vs mapping", 1, map[string]interface{}{"a": 1}, false},
		{
			"same mappings",
			map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": true}},
			map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": true}},
			true,
		},
		{
			"mapping key set differs",
			map[string]interface{}{"a": 1},
			map[string]interface{}{"a": 1, "b": 2},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := mustValue(t, tt.a)
			bv := mustValue(t, tt.b)
			assert.Equal(t, tt.equal, av.Equal(bv))
			assert.Equal(t, tt.equal, bv.Equal(av))
		})
	}
}

func TestParseYAML(t *testing.T) {
	t.Run("basic document", func(t *testing.T) {
		m, err := ParseYAML([]byte("server:\n  port: 8080\n  hosts:\n    - a\n    - b\n"))
		require.NoError(t, err)

		server := m["server"].Map()
		assert.Equal(t, 8080, server["port"].Scalar())
		assert.Len(t, server["hosts"].Sequence(), 2)
	})

	t.Run("empty document", func(t *testing.T) {
		m, err := ParseYAML(nil)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("null document", func(t *testing.T) {
		m, err := ParseYAML([]byte("---\n"))
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("scalar root rejected", func(t *testing.T) {
		_, err := ParseYAML([]byte("just a string"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root must be a mapping")
	})

	t.Run("sequence root rejected", func(t *testing.T) {
		_, err := ParseYAML([]byte("- a\n- b\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root must be a mapping")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseYAML([]byte("a: [unclosed"))
		require.Error(t, err)

		var le *errors.LodeError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, errors.ErrCodeInvalidYAML, le.Code)
	})
}

func TestEncodeYAMLRoundTripPreservesTypes(t *testing.T) {
	original, err := ParseYAML([]byte(`
counts:
  small: 1
  big: 9223372036854775807
ratio: 0.25
enabled: true
name: lode
tags:
  - a
  - 2
`))
	require.NoError(t, err)

	encoded, err := EncodeYAML(original)
	require.NoError(t, err)

	decoded, err := ParseYAML(encoded)
	require.NoError(t, err)

	assert.True(t, original.Equal(decoded), "round-tripped mapping differs: %s", encoded)
}
