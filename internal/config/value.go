// Package config assembles the application's effective configuration
// from layered sources and detects changes between runs.
//
// Configuration data is held as a closed set of value kinds (scalar,
// sequence, mapping) rather than raw interface{} trees, so merge and
// diff logic can switch exhaustively over the possible shapes. Values
// are treated as immutable once built; Clone exists for the few spots
// that need a mutable copy.
package config

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lodeworks/lode/internal/errors"
)

// Kind discriminates the possible shapes of a configuration value.
type Kind uint8

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is one node of a configuration tree: a scalar, a sequence of
// values, or a string-keyed mapping. The zero Value is a null scalar.
type Value struct {
	kind   Kind
	scalar interface{}
	seq    []Value
	m      Mapping
}

// Mapping is a string-keyed collection of configuration values. Key
// iteration order is unspecified; anything that needs determinism
// sorts keys on demand.
type Mapping map[string]Value

// Kind returns the value's shape.
func (v Value) Kind() Kind {
	return v.kind
}

// Scalar returns the scalar payload. Only meaningful for KindScalar.
func (v Value) Scalar() interface{} {
	return v.scalar
}

// Sequence returns the sequence payload. Only meaningful for KindSequence.
func (v Value) Sequence() []Value {
	return v.seq
}

// Map returns the mapping payload. Only meaningful for KindMapping.
func (v Value) Map() Mapping {
	return v.m
}

func scalarValue(v interface{}) Value {
	return Value{kind: KindScalar, scalar: v}
}

func sequenceValue(seq []Value) Value {
	return Value{kind: KindSequence, seq: seq}
}

func mappingValue(m Mapping) Value {
	return Value{kind: KindMapping, m: m}
}

// FromAny converts a decoded YAML tree into a Value. Mappings must have
// string keys, and keys must not contain dots so dotted lookup paths
// stay unambiguous.
func FromAny(v interface{}) (Value, error) {
	switch tv := v.(type) {
	case nil:
		return scalarValue(nil), nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return scalarValue(tv), nil
	case []interface{}:
		seq := make([]Value, 0, len(tv))
		for i, elem := range tv {
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			seq = append(seq, ev)
		}
		return sequenceValue(seq), nil
	case map[string]interface{}:
		m := make(Mapping, len(tv))
		for key, elem := range tv {
			if err := validateKey(key); err != nil {
				return Value{}, err
			}
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			m[key] = ev
		}
		return mappingValue(m), nil
	case map[interface{}]interface{}:
		m := make(Mapping, len(tv))
		for rawKey, elem := range tv {
			key, ok := rawKey.(string)
			if !ok {
				return Value{}, errors.NewValidationError(
					errors.ErrCodeInvalidKey,
					fmt.Sprintf("mapping key %v is not a string", rawKey),
				)
			}
			if err := validateKey(key); err != nil {
				return Value{}, err
			}
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			m[key] = ev
		}
		return mappingValue(m), nil
	default:
		return Value{}, errors.NewValidationError(
			errors.ErrCodeUnsupportedType,
			fmt.Sprintf("unsupported configuration value type %T", v),
		)
	}
}

func validateKey(key string) error {
	if key == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidKey, "mapping key is empty")
	}
	for _, r := range key {
		if r == '.' {
			return errors.NewValidationError(
				errors.ErrCodeInvalidKey,
				fmt.Sprintf("mapping key %q contains a dot", key),
			)
		}
	}
	return nil
}

// AsAny converts the value back into a plain tree of Go values, the
// inverse of FromAny. The result shares nothing with the Value.
func (v Value) AsAny() interface{} {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		out := make([]interface{}, len(v.seq))
		for i, elem := range v.seq {
			out[i] = elem.AsAny()
		}
		return out
	case KindMapping:
		out := make(map[string]interface{}, len(v.m))
		for key, elem := range v.m {
			out[key] = elem.AsAny()
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, elem := range v.seq {
			seq[i] = elem.Clone()
		}
		return sequenceValue(seq)
	case KindMapping:
		return mappingValue(v.m.Clone())
	default:
		return v
	}
}

// Equal reports whether two values are identical in shape, type, and
// content. Scalar comparison is type-strict: an integer and a float
// holding the same number are not equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return scalarsEqual(v.scalar, o.scalar)
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.m.Equal(o.m)
	default:
		return false
	}
}

func scalarsEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int8:
		bv, ok := b.(int8)
		return ok && av == bv
	case int16:
		bv, ok := b.(int16)
		return ok && av == bv
	case int32:
		bv, ok := b.(int32)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case uint:
		bv, ok := b.(uint)
		return ok && av == bv
	case uint8:
		bv, ok := b.(uint8)
		return ok && av == bv
	case uint16:
		bv, ok := b.(uint16)
		return ok && av == bv
	case uint32:
		bv, ok := b.(uint32)
		return ok && av == bv
	case uint64:
		bv, ok := b.(uint64)
		return ok && av == bv
	case float32:
		bv, ok := b.(float32)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return false
	}
}

// Clone returns a deep copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for key, elem := range m {
		out[key] = elem.Clone()
	}
	return out
}

// Equal reports whether two mappings hold the same keys with equal values.
func (m Mapping) Equal(o Mapping) bool {
	if len(m) != len(o) {
		return false
	}
	for key, mv := range m {
		ov, ok := o[key]
		if !ok || !mv.Equal(ov) {
			return false
		}
	}
	return true
}

// AsAny converts the mapping into a plain map tree.
func (m Mapping) AsAny() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for key, elem := range m {
		out[key] = elem.AsAny()
	}
	return out
}

func sortedKeys(m Mapping) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ParseYAML decodes a YAML document into a Mapping. Empty and null
// documents yield an empty mapping; any other non-mapping root is a
// validation error.
func ParseYAML(data []byte) (Mapping, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfigError(
			errors.ErrCodeInvalidYAML,
			fmt.Sprintf("invalid YAML: %v", err),
		)
	}
	if raw == nil {
		return Mapping{}, nil
	}

	root, err := FromAny(raw)
	if err != nil {
		return nil, err
	}
	if root.Kind() != KindMapping {
		return nil, errors.NewValidationError(
			errors.ErrCodeInvalidYAML,
			fmt.Sprintf("configuration root must be a mapping, got %s", root.Kind()),
		)
	}
	return root.Map(), nil
}

// EncodeYAML encodes a mapping as a YAML document.
func EncodeYAML(m Mapping) ([]byte, error) {
	data, err := yaml.Marshal(m.AsAny())
	if err != nil {
		return nil, errors.NewInternalError(
			errors.ErrCodeInternalError,
			"failed to encode configuration",
			err,
		)
	}
	return data, nil
}
