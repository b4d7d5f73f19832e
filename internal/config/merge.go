package config

// Merge deep-merges overlay onto base and returns a new mapping.
// Neither input is mutated and the result shares no mutable state
// with either.
//
// Collision rules, by the kinds of the two values at the same key:
//
//   - mapping / mapping: merged recursively
//   - sequence / sequence: concatenated, base elements first
//   - anything else (scalar/scalar or mismatched kinds): overlay wins
func Merge(base, overlay Mapping) Mapping {
	result := make(Mapping, len(base)+len(overlay))

	for key, bv := range base {
		if ov, ok := overlay[key]; ok {
			result[key] = mergeValue(bv, ov)
		} else {
			result[key] = bv.Clone()
		}
	}
	for key, ov := range overlay {
		if _, ok := base[key]; !ok {
			result[key] = ov.Clone()
		}
	}

	return result
}

func mergeValue(base, overlay Value) Value {
	switch {
	case base.kind == KindMapping && overlay.kind == KindMapping:
		return mappingValue(Merge(base.m, overlay.m))
	case base.kind == KindSequence && overlay.kind == KindSequence:
		seq := make([]Value, 0, len(base.seq)+len(overlay.seq))
		for _, elem := range base.seq {
			seq = append(seq, elem.Clone())
		}
		for _, elem := range overlay.seq {
			seq = append(seq, elem.Clone())
		}
		return sequenceValue(seq)
	default:
		return overlay.Clone()
	}
}

// MergeAll folds the layers left to right, starting from an empty
// mapping. Later layers override earlier ones per the Merge rules.
func MergeAll(layers []Mapping) Mapping {
	result := Mapping{}
	for _, layer := range layers {
		result = Merge(result, layer)
	}
	return result
}
