//go:build property
// +build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genLeaf() gopter.Gen {
	return gen.OneGenOf(
		gen.AlphaString().Map(func(s string) interface{} { return s }),
		gen.Int().Map(func(i int) interface{} { return i }),
		gen.Bool().Map(func(b bool) interface{} { return b }),
	)
}

func genNode(depth int) gopter.Gen {
	if depth <= 0 {
		return genLeaf()
	}
	return gen.OneGenOf(
		genLeaf(),
		gen.SliceOfN(3, genLeaf()).Map(func(vs []interface{}) interface{} { return vs }),
		gen.MapOf(gen.Identifier(), genNode(depth-1)).
			Map(func(m map[string]interface{}) interface{} { return m }),
	)
}

func genTree(depth int) gopter.Gen {
	return gen.MapOf(gen.Identifier(), genNode(depth))
}

func genScalarTree() gopter.Gen {
	return gen.MapOf(gen.Identifier(), genLeaf())
}

func mustTree(raw map[string]interface{}) Mapping {
	v, err := FromAny(raw)
	if err != nil {
		panic(err)
	}
	return v.Map()
}

// TestMergeProperties tests algebraic laws of the merge engine
func TestMergeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: merging with an empty mapping changes nothing
	properties.Property("empty mapping is a merge identity", prop.ForAll(
		func(raw map[string]interface{}) bool {
			m := mustTree(raw)
			return Merge(Mapping{}, m).Equal(m) && Merge(m, Mapping{}).Equal(m)
		},
		genTree(2),
	))

	// Property: merge never mutates either input
	properties.Property("merge leaves inputs untouched", prop.ForAll(
		func(rawBase, rawOverlay map[string]interface{}) bool {
			base := mustTree(rawBase)
			overlay := mustTree(rawOverlay)
			baseSnapshot := base.Clone()
			overlaySnapshot := overlay.Clone()

			_ = Merge(base, overlay)

			return base.Equal(baseSnapshot) && overlay.Equal(overlaySnapshot)
		},
		genTree(2),
		genTree(2),
	))

	// Property: the merged result holds the union of the top-level keys
	properties.Property("merge preserves the key union", prop.ForAll(
		func(rawBase, rawOverlay map[string]interface{}) bool {
			base := mustTree(rawBase)
			overlay := mustTree(rawOverlay)

			result := Merge(base, overlay)

			for key := range base {
				if _, ok := result[key]; !ok {
					return false
				}
			}
			for key := range overlay {
				if _, ok := result[key]; !ok {
					return false
				}
			}
			for key := range result {
				_, inBase := base[key]
				_, inOverlay := overlay[key]
				if !inBase && !inOverlay {
					return false
				}
			}
			return true
		},
		genTree(1),
		genTree(1),
	))

	// Property: on scalar-only mappings, merging a mapping onto itself
	// is a no-op (sequences would concatenate and grow)
	properties.Property("self-merge of scalar mappings is idempotent", prop.ForAll(
		func(raw map[string]interface{}) bool {
			m := mustTree(raw)
			return Merge(m, m).Equal(m)
		},
		genScalarTree(),
	))

	// Property: for scalar-only mappings the overlay value always wins
	properties.Property("overlay scalars win", prop.ForAll(
		func(rawBase, rawOverlay map[string]interface{}) bool {
			base := mustTree(rawBase)
			overlay := mustTree(rawOverlay)

			result := Merge(base, overlay)

			for key, ov := range overlay {
				rv, ok := result[key]
				if !ok || !rv.Equal(ov) {
					return false
				}
			}
			return true
		},
		genScalarTree(),
		genScalarTree(),
	))

	properties.TestingRun(t)
}

// TestDiffProperties tests partition laws of the change detector
func TestDiffProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: a mapping diffed against itself reports no changes
	properties.Property("self-diff is empty", prop.ForAll(
		func(raw map[string]interface{}) bool {
			m := mustTree(raw)
			cs := Diff(m, m.Clone())
			return cs.Empty() && len(cs.UnchangedPaths()) == len(Flatten(m))
		},
		genTree(2),
	))

	// Property: on a first run every leaf is added and nothing removed
	properties.Property("first run adds every leaf", prop.ForAll(
		func(raw map[string]interface{}) bool {
			m := mustTree(raw)
			cs := Diff(Mapping{}, m)
			return len(cs.AddedPaths()) == len(Flatten(m)) && len(cs.RemovedPaths()) == 0
		},
		genTree(2),
	))

	// Property: the partitions cover every leaf of both mappings
	properties.Property("partitions cover all paths", prop.ForAll(
		func(rawPrev, rawCur map[string]interface{}) bool {
			previous := mustTree(rawPrev)
			current := mustTree(rawCur)

			cs := Diff(previous, current)

			inAdded := pathSet(cs.AddedPaths())
			inRemoved := pathSet(cs.RemovedPaths())
			inUnchanged := pathSet(cs.UnchangedPaths())

			for path := range Flatten(current) {
				if !inAdded[path] && !inUnchanged[path] {
					return false
				}
			}
			for path := range Flatten(previous) {
				if !inRemoved[path] && !inUnchanged[path] {
					return false
				}
			}
			return true
		},
		genTree(2),
		genTree(2),
	))

	// Property: the modified partition stays empty no matter the inputs
	properties.Property("modified partition is always empty", prop.ForAll(
		func(rawPrev, rawCur map[string]interface{}) bool {
			cs := Diff(mustTree(rawPrev), mustTree(rawCur))
			return len(cs.Modified()) == 0
		},
		genTree(2),
		genTree(2),
	))

	properties.TestingRun(t)
}

// TestSnapshotRoundTripProperties tests persistence fidelity
func TestSnapshotRoundTripProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: encode/parse round trips preserve shape, types, values
	properties.Property("yaml round trip is lossless", prop.ForAll(
		func(raw map[string]interface{}) bool {
			original := mustTree(raw)

			encoded, err := EncodeYAML(original)
			if err != nil {
				return false
			}
			decoded, err := ParseYAML(encoded)
			if err != nil {
				return false
			}
			return original.Equal(decoded)
		},
		genTree(2),
	))

	// Property: clones never alias their originals
	properties.Property("clones are independent", prop.ForAll(
		func(raw map[string]interface{}) bool {
			original := mustTree(raw)
			snapshot := original.Clone()

			clone := original.Clone()
			for key := range clone {
				clone[key] = scalarValue("stomped")
				break
			}

			return original.Equal(snapshot)
		},
		genTree(2),
	))

	properties.TestingRun(t)
}

func pathSet(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}
