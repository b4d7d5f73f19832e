package config

import (
	"sort"
	"strings"
)

// ChangeSet partitions configuration paths by how they differ between
// the previous run's merged configuration and the current one.
//
// A value that changed at a path appears under both Added (the new
// value) and Removed (the old value). The Modified partition is kept
// for callers that expect the four-way split but is always empty.
type ChangeSet struct {
	added     Mapping
	removed   Mapping
	modified  Mapping
	unchanged Mapping

	addedPaths     []string
	removedPaths   []string
	unchangedPaths []string
}

// EmptyChangeSet returns a change set with no entries, used for the
// window between initial load and diff completion and for first runs
// of freshly created sections.
func EmptyChangeSet() *ChangeSet {
	return &ChangeSet{
		added:     Mapping{},
		removed:   Mapping{},
		modified:  Mapping{},
		unchanged: Mapping{},
	}
}

// Diff compares two merged configurations and partitions every leaf
// path (scalars and sequences count as leaves; sequences are not
// diffed element-wise). Comparison is type-strict via Value.Equal.
func Diff(previous, current Mapping) *ChangeSet {
	prevFlat := Flatten(previous)
	curFlat := Flatten(current)

	cs := EmptyChangeSet()

	for path, cv := range curFlat {
		pv, ok := prevFlat[path]
		switch {
		case !ok:
			setPath(cs.added, path, cv.Clone())
			cs.addedPaths = append(cs.addedPaths, path)
		case !pv.Equal(cv):
			setPath(cs.added, path, cv.Clone())
			setPath(cs.removed, path, pv.Clone())
			cs.addedPaths = append(cs.addedPaths, path)
			cs.removedPaths = append(cs.removedPaths, path)
		default:
			setPath(cs.unchanged, path, cv.Clone())
			cs.unchangedPaths = append(cs.unchangedPaths, path)
		}
	}
	for path, pv := range prevFlat {
		if _, ok := curFlat[path]; !ok {
			setPath(cs.removed, path, pv.Clone())
			cs.removedPaths = append(cs.removedPaths, path)
		}
	}

	sort.Strings(cs.addedPaths)
	sort.Strings(cs.removedPaths)
	sort.Strings(cs.unchangedPaths)

	return cs
}

// Added returns the nested tree of values new to or changed in the
// current configuration.
func (cs *ChangeSet) Added() Mapping {
	return cs.added
}

// Removed returns the nested tree of values absent from or replaced in
// the current configuration, holding the previous values.
func (cs *ChangeSet) Removed() Mapping {
	return cs.removed
}

// Modified is always empty; changed paths surface as added+removed pairs.
func (cs *ChangeSet) Modified() Mapping {
	return cs.modified
}

// Unchanged returns the nested tree of values identical across runs.
func (cs *ChangeSet) Unchanged() Mapping {
	return cs.unchanged
}

// AddedPaths returns the sorted dotted paths under Added.
func (cs *ChangeSet) AddedPaths() []string {
	return cs.addedPaths
}

// RemovedPaths returns the sorted dotted paths under Removed.
func (cs *ChangeSet) RemovedPaths() []string {
	return cs.removedPaths
}

// UnchangedPaths returns the sorted dotted paths under Unchanged.
func (cs *ChangeSet) UnchangedPaths() []string {
	return cs.unchangedPaths
}

// Empty reports whether nothing was added or removed.
func (cs *ChangeSet) Empty() bool {
	return len(cs.addedPaths) == 0 && len(cs.removedPaths) == 0
}

// HasPath reports whether path, or any path beneath it, was added or
// removed.
func (cs *ChangeSet) HasPath(path string) bool {
	if _, ok := getPath(cs.added, path); ok {
		return true
	}
	_, ok := getPath(cs.removed, path)
	return ok
}

// Section re-roots the change set at path. Paths missing from a
// partition simply yield an empty subtree.
func (cs *ChangeSet) Section(path string) *ChangeSet {
	sub := &ChangeSet{
		added:     subtree(cs.added, path),
		removed:   subtree(cs.removed, path),
		modified:  Mapping{},
		unchanged: subtree(cs.unchanged, path),
	}
	prefix := path + "."
	sub.addedPaths = stripPrefixed(cs.addedPaths, prefix)
	sub.removedPaths = stripPrefixed(cs.removedPaths, prefix)
	sub.unchangedPaths = stripPrefixed(cs.unchangedPaths, prefix)
	return sub
}

func subtree(m Mapping, path string) Mapping {
	v, ok := getPath(m, path)
	if !ok || v.Kind() != KindMapping {
		return Mapping{}
	}
	return v.Map()
}

func stripPrefixed(paths []string, prefix string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, strings.TrimPrefix(p, prefix))
		}
	}
	return out
}

// Flatten maps every leaf of the tree to its dotted path. Scalars and
// sequences are leaves; mapping nodes contribute only their
// descendants, so an empty mapping vanishes from the flat view.
func Flatten(m Mapping) map[string]Value {
	flat := make(map[string]Value)
	flattenInto(flat, "", m)
	return flat
}

func flattenInto(flat map[string]Value, prefix string, m Mapping) {
	for key, v := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if v.Kind() == KindMapping {
			flattenInto(flat, path, v.Map())
		} else {
			flat[path] = v
		}
	}
}

// getPath walks a dotted path through nested mappings.
func getPath(m Mapping, path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}
	segments := strings.Split(path, ".")
	current := m
	for i, segment := range segments {
		v, ok := current[segment]
		if !ok {
			return Value{}, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		if v.Kind() != KindMapping {
			return Value{}, false
		}
		current = v.Map()
	}
	return Value{}, false
}

// setPath writes a value at a dotted path, creating intermediate
// mappings. Flatten only produces paths whose interior nodes are
// mappings, so rebuilding from its output never hits a conflict.
func setPath(m Mapping, path string, v Value) {
	segments := strings.Split(path, ".")
	current := m
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next.Kind() != KindMapping {
			next = mappingValue(Mapping{})
			current[segment] = next
		}
		current = next.Map()
	}
	current[segments[len(segments)-1]] = v
}
