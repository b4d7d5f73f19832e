package config

// Configuration is a read-only view over the merged configuration and
// the change set computed against the previous run. Views are immutable
// once the change set is installed and are safe for concurrent reads.
type Configuration struct {
	data    Mapping
	changes *ChangeSet
}

// NewConfiguration wraps merged data in a view. A nil change set means
// "no changes observed yet" and behaves as an empty one.
func NewConfiguration(data Mapping, changes *ChangeSet) *Configuration {
	if data == nil {
		data = Mapping{}
	}
	if changes == nil {
		changes = EmptyChangeSet()
	}
	return &Configuration{data: data, changes: changes}
}

// installChanges replaces the view's change set. Called exactly once,
// after the startup diff has been computed and before the view is
// shared across goroutines.
func (c *Configuration) installChanges(changes *ChangeSet) {
	if changes == nil {
		changes = EmptyChangeSet()
	}
	c.changes = changes
}

// Get returns the plain value at the dotted path, or def when the path
// is missing or traverses through a non-mapping.
func (c *Configuration) Get(path string, def interface{}) interface{} {
	v, ok := getPath(c.data, path)
	if !ok {
		return def
	}
	return v.AsAny()
}

// GetString returns the string at path, or def when missing or not a string.
func (c *Configuration) GetString(path, def string) string {
	if s, ok := c.Get(path, def).(string); ok {
		return s
	}
	return def
}

// GetInt returns the integer at path, or def when missing or not an
// integer. Both int and int64 stored values are accepted.
func (c *Configuration) GetInt(path string, def int) int {
	switch n := c.Get(path, def).(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return def
	}
}

// GetBool returns the boolean at path, or def when missing or not a bool.
func (c *Configuration) GetBool(path string, def bool) bool {
	if b, ok := c.Get(path, def).(bool); ok {
		return b
	}
	return def
}

// GetStringSlice returns the sequence at path as strings. Non-string
// elements and missing paths yield def.
func (c *Configuration) GetStringSlice(path string, def []string) []string {
	v, ok := getPath(c.data, path)
	if !ok || v.Kind() != KindSequence {
		return def
	}
	out := make([]string, 0, len(v.Sequence()))
	for _, elem := range v.Sequence() {
		s, ok := elem.Scalar().(string)
		if elem.Kind() != KindScalar || !ok {
			return def
		}
		out = append(out, s)
	}
	return out
}

// GetSection returns a sub-view rooted at path. The section shares the
// underlying data and sees the change set re-rooted at the same path.
// A missing or non-mapping path yields an empty section.
func (c *Configuration) GetSection(path string) *Configuration {
	return &Configuration{
		data:    subtree(c.data, path),
		changes: c.changes.Section(path),
	}
}

// Has reports whether the dotted path exists in the configuration.
func (c *Configuration) Has(path string) bool {
	_, ok := getPath(c.data, path)
	return ok
}

// Addition returns the value newly present at path in this run, or def
// when the path was not added or changed.
func (c *Configuration) Addition(path string, def interface{}) interface{} {
	v, ok := getPath(c.changes.added, path)
	if !ok {
		return def
	}
	return v.AsAny()
}

// Removal returns the previous run's value that disappeared or was
// replaced at path, or def when nothing was removed there.
func (c *Configuration) Removal(path string, def interface{}) interface{} {
	v, ok := getPath(c.changes.removed, path)
	if !ok {
		return def
	}
	return v.AsAny()
}

// HasChanged reports whether path, or anything beneath it, was added
// or removed in this run.
func (c *Configuration) HasChanged(path string) bool {
	return c.changes.HasPath(path)
}

// LastChanges returns the change set computed at startup. First runs
// report the whole configuration as added.
func (c *Configuration) LastChanges() *ChangeSet {
	return c.changes
}

// AsMap returns the merged configuration as a plain map tree. The
// result shares nothing with the view.
func (c *Configuration) AsMap() map[string]interface{} {
	return c.data.AsAny()
}

// data access for the factory and tests in this package.
func (c *Configuration) mapping() Mapping {
	return c.data
}
