package dispatch

import (
	"maps"
	"slices"
)

// Meta is the read-only context every action receives. Location and Tag are
// reserved; Values carries caller-supplied extensions.
type Meta struct {
	location string
	tag      string
	values   map[string]any
}

func newMeta(location, tag string, values map[string]any) Meta {
	return Meta{location: location, tag: tag, values: maps.Clone(values)}
}

// Location is the resolved position store location of the subscription.
func (m Meta) Location() string { return m.location }

// Tag is the subscription tag.
func (m Meta) Tag() string { return m.tag }

// Value returns the extension value stored under key.
func (m Meta) Value(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys lists extension keys in sorted order.
func (m Meta) Keys() []string {
	return slices.Sorted(maps.Keys(m.values))
}
