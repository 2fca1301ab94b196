package labeled

import "slices"

// indexEntry ties an index to the coordinates it was built from. Entries
// are shared between object copies and never mutated.
type indexEntry struct {
	index  Index
	coords []string
}

// IndexGroup is one distinct index and the coordinate names it spans.
type IndexGroup struct {
	Index      Index
	CoordNames []string
}

// Indexes is a read-only view of the indexes of an object, keyed by
// coordinate name.
type Indexes struct {
	order   []string
	entries map[string]*indexEntry
}

// Get returns the index of a coordinate.
func (ix Indexes) Get(name string) (Index, bool) {
	e, ok := ix.entries[name]
	if !ok {
		return nil, false
	}
	return e.index, true
}

// Has reports whether a coordinate is indexed.
func (ix Indexes) Has(name string) bool {
	_, ok := ix.entries[name]
	return ok
}

// Len returns the number of indexed coordinates.
func (ix Indexes) Len() int { return len(ix.order) }

// Names returns the indexed coordinate names in coordinate order.
func (ix Indexes) Names() []string { return slices.Clone(ix.order) }

// AllCoords returns every coordinate name sharing the index of name.
func (ix Indexes) AllCoords(name string) []string {
	e, ok := ix.entries[name]
	if !ok {
		return nil
	}
	return slices.Clone(e.coords)
}

// GroupByIndex returns each distinct index once, ordered by the first of its
// coordinates.
func (ix Indexes) GroupByIndex() []IndexGroup {
	var groups []IndexGroup
	seen := map[*indexEntry]bool{}
	for _, name := range ix.order {
		e := ix.entries[name]
		if seen[e] {
			continue
		}
		seen[e] = true
		groups = append(groups, IndexGroup{Index: e.index, CoordNames: slices.Clone(e.coords)})
	}
	return groups
}

// Coordinates is a read-only, ordered view of coordinate variables.
type Coordinates struct {
	order []string
	vars  map[string]*Variable
}

// Get returns a coordinate variable.
func (c Coordinates) Get(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Has reports whether a coordinate exists.
func (c Coordinates) Has(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Names returns the coordinate names in insertion order.
func (c Coordinates) Names() []string { return slices.Clone(c.order) }

// Len returns the number of coordinates.
func (c Coordinates) Len() int { return len(c.order) }
