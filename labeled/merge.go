package labeled

import (
	"reflect"
	"slices"

	xerrors "github.com/qri-io/xproj/errors"
)

// Merge combines two Datasets. Coordinates present in both must agree: when
// indexed, their indexes must be Equals (and span the same coordinates);
// otherwise their variables must be equal. Data variables present in both
// must be equal. Attributes of a win.
func Merge(a, b *Object) (*Object, error) {
	if a.kind != KindDataset || b.kind != KindDataset {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "only Datasets can be merged")
	}

	out := a.Copy()

	for _, g := range b.Indexes().GroupByIndex() {
		shared := slices.ContainsFunc(g.CoordNames, func(n string) bool { return a.Coords().Has(n) })
		if !shared {
			continue
		}
		first := g.CoordNames[0]
		ae, ok := a.indexes[first]
		if !ok || !slices.Equal(ae.coords, g.CoordNames) {
			return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
				"cannot align objects with different indexes", map[string]any{"coords": g.CoordNames})
		}
		if !ae.index.Equals(g.Index) {
			return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
				"cannot align objects with conflicting indexes", map[string]any{"coords": g.CoordNames})
		}
	}

	for _, name := range b.coordOrder {
		bv := b.coords[name]
		if av, ok := a.coords[name]; ok {
			_, aIndexed := a.indexes[name]
			_, bIndexed := b.indexes[name]
			if aIndexed != bIndexed {
				return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
					"coordinate is indexed in only one of the objects", map[string]any{"coord": name})
			}
			if !aIndexed && !av.Equal(bv) {
				return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
					"conflicting values for coordinate", map[string]any{"coord": name})
			}
			continue
		}
		if _, ok := a.vars[name]; ok {
			return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
				"name is a coordinate in one object and a data variable in the other", map[string]any{"name": name})
		}
		if err := out.checkDims(name, bv); err != nil {
			return nil, err
		}
		out.coordOrder = append(out.coordOrder, name)
		out.coords[name] = bv
		if e, ok := b.indexes[name]; ok {
			out.indexes[name] = e
		}
	}

	for _, name := range b.varOrder {
		bv := b.vars[name]
		if av, ok := a.vars[name]; ok {
			if !av.Equal(bv) {
				return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
					"conflicting values for data variable", map[string]any{"name": name})
			}
			continue
		}
		if _, ok := a.coords[name]; ok {
			return nil, xerrors.NewWithContext(xerrors.ErrCodeConflict,
				"name is a coordinate in one object and a data variable in the other", map[string]any{"name": name})
		}
		if err := out.checkDims(name, bv); err != nil {
			return nil, err
		}
		out.varOrder = append(out.varOrder, name)
		out.vars[name] = bv
	}

	return out, nil
}

// Identical reports whether a and b have the same kind, name, attributes,
// variables (with attributes) and equal indexes of the same types over the
// same coordinates. Coordinate order is ignored.
func Identical(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind || a.name != b.name || !a.attrs.equal(b.attrs) {
		return false
	}
	if (a.data == nil) != (b.data == nil) || (a.data != nil && !a.data.Identical(b.data)) {
		return false
	}
	if !sameVariables(a.vars, b.vars) || !sameVariables(a.coords, b.coords) {
		return false
	}
	if len(a.indexes) != len(b.indexes) {
		return false
	}
	for name, ae := range a.indexes {
		be, ok := b.indexes[name]
		if !ok || !slices.Equal(ae.coords, be.coords) {
			return false
		}
		if reflect.TypeOf(ae.index) != reflect.TypeOf(be.index) || !ae.index.Equals(be.index) {
			return false
		}
	}
	return true
}

func sameVariables(a, b map[string]*Variable) bool {
	if len(a) != len(b) {
		return false
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || !av.Identical(bv) {
			return false
		}
	}
	return true
}
