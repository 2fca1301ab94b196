// Package labeled implements labeled multi-dimensional arrays: variables
// with named dimensions grouped into objects that carry coordinates,
// indexes over those coordinates and attributes.
//
// An Object is either a Dataset (a collection of named data variables) or a
// DataArray (a single data variable). All operations that change an object
// return a new object; the receiver is never modified, so holders of the
// original observe no change.
//
// Third parties extend objects with accessors registered under a namespace
// (see RegisterAccessor). Accessor instances are cached per object.
package labeled

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	xerrors "github.com/qri-io/xproj/errors"
)

// Kind identifies the two host object kinds.
type Kind int

const (
	// KindDataset is the collection-like kind.
	KindDataset Kind = iota
	// KindDataArray is the scalar-like kind, holding one data variable.
	KindDataArray
)

// Kinds lists every object kind.
var Kinds = []Kind{KindDataset, KindDataArray}

func (k Kind) String() string {
	switch k {
	case KindDataset:
		return "Dataset"
	case KindDataArray:
		return "DataArray"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Object is a Dataset or a DataArray.
type Object struct {
	kind Kind

	// DataArray
	name string
	data *Variable

	// Dataset
	varOrder []string
	vars     map[string]*Variable

	coordOrder []string
	coords     map[string]*Variable
	indexes    map[string]*indexEntry
	attrs      Attributes

	accMu     sync.Mutex
	accessors map[string]any
}

// NewDataset returns an empty Dataset.
func NewDataset() *Object {
	return &Object{
		kind:    KindDataset,
		vars:    map[string]*Variable{},
		coords:  map[string]*Variable{},
		indexes: map[string]*indexEntry{},
	}
}

// NewDataArray returns a DataArray holding data.
func NewDataArray(name string, data *Variable) (*Object, error) {
	if data == nil {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "a DataArray needs a data variable")
	}
	return &Object{
		kind:    KindDataArray,
		name:    name,
		data:    data,
		vars:    map[string]*Variable{},
		coords:  map[string]*Variable{},
		indexes: map[string]*indexEntry{},
	}, nil
}

// Kind returns the object kind.
func (o *Object) Kind() Kind { return o.kind }

// Name returns the name of a DataArray.
func (o *Object) Name() string { return o.name }

// Data returns the data variable of a DataArray, nil for a Dataset.
func (o *Object) Data() *Variable { return o.data }

// DataVars returns the data variable names of a Dataset.
func (o *Object) DataVars() []string { return slices.Clone(o.varOrder) }

// DataVar returns a data variable of a Dataset.
func (o *Object) DataVar(name string) (*Variable, bool) {
	v, ok := o.vars[name]
	return v, ok
}

// Coords returns a read-only view of the coordinates.
func (o *Object) Coords() Coordinates {
	return Coordinates{order: o.coordOrder, vars: o.coords}
}

// Indexes returns a read-only view of the indexes.
func (o *Object) Indexes() Indexes {
	var order []string
	for _, name := range o.coordOrder {
		if _, ok := o.indexes[name]; ok {
			order = append(order, name)
		}
	}
	return Indexes{order: order, entries: o.indexes}
}

// Attrs returns a copy of the object attributes.
func (o *Object) Attrs() Attributes { return o.attrs.Clone() }

// Dims returns the size of every dimension used by the object.
func (o *Object) Dims() map[string]int {
	dims := map[string]int{}
	o.eachVariable("", func(_ string, v *Variable) {
		for i, d := range v.dims {
			dims[d] = v.shape[i]
		}
	})
	return dims
}

// eachVariable calls fn for the data and coordinate variables, skipping the
// coordinate named skip.
func (o *Object) eachVariable(skip string, fn func(name string, v *Variable)) {
	if o.data != nil {
		fn(o.name, o.data)
	}
	for _, name := range o.varOrder {
		fn(name, o.vars[name])
	}
	for _, name := range o.coordOrder {
		if name != skip {
			fn(name, o.coords[name])
		}
	}
}

// Copy returns a shallow copy: a new object sharing the (immutable)
// variables and indexes of o, with its own accessor cache.
func (o *Object) Copy() *Object {
	return &Object{
		kind:       o.kind,
		name:       o.name,
		data:       o.data,
		varOrder:   slices.Clone(o.varOrder),
		vars:       maps.Clone(o.vars),
		coordOrder: slices.Clone(o.coordOrder),
		coords:     maps.Clone(o.coords),
		indexes:    maps.Clone(o.indexes),
		attrs:      o.attrs.Clone(),
	}
}

// WithAttrs returns a copy of o with its attributes replaced.
func (o *Object) WithAttrs(attrs Attributes) *Object {
	out := o.Copy()
	out.attrs = attrs.Clone()
	return out
}

// checkDims validates the dimensions of a variable about to be added under
// name against the rest of the object.
func (o *Object) checkDims(name string, v *Variable) error {
	if o.kind == KindDataArray {
		for i, d := range v.dims {
			n, ok := o.data.dimSize(d)
			if !ok {
				return xerrors.Newf(xerrors.ErrCodeInvalidState,
					"coordinate %q has dimension %q which is not a dimension of the DataArray", name, d)
			}
			if n != v.shape[i] {
				return xerrors.Newf(xerrors.ErrCodeConflict,
					"conflicting sizes for dimension %q: %d on the DataArray and %d on %q", d, n, v.shape[i], name)
			}
		}
		return nil
	}

	var err error
	o.eachVariable(name, func(other string, ov *Variable) {
		if err != nil || other == name {
			return
		}
		for i, d := range v.dims {
			if n, ok := ov.dimSize(d); ok && n != v.shape[i] {
				err = xerrors.Newf(xerrors.ErrCodeConflict,
					"conflicting sizes for dimension %q: %d on %q and %d on %q", d, n, other, v.shape[i], name)
				return
			}
		}
	})
	return err
}

// AssignCoord returns a copy of o with coordinate name set to v. Replacing
// a coordinate drops its index; coordinates of a multi-coordinate index
// can't be replaced one at a time.
func (o *Object) AssignCoord(name string, v *Variable) (*Object, error) {
	if v == nil {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage, "nil variable for coordinate %q", name)
	}
	if _, ok := o.vars[name]; ok {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage, "%q is already a data variable", name)
	}
	if e, ok := o.indexes[name]; ok && len(e.coords) > 1 {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidState,
			"cannot replace coordinate %q which is part of the multi-coordinate index over %v", name, e.coords)
	}
	if err := o.checkDims(name, v); err != nil {
		return nil, err
	}

	out := o.Copy()
	if _, ok := out.coords[name]; !ok {
		out.coordOrder = append(out.coordOrder, name)
	}
	out.coords[name] = v
	delete(out.indexes, name)
	return out, nil
}

// AssignDataVar returns a copy of a Dataset with data variable name set to v.
func (o *Object) AssignDataVar(name string, v *Variable) (*Object, error) {
	if o.kind != KindDataset {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "data variables can only be assigned to a Dataset")
	}
	if v == nil {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage, "nil variable for data variable %q", name)
	}
	if _, ok := o.coords[name]; ok {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage, "%q is already a coordinate", name)
	}
	if err := o.checkDims(name, v); err != nil {
		return nil, err
	}

	out := o.Copy()
	if _, ok := out.vars[name]; !ok {
		out.varOrder = append(out.varOrder, name)
	}
	out.vars[name] = v
	return out, nil
}

// SetIndex returns a copy of o where the named coordinates are indexed by
// the index build returns.
func (o *Object) SetIndex(names []string, build IndexBuilder, opts IndexOptions) (*Object, error) {
	if len(names) == 0 {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "no coordinate given to set an index")
	}
	vars := make([]NamedVariable, 0, len(names))
	for _, name := range names {
		v, ok := o.coords[name]
		if !ok {
			return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no coordinate %q found", name)
		}
		if _, ok := o.indexes[name]; ok {
			return nil, xerrors.Newf(xerrors.ErrCodeInvalidState, "coordinate %q already has an index", name)
		}
		vars = append(vars, NamedVariable{Name: name, Variable: v})
	}

	idx, err := build(vars, opts)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, xerrors.New(xerrors.ErrCodeInternal, "index builder returned no index")
	}

	out := o.Copy()
	e := &indexEntry{index: idx, coords: slices.Clone(names)}
	for _, name := range names {
		out.indexes[name] = e
	}
	return out, nil
}

// DropIndexes returns a copy of o without the indexes of the named
// coordinates. All coordinates of a multi-coordinate index must be named.
// With ignoreMissing, names that are not coordinates or not indexed are
// skipped instead of failing.
func (o *Object) DropIndexes(names []string, ignoreMissing bool) (*Object, error) {
	drop := map[string]bool{}
	for _, name := range names {
		if _, ok := o.coords[name]; !ok {
			if ignoreMissing {
				continue
			}
			return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no coordinate %q found", name)
		}
		if _, ok := o.indexes[name]; !ok {
			if ignoreMissing {
				continue
			}
			return nil, xerrors.Newf(xerrors.ErrCodeInvalidState, "coordinate %q has no index", name)
		}
		drop[name] = true
	}
	if err := o.checkWholeIndexes(drop); err != nil {
		return nil, err
	}

	out := o.Copy()
	for name := range drop {
		delete(out.indexes, name)
	}
	return out, nil
}

func (o *Object) checkWholeIndexes(names map[string]bool) error {
	for name := range names {
		e, ok := o.indexes[name]
		if !ok {
			continue
		}
		for _, c := range e.coords {
			if !names[c] {
				return xerrors.Newf(xerrors.ErrCodeInvalidState,
					"cannot remove coordinate(s) %v, which would corrupt the index over %v", sortedKeys(names), e.coords)
			}
		}
	}
	return nil
}

// ReplaceIndex returns a copy of o where the index of coordinate name, and
// of every coordinate sharing it, is replaced by idx.
func (o *Object) ReplaceIndex(name string, idx Index) (*Object, error) {
	e, ok := o.indexes[name]
	if !ok {
		if _, isCoord := o.coords[name]; !isCoord {
			return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no coordinate %q found", name)
		}
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidState, "coordinate %q has no index", name)
	}
	if idx == nil {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage, "nil replacement index for coordinate %q", name)
	}

	out := o.Copy()
	ne := &indexEntry{index: idx, coords: slices.Clone(e.coords)}
	for _, c := range e.coords {
		out.indexes[c] = ne
	}
	return out, nil
}

// DropVars returns a copy of o without the named coordinates or data
// variables.
func (o *Object) DropVars(names ...string) (*Object, error) {
	drop := map[string]bool{}
	for _, name := range names {
		_, isCoord := o.coords[name]
		_, isVar := o.vars[name]
		if !isCoord && !isVar {
			return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no variable %q found", name)
		}
		drop[name] = true
	}
	if err := o.checkWholeIndexes(drop); err != nil {
		return nil, err
	}

	out := o.Copy()
	out.coordOrder = slices.DeleteFunc(out.coordOrder, func(n string) bool { return drop[n] })
	out.varOrder = slices.DeleteFunc(out.varOrder, func(n string) bool { return drop[n] })
	for name := range drop {
		delete(out.coords, name)
		delete(out.vars, name)
		delete(out.indexes, name)
	}
	return out, nil
}

func sortedKeys(m map[string]bool) []string {
	return slices.Sorted(maps.Keys(m))
}
