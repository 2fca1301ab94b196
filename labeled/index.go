package labeled

import (
	"fmt"
	"slices"
	"strings"
)

// Index provides lookup and alignment semantics for one or more
// coordinates. Equals is used by Merge to decide whether two objects agree
// on an indexed coordinate.
type Index interface {
	Equals(other Index) bool
}

// InlineReprer is implemented by indexes that render a one line summary
// in object representations. maxWidth <= 0 means the configured display
// width.
type InlineReprer interface {
	ReprInline(maxWidth int) string
}

// AttrsEncoder is implemented by indexes that persist state as attributes
// of their coordinate variables when an object is written to a store.
type AttrsEncoder interface {
	EncodeAttrs(coordName string) Attributes
}

// IndexOptions are build options passed to an IndexBuilder.
type IndexOptions map[string]any

// NamedVariable is a coordinate variable handed to an IndexBuilder.
type NamedVariable struct {
	Name string
	*Variable
}

// IndexBuilder creates an index from coordinate variables, in the order the
// coordinate names were given to SetIndex.
type IndexBuilder func(vars []NamedVariable, opts IndexOptions) (Index, error)

// ValueIndex indexes a single one-dimensional coordinate by its values.
type ValueIndex struct {
	dim    string
	values []float64
}

var (
	_ Index        = (*ValueIndex)(nil)
	_ InlineReprer = (*ValueIndex)(nil)
)

// NewValueIndex builds a ValueIndex from exactly one 1-D variable.
func NewValueIndex(vars []NamedVariable, _ IndexOptions) (*ValueIndex, error) {
	if len(vars) != 1 {
		return nil, fmt.Errorf("can only create a ValueIndex from one 1-dimensional variable, got %d variables", len(vars))
	}
	v := vars[0]
	if v.NDim() != 1 {
		return nil, fmt.Errorf("can only create a ValueIndex from a 1-dimensional variable, %q has %d dimensions", v.Name, v.NDim())
	}
	return &ValueIndex{dim: v.dims[0], values: v.Data()}, nil
}

// BuildValueIndex is NewValueIndex as an IndexBuilder.
func BuildValueIndex(vars []NamedVariable, opts IndexOptions) (Index, error) {
	idx, err := NewValueIndex(vars, opts)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Dim returns the indexed dimension.
func (idx *ValueIndex) Dim() string { return idx.dim }

// Values returns a copy of the index labels.
func (idx *ValueIndex) Values() []float64 { return slices.Clone(idx.values) }

// Lookup returns the position of label, or -1.
func (idx *ValueIndex) Lookup(label float64) int {
	return slices.Index(idx.values, label)
}

// Equals is true for another ValueIndex over the same dimension and labels.
func (idx *ValueIndex) Equals(other Index) bool {
	o, ok := other.(*ValueIndex)
	if !ok {
		return false
	}
	return idx.dim == o.dim && slices.Equal(idx.values, o.values)
}

func (idx *ValueIndex) ReprInline(int) string {
	return "ValueIndex"
}

// MultiIndex is a compound index over several 1-D coordinates sharing one
// dimension. Each coordinate is a level.
type MultiIndex struct {
	dim    string
	levels []string
	values [][]float64
}

var _ Index = (*MultiIndex)(nil)

// NewMultiIndex builds a MultiIndex from two or more 1-D variables along the
// same dimension.
func NewMultiIndex(vars []NamedVariable, _ IndexOptions) (*MultiIndex, error) {
	if len(vars) < 2 {
		return nil, fmt.Errorf("a MultiIndex needs at least 2 level variables, got %d", len(vars))
	}
	idx := &MultiIndex{}
	for i, v := range vars {
		if v.NDim() != 1 {
			return nil, fmt.Errorf("MultiIndex level %q must be 1-dimensional", v.Name)
		}
		if i == 0 {
			idx.dim = v.dims[0]
		} else if v.dims[0] != idx.dim || v.shape[0] != len(idx.values[0]) {
			return nil, fmt.Errorf("MultiIndex level %q is not aligned with dimension %q", v.Name, idx.dim)
		}
		idx.levels = append(idx.levels, v.Name)
		idx.values = append(idx.values, v.Data())
	}
	return idx, nil
}

// BuildMultiIndex is NewMultiIndex as an IndexBuilder.
func BuildMultiIndex(vars []NamedVariable, opts IndexOptions) (Index, error) {
	idx, err := NewMultiIndex(vars, opts)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Levels returns the level (coordinate) names.
func (idx *MultiIndex) Levels() []string { return slices.Clone(idx.levels) }

// Equals is true for another MultiIndex with the same levels and labels.
func (idx *MultiIndex) Equals(other Index) bool {
	o, ok := other.(*MultiIndex)
	if !ok || idx.dim != o.dim || !slices.Equal(idx.levels, o.levels) {
		return false
	}
	for i := range idx.values {
		if !slices.Equal(idx.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

func (idx *MultiIndex) ReprInline(int) string {
	return "MultiIndex (" + strings.Join(idx.levels, ", ") + ")"
}
