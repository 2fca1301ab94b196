package labeled

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// Attributes is userland metadata attached to a variable or an object.
type Attributes map[string]any

// Clone returns a shallow copy. The clone of a nil map is nil.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

func (a Attributes) equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !reflect.DeepEqual(v, w) {
			return false
		}
	}
	return true
}

// Variable is an n-dimensional array of float64 values with named
// dimensions. Values are stored flattened in row-major order. A variable
// with no dimensions is a scalar holding exactly one value.
//
// Variables are immutable once built: methods that change something return
// a new variable.
type Variable struct {
	dims  []string
	shape []int
	data  []float64
	attrs Attributes
}

// NewVariable builds a variable, checking that data matches the shape.
func NewVariable(dims []string, shape []int, data []float64) (*Variable, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("%d dimension names for a %d dimensional shape", len(dims), len(shape))
	}
	size := 1
	seen := map[string]bool{}
	for i, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("negative size %d for dimension %q", n, dims[i])
		}
		if seen[dims[i]] {
			return nil, fmt.Errorf("duplicate dimension %q", dims[i])
		}
		seen[dims[i]] = true
		size *= n
	}
	if len(data) != size {
		return nil, fmt.Errorf("%d values for shape %v", len(data), shape)
	}
	return &Variable{
		dims:  slices.Clone(dims),
		shape: slices.Clone(shape),
		data:  slices.Clone(data),
	}, nil
}

// Scalar returns a zero-dimensional variable.
func Scalar(v float64) *Variable {
	return &Variable{data: []float64{v}}
}

// Vector returns a one-dimensional variable along dim.
func Vector(dim string, values ...float64) *Variable {
	return &Variable{
		dims:  []string{dim},
		shape: []int{len(values)},
		data:  slices.Clone(values),
	}
}

// Dims returns the dimension names.
func (v *Variable) Dims() []string { return slices.Clone(v.dims) }

// Shape returns the length of each dimension.
func (v *Variable) Shape() []int { return slices.Clone(v.shape) }

// Data returns a copy of the flattened values.
func (v *Variable) Data() []float64 { return slices.Clone(v.data) }

// NDim returns the number of dimensions.
func (v *Variable) NDim() int { return len(v.dims) }

// Size returns the number of values.
func (v *Variable) Size() int { return len(v.data) }

// Attrs returns a copy of the variable attributes.
func (v *Variable) Attrs() Attributes { return v.attrs.Clone() }

// Attr returns a single attribute.
func (v *Variable) Attr(key string) (any, bool) {
	val, ok := v.attrs[key]
	return val, ok
}

// WithAttrs returns a copy of v whose attributes are replaced by attrs.
func (v *Variable) WithAttrs(attrs Attributes) *Variable {
	out := *v
	out.attrs = attrs.Clone()
	return &out
}

// dimSize returns the size of dim, if v has it.
func (v *Variable) dimSize(dim string) (int, bool) {
	for i, d := range v.dims {
		if d == dim {
			return v.shape[i], true
		}
	}
	return 0, false
}

// Equal reports whether v and o have the same dimensions and values. NaN
// values compare equal to each other.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	if !slices.Equal(v.dims, o.dims) || !slices.Equal(v.shape, o.shape) {
		return false
	}
	return slices.EqualFunc(v.data, o.data, func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})
}

// Identical is Equal that also compares attributes.
func (v *Variable) Identical(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Equal(o) && v.attrs.equal(o.attrs)
}

func (v *Variable) String() string {
	return fmt.Sprintf("(%s) float64 %s", joinNames(v.dims), formatValues(v.data, 6))
}
