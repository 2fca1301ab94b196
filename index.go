package xproj

import (
	"fmt"

	"github.com/qri-io/xproj/config"
	"github.com/qri-io/xproj/crs"
	xerrors "github.com/qri-io/xproj/errors"
	"github.com/qri-io/xproj/labeled"
)

// SpatialRefAttr is the coordinate attribute holding a CRS definition. It
// is read when building a CRSIndex and written when persisting one.
const SpatialRefAttr = "spatial_ref"

// CRSOption is the index build option carrying a CRS.
const CRSOption = "crs"

// CRSIndex is an index over a single scalar coordinate that holds a
// coordinate reference system. The CRS may be unset.
//
// Two CRSIndex values are equal when both CRS are unset or both denote the
// same reference system, which is what Merge uses to detect conflicting
// spatial references.
type CRSIndex struct {
	crs *crs.CRS
}

var (
	_ CRSAwareIndex        = (*CRSIndex)(nil)
	_ labeled.InlineReprer = (*CRSIndex)(nil)
	_ labeled.AttrsEncoder = (*CRSIndex)(nil)
	_ labeled.IndexBuilder = CRSIndexFromVariables
)

// NewCRSIndex returns an index holding the CRS described by input, which
// can be anything crs.FromUserInput accepts. A nil input leaves the CRS
// unset.
func NewCRSIndex(input any) (*CRSIndex, error) {
	if input == nil {
		return &CRSIndex{}, nil
	}
	if c, ok := input.(*crs.CRS); ok && c == nil {
		return &CRSIndex{}, nil
	}
	c, err := crs.FromUserInput(input)
	if err != nil {
		return nil, err
	}
	return &CRSIndex{crs: c}, nil
}

// CRSIndexFromVariables builds a CRSIndex from exactly one zero dimensional
// variable. The CRS is read from the variable's spatial_ref attribute,
// falling back to the "crs" build option.
func CRSIndexFromVariables(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
	if err := checkScalar(vars); err != nil {
		return nil, err
	}

	input, ok := vars[0].Attr(SpatialRefAttr)
	if !ok {
		input = opts[CRSOption]
	}
	idx, err := NewCRSIndex(input)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func checkScalar(vars []labeled.NamedVariable) error {
	if len(vars) != 1 || vars[0].NDim() != 0 {
		return xerrors.New(xerrors.ErrCodeInvalidInput, "can only create a CRSIndex from one scalar variable")
	}
	return nil
}

// CRS returns the index CRS, nil when unset.
func (idx *CRSIndex) CRS() *crs.CRS {
	return idx.crs
}

// ProjCRS implements CRSAwareIndex.
func (idx *CRSIndex) ProjCRS() *crs.CRS {
	return idx.crs
}

// Equals reports whether other is a CRSIndex with an equal CRS.
func (idx *CRSIndex) Equals(other labeled.Index) bool {
	o, ok := other.(*CRSIndex)
	if !ok {
		return false
	}
	return crs.Equal(idx.crs, o.crs)
}

// ReprInline renders the index on one line, truncating the CRS to maxWidth
// runes.
func (idx *CRSIndex) ReprInline(maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = config.Get().DisplayWidth
	}
	return fmt.Sprintf("CRSIndex (crs=%s)", formatCRS(idx.crs, maxWidth))
}

// EncodeAttrs stores the CRS under the spatial_ref attribute so that
// CRSIndexFromVariables can rebuild the index.
func (idx *CRSIndex) EncodeAttrs(string) labeled.Attributes {
	if idx.crs == nil {
		return nil
	}
	return labeled.Attributes{SpatialRefAttr: idx.crs.String()}
}

func (idx *CRSIndex) String() string {
	return "CRSIndex\n" + idx.crs.GoString()
}

func formatCRS(c *crs.CRS, maxWidth int) string {
	srs := []rune(c.String())
	if len(srs) <= maxWidth {
		return string(srs)
	}
	return string(srs[:maxWidth]) + " ..."
}
