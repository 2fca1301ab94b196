package xproj

import (
	"github.com/qri-io/xproj/crs"
	"github.com/qri-io/xproj/labeled"
)

// CRSAwareIndex is implemented by indexes that carry a CRS. Any index type
// can implement it; the accessor detects it with a type assertion.
type CRSAwareIndex interface {
	labeled.Index
	// ProjCRS returns the index CRS, nil when unset.
	ProjCRS() *crs.CRS
}

// CRSSettableIndex is implemented by CRS-aware indexes that accept a CRS
// mapped from a spatial reference coordinate (see ProjAccessor.MapCRS).
type CRSSettableIndex interface {
	CRSAwareIndex
	// ProjSetCRS returns the index to use from now on: a new index, the
	// receiver itself, or nil when the assignment doesn't apply.
	ProjSetCRS(spatialRef string, c *crs.CRS) labeled.Index
}

// CRSAwareAccessor is implemented by geo-accessors (see RegisterGeoAccessor)
// that refresh their object when a CRS is assigned to it. The returned
// object replaces the one the accessor is attached to.
type CRSAwareAccessor interface {
	ProjSetCRS(spatialRef string, c *crs.CRS) (*labeled.Object, error)
}
