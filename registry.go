package xproj

import (
	"reflect"
	"slices"
	"sync"

	xerrors "github.com/qri-io/xproj/errors"
	"github.com/qri-io/xproj/labeled"
)

// geoAccessors records, per object kind, the namespaces of registered
// geo-accessors. Entries are never removed.
var geoAccessors = struct {
	sync.RWMutex
	names map[labeled.Kind][]string
}{
	names: map[labeled.Kind][]string{},
}

// RegisterGeoAccessor records the namespaces under which accessors of type
// T are registered with labeled.RegisterAccessor, for every object kind.
// ProjAccessor.AssignCRS notifies those accessors that implement
// CRSAwareAccessor. T must be registered on at least one kind.
//
//	labeled.RegisterAccessor(labeled.KindDataset, "raster", newRasterAccessor)
//	xproj.RegisterGeoAccessor[*RasterAccessor]()
func RegisterGeoAccessor[T any]() error {
	typ := reflect.TypeFor[T]()

	found := map[labeled.Kind][]string{}
	for _, kind := range labeled.Kinds {
		if names := labeled.AccessorNames(kind, typ); len(names) > 0 {
			found[kind] = names
		}
	}
	if len(found) == 0 {
		return xerrors.Newf(xerrors.ErrCodeNotFound,
			"type %s is not a registered Dataset or DataArray accessor", typ)
	}

	geoAccessors.Lock()
	defer geoAccessors.Unlock()
	for kind, names := range found {
		for _, name := range names {
			if !slices.Contains(geoAccessors.names[kind], name) {
				geoAccessors.names[kind] = append(geoAccessors.names[kind], name)
			}
		}
		slices.Sort(geoAccessors.names[kind])
	}
	return nil
}

// GeoAccessors returns the geo-accessor instances attached to obj, sorted by
// namespace. Accessors that resolve to a DataArray are skipped.
func GeoAccessors(obj *labeled.Object) []any {
	var out []any
	for _, name := range geoAccessorNames(obj.Kind()) {
		if acc, ok := geoAccessor(obj, name); ok {
			out = append(out, acc)
		}
	}
	return out
}

func geoAccessorNames(kind labeled.Kind) []string {
	geoAccessors.RLock()
	defer geoAccessors.RUnlock()
	return slices.Clone(geoAccessors.names[kind])
}

func geoAccessor(obj *labeled.Object, name string) (any, bool) {
	acc := obj.Accessor(name)
	if acc == nil {
		return nil, false
	}
	if o, ok := acc.(*labeled.Object); ok && o.Kind() == labeled.KindDataArray {
		return nil, false
	}
	return acc, true
}
