package xproj

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/qri-io/xproj/crs"
	xerrors "github.com/qri-io/xproj/errors"
	"github.com/qri-io/xproj/labeled"
)

// Namespace is the accessor namespace xproj registers on Datasets and
// DataArrays.
const Namespace = "proj"

func init() {
	for _, kind := range labeled.Kinds {
		if err := labeled.RegisterAccessor(kind, Namespace, newProjAccessor); err != nil {
			panic(err)
		}
	}
}

// ProjAccessor exposes the CRS of a Dataset or DataArray. Lookups are
// computed once per accessor; methods that change the CRS return a new
// object, which gets its own accessor.
//
// Only one CRS per object is currently supported: most methods fail when
// several coordinates carry one.
type ProjAccessor struct {
	obj *labeled.Object

	mu         sync.Mutex
	crsIndexes *Frozen[*CRSIndex]
	crsAware   *Frozen[CRSAwareIndex]
	crs        *crs.CRS
	crsDone    bool
}

func newProjAccessor(obj *labeled.Object) *ProjAccessor {
	return &ProjAccessor{obj: obj}
}

// Proj returns the accessor of obj.
func Proj(obj *labeled.Object) *ProjAccessor {
	return obj.Accessor(Namespace).(*ProjAccessor)
}

// Object returns the object the accessor is attached to.
func (a *ProjAccessor) Object() *labeled.Object {
	return a.obj
}

// CRSIndexes returns the coordinates indexed by a CRSIndex. An index over
// several coordinates is listed once, under its first coordinate.
func (a *ProjAccessor) CRSIndexes() Frozen[*CRSIndex] {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.crsIndexes == nil {
		f := scanIndexes(a.obj, func(idx labeled.Index) (*CRSIndex, bool) {
			ci, ok := idx.(*CRSIndex)
			return ci, ok
		})
		a.crsIndexes = &f
	}
	return *a.crsIndexes
}

// CRSAwareIndexes returns the coordinates whose index implements
// CRSAwareIndex, CRSIndex included.
func (a *ProjAccessor) CRSAwareIndexes() Frozen[CRSAwareIndex] {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.crsAware == nil {
		f := scanIndexes(a.obj, func(idx labeled.Index) (CRSAwareIndex, bool) {
			ci, ok := idx.(CRSAwareIndex)
			return ci, ok
		})
		a.crsAware = &f
	}
	return *a.crsAware
}

func scanIndexes[V any](obj *labeled.Object, match func(labeled.Index) (V, bool)) Frozen[V] {
	var keys []string
	m := map[string]V{}
	for _, g := range obj.Indexes().GroupByIndex() {
		if v, ok := match(g.Index); ok {
			keys = append(keys, g.CoordNames[0])
			m[g.CoordNames[0]] = v
		}
	}
	return newFrozen(keys, m)
}

// Discover returns the CRSIndex of a single coordinate, failing when the
// coordinate is missing, has no index or has an index of another type.
func (a *ProjAccessor) Discover(coordName string) (Frozen[*CRSIndex], error) {
	idx, err := a.lookupIndex(coordName)
	if err != nil {
		return Frozen[*CRSIndex]{}, err
	}
	ci, ok := idx.(*CRSIndex)
	if !ok {
		return Frozen[*CRSIndex]{}, notCRSIndex(coordName, idx)
	}
	return newFrozen([]string{coordName}, map[string]*CRSIndex{coordName: ci}), nil
}

func (a *ProjAccessor) lookupIndex(coordName string) (labeled.Index, error) {
	if !a.obj.Coords().Has(coordName) {
		return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no coordinate %q found in Dataset or DataArray", coordName)
	}
	idx, ok := a.obj.Indexes().Get(coordName)
	if !ok {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidState, "coordinate %q has no index", coordName)
	}
	return idx, nil
}

func notCRSIndex(coordName string, idx labeled.Index) error {
	return xerrors.NewWithContext(xerrors.ErrCodeInvalidState,
		fmt.Sprintf("coordinate %q index is not a CRSIndex", coordName),
		map[string]any{"index": fmt.Sprintf("%T", idx)})
}

// AssertOneCRSIndex fails unless exactly one coordinate has a CRSIndex.
func (a *ProjAccessor) AssertOneCRSIndex() error {
	switch n := a.CRSIndexes().Len(); {
	case n == 0:
		return xerrors.New(xerrors.ErrCodeAssertion, "no CRS found in Dataset or DataArray")
	case n > 1:
		return xerrors.New(xerrors.ErrCodeAssertion, "multiple CRS found in Dataset or DataArray")
	}
	return nil
}

// CRS returns the CRS of the object: nil when no index is CRS-aware, the
// CRS of the only CRS-aware index otherwise. It fails when several indexes
// are CRS-aware; use Select to pick one.
func (a *ProjAccessor) CRS() (*crs.CRS, error) {
	aware := a.CRSAwareIndexes()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.crsDone {
		return a.crs, nil
	}
	if aware.Len() > 1 {
		return nil, xerrors.NewWithContext(xerrors.ErrCodeInvalidState,
			"found multiple CRS in Dataset or DataArray, use Select to pick a spatial reference coordinate",
			map[string]any{"coords": aware.Keys()})
	}
	for _, idx := range aware.All() {
		a.crs = idx.ProjCRS()
	}
	a.crsDone = true
	return a.crs, nil
}

// CRSProxy is the CRS of one selected coordinate.
type CRSProxy struct {
	obj       *labeled.Object
	coordName string
	index     CRSAwareIndex
}

// CoordName returns the selected coordinate.
func (p *CRSProxy) CoordName() string { return p.coordName }

// CRS returns the CRS of the selected coordinate's index.
func (p *CRSProxy) CRS() *crs.CRS { return p.index.ProjCRS() }

// Object returns the object the coordinate belongs to.
func (p *CRSProxy) Object() *labeled.Object { return p.obj }

// Select returns the CRS carried by the index of coordName, which must be a
// CRSIndex or implement CRSAwareIndex.
func (a *ProjAccessor) Select(coordName string) (*CRSProxy, error) {
	if a.CRSIndexes().Len() > 1 {
		return nil, xerrors.New(xerrors.ErrCodeInvalidState,
			"found multiple coordinates with a CRSIndex in Dataset or DataArray (currently not supported)")
	}
	idx, err := a.lookupIndex(coordName)
	if err != nil {
		return nil, err
	}
	aware, ok := idx.(CRSAwareIndex)
	if !ok {
		return nil, notCRSIndex(coordName, idx)
	}
	return &CRSProxy{obj: a.obj, coordName: coordName, index: aware}, nil
}

type assignOptions struct {
	allowOverride bool
	crs           map[string]any
}

// AssignOption configures AssignCRS.
type AssignOption func(*assignOptions)

// AllowOverride lets AssignCRS replace an existing index.
func AllowOverride() AssignOption {
	return func(o *assignOptions) { o.allowOverride = true }
}

// WithCRS is the option form of the AssignCRS mapping.
func WithCRS(coordName string, input any) AssignOption {
	return func(o *assignOptions) {
		if o.crs == nil {
			o.crs = map[string]any{}
		}
		o.crs[coordName] = input
	}
}

// AssignCRS sets the CRS of a scalar coordinate, given either as a
// coordinate name to CRS mapping or with WithCRS options, not both. Only one
// coordinate per call is supported. A missing coordinate is created with
// value 0. An existing index on the coordinate is an error unless
// AllowOverride is given.
//
// Every registered geo-accessor attached to the result that implements
// CRSAwareAccessor is then notified, each one's returned object replacing
// the result. AssignCRS always returns a new object.
func (a *ProjAccessor) AssignCRS(m map[string]any, opts ...AssignOption) (*labeled.Object, error) {
	o := &assignOptions{}
	for _, opt := range opts {
		opt(o)
	}
	pairs, err := eitherMapOrOptions(m, o.crs, "AssignCRS")
	if err != nil {
		return nil, err
	}
	if len(pairs) > 1 {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "setting multiple CRSs is currently not supported")
	}

	out := a.obj.Copy()
	for name, input := range pairs {
		if !o.allowOverride && out.Indexes().Has(name) {
			return nil, xerrors.Newf(xerrors.ErrCodeInvalidState,
				"coordinate %q already has an index, use AllowOverride to replace it", name)
		}
		idx, err := NewCRSIndex(input)
		if err != nil {
			return nil, err
		}

		if !out.Coords().Has(name) {
			if out, err = out.AssignCoord(name, labeled.Scalar(0)); err != nil {
				return nil, err
			}
		}
		if out, err = out.DropIndexes([]string{name}, true); err != nil {
			return nil, err
		}
		build := func(vars []labeled.NamedVariable, _ labeled.IndexOptions) (labeled.Index, error) {
			if err := checkScalar(vars); err != nil {
				return nil, err
			}
			return idx, nil
		}
		if out, err = out.SetIndex([]string{name}, build, nil); err != nil {
			return nil, err
		}

		if out, err = notifyGeoAccessors(out, name, idx.CRS()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// notifyGeoAccessors folds obj through the CRS hooks of its geo-accessors.
// Each accessor is taken from the object returned by the previous hook.
func notifyGeoAccessors(obj *labeled.Object, coordName string, c *crs.CRS) (*labeled.Object, error) {
	for _, name := range geoAccessorNames(obj.Kind()) {
		acc, ok := geoAccessor(obj, name)
		if !ok {
			continue
		}
		hook, ok := acc.(CRSAwareAccessor)
		if !ok {
			continue
		}
		next, err := hook.ProjSetCRS(coordName, c)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.ErrCodeInternal,
				fmt.Sprintf("geo-accessor %q failed to set CRS", name), err)
		}
		if next != nil {
			obj = next
		}
	}
	return obj, nil
}

type mapOptions struct {
	targets map[string][]string
}

// MapOption configures MapCRS.
type MapOption func(*mapOptions)

// WithTargets is the option form of the MapCRS mapping.
func WithTargets(spatialRef string, coordNames ...string) MapOption {
	return func(o *mapOptions) {
		if o.targets == nil {
			o.targets = map[string][]string{}
		}
		o.targets[spatialRef] = append(o.targets[spatialRef], coordNames...)
	}
}

type mapTarget struct {
	coordName string
	index     CRSSettableIndex
}

type mapSkip struct {
	coordName string
	index     labeled.Index
}

// MapCRS passes the CRS of a spatial reference coordinate on to the indexes
// of other coordinates, given either as a spatial reference to coordinate
// names mapping or with WithTargets options, not both. Only one spatial
// reference per call is supported.
//
// Each target must have an index. All coordinates of an index spanning
// several of them must be listed. Indexes that don't implement
// CRSSettableIndex are skipped with a warning. An index is replaced by
// whatever ProjSetCRS returns, unless that is nil. MapCRS always returns a
// new object; nothing is changed when it fails.
func (a *ProjAccessor) MapCRS(m map[string][]string, opts ...MapOption) (*labeled.Object, error) {
	o := &mapOptions{}
	for _, opt := range opts {
		opt(o)
	}
	pairs, err := eitherMapOrOptions(m, o.targets, "MapCRS")
	if err != nil {
		return nil, err
	}
	if len(pairs) > 1 {
		return nil, xerrors.New(xerrors.ErrCodeInvalidUsage, "mapping multiple CRSs is currently not supported")
	}

	out := a.obj.Copy()
	for spatialRef, coordNames := range pairs {
		src, err := a.Select(spatialRef)
		if err != nil {
			return nil, err
		}
		targets, err := a.mapTargets(spatialRef, coordNames)
		if err != nil {
			return nil, err
		}

		for _, t := range targets {
			idx := t.index.ProjSetCRS(spatialRef, src.CRS())
			if idx == nil {
				continue
			}
			if out, err = out.ReplaceIndex(t.coordName, idx); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// mapTargets validates the MapCRS targets and returns the settable indexes,
// each once. Indexes that can't take a CRS are only reported once every
// target is valid.
func (a *ProjAccessor) mapTargets(spatialRef string, coordNames []string) ([]mapTarget, error) {
	indexes := a.obj.Indexes()
	var (
		targets []mapTarget
		skipped []mapSkip
		seen    = map[string]bool{}
	)
	for _, name := range coordNames {
		if !a.obj.Coords().Has(name) {
			return nil, xerrors.Newf(xerrors.ErrCodeNotFound, "no coordinate %q found in Dataset or DataArray", name)
		}
		idx, ok := indexes.Get(name)
		if !ok {
			return nil, xerrors.Newf(xerrors.ErrCodeInvalidState, "no index found for coordinate %q", name)
		}

		group := indexes.AllCoords(name)
		var missing []string
		for _, g := range group {
			if !slices.Contains(coordNames, g) {
				missing = append(missing, fmt.Sprintf("%q", g))
			}
		}
		if len(missing) > 0 {
			return nil, xerrors.NewWithContext(xerrors.ErrCodeInvalidState,
				fmt.Sprintf("missing indexed coordinate(s) to map to %q CRS: %s", spatialRef, strings.Join(missing, ", ")),
				map[string]any{"index_coords": group})
		}
		if seen[group[0]] {
			continue
		}
		seen[group[0]] = true

		settable, ok := idx.(CRSSettableIndex)
		if !ok {
			skipped = append(skipped, mapSkip{coordName: name, index: idx})
			continue
		}
		targets = append(targets, mapTarget{coordName: name, index: settable})
	}

	for _, s := range skipped {
		getLogger().Warn("the index of coordinate doesn't support setting a CRS, mapping it won't have any effect",
			"coord", s.coordName,
			"spatial_ref", spatialRef,
			"index", fmt.Sprintf("%T", s.index))
	}
	return targets, nil
}

// eitherMapOrOptions resolves the mapping and option forms of an accessor
// method argument.
func eitherMapOrOptions[V any](m, fromOpts map[string]V, method string) (map[string]V, error) {
	if len(m) > 0 && len(fromOpts) > 0 {
		return nil, xerrors.Newf(xerrors.ErrCodeInvalidUsage,
			"cannot specify both a mapping and options to proj.%s", method)
	}
	if len(m) == 0 {
		return fromOpts, nil
	}
	return m, nil
}
