package xproj

import (
	"bytes"
	"testing"

	"github.com/qri-io/xproj/crs"
	xerrors "github.com/qri-io/xproj/errors"
	"github.com/qri-io/xproj/labeled"
	"github.com/qri-io/xproj/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wgs84    = crs.MustFromUserInput("EPSG:4326")
	geocentr = crs.MustFromUserInput("EPSG:4978")
)

// geoIndex is a CRS-aware value index accepting mapped CRS.
type geoIndex struct {
	*labeled.ValueIndex
	crs *crs.CRS
}

func buildGeoIndex(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
	vi, err := labeled.NewValueIndex(vars, opts)
	if err != nil {
		return nil, err
	}
	return &geoIndex{ValueIndex: vi, crs: wgs84}, nil
}

func (idx *geoIndex) Equals(other labeled.Index) bool {
	o, ok := other.(*geoIndex)
	return ok && idx.ValueIndex.Equals(o.ValueIndex) && crs.Equal(idx.crs, o.crs)
}

func (idx *geoIndex) ProjCRS() *crs.CRS { return idx.crs }

func (idx *geoIndex) ProjSetCRS(_ string, c *crs.CRS) labeled.Index {
	return &geoIndex{ValueIndex: idx.ValueIndex, crs: c}
}

// readOnlyGeoIndex carries a CRS that can't be set.
type readOnlyGeoIndex struct {
	*labeled.ValueIndex
}

func buildReadOnlyGeoIndex(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
	vi, err := labeled.NewValueIndex(vars, opts)
	if err != nil {
		return nil, err
	}
	return &readOnlyGeoIndex{ValueIndex: vi}, nil
}

func (idx *readOnlyGeoIndex) ProjCRS() *crs.CRS { return wgs84 }

// noCRSIndex is CRS-aware without a CRS.
type noCRSIndex struct {
	*labeled.ValueIndex
}

func (idx *noCRSIndex) ProjCRS() *crs.CRS { return nil }

// ignoringGeoIndex declines every mapped CRS.
type ignoringGeoIndex struct {
	*labeled.ValueIndex
}

func (idx *ignoringGeoIndex) ProjCRS() *crs.CRS { return nil }

func (idx *ignoringGeoIndex) ProjSetCRS(string, *crs.CRS) labeled.Index { return nil }

// multiGeoIndex is a CRS-aware index over several coordinates.
type multiGeoIndex struct {
	*labeled.MultiIndex
	crs *crs.CRS
}

func (idx *multiGeoIndex) ProjCRS() *crs.CRS { return idx.crs }

func (idx *multiGeoIndex) ProjSetCRS(_ string, c *crs.CRS) labeled.Index {
	return &multiGeoIndex{MultiIndex: idx.MultiIndex, crs: c}
}

func buildMultiGeoIndex(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
	mi, err := labeled.NewMultiIndex(vars, opts)
	if err != nil {
		return nil, err
	}
	return &multiGeoIndex{MultiIndex: mi}, nil
}

func setCRSIndex(t *testing.T, obj *labeled.Object, name string, input any) *labeled.Object {
	t.Helper()
	out, err := obj.AssignCoord(name, labeled.Scalar(0))
	require.NoError(t, err)
	out, err = out.SetIndex([]string{name}, CRSIndexFromVariables, labeled.IndexOptions{CRSOption: input})
	require.NoError(t, err)
	return out
}

func assignCoord(t *testing.T, obj *labeled.Object, name string, v *labeled.Variable) *labeled.Object {
	t.Helper()
	out, err := obj.AssignCoord(name, v)
	require.NoError(t, err)
	return out
}

func setIndex(t *testing.T, obj *labeled.Object, build labeled.IndexBuilder, names ...string) *labeled.Object {
	t.Helper()
	out, err := obj.SetIndex(names, build, nil)
	require.NoError(t, err)
	return out
}

// spatialObjects returns a Dataset and a DataArray with a spatial_ref
// coordinate indexed by a CRSIndex in EPSG:4326.
func spatialObjects(t *testing.T) map[string]*labeled.Object {
	t.Helper()
	da, err := labeled.NewDataArray("v", labeled.Vector("x", 1, 2))
	require.NoError(t, err)
	return map[string]*labeled.Object{
		"Dataset":   setCRSIndex(t, labeled.NewDataset(), "spatial_ref", "epsg:4326"),
		"DataArray": setCRSIndex(t, da, "spatial_ref", "epsg:4326"),
	}
}

func TestProjAccessorCached(t *testing.T) {
	for kind, obj := range spatialObjects(t) {
		t.Run(kind, func(t *testing.T) {
			p := Proj(obj)
			assert.Same(t, p, Proj(obj))
			assert.Same(t, obj, p.Object())
			assert.NotSame(t, p, Proj(obj.Copy()))
		})
	}
}

func TestCRSIndexes(t *testing.T) {
	for kind, obj := range spatialObjects(t) {
		t.Run(kind, func(t *testing.T) {
			actual, ok := Proj(obj).CRSIndexes().Get("spatial_ref")
			require.True(t, ok)
			expected, _ := obj.Indexes().Get("spatial_ref")
			assert.Same(t, expected, actual)

			// cached
			assert.Equal(t, []string{"spatial_ref"}, Proj(obj).CRSIndexes().Keys())

			frozen := Proj(obj).CRSIndexes()
			err := frozen.Set("new", mustCRSIndex(t, 4326))
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidUsage))
			assert.ErrorContains(t, err, "does not support item assignment")
			err = frozen.Delete("spatial_ref")
			assert.ErrorContains(t, err, "does not support item deletion")
			assert.Equal(t, 1, Proj(obj).CRSIndexes().Len())
		})
	}
}

func TestCRSIndexesGroupedOnce(t *testing.T) {
	ds := assignCoord(t, labeled.NewDataset(), "a", labeled.Vector("x", 1, 2))
	ds = assignCoord(t, ds, "b", labeled.Vector("x", 3, 4))
	ds = setIndex(t, ds, buildMultiGeoIndex, "a", "b")
	ds = setCRSIndex(t, ds, "spatial_ref", nil)
	ds = setCRSIndex(t, ds, "spatial_ref2", 4978)

	assert.Equal(t, []string{"spatial_ref", "spatial_ref2"}, Proj(ds).CRSIndexes().Keys())
	assert.Equal(t, []string{"a", "spatial_ref", "spatial_ref2"}, Proj(ds).CRSAwareIndexes().Keys())
}

func TestCRSAwareIndexes(t *testing.T) {
	ds := assignCoord(t, labeled.NewDataset(), "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, buildGeoIndex, "foo")

	actual, ok := Proj(ds).CRSAwareIndexes().Get("foo")
	require.True(t, ok)
	expected, _ := ds.Indexes().Get("foo")
	assert.Same(t, expected, actual)
	assert.Equal(t, []string{"foo"}, Proj(ds).CRSAwareIndexes().Keys())
	assert.Equal(t, 0, Proj(ds).CRSIndexes().Len())

	frozen := Proj(ds).CRSAwareIndexes()
	assert.Error(t, frozen.Set("new", actual))
	assert.Error(t, frozen.Delete("foo"))

	var keys []string
	for k, idx := range frozen.All() {
		keys = append(keys, k)
		assert.True(t, crs.Equal(wgs84, idx.ProjCRS()))
	}
	assert.Equal(t, []string{"foo"}, keys)
}

func TestDiscover(t *testing.T) {
	for kind, obj := range spatialObjects(t) {
		t.Run(kind, func(t *testing.T) {
			obj = assignCoord(t, obj, "x", labeled.Vector("x", 1, 2))
			obj = setIndex(t, obj, labeled.BuildValueIndex, "x")
			obj = assignCoord(t, obj, "foo", labeled.Vector("x", 3, 4))

			found, err := Proj(obj).Discover("spatial_ref")
			require.NoError(t, err)
			assert.Equal(t, Proj(obj).CRSIndexes().Keys(), found.Keys())
			idx, _ := found.Get("spatial_ref")
			all, _ := Proj(obj).CRSIndexes().Get("spatial_ref")
			assert.Same(t, all, idx)

			_, err = Proj(obj).Discover("missing")
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeNotFound))
			assert.ErrorContains(t, err, `no coordinate "missing" found`)

			_, err = Proj(obj).Discover("foo")
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
			assert.ErrorContains(t, err, `coordinate "foo" has no index`)

			_, err = Proj(obj).Discover("x")
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
			assert.ErrorContains(t, err, `coordinate "x" index is not a CRSIndex`)
		})
	}
}

func TestSelect(t *testing.T) {
	for kind, obj := range spatialObjects(t) {
		t.Run(kind, func(t *testing.T) {
			p, err := Proj(obj).Select("spatial_ref")
			require.NoError(t, err)
			idx, _ := obj.Indexes().Get("spatial_ref")
			assert.Same(t, idx.(*CRSIndex).CRS(), p.CRS())
			assert.Equal(t, "spatial_ref", p.CoordName())
			assert.Same(t, obj, p.Object())
		})
	}
}

func TestSelectCRSAwareIndex(t *testing.T) {
	ds := assignCoord(t, labeled.NewDataset(), "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, buildGeoIndex, "foo")

	p, err := Proj(ds).Select("foo")
	require.NoError(t, err)
	assert.Same(t, wgs84, p.CRS())
}

func TestSelectErrors(t *testing.T) {
	for kind, obj := range spatialObjects(t) {
		t.Run(kind, func(t *testing.T) {
			obj = assignCoord(t, obj, "x", labeled.Vector("x", 1, 2))
			obj = setIndex(t, obj, labeled.BuildValueIndex, "x")
			obj = assignCoord(t, obj, "foo", labeled.Vector("x", 3, 4))

			_, err := Proj(obj).Select("bar")
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeNotFound))
			assert.ErrorContains(t, err, `no coordinate "bar" found`)

			_, err = Proj(obj).Select("foo")
			assert.ErrorContains(t, err, `coordinate "foo" has no index`)

			_, err = Proj(obj).Select("x")
			assert.ErrorContains(t, err, `coordinate "x" index is not a CRSIndex`)

			obj = setCRSIndex(t, obj, "spatial_ref2", 4978)
			_, err = Proj(obj).Select("spatial_ref2")
			assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
			assert.ErrorContains(t, err, "found multiple coordinates with a CRSIndex")
		})
	}
}

func TestAssertOneCRSIndex(t *testing.T) {
	ds := labeled.NewDataset()
	err := Proj(ds).AssertOneCRSIndex()
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeAssertion))
	assert.ErrorContains(t, err, "no CRS found")

	ds = setCRSIndex(t, ds, "a", 4326)
	assert.NoError(t, Proj(ds).AssertOneCRSIndex())

	ds = setCRSIndex(t, ds, "b", 4978)
	err = Proj(ds).AssertOneCRSIndex()
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeAssertion))
	assert.ErrorContains(t, err, "multiple CRS found")
}

func TestCRS(t *testing.T) {
	ds := labeled.NewDataset()
	c, err := Proj(ds).CRS()
	require.NoError(t, err)
	assert.Nil(t, c)
	// cached
	c, err = Proj(ds).CRS()
	require.NoError(t, err)
	assert.Nil(t, c)

	ds = assignCoord(t, ds, "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, func(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
		vi, err := labeled.NewValueIndex(vars, opts)
		if err != nil {
			return nil, err
		}
		return &noCRSIndex{ValueIndex: vi}, nil
	}, "foo")
	c, err = Proj(ds).CRS()
	require.NoError(t, err)
	assert.Nil(t, c)

	ds, err = ds.DropIndexes([]string{"foo"}, false)
	require.NoError(t, err)
	ds = setIndex(t, ds, buildGeoIndex, "foo")
	c, err = Proj(ds).CRS()
	require.NoError(t, err)
	assert.True(t, wgs84.Equal(c))

	ds, err = ds.DropVars("foo")
	require.NoError(t, err)
	ds = setCRSIndex(t, ds, "spatial_ref", 4326)
	c, err = Proj(ds).CRS()
	require.NoError(t, err)
	assert.True(t, wgs84.Equal(c))

	ds = setCRSIndex(t, ds, "spatial_ref2", 4978)
	_, err = Proj(ds).CRS()
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
	assert.ErrorContains(t, err, "found multiple CRS")
}

func TestAssignCRS(t *testing.T) {
	ds := labeled.NewDataset()

	// nothing happens but a copy is returned
	out, err := Proj(ds).AssignCRS(nil)
	require.NoError(t, err)
	assert.NotSame(t, ds, out)
	assert.True(t, labeled.Identical(ds, out))

	expected := setCRSIndex(t, ds, "spatial_ref", wgs84)
	actual, err := Proj(ds).AssignCRS(map[string]any{"spatial_ref": wgs84})
	require.NoError(t, err)
	assert.True(t, labeled.Identical(expected, actual))
	actual2, err := Proj(ds).AssignCRS(nil, WithCRS("spatial_ref", "EPSG:4326"))
	require.NoError(t, err)
	assert.True(t, labeled.Identical(expected, actual2))
	assert.Equal(t, 0, ds.Coords().Len())

	_, err = Proj(actual).AssignCRS(map[string]any{"spatial_ref": geocentr})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
	assert.ErrorContains(t, err, `coordinate "spatial_ref" already has an index`)

	actual, err = Proj(actual).AssignCRS(map[string]any{"spatial_ref": geocentr}, AllowOverride())
	require.NoError(t, err)
	assert.True(t, labeled.Identical(setCRSIndex(t, ds, "spatial_ref", 4978), actual))
	c, err := Proj(actual).CRS()
	require.NoError(t, err)
	assert.True(t, geocentr.Equal(c))
}

func TestAssignCRSErrors(t *testing.T) {
	ds := labeled.NewDataset()

	_, err := Proj(ds).AssignCRS(map[string]any{"a": wgs84, "b": geocentr})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidUsage))
	assert.ErrorContains(t, err, "setting multiple CRS")
	_, err = Proj(ds).AssignCRS(nil, WithCRS("a", "bogus"), WithCRS("b", "bogus"))
	assert.ErrorContains(t, err, "setting multiple CRS")

	_, err = Proj(ds).AssignCRS(map[string]any{"a": wgs84}, WithCRS("b", geocentr))
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidUsage))

	_, err = Proj(ds).AssignCRS(map[string]any{"spatial_ref": "bogus"})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidInput))

	ds = assignCoord(t, ds, "x", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, labeled.BuildValueIndex, "x")
	_, err = Proj(ds).AssignCRS(map[string]any{"x": wgs84}, AllowOverride())
	assert.ErrorContains(t, err, "can only create a CRSIndex from one scalar variable")
	idx, _ := ds.Indexes().Get("x")
	assert.IsType(t, &labeled.ValueIndex{}, idx)
}

func TestAssignCRSDataArray(t *testing.T) {
	da, err := labeled.NewDataArray("v", labeled.Vector("x", 1, 2))
	require.NoError(t, err)

	out, err := Proj(da).AssignCRS(nil, WithCRS("spatial_ref", 4326))
	require.NoError(t, err)
	assert.Equal(t, labeled.KindDataArray, out.Kind())
	assert.True(t, labeled.Identical(setCRSIndex(t, da, "spatial_ref", 4326), out))
	assert.Equal(t, 0, da.Coords().Len())
}

func TestMapCRS(t *testing.T) {
	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)
	ds = assignCoord(t, ds, "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, buildGeoIndex, "foo")

	for name, call := range map[string]func() (*labeled.Object, error){
		"mapping": func() (*labeled.Object, error) {
			return Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"foo"}})
		},
		"options": func() (*labeled.Object, error) {
			return Proj(ds).MapCRS(nil, WithTargets("spatial_ref", "foo"))
		},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := call()
			require.NoError(t, err)

			foo, err := Proj(out).Select("foo")
			require.NoError(t, err)
			ref, err := Proj(out).Select("spatial_ref")
			require.NoError(t, err)
			assert.True(t, foo.CRS().Equal(ref.CRS()))

			orig, err := Proj(ds).Select("foo")
			require.NoError(t, err)
			assert.Same(t, wgs84, orig.CRS())
		})
	}
}

func TestMapCRSNoop(t *testing.T) {
	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)

	out, err := Proj(ds).MapCRS(nil)
	require.NoError(t, err)
	assert.NotSame(t, ds, out)
	assert.True(t, labeled.Identical(ds, out))

	ds = assignCoord(t, ds, "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, func(vars []labeled.NamedVariable, opts labeled.IndexOptions) (labeled.Index, error) {
		vi, err := labeled.NewValueIndex(vars, opts)
		if err != nil {
			return nil, err
		}
		return &ignoringGeoIndex{ValueIndex: vi}, nil
	}, "foo")
	before, _ := ds.Indexes().Get("foo")

	out, err = Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"foo"}})
	require.NoError(t, err)
	after, _ := out.Indexes().Get("foo")
	assert.Same(t, before, after)
}

func TestMapCRSWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogger(logging.NewStructuredLoggerTo(buf, "xproj", Version, "warn"))
	defer SetLogger(nil)

	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)
	ds = assignCoord(t, ds, "foo", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, buildReadOnlyGeoIndex, "foo")
	ds = assignCoord(t, ds, "x", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, labeled.BuildValueIndex, "x")
	fooBefore, _ := ds.Indexes().Get("foo")
	xBefore, _ := ds.Indexes().Get("x")

	out, err := Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"foo", "x"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "won't have any effect")
	assert.Contains(t, buf.String(), `"coord":"foo"`)
	assert.Contains(t, buf.String(), `"coord":"x"`)

	fooAfter, _ := out.Indexes().Get("foo")
	xAfter, _ := out.Indexes().Get("x")
	assert.Same(t, fooBefore, fooAfter)
	assert.Same(t, xBefore, xAfter)
}

func TestMapCRSFailedCallLogsNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogger(logging.NewStructuredLoggerTo(buf, "xproj", Version, "warn"))
	defer SetLogger(nil)

	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)
	ds = assignCoord(t, ds, "x", labeled.Vector("x", 1, 2))
	ds = setIndex(t, ds, labeled.BuildValueIndex, "x")

	_, err := Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"x", "missing"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeNotFound))
	assert.Empty(t, buf.String())
}

func TestMapCRSErrors(t *testing.T) {
	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)
	ds = assignCoord(t, ds, "a", labeled.Vector("x", 1, 2))
	ds = assignCoord(t, ds, "b", labeled.Vector("x", 3, 4))
	ds = setIndex(t, ds, buildMultiGeoIndex, "a", "b")
	ds = assignCoord(t, ds, "foo", labeled.Vector("x", 5, 6))

	_, err := Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"missing"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeNotFound))

	_, err = Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"foo"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
	assert.ErrorContains(t, err, `no index found for coordinate "foo"`)

	_, err = Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"a"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidState))
	assert.ErrorContains(t, err, "missing indexed coordinate")
	assert.ErrorContains(t, err, `"b"`)

	_, err = Proj(ds).MapCRS(map[string][]string{"nope": {"a", "b"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeNotFound))

	_, err = Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"a", "b"}, "other": {"foo"}})
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidUsage))

	_, err = Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"a", "b"}}, WithTargets("spatial_ref", "a"))
	assert.True(t, xerrors.HasCode(err, xerrors.ErrCodeInvalidUsage))
}

func TestMapCRSMultiCoordinateIndex(t *testing.T) {
	ds := setCRSIndex(t, labeled.NewDataset(), "spatial_ref", geocentr)
	ds = assignCoord(t, ds, "a", labeled.Vector("x", 1, 2))
	ds = assignCoord(t, ds, "b", labeled.Vector("x", 3, 4))
	ds = setIndex(t, ds, buildMultiGeoIndex, "a", "b")

	out, err := Proj(ds).MapCRS(map[string][]string{"spatial_ref": {"b", "a"}})
	require.NoError(t, err)

	ia, _ := out.Indexes().Get("a")
	ib, _ := out.Indexes().Get("b")
	assert.Same(t, ia, ib)
	assert.True(t, geocentr.Equal(ia.(*multiGeoIndex).ProjCRS()))
	assert.Len(t, out.Indexes().GroupByIndex(), 2)

	orig, _ := ds.Indexes().Get("a")
	assert.Nil(t, orig.(*multiGeoIndex).ProjCRS())
}

func TestObjectString(t *testing.T) {
	ds, err := Proj(labeled.NewDataset()).AssignCRS(map[string]any{"spatial_ref": 4326})
	require.NoError(t, err)
	assert.Contains(t, ds.String(), "CRSIndex (crs=EPSG:4326)")
}
