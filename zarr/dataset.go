package zarr

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	xerrors "github.com/qri-io/xproj/errors"
	"github.com/qri-io/xproj/labeled"
)

// CoordinatesAttr is the group attribute listing coordinate variable names,
// space separated.
const CoordinatesAttr = "coordinates"

// SaveDataset writes ds as a zarr group at path: one array per coordinate and
// data variable, stored as a single uncompressed little endian float64
// chunk, plus consolidated metadata. Attributes contributed by indexes that
// implement labeled.AttrsEncoder are merged into their coordinates'
// attributes.
func SaveDataset(store Store, path string, ds *labeled.Object, mode PersistenceMode) error {
	if ds.Kind() != labeled.KindDataset {
		return xerrors.Newf(xerrors.ErrCodeInvalidUsage, "can only save a Dataset, got a %s", ds.Kind())
	}
	p, err := NewPath(path)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrCodeInvalidInput, "invalid path", err)
	}

	switch mode {
	case ModeRead:
		return xerrors.New(xerrors.ErrCodeInvalidUsage, "cannot save in read only mode")
	case ModeWriteFail, ModeReadWrite:
		_, err := store.Get(p.Join(string(MTGroup)).String())
		exists := err == nil
		if err != nil && !errors.Is(err, ErrNotfound) {
			return err
		}
		if mode == ModeWriteFail && exists {
			return xerrors.Newf(xerrors.ErrCodeConflict, "group %q already exists", p)
		}
		if mode == ModeReadWrite && !exists {
			return xerrors.Newf(xerrors.ErrCodeNotFound, "group %q does not exist", p)
		}
	}

	cm := ConsolidatedMetadata{
		ConsolidatedFormat: 1,
		Metadata:           map[string]MetaTyper{},
	}
	put := func(key string, m MetaTyper) error {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", key, err)
		}
		cm.Metadata[key] = m
		return store.Put(p.Join(strings.Split(key, "/")...).String(), bytes.NewReader(data))
	}

	if err := put(string(MTGroup), &Group{ZarrFormat: Version}); err != nil {
		return err
	}

	indexAttrs := encodedIndexAttrs(ds)
	coords := ds.Coords()
	for _, name := range coords.Names() {
		v, _ := coords.Get(name)
		if err := saveVariable(store, p, name, v, indexAttrs[name], put); err != nil {
			return err
		}
	}
	for _, name := range ds.DataVars() {
		v, _ := ds.DataVar(name)
		if err := saveVariable(store, p, name, v, nil, put); err != nil {
			return err
		}
	}

	attrs := Attributes{}
	for k, v := range ds.Attrs() {
		attrs[k] = v
	}
	if coords.Len() > 0 {
		attrs[CoordinatesAttr] = strings.Join(coords.Names(), " ")
	}
	if err := put(string(MTAttributes), attrs); err != nil {
		return err
	}

	data, err := json.Marshal(cm)
	if err != nil {
		return fmt.Errorf("encoding consolidated metadata: %w", err)
	}
	return store.Put(p.Join(string(MTMetadata)).String(), bytes.NewReader(data))
}

func encodedIndexAttrs(ds *labeled.Object) map[string]labeled.Attributes {
	out := map[string]labeled.Attributes{}
	for _, g := range ds.Indexes().GroupByIndex() {
		enc, ok := g.Index.(labeled.AttrsEncoder)
		if !ok {
			continue
		}
		for _, name := range g.CoordNames {
			out[name] = enc.EncodeAttrs(name)
		}
	}
	return out
}

func saveVariable(store Store, group Path, name string, v *labeled.Variable, extra labeled.Attributes, put func(string, MetaTyper) error) error {
	chunks := v.Shape()
	for i, c := range chunks {
		chunks[i] = max(c, 1)
	}
	meta := &ArrayMeta{
		ZarrFormat: Version,
		Shape:      v.Shape(),
		Chunks:     chunks,
		Dtype:      StructuredType{Dtype: Float64},
		FillValue:  FillValueNaN,
		Order:      "C",
	}
	if err := put(name+"/"+string(MTArray), meta); err != nil {
		return err
	}

	attrs := Attributes{}
	for k, val := range v.Attrs() {
		attrs[k] = val
	}
	for k, val := range extra {
		attrs[k] = val
	}
	dims := v.Dims()
	if dims == nil {
		dims = []string{}
	}
	attrs[DimensionsAttr] = dims
	if err := put(name+"/"+string(MTAttributes), attrs); err != nil {
		return err
	}

	if v.Size() == 0 {
		return nil
	}
	// edge chunks are padded to the full chunk shape
	values := v.Data()
	data := make([]float64, product(chunks))
	for i := range data {
		data[i] = nan
	}
	for _, pr := range projectChunk(meta.Shape, chunks, make([]int, len(chunks))) {
		data[pr.ChunkSelection] = values[pr.OutSelection]
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return err
	}
	a := &Array{path: group.Join(name), meta: meta}
	return store.Put(a.chunkPath(make([]int, len(chunks))).String(), buf)
}

// OpenDataset reads the zarr group at path into a Dataset. The group must
// carry consolidated metadata. Variables listed in the group's coordinates
// attribute, or named after their only dimension, become coordinates. One
// dimensional coordinates named after their dimension get a
// labeled.ValueIndex.
func OpenDataset(store Store, path string) (*labeled.Object, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCodeInvalidInput, "invalid path", err)
	}

	key := p.Join(string(MTMetadata)).String()
	f, err := store.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotfound) {
			return nil, xerrors.Wrap(xerrors.ErrCodeNotFound, "no consolidated metadata", err)
		}
		return nil, err
	}
	defer f.Close()
	cm := &ConsolidatedMetadata{}
	if err := json.NewDecoder(f).Decode(cm); err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}

	groupAttrs := cm.Attributes(string(MTAttributes))
	isCoord := map[string]bool{}
	if s, ok := groupAttrs[CoordinatesAttr].(string); ok {
		for _, name := range strings.Fields(s) {
			isCoord[name] = true
		}
	}

	var names []string
	for k := range cm.Metadata {
		if name, ok := strings.CutSuffix(k, "/"+string(MTArray)); ok && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	ds := labeled.NewDataset()
	var indexed []string
	for _, name := range names {
		meta, _ := cm.Array(name + "/" + string(MTArray))
		v, err := readVariable(store, p.Join(name), meta, cm.Attributes(name+"/"+string(MTAttributes)))
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}

		dims := v.Dims()
		dimCoord := len(dims) == 1 && dims[0] == name
		if isCoord[name] || dimCoord {
			if ds, err = ds.AssignCoord(name, v); err != nil {
				return nil, err
			}
			if dimCoord {
				indexed = append(indexed, name)
			}
		} else if ds, err = ds.AssignDataVar(name, v); err != nil {
			return nil, err
		}
	}

	for _, name := range indexed {
		if ds, err = ds.SetIndex([]string{name}, labeled.BuildValueIndex, nil); err != nil {
			return nil, err
		}
	}

	delete(groupAttrs, CoordinatesAttr)
	if len(groupAttrs) > 0 {
		ds = ds.WithAttrs(labeled.Attributes(groupAttrs))
	}
	return ds, nil
}

func readVariable(store Store, p Path, meta *ArrayMeta, attrs Attributes) (*labeled.Variable, error) {
	dims, err := attrs.Dimensions()
	if err != nil {
		return nil, err
	}
	if dims == nil && len(meta.Shape) > 0 {
		return nil, fmt.Errorf("missing %s attribute", DimensionsAttr)
	}

	a := &Array{path: p, store: store, mode: ModeRead, meta: meta}
	data, err := a.ReadAll()
	if err != nil {
		return nil, err
	}
	v, err := labeled.NewVariable(dims, meta.Shape, data)
	if err != nil {
		return nil, err
	}

	delete(attrs, DimensionsAttr)
	if len(attrs) > 0 {
		v = v.WithAttrs(labeled.Attributes(attrs))
	}
	return v, nil
}
