// Package zarr reads and writes labeled datasets in zarr v2 stores.
package zarr

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	// Version is the zarr storage specification version this library writes.
	Version = 2
)

var (
	nan    = math.NaN()
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

type Array struct {
	path  Path
	store Store
	mode  PersistenceMode
	meta  *ArrayMeta
}

func Open(store Store, path string, mode PersistenceMode) (*Array, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}

	a := &Array{
		path:  p,
		store: store,
		mode:  mode,
	}

	mp := p.Join(string(MTArray)).String()
	f, err := store.Get(mp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a.meta = &ArrayMeta{}
	if err := json.NewDecoder(f).Decode(a.meta); err != nil {
		return nil, fmt.Errorf("reading %q: %w", mp, err)
	}

	return a, nil
}

func (a *Array) Path() string {
	return a.path.String()
}

// Meta returns the array metadata.
func (a *Array) Meta() *ArrayMeta {
	return a.meta
}

// ReadAll reads every chunk of the array into a flat, row-major slice of
// float64. Chunks missing from the store read as the fill value.
func (a *Array) ReadAll() ([]float64, error) {
	if err := a.meta.validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}
	fill, err := a.meta.fillValue()
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}

	out := make([]float64, product(a.meta.Shape))
	for i := range out {
		out[i] = fill
	}

	chunkLength := product(a.meta.Chunks)
	bo, fac, err := a.newValueFunc(chunkLength)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}

	err = eachChunk(a.meta.Shape, a.meta.Chunks, func(ch []int) error {
		f, err := a.openChunk(ch)
		if errors.Is(err, ErrNotfound) {
			return nil
		} else if err != nil {
			return err
		}
		defer f.Close()

		v := fac()
		if err := binary.Read(f, bo, v); err != nil {
			return fmt.Errorf("reading chunk %s: %w", a.chunkKey(ch), err)
		}
		vals := toFloat64(v)

		for _, p := range projectChunk(a.meta.Shape, a.meta.Chunks, ch) {
			out[p.OutSelection] = vals[p.ChunkSelection]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Array) newValueFunc(size int) (binary.ByteOrder, func() interface{}, error) {
	dt := a.meta.Dtype.Dtype
	order := dt.ByteOrder.binary()

	var factory func() interface{}
	switch dt.BasicType {
	case BTBoolean:
		factory = func() interface{} { return make([]bool, size) }
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			factory = func() interface{} { return make([]int8, size) }
		case 2:
			factory = func() interface{} { return make([]int16, size) }
		case 4:
			factory = func() interface{} { return make([]int32, size) }
		case 8:
			factory = func() interface{} { return make([]int64, size) }
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			factory = func() interface{} { return make([]uint8, size) }
		case 2:
			factory = func() interface{} { return make([]uint16, size) }
		case 4:
			factory = func() interface{} { return make([]uint32, size) }
		case 8:
			factory = func() interface{} { return make([]uint64, size) }
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			factory = func() interface{} { return make([]float32, size) }
		case 8:
			factory = func() interface{} { return make([]float64, size) }
		}
	}
	// complex, timedelta, datetime and string types have no float64 reading

	if factory == nil {
		return nil, nil, fmt.Errorf("unsupported decoding type %s (%s)", dt.BasicType.Human(), dt)
	}
	return order, factory, nil
}

func toFloat64(v interface{}) []float64 {
	switch x := v.(type) {
	case []float64:
		return x
	case []float32:
		return convert(x)
	case []int8:
		return convert(x)
	case []int16:
		return convert(x)
	case []int32:
		return convert(x)
	case []int64:
		return convert(x)
	case []uint8:
		return convert(x)
	case []uint16:
		return convert(x)
	case []uint32:
		return convert(x)
	case []uint64:
		return convert(x)
	case []bool:
		out := make([]float64, len(x))
		for i, b := range x {
			if b {
				out[i] = 1
			}
		}
		return out
	}
	return nil
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func (a *Array) openChunk(ch []int) (io.ReadCloser, error) {
	f, err := a.store.Get(a.chunkPath(ch).String())
	if err != nil {
		return nil, err
	}
	if !a.meta.Compressor.compressed() {
		return f, nil
	}
	r, err := a.meta.Compressor.Decompressor(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("chunk %s: %w", a.chunkKey(ch), err)
	}
	return &chunkReader{ReadCloser: r, raw: f}, nil
}

// chunkReader closes both a decompressing reader and the stored chunk it
// reads from.
type chunkReader struct {
	io.ReadCloser
	raw io.Closer
}

func (r *chunkReader) Close() error {
	err := r.ReadCloser.Close()
	if rawErr := r.raw.Close(); err == nil {
		err = rawErr
	}
	return err
}

func (a *Array) chunkPath(ch []int) Path {
	return a.path.Join(a.chunkKey(ch))
}

// chunkKey joins chunk grid coordinates with the dimension separator. The
// single chunk of a zero-dimensional array has key "0".
func (a *Array) chunkKey(ch []int) string {
	if len(ch) == 0 {
		return "0"
	}
	sep := a.meta.DimensionSeparator
	if sep == "" {
		sep = "."
	}
	parts := make([]string, len(ch))
	for i, c := range ch {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, sep)
}

type PersistenceMode string

const (
	// Persistence mode:
	// ‘r’ means read only (must exist);
	ModeRead PersistenceMode = "r"
	//‘r+’ means read/write (must exist)
	ModeReadWrite PersistenceMode = "r+"
	// ‘a’ means read/write (create if doesn’t exist)
	ModeReadWriteCreate PersistenceMode = "a"
	// ‘w’ means create (overwrite if exists)
	ModeWrite PersistenceMode = "w"
	// ‘w-’ means create (fail if exists).
	ModeWriteFail PersistenceMode = "w-"
)

type Path []string

// NewPath normalizes a logical path: backward slashes become forward
// slashes, leading and trailing slashes are stripped and runs of slashes
// collapse into one.
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, "\\", "/")
	var p Path
	for _, part := range strings.Split(posix, "/") {
		switch part {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("invalid path segment %q in %q", part, posix)
		}
		p = append(p, part)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

func (p Path) Shift() (head string, ch Path) {
	switch len(p) {
	case 0:
		return "", nil
	case 1:
		return p[0], nil
	default:
		return p[0], p[1:]
	}
}

func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, elems...)
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
