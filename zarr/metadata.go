package zarr

import (
	"encoding/json"
	"fmt"
)

type MetaType string

const (
	// MTAttributes stores userland metadata keyed by array name
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key for storing metadata on an array store
	MTArray MetaType = ".zarray"
	// MTGroup is the key for storing group definitions on an array store
	MTGroup MetaType = ".zgroup"
	// MTMetadata is the key for composite metadata
	MTMetadata MetaType = ".zmetadata"
)

// DimensionsAttr is the attribute listing the dimension names of an array,
// as written by xarray.
const DimensionsAttr = "_ARRAY_DIMENSIONS"

type MetaTyper interface {
	MetaType() MetaType
}

var metaTypes = map[MetaType]struct{}{
	MTAttributes: {},
	MTArray:      {},
	MTGroup:      {},
}

// relies on the fact that all keynames are 7 characters long
func KeyMetaType(s string) (mt MetaType, ok bool) {
	if len(s) < 7 {
		return mt, false
	}
	mt = MetaType(s[len(s)-7:])
	_, ok = metaTypes[mt]
	return mt, ok
}

type Attributes map[string]interface{}

func (Attributes) MetaType() MetaType { return MTAttributes }

// Dimensions returns the dimension names stored under DimensionsAttr.
func (a Attributes) Dimensions() ([]string, error) {
	raw, ok := a[DimensionsAttr]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []interface{}:
		dims := make([]string, len(v))
		for i, d := range v {
			s, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s entry %v", DimensionsAttr, d)
			}
			dims[i] = s
		}
		return dims, nil
	default:
		return nil, fmt.Errorf("invalid %s attribute %T", DimensionsAttr, raw)
	}
}

// Arrays can be organized into groups which can also contain other groups.
// A group is created by storing group ArrayMeta under the “.zgroup” key under
// some logical path. E.g., a group exists at the root of an array store if the
// “.zgroup” key exists in the store, and a group exists at logical path
// “foo/bar” if the “foo/bar/.zgroup” key exists in the store.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

func (Group) MetaType() MetaType { return MTGroup }

type ConsolidatedMetadata struct {
	ConsolidatedFormat int                  `json:"zarr_consolidated_format"`
	Metadata           map[string]MetaTyper `json:"metadata"`
}

type consolidatedMetaDecoder struct {
	ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata           map[string]json.RawMessage `json:"metadata"`
}

func (m *ConsolidatedMetadata) UnmarshalJSON(d []byte) error {
	cd := consolidatedMetaDecoder{}
	if err := json.Unmarshal(d, &cd); err != nil {
		return err
	}
	cm := ConsolidatedMetadata{
		ConsolidatedFormat: cd.ConsolidatedFormat,
		Metadata:           map[string]MetaTyper{},
	}

	for key, data := range cd.Metadata {
		kt, ok := KeyMetaType(key)
		if !ok {
			return fmt.Errorf("invalid consoldated metadata key: %q", key)
		}

		switch kt {
		case MTArray:
			arr := &ArrayMeta{}
			if err := json.Unmarshal(data, arr); err != nil {
				return fmt.Errorf("reading %q metadata: %w", key, err)
			}
			cm.Metadata[key] = arr
		case MTAttributes:
			attr := Attributes{}
			if err := json.Unmarshal(data, &attr); err != nil {
				return fmt.Errorf("reading %q attributes: %w", key, err)
			}
			cm.Metadata[key] = attr
		case MTGroup:
			grp := &Group{}
			if err := json.Unmarshal(data, grp); err != nil {
				return fmt.Errorf("reading %q group: %w", key, err)
			}
			cm.Metadata[key] = grp
		}
	}

	*m = cm
	return nil
}

// Array returns the array metadata stored under key, if any.
func (m *ConsolidatedMetadata) Array(key string) (*ArrayMeta, bool) {
	a, ok := m.Metadata[key].(*ArrayMeta)
	return a, ok
}

// Attributes returns the attributes stored under key, or empty attributes.
func (m *ConsolidatedMetadata) Attributes(key string) Attributes {
	if a, ok := m.Metadata[key].(Attributes); ok {
		return a
	}
	return Attributes{}
}

// Each array requires essential configuration metadata to be stored,
// enabling correct interpretation of the stored data.
// This metadata is encoded using JSON and stored as the value of the
// “.zarray” key within an array store.
type ArrayMeta struct {
	// An integer defining the version of the storage specification to which
	// the array store adheres.
	ZarrFormat int `json:"zarr_format"`
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// A list of integers defining the length of each dimension of a chunk of the
	// array. Note that all chunks within a Zarr array have the same shape.
	Chunks []int `json:"chunks"`
	// A string or list defining a valid data type for the array. See also the
	// subsection below on data type encoding.
	Dtype StructuredType `json:"dtype"`
	// A JSON object identifying the primary compression codec and providing
	// configuration parameters, or null if no compressor is to be used. The
	// object MUST contain an "id" key identifying the codec to be used.
	Compressor *CompressionMeta `json:"compressor"`

	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is to be used.
	// If an array has a fixed length byte string data type (e.g., "|S12"), or a
	// structured data type, and if the fill value is not null, then the fill
	// value MUST be encoded as an ASCII string using the standard Base64
	// alphabet.
	FillValue interface{} `json:"fill_value"`
	// Either “C” or “F”, defining the layout of bytes within each chunk of the
	// array. “C” means row-major order, i.e., the last dimension varies fastest;
	// “F” means column-major order, i.e., the first dimension varies fastest.
	Order string `json:"order"`
	// A list of JSON objects providing codec configurations, or null if no
	// filters are to be applied. Each codec configuration object MUST contain a
	// "id" key identifying the codec to be used.
	Filters []Filter `json:"filters"`

	// optional fields

	// If present, either the string "." or "/"" definining the separator placed
	// between the dimensions of a chunk. If the value is not set, then the
	// default MUST be assumed to be ".", leading to chunk keys of the form “0.0”.
	// Arrays defined with "/" as the dimension separator can be considered to
	// have nested, or hierarchical, keys of the form “0/0” that SHOULD where
	// possible produce a directory-like structure.
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

func (a ArrayMeta) MetaType() MetaType { return MTArray }

// validate checks the parts of the metadata the reader relies on.
func (a *ArrayMeta) validate() error {
	if len(a.Chunks) != len(a.Shape) {
		return fmt.Errorf("%d chunk sizes for a %d dimensional shape", len(a.Chunks), len(a.Shape))
	}
	for i, c := range a.Chunks {
		if c <= 0 {
			return fmt.Errorf("invalid chunk size %d for dimension %d", c, i)
		}
	}
	if a.Order != "" && a.Order != "C" {
		return fmt.Errorf("unsupported chunk order %q", a.Order)
	}
	if len(a.Filters) > 0 {
		return fmt.Errorf("unsupported filters: %d configured", len(a.Filters))
	}
	if !a.Dtype.IsBasic() {
		return fmt.Errorf("unsupported %s dtype", a.Dtype.Human())
	}
	return nil
}

// fillValue decodes FillValue as a float64. A null fill value reads as 0.
func (a *ArrayMeta) fillValue() (float64, error) {
	switch v := a.FillValue.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		switch v {
		case FillValueNaN:
			return nan, nil
		case FillValueInfinity:
			return posInf, nil
		case FillValueNegativeInfinity:
			return negInf, nil
		}
	}
	return 0, fmt.Errorf("unsupported fill value %v", a.FillValue)
}

type Filter struct {
	ID     string `json:"ID"`
	Delta  string `json:"Delta"`
	Dtype  string `json:"Dtype"`
	AsType string `json:"AsType"`
}

const (
	// Not a Number
	FillValueNaN = "NaN"
	// Infinity
	FillValueInfinity = "Infinity"
	// -Infinity
	FillValueNegativeInfinity = "-Infinity"
)
