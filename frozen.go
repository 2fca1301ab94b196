package xproj

import (
	"iter"
	"maps"
	"slices"

	xerrors "github.com/qri-io/xproj/errors"
)

// Frozen is a read-only mapping of coordinate names to indexes. Keys keep
// the order of the coordinates they were found on.
type Frozen[V any] struct {
	keys []string
	m    map[string]V
}

func newFrozen[V any](keys []string, m map[string]V) Frozen[V] {
	return Frozen[V]{keys: slices.Clone(keys), m: maps.Clone(m)}
}

// Get returns the value stored under key.
func (f Frozen[V]) Get(key string) (V, bool) {
	v, ok := f.m[key]
	return v, ok
}

// Has reports whether key is present.
func (f Frozen[V]) Has(key string) bool {
	_, ok := f.m[key]
	return ok
}

func (f Frozen[V]) Len() int { return len(f.keys) }

// Keys returns the keys in order.
func (f Frozen[V]) Keys() []string { return slices.Clone(f.keys) }

// All iterates over key/value pairs in key order.
func (f Frozen[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range f.keys {
			if !yield(k, f.m[k]) {
				return
			}
		}
	}
}

// Set always fails: CRS associations change through ProjAccessor methods
// that return a new object.
func (f Frozen[V]) Set(key string, _ V) error {
	return xerrors.NewWithContext(xerrors.ErrCodeInvalidUsage,
		"Frozen mapping does not support item assignment", map[string]any{"key": key})
}

// Delete always fails, see Set.
func (f Frozen[V]) Delete(key string) error {
	return xerrors.NewWithContext(xerrors.ErrCodeInvalidUsage,
		"Frozen mapping does not support item deletion", map[string]any{"key": key})
}
