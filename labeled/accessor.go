package labeled

import (
	"reflect"
	"slices"
	"sync"

	xerrors "github.com/qri-io/xproj/errors"
)

type accessorEntry struct {
	typ reflect.Type
	new func(*Object) any
}

var accessorRegistry = struct {
	sync.RWMutex
	byKind map[Kind]map[string]accessorEntry
}{
	byKind: map[Kind]map[string]accessorEntry{
		KindDataset:   {},
		KindDataArray: {},
	},
}

// RegisterAccessor exposes the accessors fn builds under namespace name on
// every object of the given kind. Registering the same type twice under a
// name is a no-op; registering a different type under a taken name fails.
func RegisterAccessor[T any](kind Kind, name string, fn func(*Object) T) error {
	if name == "" {
		return xerrors.New(xerrors.ErrCodeInvalidUsage, "accessor name is empty")
	}
	typ := reflect.TypeFor[T]()

	accessorRegistry.Lock()
	defer accessorRegistry.Unlock()
	names, ok := accessorRegistry.byKind[kind]
	if !ok {
		return xerrors.Newf(xerrors.ErrCodeInvalidUsage, "unknown object kind %s", kind)
	}
	if prev, ok := names[name]; ok {
		if prev.typ == typ {
			return nil
		}
		return xerrors.Newf(xerrors.ErrCodeConflict,
			"accessor %q is already registered on %s with type %s", name, kind, prev.typ)
	}
	names[name] = accessorEntry{
		typ: typ,
		new: func(o *Object) any { return fn(o) },
	}
	return nil
}

// AccessorNames returns, sorted, the names under which accessors of type typ
// are registered for kind.
func AccessorNames(kind Kind, typ reflect.Type) []string {
	accessorRegistry.RLock()
	defer accessorRegistry.RUnlock()

	var names []string
	for name, e := range accessorRegistry.byKind[kind] {
		if e.typ == typ {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Accessor returns the accessor registered under name for o's kind, or nil.
// The accessor is built on first access and cached on o.
func (o *Object) Accessor(name string) any {
	accessorRegistry.RLock()
	e, ok := accessorRegistry.byKind[o.kind][name]
	accessorRegistry.RUnlock()
	if !ok {
		return nil
	}

	o.accMu.Lock()
	defer o.accMu.Unlock()
	if acc, ok := o.accessors[name]; ok {
		return acc
	}
	if o.accessors == nil {
		o.accessors = map[string]any{}
	}
	acc := e.new(o)
	o.accessors[name] = acc
	return acc
}
