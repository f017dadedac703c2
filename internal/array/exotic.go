package array

import (
	"github.com/roach88/rewind/internal/runtime"
)

var lengthKey = runtime.Key("length")

// GetOwn implements runtime.Exotic.
func (a *Array) GetOwn(key runtime.PropertyKey) (runtime.Property, bool) {
	if key == lengthKey {
		return runtime.Property{Value: runtime.Number(float64(a.length)), Writable: !a.lengthReadOnly}, true
	}
	if a.store == nil {
		return runtime.Property{}, false
	}
	i, ok := key.ArrayIndex()
	if !ok {
		return runtime.Property{}, false
	}
	v, ok := a.store.get(i)
	if !ok {
		return runtime.Property{}, false
	}
	return runtime.DataProperty(v), true
}

// SetOwn implements runtime.Exotic.
func (a *Array) SetOwn(ctx *runtime.Context, key runtime.PropertyKey, v runtime.Value) (bool, error) {
	if key == lengthKey {
		return true, a.assignLength(ctx, v)
	}
	i, ok := key.ArrayIndex()
	if !ok {
		return false, nil
	}
	if a.store == nil {
		if i >= a.length && a.lengthReadOnly {
			return true, ctx.NewTypeError("Cannot add property %d, object is not extensible", i)
		}
		if err := a.obj.OrdinaryDefineOwnProperty(ctx, key, runtime.DataProperty(v)); err != nil {
			return true, err
		}
		if i >= a.length {
			a.length = i + 1
		}
		return true, nil
	}
	if !a.obj.Extensible() && !a.store.has(i) {
		return true, ctx.NewTypeError("Cannot add property %d, object is not extensible", i)
	}
	return true, a.setIndex(i, v)
}

// assignLength handles `arr.length = v`.
func (a *Array) assignLength(ctx *runtime.Context, v runtime.Value) error {
	n, err := runtime.ToNumber(ctx, v)
	if err != nil {
		return err
	}
	u := runtime.ToUint32(n)
	if float64(u) != n {
		return ctx.NewRangeError("Invalid array length")
	}
	return a.SetLength(u)
}

// DefineOwn implements runtime.Exotic. An index defined with anything but
// default data attributes moves the array into bag mode.
func (a *Array) DefineOwn(ctx *runtime.Context, key runtime.PropertyKey, p runtime.Property) (bool, error) {
	if key == lengthKey {
		if p.Accessor {
			return true, ctx.NewTypeError("Cannot redefine property: length")
		}
		if a.lengthReadOnly && p.Value != nil {
			if n, ok := p.Value.(runtime.Number); !ok || float64(n) != float64(a.length) {
				return true, ctx.NewTypeError("Cannot redefine property: length")
			}
		}
		if p.Value != nil {
			if err := a.assignLength(ctx, p.Value); err != nil {
				return true, err
			}
		}
		if !p.Writable {
			a.lengthReadOnly = true
		}
		return true, nil
	}
	i, ok := key.ArrayIndex()
	if !ok {
		return false, nil
	}
	if i >= a.length && a.lengthReadOnly {
		return true, ctx.NewTypeError("Cannot define property %d, object is not extensible", i)
	}
	plain := !p.Accessor && p.Writable && p.Enumerable && p.Configurable
	if a.store != nil && plain {
		if !a.obj.Extensible() && !a.store.has(i) {
			return true, ctx.NewTypeError("Cannot define property %d, object is not extensible", i)
		}
		return true, a.setIndex(i, p.Value)
	}
	if err := a.toBag(); err != nil {
		return true, err
	}
	if err := a.obj.OrdinaryDefineOwnProperty(ctx, key, p); err != nil {
		return true, err
	}
	if i >= a.length {
		a.length = i + 1
	}
	return true, nil
}

// DeleteOwn implements runtime.Exotic.
func (a *Array) DeleteOwn(_ *runtime.Context, key runtime.PropertyKey) (bool, bool) {
	if key == lengthKey {
		return true, false
	}
	if a.store == nil {
		return false, false
	}
	i, ok := key.ArrayIndex()
	if !ok {
		return false, false
	}
	if a.store.has(i) {
		a.store.remove(i)
		if i < a.length {
			a.noMissing = false
		}
	}
	return true, true
}

// OwnKeys implements runtime.Exotic: present indices ascending, then length.
func (a *Array) OwnKeys() []runtime.PropertyKey {
	var keys []runtime.PropertyKey
	if a.store != nil {
		a.store.each(func(i uint32, _ runtime.Value) bool {
			keys = append(keys, runtime.IndexKey(i))
			return true
		})
	}
	return append(keys, lengthKey)
}

// HasIndexed implements runtime.IndexedReporter.
func (a *Array) HasIndexed() bool {
	if a.store == nil {
		for _, k := range a.obj.OrdinaryKeys() {
			if _, ok := k.ArrayIndex(); ok {
				return true
			}
		}
		return false
	}
	found := false
	a.store.each(func(uint32, runtime.Value) bool {
		found = true
		return false
	})
	return found
}
