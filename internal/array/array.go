package array

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/sparse"
)

// Array is the exotic behind every script array object. Elements live in a
// segmented store of one Kind; the array switches to "bag" mode (store is
// nil, elements held as ordinary properties) when an element is given
// non-default attributes.
type Array struct {
	obj            *runtime.Object
	realm          *realm
	length         uint32
	store          store
	noMissing      bool
	lengthReadOnly bool
}

type realmKey struct{}

// realm is the per-context array state.
type realm struct {
	ctx           *runtime.Context
	cfg           Config
	joining       map[*runtime.Object]bool
	speciesGetter *runtime.Object
}

func realmFor(ctx *runtime.Context) *realm {
	if r, ok := ctx.Value(realmKey{}).(*realm); ok {
		return r
	}
	r := &realm{ctx: ctx, cfg: DefaultConfig(), joining: make(map[*runtime.Object]bool)}
	ctx.SetValue(realmKey{}, r)
	return r
}

// New creates an array of the given length with no elements.
func New(ctx *runtime.Context, length uint32) (*Array, error) {
	return newArray(ctx, ctx.ArrayPrototype, length, KindInt, 0)
}

// NewWithProto creates an empty array with an explicit prototype.
func NewWithProto(ctx *runtime.Context, proto *runtime.Object, length uint32) (*Array, error) {
	return newArray(ctx, proto, length, KindInt, 0)
}

func newArray(ctx *runtime.Context, proto *runtime.Object, length uint32, k Kind, capacity uint32) (*Array, error) {
	r := realmFor(ctx)
	st, err := newStore(k, r.cfg.sparse(), capacity)
	if err != nil {
		return nil, outOfMemory(ctx, err)
	}
	o := runtime.NewObject(proto)
	o.SetClass("Array")
	a := &Array{obj: o, realm: r, length: length, store: st, noMissing: length == 0}
	o.SetExotic(a)
	return a, nil
}

// FromValues creates a dense array holding vals, in the narrowest kind
// that fits every value.
func FromValues(ctx *runtime.Context, vals ...runtime.Value) (*Array, error) {
	k := KindInt
	for _, v := range vals {
		k = max(k, kindFor(v))
	}
	a, err := newArray(ctx, ctx.ArrayPrototype, 0, k, uint32(len(vals)))
	if err != nil {
		return nil, err
	}
	if err := a.store.reset(vals); err != nil {
		return nil, outOfMemory(ctx, err)
	}
	a.length = uint32(len(vals))
	a.noMissing = true
	return a, nil
}

// FromObject returns the Array behind v, if v is an array object.
func FromObject(v runtime.Value) (*Array, bool) {
	o, ok := runtime.AsObject(v)
	if !ok {
		return nil, false
	}
	a, ok := o.Exotic().(*Array)
	return a, ok
}

// IsArray reports whether v is an array object.
func IsArray(v runtime.Value) bool {
	_, ok := FromObject(v)
	return ok
}

// Object returns the script object.
func (a *Array) Object() *runtime.Object { return a.obj }

// Context returns the context the array belongs to.
func (a *Array) Context() *runtime.Context { return a.realm.ctx }

// Kind returns the current representation. Bag-mode arrays report KindVar.
func (a *Array) Kind() Kind {
	if a.store == nil {
		return KindVar
	}
	return a.store.kind()
}

// Length returns the array length.
func (a *Array) Length() uint32 { return a.length }

// Segments returns the number of storage segments.
func (a *Array) Segments() int {
	if a.store == nil {
		return 0
	}
	return a.store.segments()
}

// Indexed reports whether segment lookup currently uses the B-tree.
func (a *Array) Indexed() bool {
	return a.store != nil && a.store.indexed()
}

// HasNoMissingValues reports the no-holes flag. True is exact: every index
// below the length is present. False only means "not known".
func (a *Array) HasNoMissingValues() bool { return a.noMissing }

// IsBag reports whether elements are held as ordinary properties.
func (a *Array) IsBag() bool { return a.store == nil }

// Validate checks storage invariants and the no-holes flag.
func (a *Array) Validate() error {
	if a.store == nil {
		return nil
	}
	if err := a.store.validate(); err != nil {
		return err
	}
	var beyond error
	a.store.each(func(i uint32, _ runtime.Value) bool {
		if i >= a.length {
			beyond = fmt.Errorf("element at %d beyond length %d", i, a.length)
			return false
		}
		return true
	})
	if beyond != nil {
		return beyond
	}
	if a.noMissing && !a.store.noHolesBelow(a.length) {
		return fmt.Errorf("no-missing-values flag set on array with holes")
	}
	return nil
}

// dense reports whether the segmented fast paths may run.
func (a *Array) dense() bool { return a.store != nil }

// OwnElement returns the stored element at i without prototype lookup.
func (a *Array) OwnElement(i uint32) (runtime.Value, bool) {
	if a.store == nil {
		p, ok := a.obj.GetOwnProperty(runtime.IndexKey(i))
		if !ok || p.Accessor {
			return nil, false
		}
		return p.Value, true
	}
	return a.store.get(i)
}

// Get reads index i, falling through to the prototype chain for holes.
func (a *Array) Get(i uint32) (runtime.Value, error) {
	return a.obj.Get(a.realm.ctx, runtime.IndexKey(i))
}

// Set writes index i with ordinary assignment semantics.
func (a *Array) Set(i uint32, v runtime.Value) error {
	return a.obj.Set(a.realm.ctx, runtime.IndexKey(i), v)
}

// Has reports whether index i is present on the array or its prototypes.
func (a *Array) Has(i uint32) bool {
	return a.obj.HasProperty(runtime.IndexKey(i))
}

// Delete removes index i, leaving a hole.
func (a *Array) Delete(i uint32) error {
	return a.obj.DeleteOrThrow(a.realm.ctx, runtime.IndexKey(i))
}

// Values returns [0, length) with runtime.Missing for holes. Only valid in
// segmented mode; bag arrays read through properties.
func (a *Array) Values() []runtime.Value {
	if a.store == nil {
		out := make([]runtime.Value, a.length)
		for i := range out {
			v, ok := a.OwnElement(uint32(i))
			if !ok {
				v = runtime.Missing
			}
			out[i] = v
		}
		return out
	}
	return a.store.values(a.length)
}

// SetLength sets the length, truncating elements at and beyond n.
func (a *Array) SetLength(n uint32) error {
	ctx := a.realm.ctx
	if n == a.length {
		return nil
	}
	if a.lengthReadOnly {
		return ctx.NewTypeError("Cannot assign to read only property 'length' of object '[object Array]'")
	}
	if n > a.length {
		a.length = n
		a.noMissing = false
		return nil
	}
	if a.store == nil {
		for _, k := range a.obj.OrdinaryKeys() {
			i, ok := k.ArrayIndex()
			if !ok || i < n {
				continue
			}
			if !a.obj.Delete(ctx, k) {
				a.length = i + 1
				return ctx.NewTypeError("Cannot delete property '%d' of [object Array]", i)
			}
		}
		a.length = n
		return nil
	}
	a.store.truncate(n)
	a.length = n
	return nil
}

// setIndex stores v as an own element at i, widening the representation
// when needed. The length is updated only after the element is stored.
func (a *Array) setIndex(i uint32, v runtime.Value) error {
	ctx := a.realm.ctx
	if i >= a.length && a.lengthReadOnly {
		return ctx.NewTypeError("Cannot add property %d, object is not extensible", i)
	}
	fits, err := a.store.set(i, v)
	if err != nil {
		return outOfMemory(ctx, err)
	}
	if !fits {
		a.widenTo(max(a.store.kind(), kindFor(v)))
		if _, err := a.store.set(i, v); err != nil {
			return outOfMemory(ctx, err)
		}
	}
	if i > a.length {
		a.noMissing = false
	}
	if i >= a.length {
		a.length = i + 1
	}
	return nil
}

// widenTo converts storage to kind k. Conversion never narrows.
func (a *Array) widenTo(k Kind) {
	if a.store == nil || k <= a.store.kind() {
		return
	}
	a.store = a.store.widen(k)
}

// widenForAll widens once so every value in vals fits.
func (a *Array) widenForAll(vals []runtime.Value) {
	k := a.store.kind()
	for _, v := range vals {
		k = max(k, kindFor(v))
	}
	a.widenTo(k)
}

// toBag moves every element into ordinary properties.
func (a *Array) toBag() error {
	if a.store == nil {
		return nil
	}
	ctx := a.realm.ctx
	st := a.store
	a.store = nil
	a.noMissing = false
	var err error
	st.each(func(i uint32, v runtime.Value) bool {
		err = a.obj.OrdinaryDefineOwnProperty(ctx, runtime.IndexKey(i), runtime.DataProperty(v))
		return err == nil
	})
	return err
}

func (a *Array) refreshNoMissing() {
	if a.store == nil {
		a.noMissing = false
		return
	}
	a.noMissing = a.store.noHolesBelow(a.length)
}

// PushInt appends a native int. Falls back to the boxed path when the
// array is not int-typed or cannot take the element directly.
func (a *Array) PushInt(v int32) error {
	if ts, ok := a.store.(*typedStore[int32]); ok && a.canAppendDirect() && v != sparse.IntMissing {
		if err := ts.chain.Set(a.length, v); err != nil {
			return outOfMemory(a.realm.ctx, err)
		}
		a.length++
		return nil
	}
	return a.Push(runtime.Number(float64(v)))
}

// PushFloat appends a native float with the same fallback rule.
func (a *Array) PushFloat(v float64) error {
	if ts, ok := a.store.(*typedStore[float64]); ok && a.canAppendDirect() {
		if err := ts.chain.Set(a.length, sparse.CanonicalFloat(v)); err != nil {
			return outOfMemory(a.realm.ctx, err)
		}
		a.length++
		return nil
	}
	return a.Push(runtime.Number(v))
}

func (a *Array) canAppendDirect() bool {
	return a.store != nil && a.length < runtime.MaxArrayLength && !a.lengthReadOnly && a.obj.Extensible()
}

// Push appends values with push() semantics and returns the new length.
func (a *Array) Push(vals ...runtime.Value) error {
	_, err := push(a.realm.ctx, a.obj, vals)
	return err
}

// Pop removes and returns the last element with pop() semantics.
func (a *Array) Pop() (runtime.Value, error) {
	return pop(a.realm.ctx, a.obj)
}

// Max returns the numeric maximum of an int or float array without holes.
// ok is false when the fast path does not apply. NaN wins immediately and
// +0 is greater than -0.
func (a *Array) Max() (result float64, ok bool) { return a.extreme(true) }

// Min is the counterpart of Max; -0 is less than +0.
func (a *Array) Min() (result float64, ok bool) { return a.extreme(false) }

func (a *Array) extreme(wantMax bool) (float64, bool) {
	if a.store == nil || a.store.kind() == KindVar || !a.store.noHolesBelow(a.length) {
		return 0, false
	}
	if a.length == 0 {
		if wantMax {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	switch ts := a.store.(type) {
	case *typedStore[int32]:
		els := ts.chain.Head().Elements[:a.length]
		result := els[0]
		for _, v := range els[1:] {
			if (wantMax && v > result) || (!wantMax && v < result) {
				result = v
			}
		}
		return float64(result), true
	case *typedStore[float64]:
		els := ts.chain.Head().Elements[:a.length]
		result := els[0]
		for _, v := range els {
			if math.IsNaN(v) {
				return math.NaN(), true
			}
			switch {
			case wantMax && (v > result || (v == 0 && result == 0 && !math.Signbit(v))):
				result = v
			case !wantMax && (v < result || (v == 0 && result == 0 && math.Signbit(v))):
				result = v
			}
		}
		return result, true
	}
	return 0, false
}

// outOfMemory turns a storage allocation failure into a thrown error.
func outOfMemory(ctx *runtime.Context, err error) error {
	if errors.Is(err, sparse.ErrAllocation) {
		return runtime.Throw(ctx.NewError(ctx.RangeErrorPrototype, "Out of memory"))
	}
	return err
}
