package array

import (
	"github.com/roach88/rewind/internal/runtime"
)

type builtin struct {
	name   string
	length int
	fn     runtime.NativeFunction
}

var prototypeMethods = []builtin{
	{"push", 1, protoPush},
	{"pop", 0, protoPop},
	{"shift", 0, protoShift},
	{"unshift", 1, protoUnshift},
	{"splice", 2, protoSplice},
	{"slice", 2, protoSlice},
	{"sort", 1, protoSort},
	{"concat", 1, protoConcat},
	{"map", 1, protoMap},
	{"filter", 1, protoFilter},
	{"reduce", 1, protoReduce},
	{"reduceRight", 1, protoReduceRight},
	{"forEach", 1, protoForEach},
	{"every", 1, protoEvery},
	{"some", 1, protoSome},
	{"find", 1, protoFind},
	{"findIndex", 1, protoFindIndex},
	{"indexOf", 1, protoIndexOf},
	{"lastIndexOf", 1, protoLastIndexOf},
	{"includes", 1, protoIncludes},
	{"fill", 1, protoFill},
	{"copyWithin", 2, protoCopyWithin},
	{"reverse", 0, protoReverse},
	{"join", 1, protoJoin},
	{"toString", 0, protoToString},
}

// Install wires the Array constructor and Array.prototype built-ins into
// ctx using cfg for storage tuning. Arrays created in ctx before Install
// keep the default tuning.
func Install(ctx *runtime.Context, cfg Config) {
	r := realmFor(ctx)
	r.cfg = cfg

	proto := ctx.ArrayPrototype
	for _, b := range prototypeMethods {
		ctx.DefineMethod(proto, b.name, b.length, b.fn)
	}

	ctor := runtime.NewConstructor(ctx, "Array", 1, func(ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return constructArray(ctx, args, nil)
	}, constructArray)
	_ = ctor.OrdinaryDefineOwnProperty(ctx, runtime.Key("prototype"), runtime.Property{Value: proto})
	_ = proto.OrdinaryDefineOwnProperty(ctx, runtime.Key("constructor"), runtime.Property{Value: ctor, Writable: true, Configurable: true})
	ctx.DefineMethod(ctor, "isArray", 1, arrayIsArray)
	ctx.DefineMethod(ctor, "of", 0, arrayOf)

	species := runtime.NewFunction(ctx, "get [Symbol.species]", 0, func(_ *runtime.Context, this runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		return this, nil
	})
	_ = ctor.OrdinaryDefineOwnProperty(ctx, runtime.SymbolKey(runtime.SymbolSpecies), runtime.Property{Getter: species, Accessor: true, Configurable: true})
	r.speciesGetter = species

	ctx.ArrayConstructor = ctor
	ctx.DefineGlobal("Array", ctor)
}

// constructArray implements `Array(...)` and `new Array(...)`.
func constructArray(ctx *runtime.Context, args []runtime.Value, newTarget *runtime.Object) (runtime.Value, error) {
	proto := ctx.ArrayPrototype
	if newTarget != nil && newTarget != ctx.ArrayConstructor {
		pv, err := newTarget.Get(ctx, runtime.Key("prototype"))
		if err != nil {
			return nil, err
		}
		if po, ok := runtime.AsObject(pv); ok {
			proto = po
		}
	}
	var a *Array
	var err error
	switch {
	case len(args) == 1:
		if n, ok := args[0].(runtime.Number); ok {
			if !validLength(float64(n)) {
				return nil, ctx.NewRangeError("Invalid array length")
			}
			a, err = NewWithProto(ctx, proto, uint32(n))
			break
		}
		a, err = FromValues(ctx, args[0])
	default:
		a, err = FromValues(ctx, args...)
	}
	if err != nil {
		return nil, err
	}
	a.obj.SetPrototype(proto)
	return a.obj, nil
}

func arrayIsArray(_ *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return runtime.Bool(IsArray(runtime.Arg(args, 0))), nil
}

// arrayOf implements Array.of, honouring a subclass `this`.
func arrayOf(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	n := int64(len(args))
	var out *runtime.Object
	if runtime.IsConstructor(this) {
		v, err := runtime.Construct(ctx, this, []runtime.Value{num(n)}, nil)
		if err != nil {
			return nil, err
		}
		o, ok := runtime.AsObject(v)
		if !ok {
			return nil, ctx.NewTypeError("Array.of: constructor did not return an object")
		}
		out = o
	} else {
		a, err := arrayCreate(ctx, n)
		if err != nil {
			return nil, err
		}
		out = a.obj
	}
	for i, v := range args {
		if err := createDataProperty(ctx, out, int64(i), v); err != nil {
			return nil, err
		}
	}
	if err := setLengthProp(ctx, out, n); err != nil {
		return nil, err
	}
	return out, nil
}

// SpeciesCreate creates the result object for map, filter, slice, splice
// and concat: a plain array unless original is an array whose constructor
// names a different species.
func SpeciesCreate(ctx *runtime.Context, original *runtime.Object, length int64) (*runtime.Object, error) {
	o, _, err := speciesCreate(ctx, original, length)
	return o, err
}

// speciesCreate also reports plain=true when the result is a fresh array
// made by the intrinsic path, whose storage callers may replace wholesale.
func speciesCreate(ctx *runtime.Context, original *runtime.Object, length int64) (*runtime.Object, bool, error) {
	plainArray := func() (*runtime.Object, bool, error) {
		a, err := arrayCreate(ctx, length)
		if err != nil {
			return nil, false, err
		}
		return a.obj, true, nil
	}
	if _, ok := original.Exotic().(*Array); !ok {
		return plainArray()
	}
	c, err := original.Get(ctx, runtime.Key("constructor"))
	if err != nil {
		return nil, false, err
	}
	if co, ok := runtime.AsObject(c); ok {
		switch {
		case co == ctx.ArrayConstructor && realmFor(ctx).intrinsicSpecies(co):
			c = runtime.Undefined
		case co.IsConstructor() && co.Realm() != nil && co.Realm() != ctx && co == co.Realm().ArrayConstructor:
			// Another context's Array constructor creates arrays in this one.
			c = runtime.Undefined
		default:
			c, err = co.Get(ctx, runtime.SymbolKey(runtime.SymbolSpecies))
			if err != nil {
				return nil, false, err
			}
			if runtime.IsNull(c) {
				c = runtime.Undefined
			}
		}
	}
	if runtime.IsUndefined(c) {
		return plainArray()
	}
	if !runtime.IsConstructor(c) {
		return nil, false, ctx.NewTypeError("object.constructor[Symbol.species] is not a constructor")
	}
	v, err := runtime.Construct(ctx, c, []runtime.Value{num(length)}, nil)
	if err != nil {
		return nil, false, err
	}
	o, ok := runtime.AsObject(v)
	if !ok {
		return nil, false, ctx.NewTypeError("species constructor did not return an object")
	}
	return o, false, nil
}

// intrinsicSpecies reports whether ctor still carries the original
// @@species getter, so species lookup can be skipped.
func (r *realm) intrinsicSpecies(ctor *runtime.Object) bool {
	p, ok := ctor.GetOwnProperty(runtime.SymbolKey(runtime.SymbolSpecies))
	return ok && p.Accessor && p.Getter == r.speciesGetter
}

// IsConcatSpreadable reports whether concat flattens v.
func IsConcatSpreadable(ctx *runtime.Context, v runtime.Value) (bool, error) {
	o, ok := runtime.AsObject(v)
	if !ok {
		return false, nil
	}
	s, err := o.Get(ctx, runtime.SymbolKey(runtime.SymbolIsConcatSpreadable))
	if err != nil {
		return false, err
	}
	if !runtime.IsUndefined(s) {
		return runtime.ToBoolean(s), nil
	}
	_, isArr := o.Exotic().(*Array)
	return isArr, nil
}
