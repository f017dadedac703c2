package array

import (
	"github.com/roach88/rewind/internal/runtime"
)

// probe reads index k for the iteration built-ins. Holes are skipped
// (present=false). The fast-path check runs on every call because a
// callback between two probes may have changed the array or its
// prototypes.
func probe(ctx *runtime.Context, o *runtime.Object, k int64) (v runtime.Value, present bool, err error) {
	if a, ok := fastArray(o); ok && k <= runtime.MaxArrayIndex {
		if a.noMissing && k < int64(a.length) {
			v, _ = a.store.get(uint32(k))
			return v, true, nil
		}
		v, present = a.store.get(uint32(k))
		return v, present, nil
	}
	if !hasAt(o, k) {
		return nil, false, nil
	}
	v, err = getAt(ctx, o, k)
	return v, err == nil, err
}

// visit calls fn for each present index below the length captured at the
// start, stopping when fn returns false.
func visit(ctx *runtime.Context, o *runtime.Object, n int64, fn func(k int64, v runtime.Value) (bool, error)) error {
	for k := int64(0); k < n; k++ {
		v, present, err := probe(ctx, o, k)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		more, err := fn(k, v)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

// iterationSetup resolves this, the captured length and the callback.
func iterationSetup(ctx *runtime.Context, this runtime.Value, args []runtime.Value, method string) (*runtime.Object, int64, runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, 0, nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, 0, nil, err
	}
	fn, err := callbackArg(ctx, args, method)
	if err != nil {
		return nil, 0, nil, err
	}
	return o, n, fn, nil
}

func protoForEach(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, "forEach")
	if err != nil {
		return nil, err
	}
	thisArg := runtime.Arg(args, 1)
	err = visit(ctx, o, n, func(k int64, v runtime.Value) (bool, error) {
		_, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		return true, err
	})
	if err != nil {
		return nil, err
	}
	return runtime.Undefined, nil
}

func protoMap(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, "map")
	if err != nil {
		return nil, err
	}
	result, err := SpeciesCreate(ctx, o, n)
	if err != nil {
		return nil, err
	}
	thisArg := runtime.Arg(args, 1)
	err = visit(ctx, o, n, func(k int64, v runtime.Value) (bool, error) {
		mapped, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		if err != nil {
			return false, err
		}
		return true, createDataProperty(ctx, result, k, mapped)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func protoFilter(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, "filter")
	if err != nil {
		return nil, err
	}
	result, err := SpeciesCreate(ctx, o, 0)
	if err != nil {
		return nil, err
	}
	thisArg := runtime.Arg(args, 1)
	to := int64(0)
	err = visit(ctx, o, n, func(k int64, v runtime.Value) (bool, error) {
		keep, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		if err != nil {
			return false, err
		}
		if !runtime.ToBoolean(keep) {
			return true, nil
		}
		if err := createDataProperty(ctx, result, to, v); err != nil {
			return false, err
		}
		to++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func protoEvery(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, "every")
	if err != nil {
		return nil, err
	}
	thisArg := runtime.Arg(args, 1)
	all := true
	err = visit(ctx, o, n, func(k int64, v runtime.Value) (bool, error) {
		r, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		if err != nil {
			return false, err
		}
		all = runtime.ToBoolean(r)
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return runtime.Bool(all), nil
}

func protoSome(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, "some")
	if err != nil {
		return nil, err
	}
	thisArg := runtime.Arg(args, 1)
	found := false
	err = visit(ctx, o, n, func(k int64, v runtime.Value) (bool, error) {
		r, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		if err != nil {
			return false, err
		}
		found = runtime.ToBoolean(r)
		return !found, nil
	})
	if err != nil {
		return nil, err
	}
	return runtime.Bool(found), nil
}

// findIndexOf visits every index, holes included (read as undefined).
func findIndexOf(ctx *runtime.Context, this runtime.Value, args []runtime.Value, method string) (int64, runtime.Value, error) {
	o, n, fn, err := iterationSetup(ctx, this, args, method)
	if err != nil {
		return 0, nil, err
	}
	thisArg := runtime.Arg(args, 1)
	for k := int64(0); k < n; k++ {
		v, present, err := probe(ctx, o, k)
		if err != nil {
			return 0, nil, err
		}
		if !present {
			v = runtime.Undefined
		}
		r, err := runtime.Call(ctx, fn, thisArg, []runtime.Value{v, num(k), o})
		if err != nil {
			return 0, nil, err
		}
		if runtime.ToBoolean(r) {
			return k, v, nil
		}
	}
	return -1, runtime.Undefined, nil
}

func protoFind(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	_, v, err := findIndexOf(ctx, this, args, "find")
	return v, err
}

func protoFindIndex(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	k, _, err := findIndexOf(ctx, this, args, "findIndex")
	if err != nil {
		return nil, err
	}
	return num(k), nil
}

func protoReduce(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return reduce(ctx, this, args, false)
}

func protoReduceRight(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return reduce(ctx, this, args, true)
}

func reduce(ctx *runtime.Context, this runtime.Value, args []runtime.Value, fromRight bool) (runtime.Value, error) {
	method := "reduce"
	if fromRight {
		method = "reduceRight"
	}
	o, n, fn, err := iterationSetup(ctx, this, args, method)
	if err != nil {
		return nil, err
	}
	k, step, end := int64(0), int64(1), n
	if fromRight {
		k, step, end = n-1, -1, -1
	}

	var acc runtime.Value
	if len(args) >= 2 {
		acc = args[1]
	} else {
		for ; k != end; k += step {
			v, present, err := probe(ctx, o, k)
			if err != nil {
				return nil, err
			}
			if present {
				acc = v
				k += step
				break
			}
		}
		if acc == nil {
			return nil, ctx.NewTypeError("Reduce of empty array with no initial value")
		}
	}
	for ; k != end; k += step {
		v, present, err := probe(ctx, o, k)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		acc, err = runtime.Call(ctx, fn, runtime.Undefined, []runtime.Value{acc, v, num(k), o})
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
