package array

import (
	"strings"

	"github.com/roach88/rewind/internal/runtime"
)

func protoIndexOf(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return num(-1), nil
	}
	target := runtime.Arg(args, 0)
	k, err := indexArg(ctx, args, 1, n, 0)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok {
		found := int64(-1)
		a.store.each(func(i uint32, v runtime.Value) bool {
			if int64(i) >= n {
				return false
			}
			if int64(i) >= k && runtime.StrictEquals(v, target) {
				found = int64(i)
				return false
			}
			return true
		})
		return num(found), nil
	}
	for ; k < n; k++ {
		if !hasAt(o, k) {
			continue
		}
		v, err := getAt(ctx, o, k)
		if err != nil {
			return nil, err
		}
		if runtime.StrictEquals(v, target) {
			return num(k), nil
		}
	}
	return num(-1), nil
}

func protoLastIndexOf(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return num(-1), nil
	}
	target := runtime.Arg(args, 0)
	k := n - 1
	if len(args) > 1 {
		rel, err := runtime.ToIntegerOrInfinity(ctx, args[1])
		if err != nil {
			return nil, err
		}
		if rel < 0 && float64(n)+rel < 0 {
			return num(-1), nil
		}
		k = min(relativeIndex(rel, n), n-1)
	}
	fast, _ := fastArray(o)
	for ; k >= 0; k-- {
		var v runtime.Value
		if fast != nil && fast.dense() {
			var present bool
			if v, present = fast.store.get(uint32(k)); !present {
				continue
			}
		} else {
			if !hasAt(o, k) {
				continue
			}
			if v, err = getAt(ctx, o, k); err != nil {
				return nil, err
			}
		}
		if runtime.StrictEquals(v, target) {
			return num(k), nil
		}
	}
	return num(-1), nil
}

// protoIncludes uses SameValueZero: NaN finds NaN and holes read as
// undefined, unlike indexOf.
func protoIncludes(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return runtime.Bool(false), nil
	}
	target := runtime.Arg(args, 0)
	k, err := indexArg(ctx, args, 1, n, 0)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok && (!runtime.IsUndefined(target) || a.noMissing) {
		found := false
		a.store.each(func(i uint32, v runtime.Value) bool {
			if int64(i) >= n {
				return false
			}
			found = int64(i) >= k && runtime.SameValueZero(v, target)
			return !found
		})
		return runtime.Bool(found), nil
	}
	for ; k < n; k++ {
		v, err := getAt(ctx, o, k)
		if err != nil {
			return nil, err
		}
		if runtime.SameValueZero(v, target) {
			return runtime.Bool(true), nil
		}
	}
	return runtime.Bool(false), nil
}

func protoJoin(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	sep := ","
	if s := runtime.Arg(args, 0); !runtime.IsUndefined(s) {
		if sep, err = runtime.ToString(ctx, s); err != nil {
			return nil, err
		}
	}
	s, err := join(ctx, o, sep)
	if err != nil {
		return nil, err
	}
	return runtime.String(s), nil
}

// join renders o's elements. A cyclic reference renders as the empty string.
func join(ctx *runtime.Context, o *runtime.Object, sep string) (string, error) {
	r := realmFor(ctx)
	if r.joining[o] {
		return "", nil
	}
	r.joining[o] = true
	defer delete(r.joining, o)

	n, err := lengthOf(ctx, o)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for k := int64(0); k < n; k++ {
		if k > 0 {
			b.WriteString(sep)
		}
		v, present, err := probe(ctx, o, k)
		if err != nil {
			return "", err
		}
		if !present || runtime.IsNullish(v) {
			continue
		}
		s, err := runtime.ToString(ctx, v)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func protoToString(ctx *runtime.Context, this runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	fn, err := o.Get(ctx, runtime.Key("join"))
	if err != nil {
		return nil, err
	}
	if runtime.IsCallable(fn) {
		return runtime.Call(ctx, fn, o, nil)
	}
	return runtime.String("[object " + o.Class() + "]"), nil
}
