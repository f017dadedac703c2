package array

import (
	"math"

	"github.com/roach88/rewind/internal/runtime"
)

// relativeIndex clamps a relative position into [0, length]. Negative
// values count from the end. Every index-taking built-in resolves its
// arguments through here.
func relativeIndex(rel float64, length int64) int64 {
	if rel < 0 {
		r := float64(length) + rel
		if r < 0 {
			return 0
		}
		return int64(r)
	}
	if rel > float64(length) {
		return length
	}
	return int64(rel)
}

// indexArg converts args[i] with ToIntegerOrInfinity and clamps it.
// Undefined yields def.
func indexArg(ctx *runtime.Context, args []runtime.Value, i int, length, def int64) (int64, error) {
	v := runtime.Arg(args, i)
	if runtime.IsUndefined(v) {
		return def, nil
	}
	rel, err := runtime.ToIntegerOrInfinity(ctx, v)
	if err != nil {
		return 0, err
	}
	return relativeIndex(rel, length), nil
}

// fastArray returns the Array behind o when the segmented fast paths are
// valid: dense storage and no indexed properties on the prototype chain
// that holes could fall through to.
func fastArray(o *runtime.Object) (*Array, bool) {
	a, ok := o.Exotic().(*Array)
	if !ok || !a.dense() {
		return nil, false
	}
	if runtime.ChainHasIndexedProperties(o.Prototype()) {
		return nil, false
	}
	return a, true
}

func lengthOf(ctx *runtime.Context, o *runtime.Object) (int64, error) {
	if a, ok := o.Exotic().(*Array); ok {
		return int64(a.length), nil
	}
	v, err := o.Get(ctx, lengthKey)
	if err != nil {
		return 0, err
	}
	return runtime.ToLength(ctx, v)
}

func setLengthProp(ctx *runtime.Context, o *runtime.Object, n int64) error {
	return o.Set(ctx, lengthKey, runtime.Number(float64(n)))
}

func getAt(ctx *runtime.Context, o *runtime.Object, i int64) (runtime.Value, error) {
	return o.Get(ctx, runtime.IndexKey64(i))
}

func setAt(ctx *runtime.Context, o *runtime.Object, i int64, v runtime.Value) error {
	return o.Set(ctx, runtime.IndexKey64(i), v)
}

func hasAt(o *runtime.Object, i int64) bool {
	return o.HasProperty(runtime.IndexKey64(i))
}

func deleteAt(ctx *runtime.Context, o *runtime.Object, i int64) error {
	return o.DeleteOrThrow(ctx, runtime.IndexKey64(i))
}

// createDataProperty defines a plain element on a freshly created result.
func createDataProperty(ctx *runtime.Context, o *runtime.Object, i int64, v runtime.Value) error {
	return o.DefineOwnProperty(ctx, runtime.IndexKey64(i), runtime.DataProperty(v))
}

func thisObject(ctx *runtime.Context, this runtime.Value) (*runtime.Object, error) {
	return runtime.ToObject(ctx, this)
}

func callbackArg(ctx *runtime.Context, args []runtime.Value, method string) (runtime.Value, error) {
	fn := runtime.Arg(args, 0)
	if !runtime.IsCallable(fn) {
		return nil, ctx.NewTypeError("Array.prototype.%s: argument is not a function", method)
	}
	return fn, nil
}

func num(n int64) runtime.Value { return runtime.Number(float64(n)) }

// arrayCreate makes a plain array of the given length.
func arrayCreate(ctx *runtime.Context, length int64) (*Array, error) {
	if length < 0 || length > runtime.MaxArrayLength {
		return nil, ctx.NewRangeError("Invalid array length")
	}
	return New(ctx, uint32(length))
}

// validLength reports whether f is an acceptable uint32 array length.
func validLength(f float64) bool {
	return f >= 0 && f <= runtime.MaxArrayLength && f == math.Trunc(f)
}
