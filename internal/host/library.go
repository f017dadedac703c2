package host

import (
	"math"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/runtime"
)

// library holds the functions a script can bind with "function <name>".
var library = map[string]binding{
	"sum":         {1, libSum},
	"max":         {1, libMax},
	"min":         {1, libMin},
	"range":       {1, libRange},
	"push":        {2, libPush},
	"sortNumbers": {1, libSortNumbers},
	"spliceInsert": {3, func(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return invokeMethod(ctx, runtime.Arg(args, 0), "splice", restArgs(args, 1))
	}},
	"concatAll": {2, func(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return invokeMethod(ctx, runtime.Arg(args, 0), "concat", restArgs(args, 1))
	}},
	"reverse": {1, func(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return invokeMethod(ctx, runtime.Arg(args, 0), "reverse", nil)
	}},
	"mapDouble":  {1, libMapDouble},
	"filterEven": {1, libFilterEven},
	"now":        {0, libNow},
	"random":     {0, libRandom},
	"hostName":   {0, libHostName},
	"callHost":   {1, libCallHost},
}

// externals holds the host functions a script can bind with
// "external <name>". Calls to them are recorded and not re-run on replay.
var externals = map[string]binding{
	"hostEcho": {1, func(_ *Builtin, _ *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return runtime.Arg(args, 0), nil
	}},
	"hostCounter": {0, func(h *Builtin, _ *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		h.counter++
		return runtime.Number(float64(h.counter)), nil
	}},
	"hostApply":  {2, extApply},
	"hostThrow":  {1, extThrow},
	"hostObject": {0, extObject},
}

func restArgs(args []runtime.Value, from int) []runtime.Value {
	if len(args) <= from {
		return nil
	}
	return args[from:]
}

func arrayArg(ctx *runtime.Context, args []runtime.Value, i int) (*array.Array, error) {
	a, ok := array.FromObject(runtime.Arg(args, i))
	if !ok {
		return nil, ctx.NewTypeError("argument %d is not an array", i)
	}
	return a, nil
}

func invokeMethod(ctx *runtime.Context, recv runtime.Value, name string, args []runtime.Value) (runtime.Value, error) {
	o, err := runtime.ToObject(ctx, recv)
	if err != nil {
		return nil, err
	}
	fn, err := o.Get(ctx, runtime.Key(name))
	if err != nil {
		return nil, err
	}
	return runtime.Call(ctx, fn, o, args)
}

func libSum(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	a, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range a.Values() {
		if runtime.IsMissing(v) {
			continue
		}
		f, err := runtime.ToNumber(ctx, v)
		if err != nil {
			return nil, err
		}
		total += f
	}
	return runtime.Number(total), nil
}

func libMax(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return extreme(ctx, args, true)
}

func libMin(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return extreme(ctx, args, false)
}

// extreme uses the native fast path when the array allows it and folds
// element by element otherwise. NaN wins; -0 orders below +0.
func extreme(ctx *runtime.Context, args []runtime.Value, wantMax bool) (runtime.Value, error) {
	a, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	if a.Length() == 0 {
		if wantMax {
			return runtime.Number(math.Inf(-1)), nil
		}
		return runtime.Number(math.Inf(1)), nil
	}
	if wantMax {
		if f, ok := a.Max(); ok {
			return runtime.Number(f), nil
		}
	} else if f, ok := a.Min(); ok {
		return runtime.Number(f), nil
	}
	best := math.Inf(1)
	if wantMax {
		best = math.Inf(-1)
	}
	for _, v := range a.Values() {
		f := math.NaN()
		if !runtime.IsMissing(v) {
			if f, err = runtime.ToNumber(ctx, v); err != nil {
				return nil, err
			}
		}
		if math.IsNaN(f) {
			return runtime.Number(f), nil
		}
		if wantMax && (f > best || (f == 0 && best == 0 && !math.Signbit(f))) {
			best = f
		}
		if !wantMax && (f < best || (f == 0 && best == 0 && math.Signbit(f))) {
			best = f
		}
	}
	return runtime.Number(best), nil
}

func libRange(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	n, err := runtime.ToIntegerOrInfinity(ctx, runtime.Arg(args, 0))
	if err != nil {
		return nil, err
	}
	if n < 0 || n > math.MaxInt32 {
		return nil, ctx.NewRangeError("Invalid range length")
	}
	a, err := array.New(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range int32(n) {
		if err := a.PushInt(i); err != nil {
			return nil, err
		}
	}
	return a.Object(), nil
}

func libPush(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	a, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	for _, v := range restArgs(args, 1) {
		if n, ok := v.(runtime.Number); ok {
			err = a.PushFloat(float64(n))
		} else {
			err = a.Push(v)
		}
		if err != nil {
			return nil, err
		}
	}
	return runtime.Number(float64(a.Length())), nil
}

func libSortNumbers(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	a, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	if err := a.SortNumeric(); err != nil {
		return nil, err
	}
	return a.Object(), nil
}

func libMapDouble(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	double := runtime.NewFunction(ctx, "double", 1, func(ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		f, err := runtime.ToNumber(ctx, runtime.Arg(args, 0))
		if err != nil {
			return nil, err
		}
		return runtime.Number(f * 2), nil
	})
	return invokeMethod(ctx, runtime.Arg(args, 0), "map", []runtime.Value{double})
}

func libFilterEven(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	even := runtime.NewFunction(ctx, "even", 1, func(ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		f, err := runtime.ToNumber(ctx, runtime.Arg(args, 0))
		if err != nil {
			return nil, err
		}
		return runtime.Bool(math.Mod(f, 2) == 0), nil
	})
	return invokeMethod(ctx, runtime.Arg(args, 0), "filter", []runtime.Value{even})
}

func libNow(h *Builtin, ctx *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	f, err := ctx.Double(h.Now)
	if err != nil {
		return nil, err
	}
	return runtime.Number(f), nil
}

func libRandom(h *Builtin, ctx *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	f, err := ctx.Random(h.Seed)
	if err != nil {
		return nil, err
	}
	return runtime.Number(f), nil
}

func libHostName(h *Builtin, ctx *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	s, err := ctx.HostString(h.Name)
	if err != nil {
		return nil, err
	}
	return runtime.String(s), nil
}

// libCallHost calls the external function bound to a global name.
func libCallHost(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	name, err := runtime.ToString(ctx, runtime.Arg(args, 0))
	if err != nil {
		return nil, err
	}
	fn, err := ctx.Global.Get(ctx, runtime.Key(name))
	if err != nil {
		return nil, err
	}
	if o, ok := runtime.AsObject(fn); !ok || !o.IsExternal() {
		return nil, ctx.NewTypeError("%s is not a host function", name)
	}
	return runtime.Call(ctx, fn, runtime.Undefined, restArgs(args, 1))
}

func extApply(h *Builtin, _ *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return h.API.CallFunction(runtime.Arg(args, 0), runtime.Undefined, restArgs(args, 1))
}

// extThrow throws its argument as a string. Host-thrown values stay
// primitive so a replay can rethrow them without the host.
func extThrow(_ *Builtin, ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	msg, err := runtime.ToString(ctx, runtime.Arg(args, 0))
	if err != nil {
		return nil, err
	}
	return nil, runtime.Throw(runtime.String(msg))
}

func extObject(h *Builtin, _ *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	o, err := h.API.AllocateExternalObject()
	if err != nil {
		return nil, err
	}
	h.counter++
	if err := h.API.SetProperty(o, "serial", runtime.Number(float64(h.counter))); err != nil {
		return nil, err
	}
	return o, nil
}
