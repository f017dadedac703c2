package array

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/runtime"
)

func newTestContext(t *testing.T, cfg Config) *runtime.Context {
	t.Helper()
	ctx := runtime.NewContext(1)
	Install(ctx, cfg)
	return ctx
}

func nums(fs ...float64) []runtime.Value {
	out := make([]runtime.Value, len(fs))
	for i, f := range fs {
		out[i] = runtime.Number(f)
	}
	return out
}

func fromNums(t *testing.T, ctx *runtime.Context, fs ...float64) *Array {
	t.Helper()
	a, err := FromValues(ctx, nums(fs...)...)
	require.NoError(t, err)
	return a
}

func invoke(ctx *runtime.Context, recv *runtime.Object, name string, args ...runtime.Value) (runtime.Value, error) {
	fn, err := recv.Get(ctx, runtime.Key(name))
	if err != nil {
		return nil, err
	}
	return runtime.Call(ctx, fn, recv, args)
}

func mustInvoke(t *testing.T, ctx *runtime.Context, recv *runtime.Object, name string, args ...runtime.Value) runtime.Value {
	t.Helper()
	v, err := invoke(ctx, recv, name, args...)
	require.NoError(t, err, name)
	return v
}

func mustArray(t *testing.T, v runtime.Value) *Array {
	t.Helper()
	a, ok := FromObject(v)
	require.True(t, ok, "expected an array, got %T", v)
	return a
}

func fn(ctx *runtime.Context, body func(args []runtime.Value) (runtime.Value, error)) *runtime.Object {
	return runtime.NewFunction(ctx, "callback", 1, func(_ *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return body(args)
	})
}

var hole = runtime.Missing

func TestConstructor_InvalidLength(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	for _, n := range []float64{-1, 1.5, 4294967296, math.NaN()} {
		_, err := runtime.Construct(ctx, ctx.ArrayConstructor, nums(n), nil)
		require.Error(t, err, "new Array(%v)", n)
		ex, ok := runtime.AsException(err)
		require.True(t, ok)
		assert.Equal(t, "RangeError", runtime.ErrorName(ex.Value))
	}

	v, err := runtime.Construct(ctx, ctx.ArrayConstructor, nums(3), nil)
	require.NoError(t, err)
	a := mustArray(t, v)
	assert.Equal(t, uint32(3), a.Length())
	assert.Equal(t, []runtime.Value{hole, hole, hole}, a.Values())

	v, err = runtime.Construct(ctx, ctx.ArrayConstructor, nums(1, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, nums(1, 2), mustArray(t, v).Values())

	v, err = runtime.Call(ctx, ctx.ArrayConstructor, runtime.Undefined, []runtime.Value{runtime.String("x")})
	require.NoError(t, err)
	assert.Equal(t, []runtime.Value{runtime.String("x")}, mustArray(t, v).Values())
}

func TestArray_IsArrayAndOf(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1)

	isArray, err := invoke(ctx, ctx.ArrayConstructor, "isArray", a.Object())
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(true), isArray)
	isArray, err = invoke(ctx, ctx.ArrayConstructor, "isArray", ctx.NewObject())
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(false), isArray)

	of := mustInvoke(t, ctx, ctx.ArrayConstructor, "of", nums(7, 8, 9)...)
	assert.Equal(t, nums(7, 8, 9), mustArray(t, of).Values())
}

func TestKind_WidensOnPush(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a, err := New(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, a.PushInt(1))
	assert.Equal(t, KindInt, a.Kind())

	require.NoError(t, a.PushFloat(2.5))
	assert.Equal(t, KindFloat, a.Kind())

	require.NoError(t, a.PushInt(3))
	assert.Equal(t, KindFloat, a.Kind(), "widening never narrows back")

	require.NoError(t, a.Push(runtime.String("four")))
	assert.Equal(t, KindVar, a.Kind())

	assert.Equal(t, []runtime.Value{runtime.Number(1), runtime.Number(2.5), runtime.Number(3), runtime.String("four")}, a.Values())
	require.NoError(t, a.Validate())
}

func TestKind_ConversionPreservesHoles(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3)
	require.NoError(t, a.Delete(1))

	require.NoError(t, a.Set(0, runtime.Number(0.5)))
	assert.Equal(t, KindFloat, a.Kind())
	assert.Equal(t, []runtime.Value{runtime.Number(0.5), hole, runtime.Number(3)}, a.Values())

	require.NoError(t, a.Set(2, runtime.Null))
	assert.Equal(t, KindVar, a.Kind())
	assert.Equal(t, []runtime.Value{runtime.Number(0.5), hole, runtime.Null}, a.Values())
	assert.False(t, a.Has(1))
}

func TestKind_NegativeZeroIsFloat(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, math.Copysign(0, -1))
	assert.Equal(t, KindFloat, a.Kind())
	v, err := a.Get(1)
	require.NoError(t, err)
	assert.True(t, math.Signbit(float64(v.(runtime.Number))))
}

func TestPushPop_ThousandCycles(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a, err := New(ctx, 0)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.NoError(t, a.PushInt(int32(i)))
	}
	assert.Equal(t, uint32(1000), a.Length())
	assert.Equal(t, 1, a.Segments())
	assert.True(t, a.HasNoMissingValues())
	require.NoError(t, a.Validate())

	for i := 999; i >= 0; i-- {
		v, err := a.Pop()
		require.NoError(t, err)
		require.Equal(t, runtime.Number(float64(i)), v)
	}
	assert.Equal(t, uint32(0), a.Length())
	v, err := a.Pop()
	require.NoError(t, err)
	assert.Equal(t, runtime.Undefined, v)
	require.NoError(t, a.Validate())
}

func TestSegmentInvariant_MixedOperations(t *testing.T) {
	forced := DefaultConfig()
	forced.ForceBTree = true
	for name, cfg := range map[string]Config{"default": DefaultConfig(), "btree": forced} {
		t.Run(name, func(t *testing.T) {
			for seed := int64(1); seed <= 20; seed++ {
				runMixedOperations(t, cfg, seed)
			}
		})
	}
}

// runMixedOperations drives one array through random mutations and checks
// it against a slice model after every step. Holes are runtime.Missing.
func runMixedOperations(t *testing.T, cfg Config, seed int64) {
	t.Helper()
	ctx := newTestContext(t, cfg)
	a, err := New(ctx, 0)
	require.NoError(t, err)
	var model []runtime.Value
	rng := rand.New(rand.NewSource(seed))
	orUndefined := func(v runtime.Value) runtime.Value {
		if v == runtime.Missing {
			return runtime.Undefined
		}
		return v
	}

	for step := 0; step < 400; step++ {
		op := rng.Intn(10)
		switch op {
		case 0, 1:
			i := rng.Intn(600)
			v := runtime.Value(runtime.Number(float64(rng.Intn(100))))
			if op == 1 {
				v = runtime.Number(rng.Float64())
			}
			require.NoError(t, a.Set(uint32(i), v))
			for len(model) <= i {
				model = append(model, runtime.Missing)
			}
			model[i] = v
		case 2:
			if len(model) > 0 {
				i := rng.Intn(len(model))
				require.NoError(t, a.Delete(uint32(i)))
				model[i] = runtime.Missing
			}
		case 3:
			require.NoError(t, a.PushInt(int32(step)))
			model = append(model, runtime.Number(float64(step)))
		case 4:
			v, err := a.Pop()
			require.NoError(t, err)
			if len(model) == 0 {
				assert.Equal(t, runtime.Undefined, v)
				break
			}
			assert.Equal(t, orUndefined(model[len(model)-1]), v, "seed %d step %d pop", seed, step)
			model = model[:len(model)-1]
		case 5:
			v := mustInvoke(t, ctx, a.Object(), "shift")
			if len(model) == 0 {
				assert.Equal(t, runtime.Undefined, v)
				break
			}
			assert.Equal(t, orUndefined(model[0]), v, "seed %d step %d shift", seed, step)
			model = model[1:]
		case 6:
			items := nums(float64(step), -1)[:1+rng.Intn(2)]
			mustInvoke(t, ctx, a.Object(), "unshift", items...)
			model = append(append([]runtime.Value{}, items...), model...)
		case 7:
			mustInvoke(t, ctx, a.Object(), "reverse")
			for l, r := 0, len(model)-1; l < r; l, r = l+1, r-1 {
				model[l], model[r] = model[r], model[l]
			}
		case 8:
			n := rng.Intn(len(model) + 3)
			require.NoError(t, a.SetLength(uint32(n)))
			for len(model) < n {
				model = append(model, runtime.Missing)
			}
			model = model[:n]
		case 9:
			n := len(model)
			start := rng.Intn(n + 1)
			dc := rng.Intn(n - start + 1)
			mustInvoke(t, ctx, a.Object(), "splice", nums(float64(start), float64(dc), 1, 2)...)
			next := append([]runtime.Value{}, model[:start]...)
			next = append(next, nums(1, 2)...)
			model = append(next, model[start+dc:]...)
		}
		require.NoError(t, a.Validate(), "seed %d step %d op %d", seed, step, op)
		require.Equal(t, uint32(len(model)), a.Length(), "seed %d step %d op %d", seed, step, op)
		require.Equal(t, model, a.Values(), "seed %d step %d op %d", seed, step, op)
	}
}

func TestShift_AfterReverseWithTrailingHole(t *testing.T) {
	forced := DefaultConfig()
	forced.ForceBTree = true
	for name, cfg := range map[string]Config{"default": DefaultConfig(), "btree": forced} {
		t.Run(name, func(t *testing.T) {
			ctx := newTestContext(t, cfg)
			a := fromNums(t, ctx, 1, 2, 3)
			require.NoError(t, a.SetLength(4))
			mustInvoke(t, ctx, a.Object(), "reverse")

			v := mustInvoke(t, ctx, a.Object(), "shift")
			assert.Equal(t, runtime.Undefined, v)
			require.NoError(t, a.Validate())
			assert.Equal(t, nums(3, 2, 1), a.Values())

			require.NoError(t, a.Set(6, runtime.Number(7)))
			require.NoError(t, a.Validate())
			assert.Equal(t, []runtime.Value{runtime.Number(3), runtime.Number(2), runtime.Number(1), runtime.Missing, runtime.Missing, runtime.Missing, runtime.Number(7)}, a.Values())
		})
	}
}

func TestSplice_RandomizedAgainstModel(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	require.NoError(t, a.Set(30, runtime.Number(30)))
	model := a.Values()
	require.Len(t, model, 31)

	rng := rand.New(rand.NewSource(3))
	randomItem := func() runtime.Value {
		switch rng.Intn(3) {
		case 0:
			return runtime.Number(float64(rng.Intn(100)))
		case 1:
			return runtime.Number(float64(rng.Intn(100)) + 0.5)
		default:
			return runtime.String("s")
		}
	}

	for round := 0; round < 300; round++ {
		n := len(model)
		start := rng.Intn(n + 1)
		dc := rng.Intn(n - start + 1)
		items := make([]runtime.Value, rng.Intn(5))
		for i := range items {
			items[i] = randomItem()
		}
		args := append(nums(float64(start), float64(dc)), items...)
		removed, err := invoke(ctx, a.Object(), "splice", args...)
		require.NoError(t, err)

		want := append([]runtime.Value{}, model[start:start+dc]...)
		assert.Equal(t, want, mustArray(t, removed).Values(), "round %d removed", round)

		next := append([]runtime.Value{}, model[:start]...)
		next = append(next, items...)
		model = append(next, model[start+dc:]...)

		require.Equal(t, uint32(len(model)), a.Length(), "round %d", round)
		require.Equal(t, model, a.Values(), "round %d", round)
		require.NoError(t, a.Validate(), "round %d", round)
	}
}

func TestSplice_ClampsArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []runtime.Value
		removed []runtime.Value
		rest    []runtime.Value
	}{
		{"no args", nil, []runtime.Value{}, nums(1, 2, 3, 4)},
		{"start only", nums(2), nums(3, 4), nums(1, 2)},
		{"negative start", nums(-1, 1), nums(4), nums(1, 2, 3)},
		{"start past end", nums(10, 1, 9), []runtime.Value{}, nums(1, 2, 3, 4, 9)},
		{"negative count", nums(1, -5, 8), []runtime.Value{}, nums(1, 8, 2, 3, 4)},
		{"replace", nums(1, 2, 7, 7, 7), nums(2, 3), nums(1, 7, 7, 7, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, DefaultConfig())
			a := fromNums(t, ctx, 1, 2, 3, 4)
			removed := mustInvoke(t, ctx, a.Object(), "splice", tt.args...)
			assert.Equal(t, tt.removed, mustArray(t, removed).Values())
			assert.Equal(t, tt.rest, a.Values())
		})
	}
}

func TestSplice_OverflowDegradesToNamedProperties(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a, err := New(ctx, runtime.MaxArrayLength)
	require.NoError(t, err)

	_, err = invoke(ctx, a.Object(), "push", runtime.Number(1))
	require.Error(t, err)
	ex, ok := runtime.AsException(err)
	require.True(t, ok)
	assert.Equal(t, "RangeError", runtime.ErrorName(ex.Value))
	assert.True(t, a.Object().HasOwnProperty(runtime.Key("4294967295")), "overflow element is a named property")
	assert.Equal(t, uint32(runtime.MaxArrayLength), a.Length())
}

func TestIndexOfVersusIncludes(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, math.NaN(), math.Copysign(0, -1), 5)

	tests := []struct {
		method string
		arg    float64
		want   runtime.Value
	}{
		{"indexOf", math.NaN(), runtime.Number(-1)},
		{"includes", math.NaN(), runtime.Bool(true)},
		{"indexOf", 0, runtime.Number(1)},
		{"includes", 0, runtime.Bool(true)},
		{"lastIndexOf", math.NaN(), runtime.Number(-1)},
		{"indexOf", 5, runtime.Number(2)},
	}
	for _, tt := range tests {
		got := mustInvoke(t, ctx, a.Object(), tt.method, runtime.Number(tt.arg))
		assert.Equal(t, tt.want, got, "%s(%v)", tt.method, tt.arg)
	}

	holey, err := New(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(true), mustInvoke(t, ctx, holey.Object(), "includes", runtime.Undefined), "holes read as undefined")
	assert.Equal(t, runtime.Number(-1), mustInvoke(t, ctx, holey.Object(), "indexOf", runtime.Undefined), "indexOf skips holes")
}

func TestIndexOf_FromIndex(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 1, 2)

	assert.Equal(t, runtime.Number(2), mustInvoke(t, ctx, a.Object(), "indexOf", nums(1, 1)...))
	assert.Equal(t, runtime.Number(2), mustInvoke(t, ctx, a.Object(), "indexOf", nums(1, -2)...))
	assert.Equal(t, runtime.Number(-1), mustInvoke(t, ctx, a.Object(), "indexOf", nums(1, 10)...))
	assert.Equal(t, runtime.Number(0), mustInvoke(t, ctx, a.Object(), "lastIndexOf", nums(1, 1)...))
	assert.Equal(t, runtime.Number(-1), mustInvoke(t, ctx, a.Object(), "lastIndexOf", nums(1, -10)...))
	assert.Equal(t, runtime.Number(3), mustInvoke(t, ctx, a.Object(), "lastIndexOf", nums(2, 99)...))
}

func TestSlice_Scenarios(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3, 4, 5)

	tests := []struct {
		args []runtime.Value
		want []runtime.Value
	}{
		{nil, nums(1, 2, 3, 4, 5)},
		{nums(-2), nums(4, 5)},
		{nums(1, -1), nums(2, 3, 4)},
		{nums(3, 1), []runtime.Value{}},
		{nums(-100, 2), nums(1, 2)},
	}
	for _, tt := range tests {
		got := mustArray(t, mustInvoke(t, ctx, a.Object(), "slice", tt.args...))
		assert.Equal(t, tt.want, got.Values(), "slice%v", tt.args)
		require.NoError(t, got.Validate())
	}
	assert.Equal(t, nums(1, 2, 3, 4, 5), a.Values(), "slice does not mutate")
}

func TestSlice_HolesFallThroughPrototype(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 0, 1, 2)
	require.NoError(t, a.Delete(1))

	fast := mustArray(t, mustInvoke(t, ctx, a.Object(), "slice"))
	assert.Equal(t, []runtime.Value{runtime.Number(0), hole, runtime.Number(2)}, fast.Values())

	require.NoError(t, ctx.ArrayPrototype.DefineOwnProperty(ctx, runtime.IndexKey(1), runtime.DataProperty(runtime.String("proto"))))
	slow := mustArray(t, mustInvoke(t, ctx, a.Object(), "slice"))
	assert.Equal(t, []runtime.Value{runtime.Number(0), runtime.String("proto"), runtime.Number(2)}, slow.Values())
}

func TestSort_ThrowingComparatorLeavesArrayIntact(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 3, 1, 2)
	calls := 0
	cmp := fn(ctx, func([]runtime.Value) (runtime.Value, error) {
		calls++
		if calls == 2 {
			return nil, ctx.NewTypeError("boom")
		}
		return runtime.Number(-1), nil
	})

	_, err := invoke(ctx, a.Object(), "sort", cmp)
	require.Error(t, err)
	assert.Equal(t, nums(3, 1, 2), a.Values())
}

func TestSort_UndefinedThenHolesLast(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a, err := FromValues(ctx, runtime.Number(3), runtime.Undefined, runtime.Number(10), runtime.Number(1))
	require.NoError(t, err)
	require.NoError(t, a.SetLength(6))
	require.NoError(t, a.Set(5, runtime.Number(2)))

	mustInvoke(t, ctx, a.Object(), "sort")
	// Default order compares strings: "1" < "10" < "2" < "3".
	assert.Equal(t, []runtime.Value{
		runtime.Number(1), runtime.Number(10), runtime.Number(2), runtime.Number(3), runtime.Undefined, hole,
	}, a.Values())
	require.NoError(t, a.Validate())
}

func TestSort_LargeInputIsStable(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	rng := rand.New(rand.NewSource(11))
	vals := make([]float64, 200)
	for i := range vals {
		vals[i] = float64(rng.Intn(10)*1000 + i)
	}
	a := fromNums(t, ctx, vals...)

	byThousands := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		x := math.Floor(float64(args[0].(runtime.Number)) / 1000)
		y := math.Floor(float64(args[1].(runtime.Number)) / 1000)
		return runtime.Number(x - y), nil
	})
	mustInvoke(t, ctx, a.Object(), "sort", byThousands)

	got := a.Values()
	for i := 1; i < len(got); i++ {
		prev, cur := float64(got[i-1].(runtime.Number)), float64(got[i].(runtime.Number))
		pb, cb := math.Floor(prev/1000), math.Floor(cur/1000)
		require.LessOrEqual(t, pb, cb, "bucket order at %d", i)
		if pb == cb {
			require.Less(t, math.Mod(prev, 1000), math.Mod(cur, 1000), "stability at %d", i)
		}
	}
}

func TestSortNumeric(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 10, 9, 1, 100, -3)
	require.NoError(t, a.SortNumeric())
	assert.Equal(t, nums(-3, 1, 9, 10, 100), a.Values())
}

func TestSetLength_Consistency(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3, 4, 5)
	require.NoError(t, a.Set(100, runtime.Number(7)))

	require.NoError(t, a.SetLength(2))
	assert.Equal(t, nums(1, 2), a.Values())
	require.NoError(t, a.Validate())

	require.NoError(t, a.SetLength(4))
	assert.Equal(t, []runtime.Value{runtime.Number(1), runtime.Number(2), hole, hole}, a.Values())
	assert.False(t, a.HasNoMissingValues())
	require.NoError(t, a.Validate())

	err := a.Object().Set(ctx, runtime.Key("length"), runtime.Number(1.5))
	require.Error(t, err)
	ex, ok := runtime.AsException(err)
	require.True(t, ok)
	assert.Equal(t, "RangeError", runtime.ErrorName(ex.Value))
	assert.Equal(t, uint32(4), a.Length())

	require.NoError(t, a.Object().Set(ctx, runtime.Key("length"), runtime.Number(1)))
	assert.Equal(t, nums(1), a.Values())
}

func TestSetLength_ReadOnly(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2)
	require.NoError(t, a.Object().DefineOwnProperty(ctx, runtime.Key("length"), runtime.Property{Value: runtime.Number(2)}))

	_, err := invoke(ctx, a.Object(), "push", runtime.Number(3))
	require.Error(t, err)
	assert.Equal(t, uint32(2), a.Length())
	assert.Equal(t, nums(1, 2), a.Values())
}

func TestSpecies_SubclassResults(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	subProto := runtime.NewObject(ctx.ArrayPrototype)
	sub := runtime.NewConstructor(ctx, "Sub", 0, func(ctx *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		return nil, ctx.NewTypeError("Class constructor Sub cannot be invoked without 'new'")
	}, constructArray)
	require.NoError(t, sub.DefineOwnProperty(ctx, runtime.Key("prototype"), runtime.Property{Value: subProto}))
	require.NoError(t, sub.DefineOwnProperty(ctx, runtime.SymbolKey(runtime.SymbolSpecies), runtime.DataProperty(sub)))
	require.NoError(t, subProto.DefineOwnProperty(ctx, runtime.Key("constructor"), runtime.DataProperty(sub)))

	v, err := runtime.Construct(ctx, sub, nums(1, 2, 3), nil)
	require.NoError(t, err)
	a := mustArray(t, v)
	assert.Same(t, subProto, a.Object().Prototype())

	identity := fn(ctx, func(args []runtime.Value) (runtime.Value, error) { return args[0], nil })
	results := map[string]runtime.Value{
		"map":    mustInvoke(t, ctx, a.Object(), "map", identity),
		"filter": mustInvoke(t, ctx, a.Object(), "filter", identity),
		"slice":  mustInvoke(t, ctx, a.Object(), "slice", runtime.Number(1)),
		"splice": mustInvoke(t, ctx, a.Object(), "splice", runtime.Number(0), runtime.Number(1)),
		"concat": mustInvoke(t, ctx, a.Object(), "concat", runtime.Number(9)),
	}
	for name, r := range results {
		ra := mustArray(t, r)
		assert.Same(t, subProto, ra.Object().Prototype(), name)
	}
	assert.Equal(t, nums(1, 2, 3), mustArray(t, results["map"]).Values())
	assert.Equal(t, nums(2, 3), mustArray(t, results["slice"]).Values())
	assert.Equal(t, nums(1), mustArray(t, results["splice"]).Values())
	assert.Equal(t, nums(2, 3, 9), mustArray(t, results["concat"]).Values())
}

func TestSpecies_NullFallsBackToArray(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2)
	ctor := runtime.NewObject(ctx.ObjectPrototype)
	require.NoError(t, ctor.DefineOwnProperty(ctx, runtime.SymbolKey(runtime.SymbolSpecies), runtime.DataProperty(runtime.Null)))
	require.NoError(t, a.Object().DefineOwnProperty(ctx, runtime.Key("constructor"), runtime.DataProperty(ctor)))

	r := mustArray(t, mustInvoke(t, ctx, a.Object(), "slice"))
	assert.Same(t, ctx.ArrayPrototype, r.Object().Prototype())

	require.NoError(t, ctor.DefineOwnProperty(ctx, runtime.SymbolKey(runtime.SymbolSpecies), runtime.DataProperty(runtime.Number(1))))
	_, err := invoke(ctx, a.Object(), "slice")
	require.Error(t, err, "non-constructor species throws")
}

func TestIteration_CallbackConvertsToPropertyBag(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3)

	var seen []runtime.Value
	cb := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		seen = append(seen, args[0])
		if len(seen) == 1 {
			err := a.Object().DefineOwnProperty(ctx, runtime.IndexKey(2), runtime.Property{Value: runtime.Number(30), Enumerable: true, Configurable: true})
			return runtime.Undefined, err
		}
		return runtime.Undefined, nil
	})
	mustInvoke(t, ctx, a.Object(), "forEach", cb)

	assert.True(t, a.IsBag())
	assert.Equal(t, nums(1, 2, 30), seen)
	assert.Equal(t, uint32(3), a.Length())
	assert.Equal(t, nums(1, 2, 30), a.Values())
}

func TestIteration_CallbackShrinksArray(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3, 4)

	var seen []runtime.Value
	cb := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		seen = append(seen, args[0])
		return runtime.Undefined, a.SetLength(2)
	})
	mustInvoke(t, ctx, a.Object(), "forEach", cb)
	assert.Equal(t, nums(1, 2), seen, "indices removed mid-iteration are skipped")
}

func TestIteration_Methods(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3, 4)
	require.NoError(t, a.SetLength(6))
	require.NoError(t, a.Set(5, runtime.Number(6)))

	isEven := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.Bool(math.Mod(float64(args[0].(runtime.Number)), 2) == 0), nil
	})
	double := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.Number(2 * float64(args[0].(runtime.Number))), nil
	})
	sum := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.Number(float64(args[0].(runtime.Number)) + float64(args[1].(runtime.Number))), nil
	})
	concatStr := fn(ctx, func(args []runtime.Value) (runtime.Value, error) {
		l, _ := runtime.ToString(ctx, args[0])
		r, _ := runtime.ToString(ctx, args[1])
		return runtime.String(l + r), nil
	})

	mapped := mustArray(t, mustInvoke(t, ctx, a.Object(), "map", double))
	assert.Equal(t, []runtime.Value{runtime.Number(2), runtime.Number(4), runtime.Number(6), runtime.Number(8), hole, runtime.Number(12)}, mapped.Values())

	assert.Equal(t, nums(2, 4, 6), mustArray(t, mustInvoke(t, ctx, a.Object(), "filter", isEven)).Values())
	assert.Equal(t, runtime.Number(16), mustInvoke(t, ctx, a.Object(), "reduce", sum))
	assert.Equal(t, runtime.Number(26), mustInvoke(t, ctx, a.Object(), "reduce", sum, runtime.Number(10)))
	assert.Equal(t, runtime.String("64321"), mustInvoke(t, ctx, a.Object(), "reduceRight", concatStr, runtime.String("")))
	assert.Equal(t, runtime.Bool(false), mustInvoke(t, ctx, a.Object(), "every", isEven))
	assert.Equal(t, runtime.Bool(true), mustInvoke(t, ctx, a.Object(), "some", isEven))
	assert.Equal(t, runtime.Number(2), mustInvoke(t, ctx, a.Object(), "find", isEven))
	assert.Equal(t, runtime.Number(1), mustInvoke(t, ctx, a.Object(), "findIndex", isEven))

	empty, err := New(ctx, 0)
	require.NoError(t, err)
	_, err = invoke(ctx, empty.Object(), "reduce", sum)
	require.Error(t, err)
	_, err = invoke(ctx, a.Object(), "map", runtime.Number(1))
	require.Error(t, err, "non-callable callback")
}

func TestShiftUnshift(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3)
	require.NoError(t, a.Set(20, runtime.Number(21)))

	first := mustInvoke(t, ctx, a.Object(), "shift")
	assert.Equal(t, runtime.Number(1), first)
	assert.Equal(t, uint32(20), a.Length())
	v, err := a.Get(19)
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(21), v, "later segments shift left")

	n := mustInvoke(t, ctx, a.Object(), "unshift", nums(7, 8)...)
	assert.Equal(t, runtime.Number(22), n)
	got := a.Values()
	assert.Equal(t, nums(7, 8, 2, 3), got[:4])
	assert.Equal(t, runtime.Number(21), got[21])
	require.NoError(t, a.Validate())
}

func TestGenericArrayLike(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	o := ctx.NewObject()
	require.NoError(t, o.Set(ctx, runtime.Key("length"), runtime.Number(2)))
	require.NoError(t, o.Set(ctx, runtime.Key("0"), runtime.String("a")))
	require.NoError(t, o.Set(ctx, runtime.Key("1"), runtime.String("b")))

	push, err := ctx.ArrayPrototype.Get(ctx, runtime.Key("push"))
	require.NoError(t, err)
	n, err := runtime.Call(ctx, push, o, []runtime.Value{runtime.String("c")})
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(3), n)

	join, err := ctx.ArrayPrototype.Get(ctx, runtime.Key("join"))
	require.NoError(t, err)
	s, err := runtime.Call(ctx, join, o, []runtime.Value{runtime.String("-")})
	require.NoError(t, err)
	assert.Equal(t, runtime.String("a-b-c"), s)

	reverse, err := ctx.ArrayPrototype.Get(ctx, runtime.Key("reverse"))
	require.NoError(t, err)
	_, err = runtime.Call(ctx, reverse, o, nil)
	require.NoError(t, err)
	s, err = runtime.Call(ctx, join, o, nil)
	require.NoError(t, err)
	assert.Equal(t, runtime.String("c,b,a"), s)
}

func TestConcat(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2)
	b := fromNums(t, ctx, 2.5)
	require.NoError(t, b.SetLength(2))

	spreadable := ctx.NewObject()
	require.NoError(t, spreadable.Set(ctx, runtime.Key("length"), runtime.Number(1)))
	require.NoError(t, spreadable.Set(ctx, runtime.Key("0"), runtime.String("x")))
	require.NoError(t, spreadable.Set(ctx, runtime.SymbolKey(runtime.SymbolIsConcatSpreadable), runtime.Bool(true)))

	r := mustArray(t, mustInvoke(t, ctx, a.Object(), "concat", b.Object(), runtime.Number(9), spreadable))
	assert.Equal(t, []runtime.Value{
		runtime.Number(1), runtime.Number(2), runtime.Number(2.5), hole, runtime.Number(9), runtime.String("x"),
	}, r.Values())
	require.NoError(t, r.Validate())
}

func TestFillCopyWithinReverse(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2, 3, 4, 5)

	mustInvoke(t, ctx, a.Object(), "fill", nums(0, 1, -1)...)
	assert.Equal(t, nums(1, 0, 0, 0, 5), a.Values())

	b := fromNums(t, ctx, 1, 2, 3, 4, 5)
	mustInvoke(t, ctx, b.Object(), "copyWithin", nums(0, 3)...)
	assert.Equal(t, nums(4, 5, 3, 4, 5), b.Values())

	c := fromNums(t, ctx, 1, 2, 3, 4, 5)
	mustInvoke(t, ctx, c.Object(), "copyWithin", nums(1, 0, 3)...)
	assert.Equal(t, nums(1, 1, 2, 3, 5), c.Values(), "overlapping copy behaves like memmove")

	d := fromNums(t, ctx, 1, 2, 3)
	require.NoError(t, d.Delete(0))
	mustInvoke(t, ctx, d.Object(), "reverse")
	assert.Equal(t, []runtime.Value{runtime.Number(3), runtime.Number(2), hole}, d.Values())
	require.NoError(t, d.Validate())
}

func TestJoin_Cycle(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1)
	require.NoError(t, a.Push(a.Object(), runtime.Null, runtime.Number(2)))

	s := mustInvoke(t, ctx, a.Object(), "join")
	assert.Equal(t, runtime.String("1,,,2"), s)
	assert.Equal(t, runtime.String("1,,,2"), mustInvoke(t, ctx, a.Object(), "toString"))
}

func TestMinMax(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	negZero := math.Copysign(0, -1)

	f := fromNums(t, ctx, 0, negZero, -1, 3.5)
	maxV, ok := f.Max()
	require.True(t, ok)
	assert.Equal(t, 3.5, maxV)
	minV, ok := f.Min()
	require.True(t, ok)
	assert.Equal(t, -1.0, minV)

	z := fromNums(t, ctx, negZero, 0)
	maxV, _ = z.Max()
	assert.False(t, math.Signbit(maxV), "+0 beats -0 for max")
	minV, _ = z.Min()
	assert.True(t, math.Signbit(minV), "-0 beats +0 for min")

	n := fromNums(t, ctx, 1, math.NaN(), 2)
	maxV, ok = n.Max()
	require.True(t, ok)
	assert.True(t, math.IsNaN(maxV))

	i := fromNums(t, ctx, 4, -2, 9)
	maxV, _ = i.Max()
	minV, _ = i.Min()
	assert.Equal(t, 9.0, maxV)
	assert.Equal(t, -2.0, minV)

	holey, err := New(ctx, 2)
	require.NoError(t, err)
	_, ok = holey.Max()
	assert.False(t, ok, "holes disable the fast path")
}

func TestBTree_UsedPastThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BTreeThreshold = 4
	ctx := newTestContext(t, cfg)
	a, err := New(ctx, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Set(uint32(i*1000), runtime.Number(float64(i))))
	}
	v, err := a.Get(5000)
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(5), v)
	assert.True(t, a.Indexed())
	require.NoError(t, a.Validate())

	disabled := cfg
	disabled.DisableBTree = true
	ctx2 := newTestContext(t, disabled)
	b, err := New(ctx2, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Set(uint32(i*1000), runtime.Number(float64(i))))
	}
	_, err = b.Get(5000)
	require.NoError(t, err)
	assert.False(t, b.Indexed())
}

func TestAllocationFailure_ThrowsAndKeepsLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxElements = 4
	ctx := newTestContext(t, cfg)
	a, err := New(ctx, 0)
	require.NoError(t, err)
	for i := int32(0); i < 4; i++ {
		require.NoError(t, a.PushInt(i))
	}

	err = a.PushInt(4)
	require.Error(t, err)
	ex, ok := runtime.AsException(err)
	require.True(t, ok)
	assert.Equal(t, "RangeError", runtime.ErrorName(ex.Value))
	assert.Equal(t, uint32(4), a.Length())
	require.NoError(t, a.Validate())
}

func TestNonExtensibleArray(t *testing.T) {
	ctx := newTestContext(t, DefaultConfig())
	a := fromNums(t, ctx, 1, 2)
	a.Object().PreventExtensions()

	require.NoError(t, a.Set(0, runtime.Number(5)), "existing elements stay writable")
	require.Error(t, a.Set(2, runtime.Number(3)))
	assert.Equal(t, nums(5, 2), a.Values())
}

func TestRelativeIndex(t *testing.T) {
	tests := []struct {
		rel    float64
		length int64
		want   int64
	}{
		{0, 5, 0},
		{3, 5, 3},
		{9, 5, 5},
		{-1, 5, 4},
		{-9, 5, 0},
		{math.Inf(1), 5, 5},
		{math.Inf(-1), 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeIndex(tt.rel, tt.length), "relativeIndex(%v, %d)", tt.rel, tt.length)
	}
}
