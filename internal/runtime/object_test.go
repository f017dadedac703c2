package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_GetFallsThroughPrototype(t *testing.T) {
	ctx := NewContext(1)
	proto := ctx.NewObject()
	require.NoError(t, proto.Set(ctx, Key("x"), Number(1)))

	o := NewObject(proto)
	v, err := o.Get(ctx, Key("x"))
	require.NoError(t, err)
	assert.Equal(t, Number(1), v)
	assert.True(t, o.HasProperty(Key("x")))
	assert.False(t, o.HasOwnProperty(Key("x")))

	// Writes land on the receiver, not the prototype.
	require.NoError(t, o.Set(ctx, Key("x"), Number(2)))
	pv, _ := proto.Get(ctx, Key("x"))
	assert.Equal(t, Number(1), pv)
	ov, _ := o.Get(ctx, Key("x"))
	assert.Equal(t, Number(2), ov)
}

func TestObject_ReadOnlyRejectsWrite(t *testing.T) {
	ctx := NewContext(1)
	o := ctx.NewObject()
	require.NoError(t, o.DefineOwnProperty(ctx, Key("k"), Property{Value: Number(1)}))

	err := o.Set(ctx, Key("k"), Number(2))
	require.Error(t, err)
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, "TypeError", ErrorName(ex.Value))
}

func TestObject_AccessorInvokesGetterAndSetter(t *testing.T) {
	ctx := NewContext(1)
	var stored Value = Undefined
	getter := NewFunction(ctx, "get", 0, func(*Context, Value, []Value) (Value, error) {
		return stored, nil
	})
	setter := NewFunction(ctx, "set", 1, func(_ *Context, _ Value, args []Value) (Value, error) {
		stored = Arg(args, 0)
		return Undefined, nil
	})
	o := ctx.NewObject()
	require.NoError(t, o.DefineOwnProperty(ctx, Key("p"), AccessorProperty(getter, setter)))

	require.NoError(t, o.Set(ctx, Key("p"), String("hi")))
	v, err := o.Get(ctx, Key("p"))
	require.NoError(t, err)
	assert.Equal(t, String("hi"), v)
}

func TestObject_NotExtensible(t *testing.T) {
	ctx := NewContext(1)
	o := ctx.NewObject()
	o.PreventExtensions()
	assert.Error(t, o.Set(ctx, Key("new"), Number(1)))
}

func TestObject_DeleteNonConfigurable(t *testing.T) {
	ctx := NewContext(1)
	o := ctx.NewObject()
	require.NoError(t, o.DefineOwnProperty(ctx, Key("fixed"), Property{Value: Number(1), Writable: true}))
	require.NoError(t, o.Set(ctx, Key("loose"), Number(2)))

	assert.False(t, o.Delete(ctx, Key("fixed")))
	assert.True(t, o.Delete(ctx, Key("loose")))
	assert.False(t, o.HasOwnProperty(Key("loose")))
	assert.Error(t, o.DeleteOrThrow(ctx, Key("fixed")))
}

func TestObject_OwnKeysOrder(t *testing.T) {
	ctx := NewContext(1)
	o := ctx.NewObject()
	sym := &Symbol{Description: "s"}
	for _, k := range []PropertyKey{Key("b"), IndexKey(10), SymbolKey(sym), Key("a"), IndexKey(2)} {
		require.NoError(t, o.Set(ctx, k, Number(0)))
	}

	keys := o.OwnKeys()
	require.Len(t, keys, 5)
	assert.Equal(t, "2", keys[0].Name())
	assert.Equal(t, "10", keys[1].Name())
	assert.Equal(t, "b", keys[2].Name())
	assert.Equal(t, "a", keys[3].Name())
	assert.Equal(t, sym, keys[4].Symbol())
}

func TestCall_NonCallableThrows(t *testing.T) {
	ctx := NewContext(1)
	_, err := Call(ctx, Number(3), Undefined, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a function")
}

type recordingHooks struct {
	external int
}

func (h *recordingHooks) Double(_ *Context, compute func() float64) (float64, error) {
	return compute(), nil
}

func (h *recordingHooks) String(_ *Context, compute func() string) (string, error) {
	return compute(), nil
}

func (h *recordingHooks) RandomSeed(_ *Context, _ func() (uint64, uint64)) (uint64, uint64, error) {
	return 1, 2, nil
}

func (h *recordingHooks) ExternalCall(_ *Context, _ *Object, _ Value, _ []Value, invoke func() (Value, error)) (Value, error) {
	h.external++
	return invoke()
}

func TestCall_ExternalRoutesThroughHooks(t *testing.T) {
	ctx := NewContext(1)
	hooks := &recordingHooks{}
	ctx.SetHooks(hooks)

	ext := NewExternalFunction(ctx, "ext", 0, func(*Context, Value, []Value) (Value, error) {
		return Number(5), nil
	})
	plain := NewFunction(ctx, "plain", 0, func(*Context, Value, []Value) (Value, error) {
		return Number(6), nil
	})

	v, err := Call(ctx, ext, Undefined, nil)
	require.NoError(t, err)
	assert.Equal(t, Number(5), v)
	_, err = Call(ctx, plain, Undefined, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hooks.external)
}

func TestContext_RandomIsSeededOnce(t *testing.T) {
	a := NewContext(1)
	b := NewContext(2)
	a.SetHooks(&recordingHooks{})
	b.SetHooks(&recordingHooks{})

	for i := 0; i < 5; i++ {
		x, err := a.Random(nil)
		require.NoError(t, err)
		y, err := b.Random(nil)
		require.NoError(t, err)
		assert.Equal(t, x, y, "same seed yields the same sequence")
		assert.GreaterOrEqual(t, x, 0.0)
		assert.Less(t, x, 1.0)
	}
}

func TestException_Error(t *testing.T) {
	ctx := NewContext(1)
	err := error(ctx.NewRangeError("Invalid array length"))
	assert.Equal(t, "Uncaught RangeError: Invalid array length", err.Error())
	assert.True(t, IsException(err))
}
