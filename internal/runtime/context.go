package runtime

import (
	"fmt"
	"math"
)

// SourceLocation identifies a point in a loaded script.
type SourceLocation struct {
	URI      string
	Function string
	Line     int
	Column   int
}

// String renders the location as uri:line:column (function).
func (l SourceLocation) String() string {
	if l.URI == "" {
		return "<unknown>"
	}
	if l.Function == "" {
		return fmt.Sprintf("%s:%d:%d", l.URI, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d (%s)", l.URI, l.Line, l.Column, l.Function)
}

// IsZero reports whether no location was recorded.
func (l SourceLocation) IsZero() bool {
	return l.URI == ""
}

// Hooks receives every non-deterministic input a context consumes. The
// replay session installs an implementation that records values in record
// mode and returns logged values in replay mode.
type Hooks interface {
	// Double supplies a host number (a clock reading, for example).
	Double(ctx *Context, compute func() float64) (float64, error)

	// String supplies a host string.
	String(ctx *Context, compute func() string) (string, error)

	// RandomSeed supplies the seed pair for the context's generator.
	RandomSeed(ctx *Context, compute func() (uint64, uint64)) (uint64, uint64, error)

	// ExternalCall wraps a call into a host external function.
	ExternalCall(ctx *Context, fn *Object, this Value, args []Value, invoke func() (Value, error)) (Value, error)
}

// Context is a script context: one global object and its intrinsics.
type Context struct {
	id    int64
	hooks Hooks

	Global              *Object
	ObjectPrototype     *Object
	FunctionPrototype   *Object
	ArrayPrototype      *Object
	ErrorPrototype      *Object
	TypeErrorPrototype  *Object
	RangeErrorPrototype *Object

	// ArrayConstructor is installed by the array package.
	ArrayConstructor *Object

	lastLocation SourceLocation
	seed         [2]uint64
	seeded       bool
	values       map[any]any
}

// NewContext creates a context with its intrinsic prototypes and global.
func NewContext(id int64) *Context {
	c := &Context{id: id}

	c.ObjectPrototype = NewObject(nil)

	c.FunctionPrototype = NewObject(c.ObjectPrototype)
	c.FunctionPrototype.class = "Function"
	c.FunctionPrototype.fn = &functionData{realm: c, call: func(*Context, Value, []Value) (Value, error) {
		return Undefined, nil
	}}

	c.ArrayPrototype = NewObject(c.ObjectPrototype)
	c.ArrayPrototype.class = "Array"

	c.ErrorPrototype = c.newErrorPrototype(c.ObjectPrototype, "Error")
	c.TypeErrorPrototype = c.newErrorPrototype(c.ErrorPrototype, "TypeError")
	c.RangeErrorPrototype = c.newErrorPrototype(c.ErrorPrototype, "RangeError")

	c.installObjectPrototype()

	c.Global = NewObject(c.ObjectPrototype)
	c.Global.class = "global"
	c.Global.defineOwn(Key("globalThis"), &Property{Value: c.Global, Writable: true, Configurable: true})
	c.Global.defineOwn(Key("undefined"), &Property{Value: Undefined})
	c.Global.defineOwn(Key("NaN"), &Property{Value: Number(math.NaN())})
	return c
}

// ID returns the context identifier assigned by the host.
func (c *Context) ID() int64 { return c.id }

// SetHooks installs (or clears, with nil) the non-determinism hooks.
func (c *Context) SetHooks(h Hooks) { c.hooks = h }

// Hooks returns the installed hooks.
func (c *Context) Hooks() Hooks { return c.hooks }

// NewObject creates an ordinary object inheriting from Object.prototype.
func (c *Context) NewObject() *Object {
	return NewObject(c.ObjectPrototype)
}

// Value returns per-context data stored by other packages under key.
func (c *Context) Value(key any) any {
	return c.values[key]
}

// SetValue stores per-context data under key.
func (c *Context) SetValue(key, v any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = v
}

// LastLocation returns the last source location entered by a call.
func (c *Context) LastLocation() SourceLocation { return c.lastLocation }

// SetLastLocation overrides the last executed source location.
func (c *Context) SetLastLocation(loc SourceLocation) { c.lastLocation = loc }

// Double asks the hooks for a host number, computing it directly when no
// hooks are installed.
func (c *Context) Double(compute func() float64) (float64, error) {
	if c.hooks == nil {
		return compute(), nil
	}
	return c.hooks.Double(c, compute)
}

// HostString asks the hooks for a host string.
func (c *Context) HostString(compute func() string) (string, error) {
	if c.hooks == nil {
		return compute(), nil
	}
	return c.hooks.String(c, compute)
}

// Random returns the next pseudo-random number in [0, 1). The generator is
// seeded once per context through the hooks.
func (c *Context) Random(seed func() (uint64, uint64)) (float64, error) {
	if !c.seeded {
		var s0, s1 uint64
		if c.hooks == nil {
			s0, s1 = seed()
		} else {
			var err error
			s0, s1, err = c.hooks.RandomSeed(c, seed)
			if err != nil {
				return 0, err
			}
		}
		if s0 == 0 && s1 == 0 {
			s1 = 1
		}
		c.seed = [2]uint64{s0, s1}
		c.seeded = true
	}
	// xorshift128+
	s1, s0 := c.seed[0], c.seed[1]
	c.seed[0] = s0
	s1 ^= s1 << 23
	s1 ^= s1 >> 17
	s1 ^= s0
	s1 ^= s0 >> 26
	c.seed[1] = s1
	return float64((c.seed[0]+c.seed[1])>>11) / float64(uint64(1)<<53), nil
}

// ResetRandom forgets the current seed so the next Random call reseeds.
func (c *Context) ResetRandom() {
	c.seeded = false
	c.seed = [2]uint64{}
}

// RandomState returns the generator state and whether it has been seeded.
func (c *Context) RandomState() (s0, s1 uint64, seeded bool) {
	return c.seed[0], c.seed[1], c.seeded
}

// SetRandomState restores a state captured by RandomState.
func (c *Context) SetRandomState(s0, s1 uint64, seeded bool) {
	c.seed = [2]uint64{s0, s1}
	c.seeded = seeded
}

// DefineGlobal binds name on the global object.
func (c *Context) DefineGlobal(name string, v Value) {
	c.Global.defineOwn(Key(name), &Property{Value: v, Writable: true, Configurable: true})
}

// DefineMethod installs a non-enumerable native method on o.
func (c *Context) DefineMethod(o *Object, name string, length int, fn NativeFunction) *Object {
	f := NewFunction(c, name, length, fn)
	o.defineOwn(Key(name), &Property{Value: f, Writable: true, Configurable: true})
	return f
}

func (c *Context) newErrorPrototype(parent *Object, name string) *Object {
	p := NewObject(parent)
	p.class = "Error"
	p.defineOwn(Key("name"), &Property{Value: String(name), Writable: true, Configurable: true})
	p.defineOwn(Key("message"), &Property{Value: String(""), Writable: true, Configurable: true})
	return p
}

func (c *Context) installObjectPrototype() {
	c.DefineMethod(c.ObjectPrototype, "toString", 0, func(ctx *Context, this Value, _ []Value) (Value, error) {
		switch v := this.(type) {
		case undefinedValue:
			return String("[object Undefined]"), nil
		case nullValue:
			return String("[object Null]"), nil
		case *Object:
			return String("[object " + v.class + "]"), nil
		}
		return String("[object Object]"), nil
	})
	c.DefineMethod(c.ObjectPrototype, "valueOf", 0, func(ctx *Context, this Value, _ []Value) (Value, error) {
		if o, ok := this.(*Object); ok && o.primitive != nil {
			return o.primitive, nil
		}
		return this, nil
	})
	c.DefineMethod(c.ObjectPrototype, "hasOwnProperty", 1, func(ctx *Context, this Value, args []Value) (Value, error) {
		key, err := ToPropertyKey(ctx, Arg(args, 0))
		if err != nil {
			return nil, err
		}
		o, err := ToObject(ctx, this)
		if err != nil {
			return nil, err
		}
		return Bool(o.HasOwnProperty(key)), nil
	})
	c.DefineMethod(c.ErrorPrototype, "toString", 0, func(ctx *Context, this Value, _ []Value) (Value, error) {
		o, ok := this.(*Object)
		if !ok {
			return nil, ctx.NewTypeError("Error.prototype.toString called on non-object")
		}
		return String(describeThrown(o)), nil
	})
}
