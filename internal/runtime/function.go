package runtime

// NativeFunction is the body of a callable object.
type NativeFunction func(ctx *Context, this Value, args []Value) (Value, error)

// NativeConstructor is the [[Construct]] body of a constructor. newTarget is
// the constructor new was applied to.
type NativeConstructor func(ctx *Context, args []Value, newTarget *Object) (Value, error)

type functionData struct {
	name      string
	realm     *Context
	call      NativeFunction
	construct NativeConstructor
	external  bool
	location  SourceLocation
}

// NewFunction creates a callable object in ctx.
func NewFunction(ctx *Context, name string, length int, call NativeFunction) *Object {
	o := NewObject(ctx.FunctionPrototype)
	o.class = "Function"
	o.fn = &functionData{name: name, realm: ctx, call: call}
	o.defineOwn(Key("name"), &Property{Value: String(name), Configurable: true})
	o.defineOwn(Key("length"), &Property{Value: Int(int64(length)), Configurable: true})
	return o
}

// NewConstructor creates a function that can also be used with new. The
// caller installs "prototype".
func NewConstructor(ctx *Context, name string, length int, call NativeFunction, construct NativeConstructor) *Object {
	o := NewFunction(ctx, name, length, call)
	o.fn.construct = construct
	return o
}

// NewExternalFunction creates a host-backed function. Calls to it go
// through the context's Hooks so they can be recorded and replayed.
func NewExternalFunction(ctx *Context, name string, length int, call NativeFunction) *Object {
	o := NewFunction(ctx, name, length, call)
	o.fn.external = true
	return o
}

// IsCallable reports whether o has a call body.
func (o *Object) IsCallable() bool {
	return o != nil && o.fn != nil && o.fn.call != nil
}

// IsConstructor reports whether o can be used with new.
func (o *Object) IsConstructor() bool {
	return o != nil && o.fn != nil && o.fn.construct != nil
}

// IsExternal reports whether o is a host external function.
func (o *Object) IsExternal() bool {
	return o != nil && o.fn != nil && o.fn.external
}

// FunctionName returns the function's declared name.
func (o *Object) FunctionName() string {
	if o.fn == nil {
		return ""
	}
	return o.fn.name
}

// Realm returns the context a function was created in.
func (o *Object) Realm() *Context {
	if o.fn == nil {
		return nil
	}
	return o.fn.realm
}

// SetSourceLocation records where a function is defined.
func (o *Object) SetSourceLocation(loc SourceLocation) {
	if o.fn != nil {
		o.fn.location = loc
	}
}

// SourceLocation returns where a function is defined.
func (o *Object) SourceLocation() SourceLocation {
	if o.fn == nil {
		return SourceLocation{}
	}
	return o.fn.location
}

// IsCallable reports whether v is a callable object.
func IsCallable(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.IsCallable()
}

// IsConstructor reports whether v is a constructor.
func IsConstructor(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.IsConstructor()
}

// Call invokes f with this and args. External functions are routed through
// the function realm's hooks.
func Call(ctx *Context, f Value, this Value, args []Value) (Value, error) {
	fo, ok := f.(*Object)
	if !ok || !fo.IsCallable() {
		name := "value"
		if s, err := ToString(ctx, f); err == nil && fo == nil {
			name = s
		}
		return nil, ctx.NewTypeError("%s is not a function", name)
	}
	realm := fo.fn.realm
	if realm == nil {
		realm = ctx
	}
	if fo.fn.location.URI != "" {
		realm.lastLocation = fo.fn.location
	}
	if fo.fn.external && realm.hooks != nil {
		return realm.hooks.ExternalCall(realm, fo, this, args, func() (Value, error) {
			return fo.fn.call(realm, this, args)
		})
	}
	return fo.fn.call(realm, this, args)
}

// Construct applies new to f. newTarget defaults to f.
func Construct(ctx *Context, f Value, args []Value, newTarget *Object) (Value, error) {
	fo, ok := f.(*Object)
	if !ok || !fo.IsConstructor() {
		return nil, ctx.NewTypeError("value is not a constructor")
	}
	if newTarget == nil {
		newTarget = fo
	}
	realm := fo.fn.realm
	if realm == nil {
		realm = ctx
	}
	return fo.fn.construct(realm, args, newTarget)
}

// Arg returns args[i], or undefined when absent.
func Arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}
