package runtime

import (
	"slices"
)

// Exotic lets a special object (an array) own part of its property space.
// Each method reports handled=false for keys it does not own, in which case
// ordinary property storage takes over.
type Exotic interface {
	// GetOwn returns the own property for key, if the exotic owns it.
	GetOwn(key PropertyKey) (Property, bool)

	// SetOwn writes an own data value. Called only after prototype lookup
	// decided the write lands on this object.
	SetOwn(ctx *Context, key PropertyKey, v Value) (handled bool, err error)

	// DefineOwn defines an own property from a descriptor.
	DefineOwn(ctx *Context, key PropertyKey, p Property) (handled bool, err error)

	// DeleteOwn removes an own property.
	DeleteOwn(ctx *Context, key PropertyKey) (handled bool, deleted bool)

	// OwnKeys lists exotic-owned keys in enumeration order.
	OwnKeys() []PropertyKey
}

// Object is a script object: ordered own properties plus a prototype link.
type Object struct {
	class      string
	proto      *Object
	keys       []PropertyKey
	props      map[PropertyKey]*Property
	extensible bool
	exotic     Exotic
	fn         *functionData
	host       any
	primitive  Value
}

// NewObject creates an ordinary object with the given prototype.
func NewObject(proto *Object) *Object {
	return &Object{
		class:      "Object",
		proto:      proto,
		props:      make(map[PropertyKey]*Property),
		extensible: true,
	}
}

func (*Object) jsValue() {}

// Class returns the object's class name ("Object", "Array", "Function", ...).
func (o *Object) Class() string { return o.class }

// SetClass sets the class name.
func (o *Object) SetClass(class string) { o.class = class }

// Prototype returns the prototype, or nil.
func (o *Object) Prototype() *Object { return o.proto }

// SetPrototype replaces the prototype.
func (o *Object) SetPrototype(p *Object) { o.proto = p }

// Extensible reports whether new properties may be added.
func (o *Object) Extensible() bool { return o.extensible }

// PreventExtensions forbids adding properties.
func (o *Object) PreventExtensions() { o.extensible = false }

// SetExotic installs the exotic property handler.
func (o *Object) SetExotic(e Exotic) { o.exotic = e }

// Exotic returns the installed exotic handler, or nil.
func (o *Object) Exotic() Exotic { return o.exotic }

// HostData returns data attached by the embedding host.
func (o *Object) HostData() any { return o.host }

// SetHostData attaches host data (external objects).
func (o *Object) SetHostData(v any) { o.host = v }

// GetOwnProperty returns the own property for key.
func (o *Object) GetOwnProperty(key PropertyKey) (Property, bool) {
	if o.exotic != nil {
		if p, ok := o.exotic.GetOwn(key); ok {
			return p, true
		}
	}
	if p, ok := o.props[key]; ok {
		return *p, true
	}
	return Property{}, false
}

// HasOwnProperty reports whether key is an own property.
func (o *Object) HasOwnProperty(key PropertyKey) bool {
	_, ok := o.GetOwnProperty(key)
	return ok
}

// HasProperty reports whether key is found on o or its prototype chain.
func (o *Object) HasProperty(key PropertyKey) bool {
	for cur := o; cur != nil; cur = cur.proto {
		if cur.HasOwnProperty(key) {
			return true
		}
	}
	return false
}

// Get reads key, walking the prototype chain and invoking getters.
func (o *Object) Get(ctx *Context, key PropertyKey) (Value, error) {
	return o.GetWithReceiver(ctx, key, o)
}

// GetWithReceiver reads key with an explicit receiver for getters.
func (o *Object) GetWithReceiver(ctx *Context, key PropertyKey, receiver Value) (Value, error) {
	for cur := o; cur != nil; cur = cur.proto {
		p, ok := cur.GetOwnProperty(key)
		if !ok {
			continue
		}
		if p.Accessor {
			if p.Getter == nil {
				return Undefined, nil
			}
			return Call(ctx, p.Getter, receiver, nil)
		}
		return p.Value, nil
	}
	return Undefined, nil
}

// Set writes key with o as receiver. Failures throw (strict semantics).
func (o *Object) Set(ctx *Context, key PropertyKey, v Value) error {
	return o.SetWithReceiver(ctx, key, v, o)
}

// SetWithReceiver implements ordinary [[Set]]: the first property found on
// the chain decides whether a setter runs, the write is rejected, or a data
// property is written on the receiver.
func (o *Object) SetWithReceiver(ctx *Context, key PropertyKey, v Value, receiver Value) error {
	for cur := o; cur != nil; cur = cur.proto {
		p, ok := cur.GetOwnProperty(key)
		if !ok {
			continue
		}
		if p.Accessor {
			if p.Setter == nil {
				return ctx.NewTypeError("Cannot set property %s which has only a getter", key)
			}
			_, err := Call(ctx, p.Setter, receiver, []Value{v})
			return err
		}
		if !p.Writable {
			return ctx.NewTypeError("Cannot assign to read only property '%s'", key)
		}
		break
	}
	recv, ok := receiver.(*Object)
	if !ok {
		return ctx.NewTypeError("Cannot create property '%s' on primitive", key)
	}
	return recv.putOwnData(ctx, key, v)
}

func (o *Object) putOwnData(ctx *Context, key PropertyKey, v Value) error {
	if o.exotic != nil {
		handled, err := o.exotic.SetOwn(ctx, key, v)
		if handled {
			return err
		}
	}
	if p, ok := o.props[key]; ok {
		if p.Accessor || !p.Writable {
			return ctx.NewTypeError("Cannot assign to read only property '%s'", key)
		}
		p.Value = v
		return nil
	}
	if !o.extensible {
		return ctx.NewTypeError("Cannot add property %s, object is not extensible", key)
	}
	o.defineOwn(key, &Property{Value: v, Writable: true, Enumerable: true, Configurable: true})
	return nil
}

// DefineOwnProperty defines or redefines an own property.
func (o *Object) DefineOwnProperty(ctx *Context, key PropertyKey, p Property) error {
	if o.exotic != nil {
		handled, err := o.exotic.DefineOwn(ctx, key, p)
		if handled {
			return err
		}
	}
	return o.OrdinaryDefineOwnProperty(ctx, key, p)
}

// OrdinaryDefineOwnProperty defines key in ordinary storage, bypassing the
// exotic handler. Arrays use it for named properties.
func (o *Object) OrdinaryDefineOwnProperty(ctx *Context, key PropertyKey, p Property) error {
	existing, ok := o.props[key]
	if !ok {
		if !o.extensible {
			return ctx.NewTypeError("Cannot define property %s, object is not extensible", key)
		}
		cp := p
		o.defineOwn(key, &cp)
		return nil
	}
	if !existing.Configurable {
		sameShape := !existing.Accessor && !p.Accessor && existing.Writable
		if !sameShape || p.Configurable || p.Enumerable != existing.Enumerable {
			return ctx.NewTypeError("Cannot redefine property: %s", key)
		}
	}
	*existing = p
	return nil
}

func (o *Object) defineOwn(key PropertyKey, p *Property) {
	if _, exists := o.props[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.props[key] = p
}

// Delete removes an own property. Non-configurable properties are kept and
// reported as not deleted.
func (o *Object) Delete(ctx *Context, key PropertyKey) bool {
	if o.exotic != nil {
		handled, deleted := o.exotic.DeleteOwn(ctx, key)
		if handled {
			return deleted
		}
	}
	p, ok := o.props[key]
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	delete(o.props, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
	return true
}

// DeleteOrThrow deletes key and throws a TypeError when it cannot.
func (o *Object) DeleteOrThrow(ctx *Context, key PropertyKey) error {
	if !o.Delete(ctx, key) {
		return ctx.NewTypeError("Cannot delete property '%s'", key)
	}
	return nil
}

// OwnKeys lists own keys: integer indices ascending, then strings in
// insertion order, then symbols.
func (o *Object) OwnKeys() []PropertyKey {
	var indices []PropertyKey
	var names []PropertyKey
	var symbols []PropertyKey
	if o.exotic != nil {
		for _, k := range o.exotic.OwnKeys() {
			if _, isIndex := k.ArrayIndex(); isIndex {
				indices = append(indices, k)
			} else {
				names = append(names, k)
			}
		}
	}
	var ordinaryIndices []PropertyKey
	for _, k := range o.keys {
		switch {
		case k.IsSymbol():
			symbols = append(symbols, k)
		default:
			if _, isIndex := k.ArrayIndex(); isIndex {
				ordinaryIndices = append(ordinaryIndices, k)
			} else {
				names = append(names, k)
			}
		}
	}
	if len(ordinaryIndices) > 0 {
		indices = append(indices, ordinaryIndices...)
		slices.SortFunc(indices, func(a, b PropertyKey) int {
			x, _ := a.ArrayIndex()
			y, _ := b.ArrayIndex()
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		})
	}
	out := make([]PropertyKey, 0, len(indices)+len(names)+len(symbols))
	out = append(out, indices...)
	out = append(out, names...)
	return append(out, symbols...)
}

// IndexedReporter is implemented by exotics that can answer
// HasIndexedProperties without listing every key.
type IndexedReporter interface {
	HasIndexed() bool
}

// HasIndexedProperties reports whether o owns any array-index keys.
func (o *Object) HasIndexedProperties() bool {
	if o.exotic != nil {
		if r, ok := o.exotic.(IndexedReporter); ok {
			if r.HasIndexed() {
				return true
			}
		} else {
			for _, k := range o.exotic.OwnKeys() {
				if _, isIndex := k.ArrayIndex(); isIndex {
					return true
				}
			}
		}
	}
	for _, k := range o.keys {
		if _, isIndex := k.ArrayIndex(); isIndex {
			return true
		}
	}
	return false
}

// ChainHasIndexedProperties reports whether o or any prototype owns an
// array-index key. A nil o has none.
func ChainHasIndexedProperties(o *Object) bool {
	for cur := o; cur != nil; cur = cur.proto {
		if cur.HasIndexedProperties() {
			return true
		}
	}
	return false
}

// OrdinaryKeys lists keys held in ordinary storage, in insertion order.
func (o *Object) OrdinaryKeys() []PropertyKey {
	return slices.Clone(o.keys)
}

// dataValue reads a data property along the chain without running getters.
func (o *Object) dataValue(key PropertyKey) (Value, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if p, ok := cur.props[key]; ok {
			if p.Accessor {
				return nil, false
			}
			return p.Value, true
		}
	}
	return nil, false
}
