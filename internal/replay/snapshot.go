package replay

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/runtime"
)

// denseCaptureLimit bounds the arrays whose elements are captured as a
// flat list; longer or dictionary-mode arrays keep indices as properties.
const denseCaptureLimit = 1 << 16

type intrinsic struct {
	name string
	obj  *runtime.Object
}

// intrinsics lists the context objects a snapshot refers to by name: the
// prototypes and constructors, and the methods they own.
func intrinsics(ctx *runtime.Context) []intrinsic {
	base := []intrinsic{
		{"%Object.prototype%", ctx.ObjectPrototype},
		{"%Function.prototype%", ctx.FunctionPrototype},
		{"%Array.prototype%", ctx.ArrayPrototype},
		{"%Error.prototype%", ctx.ErrorPrototype},
		{"%TypeError.prototype%", ctx.TypeErrorPrototype},
		{"%RangeError.prototype%", ctx.RangeErrorPrototype},
		{"%Array%", ctx.ArrayConstructor},
	}
	out := slices.Clone(base)
	for _, b := range base {
		if b.obj == nil {
			continue
		}
		for _, k := range b.obj.OwnKeys() {
			p, _ := b.obj.GetOwnProperty(k)
			if k.IsSymbol() || p.Accessor {
				continue
			}
			if fn, ok := p.Value.(*runtime.Object); ok && fn.IsCallable() {
				out = append(out, intrinsic{strings.TrimSuffix(b.name, "%") + "." + k.Name() + "%", fn})
			}
		}
	}
	return out
}

func intrinsicByName(ctx *runtime.Context, name string) (*runtime.Object, bool) {
	for _, in := range intrinsics(ctx) {
		if in.name == name && in.obj != nil {
			return in.obj, true
		}
	}
	return nil, false
}

// capturer walks the object graph of one context, numbering objects in
// the order they are first reached.
type capturer struct {
	s       *Session
	ctx     *runtime.Context
	ids     map[*runtime.Object]eventlog.LogTag
	objs    []*runtime.Object
	intrins map[*runtime.Object]string
}

func (c *capturer) id(o *runtime.Object) eventlog.LogTag {
	if id, ok := c.ids[o]; ok {
		return id
	}
	id := eventlog.LogTag(len(c.objs) + 1)
	c.ids[o] = id
	c.objs = append(c.objs, o)
	return id
}

func (c *capturer) value(v runtime.Value) (eventlog.Var, error) {
	if o, ok := v.(*runtime.Object); ok {
		return eventlog.ObjectVar(c.id(o)), nil
	}
	if pv, ok := primitiveVar(v); ok {
		return pv, nil
	}
	return eventlog.Var{}, fmt.Errorf("cannot capture a %s value", runtime.TypeOf(v))
}

// capture records the state of the one live context.
func (s *Session) capture() (*eventlog.SnapshotData, error) {
	if len(s.contexts) != 1 {
		return nil, fmt.Errorf("snapshot needs exactly one live context, have %d", len(s.contexts))
	}
	var ctx *runtime.Context
	for _, c := range s.contexts {
		ctx = c
	}
	c := &capturer{
		s:       s,
		ctx:     ctx,
		ids:     make(map[*runtime.Object]eventlog.LogTag),
		intrins: make(map[*runtime.Object]string),
	}
	for _, in := range intrinsics(ctx) {
		if _, seen := c.intrins[in.obj]; in.obj != nil && !seen {
			c.intrins[in.obj] = in.name
		}
	}

	snap := &eventlog.SnapshotData{
		RestoreTime: s.clock.Current(),
		ContextID:   ctx.ID(),
		Known:       s.known[ctx.ID()],
		NextTag:     s.tags.next,
	}
	s0, s1, seeded := ctx.RandomState()
	snap.RandomSeeded = seeded
	snap.RandomState = [2]uint64{s0, s1}

	c.id(ctx.Global)
	tagged := make([]eventlog.LogTag, 0, len(s.tags.byTag))
	for tag, v := range s.tags.byTag {
		if _, ok := v.(*runtime.Object); ok {
			tagged = append(tagged, tag)
		}
	}
	slices.Sort(tagged)
	for _, tag := range tagged {
		c.id(s.tags.byTag[tag].(*runtime.Object))
	}

	ids := make([]int64, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		o, ok := s.callbacks[id].(*runtime.Object)
		if !ok {
			return nil, fmt.Errorf("callback %d is not an object", id)
		}
		snap.Callbacks = append(snap.Callbacks, eventlog.SnapCallback{ID: id, Function: c.id(o)})
	}
	if s.pending != nil {
		v, err := c.value(s.pending)
		if err != nil {
			return nil, fmt.Errorf("pending exception: %w", err)
		}
		snap.Pending = v
	}

	// objs grows while it is walked.
	for i := 0; i < len(c.objs); i++ {
		so, err := c.object(c.objs[i])
		if err != nil {
			return nil, err
		}
		snap.Objects = append(snap.Objects, so)
	}
	return snap, nil
}

func (c *capturer) object(o *runtime.Object) (eventlog.SnapObject, error) {
	so := eventlog.SnapObject{ID: c.ids[o]}
	if tag, ok := c.s.tags.lookup(o); ok {
		so.Tag = tag
	}
	if name, ok := c.intrins[o]; ok {
		so.Intrinsic = name
		return so, nil
	}
	so.Class = o.Class()
	so.Extensible = o.Extensible()
	if p := o.Prototype(); p != nil {
		so.ProtoRef = c.id(p)
	} else {
		so.Proto = "null"
	}
	if o.IsCallable() {
		if realm := o.Realm(); realm != nil && realm != c.ctx {
			return so, fmt.Errorf("object %d is a function of context %d", so.ID, realm.ID())
		}
		so.Function = o.FunctionName()
		if so.Function == "" {
			so.Script = o.SourceLocation().URI
		}
	}
	so.External = o.IsExternal() || c.s.externals[o]

	a, isArray := array.FromObject(o)
	flat := isArray && !a.IsBag() && a.Length() <= denseCaptureLimit
	if isArray {
		so.Length = a.Length()
	}
	if flat {
		for _, v := range a.Values() {
			ev, err := c.value(v)
			if err != nil {
				return so, fmt.Errorf("object %d element: %w", so.ID, err)
			}
			so.Elements = append(so.Elements, ev)
		}
	}
	for _, k := range o.OwnKeys() {
		if k.IsSymbol() {
			return so, fmt.Errorf("object %d has a symbol-keyed property", so.ID)
		}
		if isArray {
			if k.Name() == "length" {
				continue
			}
			if _, idx := k.ArrayIndex(); idx && flat {
				continue
			}
		}
		p, _ := o.GetOwnProperty(k)
		if p.Accessor {
			return so, fmt.Errorf("object %d property %q is an accessor", so.ID, k.Name())
		}
		v, err := c.value(p.Value)
		if err != nil {
			return so, fmt.Errorf("object %d property %q: %w", so.ID, k.Name(), err)
		}
		so.Props = append(so.Props, eventlog.SnapProp{
			Name:         k.Name(),
			Value:        v,
			Writable:     p.Writable,
			Enumerable:   p.Enumerable,
			Configurable: p.Configurable,
		})
	}
	return so, nil
}

// restore rebuilds the session from a snapshot: a fresh context, every
// captured object, and the tags they carried.
func (s *Session) restore(snap *eventlog.SnapshotData) error {
	s.resetState()
	ctx, err := s.env.CreateContext(snap.ContextID)
	if err != nil {
		return hostError(nil, "restore context", err)
	}
	s.installContext(ctx)
	if err := s.activate(ctx); err != nil {
		return hostError(nil, "activate restored context", err)
	}
	if err := s.bindKnown(nil, ctx, snap.Known); err != nil {
		return err
	}
	s.nextCtxID = max(s.nextCtxID, snap.ContextID)

	objs := make(map[eventlog.LogTag]*runtime.Object, len(snap.Objects))
	arrays := make(map[eventlog.LogTag]*array.Array)
	for i := range snap.Objects {
		so := &snap.Objects[i]
		o, a, err := s.materialize(ctx, so, snap.RestoreTime)
		if err != nil {
			return err
		}
		objs[so.ID] = o
		if a != nil {
			arrays[so.ID] = a
		}
		if so.Tag != eventlog.NoTag {
			if err := s.bindResult(nil, so.Tag, o); err != nil {
				return err
			}
		}
	}

	local := func(v eventlog.Var) (runtime.Value, error) {
		if v.Kind != eventlog.VarObject {
			return s.inflate(nil, v)
		}
		o, ok := objs[v.Tag]
		if !ok {
			return nil, newError(ErrCodeLogCorrupt, nil, "snapshot refers to missing object %d", v.Tag)
		}
		return o, nil
	}

	for i := range snap.Objects {
		so := &snap.Objects[i]
		if so.Intrinsic != "" {
			continue
		}
		o := objs[so.ID]
		if so.Proto == "null" {
			o.SetPrototype(nil)
		} else if p, ok := objs[so.ProtoRef]; ok {
			o.SetPrototype(p)
		} else {
			return newError(ErrCodeLogCorrupt, nil, "object %d has missing prototype %d", so.ID, so.ProtoRef)
		}
		if a, ok := arrays[so.ID]; ok {
			if err := a.SetLength(so.Length); err != nil {
				return hostError(nil, "restore array length", err)
			}
			for j, ev := range so.Elements {
				if ev.Kind == eventlog.VarHole {
					continue
				}
				v, err := local(ev)
				if err != nil {
					return err
				}
				if err := a.Set(uint32(j), v); err != nil {
					return hostError(nil, "restore array element", err)
				}
			}
		}
		for _, sp := range so.Props {
			v, err := local(sp.Value)
			if err != nil {
				return err
			}
			if err := defineRestored(ctx, o, sp, v); err != nil {
				return hostError(nil, fmt.Sprintf("restore property %q of object %d", sp.Name, so.ID), err)
			}
		}
		if !so.Extensible {
			o.PreventExtensions()
		}
	}

	ctx.SetRandomState(snap.RandomState[0], snap.RandomState[1], snap.RandomSeeded)
	for _, cb := range snap.Callbacks {
		fn, ok := objs[cb.Function]
		if !ok {
			return newError(ErrCodeLogCorrupt, nil, "callback %d refers to missing object %d", cb.ID, cb.Function)
		}
		s.callbacks[cb.ID] = fn
		s.nextCallbackID = max(s.nextCallbackID, cb.ID)
	}
	if snap.Pending.Kind != eventlog.VarUndefined {
		v, err := local(snap.Pending)
		if err != nil {
			return err
		}
		s.pending = v
	}
	s.tags.next = max(s.tags.next, snap.NextTag)
	s.lastSnapshotTime = snap.RestoreTime
	s.logger.Debug("snapshot restored", "time", snap.RestoreTime, "objects", len(snap.Objects))
	return nil
}

// materialize creates the object a snapshot entry describes, without its
// properties.
func (s *Session) materialize(ctx *runtime.Context, so *eventlog.SnapObject, restoreTime int64) (*runtime.Object, *array.Array, error) {
	switch {
	case so.Intrinsic != "":
		o, ok := intrinsicByName(ctx, so.Intrinsic)
		if !ok {
			return nil, nil, newError(ErrCodeLogCorrupt, nil, "unknown intrinsic %s", so.Intrinsic)
		}
		return o, nil, nil
	case so.Class == "global":
		return ctx.Global, nil, nil
	case so.Script != "":
		source, err := s.scriptSource(so.Script, restoreTime)
		if err != nil {
			return nil, nil, err
		}
		fn, err := s.env.ParseScript(ctx, so.Script, source)
		if err != nil {
			return nil, nil, hostError(nil, "restore script "+so.Script, err)
		}
		return fn, nil, nil
	case so.Function != "":
		fn, err := s.env.RestoreFunction(ctx, so.Function, so.External)
		if err != nil {
			return nil, nil, hostError(nil, "restore function "+so.Function, err)
		}
		return fn, nil, nil
	case so.External:
		o, err := s.env.CreateExternalObject(ctx)
		if err != nil {
			return nil, nil, hostError(nil, "restore external object", err)
		}
		s.externals[o] = true
		return o, nil, nil
	case so.Class == "Array":
		a, err := array.NewWithProto(ctx, ctx.ArrayPrototype, 0)
		if err != nil {
			return nil, nil, hostError(nil, "restore array", err)
		}
		return a.Object(), a, nil
	}
	o := runtime.NewObject(nil)
	o.SetClass(so.Class)
	return o, nil, nil
}

// defineRestored defines a captured property. A non-configurable property
// the fresh context already holds with the same value is left alone.
func defineRestored(ctx *runtime.Context, o *runtime.Object, sp eventlog.SnapProp, v runtime.Value) error {
	key := runtime.Key(sp.Name)
	if cur, ok := o.GetOwnProperty(key); ok && !cur.Configurable {
		if !cur.Accessor && runtime.SameValue(cur.Value, v) {
			return nil
		}
		return fmt.Errorf("non-configurable property holds a different value")
	}
	return o.DefineOwnProperty(ctx, key, runtime.Property{
		Value:        v,
		Writable:     sp.Writable,
		Enumerable:   sp.Enumerable,
		Configurable: sp.Configurable,
	})
}

// scriptSource finds the source last parsed for uri before time.
func (s *Session) scriptSource(uri string, before int64) (string, error) {
	for i := s.log.Len() - 1; i >= 0; i-- {
		e := s.log.At(i)
		if e.Kind != eventlog.KindCodeParse || e.Time > before {
			continue
		}
		if p := eventlog.PayloadAs[*eventlog.CodeParse](e); p.URI == uri {
			return p.Source, nil
		}
	}
	return "", newError(ErrCodeLogCorrupt, nil, "no loaded source for script %s", uri)
}
