package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/runtime"
)

// The recorder API is the embedding surface a host uses while recording.
// Each operation performs its effect on the active context and appends the
// entry that lets a replay redo it. A script exception raised by an
// operation is returned to the caller and also left pending, as the
// embedding API would.

func (s *Session) recording() error {
	if s.mode != ModeRecord {
		return ErrNotRecording
	}
	return nil
}

// recordThrown applies the exception protocol while recording: a script
// exception becomes pending and the logged result is a hole.
func (s *Session) recordThrown(v runtime.Value, err error) runtime.Value {
	if exc, ok := runtime.AsException(err); ok {
		s.pending = exc.Value
		return runtime.Missing
	}
	return v
}

// CreateContext makes a new script context and tags its well-known values.
func (s *Session) CreateContext() (*runtime.Context, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	s.nextCtxID++
	ctx, err := s.env.CreateContext(s.nextCtxID)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	s.installContext(ctx)
	known := eventlog.KnownObjects{
		Global:    s.tags.tagFor(ctx.Global),
		Undefined: s.tags.fresh(),
		Null:      s.tags.fresh(),
		True:      s.tags.fresh(),
		False:     s.tags.fresh(),
	}
	if err := s.bindKnown(nil, ctx, known); err != nil {
		return nil, err
	}
	s.appendEntry(eventlog.KindCreateScriptContext, &eventlog.CreateScriptContext{ContextID: ctx.ID(), Known: known})
	return ctx, nil
}

// SetActiveContext makes ctx current. Nil deactivates.
func (s *Session) SetActiveContext(ctx *runtime.Context) error {
	if err := s.recording(); err != nil {
		return err
	}
	var id int64
	if ctx != nil {
		if _, ok := s.contexts[ctx.ID()]; !ok {
			return fmt.Errorf("activate context %d: not created by this session", ctx.ID())
		}
		id = ctx.ID()
	}
	if err := s.activate(ctx); err != nil {
		return fmt.Errorf("activate context %d: %w", id, err)
	}
	s.appendEntry(eventlog.KindSetActiveScriptContext, &eventlog.SetActiveScriptContext{ContextID: id})
	return nil
}

// DestroyContext records the end of ctx and forgets it.
func (s *Session) DestroyContext(ctx *runtime.Context) error {
	if err := s.recording(); err != nil {
		return err
	}
	known, ok := s.known[ctx.ID()]
	if !ok {
		return fmt.Errorf("destroy context %d: not live", ctx.ID())
	}
	s.appendEntry(eventlog.KindDeadScriptContext, &eventlog.DeadScriptContext{ContextID: ctx.ID(), Known: known})
	s.forgetContext(ctx, known)
	if s.active == ctx {
		return s.activate(nil)
	}
	return nil
}

func (s *Session) AllocateObject() (*runtime.Object, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	o := ctx.NewObject()
	s.appendEntry(eventlog.KindAllocateObject, &eventlog.AllocateObject{Result: s.tags.tagFor(o)})
	return o, nil
}

func (s *Session) AllocateExternalObject() (*runtime.Object, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	o, err := s.env.CreateExternalObject(s.active)
	if err != nil {
		return nil, err
	}
	s.externals[o] = true
	s.appendEntry(eventlog.KindAllocateExternalObject, &eventlog.AllocateExternalObject{Result: s.tags.tagFor(o)})
	return o, nil
}

func (s *Session) AllocateArray(length uint32) (*runtime.Object, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	a, err := array.New(ctx, length)
	if err != nil {
		return nil, err
	}
	s.appendEntry(eventlog.KindAllocateArray, &eventlog.AllocateArray{Length: length, Result: s.tags.tagFor(a.Object())})
	return a.Object(), nil
}

// AllocateFunction creates the host function called name.
func (s *Session) AllocateFunction(name string) (*runtime.Object, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	fn, err := s.env.CreateFunction(ctx, name)
	if err != nil {
		return nil, err
	}
	s.appendEntry(eventlog.KindAllocateFunction, &eventlog.AllocateFunction{Name: name, Result: s.tags.tagFor(fn)})
	return fn, nil
}

func (s *Session) GetProperty(obj runtime.Value, name string) (runtime.Value, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	p := &eventlog.GetProperty{Object: s.toVar(obj), Name: name}
	o, err := runtime.ToObject(ctx, obj)
	var v runtime.Value
	if err == nil {
		v, err = o.Get(ctx, runtime.Key(name))
	}
	if err != nil && !runtime.IsException(err) {
		return nil, err
	}
	p.Result = s.toVar(s.recordThrown(v, err))
	s.appendEntry(eventlog.KindGetProperty, p)
	return v, err
}

// SetProperty assigns obj[name]. It also serves host external functions
// through host.API.
func (s *Session) SetProperty(obj runtime.Value, name string, v runtime.Value) error {
	if err := s.recording(); err != nil {
		return err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return err
	}
	p := &eventlog.SetProperty{Object: s.toVar(obj), Name: name, Value: s.toVar(v)}
	o, err := runtime.ToObject(ctx, obj)
	if err == nil {
		err = o.Set(ctx, runtime.Key(name), v)
	}
	if err != nil && !runtime.IsException(err) {
		return err
	}
	s.recordThrown(nil, err)
	s.appendEntry(eventlog.KindSetProperty, p)
	return err
}

func (s *Session) GetIndex(obj, index runtime.Value) (runtime.Value, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	p := &eventlog.GetIndex{Object: s.toVar(obj), Index: s.toVar(index)}
	var v runtime.Value
	o, err := runtime.ToObject(ctx, obj)
	if err == nil {
		var key runtime.PropertyKey
		if key, err = runtime.ToPropertyKey(ctx, index); err == nil {
			v, err = o.Get(ctx, key)
		}
	}
	if err != nil && !runtime.IsException(err) {
		return nil, err
	}
	p.Result = s.toVar(s.recordThrown(v, err))
	s.appendEntry(eventlog.KindGetIndex, p)
	return v, err
}

func (s *Session) SetIndex(obj, index, v runtime.Value) error {
	if err := s.recording(); err != nil {
		return err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return err
	}
	p := &eventlog.SetIndex{Object: s.toVar(obj), Index: s.toVar(index), Value: s.toVar(v)}
	o, err := runtime.ToObject(ctx, obj)
	if err == nil {
		var key runtime.PropertyKey
		if key, err = runtime.ToPropertyKey(ctx, index); err == nil {
			err = o.Set(ctx, key, v)
		}
	}
	if err != nil && !runtime.IsException(err) {
		return err
	}
	s.recordThrown(nil, err)
	s.appendEntry(eventlog.KindSetIndex, p)
	return err
}

func (s *Session) recordConvert(kind eventlog.EventKind, v runtime.Value) (runtime.Value, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	p := &eventlog.Convert{Value: s.toVar(v)}
	out, err := convert(ctx, kind, v)
	if err != nil && !runtime.IsException(err) {
		return nil, err
	}
	p.Result = s.toVar(s.recordThrown(out, err))
	s.appendEntry(kind, p)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) ConvertToNumber(v runtime.Value) (float64, error) {
	out, err := s.recordConvert(eventlog.KindConvertToNumber, v)
	if err != nil {
		return 0, err
	}
	return float64(out.(runtime.Number)), nil
}

func (s *Session) ConvertToBoolean(v runtime.Value) (bool, error) {
	out, err := s.recordConvert(eventlog.KindConvertToBoolean, v)
	if err != nil {
		return false, err
	}
	return bool(out.(runtime.Bool)), nil
}

func (s *Session) ConvertToString(v runtime.Value) (string, error) {
	out, err := s.recordConvert(eventlog.KindConvertToString, v)
	if err != nil {
		return "", err
	}
	return string(out.(runtime.String)), nil
}

// Equals compares l and r with === when strict is set and == otherwise.
func (s *Session) Equals(l, r runtime.Value, strict bool) (bool, error) {
	if err := s.recording(); err != nil {
		return false, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return false, err
	}
	p := &eventlog.Equals{Left: s.toVar(l), Right: s.toVar(r), Strict: strict}
	eq, err := equals(ctx, l, r, strict)
	if err != nil && !runtime.IsException(err) {
		return false, err
	}
	s.recordThrown(nil, err)
	p.Result = eq && err == nil
	s.appendEntry(eventlog.KindEquals, p)
	return p.Result, err
}

// ParseScript loads source into the active context. The returned function
// runs the script; call it through CallFunction.
func (s *Session) ParseScript(uri, source string) (*runtime.Object, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	fn, err := s.env.ParseScript(ctx, uri, source)
	if err != nil {
		return nil, err
	}
	s.bodyCounter++
	s.appendEntry(eventlog.KindCodeParse, &eventlog.CodeParse{
		ContextID:   ctx.ID(),
		URI:         uri,
		Source:      source,
		BodyCounter: s.bodyCounter,
		Result:      s.tags.tagFor(fn),
	})
	s.env.NotifyScriptLoaded(ctx, uri, source)
	return fn, nil
}

// CallFunction calls fn in the active context. Called with no call in
// progress it is a root call; called from host code running inside a
// call, it is nested and records its depth and enclosing root call.
func (s *Session) CallFunction(fn, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	root := s.depth == 0
	info := &eventlog.CallInfo{LastSnapshotTime: s.lastSnapshotTime}
	if root {
		s.rootCalls++
		if n := s.opts.SnapshotInterval; n > 0 && s.rootCalls%n == 0 {
			if snap, err := s.capture(); err != nil {
				s.logger.Debug("skipping just-in-time snapshot", "error", err)
			} else {
				info.Snapshot = snap
			}
		}
	}
	p := &eventlog.CallExistingFunction{
		CallbackDepth: s.depth,
		Args:          s.toVars(append([]runtime.Value{fn, this}, args...)...),
		Info:          info,
	}
	e := s.appendEntry(eventlog.KindCallExistingFunction, p)
	info.CallEventTime = e.Time
	if root {
		s.rootTime = e.Time
		if info.Snapshot != nil {
			info.Snapshot.RestoreTime = e.Time
		}
	}
	info.TopLevelCallbackEventTime = s.rootTime

	s.depth++
	res, err := runtime.Call(ctx, fn, this, args)
	s.depth--

	info.LastNestedEventTime = s.clock.Current()
	info.LastLocation = ctx.LastLocation().String()
	if err != nil {
		exc, ok := runtime.AsException(err)
		if !ok {
			return nil, err
		}
		p.Thrown = true
		p.Result = s.toVar(exc.Value)
		if root {
			s.pending = exc.Value
		}
		return nil, err
	}
	p.Result = s.toVar(res)
	return res, nil
}

// Construct applies new to ctor in the active context.
func (s *Session) Construct(ctor runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if err := s.recording(); err != nil {
		return nil, err
	}
	ctx, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	p := &eventlog.ConstructCall{Args: s.toVars(append([]runtime.Value{ctor}, args...)...)}
	s.appendEntry(eventlog.KindConstructCall, p)
	res, err := runtime.Construct(ctx, ctor, args, nil)
	if err != nil {
		exc, ok := runtime.AsException(err)
		if !ok {
			return nil, err
		}
		p.Thrown = true
		p.Result = s.toVar(exc.Value)
		s.pending = exc.Value
		return nil, err
	}
	p.Result = s.toVar(res)
	return res, nil
}

// GetAndClearException returns and clears the pending exception.
func (s *Session) GetAndClearException() (runtime.Value, bool, error) {
	if err := s.recording(); err != nil {
		return nil, false, err
	}
	v, ok := s.pending, s.pending != nil
	s.pending = nil
	logged := v
	if !ok {
		logged = runtime.Undefined
	}
	s.appendEntry(eventlog.KindGetAndClearException, &eventlog.GetAndClearException{Result: s.toVar(logged)})
	return v, ok, nil
}

// SetException makes v the pending exception.
func (s *Session) SetException(v runtime.Value) error {
	if err := s.recording(); err != nil {
		return err
	}
	s.pending = v
	s.appendEntry(eventlog.KindSetException, &eventlog.SetException{Value: s.toVar(v)})
	return nil
}

// RegisterCallback keeps fn for a later root call and returns its id.
func (s *Session) RegisterCallback(fn runtime.Value) (int64, error) {
	if err := s.recording(); err != nil {
		return 0, err
	}
	if !runtime.IsCallable(fn) {
		return 0, fmt.Errorf("register callback: value is not callable")
	}
	s.nextCallbackID++
	id := s.nextCallbackID
	s.callbacks[id] = fn
	s.appendEntry(eventlog.KindCallbackOp, &eventlog.CallbackOp{Register: true, ID: id, Function: s.toVar(fn), CreatedBy: s.createdBy()})
	return id, nil
}

// CancelCallback drops a registered callback.
func (s *Session) CancelCallback(id int64) error {
	if err := s.recording(); err != nil {
		return err
	}
	fn, ok := s.callbacks[id]
	if !ok {
		return fmt.Errorf("cancel callback %d: not registered", id)
	}
	delete(s.callbacks, id)
	s.appendEntry(eventlog.KindCallbackOp, &eventlog.CallbackOp{ID: id, Function: s.toVar(fn), CreatedBy: s.createdBy()})
	return nil
}

func (s *Session) createdBy() int64 {
	if s.depth > 0 {
		return s.rootTime
	}
	return -1
}

// HostExit records the end of the host process.
func (s *Session) HostExit(code int32) error {
	if err := s.recording(); err != nil {
		return err
	}
	s.appendEntry(eventlog.KindHostExitProcess, &eventlog.HostExitProcess{ExitCode: code})
	s.logger.Info("host exit recorded", "session", s.ID, "code", code, "entries", s.log.Len())
	return nil
}

// TakeSnapshot records the active context's state as a seek target.
func (s *Session) TakeSnapshot() error {
	if err := s.recording(); err != nil {
		return err
	}
	snap, err := s.capture()
	if err != nil {
		return fmt.Errorf("take snapshot: %w", err)
	}
	e := s.appendEntry(eventlog.KindSnapshot, &eventlog.Snapshot{Data: snap})
	snap.RestoreTime = e.Time
	s.lastSnapshotTime = e.Time
	return nil
}
