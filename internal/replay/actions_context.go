package replay

import (
	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/slab"
)

// Snapshots are checkpoints: forward replay only checks that the context
// they describe is live. Seeking is what restores them.

func execSnapshot(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.Snapshot](e)
	if _, ok := s.contexts[p.Data.ContextID]; !ok {
		return nil, newError(ErrCodeLogCorrupt, e, "snapshot of dead context %d", p.Data.ContextID)
	}
	s.lastSnapshotTime = p.Data.RestoreTime
	return Continue{}, nil
}

func emitSnapshot(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	writeSnapshot(w, "data", eventlog.PayloadAs[*eventlog.Snapshot](e).Data)
	return nil
}

func parseSnapshot(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.Snapshot{Data: d.readSnapshot("data")}
}

func emitRandomSeed(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.RandomSeed](e)
	w.WriteUint64("seed0", p.Seed0)
	w.WriteUint64("seed1", p.Seed1)
	return nil
}

func parseRandomSeed(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.RandomSeed{Seed0: d.r.ReadUint64("seed0"), Seed1: d.r.ReadUint64("seed1")}
}

func emitDouble(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	w.WriteDouble("value", eventlog.PayloadAs[*eventlog.Double](e).Value)
	return nil
}

func parseDouble(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.Double{Value: d.r.ReadDouble("value")}
}

func emitString(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	w.WriteString("value", eventlog.PayloadAs[*eventlog.String](e).Value)
	return nil
}

func parseString(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	v, ref := d.str("value")
	return &eventlog.String{Value: v, Ref: ref}
}

func unloadString(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.String](e)
	s.slab.Unlink(p.Ref)
	p.Value, p.Ref = "", slab.Ref{}
}

func execCallbackOp(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.CallbackOp](e)
	if !p.Register {
		if _, ok := s.callbacks[p.ID]; !ok {
			return nil, newError(ErrCodeLogCorrupt, e, "cancel of unknown callback %d", p.ID)
		}
		delete(s.callbacks, p.ID)
		return Continue{}, nil
	}
	fn, err := s.inflate(e, p.Function)
	if err != nil {
		return nil, err
	}
	s.callbacks[p.ID] = fn
	return Continue{}, nil
}

func emitCallbackOp(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.CallbackOp](e)
	w.WriteBool("register", p.Register)
	w.WriteInt64("id", p.ID)
	writeVar(w, "function", p.Function)
	w.WriteInt64("createdBy", p.CreatedBy)
	return nil
}

func parseCallbackOp(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.CallbackOp{}
	p.Register = d.r.ReadBool("register")
	p.ID = d.r.ReadInt64("id")
	p.Function = d.readVar("function")
	p.CreatedBy = d.r.ReadInt64("createdBy")
	return p
}

// bindKnown ties a context's well-known values to the tags they were
// recorded under.
func (s *Session) bindKnown(e *eventlog.Entry, ctx *runtime.Context, k eventlog.KnownObjects) error {
	vals := [5]runtime.Value{ctx.Global, runtime.Undefined, runtime.Null, runtime.Bool(true), runtime.Bool(false)}
	for i, tag := range k.Tags() {
		if err := s.bindResult(e, tag, vals[i]); err != nil {
			return err
		}
	}
	s.known[ctx.ID()] = k
	return nil
}

func execCreateContext(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.CreateScriptContext](e)
	if _, ok := s.contexts[p.ContextID]; ok {
		return nil, newError(ErrCodeLogCorrupt, e, "context %d already exists", p.ContextID)
	}
	ctx, err := s.env.CreateContext(p.ContextID)
	if err != nil {
		return nil, hostError(e, "create context", err)
	}
	s.installContext(ctx)
	if err := s.bindKnown(e, ctx, p.Known); err != nil {
		return nil, err
	}
	return Continue{}, nil
}

func emitCreateContext(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.CreateScriptContext](e)
	w.WriteInt64("context", p.ContextID)
	writeKnown(w, "known", p.Known)
	return nil
}

func parseCreateContext(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.CreateScriptContext{}
	p.ContextID = d.r.ReadInt64("context")
	p.Known = d.readKnown("known")
	return p
}

func execSetActiveContext(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.SetActiveScriptContext](e)
	var ctx *runtime.Context
	if p.ContextID != 0 {
		var ok bool
		if ctx, ok = s.contexts[p.ContextID]; !ok {
			return nil, newError(ErrCodeLogCorrupt, e, "activate of unknown context %d", p.ContextID)
		}
	}
	if err := s.activate(ctx); err != nil {
		return nil, hostError(e, "activate context", err)
	}
	return Continue{}, nil
}

func emitSetActiveContext(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	w.WriteInt64("context", eventlog.PayloadAs[*eventlog.SetActiveScriptContext](e).ContextID)
	return nil
}

func parseSetActiveContext(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.SetActiveScriptContext{ContextID: d.r.ReadInt64("context")}
}

// execDeadContext checks that the recorded tags still name the context's
// well-known values, then forgets the context.
func execDeadContext(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.DeadScriptContext](e)
	ctx, ok := s.contexts[p.ContextID]
	if !ok {
		return nil, newError(ErrCodeLogCorrupt, e, "destroy of unknown context %d", p.ContextID)
	}
	want := [5]runtime.Value{ctx.Global, runtime.Undefined, runtime.Null, runtime.Bool(true), runtime.Bool(false)}
	for i, tag := range p.Known.Tags() {
		got, ok := s.tags.resolve(tag)
		if !ok {
			return nil, newError(ErrCodeUnknownTag, e, "well-known tag %s is not bound", tag)
		}
		if got != want[i] {
			return nil, newError(ErrCodeResultMismatch, e, "well-known tag %s names the wrong value", tag)
		}
	}
	s.forgetContext(ctx, p.Known)
	if s.active == ctx {
		if err := s.activate(nil); err != nil {
			return nil, hostError(e, "deactivate context", err)
		}
	}
	return Continue{}, nil
}

func (s *Session) forgetContext(ctx *runtime.Context, k eventlog.KnownObjects) {
	for _, tag := range k.Tags() {
		s.tags.drop(tag)
	}
	ctx.SetHooks(nil)
	delete(s.contexts, ctx.ID())
	delete(s.known, ctx.ID())
}

func emitDeadContext(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.DeadScriptContext](e)
	w.WriteInt64("context", p.ContextID)
	writeKnown(w, "known", p.Known)
	return nil
}

func parseDeadContext(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.DeadScriptContext{}
	p.ContextID = d.r.ReadInt64("context")
	p.Known = d.readKnown("known")
	return p
}

func execHostExit(_ *Session, e *eventlog.Entry) (Outcome, error) {
	return AbortEndOfLog{ExitCode: eventlog.PayloadAs[*eventlog.HostExitProcess](e).ExitCode}, nil
}

func emitHostExit(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	w.WriteInt32("code", eventlog.PayloadAs[*eventlog.HostExitProcess](e).ExitCode)
	return nil
}

func parseHostExit(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.HostExitProcess{ExitCode: d.r.ReadInt32("code")}
}

func execAllocateObject(s *Session, e *eventlog.Entry) (Outcome, error) {
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "allocate object", err)
	}
	o := ctx.NewObject()
	return Continue{}, s.bindResult(e, eventlog.PayloadAs[*eventlog.AllocateObject](e).Result, o)
}

func emitAllocateObject(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	writeTag(w, "result", eventlog.PayloadAs[*eventlog.AllocateObject](e).Result)
	return nil
}

func parseAllocateObject(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.AllocateObject{Result: d.readTag("result")}
}

func execAllocateExternal(s *Session, e *eventlog.Entry) (Outcome, error) {
	o, err := s.env.CreateExternalObject(s.active)
	if err != nil {
		return nil, hostError(e, "create external object", err)
	}
	s.externals[o] = true
	return Continue{}, s.bindResult(e, eventlog.PayloadAs[*eventlog.AllocateExternalObject](e).Result, o)
}

func emitAllocateExternal(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	writeTag(w, "result", eventlog.PayloadAs[*eventlog.AllocateExternalObject](e).Result)
	return nil
}

func parseAllocateExternal(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.AllocateExternalObject{Result: d.readTag("result")}
}

func execAllocateArray(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.AllocateArray](e)
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "allocate array", err)
	}
	a, err := array.New(ctx, p.Length)
	if err != nil {
		return nil, hostError(e, "allocate array", err)
	}
	return Continue{}, s.bindResult(e, p.Result, a.Object())
}

func emitAllocateArray(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.AllocateArray](e)
	w.WriteUint32("length", p.Length)
	writeTag(w, "result", p.Result)
	return nil
}

func parseAllocateArray(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.AllocateArray{}
	p.Length = d.r.ReadUint32("length")
	p.Result = d.readTag("result")
	return p
}

func execAllocateFunction(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.AllocateFunction](e)
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "allocate function", err)
	}
	fn, err := s.env.CreateFunction(ctx, p.Name)
	if err != nil {
		return nil, hostError(e, "create function "+p.Name, err)
	}
	return Continue{}, s.bindResult(e, p.Result, fn)
}

func emitAllocateFunction(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.AllocateFunction](e)
	w.WriteString("name", p.Name)
	writeTag(w, "result", p.Result)
	return nil
}

func parseAllocateFunction(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.AllocateFunction{}
	p.Name, p.NameRef = d.str("name")
	p.Result = d.readTag("result")
	return p
}

func unloadAllocateFunction(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.AllocateFunction](e)
	s.slab.Unlink(p.NameRef)
	p.Name, p.NameRef = "", slab.Ref{}
}
