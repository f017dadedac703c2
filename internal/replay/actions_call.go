package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/slab"
)

func execCodeParse(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.CodeParse](e)
	ctx, ok := s.contexts[p.ContextID]
	if !ok {
		return nil, newError(ErrCodeLogCorrupt, e, "parse in unknown context %d", p.ContextID)
	}
	fn, err := s.env.ParseScript(ctx, p.URI, p.Source)
	if err != nil {
		return nil, hostError(e, "parse "+p.URI, err)
	}
	if err := s.bindResult(e, p.Result, fn); err != nil {
		return nil, err
	}
	s.bodyCounter = max(s.bodyCounter, p.BodyCounter)
	s.env.NotifyScriptLoaded(ctx, p.URI, p.Source)
	return Continue{}, nil
}

// emitCodeParse writes the source to the body store when the session has
// one, and inline otherwise.
func emitCodeParse(s *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.CodeParse](e)
	w.WriteInt64("context", p.ContextID)
	w.WriteString("uri", p.URI)
	w.WriteUint64("counter", p.BodyCounter)
	writeTag(w, "result", p.Result)
	inline := s.opts.Bodies == nil
	w.WriteBool("inline", inline)
	if inline {
		w.WriteString("source", p.Source)
		return nil
	}
	if err := s.opts.Bodies.WriteBody(p.BodyCounter, p.URI, p.Source); err != nil {
		return fmt.Errorf("write script body %d: %w", p.BodyCounter, err)
	}
	return nil
}

func parseCodeParse(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.CodeParse{}
	p.ContextID = d.r.ReadInt64("context")
	p.URI = d.r.ReadString("uri")
	p.BodyCounter = d.r.ReadUint64("counter")
	p.Result = d.readTag("result")
	if d.r.ReadBool("inline") {
		p.Source, p.SourceRef = d.str("source")
		return p
	}
	if !d.ok() {
		return p
	}
	if d.s.opts.Bodies == nil {
		d.fail("script body %d stored out of line but no body store is configured", p.BodyCounter)
		return p
	}
	src, err := d.s.opts.Bodies.ReadBody(p.BodyCounter, p.URI)
	if err != nil {
		d.fail("read script body %d: %v", p.BodyCounter, err)
		return p
	}
	p.Source, p.SourceRef = d.s.slab.AllocString(src)
	return p
}

func unloadCodeParse(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.CodeParse](e)
	s.slab.Unlink(p.SourceRef)
	p.Source, p.SourceRef = "", slab.Ref{}
}

// execCall replays a call made through the embedding API. A root call
// resets the call bookkeeping to its own time first; a nested call must
// arrive at the depth it was recorded at.
func execCall(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.CallExistingFunction](e)
	info := p.Info
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "call", err)
	}
	vals, err := s.inflateAll(e, p.Args)
	if err != nil {
		return nil, err
	}
	root := p.CallbackDepth == 0
	if root {
		s.depth = 0
		s.rootTime = info.TopLevelCallbackEventTime
		s.rootCalls++
	} else if p.CallbackDepth != s.depth {
		return nil, newError(ErrCodeLogCorrupt, e, "call recorded at depth %d replayed at depth %d", p.CallbackDepth, s.depth)
	}

	s.depth++
	res, callErr := runtime.Call(ctx, vals[0], vals[1], vals[2:])
	s.depth--
	if callErr != nil && !runtime.IsException(callErr) {
		if IsReplayError(callErr) {
			return nil, callErr
		}
		return nil, hostError(e, "call", callErr)
	}
	if s.cursor < s.log.Len() && s.log.At(s.cursor).Time <= info.LastNestedEventTime {
		return nil, newError(ErrCodeLogCorrupt, e, "call returned before its nested events at time %d", s.log.At(s.cursor).Time)
	}

	exc, threw := runtime.AsException(callErr)
	if threw != p.Thrown {
		return nil, newError(ErrCodeResultMismatch, e, "call threw=%t, recorded threw=%t", threw, p.Thrown)
	}
	if !threw {
		return Continue{}, s.match(e, "call result", p.Result, res)
	}
	if err := s.match(e, "thrown value", p.Result, exc.Value); err != nil {
		return nil, err
	}
	if !root {
		return Continue{}, nil
	}
	s.pending = exc.Value
	if dbg := s.opts.Debugger; dbg != nil {
		loc := ctx.LastLocation()
		if dbg.InterceptUncaught(loc, exc.Value) {
			return AbortUncaughtException{Location: loc, Message: exc.Error()}, nil
		}
	}
	return Continue{}, nil
}

func writeCallInfo(w logio.Writer, key string, info *eventlog.CallInfo) {
	w.WriteRecordStart(key)
	w.WriteInt64("call", info.CallEventTime)
	w.WriteInt64("top", info.TopLevelCallbackEventTime)
	w.WriteInt64("nested", info.LastNestedEventTime)
	w.WriteInt64("lastSnapshot", info.LastSnapshotTime)
	w.WriteString("location", info.LastLocation)
	w.WriteBool("jit", info.Snapshot != nil)
	if info.Snapshot != nil {
		writeSnapshot(w, "snapshot", info.Snapshot)
	}
	w.WriteRecordEnd()
}

func (d *decoder) readCallInfo(key string) (*eventlog.CallInfo, slab.Ref) {
	infos, ref := slab.Alloc[eventlog.CallInfo](d.s.slab, 1)
	info := &infos[0]
	d.r.ReadRecordStart(key)
	info.CallEventTime = d.r.ReadInt64("call")
	info.TopLevelCallbackEventTime = d.r.ReadInt64("top")
	info.LastNestedEventTime = d.r.ReadInt64("nested")
	info.LastSnapshotTime = d.r.ReadInt64("lastSnapshot")
	info.LastLocation, info.ExecRef = d.str("location")
	if d.r.ReadBool("jit") {
		info.Snapshot = d.readSnapshot("snapshot")
	}
	d.r.ReadRecordEnd()
	return info, ref
}

func emitCall(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.CallExistingFunction](e)
	w.WriteInt32("depth", p.CallbackDepth)
	writeVars(w, "args", p.Args)
	writeVar(w, "result", p.Result)
	w.WriteBool("thrown", p.Thrown)
	writeCallInfo(w, "info", p.Info)
	return nil
}

func parseCall(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.CallExistingFunction{}
	p.CallbackDepth = d.r.ReadInt32("depth")
	p.Args, p.ArgsRef = d.readVars("args")
	if d.ok() && len(p.Args) < 2 {
		d.fail("call with %d values; callee and receiver are required", len(p.Args))
	}
	p.Result = d.readVar("result")
	p.Thrown = d.r.ReadBool("thrown")
	p.Info, p.InfoRef = d.readCallInfo("info")
	return p
}

func unloadCall(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.CallExistingFunction](e)
	s.slab.Unlink(p.ArgsRef)
	if p.Info != nil {
		s.slab.Unlink(p.Info.ExecRef)
	}
	s.slab.Unlink(p.InfoRef)
	p.Args, p.ArgsRef = nil, slab.Ref{}
	if !p.InfoRef.IsZero() {
		p.Info = nil
	}
	p.InfoRef = slab.Ref{}
}

func execConstruct(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.ConstructCall](e)
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "construct", err)
	}
	vals, err := s.inflateAll(e, p.Args)
	if err != nil {
		return nil, err
	}
	res, err := runtime.Construct(ctx, vals[0], vals[1:], nil)
	if err != nil && !runtime.IsException(err) {
		if IsReplayError(err) {
			return nil, err
		}
		return nil, hostError(e, "construct", err)
	}
	exc, threw := runtime.AsException(err)
	if threw != p.Thrown {
		return nil, newError(ErrCodeResultMismatch, e, "construct threw=%t, recorded threw=%t", threw, p.Thrown)
	}
	if threw {
		s.pending = exc.Value
		return Continue{}, s.match(e, "thrown value", p.Result, exc.Value)
	}
	return Continue{}, s.match(e, "constructed value", p.Result, res)
}

func emitConstruct(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.ConstructCall](e)
	writeVars(w, "args", p.Args)
	writeVar(w, "result", p.Result)
	w.WriteBool("thrown", p.Thrown)
	return nil
}

func parseConstruct(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.ConstructCall{}
	p.Args, p.ArgsRef = d.readVars("args")
	if d.ok() && len(p.Args) < 1 {
		d.fail("construct without a constructor")
	}
	p.Result = d.readVar("result")
	p.Thrown = d.r.ReadBool("thrown")
	return p
}

func unloadConstruct(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.ConstructCall](e)
	s.slab.Unlink(p.ArgsRef)
	p.Args, p.ArgsRef = nil, slab.Ref{}
}

func emitExternalCall(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.ExternalCall](e)
	w.WriteInt32("depth", p.RootDepth)
	writeVar(w, "function", p.Function)
	writeVars(w, "args", p.Args)
	writeVar(w, "result", p.Result)
	w.WriteBool("thrown", p.Thrown)
	w.WriteInt64("nested", p.LastNestedEventTime)
	return nil
}

func parseExternalCall(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.ExternalCall{}
	p.RootDepth = d.r.ReadInt32("depth")
	p.Function = d.readVar("function")
	p.Args, p.ArgsRef = d.readVars("args")
	p.Result = d.readVar("result")
	p.Thrown = d.r.ReadBool("thrown")
	p.LastNestedEventTime = d.r.ReadInt64("nested")
	return p
}

func unloadExternalCall(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.ExternalCall](e)
	s.slab.Unlink(p.ArgsRef)
	p.Args, p.ArgsRef = nil, slab.Ref{}
}
