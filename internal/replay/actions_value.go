package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/slab"
)

// settle applies the embedding API's exception protocol. A script
// exception becomes the pending exception and the operation's result is
// logged as a hole; any other error is a host failure.
func (s *Session) settle(e *eventlog.Entry, v runtime.Value, err error) (runtime.Value, error) {
	if err == nil {
		return v, nil
	}
	if exc, ok := runtime.AsException(err); ok {
		s.pending = exc.Value
		return runtime.Missing, nil
	}
	if IsReplayError(err) {
		return nil, err
	}
	return nil, hostError(e, e.Kind.String(), err)
}

// target inflates the object an API operation applies to.
func (s *Session) target(e *eventlog.Entry, v eventlog.Var) (*runtime.Context, *runtime.Object, error) {
	ctx, err := s.requireActive()
	if err != nil {
		return nil, nil, hostError(e, e.Kind.String(), err)
	}
	val, err := s.inflate(e, v)
	if err != nil {
		return nil, nil, err
	}
	o, err := runtime.ToObject(ctx, val)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, o, nil
}

func execGetAndClearException(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.GetAndClearException](e)
	v := s.pending
	s.pending = nil
	if v == nil {
		v = runtime.Undefined
	}
	return Continue{}, s.match(e, "pending exception", p.Result, v)
}

func emitGetAndClearException(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	writeVar(w, "result", eventlog.PayloadAs[*eventlog.GetAndClearException](e).Result)
	return nil
}

func parseGetAndClearException(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.GetAndClearException{Result: d.readVar("result")}
}

func execSetException(s *Session, e *eventlog.Entry) (Outcome, error) {
	v, err := s.inflate(e, eventlog.PayloadAs[*eventlog.SetException](e).Value)
	if err != nil {
		return nil, err
	}
	s.pending = v
	return Continue{}, nil
}

func emitSetException(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	writeVar(w, "value", eventlog.PayloadAs[*eventlog.SetException](e).Value)
	return nil
}

func parseSetException(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	return &eventlog.SetException{Value: d.readVar("value")}
}

func execGetProperty(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.GetProperty](e)
	ctx, o, err := s.target(e, p.Object)
	var v runtime.Value
	if err == nil {
		v, err = o.Get(ctx, runtime.Key(p.Name))
	}
	v, err = s.settle(e, v, err)
	if err != nil {
		return nil, err
	}
	return Continue{}, s.match(e, "property "+p.Name, p.Result, v)
}

func emitGetProperty(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.GetProperty](e)
	writeVar(w, "object", p.Object)
	w.WriteString("name", p.Name)
	writeVar(w, "result", p.Result)
	return nil
}

func parseGetProperty(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.GetProperty{}
	p.Object = d.readVar("object")
	p.Name, p.NameRef = d.str("name")
	p.Result = d.readVar("result")
	return p
}

func unloadGetProperty(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.GetProperty](e)
	s.slab.Unlink(p.NameRef)
	p.Name, p.NameRef = "", slab.Ref{}
}

func execSetProperty(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.SetProperty](e)
	ctx, o, err := s.target(e, p.Object)
	if err == nil {
		var v runtime.Value
		if v, err = s.inflate(e, p.Value); err != nil {
			return nil, err
		}
		err = o.Set(ctx, runtime.Key(p.Name), v)
	}
	if _, err := s.settle(e, nil, err); err != nil {
		return nil, err
	}
	return Continue{}, nil
}

func emitSetProperty(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.SetProperty](e)
	writeVar(w, "object", p.Object)
	w.WriteString("name", p.Name)
	writeVar(w, "value", p.Value)
	return nil
}

func parseSetProperty(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.SetProperty{}
	p.Object = d.readVar("object")
	p.Name, p.NameRef = d.str("name")
	p.Value = d.readVar("value")
	return p
}

func unloadSetProperty(s *Session, e *eventlog.Entry) {
	p := eventlog.PayloadAs[*eventlog.SetProperty](e)
	s.slab.Unlink(p.NameRef)
	p.Name, p.NameRef = "", slab.Ref{}
}

// indexKey converts a recorded index value the way a computed member
// access does.
func (s *Session) indexKey(e *eventlog.Entry, ctx *runtime.Context, v eventlog.Var) (runtime.PropertyKey, error) {
	idx, err := s.inflate(e, v)
	if err != nil {
		return runtime.PropertyKey{}, err
	}
	return runtime.ToPropertyKey(ctx, idx)
}

func execGetIndex(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.GetIndex](e)
	ctx, o, err := s.target(e, p.Object)
	var v runtime.Value
	if err == nil {
		var key runtime.PropertyKey
		if key, err = s.indexKey(e, ctx, p.Index); err == nil {
			v, err = o.Get(ctx, key)
		}
	}
	v, err = s.settle(e, v, err)
	if err != nil {
		return nil, err
	}
	return Continue{}, s.match(e, "element", p.Result, v)
}

func emitGetIndex(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.GetIndex](e)
	writeVar(w, "object", p.Object)
	writeVar(w, "index", p.Index)
	writeVar(w, "result", p.Result)
	return nil
}

func parseGetIndex(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.GetIndex{}
	p.Object = d.readVar("object")
	p.Index = d.readVar("index")
	p.Result = d.readVar("result")
	return p
}

func execSetIndex(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.SetIndex](e)
	ctx, o, err := s.target(e, p.Object)
	if err == nil {
		var key runtime.PropertyKey
		if key, err = s.indexKey(e, ctx, p.Index); err == nil {
			var v runtime.Value
			if v, err = s.inflate(e, p.Value); err != nil {
				return nil, err
			}
			err = o.Set(ctx, key, v)
		}
	}
	if _, err := s.settle(e, nil, err); err != nil {
		return nil, err
	}
	return Continue{}, nil
}

func emitSetIndex(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.SetIndex](e)
	writeVar(w, "object", p.Object)
	writeVar(w, "index", p.Index)
	writeVar(w, "value", p.Value)
	return nil
}

func parseSetIndex(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.SetIndex{}
	p.Object = d.readVar("object")
	p.Index = d.readVar("index")
	p.Value = d.readVar("value")
	return p
}

// convert applies the conversion a Convert kind names.
func convert(ctx *runtime.Context, kind eventlog.EventKind, v runtime.Value) (runtime.Value, error) {
	switch kind {
	case eventlog.KindConvertToNumber:
		f, err := runtime.ToNumber(ctx, v)
		return runtime.Number(f), err
	case eventlog.KindConvertToBoolean:
		return runtime.Bool(runtime.ToBoolean(v)), nil
	case eventlog.KindConvertToString:
		str, err := runtime.ToString(ctx, v)
		return runtime.String(str), err
	}
	panic(fmt.Sprintf("replay: %s is not a conversion", kind))
}

func execConvert(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.Convert](e)
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, e.Kind.String(), err)
	}
	in, err := s.inflate(e, p.Value)
	if err != nil {
		return nil, err
	}
	cv, cerr := convert(ctx, e.Kind, in)
	out, err := s.settle(e, cv, cerr)
	if err != nil {
		return nil, err
	}
	return Continue{}, s.match(e, "conversion", p.Result, out)
}

func emitConvert(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.Convert](e)
	writeVar(w, "value", p.Value)
	writeVar(w, "result", p.Result)
	return nil
}

func parseConvert(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.Convert{}
	p.Value = d.readVar("value")
	p.Result = d.readVar("result")
	return p
}

// equals compares two values. A loose comparison can run script through
// ToPrimitive and so can throw.
func equals(ctx *runtime.Context, l, r runtime.Value, strict bool) (bool, error) {
	if strict {
		return runtime.StrictEquals(l, r), nil
	}
	return runtime.LooseEquals(ctx, l, r)
}

func execEquals(s *Session, e *eventlog.Entry) (Outcome, error) {
	p := eventlog.PayloadAs[*eventlog.Equals](e)
	ctx, err := s.requireActive()
	if err != nil {
		return nil, hostError(e, "equals", err)
	}
	vals, err := s.inflateAll(e, []eventlog.Var{p.Left, p.Right})
	if err != nil {
		return nil, err
	}
	eq, err := equals(ctx, vals[0], vals[1], p.Strict)
	if _, err := s.settle(e, nil, err); err != nil {
		return nil, err
	}
	if eq != p.Result {
		return nil, newError(ErrCodeResultMismatch, e, "equality: recorded %t, replay produced %t", p.Result, eq)
	}
	return Continue{}, nil
}

func emitEquals(_ *Session, w logio.Writer, e *eventlog.Entry) error {
	p := eventlog.PayloadAs[*eventlog.Equals](e)
	writeVar(w, "left", p.Left)
	writeVar(w, "right", p.Right)
	w.WriteBool("strict", p.Strict)
	w.WriteBool("result", p.Result)
	return nil
}

func parseEquals(d *decoder, _ eventlog.EventKind) eventlog.Payload {
	p := &eventlog.Equals{}
	p.Left = d.readVar("left")
	p.Right = d.readVar("right")
	p.Strict = d.r.ReadBool("strict")
	p.Result = d.r.ReadBool("result")
	return p
}
