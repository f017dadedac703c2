package replay

import (
	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/runtime"
)

// hooks routes a context's non-deterministic inputs through the session:
// recorded while recording, read back from the log while replaying.
type hooks struct {
	s *Session
}

func (h hooks) Double(_ *runtime.Context, compute func() float64) (float64, error) {
	s := h.s
	if s.mode == ModeRecord {
		v := compute()
		s.appendEntry(eventlog.KindDouble, &eventlog.Double{Value: v})
		return v, nil
	}
	e, err := s.next(eventlog.KindDouble)
	if err != nil {
		return 0, err
	}
	return eventlog.PayloadAs[*eventlog.Double](e).Value, nil
}

func (h hooks) String(_ *runtime.Context, compute func() string) (string, error) {
	s := h.s
	if s.mode == ModeRecord {
		v := compute()
		s.appendEntry(eventlog.KindString, &eventlog.String{Value: v})
		return v, nil
	}
	e, err := s.next(eventlog.KindString)
	if err != nil {
		return "", err
	}
	return eventlog.PayloadAs[*eventlog.String](e).Value, nil
}

func (h hooks) RandomSeed(_ *runtime.Context, compute func() (uint64, uint64)) (uint64, uint64, error) {
	s := h.s
	if s.mode == ModeRecord {
		s0, s1 := compute()
		s.appendEntry(eventlog.KindRandomSeed, &eventlog.RandomSeed{Seed0: s0, Seed1: s1})
		return s0, s1, nil
	}
	e, err := s.next(eventlog.KindRandomSeed)
	if err != nil {
		return 0, 0, err
	}
	p := eventlog.PayloadAs[*eventlog.RandomSeed](e)
	return p.Seed0, p.Seed1, nil
}

// ExternalCall records a call into host code, or replays it without
// running the host: the calls the host made back into script are replayed
// from the log, then the recorded result is returned or rethrown.
func (h hooks) ExternalCall(_ *runtime.Context, fn *runtime.Object, this runtime.Value, args []runtime.Value, invoke func() (runtime.Value, error)) (runtime.Value, error) {
	s := h.s
	if s.mode == ModeRecord {
		return s.recordExternalCall(fn, this, args, invoke)
	}
	return s.replayExternalCall(fn, this, args)
}

func (s *Session) recordExternalCall(fn *runtime.Object, this runtime.Value, args []runtime.Value, invoke func() (runtime.Value, error)) (runtime.Value, error) {
	p := &eventlog.ExternalCall{
		RootDepth: s.depth,
		Function:  s.toVar(fn),
		Args:      s.toVars(append([]runtime.Value{this}, args...)...),
	}
	s.appendEntry(eventlog.KindExternalCall, p)

	s.depth++
	res, err := invoke()
	s.depth--

	p.LastNestedEventTime = s.clock.Current()
	if err != nil {
		exc, ok := runtime.AsException(err)
		if !ok {
			return nil, err
		}
		p.Thrown = true
		p.Result = s.toVar(exc.Value)
		return nil, err
	}
	p.Result = s.toVar(res)
	return res, nil
}

func (s *Session) replayExternalCall(fn *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	e, err := s.next(eventlog.KindExternalCall)
	if err != nil {
		return nil, err
	}
	p := eventlog.PayloadAs[*eventlog.ExternalCall](e)
	if p.RootDepth != s.depth {
		return nil, newError(ErrCodeLogCorrupt, e, "external call recorded at depth %d replayed at depth %d", p.RootDepth, s.depth)
	}
	if err := s.match(e, "external function", p.Function, fn); err != nil {
		return nil, err
	}
	if len(p.Args) != len(args)+1 {
		return nil, newError(ErrCodeResultMismatch, e, "external call with %d arguments, recorded %d", len(args), len(p.Args)-1)
	}
	if err := s.match(e, "receiver", p.Args[0], this); err != nil {
		return nil, err
	}
	for i, a := range args {
		if err := s.match(e, "argument", p.Args[i+1], a); err != nil {
			return nil, err
		}
	}

	s.depth++
	for s.cursor < s.log.Len() {
		ne := s.log.At(s.cursor)
		if ne.Time > p.LastNestedEventTime {
			break
		}
		s.cursor++
		out, err := s.execute(ne)
		if err != nil {
			s.depth--
			return nil, err
		}
		if IsAbort(out) {
			s.depth--
			return nil, newError(ErrCodeLogCorrupt, ne, "abort inside an external call")
		}
	}
	s.depth--

	res, err := s.inflate(e, p.Result)
	if err != nil {
		return nil, err
	}
	if p.Thrown {
		return nil, runtime.Throw(res)
	}
	return res, nil
}
