package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
)

// Replayer drives a replay session through its log.
type Replayer struct {
	s *Session
}

// NewReplayer returns a driver for s, which must be a replay session.
func NewReplayer(s *Session) (*Replayer, error) {
	if s.mode != ModeReplay {
		return nil, fmt.Errorf("new replayer: session is in %s mode", s.mode)
	}
	return &Replayer{s: s}, nil
}

// Session returns the session being replayed.
func (r *Replayer) Session() *Session { return r.s }

// Done reports whether every entry has been executed.
func (r *Replayer) Done() bool { return r.s.cursor >= r.s.log.Len() }

// Step executes the next entry. A log that ends without a host exit
// aborts with exit code 0.
func (r *Replayer) Step() (Outcome, error) {
	s := r.s
	if r.Done() {
		return AbortEndOfLog{}, nil
	}
	e := s.log.At(s.cursor)
	s.cursor++
	out, err := s.execute(e)
	if err != nil {
		s.logger.Warn("replay failed", "session", s.ID, "time", e.Time, "kind", e.Kind, "error", err)
		return nil, err
	}
	if IsAbort(out) {
		s.depth = 0
		if s.opts.Debugger != nil {
			s.opts.Debugger.Reset()
		}
	}
	return out, nil
}

// Run steps until the replay aborts or fails.
func (r *Replayer) Run() (Outcome, error) {
	for {
		out, err := r.Step()
		if err != nil {
			return nil, err
		}
		if IsAbort(out) {
			r.s.logger.Info("replay finished", "session", r.s.ID, "outcome", fmt.Sprintf("%T", out), "cursor", r.s.cursor)
			return out, nil
		}
	}
}

// SeekRootCall moves the replay to just before the root call recorded at
// time. The nearest earlier snapshot (an explicit snapshot entry or a root
// call's just-in-time snapshot) is restored and replay runs forward from
// it; with no snapshot the replay restarts from the first entry.
func (r *Replayer) SeekRootCall(time int64) error {
	s := r.s
	target, ok := s.log.Find(time)
	if !ok {
		return newError(ErrCodeLogCorrupt, nil, "no entry at time %d", time)
	}
	te := s.log.At(target)
	if !eventlog.IsRootCall(te) {
		return newError(ErrCodeKindMismatch, te, "seek target is not a root call")
	}

	resume := 0
	var snap *eventlog.SnapshotData
	for i := target; i >= 0; i-- {
		e := s.log.At(i)
		ti := eventlog.AccessTimeInRootCallOrSnapshot(e)
		if ti.IsSnapshot {
			snap, resume = eventlog.PayloadAs[*eventlog.Snapshot](e).Data, i+1
			break
		}
		if ti.HasJITSnapshot {
			snap, resume = eventlog.PayloadAs[*eventlog.CallExistingFunction](e).Info.Snapshot, i
			break
		}
	}

	if snap != nil {
		if err := s.restore(snap); err != nil {
			return err
		}
	} else {
		s.resetState()
		if err := s.env.ActivateContext(nil); err != nil {
			return hostError(nil, "reset host", err)
		}
	}
	s.cursor = resume
	if s.opts.Debugger != nil {
		s.opts.Debugger.Reset()
	}
	s.logger.Debug("seeking", "target", time, "resume", resume, "snapshot", snap != nil)

	for s.cursor < target {
		out, err := r.Step()
		if err != nil {
			return err
		}
		if IsAbort(out) {
			return newError(ErrCodeLogCorrupt, s.log.At(s.cursor-1), "replay aborted before reaching time %d", time)
		}
	}
	return nil
}
