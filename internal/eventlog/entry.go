package eventlog

import (
	"fmt"
	"sync/atomic"
)

// Entry is one recorded action. Kind determines the payload type; the two
// are checked against each other on construction and on every access.
type Entry struct {
	Kind    EventKind
	Time    int64
	payload Payload
}

// NewEntry builds an entry, panicking when payload does not belong to kind.
func NewEntry(kind EventKind, time int64, payload Payload) Entry {
	if payload == nil || !payload.accepts(kind) {
		panic(fmt.Sprintf("eventlog: payload %T does not match kind %s", payload, kind))
	}
	return Entry{Kind: kind, Time: time, payload: payload}
}

// Payload returns the untyped payload.
func (e *Entry) Payload() Payload { return e.payload }

// PayloadAs returns e's payload as T. Asking for a type that does not belong
// to e.Kind is a bug and panics.
func PayloadAs[T Payload](e *Entry) T {
	p, ok := e.payload.(T)
	if !ok || !p.accepts(e.Kind) {
		var want T
		panic(fmt.Sprintf("eventlog: entry %d is %s (%T), not %T", e.Time, e.Kind, e.payload, want))
	}
	return p
}

// Clock hands out event times. Times are strictly increasing and start at 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next time.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last time handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// IsRootCall reports whether e is a call made from the host event loop,
// outside any other call.
func IsRootCall(e *Entry) bool {
	if e.Kind != KindCallExistingFunction {
		return false
	}
	return PayloadAs[*CallExistingFunction](e).CallbackDepth == 0
}

// TimeInfo describes where an entry sits on the debugger's timeline.
type TimeInfo struct {
	// Time is the restore time of a snapshot or the call time of a root
	// call, and -1 for any other entry.
	Time       int64
	IsSnapshot bool
	IsRootCall bool
	// HasJITSnapshot is set for root calls carrying a just-in-time snapshot.
	HasJITSnapshot bool
}

// Found reports whether the entry had a time to resolve.
func (t TimeInfo) Found() bool { return t.Time >= 0 }

// AccessTimeInRootCallOrSnapshot resolves the timeline position of e.
func AccessTimeInRootCallOrSnapshot(e *Entry) TimeInfo {
	switch {
	case e.Kind == KindSnapshot:
		return TimeInfo{Time: PayloadAs[*Snapshot](e).Data.RestoreTime, IsSnapshot: true}
	case IsRootCall(e):
		info := PayloadAs[*CallExistingFunction](e).Info
		return TimeInfo{Time: info.CallEventTime, IsRootCall: true, HasJITSnapshot: info.Snapshot != nil}
	}
	return TimeInfo{Time: -1}
}
