// Package replay records script execution into an event log and replays
// it deterministically.
//
// A Session is the explicit state every handler receives: the log, the
// slab that owns parsed payload memory, the host environment, the tag
// table mapping log tags to live objects, and call bookkeeping. In record
// mode the recorder API and the context hooks append entries. In replay
// mode a Replayer executes entries one by one and the hooks consume the
// values the log holds instead of asking the host.
package replay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/host"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/slab"
)

// FormatVersion is written in every log header.
const FormatVersion = 1

// Mode selects whether a session writes or consumes its log.
type Mode int

const (
	ModeRecord Mode = iota
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeRecord {
		return "record"
	}
	return "replay"
}

// ErrNotRecording is returned by recorder operations on a replay session.
var ErrNotRecording = errors.New("replay: session is not recording")

// Options configures a session.
type Options struct {
	// BlockSize is the number of entries per log block.
	BlockSize int
	// SnapshotInterval takes a just-in-time snapshot before every Nth
	// root call while recording. Zero disables them.
	SnapshotInterval int
	// Debugger intercepts uncaught exceptions during replay. Nil lets
	// them through.
	Debugger Debugger
	// Bodies stores script source out of line. Nil writes it inline.
	Bodies logio.BodyStore
	// SlabBlockBytes sizes the payload slab blocks.
	SlabBlockBytes int
	Logger         *slog.Logger
}

// Session is one recording or replay.
type Session struct {
	ID     uuid.UUID
	mode   Mode
	env    host.Environment
	opts   Options
	logger *slog.Logger

	log   *eventlog.Log
	clock *eventlog.Clock
	slab  *slab.Slab

	tags      *tagTable
	contexts  map[int64]*runtime.Context
	known     map[int64]eventlog.KnownObjects
	externals map[*runtime.Object]bool
	active    *runtime.Context
	nextCtxID int64

	depth            int32
	rootTime         int64
	rootCalls        int
	lastSnapshotTime int64
	pending          runtime.Value
	callbacks        map[int64]runtime.Value
	nextCallbackID   int64
	bodyCounter      uint64

	// cursor is the index of the next entry to replay.
	cursor int
}

// New creates a session. Recording sessions get a fresh UUIDv7; replay
// sessions take their id from Parse.
func New(env host.Environment, mode Mode, opts Options) (*Session, error) {
	if env == nil {
		return nil, fmt.Errorf("new session: nil host environment")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	blockBytes := opts.SlabBlockBytes
	if blockBytes <= 0 {
		blockBytes = slab.DefaultBlockBytes
	}
	s := &Session{
		mode:   mode,
		env:    env,
		opts:   opts,
		logger: opts.Logger,
		log:    eventlog.NewLog(opts.BlockSize, opts.Logger),
		clock:  eventlog.NewClock(),
		slab:   slab.New(blockBytes),
	}
	s.resetState()
	if mode == ModeRecord {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("new session id: %w", err)
		}
		s.ID = id
	}
	s.logger.Info("session started", "session", s.ID, "mode", mode)
	return s, nil
}

// resetState forgets every live object and context, leaving the log alone.
func (s *Session) resetState() {
	s.tags = newTagTable()
	s.contexts = make(map[int64]*runtime.Context)
	s.known = make(map[int64]eventlog.KnownObjects)
	s.externals = make(map[*runtime.Object]bool)
	s.active = nil
	s.depth = 0
	s.rootTime = -1
	s.rootCalls = 0
	s.lastSnapshotTime = -1
	s.pending = nil
	s.callbacks = make(map[int64]runtime.Value)
}

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Log returns the session's event log.
func (s *Session) Log() *eventlog.Log { return s.log }

// Active returns the active script context, or nil.
func (s *Session) Active() *runtime.Context { return s.active }

// Context returns a live context by id.
func (s *Session) Context(id int64) (*runtime.Context, bool) {
	ctx, ok := s.contexts[id]
	return ctx, ok
}

// Known returns the well-known object tags of a live context.
func (s *Session) Known(id int64) (eventlog.KnownObjects, bool) {
	k, ok := s.known[id]
	return k, ok
}

// Callback returns a registered callback function.
func (s *Session) Callback(id int64) (runtime.Value, bool) {
	fn, ok := s.callbacks[id]
	return fn, ok
}

// Callbacks returns the ids of registered callbacks.
func (s *Session) Callbacks() []int64 {
	ids := make([]int64, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	return ids
}

// Pending returns the host-visible pending exception, if any.
func (s *Session) Pending() (runtime.Value, bool) {
	return s.pending, s.pending != nil
}

// Cursor returns the index of the next entry to replay.
func (s *Session) Cursor() int { return s.cursor }

// SlabStats reports the payload slab's usage.
func (s *Session) SlabStats() slab.Stats { return s.slab.Stats() }

// Evict drops log blocks whose entries all precede time and releases
// their payload memory. Replay position is preserved.
func (s *Session) Evict(time int64) int {
	n := s.log.EvictBefore(time, s.unload)
	s.cursor = max(s.cursor-n, 0)
	return n
}

// Close releases every entry's payload memory.
func (s *Session) Close() {
	s.log.Close(s.unload)
	s.slab.UnlinkAll()
	s.logger.Info("session closed", "session", s.ID, "mode", s.mode)
}

func (s *Session) unload(e *eventlog.Entry) {
	handlerFor(e.Kind).unload(s, e)
}

// installContext makes ctx known to the session and routes its
// non-determinism through the session hooks.
func (s *Session) installContext(ctx *runtime.Context) {
	ctx.SetHooks(hooks{s})
	s.contexts[ctx.ID()] = ctx
}

func (s *Session) activate(ctx *runtime.Context) error {
	if err := s.env.ActivateContext(ctx); err != nil {
		return err
	}
	s.active = ctx
	return nil
}

func (s *Session) requireActive() (*runtime.Context, error) {
	if s.active == nil {
		return nil, fmt.Errorf("replay: no active script context")
	}
	return s.active, nil
}

// appendEntry stamps payload with the next time and logs it.
func (s *Session) appendEntry(kind eventlog.EventKind, payload eventlog.Payload) *eventlog.Entry {
	e := s.log.Append(eventlog.NewEntry(kind, s.clock.Next(), payload))
	s.logger.Debug("recorded", "kind", kind, "time", e.Time)
	return e
}

// next consumes the next entry, which must be of kind.
func (s *Session) next(kind eventlog.EventKind) (*eventlog.Entry, error) {
	if s.cursor >= s.log.Len() {
		return nil, newError(ErrCodeLogCorrupt, nil, "log ended while expecting %s", kind)
	}
	e := s.log.At(s.cursor)
	if e.Kind != kind {
		return nil, newError(ErrCodeKindMismatch, e, "expected %s", kind)
	}
	s.cursor++
	return e, nil
}
