package replay

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
)

// ArchivedEntry is one encoded entry as an archive keeps it.
type ArchivedEntry struct {
	Seq     int
	Time    int64
	Kind    string
	Payload []byte
}

// Archive persists sessions entry by entry. The store package implements
// it over SQLite.
type Archive interface {
	WriteSession(ctx context.Context, id uuid.UUID, label string, format int, entries int) error
	WriteEntry(ctx context.Context, id uuid.UUID, e ArchivedEntry) error
	ReadEntries(ctx context.Context, id uuid.UUID) ([]ArchivedEntry, error)
	Bodies(ctx context.Context, id uuid.UUID) logio.BodyStore
}

// Save writes the session's log to a. Script sources go to the archive's
// body store for the session.
func Save(ctx context.Context, s *Session, a Archive, label string) error {
	if err := a.WriteSession(ctx, s.ID, label, FormatVersion, s.log.Len()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	saved := s.opts.Bodies
	s.opts.Bodies = a.Bodies(ctx, s.ID)
	defer func() { s.opts.Bodies = saved }()
	for i, e := range s.log.All() {
		data, err := EncodeEntry(s, e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", e.Time, err)
		}
		ae := ArchivedEntry{Seq: i, Time: e.Time, Kind: e.Kind.String(), Payload: data}
		if err := a.WriteEntry(ctx, s.ID, ae); err != nil {
			return fmt.Errorf("save entry %d: %w", e.Time, err)
		}
	}
	s.logger.Info("session archived", "session", s.ID, "entries", s.log.Len())
	return nil
}

// Load reads session id from a into an empty replay session.
func Load(ctx context.Context, s *Session, a Archive, id uuid.UUID) error {
	if s.mode != ModeReplay {
		return fmt.Errorf("load session: session is in %s mode", s.mode)
	}
	if s.log.Len() != 0 {
		return fmt.Errorf("load session: session already holds %d entries", s.log.Len())
	}
	rows, err := a.ReadEntries(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	saved := s.opts.Bodies
	s.opts.Bodies = a.Bodies(ctx, id)
	defer func() { s.opts.Bodies = saved }()

	last := int64(0)
	for _, row := range rows {
		e, err := DecodeEntry(s, row.Payload)
		if err == nil {
			switch {
			case e.Time != row.Time || e.Kind.String() != row.Kind:
				err = newError(ErrCodeLogCorrupt, &e, "archived as %s at time %d", row.Kind, row.Time)
			case e.Time <= last:
				err = newError(ErrCodeLogCorrupt, &e, "entry time does not follow %d", last)
			}
			if err != nil {
				s.unload(&e)
			}
		}
		if err != nil {
			s.log.Close(s.unload)
			return fmt.Errorf("load entry %d: %w", row.Seq, err)
		}
		s.log.Append(e)
		last = e.Time
	}
	s.ID = id
	s.clock = eventlog.NewClockAt(last)
	s.logger.Info("session loaded", "session", id, "entries", s.log.Len())
	return nil
}
