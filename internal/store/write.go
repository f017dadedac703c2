package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/replay"
)

// WriteSession inserts or refreshes the session header. Saving the same
// session again only updates its label and entry count; entries already
// written are kept.
func (s *Store) WriteSession(ctx context.Context, id uuid.UUID, label string, format int, entries int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, format, entry_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			entry_count = excluded.entry_count
	`, id.String(), label, format, entries)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEntry inserts one encoded entry.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting a seq is silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteEntry(ctx context.Context, id uuid.UUID, e replay.ArchivedEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (session_id, seq, time, kind, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, id.String(), e.Seq, e.Time, e.Kind, e.Payload)
	if err != nil {
		return fmt.Errorf("write entry %d: %w", e.Seq, err)
	}
	return nil
}

// writeBody stores a script source. The first write for a counter wins.
func (s *Store) writeBody(ctx context.Context, id uuid.UUID, counter uint64, uri, source string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO script_bodies (session_id, counter, uri, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, counter) DO NOTHING
	`, id.String(), int64(counter), uri, source)
	if err != nil {
		return fmt.Errorf("write body %d: %w", counter, err)
	}
	return nil
}

// DeleteSession removes a session with its entries and bodies.
// Returns false if no such session existed.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}

var _ replay.Archive = (*Store)(nil)
