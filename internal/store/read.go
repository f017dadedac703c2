package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/replay"
)

// SessionInfo is the header row of an archived session.
type SessionInfo struct {
	ID         uuid.UUID
	Label      string
	Format     int
	EntryCount int
}

// ReadEntries returns every entry of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no entries.
func (s *Store) ReadEntries(ctx context.Context, id uuid.UUID) ([]replay.ArchivedEntry, error) {
	return s.ReadEntriesFrom(ctx, id, 0)
}

// ReadEntriesFrom returns the entries of a session with seq >= from.
func (s *Store) ReadEntriesFrom(ctx context.Context, id uuid.UUID, from int) ([]replay.ArchivedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, time, kind, payload
		FROM entries
		WHERE session_id = ? AND seq >= ?
		ORDER BY seq ASC
	`, id.String(), from)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []replay.ArchivedEntry{}
	for rows.Next() {
		var e replay.ArchivedEntry
		if err := rows.Scan(&e.Seq, &e.Time, &e.Kind, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadEntryAt returns the entry recorded at the given logical time.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEntryAt(ctx context.Context, id uuid.UUID, time int64) (replay.ArchivedEntry, error) {
	var e replay.ArchivedEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, time, kind, payload
		FROM entries
		WHERE session_id = ? AND time = ?
	`, id.String(), time).Scan(&e.Seq, &e.Time, &e.Kind, &e.Payload)
	if err != nil {
		return e, err
	}
	return e, nil
}

// GetSession retrieves a session header.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (SessionInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, format, entry_count
		FROM sessions
		WHERE id = ?
	`, id.String())
	return scanSession(row)
}

// ListSessions returns all sessions. Ids are UUIDv7, so ordering by id
// lists sessions in creation order.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, format, entry_count
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// readBody retrieves a script source.
// Returns sql.ErrNoRows if not found.
func (s *Store) readBody(ctx context.Context, id uuid.UUID, counter uint64) (string, error) {
	var source string
	err := s.db.QueryRowContext(ctx, `
		SELECT source FROM script_bodies
		WHERE session_id = ? AND counter = ?
	`, id.String(), int64(counter)).Scan(&source)
	return source, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionInfo, error) {
	var info SessionInfo
	var id string
	if err := row.Scan(&id, &info.Label, &info.Format, &info.EntryCount); err != nil {
		if err == sql.ErrNoRows {
			return info, err
		}
		return info, fmt.Errorf("scan session: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return info, fmt.Errorf("scan session: bad id %q: %w", id, err)
	}
	info.ID = parsed
	return info, nil
}
