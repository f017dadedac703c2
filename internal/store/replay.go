package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/logio"
)

// SessionState describes how much of a session reached the archive.
type SessionState struct {
	Info       SessionInfo
	Stored     int            // entries present
	LastSeq    int            // highest stored seq, -1 when none
	IsComplete bool           // Stored == Info.EntryCount with no gaps
	KindCounts map[string]int // entries per kind name
}

// GetSessionState inspects a session for resumption after an interrupted save.
func (s *Store) GetSessionState(ctx context.Context, id uuid.UUID) (SessionState, error) {
	info, err := s.GetSession(ctx, id)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}
	state := SessionState{Info: info, KindCounts: map[string]int{}}

	last, err := s.GetLastSeq(ctx, id)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.LastSeq = last

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM entries
		WHERE session_id = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, id.String())
	if err != nil {
		return state, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return state, fmt.Errorf("scan kind count: %w", err)
		}
		state.KindCounts[kind] = n
		state.Stored += n
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate kind counts: %w", err)
	}

	// seq starts at 0, so a gap-free prefix has LastSeq == Stored-1.
	state.IsComplete = state.Stored == info.EntryCount && state.LastSeq == state.Stored-1
	return state, nil
}

// FindIncompleteSessions returns the sessions whose entries did not all
// reach the archive.
func (s *Store) FindIncompleteSessions(ctx context.Context) ([]SessionState, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("find incomplete sessions: %w", err)
	}
	incomplete := []SessionState{}
	for _, info := range sessions {
		state, err := s.GetSessionState(ctx, info.ID)
		if err != nil {
			return nil, err
		}
		if !state.IsComplete {
			incomplete = append(incomplete, state)
		}
	}
	return incomplete, nil
}

// GetLastSeq returns the highest seq stored for a session, or -1 when the
// session has no entries.
func (s *Store) GetLastSeq(ctx context.Context, id uuid.UUID) (int, error) {
	var last int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), -1) FROM entries WHERE session_id = ?
	`, id.String()).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return last, nil
}

// Bodies returns the script body store of one session.
func (s *Store) Bodies(ctx context.Context, id uuid.UUID) logio.BodyStore {
	return sessionBodies{ctx: ctx, store: s, id: id}
}

type sessionBodies struct {
	ctx   context.Context
	store *Store
	id    uuid.UUID
}

func (b sessionBodies) WriteBody(counter uint64, uri, source string) error {
	return b.store.writeBody(b.ctx, b.id, counter, uri, source)
}

func (b sessionBodies) ReadBody(counter uint64, uri string) (string, error) {
	src, err := b.store.readBody(b.ctx, b.id, counter)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read body %d (%s): %w", counter, uri, logio.ErrBodyNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read body %d: %w", counter, err)
	}
	return src, nil
}
