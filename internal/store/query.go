package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/queryir"
	"github.com/roach88/rewind/internal/querysql"
)

// EntryRow is an archived entry without its payload.
type EntryRow struct {
	Session uuid.UUID
	Seq     int
	Time    int64
	Kind    string
	Size    int // encoded payload bytes
}

// QueryEntries runs q across every archived session. Rows come back in
// (session, seq) order. Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryEntries(ctx context.Context, q queryir.Query) ([]EntryRow, error) {
	sql, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []EntryRow{}
	for rows.Next() {
		var (
			r  EntryRow
			id string
		)
		if err := rows.Scan(&id, &r.Seq, &r.Time, &r.Kind, &r.Size); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		if r.Session, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan entry row: session id %q: %w", id, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return out, nil
}
