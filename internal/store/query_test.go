package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/queryir"
	"github.com/roach88/rewind/internal/replay"
)

// seedQuerySessions writes two sessions: "alpha" with Double entries at
// times 1..4 and "beta" alternating String and Double at times 1..3.
func seedQuerySessions(t *testing.T, s *Store) (alpha, beta uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	alpha = createTestSession(t, s, 4)
	require.NoError(t, s.WriteSession(ctx, alpha, "alpha", replay.FormatVersion, 4))

	beta = uuid.Must(uuid.NewV7())
	require.NoError(t, s.WriteSession(ctx, beta, "beta", replay.FormatVersion, 3))
	for i, kind := range []string{"String", "Double", "String"} {
		e := createTestEntry(i)
		e.Kind = kind
		e.Payload = []byte("abc")
		require.NoError(t, s.WriteEntry(ctx, beta, e))
	}
	return alpha, beta
}

func TestQueryEntries_All(t *testing.T) {
	s := createTestStore(t)
	alpha, beta := seedQuerySessions(t, s)

	rows, err := s.QueryEntries(context.Background(), queryir.Select{})
	require.NoError(t, err)
	require.Len(t, rows, 7)

	// UUIDv7 ids sort by creation, so alpha's rows come first.
	for i := 0; i < 4; i++ {
		assert.Equal(t, alpha, rows[i].Session)
		assert.Equal(t, i, rows[i].Seq)
		assert.Equal(t, 1, rows[i].Size)
	}
	for i := 4; i < 7; i++ {
		assert.Equal(t, beta, rows[i].Session)
		assert.Equal(t, 3, rows[i].Size)
	}
}

func TestQueryEntries_Filters(t *testing.T) {
	s := createTestStore(t)
	alpha, beta := seedQuerySessions(t, s)

	tests := map[string]struct {
		filter queryir.Predicate
		limit  int
		want   []EntryRow
	}{
		"by label": {
			filter: queryir.Equals{Field: queryir.FieldLabel, Value: queryir.Str("beta")},
			want: []EntryRow{
				{Session: beta, Seq: 0, Time: 1, Kind: "String", Size: 3},
				{Session: beta, Seq: 1, Time: 2, Kind: "Double", Size: 3},
				{Session: beta, Seq: 2, Time: 3, Kind: "String", Size: 3},
			},
		},
		"by kind across sessions": {
			filter: queryir.Equals{Field: queryir.FieldKind, Value: queryir.Str("String")},
			want: []EntryRow{
				{Session: beta, Seq: 0, Time: 1, Kind: "String", Size: 3},
				{Session: beta, Seq: 2, Time: 3, Kind: "String", Size: 3},
			},
		},
		"session and time range": {
			filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: queryir.FieldSession, Value: queryir.Str(alpha.String())},
				queryir.Between{Field: queryir.FieldTime, Low: 2, High: 3},
			}},
			want: []EntryRow{
				{Session: alpha, Seq: 1, Time: 2, Kind: "Double", Size: 1},
				{Session: alpha, Seq: 2, Time: 3, Kind: "Double", Size: 1},
			},
		},
		"limit": {
			filter: queryir.In{Field: queryir.FieldKind, Values: []queryir.Value{queryir.Str("Double")}},
			limit:  2,
			want: []EntryRow{
				{Session: alpha, Seq: 0, Time: 1, Kind: "Double", Size: 1},
				{Session: alpha, Seq: 1, Time: 2, Kind: "Double", Size: 1},
			},
		},
		"no match": {
			filter: queryir.Equals{Field: queryir.FieldKind, Value: queryir.Str("Snapshot")},
			want:   []EntryRow{},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rows, err := s.QueryEntries(context.Background(), queryir.Select{Filter: tt.filter, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestQueryEntries_Invalid(t *testing.T) {
	s := createTestStore(t)
	_, err := s.QueryEntries(context.Background(), queryir.Select{
		Filter: queryir.Equals{Field: queryir.FieldSession, Value: queryir.Str("not-a-uuid")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a session id")
}
