package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/testutil"
)

func TestWriteEntry_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s, 3)

	changed := createTestEntry(1)
	changed.Payload = []byte("rewritten")
	require.NoError(t, s.WriteEntry(ctx, id, changed))

	entries, err := s.ReadEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []byte{1}, entries[1].Payload, "first write wins")
}

func TestWriteSession_RefreshesHeader(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s, 2)

	require.NoError(t, s.WriteSession(ctx, id, "renamed", replay.FormatVersion, 5))
	info, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", info.Label)
	assert.Equal(t, 5, info.EntryCount)

	entries, err := s.ReadEntries(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadEntries_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	require.NoError(t, s.WriteSession(ctx, id, "", replay.FormatVersion, 4))
	for _, seq := range []int{3, 0, 2, 1} {
		require.NoError(t, s.WriteEntry(ctx, id, createTestEntry(seq)))
	}

	entries, err := s.ReadEntries(ctx, id)
	require.NoError(t, err)
	var seqs []int
	for _, e := range entries {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, seqs)

	tail, err := s.ReadEntriesFrom(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, 2, tail[0].Seq)

	e, err := s.ReadEntryAt(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Seq)
	_, err = s.ReadEntryAt(ctx, id, 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadEntries_EmptySession(t *testing.T) {
	s := createTestStore(t)
	entries, err := s.ReadEntries(context.Background(), uuid.Must(uuid.NewV7()))
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListSessions_CreationOrder(t *testing.T) {
	s := createTestStore(t)
	first := createTestSession(t, s, 1)
	second := createTestSession(t, s, 1)

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first, sessions[0].ID)
	assert.Equal(t, second, sessions[1].ID)
	assert.Equal(t, replay.FormatVersion, sessions[0].Format)
}

func TestGetSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetSession(context.Background(), uuid.Must(uuid.NewV7()))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestDeleteSession_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s, 2)
	require.NoError(t, s.Bodies(ctx, id).WriteBody(1, "a.rw", "function sum\n"))

	deleted, err := s.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM script_bodies").Scan(&n))
	assert.Zero(t, n)

	deleted, err = s.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	complete := createTestSession(t, s, 3)
	state, err := s.GetSessionState(ctx, complete)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.Equal(t, 2, state.LastSeq)
	assert.Equal(t, map[string]int{"Double": 3}, state.KindCounts)

	// Header promises 4 entries, seq 1 never arrived.
	partial := uuid.Must(uuid.NewV7())
	require.NoError(t, s.WriteSession(ctx, partial, "", replay.FormatVersion, 4))
	for _, seq := range []int{0, 2, 3} {
		require.NoError(t, s.WriteEntry(ctx, partial, createTestEntry(seq)))
	}
	state, err = s.GetSessionState(ctx, partial)
	require.NoError(t, err)
	assert.False(t, state.IsComplete)
	assert.Equal(t, 3, state.Stored)

	empty := createTestSession(t, s, 0)
	last, err := s.GetLastSeq(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, -1, last)

	incomplete, err := s.FindIncompleteSessions(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, partial, incomplete[0].Info.ID)
}

func TestBodies(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s, 0)
	bodies := s.Bodies(ctx, id)

	require.NoError(t, bodies.WriteBody(4, "lib/a.rw", "function max\n"))
	require.NoError(t, bodies.WriteBody(4, "lib/a.rw", "ignored"))
	src, err := bodies.ReadBody(4, "lib/a.rw")
	require.NoError(t, err)
	assert.Equal(t, "function max\n", src)

	_, err = bodies.ReadBody(5, "lib/b.rw")
	assert.ErrorIs(t, err, logio.ErrBodyNotFound)

	_, err = s.Bodies(ctx, uuid.Must(uuid.NewV7())).ReadBody(4, "lib/a.rw")
	assert.ErrorIs(t, err, logio.ErrBodyNotFound)
}

const archiveProgram = `function sum
function range
function now
external hostEcho
`

func recordSession(t *testing.T) *replay.Session {
	t.Helper()
	h := testutil.NewHost(testutil.DefaultInputs())
	s, err := replay.New(h, replay.ModeRecord, replay.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	h.API = s
	t.Cleanup(s.Close)

	rc, err := s.CreateContext()
	require.NoError(t, err)
	require.NoError(t, s.SetActiveContext(rc))
	script, err := s.ParseScript("archive.rw", archiveProgram)
	require.NoError(t, err)
	_, err = s.CallFunction(script, runtime.Undefined, nil)
	require.NoError(t, err)

	call := func(name string, args ...runtime.Value) runtime.Value {
		fn, err := s.GetProperty(rc.Global, name)
		require.NoError(t, err)
		v, err := s.CallFunction(fn, runtime.Undefined, args)
		require.NoError(t, err)
		return v
	}
	call("sum", call("range", runtime.Number(3)))
	call("now")
	call("hostEcho", runtime.String("archived"))
	require.NoError(t, s.HostExit(0))
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	rec := recordSession(t)

	require.NoError(t, replay.Save(ctx, rec, st, "round trip"))
	// Saving twice leaves one copy.
	require.NoError(t, replay.Save(ctx, rec, st, "round trip"))

	state, err := st.GetSessionState(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.Equal(t, rec.Log().Len(), state.Stored)
	assert.Equal(t, 1, state.KindCounts["CodeParse"])

	var bodies int
	require.NoError(t, st.db.QueryRow("SELECT COUNT(*) FROM script_bodies").Scan(&bodies))
	assert.Equal(t, 1, bodies)

	in := testutil.Inputs{
		Clock:    testutil.NewDeterministicClock(0, 1),
		Seed:     [2]uint64{1, 2},
		HostName: "elsewhere",
	}
	s, err := replay.New(testutil.NewHost(in), replay.ModeReplay, replay.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, replay.Load(ctx, s, st, rec.ID))
	assert.Equal(t, rec.ID, s.ID)
	assert.Equal(t, rec.Log().Len(), s.Log().Len())

	r, err := replay.NewReplayer(s)
	require.NoError(t, err)
	out, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, replay.AbortEndOfLog{}, out)
	assert.Zero(t, in.Clock.Readings())
}

func TestLoad_RejectsTamperedRows(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	rec := recordSession(t)
	require.NoError(t, replay.Save(ctx, rec, st, ""))

	_, err := st.db.Exec(`UPDATE entries SET kind = 'Double' WHERE session_id = ? AND seq = 0`, rec.ID.String())
	require.NoError(t, err)

	s, err := replay.New(testutil.NewHost(testutil.DefaultInputs()), replay.ModeReplay, replay.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	err = replay.Load(ctx, s, st, rec.ID)
	require.Error(t, err)
	assert.Equal(t, replay.ErrCodeLogCorrupt, replay.ErrorCode(err))
	assert.Zero(t, s.Log().Len())
}
