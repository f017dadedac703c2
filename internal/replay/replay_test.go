package replay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/host"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/testutil"
)

const program = `# test program
function sum
function range
function now
function random
function hostName
external hostEcho
external hostApply
external hostObject
external hostThrow
`

type recording struct {
	s   *Session
	h   *host.Builtin
	ctx *runtime.Context
}

// startRecording creates a context and loads program into it.
func startRecording(t *testing.T, opts Options) *recording {
	t.Helper()
	h := testutil.NewHost(testutil.DefaultInputs())
	opts.Logger = testutil.DiscardLogger()
	s, err := New(h, ModeRecord, opts)
	require.NoError(t, err)
	h.API = s
	t.Cleanup(s.Close)

	ctx, err := s.CreateContext()
	require.NoError(t, err)
	require.NoError(t, s.SetActiveContext(ctx))
	script, err := s.ParseScript("main.rw", program)
	require.NoError(t, err)
	_, err = s.CallFunction(script, runtime.Undefined, nil)
	require.NoError(t, err)
	return &recording{s: s, h: h, ctx: ctx}
}

func (r *recording) global(t *testing.T, name string) runtime.Value {
	t.Helper()
	v, err := r.s.GetProperty(r.ctx.Global, name)
	require.NoError(t, err)
	return v
}

func (r *recording) call(t *testing.T, name string, args ...runtime.Value) runtime.Value {
	t.Helper()
	v, err := r.s.CallFunction(r.global(t, name), runtime.Undefined, args)
	require.NoError(t, err)
	return v
}

func emit(t *testing.T, s *Session, f logio.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Emit(s, logio.NewWriter(f, &buf)))
	return buf.Bytes()
}

// replayInputs differ from the recording's so any value a replay takes
// from the host instead of the log shows up as a mismatch.
func replayInputs() testutil.Inputs {
	return testutil.Inputs{
		Clock:    testutil.NewDeterministicClock(0, 1),
		Seed:     [2]uint64{7, 7},
		HostName: "replay-host",
	}
}

func newReplaySession(t *testing.T, opts Options) (*Session, testutil.Inputs) {
	t.Helper()
	in := replayInputs()
	opts.Logger = testutil.DiscardLogger()
	s, err := New(testutil.NewHost(in), ModeReplay, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, in
}

func startReplay(t *testing.T, data []byte, f logio.Format, opts Options) (*Replayer, testutil.Inputs) {
	t.Helper()
	s, in := newReplaySession(t, opts)
	require.NoError(t, Parse(s, logio.NewReader(f, bytes.NewReader(data))))
	r, err := NewReplayer(s)
	require.NoError(t, err)
	return r, in
}

func TestRecordReplay_Program(t *testing.T) {
	for _, f := range []logio.Format{logio.FormatText, logio.FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			rec := startRecording(t, Options{})

			nums := rec.call(t, "range", runtime.Number(4))
			assert.Equal(t, runtime.Number(6), rec.call(t, "sum", nums))
			assert.Equal(t, runtime.Number(1_700_000_000_000), rec.call(t, "now"))
			r1 := rec.call(t, "random")
			assert.IsType(t, runtime.Number(0), r1)
			assert.Equal(t, runtime.String("test-host"), rec.call(t, "hostName"))
			assert.Equal(t, runtime.String("hi"), rec.call(t, "hostEcho", runtime.String("hi")))
			assert.Equal(t, runtime.Number(6), rec.call(t, "hostApply", rec.global(t, "sum"), nums))

			obj := rec.call(t, "hostObject")
			serial, err := rec.s.GetProperty(obj, "serial")
			require.NoError(t, err)
			assert.Equal(t, runtime.Number(1), serial)
			require.NoError(t, rec.s.HostExit(3))

			r, in := startReplay(t, emit(t, rec.s, f), f, Options{})
			out, err := r.Run()
			require.NoError(t, err)
			assert.Equal(t, AbortEndOfLog{ExitCode: 3}, out)
			assert.True(t, r.Done())
			assert.Equal(t, rec.s.Log().Len(), r.Session().Log().Len())
			assert.Equal(t, rec.s.ID, r.Session().ID)
			assert.Zero(t, in.Clock.Readings(), "replay must not read the host clock")

			ctx, ok := r.Session().Context(1)
			require.True(t, ok)
			fn, err := ctx.Global.Get(ctx, runtime.Key("sum"))
			require.NoError(t, err)
			assert.True(t, runtime.IsCallable(fn))
		})
	}
}

func TestRecordReplay_ContextLifecycle(t *testing.T) {
	h := testutil.NewHost(testutil.DefaultInputs())
	s, err := New(h, ModeRecord, Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	h.API = s
	defer s.Close()

	ctx, err := s.CreateContext()
	require.NoError(t, err)
	require.NoError(t, s.SetActiveContext(ctx))
	known, ok := s.Known(ctx.ID())
	require.True(t, ok)

	script, err := s.ParseScript("f.rw", "external hostEcho\n")
	require.NoError(t, err)
	_, err = s.CallFunction(script, runtime.Undefined, nil)
	require.NoError(t, err)
	f, err := s.GetProperty(ctx.Global, "hostEcho")
	require.NoError(t, err)
	res, err := s.CallFunction(f, runtime.Undefined, []runtime.Value{runtime.Number(1), runtime.Number(2)})
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(1), res)
	require.NoError(t, s.DestroyContext(ctx))
	assert.Nil(t, s.Active())

	r, _ := startReplay(t, emit(t, s, logio.FormatText), logio.FormatText, Options{})
	out, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, Continue{}, out)

	rs := r.Session()
	got, ok := rs.Known(1)
	require.True(t, ok)
	assert.Equal(t, known, got)
	rctx, ok := rs.Context(1)
	require.True(t, ok)
	want := []runtime.Value{rctx.Global, runtime.Undefined, runtime.Null, runtime.Bool(true), runtime.Bool(false)}
	for i, tag := range got.Tags() {
		v, ok := rs.tags.resolve(tag)
		require.True(t, ok, "tag %s", tag)
		assert.Equal(t, want[i], v)
	}

	out, err = r.Run()
	require.NoError(t, err)
	assert.Equal(t, AbortEndOfLog{}, out, "a log without a host exit ends with code 0")
	_, ok = rs.Context(1)
	assert.False(t, ok)
	assert.Nil(t, rs.Active())
}

func TestRecordReplay_UncaughtException(t *testing.T) {
	rec := startRecording(t, Options{})
	_, err := rec.s.CallFunction(rec.global(t, "hostThrow"), runtime.Undefined, []runtime.Value{runtime.String("boom")})
	require.True(t, runtime.IsException(err))
	v, ok, err := rec.s.GetAndClearException()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, runtime.String("boom"), v)
	data := emit(t, rec.s, logio.FormatBinary)

	t.Run("no debugger", func(t *testing.T) {
		r, _ := startReplay(t, data, logio.FormatBinary, Options{})
		out, err := r.Run()
		require.NoError(t, err)
		assert.Equal(t, AbortEndOfLog{}, out)
	})

	t.Run("break on uncaught", func(t *testing.T) {
		dbg := &BreakOnUncaught{}
		r, _ := startReplay(t, data, logio.FormatBinary, Options{Debugger: dbg})
		out, err := r.Run()
		require.NoError(t, err)
		abort, ok := out.(AbortUncaughtException)
		require.True(t, ok, "got %#v", out)
		assert.Equal(t, "main.rw", abort.Location.URI)
		assert.Equal(t, "hostThrow", abort.Location.Function)
		assert.Contains(t, abort.Message, "boom")
		assert.Len(t, dbg.Hits, 1)

		pending, ok := r.Session().Pending()
		require.True(t, ok)
		assert.Equal(t, runtime.String("boom"), pending)

		out, err = r.Run()
		require.NoError(t, err)
		assert.Equal(t, AbortEndOfLog{}, out)
		_, ok = r.Session().Pending()
		assert.False(t, ok)
	})
}

func TestRecordReplay_Callbacks(t *testing.T) {
	rec := startRecording(t, Options{})
	id, err := rec.s.RegisterCallback(rec.global(t, "now"))
	require.NoError(t, err)
	fn, ok := rec.s.Callback(id)
	require.True(t, ok)
	_, err = rec.s.CallFunction(fn, runtime.Undefined, nil)
	require.NoError(t, err)
	require.NoError(t, rec.s.CancelCallback(id))
	assert.Error(t, rec.s.CancelCallback(id))
	_, err = rec.s.RegisterCallback(runtime.Number(1))
	assert.Error(t, err)

	r, _ := startReplay(t, emit(t, rec.s, logio.FormatText), logio.FormatText, Options{})
	_, err = r.Run()
	require.NoError(t, err)
	assert.Empty(t, r.Session().Callbacks())
}

func TestRecordReplay_APIOperations(t *testing.T) {
	rec := startRecording(t, Options{})
	s := rec.s

	o, err := s.AllocateObject()
	require.NoError(t, err)
	require.NoError(t, s.SetProperty(o, "x", runtime.Number(2)))
	arr, err := s.AllocateArray(2)
	require.NoError(t, err)
	require.NoError(t, s.SetIndex(arr, runtime.Number(1), o))
	v, err := s.GetIndex(arr, runtime.String("1"))
	require.NoError(t, err)
	assert.Same(t, o, v)

	n, err := s.ConvertToNumber(runtime.String(" 42 "))
	require.NoError(t, err)
	assert.Equal(t, 42.0, n)
	b, err := s.ConvertToBoolean(runtime.String(""))
	require.NoError(t, err)
	assert.False(t, b)
	str, err := s.ConvertToString(runtime.Number(1.5))
	require.NoError(t, err)
	assert.Equal(t, "1.5", str)
	eq, err := s.Equals(runtime.Number(1), runtime.String("1"), false)
	require.NoError(t, err)
	assert.True(t, eq)
	eq, err = s.Equals(runtime.Number(1), runtime.String("1"), true)
	require.NoError(t, err)
	assert.False(t, eq)

	fn, err := s.AllocateFunction("hostCounter")
	require.NoError(t, err)
	_, err = s.CallFunction(fn, runtime.Undefined, nil)
	require.NoError(t, err)
	ext, err := s.AllocateExternalObject()
	require.NoError(t, err)
	assert.Equal(t, "External", ext.Class())
	built, err := s.Construct(rec.global(t, "Array"), []runtime.Value{runtime.Number(3)})
	require.NoError(t, err)
	assert.Same(t, rec.ctx.ArrayPrototype, built.(*runtime.Object).Prototype())

	_, err = s.GetProperty(runtime.Undefined, "x")
	require.True(t, runtime.IsException(err))
	thrown, ok, err := s.GetAndClearException()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TypeError", runtime.ErrorName(thrown))
	require.NoError(t, s.SetException(runtime.String("again")))
	_, _, err = s.GetAndClearException()
	require.NoError(t, err)

	for _, f := range []logio.Format{logio.FormatText, logio.FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			r, _ := startReplay(t, emit(t, s, f), f, Options{})
			_, err := r.Run()
			require.NoError(t, err)
		})
	}
}

func TestRecorder_RejectsReplaySessions(t *testing.T) {
	s, _ := newReplaySession(t, Options{})
	_, err := s.CreateContext()
	assert.ErrorIs(t, err, ErrNotRecording)
	_, err = s.CallFunction(runtime.Undefined, runtime.Undefined, nil)
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.ErrorIs(t, s.HostExit(0), ErrNotRecording)

	rec := startRecording(t, Options{})
	_, err = NewReplayer(rec.s)
	assert.Error(t, err)
}

func TestParse_RejectsBadLogs(t *testing.T) {
	rec := startRecording(t, Options{})
	data := emit(t, rec.s, logio.FormatText)

	t.Run("recording session", func(t *testing.T) {
		err := Parse(rec.s, logio.NewReader(logio.FormatText, bytes.NewReader(data)))
		assert.Error(t, err)
	})
	t.Run("truncated", func(t *testing.T) {
		s, _ := newReplaySession(t, Options{})
		err := Parse(s, logio.NewReader(logio.FormatText, bytes.NewReader(data[:len(data)/2])))
		require.Error(t, err)
		assert.Equal(t, ErrCodeLogCorrupt, ErrorCode(err))
		assert.Zero(t, s.Log().Len())
	})
	t.Run("unknown kind", func(t *testing.T) {
		s, _ := newReplaySession(t, Options{})
		bad := bytes.Replace(data, []byte("#SetActiveScriptContext"), []byte("#Teleport"), 1)
		err := Parse(s, logio.NewReader(logio.FormatText, bytes.NewReader(bad)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Teleport")
	})
}

func TestEncodeDecodeEntry(t *testing.T) {
	rec := startRecording(t, Options{})
	rec.call(t, "now")
	s, _ := newReplaySession(t, Options{})
	for _, e := range rec.s.Log().All() {
		data, err := EncodeEntry(rec.s, e)
		require.NoError(t, err)
		got, err := DecodeEntry(s, data)
		require.NoError(t, err)
		assert.Equal(t, e.Kind, got.Kind)
		assert.Equal(t, e.Time, got.Time)
	}
	_, err := DecodeEntry(s, nil)
	assert.Error(t, err)
}

func TestHandlers_CoverEveryKind(t *testing.T) {
	for _, k := range eventlog.Kinds() {
		h := handlerFor(k)
		assert.NotNil(t, h.execute, "%s execute", k)
		assert.NotNil(t, h.emit, "%s emit", k)
		assert.NotNil(t, h.parse, "%s parse", k)
		assert.NotNil(t, h.unload, "%s unload", k)
	}
}

func TestSession_CloseReleasesSlab(t *testing.T) {
	rec := startRecording(t, Options{})
	rec.call(t, "hostName")
	r, _ := startReplay(t, emit(t, rec.s, logio.FormatBinary), logio.FormatBinary, Options{})
	s := r.Session()
	assert.Positive(t, s.SlabStats().Live)

	s.Close()
	assert.Zero(t, s.SlabStats().Live)
	assert.Zero(t, s.Log().Len())
}
