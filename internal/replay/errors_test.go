package replay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/runtime"
)

// handBuilt returns a replay session whose log starts with context 1
// created and active.
func handBuilt(t *testing.T) *Session {
	t.Helper()
	s, _ := newReplaySession(t, Options{})
	s.appendEntry(eventlog.KindCreateScriptContext, &eventlog.CreateScriptContext{
		ContextID: 1,
		Known:     eventlog.KnownObjects{Global: 1, Undefined: 2, Null: 3, True: 4, False: 5},
	})
	s.appendEntry(eventlog.KindSetActiveScriptContext, &eventlog.SetActiveScriptContext{ContextID: 1})
	return s
}

func runToError(t *testing.T, s *Session) error {
	t.Helper()
	r, err := NewReplayer(s)
	require.NoError(t, err)
	_, err = r.Run()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	return err
}

func TestReplayError_Format(t *testing.T) {
	e := eventlog.NewEntry(eventlog.KindDouble, 7, &eventlog.Double{Value: 1})
	err := newError(ErrCodeKindMismatch, &e, "expected %s", eventlog.KindString)
	assert.Equal(t, "KIND_MISMATCH: expected String (time=7, kind=Double)", err.Error())

	wrapped := hostError(nil, "create context", errors.New("out of contexts"))
	assert.Contains(t, wrapped.Error(), "HOST_FAILURE: create context")
	assert.Contains(t, wrapped.Error(), "out of contexts")
	assert.Equal(t, int64(-1), wrapped.Time)
	assert.Equal(t, ErrCodeHostFailure, ErrorCode(wrapped))
	assert.Equal(t, ReplayErrorCode(""), ErrorCode(errors.New("plain")))
	assert.False(t, IsReplayError(errors.New("plain")))
}

func TestReplay_TopLevelHookEntryIsKindMismatch(t *testing.T) {
	s := handBuilt(t)
	s.appendEntry(eventlog.KindDouble, &eventlog.Double{Value: 5})

	err := runToError(t, s)
	assert.Equal(t, ErrCodeKindMismatch, ErrorCode(err))
}

func TestReplay_UnknownTag(t *testing.T) {
	s := handBuilt(t)
	s.appendEntry(eventlog.KindSetProperty, &eventlog.SetProperty{
		Object: eventlog.ObjectVar(99),
		Name:   "x",
		Value:  eventlog.NumberVar(1),
	})

	err := runToError(t, s)
	assert.Equal(t, ErrCodeUnknownTag, ErrorCode(err))
}

func TestReplay_LogCorrupt(t *testing.T) {
	tests := map[string]func(s *Session){
		"destroy unknown context": func(s *Session) {
			s.appendEntry(eventlog.KindDeadScriptContext, &eventlog.DeadScriptContext{ContextID: 9})
		},
		"context created twice": func(s *Session) {
			s.appendEntry(eventlog.KindCreateScriptContext, &eventlog.CreateScriptContext{ContextID: 1})
		},
		"cancel unknown callback": func(s *Session) {
			s.appendEntry(eventlog.KindCallbackOp, &eventlog.CallbackOp{ID: 3, CreatedBy: -1})
		},
		"rebound tag": func(s *Session) {
			s.appendEntry(eventlog.KindAllocateObject, &eventlog.AllocateObject{Result: 1})
		},
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			s := handBuilt(t)
			build(s)
			err := runToError(t, s)
			assert.Equal(t, ErrCodeLogCorrupt, ErrorCode(err))
		})
	}
}

func TestReplay_ResultMismatch(t *testing.T) {
	rec := startRecording(t, Options{})
	rec.global(t, "sum")
	rec.call(t, "now")
	data := emit(t, rec.s, logio.FormatBinary)

	t.Run("property value", func(t *testing.T) {
		r, _ := startReplay(t, data, logio.FormatBinary, Options{})
		for _, e := range r.Session().Log().All() {
			if e.Kind == eventlog.KindGetProperty {
				eventlog.PayloadAs[*eventlog.GetProperty](e).Result = eventlog.NumberVar(42)
				break
			}
		}
		_, err := r.Run()
		require.Error(t, err)
		assert.Equal(t, ErrCodeResultMismatch, ErrorCode(err))
		assert.Contains(t, err.Error(), "property sum")
	})

	t.Run("call result", func(t *testing.T) {
		r, _ := startReplay(t, data, logio.FormatBinary, Options{})
		var last *eventlog.Entry
		for _, e := range r.Session().Log().All() {
			if e.Kind == eventlog.KindCallExistingFunction {
				last = e
			}
		}
		require.NotNil(t, last)
		eventlog.PayloadAs[*eventlog.CallExistingFunction](last).Result = eventlog.StringVar("later")
		_, err := r.Run()
		require.Error(t, err)
		assert.Equal(t, ErrCodeResultMismatch, ErrorCode(err))
	})

	t.Run("thrown flag", func(t *testing.T) {
		r, _ := startReplay(t, data, logio.FormatBinary, Options{})
		var last *eventlog.Entry
		for _, e := range r.Session().Log().All() {
			if e.Kind == eventlog.KindCallExistingFunction {
				last = e
			}
		}
		eventlog.PayloadAs[*eventlog.CallExistingFunction](last).Thrown = true
		_, err := r.Run()
		require.Error(t, err)
		assert.Equal(t, ErrCodeResultMismatch, ErrorCode(err))
	})
}

func TestReplay_MissingHookEntryIsFatal(t *testing.T) {
	rec := startRecording(t, Options{})
	rec.call(t, "hostName")
	r, _ := startReplay(t, emit(t, rec.s, logio.FormatText), logio.FormatText, Options{})

	// Drop the String entry the hostName call consumes by replacing the
	// log's tail with a host exit at the same time.
	s := r.Session()
	n := s.Log().Len()
	last := s.Log().At(n - 1)
	require.Equal(t, eventlog.KindString, last.Kind)
	*last = eventlog.NewEntry(eventlog.KindHostExitProcess, last.Time, &eventlog.HostExitProcess{})

	_, err := r.Run()
	require.Error(t, err)
	assert.Equal(t, ErrCodeKindMismatch, ErrorCode(err))
}

func TestReplay_EqualsMismatch(t *testing.T) {
	s := handBuilt(t)
	s.appendEntry(eventlog.KindEquals, &eventlog.Equals{
		Left:   eventlog.NumberVar(1),
		Right:  eventlog.StringVar("1"),
		Strict: true,
		Result: true,
	})
	err := runToError(t, s)
	assert.Equal(t, ErrCodeResultMismatch, ErrorCode(err))
}

func TestReplay_ExceptionInsideOperation(t *testing.T) {
	s := handBuilt(t)
	s.appendEntry(eventlog.KindGetProperty, &eventlog.GetProperty{
		Object: eventlog.UndefinedVar(),
		Name:   "x",
		Result: eventlog.HoleVar(),
	})
	r, err := NewReplayer(s)
	require.NoError(t, err)
	out, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, AbortEndOfLog{}, out)

	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, "TypeError", runtime.ErrorName(pending))
}
