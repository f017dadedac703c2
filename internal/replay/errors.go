package replay

import (
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
)

// ReplayError represents a log inconsistency detected while recording or
// replaying.
//
// Every ReplayError is fatal to its session:
//   - Kind mismatch: the next entry is not the kind the dispatch site expects
//   - Result mismatch: a recomputed value disagrees with the recorded one
//   - Unknown tag: a log tag refers to no object in the replay-time graph
//   - Log corrupt: the log is structurally inconsistent
//   - Host failure: a host callback failed
//
// Time and Kind locate the offending entry when there is one.
type ReplayError struct {
	// Code identifies the error category.
	Code ReplayErrorCode

	// Message is a human-readable description.
	Message string

	// Time is the event time of the offending entry, or -1.
	Time int64

	// Kind is the offending entry's kind, or KindInvalid.
	Kind eventlog.EventKind

	// Err is the underlying cause, if any.
	Err error
}

// ReplayErrorCode categorizes replay errors.
type ReplayErrorCode string

const (
	// ErrCodeKindMismatch indicates the log holds a different event kind
	// than the one being consumed.
	ErrCodeKindMismatch ReplayErrorCode = "KIND_MISMATCH"

	// ErrCodeResultMismatch indicates a replayed value differs from the log.
	ErrCodeResultMismatch ReplayErrorCode = "RESULT_MISMATCH"

	// ErrCodeUnknownTag indicates a log tag that does not resolve.
	ErrCodeUnknownTag ReplayErrorCode = "UNKNOWN_TAG"

	// ErrCodeLogCorrupt indicates a structurally inconsistent log.
	ErrCodeLogCorrupt ReplayErrorCode = "LOG_CORRUPT"

	// ErrCodeHostFailure indicates a host callback returned an error.
	ErrCodeHostFailure ReplayErrorCode = "HOST_FAILURE"
)

// Error implements the error interface.
func (e *ReplayError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Time >= 0 && e.Kind != eventlog.KindInvalid {
		msg = fmt.Sprintf("%s (time=%d, kind=%s)", msg, e.Time, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReplayError) Unwrap() error { return e.Err }

// IsReplayError returns true if err carries a ReplayError.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}

// IsFatal reports whether err ends the session. Script exceptions are not
// fatal; every ReplayError is.
func IsFatal(err error) bool {
	return IsReplayError(err)
}

// ErrorCode returns the code of a ReplayError in err's chain, or "".
func ErrorCode(err error) ReplayErrorCode {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newError(code ReplayErrorCode, e *eventlog.Entry, format string, args ...any) *ReplayError {
	re := &ReplayError{Code: code, Message: fmt.Sprintf(format, args...), Time: -1}
	if e != nil {
		re.Time = e.Time
		re.Kind = e.Kind
	}
	return re
}

func hostError(e *eventlog.Entry, op string, err error) *ReplayError {
	re := newError(ErrCodeHostFailure, e, "%s", op)
	re.Err = err
	return re
}
