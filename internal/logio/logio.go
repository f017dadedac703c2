// Package logio reads and writes recordings as a stream of structured
// tokens.
//
// A stream is built from records ({...}) and sequences ([...]) holding
// keyed scalars. Inside a record every token carries a key; inside a
// sequence keys are empty. Readers mirror writers call for call and check
// each key and token kind, so a log can only be read in exactly the order
// it was written.
//
// Two encodings exist: a text form meant for diffing and golden files, and
// a compact CBOR form. Large script sources are not part of the token
// stream; they go to a BodyStore keyed by a counter.
//
// Writers and readers keep the first error they hit and turn every later
// call into a no-op, so callers check Err once after a group of calls.
package logio

import (
	"errors"
	"fmt"
)

// Writer emits a token stream.
type Writer interface {
	WriteRecordStart(key string)
	WriteRecordEnd()
	// WriteSequenceStart opens a sequence of n elements.
	WriteSequenceStart(key string, n int)
	WriteSequenceEnd()

	WriteNull(key string)
	WriteBool(key string, v bool)
	WriteInt32(key string, v int32)
	WriteUint32(key string, v uint32)
	WriteInt64(key string, v int64)
	WriteUint64(key string, v uint64)
	WriteDouble(key string, v float64)
	WriteString(key string, v string)
	// WriteEnum writes a symbolic tag such as an event kind name.
	WriteEnum(key string, name string)
	// WriteLogTag writes an object reference tag.
	WriteLogTag(key string, tag uint64)
	// WriteLengthValue writes a "length" keyed count.
	WriteLengthValue(n uint32)

	Flush() error
	Err() error
}

// Reader consumes a token stream produced by the matching Writer.
type Reader interface {
	ReadRecordStart(key string)
	ReadRecordEnd()
	// ReadSequenceStart returns the element count.
	ReadSequenceStart(key string) int
	ReadSequenceEnd()

	ReadNull(key string)
	ReadBool(key string) bool
	ReadInt32(key string) int32
	ReadUint32(key string) uint32
	ReadInt64(key string) int64
	ReadUint64(key string) uint64
	ReadDouble(key string) float64
	ReadString(key string) string
	ReadEnum(key string) string
	ReadLogTag(key string) uint64
	ReadLengthValue() uint32

	Err() error
}

// SyntaxError reports a malformed stream.
type SyntaxError struct {
	Offset  int64
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("log syntax error at offset %d: %s", e.Offset, e.Message)
}

// IsSyntaxError reports whether err is or wraps a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// Format selects an encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatBinary:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown log format %q (want text or binary)", s)
}

// FileName is the conventional log file name for f.
func (f Format) FileName() string {
	if f == FormatBinary {
		return "log.cbor"
	}
	return "log.txt"
}

// container tracks separator bookkeeping for one open record or sequence.
type container struct {
	record  bool
	count   int
	records bool // a sequence holding records
	want    int  // declared sequence length
}

type nesting []container

func (n *nesting) push(record bool, want int) {
	*n = append(*n, container{record: record, want: want})
}

func (n *nesting) pop(record bool) error {
	if len(*n) == 0 {
		return errors.New("unbalanced close")
	}
	top := (*n)[len(*n)-1]
	if top.record != record {
		if record {
			return errors.New("record closed while a sequence is open")
		}
		return errors.New("sequence closed while a record is open")
	}
	if !record && top.count != top.want {
		return fmt.Errorf("sequence of %d elements closed after %d", top.want, top.count)
	}
	*n = (*n)[:len(*n)-1]
	return nil
}

// next reports whether the element about to be written is the first in its
// container, and counts it.
func (n nesting) next() (first bool) {
	if len(n) == 0 {
		return true
	}
	top := &n[len(n)-1]
	first = top.count == 0
	top.count++
	return first
}

func (n nesting) depth() int { return len(n) }

func (n nesting) top() *container {
	if len(n) == 0 {
		return nil
	}
	return &n[len(n)-1]
}

// checkKey enforces keys inside records and their absence in sequences.
func (n nesting) checkKey(key string) error {
	if len(n) == 0 {
		return nil
	}
	if n[len(n)-1].record {
		if key == "" {
			return errors.New("record member without a key")
		}
		return nil
	}
	if key != "" {
		return fmt.Errorf("sequence element with key %q", key)
	}
	return nil
}

const lengthKey = "length"
