package logio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// token identifies the kind of each item in the binary stream.
type token uint8

const (
	tokRecordStart token = iota + 1
	tokRecordEnd
	tokSequenceStart
	tokSequenceEnd
	tokNull
	tokBool
	tokInt32
	tokUint32
	tokInt64
	tokUint64
	tokDouble
	tokString
	tokEnum
	tokLogTag
)

var tokenNames = map[token]string{
	tokRecordStart:   "record start",
	tokRecordEnd:     "record end",
	tokSequenceStart: "sequence start",
	tokSequenceEnd:   "sequence end",
	tokNull:          "null",
	tokBool:          "bool",
	tokInt32:         "int32",
	tokUint32:        "uint32",
	tokInt64:         "int64",
	tokUint64:        "uint64",
	tokDouble:        "double",
	tokString:        "string",
	tokEnum:          "enum",
	tokLogTag:        "log tag",
}

func (t token) String() string {
	if n, ok := tokenNames[t]; ok {
		return n
	}
	return fmt.Sprintf("token(%d)", uint8(t))
}

// BinaryWriter writes each token as a sequence of CBOR data items: the
// token byte, the key (for opening tokens and scalars) and the value.
type BinaryWriter struct {
	buf  *bufio.Writer
	enc  *cbor.Encoder
	nest nesting
	err  error
}

// NewBinaryWriter writes to w.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	buf := bufio.NewWriter(w)
	return &BinaryWriter{buf: buf, enc: cbor.NewEncoder(buf)}
}

func (b *BinaryWriter) fail(err error) {
	if b.err == nil {
		b.err = fmt.Errorf("binary writer: %w", err)
	}
}

func (b *BinaryWriter) encode(v any) {
	if b.err != nil {
		return
	}
	if err := b.enc.Encode(v); err != nil {
		b.fail(err)
	}
}

func (b *BinaryWriter) begin(tok token, key string) bool {
	if b.err != nil {
		return false
	}
	if err := b.nest.checkKey(key); err != nil {
		b.fail(err)
		return false
	}
	b.nest.next()
	b.encode(uint8(tok))
	b.encode(key)
	return b.err == nil
}

func (b *BinaryWriter) scalar(tok token, key string, v any) {
	if b.begin(tok, key) {
		b.encode(v)
	}
}

func (b *BinaryWriter) WriteRecordStart(key string) {
	if b.begin(tokRecordStart, key) {
		b.nest.push(true, 0)
	}
}

func (b *BinaryWriter) WriteRecordEnd() {
	if b.err != nil {
		return
	}
	if err := b.nest.pop(true); err != nil {
		b.fail(err)
		return
	}
	b.encode(uint8(tokRecordEnd))
}

func (b *BinaryWriter) WriteSequenceStart(key string, n int) {
	if b.begin(tokSequenceStart, key) {
		b.encode(uint64(n))
		b.nest.push(false, n)
	}
}

func (b *BinaryWriter) WriteSequenceEnd() {
	if b.err != nil {
		return
	}
	if err := b.nest.pop(false); err != nil {
		b.fail(err)
		return
	}
	b.encode(uint8(tokSequenceEnd))
}

func (b *BinaryWriter) WriteNull(key string) { b.scalar(tokNull, key, nil) }
func (b *BinaryWriter) WriteBool(key string, v bool) { b.scalar(tokBool, key, v) }
func (b *BinaryWriter) WriteInt32(key string, v int32) { b.scalar(tokInt32, key, v) }
func (b *BinaryWriter) WriteUint32(key string, v uint32) { b.scalar(tokUint32, key, v) }
func (b *BinaryWriter) WriteInt64(key string, v int64) { b.scalar(tokInt64, key, v) }
func (b *BinaryWriter) WriteUint64(key string, v uint64) { b.scalar(tokUint64, key, v) }
func (b *BinaryWriter) WriteDouble(key string, v float64) { b.scalar(tokDouble, key, v) }
func (b *BinaryWriter) WriteString(key string, v string) { b.scalar(tokString, key, v) }
func (b *BinaryWriter) WriteEnum(key string, name string) { b.scalar(tokEnum, key, name) }
func (b *BinaryWriter) WriteLogTag(key string, tag uint64) { b.scalar(tokLogTag, key, tag) }
func (b *BinaryWriter) WriteLengthValue(n uint32) { b.WriteUint32(lengthKey, n) }

func (b *BinaryWriter) Flush() error {
	if b.err == nil && b.nest.depth() != 0 {
		b.fail(errors.New("flush with open containers"))
	}
	if b.err != nil {
		return b.err
	}
	if err := b.buf.Flush(); err != nil {
		b.fail(err)
	}
	return b.err
}

func (b *BinaryWriter) Err() error { return b.err }

// BinaryReader reads the encoding produced by BinaryWriter.
type BinaryReader struct {
	dec  *cbor.Decoder
	nest nesting
	err  error
}

// NewBinaryReader reads from r.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{dec: cbor.NewDecoder(r)}
}

func (b *BinaryReader) fail(format string, args ...any) {
	if b.err == nil {
		b.err = &SyntaxError{Offset: int64(b.dec.NumBytesRead()), Message: fmt.Sprintf(format, args...)}
	}
}

func (b *BinaryReader) decode(v any) bool {
	if b.err != nil {
		return false
	}
	if err := b.dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			b.fail("unexpected end of log")
		} else {
			b.fail("%v", err)
		}
		return false
	}
	return true
}

func (b *BinaryReader) token(want token) bool {
	var got uint8
	if !b.decode(&got) {
		return false
	}
	if token(got) != want {
		b.fail("expected %s, found %s", want, token(got))
		return false
	}
	return true
}

func (b *BinaryReader) begin(tok token, key string) bool {
	if b.err != nil {
		return false
	}
	if err := b.nest.checkKey(key); err != nil {
		b.fail("%v", err)
		return false
	}
	b.nest.next()
	if !b.token(tok) {
		return false
	}
	var got string
	if !b.decode(&got) {
		return false
	}
	if got != key {
		b.fail("expected key %q, found %q", key, got)
		return false
	}
	return true
}

func (b *BinaryReader) ReadRecordStart(key string) {
	if b.begin(tokRecordStart, key) {
		b.nest.push(true, 0)
	}
}

func (b *BinaryReader) ReadRecordEnd() {
	if b.err != nil {
		return
	}
	if err := b.nest.pop(true); err != nil {
		b.fail("%v", err)
		return
	}
	b.token(tokRecordEnd)
}

func (b *BinaryReader) ReadSequenceStart(key string) int {
	if !b.begin(tokSequenceStart, key) {
		return 0
	}
	var n uint64
	if !b.decode(&n) {
		return 0
	}
	if n > 1<<31 {
		b.fail("sequence length %d too large", n)
		return 0
	}
	b.nest.push(false, int(n))
	return int(n)
}

func (b *BinaryReader) ReadSequenceEnd() {
	if b.err != nil {
		return
	}
	if err := b.nest.pop(false); err != nil {
		b.fail("%v", err)
		return
	}
	b.token(tokSequenceEnd)
}

func (b *BinaryReader) ReadNull(key string) {
	if b.begin(tokNull, key) {
		var v any
		if b.decode(&v) && v != nil {
			b.fail("expected null, found %v", v)
		}
	}
}

// readScalar decodes the value of a scalar token into v.
func readScalar[T any](b *BinaryReader, tok token, key string) T {
	var v T
	if b.begin(tok, key) {
		b.decode(&v)
	}
	return v
}

func (b *BinaryReader) ReadBool(key string) bool { return readScalar[bool](b, tokBool, key) }
func (b *BinaryReader) ReadInt32(key string) int32 { return readScalar[int32](b, tokInt32, key) }
func (b *BinaryReader) ReadUint32(key string) uint32 { return readScalar[uint32](b, tokUint32, key) }
func (b *BinaryReader) ReadInt64(key string) int64 { return readScalar[int64](b, tokInt64, key) }
func (b *BinaryReader) ReadUint64(key string) uint64 { return readScalar[uint64](b, tokUint64, key) }
func (b *BinaryReader) ReadDouble(key string) float64 { return readScalar[float64](b, tokDouble, key) }
func (b *BinaryReader) ReadString(key string) string { return readScalar[string](b, tokString, key) }
func (b *BinaryReader) ReadEnum(key string) string { return readScalar[string](b, tokEnum, key) }
func (b *BinaryReader) ReadLogTag(key string) uint64 { return readScalar[uint64](b, tokLogTag, key) }
func (b *BinaryReader) ReadLengthValue() uint32 { return b.ReadUint32(lengthKey) }

func (b *BinaryReader) Err() error { return b.err }

// NewWriter returns a writer for f.
func NewWriter(f Format, w io.Writer) Writer {
	if f == FormatBinary {
		return NewBinaryWriter(w)
	}
	return NewTextWriter(w)
}

// NewReader returns a reader for f.
func NewReader(f Format, r io.Reader) Reader {
	if f == FormatBinary {
		return NewBinaryReader(r)
	}
	return NewTextReader(r)
}
