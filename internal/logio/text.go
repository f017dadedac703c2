package logio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TextWriter writes the human-readable encoding:
//
//	{kind:#CallExistingFunction, time:7, args:[2: *3, @2"hi"]}
//
// Strings are length-prefixed (@N"...") and never escaped. Records inside
// sequences start on their own line.
type TextWriter struct {
	w     *bufio.Writer
	nest  nesting
	err   error
	lines bool
}

// NewTextWriter writes to w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

func (t *TextWriter) fail(err error) {
	if t.err == nil {
		t.err = fmt.Errorf("text writer: %w", err)
	}
}

func (t *TextWriter) indent(depth int) {
	t.w.WriteByte('\n')
	t.w.WriteString(strings.Repeat("  ", max(depth, 0)))
}

// begin writes the separator and key for the next element.
func (t *TextWriter) begin(key string, record bool) bool {
	if t.err != nil {
		return false
	}
	if err := t.nest.checkKey(key); err != nil {
		t.fail(err)
		return false
	}
	top := t.nest.top()
	first := t.nest.next()
	if !first {
		t.w.WriteByte(',')
	}
	inSeq := top != nil && !top.record
	switch {
	case inSeq && record:
		top.records = true
		t.indent(t.nest.depth() - 1)
	case !first || inSeq:
		t.w.WriteByte(' ')
	}
	if key != "" {
		t.w.WriteString(key)
		t.w.WriteByte(':')
	}
	return true
}

func (t *TextWriter) atom(key, s string) {
	if t.begin(key, false) {
		t.w.WriteString(s)
	}
}

func (t *TextWriter) WriteRecordStart(key string) {
	if t.begin(key, true) {
		t.w.WriteByte('{')
		t.nest.push(true, 0)
	}
}

func (t *TextWriter) WriteRecordEnd() {
	if t.err != nil {
		return
	}
	if err := t.nest.pop(true); err != nil {
		t.fail(err)
		return
	}
	t.w.WriteByte('}')
}

func (t *TextWriter) WriteSequenceStart(key string, n int) {
	if t.begin(key, false) {
		t.w.WriteByte('[')
		t.w.WriteString(strconv.Itoa(n))
		t.w.WriteByte(':')
		t.nest.push(false, n)
	}
}

func (t *TextWriter) WriteSequenceEnd() {
	if t.err != nil {
		return
	}
	top := t.nest.top()
	if err := t.nest.pop(false); err != nil {
		t.fail(err)
		return
	}
	if top.records {
		t.indent(t.nest.depth() - 1)
	}
	t.w.WriteByte(']')
}

func (t *TextWriter) WriteNull(key string) { t.atom(key, "null") }
func (t *TextWriter) WriteBool(key string, v bool) { t.atom(key, strconv.FormatBool(v)) }
func (t *TextWriter) WriteInt32(key string, v int32) { t.atom(key, strconv.FormatInt(int64(v), 10)) }
func (t *TextWriter) WriteInt64(key string, v int64) { t.atom(key, strconv.FormatInt(v, 10)) }
func (t *TextWriter) WriteEnum(key string, name string) {
	t.atom(key, "#"+name)
}

func (t *TextWriter) WriteUint32(key string, v uint32) {
	t.atom(key, strconv.FormatUint(uint64(v), 10))
}

func (t *TextWriter) WriteUint64(key string, v uint64) {
	t.atom(key, strconv.FormatUint(v, 10))
}

func (t *TextWriter) WriteLogTag(key string, tag uint64) {
	t.atom(key, "*"+strconv.FormatUint(tag, 10))
}

func (t *TextWriter) WriteLengthValue(n uint32) { t.WriteUint32(lengthKey, n) }

func (t *TextWriter) WriteDouble(key string, v float64) {
	t.atom(key, formatDouble(v))
}

func (t *TextWriter) WriteString(key string, v string) {
	if t.begin(key, false) {
		t.w.WriteByte('@')
		t.w.WriteString(strconv.Itoa(len(v)))
		t.w.WriteByte('"')
		t.w.WriteString(v)
		t.w.WriteByte('"')
	}
}

// Flush writes buffered output. The stream must be balanced.
func (t *TextWriter) Flush() error {
	if t.err == nil && t.nest.depth() != 0 {
		t.fail(errors.New("flush with open containers"))
	}
	if t.err != nil {
		return t.err
	}
	if !t.lines {
		t.w.WriteByte('\n')
		t.lines = true
	}
	if err := t.w.Flush(); err != nil {
		t.fail(err)
	}
	return t.err
}

func (t *TextWriter) Err() error { return t.err }

func formatDouble(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// TextReader reads the encoding produced by TextWriter.
type TextReader struct {
	r      *bufio.Reader
	offset int64
	nest   nesting
	err    error
}

// NewTextReader reads from r.
func NewTextReader(r io.Reader) *TextReader {
	return &TextReader{r: bufio.NewReader(r)}
}

func (t *TextReader) fail(format string, args ...any) {
	if t.err == nil {
		t.err = &SyntaxError{Offset: t.offset, Message: fmt.Sprintf(format, args...)}
	}
}

func (t *TextReader) readByte() (byte, bool) {
	b, err := t.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			t.fail("unexpected end of log")
		} else {
			t.fail("%v", err)
		}
		return 0, false
	}
	t.offset++
	return b, true
}

func (t *TextReader) peek() (byte, bool) {
	b, err := t.r.Peek(1)
	if err != nil {
		return 0, false
	}
	return b[0], true
}

func (t *TextReader) skipSpace() {
	for {
		b, ok := t.peek()
		if !ok || (b != ' ' && b != '\n' && b != '\t' && b != '\r') {
			return
		}
		t.readByte()
	}
}

func (t *TextReader) expect(c byte) bool {
	t.skipSpace()
	b, ok := t.readByte()
	if !ok {
		return false
	}
	if b != c {
		t.fail("expected %q, found %q", c, b)
		return false
	}
	return true
}

func isDelimiter(b byte) bool {
	switch b {
	case ',', ']', '}', ':', ' ', '\n', '\t', '\r':
		return true
	}
	return false
}

// word reads bytes up to the next delimiter.
func (t *TextReader) word() string {
	t.skipSpace()
	var sb strings.Builder
	for {
		b, ok := t.peek()
		if !ok || isDelimiter(b) {
			break
		}
		t.readByte()
		sb.WriteByte(b)
	}
	if sb.Len() == 0 {
		t.fail("expected a token")
	}
	return sb.String()
}

// begin consumes the separator and key for the next element.
func (t *TextReader) begin(key string) bool {
	if t.err != nil {
		return false
	}
	if err := t.nest.checkKey(key); err != nil {
		t.fail("%v", err)
		return false
	}
	if !t.nest.next() && !t.expect(',') {
		return false
	}
	if key == "" {
		return true
	}
	got := t.word()
	if t.err != nil {
		return false
	}
	if got != key {
		t.fail("expected key %q, found %q", key, got)
		return false
	}
	return t.expect(':')
}

func (t *TextReader) atom(key string) string {
	if !t.begin(key) {
		return ""
	}
	return t.word()
}

func (t *TextReader) ReadRecordStart(key string) {
	if t.begin(key) && t.expect('{') {
		t.nest.push(true, 0)
	}
}

func (t *TextReader) ReadRecordEnd() {
	if t.err != nil {
		return
	}
	if err := t.nest.pop(true); err != nil {
		t.fail("%v", err)
		return
	}
	t.expect('}')
}

func (t *TextReader) ReadSequenceStart(key string) int {
	if !t.begin(key) || !t.expect('[') {
		return 0
	}
	n, err := strconv.Atoi(t.word())
	if err != nil || n < 0 {
		t.fail("bad sequence length")
		return 0
	}
	if !t.expect(':') {
		return 0
	}
	t.nest.push(false, n)
	return n
}

func (t *TextReader) ReadSequenceEnd() {
	if t.err != nil {
		return
	}
	if err := t.nest.pop(false); err != nil {
		t.fail("%v", err)
		return
	}
	t.expect(']')
}

func (t *TextReader) ReadNull(key string) {
	if s := t.atom(key); t.err == nil && s != "null" {
		t.fail("expected null, found %q", s)
	}
}

func (t *TextReader) ReadBool(key string) bool {
	s := t.atom(key)
	if t.err != nil {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		t.fail("bad bool %q", s)
	}
	return v
}

func (t *TextReader) readInt(key string, bits int) int64 {
	s := t.atom(key)
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		t.fail("bad integer %q for %s", s, key)
	}
	return v
}

func (t *TextReader) readUint(key string, bits int) uint64 {
	s := t.atom(key)
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		t.fail("bad unsigned integer %q for %s", s, key)
	}
	return v
}

func (t *TextReader) ReadInt32(key string) int32 { return int32(t.readInt(key, 32)) }
func (t *TextReader) ReadInt64(key string) int64 { return t.readInt(key, 64) }
func (t *TextReader) ReadUint32(key string) uint32 { return uint32(t.readUint(key, 32)) }
func (t *TextReader) ReadUint64(key string) uint64 { return t.readUint(key, 64) }
func (t *TextReader) ReadLengthValue() uint32 { return t.ReadUint32(lengthKey) }

func (t *TextReader) ReadDouble(key string) float64 {
	s := t.atom(key)
	if t.err != nil {
		return 0
	}
	switch s {
	case "NaN":
		return math.NaN()
	case "Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.fail("bad number %q", s)
	}
	return v
}

func (t *TextReader) prefixed(key string, prefix byte) string {
	s := t.atom(key)
	if t.err != nil {
		return ""
	}
	if len(s) < 2 || s[0] != prefix {
		t.fail("expected %c token, found %q", prefix, s)
		return ""
	}
	return s[1:]
}

func (t *TextReader) ReadEnum(key string) string { return t.prefixed(key, '#') }

func (t *TextReader) ReadLogTag(key string) uint64 {
	s := t.prefixed(key, '*')
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.fail("bad log tag %q", s)
	}
	return v
}

func (t *TextReader) ReadString(key string) string {
	if !t.begin(key) || !t.expect('@') {
		return ""
	}
	var digits strings.Builder
	for {
		b, ok := t.readByte()
		if !ok {
			return ""
		}
		if b == '"' {
			break
		}
		if b < '0' || b > '9' {
			t.fail("bad string length")
			return ""
		}
		digits.WriteByte(b)
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		t.fail("bad string length")
		return ""
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(t.r, buf)
	t.offset += int64(read)
	if err != nil {
		t.fail("string truncated")
		return ""
	}
	if b, ok := t.readByte(); ok && b != '"' {
		t.fail("string length mismatch")
		return ""
	}
	return string(buf)
}

func (t *TextReader) Err() error { return t.err }
