package logio

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSample exercises every token kind.
func writeSample(w Writer) {
	w.WriteRecordStart("")
	w.WriteEnum("kind", "CallExistingFunction")
	w.WriteInt64("time", -7)
	w.WriteBool("root", true)
	w.WriteInt32("depth", -2)
	w.WriteUint32("count", 4000000000)
	w.WriteUint64("big", math.MaxUint64)
	w.WriteDouble("nan", math.NaN())
	w.WriteDouble("negzero", math.Copysign(0, -1))
	w.WriteDouble("inf", math.Inf(-1))
	w.WriteDouble("frac", 0.1)
	w.WriteString("text", `a "quoted", {odd} string`)
	w.WriteString("empty", "")
	w.WriteLogTag("callee", 12)
	w.WriteNull("nothing")
	w.WriteLengthValue(3)
	w.WriteSequenceStart("args", 3)
	w.WriteLogTag("", 1)
	w.WriteRecordStart("")
	w.WriteEnum("t", "number")
	w.WriteDouble("v", 2.5)
	w.WriteRecordEnd()
	w.WriteSequenceStart("", 0)
	w.WriteSequenceEnd()
	w.WriteSequenceEnd()
	w.WriteRecordEnd()
}

func readSample(t *testing.T, r Reader) {
	t.Helper()
	r.ReadRecordStart("")
	assert.Equal(t, "CallExistingFunction", r.ReadEnum("kind"))
	assert.Equal(t, int64(-7), r.ReadInt64("time"))
	assert.True(t, r.ReadBool("root"))
	assert.Equal(t, int32(-2), r.ReadInt32("depth"))
	assert.Equal(t, uint32(4000000000), r.ReadUint32("count"))
	assert.Equal(t, uint64(math.MaxUint64), r.ReadUint64("big"))
	assert.True(t, math.IsNaN(r.ReadDouble("nan")))
	nz := r.ReadDouble("negzero")
	assert.True(t, nz == 0 && math.Signbit(nz), "negative zero survives")
	assert.True(t, math.IsInf(r.ReadDouble("inf"), -1))
	assert.Equal(t, 0.1, r.ReadDouble("frac"))
	assert.Equal(t, `a "quoted", {odd} string`, r.ReadString("text"))
	assert.Equal(t, "", r.ReadString("empty"))
	assert.Equal(t, uint64(12), r.ReadLogTag("callee"))
	r.ReadNull("nothing")
	assert.Equal(t, uint32(3), r.ReadLengthValue())
	require.Equal(t, 3, r.ReadSequenceStart("args"))
	assert.Equal(t, uint64(1), r.ReadLogTag(""))
	r.ReadRecordStart("")
	assert.Equal(t, "number", r.ReadEnum("t"))
	assert.Equal(t, 2.5, r.ReadDouble("v"))
	r.ReadRecordEnd()
	assert.Equal(t, 0, r.ReadSequenceStart(""))
	r.ReadSequenceEnd()
	r.ReadSequenceEnd()
	r.ReadRecordEnd()
	require.NoError(t, r.Err())
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatText, FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(f, &buf)
			writeSample(w)
			require.NoError(t, w.Flush())
			readSample(t, NewReader(f, &buf))
		})
	}
}

func TestTextWriter_Layout(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)
	w.WriteRecordStart("")
	w.WriteUint32("format", 1)
	w.WriteSequenceStart("entries", 2)
	w.WriteRecordStart("")
	w.WriteEnum("kind", "Double")
	w.WriteDouble("value", 1.5)
	w.WriteRecordEnd()
	w.WriteRecordStart("")
	w.WriteEnum("kind", "String")
	w.WriteString("value", "hi")
	w.WriteRecordEnd()
	w.WriteSequenceEnd()
	w.WriteSequenceStart("tags", 2)
	w.WriteLogTag("", 3)
	w.WriteLogTag("", 4)
	w.WriteSequenceEnd()
	w.WriteRecordEnd()
	require.NoError(t, w.Flush())

	want := "{format:1, entries:[2:\n" +
		"  {kind:#Double, value:1.5},\n" +
		"  {kind:#String, value:@2\"hi\"}\n" +
		"], tags:[2: *3, *4]}\n"
	assert.Equal(t, want, buf.String())
}

func TestWriter_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		write func(w Writer)
	}{
		{"missing key in record", func(w Writer) {
			w.WriteRecordStart("")
			w.WriteBool("", true)
		}},
		{"key in sequence", func(w Writer) {
			w.WriteSequenceStart("", 1)
			w.WriteBool("x", true)
		}},
		{"short sequence", func(w Writer) {
			w.WriteSequenceStart("", 2)
			w.WriteBool("", true)
			w.WriteSequenceEnd()
		}},
		{"mismatched close", func(w Writer) {
			w.WriteRecordStart("")
			w.WriteSequenceEnd()
		}},
		{"unclosed", func(w Writer) {
			w.WriteRecordStart("")
		}},
	}
	for _, f := range []Format{FormatText, FormatBinary} {
		for _, tt := range tests {
			t.Run(string(f)+"/"+tt.name, func(t *testing.T) {
				w := NewWriter(f, &bytes.Buffer{})
				tt.write(w)
				assert.Error(t, w.Flush())
			})
		}
	}
}

func TestReader_KeyMismatch(t *testing.T) {
	for _, f := range []Format{FormatText, FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(f, &buf)
			w.WriteRecordStart("")
			w.WriteInt64("time", 3)
			w.WriteRecordEnd()
			require.NoError(t, w.Flush())

			r := NewReader(f, &buf)
			r.ReadRecordStart("")
			r.ReadInt64("seq")
			err := r.Err()
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err))
			assert.Contains(t, err.Error(), "seq")

			// Sticky: later reads are no-ops.
			assert.Equal(t, int64(0), r.ReadInt64("time"))
			assert.Equal(t, err, r.Err())
		})
	}
}

func TestReader_TokenKindMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewBinaryWriter(&buf)
	w.WriteRecordStart("")
	w.WriteString("name", "x")
	w.WriteRecordEnd()
	require.NoError(t, w.Flush())

	r := NewBinaryReader(&buf)
	r.ReadRecordStart("")
	r.ReadEnum("name")
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "expected enum, found string")
}

func TestTextReader_Malformed(t *testing.T) {
	tests := map[string]string{
		"truncated":       `{time:`,
		"bad integer":     `{time:abc}`,
		"short string":    `{s:@10"abc"}`,
		"bad tag":         `{t:#x}`,
		"missing comma":   `{a:1 b:2}`,
		"bad seq length":  `{l:[x: 1]}`,
		"string overflow": `{s:@1"abc"}`,
	}
	read := map[string]func(r *TextReader){
		"truncated":       func(r *TextReader) { r.ReadInt64("time") },
		"bad integer":     func(r *TextReader) { r.ReadInt64("time") },
		"short string":    func(r *TextReader) { r.ReadString("s") },
		"bad tag":         func(r *TextReader) { r.ReadLogTag("t") },
		"missing comma":   func(r *TextReader) { r.ReadInt64("a"); r.ReadInt64("b") },
		"bad seq length":  func(r *TextReader) { r.ReadSequenceStart("l") },
		"string overflow": func(r *TextReader) { r.ReadString("s") },
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewTextReader(strings.NewReader(src))
			r.ReadRecordStart("")
			read[name](r)
			assert.True(t, IsSyntaxError(r.Err()), "got %v", r.Err())
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("binary")
	require.NoError(t, err)
	assert.Equal(t, "log.cbor", f.FileName())
	assert.Equal(t, "log.txt", FormatText.FileName())
	_, err = ParseFormat("json")
	assert.Error(t, err)
}

func TestBodyFileName(t *testing.T) {
	composed := "scripts/caf\u00e9.js"
	decomposed := "scripts/cafe\u0301.js"
	assert.Equal(t, BodyFileName(1, composed), BodyFileName(1, decomposed))
	assert.Equal(t, "body_7_main.js.src", BodyFileName(7, "file:///tmp/main.js"))
	assert.Equal(t, "body_2_script.src", BodyFileName(2, ""))
	assert.LessOrEqual(t, len(BodyFileName(3, strings.Repeat("x", 500))), len("body_3_.src")+maxNameStem)
}

func TestDirBodyStore(t *testing.T) {
	store := DirBodyStore{Dir: t.TempDir()}
	require.NoError(t, store.WriteBody(1, "a.js", "function sum"))
	got, err := store.ReadBody(1, "a.js")
	require.NoError(t, err)
	assert.Equal(t, "function sum", got)

	_, err = store.ReadBody(2, "a.js")
	assert.ErrorIs(t, err, ErrBodyNotFound)
}

func TestMemoryBodyStore(t *testing.T) {
	store := MemoryBodyStore{}
	require.NoError(t, store.WriteBody(4, "x", "src"))
	got, err := store.ReadBody(4, "x")
	require.NoError(t, err)
	assert.Equal(t, "src", got)
	_, err = store.ReadBody(5, "x")
	assert.ErrorIs(t, err, ErrBodyNotFound)
}
