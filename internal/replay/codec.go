package replay

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/slab"
)

// decoder wraps a Reader with the session (for slab allocation and side
// files) and a sticky semantic error, reported after any syntax error.
type decoder struct {
	s   *Session
	r   logio.Reader
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = newError(ErrCodeLogCorrupt, nil, format, args...)
	}
}

func (d *decoder) Err() error {
	if err := d.r.Err(); err != nil {
		re := newError(ErrCodeLogCorrupt, nil, "malformed log")
		re.Err = err
		return re
	}
	return d.err
}

func (d *decoder) ok() bool { return d.r.Err() == nil && d.err == nil }

// str copies a decoded string into the slab.
func (d *decoder) str(key string) (string, slab.Ref) {
	v := d.r.ReadString(key)
	if v == "" {
		return "", slab.Ref{}
	}
	return d.s.slab.AllocString(v)
}

func writeVar(w logio.Writer, key string, v eventlog.Var) {
	w.WriteRecordStart(key)
	w.WriteEnum("t", v.Kind.String())
	switch v.Kind {
	case eventlog.VarBool:
		w.WriteBool("v", v.Bool)
	case eventlog.VarNumber:
		w.WriteDouble("v", v.Num)
	case eventlog.VarString:
		w.WriteString("v", v.Str)
	case eventlog.VarObject:
		w.WriteLogTag("v", uint64(v.Tag))
	}
	w.WriteRecordEnd()
}

func (d *decoder) readVar(key string) eventlog.Var {
	d.r.ReadRecordStart(key)
	name := d.r.ReadEnum("t")
	var v eventlog.Var
	kind, ok := eventlog.ParseVarKind(name)
	if !ok {
		if d.ok() {
			d.fail("unknown value kind %q", name)
		}
		return v
	}
	v.Kind = kind
	switch kind {
	case eventlog.VarBool:
		v.Bool = d.r.ReadBool("v")
	case eventlog.VarNumber:
		v.Num = d.r.ReadDouble("v")
	case eventlog.VarString:
		v.Str = d.r.ReadString("v")
	case eventlog.VarObject:
		v.Tag = eventlog.LogTag(d.r.ReadLogTag("v"))
	}
	d.r.ReadRecordEnd()
	return v
}

func writeVars(w logio.Writer, key string, vars []eventlog.Var) {
	w.WriteSequenceStart(key, len(vars))
	for _, v := range vars {
		writeVar(w, "", v)
	}
	w.WriteSequenceEnd()
}

// readVars reads a value list into slab memory.
func (d *decoder) readVars(key string) ([]eventlog.Var, slab.Ref) {
	n := d.r.ReadSequenceStart(key)
	vars, ref := slab.Alloc[eventlog.Var](d.s.slab, n)
	for i := 0; i < n && d.ok(); i++ {
		vars[i] = d.readVar("")
	}
	d.r.ReadSequenceEnd()
	return vars, ref
}

func writeTag(w logio.Writer, key string, tag eventlog.LogTag) {
	w.WriteLogTag(key, uint64(tag))
}

func (d *decoder) readTag(key string) eventlog.LogTag {
	return eventlog.LogTag(d.r.ReadLogTag(key))
}

func writeKnown(w logio.Writer, key string, k eventlog.KnownObjects) {
	w.WriteRecordStart(key)
	writeTag(w, "global", k.Global)
	writeTag(w, "undefined", k.Undefined)
	writeTag(w, "null", k.Null)
	writeTag(w, "true", k.True)
	writeTag(w, "false", k.False)
	w.WriteRecordEnd()
}

func (d *decoder) readKnown(key string) eventlog.KnownObjects {
	var k eventlog.KnownObjects
	d.r.ReadRecordStart(key)
	k.Global = d.readTag("global")
	k.Undefined = d.readTag("undefined")
	k.Null = d.readTag("null")
	k.True = d.readTag("true")
	k.False = d.readTag("false")
	d.r.ReadRecordEnd()
	return k
}

func writeSnapshot(w logio.Writer, key string, snap *eventlog.SnapshotData) {
	w.WriteRecordStart(key)
	w.WriteInt64("restore", snap.RestoreTime)
	w.WriteInt64("context", snap.ContextID)
	writeKnown(w, "known", snap.Known)
	writeTag(w, "nextTag", snap.NextTag)
	w.WriteBool("seeded", snap.RandomSeeded)
	w.WriteUint64("seed0", snap.RandomState[0])
	w.WriteUint64("seed1", snap.RandomState[1])
	writeVar(w, "pending", snap.Pending)
	w.WriteSequenceStart("callbacks", len(snap.Callbacks))
	for _, cb := range snap.Callbacks {
		w.WriteRecordStart("")
		w.WriteInt64("id", cb.ID)
		writeTag(w, "fn", cb.Function)
		w.WriteRecordEnd()
	}
	w.WriteSequenceEnd()
	w.WriteSequenceStart("objects", len(snap.Objects))
	for i := range snap.Objects {
		writeSnapObject(w, &snap.Objects[i])
	}
	w.WriteSequenceEnd()
	w.WriteRecordEnd()
}

func writeSnapObject(w logio.Writer, o *eventlog.SnapObject) {
	w.WriteRecordStart("")
	writeTag(w, "id", o.ID)
	writeTag(w, "tag", o.Tag)
	w.WriteString("intrinsic", o.Intrinsic)
	if o.Intrinsic != "" {
		w.WriteRecordEnd()
		return
	}
	w.WriteString("class", o.Class)
	w.WriteString("proto", o.Proto)
	writeTag(w, "protoRef", o.ProtoRef)
	w.WriteBool("extensible", o.Extensible)
	w.WriteString("function", o.Function)
	w.WriteBool("external", o.External)
	w.WriteString("script", o.Script)
	w.WriteUint32("length", o.Length)
	writeVars(w, "elements", o.Elements)
	w.WriteSequenceStart("props", len(o.Props))
	for _, p := range o.Props {
		w.WriteRecordStart("")
		w.WriteString("name", p.Name)
		writeVar(w, "value", p.Value)
		w.WriteBool("w", p.Writable)
		w.WriteBool("e", p.Enumerable)
		w.WriteBool("c", p.Configurable)
		w.WriteRecordEnd()
	}
	w.WriteSequenceEnd()
	w.WriteRecordEnd()
}

// readSnapshot reads snapshot state. Snapshots are long lived (they
// outlast eviction of the entries around them), so they use ordinary
// memory rather than the slab.
func (d *decoder) readSnapshot(key string) *eventlog.SnapshotData {
	snap := &eventlog.SnapshotData{}
	d.r.ReadRecordStart(key)
	snap.RestoreTime = d.r.ReadInt64("restore")
	snap.ContextID = d.r.ReadInt64("context")
	snap.Known = d.readKnown("known")
	snap.NextTag = d.readTag("nextTag")
	snap.RandomSeeded = d.r.ReadBool("seeded")
	snap.RandomState[0] = d.r.ReadUint64("seed0")
	snap.RandomState[1] = d.r.ReadUint64("seed1")
	snap.Pending = d.readVar("pending")
	n := d.r.ReadSequenceStart("callbacks")
	for i := 0; i < n && d.ok(); i++ {
		d.r.ReadRecordStart("")
		cb := eventlog.SnapCallback{ID: d.r.ReadInt64("id"), Function: d.readTag("fn")}
		d.r.ReadRecordEnd()
		snap.Callbacks = append(snap.Callbacks, cb)
	}
	d.r.ReadSequenceEnd()
	n = d.r.ReadSequenceStart("objects")
	for i := 0; i < n && d.ok(); i++ {
		snap.Objects = append(snap.Objects, d.readSnapObject())
	}
	d.r.ReadSequenceEnd()
	d.r.ReadRecordEnd()
	return snap
}

func (d *decoder) readSnapObject() eventlog.SnapObject {
	var o eventlog.SnapObject
	d.r.ReadRecordStart("")
	o.ID = d.readTag("id")
	o.Tag = d.readTag("tag")
	o.Intrinsic = d.r.ReadString("intrinsic")
	if o.Intrinsic != "" {
		d.r.ReadRecordEnd()
		return o
	}
	o.Class = d.r.ReadString("class")
	o.Proto = d.r.ReadString("proto")
	o.ProtoRef = d.readTag("protoRef")
	o.Extensible = d.r.ReadBool("extensible")
	o.Function = d.r.ReadString("function")
	o.External = d.r.ReadBool("external")
	o.Script = d.r.ReadString("script")
	o.Length = d.r.ReadUint32("length")
	n := d.r.ReadSequenceStart("elements")
	for i := 0; i < n && d.ok(); i++ {
		o.Elements = append(o.Elements, d.readVar(""))
	}
	d.r.ReadSequenceEnd()
	n = d.r.ReadSequenceStart("props")
	for i := 0; i < n && d.ok(); i++ {
		var p eventlog.SnapProp
		d.r.ReadRecordStart("")
		p.Name = d.r.ReadString("name")
		p.Value = d.readVar("value")
		p.Writable = d.r.ReadBool("w")
		p.Enumerable = d.r.ReadBool("e")
		p.Configurable = d.r.ReadBool("c")
		d.r.ReadRecordEnd()
		o.Props = append(o.Props, p)
	}
	d.r.ReadSequenceEnd()
	d.r.ReadRecordEnd()
	return o
}

// emitEntry writes one entry: its kind and time, then the payload fields
// in the kind's fixed order.
func (s *Session) emitEntry(w logio.Writer, e *eventlog.Entry) error {
	w.WriteRecordStart("")
	w.WriteEnum("kind", e.Kind.String())
	w.WriteInt64("time", e.Time)
	if err := handlerFor(e.Kind).emit(s, w, e); err != nil {
		return err
	}
	w.WriteRecordEnd()
	return w.Err()
}

func (d *decoder) readEntry() (eventlog.Entry, bool) {
	d.r.ReadRecordStart("")
	name := d.r.ReadEnum("kind")
	time := d.r.ReadInt64("time")
	if !d.ok() {
		return eventlog.Entry{}, false
	}
	kind, ok := eventlog.ParseKind(name)
	if !ok {
		d.fail("unknown event kind %q at time %d", name, time)
		return eventlog.Entry{}, false
	}
	p := handlerFor(kind).parse(d, kind)
	d.r.ReadRecordEnd()
	if !d.ok() || p == nil {
		return eventlog.Entry{}, false
	}
	return eventlog.NewEntry(kind, time, p), true
}

// Emit writes the session's whole log: a header with the format version
// and session id, then every entry. Script sources go to the session's
// BodyStore when it has one.
func Emit(s *Session, w logio.Writer) error {
	w.WriteRecordStart("")
	w.WriteUint32("format", FormatVersion)
	w.WriteString("session", s.ID.String())
	w.WriteSequenceStart("entries", s.log.Len())
	for _, e := range s.log.All() {
		if err := s.emitEntry(w, e); err != nil {
			return fmt.Errorf("emit entry %d: %w", e.Time, err)
		}
	}
	w.WriteSequenceEnd()
	w.WriteRecordEnd()
	if err := w.Flush(); err != nil {
		return fmt.Errorf("emit log: %w", err)
	}
	return nil
}

// Parse reads a log written by Emit into an empty replay session.
func Parse(s *Session, r logio.Reader) error {
	if s.mode != ModeReplay {
		return fmt.Errorf("parse log: session is in %s mode", s.mode)
	}
	if s.log.Len() != 0 {
		return fmt.Errorf("parse log: session already holds %d entries", s.log.Len())
	}
	d := &decoder{s: s, r: r}
	r.ReadRecordStart("")
	if v := r.ReadUint32("format"); d.ok() && v != FormatVersion {
		d.fail("unsupported log format %d", v)
	}
	idText := r.ReadString("session")
	if d.ok() {
		id, err := uuid.Parse(idText)
		if err != nil {
			d.fail("bad session id %q: %v", idText, err)
		}
		s.ID = id
	}
	n := r.ReadSequenceStart("entries")
	last := int64(0)
	for i := 0; i < n && d.ok(); i++ {
		e, ok := d.readEntry()
		if !ok {
			break
		}
		if e.Time <= last {
			d.fail("entry time %d does not follow %d", e.Time, last)
			break
		}
		s.log.Append(e)
		last = e.Time
	}
	if d.ok() {
		r.ReadSequenceEnd()
		r.ReadRecordEnd()
	}
	if err := d.Err(); err != nil {
		s.log.Close(s.unload)
		return fmt.Errorf("parse log: %w", err)
	}
	s.clock = eventlog.NewClockAt(last)
	s.logger.Info("log parsed", "session", s.ID, "entries", s.log.Len())
	return nil
}

// EncodeEntry serializes one entry in the binary format.
func EncodeEntry(s *Session, e *eventlog.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := logio.NewBinaryWriter(&buf)
	if err := s.emitEntry(w, e); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEntry parses one entry written by EncodeEntry.
func DecodeEntry(s *Session, data []byte) (eventlog.Entry, error) {
	d := &decoder{s: s, r: logio.NewBinaryReader(bytes.NewReader(data))}
	e, ok := d.readEntry()
	if err := d.Err(); err != nil {
		return eventlog.Entry{}, err
	}
	if !ok {
		return eventlog.Entry{}, newError(ErrCodeLogCorrupt, nil, "empty entry")
	}
	return e, nil
}
