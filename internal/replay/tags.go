package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/runtime"
)

// tagTable maps log tags to live values. Objects and symbols are tracked in
// both directions; the well-known primitives of a context are tagged too,
// but only looked up by tag.
type tagTable struct {
	next  eventlog.LogTag
	byTag map[eventlog.LogTag]runtime.Value
	byRef map[runtime.Value]eventlog.LogTag
}

func newTagTable() *tagTable {
	return &tagTable{
		next:  1,
		byTag: make(map[eventlog.LogTag]runtime.Value),
		byRef: make(map[runtime.Value]eventlog.LogTag),
	}
}

func isRef(v runtime.Value) bool {
	switch v.(type) {
	case *runtime.Object, *runtime.Symbol:
		return true
	}
	return false
}

// fresh reserves a tag without binding it.
func (t *tagTable) fresh() eventlog.LogTag {
	tag := t.next
	t.next++
	return tag
}

// tagFor returns v's tag, assigning the next one on first sight.
func (t *tagTable) tagFor(v runtime.Value) eventlog.LogTag {
	if tag, ok := t.byRef[v]; ok {
		return tag
	}
	tag := t.fresh()
	t.byTag[tag] = v
	t.byRef[v] = tag
	return tag
}

func (t *tagTable) lookup(v runtime.Value) (eventlog.LogTag, bool) {
	tag, ok := t.byRef[v]
	return tag, ok
}

func (t *tagTable) resolve(tag eventlog.LogTag) (runtime.Value, bool) {
	v, ok := t.byTag[tag]
	return v, ok
}

// bind associates tag with v. Rebinding a tag to the same value is a no-op;
// rebinding it to anything else fails.
func (t *tagTable) bind(tag eventlog.LogTag, v runtime.Value) error {
	if tag == eventlog.NoTag {
		return fmt.Errorf("bind of the zero tag")
	}
	if cur, ok := t.byTag[tag]; ok {
		if cur == v {
			return nil
		}
		return fmt.Errorf("tag %s is already bound", tag)
	}
	if isRef(v) {
		if cur, ok := t.byRef[v]; ok {
			return fmt.Errorf("object already carries tag %s, not %s", cur, tag)
		}
		t.byRef[v] = tag
	}
	t.byTag[tag] = v
	if tag >= t.next {
		t.next = tag + 1
	}
	return nil
}

func (t *tagTable) drop(tag eventlog.LogTag) {
	if v, ok := t.byTag[tag]; ok {
		delete(t.byTag, tag)
		if isRef(v) {
			delete(t.byRef, v)
		}
	}
}

// primitiveVar converts a non-reference value.
func primitiveVar(v runtime.Value) (eventlog.Var, bool) {
	switch v := v.(type) {
	case nil:
		return eventlog.UndefinedVar(), true
	case runtime.Bool:
		return eventlog.BoolVar(bool(v)), true
	case runtime.Number:
		return eventlog.NumberVar(float64(v)), true
	case runtime.String:
		return eventlog.StringVar(string(v)), true
	}
	switch {
	case runtime.IsUndefined(v):
		return eventlog.UndefinedVar(), true
	case runtime.IsNull(v):
		return eventlog.NullVar(), true
	case runtime.IsMissing(v):
		return eventlog.HoleVar(), true
	}
	return eventlog.Var{}, false
}

// toVar converts a value for recording, tagging references on first sight.
func (s *Session) toVar(v runtime.Value) eventlog.Var {
	if pv, ok := primitiveVar(v); ok {
		return pv
	}
	if isRef(v) {
		return eventlog.ObjectVar(s.tags.tagFor(v))
	}
	panic(fmt.Sprintf("replay: cannot log value of type %T", v))
}

func (s *Session) toVars(vals ...runtime.Value) []eventlog.Var {
	out := make([]eventlog.Var, len(vals))
	for i, v := range vals {
		out[i] = s.toVar(v)
	}
	return out
}

// inflate resolves a recorded value against the replay-time object graph.
func (s *Session) inflate(e *eventlog.Entry, v eventlog.Var) (runtime.Value, error) {
	switch v.Kind {
	case eventlog.VarUndefined:
		return runtime.Undefined, nil
	case eventlog.VarNull:
		return runtime.Null, nil
	case eventlog.VarBool:
		return runtime.Bool(v.Bool), nil
	case eventlog.VarNumber:
		return runtime.Number(v.Num), nil
	case eventlog.VarString:
		return runtime.String(v.Str), nil
	case eventlog.VarHole:
		return runtime.Missing, nil
	case eventlog.VarObject:
		if val, ok := s.tags.resolve(v.Tag); ok {
			return val, nil
		}
		return nil, newError(ErrCodeUnknownTag, e, "tag %s is not bound", v.Tag)
	}
	return nil, newError(ErrCodeLogCorrupt, e, "value of unknown kind %d", v.Kind)
}

func (s *Session) inflateAll(e *eventlog.Entry, vars []eventlog.Var) ([]runtime.Value, error) {
	out := make([]runtime.Value, len(vars))
	for i, v := range vars {
		val, err := s.inflate(e, v)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// match checks a value produced during replay against the recorded one.
// A reference seen for the first time takes the recorded tag.
func (s *Session) match(e *eventlog.Entry, what string, recorded eventlog.Var, actual runtime.Value) error {
	if isRef(actual) {
		if recorded.Kind == eventlog.VarObject {
			if tag, ok := s.tags.lookup(actual); ok {
				if tag == recorded.Tag {
					return nil
				}
			} else if _, bound := s.tags.resolve(recorded.Tag); !bound {
				return s.bindResult(e, recorded.Tag, actual)
			}
		}
		return newError(ErrCodeResultMismatch, e, "%s: recorded %s, replay produced %s", what, recorded, runtime.TypeOf(actual))
	}
	pv, _ := primitiveVar(actual)
	if !pv.Identical(recorded) {
		return newError(ErrCodeResultMismatch, e, "%s: recorded %s, replay produced %s", what, recorded, pv)
	}
	return nil
}

// bindResult binds a freshly created value to its recorded tag.
func (s *Session) bindResult(e *eventlog.Entry, tag eventlog.LogTag, v runtime.Value) error {
	if err := s.tags.bind(tag, v); err != nil {
		return newError(ErrCodeLogCorrupt, e, "%v", err)
	}
	return nil
}
