package queryir

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/eventlog"
)

// ValidationResult lists what is wrong with a query, if anything.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that every predicate names a known field, compares it
// with a literal of the right type, and that session ids and kind names
// are well formed.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("nil predicate")
	case Equals:
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validateValue(pred.Field, pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case Between:
		v.validateBetween(pred)
	case *Between:
		v.validateBetween(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateIn(in In) {
	if len(in.Values) == 0 {
		v.addProblem("field %q: empty value list", in.Field)
		return
	}
	for _, val := range in.Values {
		v.validateValue(in.Field, val)
	}
}

func (v *validator) validateBetween(b Between) {
	if !v.knownField(b.Field) {
		return
	}
	if !b.Field.Numeric() {
		v.addProblem("field %q: range needs a numeric field", b.Field)
	}
	if b.Low > b.High {
		v.addProblem("field %q: empty range [%d, %d]", b.Field, b.Low, b.High)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func (v *validator) knownField(f Field) bool {
	if !f.Known() {
		v.addProblem("unknown field %q", f)
		return false
	}
	return true
}

// validateValue checks val has the type f holds, plus field-specific syntax.
func (v *validator) validateValue(f Field, val Value) {
	if !v.knownField(f) {
		return
	}
	switch lit := val.(type) {
	case Int:
		if !f.Numeric() {
			v.addProblem("field %q: compared to integer %d", f, int64(lit))
		}
	case Str:
		if f.Numeric() {
			v.addProblem("field %q: compared to string %q", f, string(lit))
			return
		}
		switch f {
		case FieldSession:
			if _, err := uuid.Parse(string(lit)); err != nil {
				v.addProblem("field %q: %q is not a session id", f, string(lit))
			}
		case FieldKind:
			if _, ok := eventlog.ParseKind(string(lit)); !ok {
				v.addProblem("field %q: unknown entry kind %q", f, string(lit))
			}
		}
	case nil:
		v.addProblem("field %q: missing value", f)
	default:
		v.addProblem("field %q: unsupported value type %T", f, val)
	}
}
