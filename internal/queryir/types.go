package queryir

// Field names an attribute of an archived entry that predicates can test.
type Field string

const (
	FieldSession Field = "session" // session id, a UUID string
	FieldLabel   Field = "label"   // label the session was archived under
	FieldSeq     Field = "seq"     // position in the session's log
	FieldTime    Field = "time"    // event time
	FieldKind    Field = "kind"    // entry kind name
)

// Fields lists every queryable field.
func Fields() []Field {
	return []Field{FieldSession, FieldLabel, FieldSeq, FieldTime, FieldKind}
}

// Numeric reports whether f holds integers rather than strings.
func (f Field) Numeric() bool {
	return f == FieldSeq || f == FieldTime
}

// Known reports whether f is one of the fields in Fields.
func (f Field) Known() bool {
	switch f {
	case FieldSession, FieldLabel, FieldSeq, FieldTime, FieldKind:
		return true
	}
	return false
}

// Query is the root of a query tree.
type Query interface {
	queryNode()
}

// Predicate filters entries.
type Predicate interface {
	predicateNode()
}

// Value is a literal compared against a field.
type Value interface {
	valueNode()
}

// Str is a string literal.
type Str string

// Int is an integer literal.
type Int int64

func (Str) valueNode() {}
func (Int) valueNode() {}

// Select lists the archived entries matching Filter.
//
//	SELECT <entry columns> FROM entries WHERE <filter> ORDER BY session, seq
//
// A nil Filter matches every entry. Limit caps the number of rows; zero
// means no cap.
type Select struct {
	Filter Predicate
	Limit  int
}

func (Select) queryNode() {}

// Equals matches entries whose Field equals Value.
type Equals struct {
	Field Field
	Value Value
}

func (Equals) predicateNode() {}

// In matches entries whose Field equals any of Values. Values must not be
// empty.
type In struct {
	Field  Field
	Values []Value
}

func (In) predicateNode() {}

// Between matches entries whose numeric Field lies in [Low, High].
type Between struct {
	Field Field
	Low   int64
	High  int64
}

func (Between) predicateNode() {}

// And matches entries satisfying every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
