package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/queryir"
)

// Columns are the result columns of every compiled query, in order.
var Columns = []string{"session_id", "seq", "time", "kind", "size"}

// columns maps query fields to SQL column references.
var columns = map[queryir.Field]string{
	queryir.FieldSession: "e.session_id",
	queryir.FieldLabel:   "s.label",
	queryir.FieldSeq:     "e.seq",
	queryir.FieldTime:    "e.time",
	queryir.FieldKind:    "e.kind",
}

// SQLCompiler compiles entry queries to parameterized SQL for the archive
// schema. Literal values always travel as parameters.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and converts it to SQL plus its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT e.session_id, e.seq, e.time, e.kind, length(e.payload)")
	b.WriteString(" FROM entries AS e INNER JOIN sessions AS s ON s.id = e.session_id")

	var params []any
	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = filterParams
	}

	// Every query has a total order so results never depend on storage.
	b.WriteString(" ORDER BY e.session_id COLLATE BINARY ASC, e.seq ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.Between:
		return c.compileBetween(pred)
	case *queryir.Between:
		return c.compileBetween(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, err
	}
	return columns[eq.Field] + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	params := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, err
		}
		params = append(params, param)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", columns[in.Field], marks), params, nil
}

func (c *SQLCompiler) compileBetween(b queryir.Between) (string, []any, error) {
	return columns[b.Field] + " BETWEEN ? AND ?", []any{b.Low, b.High}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func valueToParam(v queryir.Value) (any, error) {
	switch val := v.(type) {
	case queryir.Str:
		return string(val), nil
	case queryir.Int:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
