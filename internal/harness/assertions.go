package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Time, event.Kind)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the result's trace and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertLogContains:
			err = assertLogContains(result.Trace, a)
		case AssertLogCount:
			err = assertLogCount(result.Trace, a)
		case AssertLogOrder:
			err = assertLogOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func countKind(trace []TraceEvent, kind string) int {
	n := 0
	for _, e := range trace {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func assertLogContains(trace []TraceEvent, a Assertion) error {
	if countKind(trace, a.Kind) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("an entry of kind %s", a.Kind),
		Actual:   "none recorded",
		Trace:    trace,
	}
}

func assertLogCount(trace []TraceEvent, a Assertion) error {
	if n := countKind(trace, a.Kind); n != a.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d entries of kind %s", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertLogOrder checks that a.Kinds occur as a subsequence of the trace.
func assertLogOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Kinds) && e.Kind == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogOrder,
		Expected: strings.Join(a.Kinds, " -> "),
		Actual:   fmt.Sprintf("matched up to %s, then no %s", strings.Join(a.Kinds[:next], " -> "), a.Kinds[next]),
		Trace:    trace,
	}
}
