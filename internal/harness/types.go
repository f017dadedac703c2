package harness

import "github.com/roach88/rewind/internal/replay"

// TraceEvent is one recorded log entry as assertions see it.
type TraceEvent struct {
	Time int64  `json:"time"`
	Kind string `json:"kind"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation, assertion and the replay check held.
	Pass bool `json:"pass"`

	// Trace lists the recorded entries in log order.
	Trace []TraceEvent `json:"trace"`

	// Log is the recording emitted in the text format.
	Log []byte `json:"-"`

	// Outcome is how the verifying replay ended.
	Outcome replay.Outcome `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
