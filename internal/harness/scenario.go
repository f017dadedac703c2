package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/eventlog"
)

// Scenario defines one recording.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Scripts are parsed and run, in order, before the steps.
	Scripts []Script `yaml:"scripts"`

	// Steps run against the recording after the scripts load.
	Steps []Step `yaml:"steps"`

	// Exit is the host exit code recorded at the end.
	Exit int32 `yaml:"exit"`

	// Assertions check the recorded log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Script is one source file loaded into the context.
type Script struct {
	URI    string `yaml:"uri"`
	Source string `yaml:"source"`
}

// Step is a single operation. Exactly one of Call, Set or Snapshot is used.
type Step struct {
	// Call names a global function to call with Args.
	Call string `yaml:"call,omitempty"`

	// Args are converted to script values. Strings starting with "$"
	// refer to a value bound by an earlier step's As.
	Args []any `yaml:"args,omitempty"`

	// Set names a global to assign Value to.
	Set   string `yaml:"set,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Snapshot records an explicit snapshot.
	Snapshot bool `yaml:"snapshot,omitempty"`

	// As binds the call's result for later steps.
	As string `yaml:"as,omitempty"`

	// Expect checks the call's outcome. Nil skips the check.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a call outcome: a returned value or a thrown one.
type Expect struct {
	Value  any    `yaml:"value,omitempty"`
	Throws string `yaml:"throws,omitempty"`
}

// Assertion checks the recorded log.
type Assertion struct {
	// Type is one of log_contains, log_count or log_order.
	Type string `yaml:"type"`

	// Kind is the entry kind name (log_contains, log_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the exact number of Kind entries (log_count).
	Count int `yaml:"count,omitempty"`

	// Kinds must appear in this order, not necessarily adjacent (log_order).
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertLogContains = "log_contains"
	AssertLogCount    = "log_count"
	AssertLogOrder    = "log_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Scripts) == 0 {
		return fmt.Errorf("scripts list is required and must be non-empty")
	}

	for i, script := range s.Scripts {
		if script.URI == "" {
			return fmt.Errorf("scripts[%d]: uri is required", i)
		}
	}

	bound := map[string]bool{}
	for i, step := range s.Steps {
		ops := 0
		for _, set := range []bool{step.Call != "", step.Set != "", step.Snapshot} {
			if set {
				ops++
			}
		}
		if ops != 1 {
			return fmt.Errorf("steps[%d]: exactly one of call, set or snapshot is required", i)
		}
		if step.Call == "" && (len(step.Args) > 0 || step.As != "" || step.Expect != nil) {
			return fmt.Errorf("steps[%d]: args, as and expect only apply to call", i)
		}
		if step.Expect != nil && step.Expect.Throws != "" && step.Expect.Value != nil {
			return fmt.Errorf("steps[%d].expect: value and throws are exclusive", i)
		}
		refs := append([]any{step.Value}, step.Args...)
		for _, name := range varRefs(refs) {
			if !bound[name] {
				return fmt.Errorf("steps[%d]: $%s is not bound by an earlier step", i, name)
			}
		}
		if step.As != "" {
			bound[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	checkKind := func(name string) error {
		if _, ok := eventlog.ParseKind(name); !ok {
			return fmt.Errorf("assertions[%d]: unknown entry kind %q", index, name)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertLogContains:
		return checkKind(a.Kind)
	case AssertLogCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
		return checkKind(a.Kind)
	case AssertLogOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for log_order", index)
		}
		for _, k := range a.Kinds {
			if err := checkKind(k); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}
