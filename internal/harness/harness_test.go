package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/replay"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	tests := map[string]int32{
		"arrays.yaml":      0,
		"host_inputs.yaml": 2,
		"exceptions.yaml":  1,
	}
	for file, exit := range tests {
		t.Run(file, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, file), config.Default())
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, replay.AbortEndOfLog{ExitCode: exit}, result.Outcome)
			require.NotEmpty(t, result.Trace)
			assert.Equal(t, "CreateScriptContext", result.Trace[0].Kind)
			assert.Equal(t, "HostExitProcess", result.Trace[len(result.Trace)-1].Kind)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "host_inputs.yaml")
	first, err := Run(scenario, config.Default())
	require.NoError(t, err)
	second, err := Run(scenario, config.Default())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first.Log, second.Log), "two recordings of one scenario differ")
	assert.Contains(t, string(first.Log), SessionID(scenario.Name).String())
}

func TestRun_ConfigDoesNotChangeResults(t *testing.T) {
	cfg, err := config.Parse("c.toml", []byte("[array]\nforce_btree = true\nbtree_threshold = 1\n[log]\nblock_size = 2\nsnapshot_interval = 1\n"))
	require.NoError(t, err)

	result, err := Run(loadTestScenario(t, "arrays.yaml"), cfg)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong
scripts:
  - uri: w.rw
    source: |
      function sum
      external hostThrow
steps:
  - call: sum
    args: [[1, 2]]
    expect: {value: 4}
  - call: hostThrow
    args: [x]
  - call: sum
    args: [[1]]
    expect: {throws: nope}
assertions:
  - type: log_count
    kind: Snapshot
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario, config.Default())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected 4, got 3")
	assert.Contains(t, result.Errors[1], "unexpected Uncaught x")
	assert.Contains(t, result.Errors[2], `expected throw "nope", got ""`)
	assert.Contains(t, result.Errors[3], "log_count")
	assert.Equal(t, replay.AbortEndOfLog{}, result.Outcome, "replay still verifies")
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":      "name: x\nscripts: [{uri: a.rw}]\nstepz: []\n",
		"missing name":       "scripts: [{uri: a.rw}]\n",
		"no scripts":         "name: x\n",
		"script without uri": "name: x\nscripts: [{source: ''}]\n",
		"two operations":     "name: x\nscripts: [{uri: a.rw}]\nsteps: [{call: sum, snapshot: true}]\n",
		"no operation":       "name: x\nscripts: [{uri: a.rw}]\nsteps: [{as: v}]\n",
		"args on set":        "name: x\nscripts: [{uri: a.rw}]\nsteps: [{set: g, args: [1]}]\n",
		"value and throws":   "name: x\nscripts: [{uri: a.rw}]\nsteps: [{call: f, expect: {value: 1, throws: e}}]\n",
		"unbound variable":   "name: x\nscripts: [{uri: a.rw}]\nsteps: [{call: f, args: [$v]}, {call: g, as: v}]\n",
		"unknown kind":       "name: x\nscripts: [{uri: a.rw}]\nassertions: [{type: log_contains, kind: Teleport}]\n",
		"unknown type":       "name: x\nscripts: [{uri: a.rw}]\nassertions: [{type: final_state}]\n",
		"empty order":        "name: x\nscripts: [{uri: a.rw}]\nassertions: [{type: log_order}]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAssertions(t *testing.T) {
	trace := []TraceEvent{
		{Time: 1, Kind: "CreateScriptContext"},
		{Time: 2, Kind: "CodeParse"},
		{Time: 3, Kind: "CallExistingFunction"},
		{Time: 4, Kind: "CallExistingFunction"},
	}
	result := &Result{Trace: trace}

	pass := []Assertion{
		{Type: AssertLogContains, Kind: "CodeParse"},
		{Type: AssertLogCount, Kind: "CallExistingFunction", Count: 2},
		{Type: AssertLogCount, Kind: "Snapshot", Count: 0},
		{Type: AssertLogOrder, Kinds: []string{"CreateScriptContext", "CallExistingFunction"}},
	}
	assert.Empty(t, EvaluateAssertions(result, pass))

	fail := []Assertion{
		{Type: AssertLogContains, Kind: "Snapshot"},
		{Type: AssertLogCount, Kind: "CodeParse", Count: 2},
		{Type: AssertLogOrder, Kinds: []string{"CodeParse", "CreateScriptContext"}},
	}
	msgs := EvaluateAssertions(result, fail)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2], "then no CreateScriptContext")
	assert.Contains(t, msgs[0], "[3] CallExistingFunction")
}

func TestRunWithGolden(t *testing.T) {
	dir := t.TempDir()
	scenario := loadTestScenario(t, "arrays.yaml")

	// Record once to seed the fixture, then compare a fresh recording.
	first, err := Run(scenario, config.Default())
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, first.Log))

	result, err := RunWithGolden(t, scenario, config.Default(), goldie.WithFixtureDir(dir))
	require.NoError(t, err)
	assert.True(t, result.Pass)

	written, err := os.ReadFile(filepath.Join(dir, scenario.Name+".golden"))
	require.NoError(t, err)
	assert.Equal(t, first.Log, written)
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\n"), 0o644))

	res := RunSuite(append(paths, bad), config.Default())
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Passed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad, res.Failures[0].Path)
}
