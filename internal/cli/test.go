package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string // directory of <scenario>.golden logs
	Update bool   // rewrite golden logs instead of comparing
}

// TestResult wraps a suite result for output.
type TestResult struct {
	*harness.SuiteResult
	Updated int `json:"updated,omitempty"`
}

func (r TestResult) Text() string {
	var b strings.Builder
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "FAIL %s\n", f.Path)
		for _, e := range f.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	if r.Updated > 0 {
		fmt.Fprintf(&b, "Updated %d golden logs\n", r.Updated)
	}
	fmt.Fprintf(&b, "%d scenarios: %d passed, %d failed\n", r.Total, r.Passed, r.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-dir|scenario.yaml>",
		Short: "Record, replay and check scenarios",
		Long: `Run every scenario under a directory (or a single scenario file). Each one is
recorded, its expectations and assertions are checked, and its log is
replayed against a host with different inputs to confirm it reproduces.

With --golden, each scenario's text log is also compared with
<golden-dir>/<name>.golden. Add --update to rewrite those files.

Exit codes:
  0 - Every scenario passed
  1 - At least one scenario failed
  2 - Command error (no scenarios, unreadable directory, etc.)

Examples:
  rewind test ./scenarios
  rewind test ./scenarios --golden ./golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "compare logs with golden files in this directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files (with --golden)")

	return cmd
}

func runTest(opts *TestOptions, target string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update needs --golden")
	}
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	paths, err := scenarioPaths(target)
	if err != nil {
		return err
	}
	out.VerboseLog("Found %d scenarios in %s", len(paths), target)

	result := TestResult{}
	if opts.Golden == "" {
		result.SuiteResult = harness.RunSuite(paths, cfg)
	} else {
		result, err = runGolden(opts, paths, cfg)
		if err != nil {
			return err
		}
	}

	if err := out.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func scenarioPaths(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "scenario path not found", err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}
	paths, err := harness.FindScenarios(target)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to scan scenarios", err)
	}
	if len(paths) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no scenarios found in %s", target))
	}
	return paths, nil
}

// runGolden runs each scenario and checks its log against the golden file
// named after the scenario.
func runGolden(opts *TestOptions, paths []string, cfg config.Config) (TestResult, error) {
	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return TestResult{}, WrapExitError(ExitCommandError, "failed to create golden directory", err)
		}
	}
	result := TestResult{SuiteResult: &harness.SuiteResult{}}
	for _, path := range paths {
		result.Total++
		errs, updated := goldenOne(opts, path, cfg)
		if updated {
			result.Updated++
		}
		if len(errs) == 0 {
			result.Passed++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, harness.ScenarioFailure{Path: path, Errors: errs})
	}
	return result, nil
}

func goldenOne(opts *TestOptions, path string, cfg config.Config) ([]string, bool) {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return []string{err.Error()}, false
	}
	res, err := harness.Run(scenario, cfg)
	if err != nil {
		return []string{err.Error()}, false
	}
	errs := res.Errors

	golden := filepath.Join(opts.Golden, scenario.Name+".golden")
	if opts.Update {
		if err := os.WriteFile(golden, res.Log, 0o644); err != nil {
			return append(errs, fmt.Sprintf("write golden: %v", err)), false
		}
		return errs, true
	}
	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		errs = append(errs, fmt.Sprintf("golden file %s missing (run with --update)", golden))
	case err != nil:
		errs = append(errs, fmt.Sprintf("read golden: %v", err))
	case !bytes.Equal(want, res.Log):
		errs = append(errs, fmt.Sprintf("log differs from %s", golden))
	}
	return errs, false
}
