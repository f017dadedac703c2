package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rewind/internal/config"
)

// RunWithGolden runs a scenario and compares its text log against a golden
// file. The golden file is stored in testdata/golden/{scenario.Name}.golden
// unless opts override the fixture directory.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, cfg config.Config, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, cfg)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result, opts...)
	return result, nil
}

// AssertGolden compares an existing result's log against a golden file.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) {
	t.Helper()

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, result.Log)
}
