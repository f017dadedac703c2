package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/rewind/internal/config"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario at paths. A scenario that fails to
// load or record counts as failed.
func RunSuite(paths []string, cfg config.Config) *SuiteResult {
	res := &SuiteResult{}
	for _, path := range paths {
		res.Total++
		errs := runOne(path, cfg)
		if len(errs) == 0 {
			res.Passed++
			continue
		}
		res.Failed++
		res.Failures = append(res.Failures, ScenarioFailure{Path: path, Errors: errs})
	}
	return res
}

func runOne(path string, cfg config.Config) []string {
	scenario, err := LoadScenario(path)
	if err != nil {
		return []string{err.Error()}
	}
	result, err := Run(scenario, cfg)
	if err != nil {
		return []string{err.Error()}
	}
	return result.Errors
}
