package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SuiteOptions configures RunFiles.
type SuiteOptions struct {
	// Parallel bounds the number of scenarios run at once. Zero or less
	// runs them one at a time.
	Parallel int

	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or empty when there is none
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a run over many scenario files.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// RunFiles loads and runs scenario files concurrently. Results keep the
// order of paths. Scenario failures are reported in the result; the error
// is non-nil only when ctx is cancelled.
func RunFiles(ctx context.Context, paths []string, opts SuiteOptions) (*SuiteResult, error) {
	results := make([]ScenarioResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runFile(gctx, path, opts.Update)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{Scenarios: results, Total: len(results)}
	for _, r := range results {
		if r.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}
	return suite, nil
}

func runFile(ctx context.Context, path string, update bool) ScenarioResult {
	res := ScenarioResult{File: path, Name: filepath.Base(path)}

	scenario, err := LoadScenario(path)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := RunContext(ctx, scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Errors = result.Errors

	goldenPath := GoldenFilePath(path)
	current, err := MarshalTrace(scenario.Name, result.Trace)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return res
	}

	switch {
	case update:
		if err := writeGolden(goldenPath, current); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		res.Golden = "updated"
	default:
		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
			return res
		}
		if !bytes.Equal(want, current) {
			res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
			return res
		}
		res.Golden = "match"
	}

	res.Pass = result.Pass
	return res
}

// GoldenFilePath returns the golden file for a scenario file:
// golden/<name>.golden next to it.
func GoldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// FindScenarioFiles finds all YAML scenario files under dir. A non-empty
// filter is a glob matched against the file name without its extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}
