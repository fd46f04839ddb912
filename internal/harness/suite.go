package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FindScenarios returns the YAML files under dir, skipping golden
// directories. A non-empty filter is a glob matched against the file name
// without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// ScenarioOutcome is the result of one scenario file in a suite.
type ScenarioOutcome struct {
	File     string
	Scenario *Scenario // nil when the file did not load
	Result   *Result   // nil when the scenario did not run
	Err      error     // load or execution error
}

// Name returns the scenario name, or the file name when it did not load.
func (o ScenarioOutcome) Name() string {
	if o.Scenario != nil {
		return o.Scenario.Name
	}
	return filepath.Base(o.File)
}

// Pass reports whether the scenario ran and passed.
func (o ScenarioOutcome) Pass() bool {
	return o.Err == nil && o.Result != nil && o.Result.Pass
}

// RunFiles loads and runs each scenario file. Views paths resolve against
// basePath; an empty basePath resolves them against each file's directory.
func RunFiles(files []string, basePath string) []ScenarioOutcome {
	out := make([]ScenarioOutcome, 0, len(files))
	for _, file := range files {
		o := ScenarioOutcome{File: file}
		base := basePath
		if base == "" {
			base = filepath.Dir(file)
		}
		o.Scenario, o.Err = LoadScenarioWithBasePath(file, base)
		if o.Err == nil {
			o.Result, o.Err = Run(o.Scenario)
		}
		out = append(out, o)
	}
	return out
}
