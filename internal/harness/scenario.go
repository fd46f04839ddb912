package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lucasrosaalves/industrial-model/internal/queryfile"
)

// Scenario defines a query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Views is the CUE file or directory declaring the views. Relative
	// paths are resolved against the scenario's base path.
	Views string `yaml:"views"`

	// Setup writes instances before the flow runs. Setup steps must
	// succeed.
	Setup []LoadStep `yaml:"setup,omitempty"`

	// Flow runs queries and checks their results.
	Flow []QueryStep `yaml:"flow"`

	// Assertions run after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// LoadStep writes instances of one view.
type LoadStep struct {
	View  string           `yaml:"view"`
	Items []map[string]any `yaml:"items"`
}

// QueryStep runs one query file against a view.
type QueryStep struct {
	// Name identifies the step in assertions and the trace.
	Name string `yaml:"name"`

	View  string         `yaml:"view"`
	Query queryfile.File `yaml:"query"`

	// Expect is checked against the step's result. Nil means the step
	// only has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected result of a query step.
type ExpectClause struct {
	// Count is the exact number of returned items.
	Count *int `yaml:"count,omitempty"`

	// Items are matched by position. Each expected item is a subset of
	// the returned one.
	Items []map[string]any `yaml:"items,omitempty"`

	HasNextPage *bool `yaml:"hasNextPage,omitempty"`

	// Error, when set, expects the step to fail with an error containing
	// this text.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the stored instances after the flow.
type Assertion struct {
	// Type is one of result_contains, result_order, result_count and
	// final_state.
	Type string `yaml:"type"`

	// Step names the flow step checked by the result assertions.
	Step string `yaml:"step,omitempty"`

	// Match is the subset an item must contain (result_contains).
	Match map[string]any `yaml:"match,omitempty"`

	// Property and Values give the expected order (result_order).
	Property string `yaml:"property,omitempty"`
	Values   []any  `yaml:"values,omitempty"`

	// Count is the expected number of items (result_count).
	Count int `yaml:"count,omitempty"`

	// View, ExternalID and Space identify an instance and Expect the
	// subset of its properties (final_state).
	View       string         `yaml:"view,omitempty"`
	ExternalID string         `yaml:"externalId,omitempty"`
	Space      string         `yaml:"space,omitempty"`
	Expect     map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertResultContains = "result_contains"
	AssertResultOrder    = "result_order"
	AssertResultCount    = "result_count"
	AssertFinalState     = "final_state"
)

// LoadScenario reads a scenario file. The views path is resolved relative
// to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving the views
// path relative to basePath. Unknown keys are rejected.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Views != "" && !filepath.IsAbs(scenario.Views) && basePath != "" {
		scenario.Views = filepath.Join(basePath, scenario.Views)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields. Every problem is reported.
func validateScenario(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if s.Views == "" {
		errs = append(errs, errors.New("views is required"))
	}
	if len(s.Flow) == 0 {
		errs = append(errs, errors.New("flow list is required and must be non-empty"))
	}

	for i, step := range s.Setup {
		if step.View == "" {
			errs = append(errs, fmt.Errorf("setup[%d]: view is required", i))
		}
	}

	names := make(map[string]bool, len(s.Flow))
	for i, step := range s.Flow {
		switch {
		case step.Name == "":
			errs = append(errs, fmt.Errorf("flow[%d]: name is required", i))
		case names[step.Name]:
			errs = append(errs, fmt.Errorf("flow[%d]: duplicate step name %q", i, step.Name))
		}
		names[step.Name] = true
		if step.View == "" {
			errs = append(errs, fmt.Errorf("flow[%d]: view is required", i))
		}
		if err := step.Query.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("flow[%d]: query: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
