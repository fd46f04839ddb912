package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lucasrosaalves/industrial-model/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <views-dir> <scenarios-dir>",
		Short: "Run query scenarios",
		Long: `Run YAML query scenarios against a fresh in-memory store.

Each scenario loads instances, runs query files and checks their results.
The views path of a scenario is resolved against <views-dir>. When a
scenario has a golden file (golden/<name>.golden next to it) its trace must
match the file as well.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  imodel test ./views ./scenarios
  imodel test ./views ./scenarios --filter "asset*"
  imodel test ./views ./scenarios --update`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	return cmd
}

func runTests(opts *TestOptions, viewsDir, scenariosDir string, cmd *cobra.Command) error {
	out := opts.newFormatter(cmd)
	for _, dir := range []string{viewsDir, scenariosDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return out.Fail(ExitCommandError, ErrCodeScenarioDir, fmt.Sprintf("directory not found: %s", dir), nil)
		}
	}

	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeScenarioDir, "find scenarios", err)
	}
	out.VerboseLog("Found %d scenario file(s) in %s", len(files), scenariosDir)

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 {
		if out.JSON() {
			return out.Success(result)
		}
		_, err := fmt.Fprintln(out.Writer, "No scenarios found.")
		return err
	}

	for _, o := range harness.RunFiles(files, viewsDir) {
		r := scenarioResult(opts, o)
		result.Scenarios = append(result.Scenarios, r)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !out.JSON() {
			printScenario(out, r)
		}
	}

	if out.JSON() {
		if result.Failed > 0 {
			_ = out.Error(ErrCodeTestFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed), result)
			return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
		}
		return out.Success(result)
	}

	w := out.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

// scenarioResult folds the run and the golden comparison of one file.
func scenarioResult(opts *TestOptions, o harness.ScenarioOutcome) ScenarioResult {
	r := ScenarioResult{Name: o.Name()}
	if o.Err != nil {
		r.Errors = []string{o.Err.Error()}
		return r
	}

	goldenPath := harness.GoldenPath(o.File)
	if opts.Update {
		if err := harness.UpdateGolden(goldenPath, o.Scenario.Name, o.Result); err != nil {
			r.Errors = []string{err.Error()}
			return r
		}
	} else if _, err := os.Stat(goldenPath); err == nil {
		match, err := harness.CompareGolden(goldenPath, o.Scenario.Name, o.Result)
		if err != nil {
			r.Errors = []string{err.Error()}
			return r
		}
		if !match {
			r.Errors = []string{"trace does not match golden file " + filepath.Base(goldenPath) + " (run with --update to regenerate)"}
			return r
		}
	}

	r.Pass = o.Result.Pass
	r.Errors = o.Result.Errors
	if len(r.Errors) == 0 {
		r.Errors = nil
	}
	return r
}

func printScenario(out *OutputFormatter, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(out.Writer, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(out.Writer, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(out.Writer, "  %s\n", e)
	}
}
