package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/viewspec"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Views    []string                   `json:"views,omitempty"`
	Errors   []viewspec.ValidationError `json:"errors,omitempty"`
	Warnings []viewspec.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <views>",
		Short: "Validate view declarations",
		Long: `Validate CUE view declarations: field types, relation targets, names
and aliases. Relation cycles are reported as warnings; the schema policy
bounds how far they expand.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.newFormatter(cmd)

	views, files, err := viewspec.Parse(path)
	if err != nil {
		return declarationError(out, err)
	}
	out.VerboseLog("Found %d view(s) in %d file(s)", len(views), files)

	errs := viewspec.Validate(views)
	if len(errs) == 0 {
		// Building descriptors catches what validation cannot see.
		if _, err := viewspec.Define(model.NewRegistry(), views, files); err != nil {
			return declarationError(out, err)
		}
	}
	warnings := viewspec.AnalyzeCycles(views)

	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.Name
	}
	result := ValidationResult{Valid: len(errs) == 0, Views: names, Errors: errs, Warnings: warnings}

	if out.JSON() {
		if !result.Valid {
			_ = out.Error(errs[0].Code, errs[0].Message, result)
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
		}
		return out.Success(result)
	}

	w := out.Writer
	if !result.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range errs {
			if e.Line > 0 {
				fmt.Fprintf(w, "line %d\n", e.Line)
			}
			fmt.Fprintf(w, "  %s: %s.%s: %s\n\n", e.Code, e.View, e.Field, e.Message)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(w, "✓ %d view(s) valid\n", len(views))
	for _, warn := range warnings {
		fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
	}
	return nil
}
