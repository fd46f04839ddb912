package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	viewFlags
	Query string
}

// CompileResult is the JSON payload of the compile command.
type CompileResult struct {
	Kind   string          `json:"kind"`
	Hash   string          `json:"hash"`
	Values json.RawMessage `json:"values"`
	SQL    string          `json:"sql"`
	Args   []any           `json:"args"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a query file and print its statement and SQL",
		Long: `Compile a YAML query file against a declared view. Prints the
statement values in canonical form, their content hash and the SQL the
local store would run. Nothing is executed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Query, "query", "", "YAML query file")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	out := opts.newFormatter(cmd)
	cfg, err := settings(opts.RootOptions, out)
	if err != nil {
		return err
	}
	_, desc, err := loadView(out, opts.viewFlags)
	if err != nil {
		return err
	}
	plan, err := readPlan(out, opts.Query, desc, cfg.DefaultLimit)
	if err != nil {
		return err
	}

	values := plan.Values()
	canonical, err := ir.MarshalCanonical(values)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeQuery, "encode statement", err)
	}
	hash, err := ir.ContentHash(ir.DomainStatement, values)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeQuery, "hash statement", err)
	}
	q, err := plan.SQL(querysql.NewCompiler())
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeQuery, "compile SQL", err)
	}

	if out.JSON() {
		return out.Success(CompileResult{
			Kind:   plan.Kind,
			Hash:   hash,
			Values: canonical,
			SQL:    q.SQL,
			Args:   q.Args,
		})
	}
	w := out.Writer
	fmt.Fprintf(w, "kind: %s\n", plan.Kind)
	fmt.Fprintf(w, "hash: %s\n", hash)
	fmt.Fprintf(w, "values: %s\n", canonical)
	fmt.Fprintf(w, "sql: %s\n", q.SQL)
	for i, a := range q.Args {
		fmt.Fprintf(w, "  $%d = %#v\n", i+1, a)
	}
	return nil
}
