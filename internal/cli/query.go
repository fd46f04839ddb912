package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/queryfile"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	viewFlags
	Query    string
	Database string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query file against the local store",
		Long: `Compile a YAML query file against a declared view and run it against
the local store. Selects print one page and the cursor of the next one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Query, "query", "", "YAML query file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store path (defaults to the configured database)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
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

	st, e, err := openEngine(opts.RootOptions, out, cfg, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := plan.Run(cmd.Context(), e)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeQuery, "run "+plan.Kind, err)
	}
	out.VerboseLog("%s returned %d item(s)", plan.Kind, len(res.Items))

	if out.JSON() {
		return out.Success(res)
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return err
	}
	_, err = out.Writer.Write(data)
	return err
}

// readPlan reads and compiles a query file. Statement errors are reported
// with ErrCodeQuery, file errors with ErrCodeQueryFile.
func readPlan(out *OutputFormatter, path string, desc *model.Descriptor, defaultLimit int) (*queryfile.Plan, error) {
	qf, err := queryfile.Read(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeQueryFile, "read query file", err)
	}
	plan, err := qf.Plan(desc, defaultLimit)
	if err != nil {
		return nil, out.Fail(ExitFailure, ErrCodeQuery, "build statement", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, out.Fail(ExitFailure, ErrCodeQuery, "invalid statement", err)
	}
	return plan, nil
}
