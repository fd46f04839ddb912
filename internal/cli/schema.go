package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasrosaalves/industrial-model/internal/schema"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	viewFlags
	Separator string
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	View       string   `json:"view"`
	Separator  string   `json:"separator"`
	Properties []string `json:"properties"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the property paths a query over a view selects",
		Long: `Print every property path of a view, including the paths reached
through relations, in the order a query selects them. Recursive relations
are expanded within the configured policy.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Separator, "separator", "", "path separator (defaults to the configured one)")
	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	out := opts.newFormatter(cmd)
	cfg, err := settings(opts.RootOptions, out)
	if err != nil {
		return err
	}
	_, desc, err := loadView(out, opts.viewFlags)
	if err != nil {
		return err
	}

	sep := opts.Separator
	if sep == "" {
		sep = cfg.Separator
	}
	props := schema.Properties(desc, sep, schema.WithPolicy(cfg.SchemaPolicy()))

	if out.JSON() {
		return out.Success(SchemaResult{View: desc.Name, Separator: sep, Properties: props})
	}
	_, err = fmt.Fprintln(out.Writer, strings.Join(props, "\n"))
	return err
}
