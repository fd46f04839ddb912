package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucasrosaalves/industrial-model/internal/engine"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	viewFlags
	File     string
	Database string
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	View  string `json:"view"`
	Count int    `json:"count"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert YAML instances of a view into the local store",
		Long: `Upsert the instances in a YAML file into the local store. The file is a
list of instances, or a mapping with an items list. Instances without a
space get the configured default space. Relations to other views are
written as {externalId, space} references.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.File, "file", "", "YAML instance file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store path (defaults to the configured database)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runLoad(opts *LoadOptions, cmd *cobra.Command) error {
	out := opts.newFormatter(cmd)
	cfg, err := settings(opts.RootOptions, out)
	if err != nil {
		return err
	}
	_, desc, err := loadView(out, opts.viewFlags)
	if err != nil {
		return err
	}
	items, err := readInstances(opts.File)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInstanceFile, "read instance file", err)
	}

	docs := make([]engine.Document, len(items))
	for i, item := range items {
		if _, ok := item["space"]; !ok && cfg.Space != "" && desc.HasIdentity() {
			item["space"] = cfg.Space
		}
		docs[i] = engine.Document{Properties: item}
	}

	st, e, err := openEngine(opts.RootOptions, out, cfg, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := e.UpsertDocuments(cmd.Context(), desc, docs); err != nil {
		return out.Fail(ExitFailure, ErrCodeWrite, "upsert "+desc.Name, err)
	}

	if out.JSON() {
		return out.Success(LoadResult{View: desc.Name, Count: len(docs)})
	}
	_, err = fmt.Fprintf(out.Writer, "✓ Loaded %d instance(s) into %s\n", len(docs), desc.Name)
	return err
}

// readInstances parses an instance file: a list of mappings, or a mapping
// holding one under items.
func readInstances(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m, ok := doc.(map[string]any); ok {
		doc = m["items"]
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("parse %s: expected a list of instances or an items list", path)
	}
	items := make([]map[string]any, len(list))
	for i, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse %s: item %d is %T, not a mapping", path, i, elem)
		}
		items[i] = m
	}
	return items, nil
}
