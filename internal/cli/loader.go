package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasrosaalves/industrial-model/internal/config"
	"github.com/lucasrosaalves/industrial-model/internal/engine"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/store"
	"github.com/lucasrosaalves/industrial-model/internal/viewspec"
)

// Command error codes. Declaration errors keep the viewspec codes
// (E001-E008, E200-E299).
const (
	ErrCodeUnknownView  = "E010" // --view names no declared view
	ErrCodeQueryFile    = "E011" // query file unreadable or malformed
	ErrCodeStore        = "E012" // store could not be opened
	ErrCodeInstanceFile = "E013" // instance file unreadable or malformed
	ErrCodeConfig       = "E014" // invalid configuration
	ErrCodeQuery        = "E015" // statement rejected or failed
	ErrCodeWrite        = "E016" // upsert failed
	ErrCodeScenarioDir  = "E017" // views or scenario directory missing
	ErrCodeTestFailed   = "E018" // one or more scenarios failed
)

// viewFlags are the flags shared by commands that work on one view.
type viewFlags struct {
	Views string
	View  string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Views, "views", "", "CUE view declarations (file or directory)")
	cmd.Flags().StringVar(&f.View, "view", "", "name of the declared view")
	_ = cmd.MarkFlagRequired("views")
	_ = cmd.MarkFlagRequired("view")
}

// loadView loads the declarations and resolves the selected view. Errors
// are written through out and returned as ExitErrors.
func loadView(out *OutputFormatter, f viewFlags) (*viewspec.Set, *model.Descriptor, error) {
	set, err := viewspec.Load(f.Views)
	if err != nil {
		return nil, nil, declarationError(out, err)
	}
	out.VerboseLog("Loaded %d view(s) from %d file(s)", len(set.Views), set.FileCount)

	desc, ok := set.Descriptor(f.View)
	if !ok {
		return nil, nil, out.Fail(ExitCommandError, ErrCodeUnknownView,
			fmt.Sprintf("view %q is not declared (declared: %s)", f.View, strings.Join(set.Names(), ", ")), nil)
	}
	return set, desc, nil
}

func declarationError(out *OutputFormatter, err error) error {
	var loadErr *viewspec.LoadError
	if errors.As(err, &loadErr) {
		return out.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	var verrs viewspec.ValidationErrors
	if errors.As(err, &verrs) {
		return out.Fail(ExitFailure, verrs[0].Code, "invalid view declarations", err)
	}
	return out.Fail(ExitCommandError, viewspec.ErrCodeGeneric, err.Error(), nil)
}

// settings loads the configuration or fails with ErrCodeConfig.
func settings(opts *RootOptions, out *OutputFormatter) (config.Config, error) {
	cfg, err := opts.Settings()
	if err != nil {
		return config.Config{}, out.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	return cfg, nil
}

// openEngine opens the store at path (the configured database when empty)
// and wraps it in an engine. The caller closes the store.
func openEngine(opts *RootOptions, out *OutputFormatter, cfg config.Config, path string) (*store.Store, *engine.Engine, error) {
	if path == "" {
		path = cfg.Database
	}
	logger := opts.Logger(out.GetErrWriter())
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, nil, out.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("open store %s", path), err)
	}
	e := engine.New(st,
		engine.WithLogger(logger),
		engine.WithSeparator(cfg.Separator),
		engine.WithPolicy(cfg.SchemaPolicy()),
	)
	return st, e, nil
}
