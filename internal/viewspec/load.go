package viewspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // generic error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeCompile     = "E007" // view declaration malformed
	ErrCodeDefine      = "E008" // descriptor construction failed
)

// LoadError is an error raised while reading declaration files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Set is a loaded, validated and defined group of views.
type Set struct {
	Views       []View
	Descriptors []*model.Descriptor // same order as Views
	Registry    *model.Registry
	FileCount   int
}

// Descriptor returns the descriptor of the view declared as name.
func (s *Set) Descriptor(name string) (*model.Descriptor, bool) {
	return s.Registry.Resolve(name)
}

// Names returns the declared view names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Views))
	for i, v := range s.Views {
		names[i] = v.Name
	}
	return names
}

// Load reads every view declared in path, a .cue file or a directory of
// them, validates the set and defines it in a fresh registry. Inconsistent
// declarations return ValidationErrors.
func Load(path string) (*Set, error) {
	views, files, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if errs := Validate(views); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return Define(model.NewRegistry(), views, files)
}

// Define registers views in reg. Views must have passed Validate.
func Define(reg *model.Registry, views []View, fileCount int) (*Set, error) {
	builders := make([]*model.DescriptorBuilder, len(views))
	for i := range views {
		builders[i] = views[i].Builder()
	}
	descs, err := reg.Define(builders...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDefine, Message: err.Error()}
	}
	return &Set{Views: views, Descriptors: descs, Registry: reg, FileCount: fileCount}, nil
}

// Parse reads and compiles the view declarations in path without
// validating them. It returns the views in declaration order and the number
// of files read.
func Parse(path string) ([]View, int, error) {
	dir, files, err := cueFiles(path)
	if err != nil {
		return nil, 0, err
	}

	ctx := cuecontext.New()
	instances := load.Instances(files, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, 0, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, 0, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return nil, 0, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	views, err := CompileViews(value)
	if err != nil {
		return nil, 0, err
	}
	return views, len(files), nil
}

// CompileViews compiles every entry under the top-level view field.
func CompileViews(value cue.Value) ([]View, error) {
	viewsVal := value.LookupPath(cue.ParsePath("view"))
	if !viewsVal.Exists() {
		return nil, nil
	}
	iter, err := viewsVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating views: %v", err)}
	}
	var views []View
	for iter.Next() {
		v, err := CompileView(iter.Value())
		if err != nil {
			return nil, convertCompileError(err, "view."+iter.Label())
		}
		v.Name = iter.Label()
		views = append(views, *v)
	}
	return views, nil
}

// cueFiles resolves path to a load directory and the .cue files in it,
// relative to that directory. Subdirectories are not read.
func cueFiles(path string) (string, []string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("views path not found: %s", path)}
	}
	if err != nil {
		return "", nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing views path: %v", err)}
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".cue" {
			return "", nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		return filepath.Dir(path), []string{filepath.Base(path)}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return "", nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}
	slices.Sort(files)
	return path, files, nil
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", context, err)}
}
