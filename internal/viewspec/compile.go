package viewspec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// View is one compiled view declaration.
type View struct {
	Name   string
	Kind   string // view, writable, aggregated or nested
	Config model.ViewConfig
	Fields []Field
	Pos    token.Pos
}

// Field is one declared field. Type is a scalar type name or a view name.
type Field struct {
	Name  string
	Alias string
	Type  string
	List  bool
	Pos   token.Pos
}

var scalarTypes = map[string]model.FieldType{
	"string":    model.TypeString,
	"int":       model.TypeInt,
	"float":     model.TypeFloat,
	"bool":      model.TypeBool,
	"timestamp": model.TypeTimestamp,
	"reference": model.TypeReference,
	"object":    model.TypeObject,
	"any":       model.TypeAny,
}

var kinds = map[string]model.Kind{
	"view":       model.KindView,
	"writable":   model.KindWritable,
	"aggregated": model.KindAggregated,
	"nested":     model.KindNested,
}

// IsRelation reports whether the field points at another view.
func (f Field) IsRelation() bool {
	_, scalar := scalarTypes[f.Type]
	return !scalar
}

// Builder converts the declaration into a descriptor builder. Call Validate
// first: unknown kinds fall back to view.
func (v *View) Builder() *model.DescriptorBuilder {
	kind, ok := kinds[v.Kind]
	if !ok {
		kind = model.KindView
	}
	b := model.NewDescriptor(v.Name).Kind(kind).Config(v.Config)
	for _, f := range v.Fields {
		if t, ok := scalarTypes[f.Type]; ok {
			b.Field(f.Name, f.Alias, t, f.List)
			continue
		}
		b.Relation(f.Name, f.Alias, f.Type, f.List)
	}
	return b
}

// CompileView parses a CUE value into a View. The value should be the view
// struct itself, e.g. the result of LookupPath("view.Asset").
func CompileView(v cue.Value) (*View, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	view := &View{Kind: "view", Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		view.Name = labels[len(labels)-1].String()
	}

	var err error
	if view.Config.ViewExternalID, err = optionalString(v, "externalId"); err != nil {
		return nil, err
	}
	if view.Config.ViewCode, err = optionalString(v, "code"); err != nil {
		return nil, err
	}
	if view.Config.InstanceSpacesPrefix, err = optionalString(v, "spacesPrefix"); err != nil {
		return nil, err
	}
	if kind, err := optionalString(v, "kind"); err != nil {
		return nil, err
	} else if kind != "" {
		view.Kind = kind
	}
	if view.Config.InstanceSpaces, err = optionalStrings(v, "spaces"); err != nil {
		return nil, err
	}

	view.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func parseFields(v cue.Value) ([]Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []Field
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		f := Field{Name: name, Pos: fv.Pos()}

		typeVal := fv.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("fields.%s.type", name),
				Message: "field type is required",
				Pos:     fv.Pos(),
			}
		}
		if f.Type, err = typeVal.String(); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("fields.%s.type", name),
				Message: "field type must be a string",
				Pos:     typeVal.Pos(),
			}
		}
		if f.Alias, err = optionalString(fv, "alias"); err != nil {
			return nil, err
		}
		if listVal := fv.LookupPath(cue.ParsePath("list")); listVal.Exists() {
			if f.List, err = listVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, path string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError is a declaration error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	ce := &CompileError{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
