package model

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
)

// FieldRef identifies a field by Go name or wire name. Field handles and
// expression columns satisfy it; Ref adapts a plain string.
type FieldRef interface {
	PropertyPath() string
}

// Ref is a field reference by name.
type Ref string

func (r Ref) PropertyPath() string { return string(r) }

// Refs converts names to field references.
func Refs(names ...string) []FieldRef {
	out := make([]FieldRef, len(names))
	for i, n := range names {
		out[i] = Ref(n)
	}
	return out
}

// Instance gives descriptor-driven access to one view model value.
type Instance struct {
	desc  *Descriptor
	value reflect.Value
}

// Wrap describes entity's type and returns an accessor for it.
// entity must be a struct or a non-nil pointer to one.
func Wrap(entity any) (*Instance, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("wrap %T: nil pointer", entity)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("wrap %T: not a struct", entity)
	}
	desc, err := defaultRegistry.DescribeType(v.Type())
	if err != nil {
		return nil, err
	}
	return &Instance{desc: desc, value: v}, nil
}

// MustWrap is like Wrap but panics on error.
func MustWrap(entity any) *Instance {
	inst, err := Wrap(entity)
	if err != nil {
		panic(err)
	}
	return inst
}

// Descriptor returns the descriptor of the wrapped value's type.
func (i *Instance) Descriptor() *Descriptor {
	return i.desc
}

type idOptions struct {
	separator     string
	viewCodeFirst bool
}

// IDOption configures GenerateModelID.
type IDOption func(*idOptions)

// WithSeparator sets the string joining id parts. Defaults to "-".
func WithSeparator(sep string) IDOption {
	return func(o *idOptions) { o.separator = sep }
}

// WithoutViewCodePrefix disables the view code prefix.
func WithoutViewCodePrefix() IDOption {
	return func(o *idOptions) { o.viewCodeFirst = false }
}

// GenerateModelID joins the current values of fields into an identifier.
// Whitespace is removed from each value. When the view has a ViewCode it is
// prepended as the first part unless WithoutViewCodePrefix is given.
func (i *Instance) GenerateModelID(fields []FieldRef, opts ...IDOption) (string, error) {
	o := idOptions{separator: "-", viewCodeFirst: true}
	for _, opt := range opts {
		opt(&o)
	}

	parts := make([]string, 0, len(fields))
	for _, ref := range fields {
		f, ok := i.desc.Field(ref.PropertyPath())
		if !ok {
			return "", &FieldNotFoundError{View: i.desc.Name, Field: ref.PropertyPath()}
		}
		parts = append(parts, stripSpace(i.format(f)))
	}

	id := strings.Join(parts, o.separator)
	if code := i.desc.Config.ViewCode; o.viewCodeFirst && code != "" {
		return code + o.separator + id, nil
	}
	return id, nil
}

// FieldName maps a wire name or Go name to the Go name.
func (i *Instance) FieldName(aliasOrName string) (string, bool) {
	f, ok := i.desc.Field(aliasOrName)
	if !ok {
		return "", false
	}
	return f.Name, true
}

// FieldAlias maps a Go name to the field's wire name.
func (i *Instance) FieldAlias(name string) (string, bool) {
	f, ok := i.desc.FieldByName(name)
	if !ok {
		return "", false
	}
	return f.Alias, true
}

type edgeHolder interface {
	Edges(alias string) []Edge
}

// EdgeMetadata returns the edges attached for a field. It returns nil for an
// unknown field and an empty slice for a known field without edges.
func (i *Instance) EdgeMetadata(ref FieldRef) []Edge {
	f, ok := i.desc.Field(ref.PropertyPath())
	if !ok {
		return nil
	}
	if h, ok := i.value.Interface().(edgeHolder); ok {
		if edges := h.Edges(f.Alias); edges != nil {
			return edges
		}
	}
	return []Edge{}
}

func (i *Instance) format(f Field) string {
	v, err := i.value.FieldByIndexErr(f.index)
	if err != nil {
		return ""
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if t, ok := v.Interface().(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v.Interface())
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
