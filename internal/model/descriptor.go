package model

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a described type.
type Kind string

const (
	KindView       Kind = "view"       // embeds ViewInstance
	KindWritable   Kind = "writable"   // embeds WritableViewInstance
	KindAggregated Kind = "aggregated" // embeds AggregatedViewInstance
	KindNested     Kind = "nested"     // plain struct reached through a relation
)

// FieldType is the scalar type of a field. Relation fields use TypeRelation.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInt       FieldType = "int"
	TypeFloat     FieldType = "float"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	TypeReference FieldType = "reference" // InstanceID pointing at another node
	TypeObject    FieldType = "object"
	TypeAny       FieldType = "any"
	TypeRelation  FieldType = "relation"
)

// Field is one declared field of a view.
type Field struct {
	Name   string // Go field name, or declared name for dynamic views
	Alias  string // wire name
	Type   FieldType
	List   bool        // list-valued
	Target *Descriptor // non-nil for relations

	view  string
	index []int
}

// PropertyPath returns the field's wire name. It lets a Field be used
// wherever a property reference is accepted.
func (f Field) PropertyPath() string {
	return f.Alias
}

// IsRelation reports whether the field points at another described type.
func (f Field) IsRelation() bool {
	return f.Target != nil
}

// View returns the name of the descriptor that declares the field.
func (f Field) View() string {
	return f.view
}

// Descriptor is the field table of one view type.
type Descriptor struct {
	Name   string
	GoType reflect.Type // nil for dynamic views
	Kind   Kind
	Config ViewConfig
	Fields []Field

	byName  map[string]int
	byAlias map[string]int
}

// ViewExternalID returns the configured view external id, or the type name.
func (d *Descriptor) ViewExternalID() string {
	if d.Config.ViewExternalID != "" {
		return d.Config.ViewExternalID
	}
	return d.Name
}

// EdgeType returns the external id of the edge type used by the list
// relation with the given wire name. Edge types live in the space of their
// start node.
func (d *Descriptor) EdgeType(alias string) string {
	return d.ViewExternalID() + "." + alias
}

// HasIdentity reports whether instances carry externalId and space.
func (d *Descriptor) HasIdentity() bool {
	return d.Kind == KindView || d.Kind == KindWritable
}

// Field resolves a Go field name or wire alias. Names win over aliases.
func (d *Descriptor) Field(ref string) (Field, bool) {
	if i, ok := d.byName[ref]; ok {
		return d.Fields[i], true
	}
	if i, ok := d.byAlias[ref]; ok {
		return d.Fields[i], true
	}
	return Field{}, false
}

// MustField is like Field but panics on a miss. It is meant for building
// field handles at package level, e.g. var assetName = desc.MustField("Name").
func (d *Descriptor) MustField(ref string) Field {
	f, ok := d.Field(ref)
	if !ok {
		panic(&FieldNotFoundError{View: d.Name, Field: ref})
	}
	return f
}

// FieldByName looks a field up by declared name only.
func (d *Descriptor) FieldByName(name string) (Field, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// FieldByAlias looks a field up by wire name only.
func (d *Descriptor) FieldByAlias(alias string) (Field, bool) {
	i, ok := d.byAlias[alias]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// GroupByFields returns the wire names of an aggregated view's group-by
// dimensions: every declared field except the aggregation result.
func (d *Descriptor) GroupByFields() []string {
	out := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if d.Kind == KindAggregated && f.Alias == aggregationField {
			continue
		}
		out = append(out, f.Alias)
	}
	return out
}

func (d *Descriptor) String() string {
	return d.Name
}

func (d *Descriptor) index() {
	d.byName = make(map[string]int, len(d.Fields))
	d.byAlias = make(map[string]int, len(d.Fields))
	for i := range d.Fields {
		d.Fields[i].view = d.Name
		d.byName[d.Fields[i].Name] = i
		d.byAlias[d.Fields[i].Alias] = i
	}
}

var (
	viewInstanceType       = reflect.TypeFor[ViewInstance]()
	writableInstanceType   = reflect.TypeFor[WritableViewInstance]()
	aggregatedInstanceType = reflect.TypeFor[AggregatedViewInstance]()
	instanceIDType         = reflect.TypeFor[InstanceID]()
	timeType               = reflect.TypeFor[time.Time]()
	configurerType         = reflect.TypeFor[Configurer]()
)

// describer builds descriptors for a set of Go types. Descriptors are stored
// in pending before their fields are resolved so self-referencing types
// terminate.
type describer struct {
	known   map[reflect.Type]*Descriptor
	pending map[reflect.Type]*Descriptor
}

func (b *describer) describe(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if d, ok := b.known[t]; ok {
		return d, nil
	}
	if d, ok := b.pending[t]; ok {
		return d, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("describe %s: not a struct type", t)
	}

	d := &Descriptor{
		Name:   t.Name(),
		GoType: t,
		Kind:   kindOf(t),
		Config: configOf(t),
	}
	b.pending[t] = d

	fields, err := b.fields(t, nil)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", t, err)
	}
	d.Fields = fields
	d.index()
	return d, nil
}

// fields walks t's exported fields in declaration order, flattening embedded
// structs the way encoding/json promotes them.
func (b *describer) fields(t reflect.Type, prefix []int) ([]Field, error) {
	var out []Field
	for i := range t.NumField() {
		sf := t.Field(i)
		name, tagged, skip := jsonName(sf)
		if skip {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		ft := sf.Type
		if sf.Anonymous && !tagged {
			et := ft
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				embedded, err := b.fields(et, index)
				if err != nil {
					return nil, err
				}
				out = append(out, embedded...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		f := Field{Name: sf.Name, Alias: name, index: index}
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
			f.List = true
			ft = ft.Elem()
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
		}
		f.Type = scalarType(ft)
		if f.Type == TypeRelation {
			target, err := b.describe(ft)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			f.Target = target
		}
		out = append(out, f)
	}
	return out, nil
}

func scalarType(t reflect.Type) FieldType {
	switch {
	case t == timeType:
		return TypeTimestamp
	case t == instanceIDType:
		return TypeReference
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Struct:
		return TypeRelation
	case reflect.Map:
		return TypeObject
	default:
		return TypeAny
	}
}

func kindOf(t reflect.Type) Kind {
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		switch sf.Type {
		case writableInstanceType:
			return KindWritable
		case aggregatedInstanceType:
			return KindAggregated
		case viewInstanceType:
			return KindView
		}
		if sf.Type.Kind() == reflect.Struct {
			if k := kindOf(sf.Type); k != KindNested {
				return k
			}
		}
	}
	return KindNested
}

func configOf(t reflect.Type) ViewConfig {
	if t.Implements(configurerType) {
		return reflect.Zero(t).Interface().(Configurer).ViewConfig().clone()
	}
	if pt := reflect.PointerTo(t); pt.Implements(configurerType) {
		return reflect.New(t).Interface().(Configurer).ViewConfig().clone()
	}
	return ViewConfig{}
}

// jsonName returns the wire name of sf. tagged reports whether the json tag
// named the field explicitly.
func jsonName(sf reflect.StructField) (name string, tagged, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	if n, _, _ := strings.Cut(tag, ","); n != "" {
		return n, true, false
	}
	return lowerFirst(sf.Name), false, false
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
