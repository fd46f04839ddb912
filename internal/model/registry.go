package model

import (
	"fmt"
	"maps"
	"reflect"
	"sync"
)

// Registry caches descriptors of Go types and holds dynamic descriptors by
// name. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[reflect.Type]*Descriptor
	byName map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[reflect.Type]*Descriptor),
		byName: make(map[string]*Descriptor),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Describe.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Describe returns the descriptor of T, building it on first use.
// T must be a struct type or a pointer to one.
func Describe[T any]() (*Descriptor, error) {
	return defaultRegistry.DescribeType(reflect.TypeFor[T]())
}

// MustDescribe is like Describe but panics on error.
func MustDescribe[T any]() *Descriptor {
	d, err := Describe[T]()
	if err != nil {
		panic(err)
	}
	return d
}

// DescribeType returns the descriptor of t, building it on first use.
// Every type reachable through relation fields is described and cached in
// the same pass.
func (r *Registry) DescribeType(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	d, ok := r.types[t]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := &describer{known: r.types, pending: make(map[reflect.Type]*Descriptor)}
	d, err := b.describe(t)
	if err != nil {
		return nil, err
	}
	// Publish only fully resolved descriptors.
	maps.Copy(r.types, b.pending)
	return d, nil
}

// Resolve returns the dynamic descriptor registered under name.
func (r *Registry) Resolve(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Define builds dynamic descriptors and registers them by name. Relation
// targets resolve against the builders passed in the same call first, then
// against previously defined descriptors, so a set of mutually referencing
// views can be defined together.
func (r *Registry) Define(builders ...*DescriptorBuilder) ([]*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	local := make(map[string]*Descriptor, len(builders))
	out := make([]*Descriptor, len(builders))
	for i, b := range builders {
		if b.name == "" {
			return nil, fmt.Errorf("define view %d: empty name", i)
		}
		if _, dup := local[b.name]; dup {
			return nil, fmt.Errorf("define view %s: duplicate name", b.name)
		}
		if _, exists := r.byName[b.name]; exists {
			return nil, fmt.Errorf("define view %s: already defined", b.name)
		}
		d := &Descriptor{Name: b.name, Kind: b.kind, Config: b.config.clone()}
		local[b.name] = d
		out[i] = d
	}

	for i, b := range builders {
		d := out[i]
		for _, spec := range b.specs() {
			f := Field{Name: spec.name, Alias: spec.alias, Type: spec.typ, List: spec.list}
			if f.Alias == "" {
				f.Alias = f.Name
			}
			if spec.target != "" {
				target, ok := local[spec.target]
				if !ok {
					target, ok = r.byName[spec.target]
				}
				if !ok {
					return nil, fmt.Errorf("define view %s: field %s: unknown view %q", b.name, spec.name, spec.target)
				}
				f.Type = TypeRelation
				f.Target = target
			}
			d.Fields = append(d.Fields, f)
		}
		d.index()
		if len(d.byName) != len(d.Fields) {
			return nil, fmt.Errorf("define view %s: duplicate field name", b.name)
		}
		if len(d.byAlias) != len(d.Fields) {
			return nil, fmt.Errorf("define view %s: duplicate field alias", b.name)
		}
	}

	maps.Copy(r.byName, local)
	return out, nil
}

type fieldSpec struct {
	name   string
	alias  string
	typ    FieldType
	list   bool
	target string
}

// DescriptorBuilder declares a view without a Go type.
type DescriptorBuilder struct {
	name   string
	kind   Kind
	config ViewConfig
	fields []fieldSpec
}

// NewDescriptor starts a dynamic view declaration. View kinds get leading
// externalId and space fields, aggregated views a leading value field,
// unless the declaration names them itself.
func NewDescriptor(name string) *DescriptorBuilder {
	return &DescriptorBuilder{name: name, kind: KindView}
}

// Kind sets the view kind.
func (b *DescriptorBuilder) Kind(k Kind) *DescriptorBuilder {
	b.kind = k
	return b
}

// Config sets the view configuration.
func (b *DescriptorBuilder) Config(c ViewConfig) *DescriptorBuilder {
	b.config = c
	return b
}

// Field adds a scalar field. An empty alias means the wire name equals name.
func (b *DescriptorBuilder) Field(name, alias string, t FieldType, list bool) *DescriptorBuilder {
	b.fields = append(b.fields, fieldSpec{name: name, alias: alias, typ: t, list: list})
	return b
}

// Relation adds a field pointing at the view named target.
func (b *DescriptorBuilder) Relation(name, alias, target string, list bool) *DescriptorBuilder {
	b.fields = append(b.fields, fieldSpec{name: name, alias: alias, typ: TypeRelation, list: list, target: target})
	return b
}

// specs returns the declared fields preceded by the implicit ones.
func (b *DescriptorBuilder) specs() []fieldSpec {
	var implicit []fieldSpec
	switch b.kind {
	case KindView, KindWritable:
		implicit = []fieldSpec{{name: "externalId", typ: TypeString}, {name: "space", typ: TypeString}}
	case KindAggregated:
		implicit = []fieldSpec{{name: aggregationField, typ: TypeFloat}}
	}

	declared := make(map[string]bool, len(b.fields))
	for _, f := range b.fields {
		declared[f.name] = true
	}
	out := make([]fieldSpec, 0, len(implicit)+len(b.fields))
	for _, f := range implicit {
		if !declared[f.name] {
			out = append(out, f)
		}
	}
	return append(out, b.fields...)
}
