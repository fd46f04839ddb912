package expr

import (
	"github.com/cespare/xxhash/v2"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// Property is anything that names a property path: columns, model field
// handles and model.Ref names.
type Property interface {
	PropertyPath() string
}

// Column references one property path of a view: a wire name, or a dotted
// path through relations ("parent.name").
type Column struct {
	property string
}

// Col returns the column for a property name, a field handle or an existing
// column. Col(Col(x)) equals Col(x).
func Col[R string | Column | model.Field](r R) Column {
	switch v := any(r).(type) {
	case string:
		return Column{property: v}
	case Column:
		return v
	case model.Field:
		return Column{property: v.PropertyPath()}
	}
	panic("unreachable")
}

// ColOf returns the column for any property reference.
func ColOf(p Property) Column {
	if c, ok := p.(Column); ok {
		return c
	}
	return Column{property: p.PropertyPath()}
}

// Property returns the property path.
func (c Column) Property() string { return c.property }

// PropertyPath implements Property.
func (c Column) PropertyPath() string { return c.property }

func (c Column) String() string { return c.property }

// SameAs reports whether both columns reference the same property path.
func (c Column) SameAs(other Column) bool {
	return c.property == other.property
}

// Hash returns a hash of the property path.
func (c Column) Hash() uint64 {
	return xxhash.Sum64String(c.property)
}

func (c Column) leaf(op Operator, v any) Leaf {
	return Leaf{Property: c, Operator: op, Value: ir.MustOf(v)}
}

// Eq builds property == v.
func (c Column) Eq(v any) Leaf { return c.leaf(OpEq, v) }

// Ne builds not(property == v).
func (c Column) Ne(v any) Bool { return Not(c.Eq(v)) }

// Lt builds property < v.
func (c Column) Lt(v any) Leaf { return c.leaf(OpLt, v) }

// Lte builds property <= v.
func (c Column) Lte(v any) Leaf { return c.leaf(OpLte, v) }

// Gt builds property > v.
func (c Column) Gt(v any) Leaf { return c.leaf(OpGt, v) }

// Gte builds property >= v.
func (c Column) Gte(v any) Leaf { return c.leaf(OpGte, v) }

// In matches when the property equals one of values.
func (c Column) In(values any) Leaf { return c.leaf(OpIn, values) }

// ContainsAny matches list properties holding at least one of values.
// Values may be scalars or {externalId, space} references.
func (c Column) ContainsAny(values any) Leaf { return c.leaf(OpContainsAny, values) }

// ContainsAll matches list properties holding every one of values.
func (c Column) ContainsAll(values any) Leaf { return c.leaf(OpContainsAll, values) }

// Prefix matches string properties starting with v.
func (c Column) Prefix(v any) Leaf { return c.leaf(OpPrefix, v) }

// Exists matches instances where the property is set.
func (c Column) Exists() Leaf {
	return Leaf{Property: c, Operator: OpExists}
}

// NotExists matches instances where the property is not set.
func (c Column) NotExists() Bool { return Not(c.Exists()) }

// Nested filters on the instance the relation property points at.
func (c Column) Nested(inner Expression) Leaf {
	return Leaf{Property: c, Operator: OpNested, Inner: inner}
}

// Not negates a leaf built from op and v. For OpExists v is ignored and for
// OpNested v must be an Expression; anything else panics with a
// *ConstructionError.
func (c Column) Not(op Operator, v any) Bool {
	switch op {
	case OpExists:
		return Not(c.Exists())
	case OpNested:
		inner, ok := v.(Expression)
		if !ok {
			panic(newConstructionError("nested on %s requires an expression, got %T", c, v))
		}
		return Not(c.Nested(inner))
	}
	return Not(c.leaf(op, v))
}
