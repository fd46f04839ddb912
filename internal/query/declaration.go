package query

import (
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// Role is what an attribute contributes to a statement.
type Role string

const (
	RoleParam Role = "param"
	RoleSort  Role = "sort"
	RoleBool  Role = "bool"
)

// Attribute is one declared query attribute.
type Attribute struct {
	Name      string
	Role      Role
	Property  string              // RoleParam
	Operator  string              // RoleParam, as declared
	Direction statement.Direction // RoleSort
	BoolOp    expr.BoolOperator   // RoleBool
}

// Param binds an attribute to property and a comparison operator.
func Param(name, property, op string) Attribute {
	return Attribute{Name: name, Role: RoleParam, Property: property, Operator: op}
}

// Sort binds an attribute to a sort direction. The bound value names the
// property to sort by.
func Sort(name string, dir statement.Direction) Attribute {
	return Attribute{Name: name, Role: RoleSort, Direction: dir}
}

// Bool binds an attribute to a nested record of the same declaration whose
// filters are combined with op.
func Bool(name string, op expr.BoolOperator) Attribute {
	return Attribute{Name: name, Role: RoleBool, BoolOp: op}
}

var operators = map[string]expr.Operator{
	"eq":          expr.OpEq,
	"==":          expr.OpEq,
	"lt":          expr.OpLt,
	"<":           expr.OpLt,
	"lte":         expr.OpLte,
	"<=":          expr.OpLte,
	"gt":          expr.OpGt,
	">":           expr.OpGt,
	"gte":         expr.OpGte,
	">=":          expr.OpGte,
	"in":          expr.OpIn,
	"containsAny": expr.OpContainsAny,
	"containsAll": expr.OpContainsAll,
	"prefix":      expr.OpPrefix,
	"exists":      expr.OpExists,
}

// ParseOperator maps a declared operator name to a leaf operator.
func ParseOperator(s string) (expr.Operator, error) {
	op, ok := operators[s]
	if !ok {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// Declaration is an ordered set of query attributes.
type Declaration struct {
	attrs []Attribute
	ops   []expr.Operator
	index map[string]int
}

// Declare validates attrs and returns their declaration.
func Declare(attrs ...Attribute) (*Declaration, error) {
	d := &Declaration{
		attrs: append([]Attribute(nil), attrs...),
		ops:   make([]expr.Operator, len(attrs)),
		index: make(map[string]int, len(attrs)),
	}
	for i, a := range attrs {
		if a.Name == "" {
			return nil, fmt.Errorf("declare: attribute %d has no name", i)
		}
		if _, dup := d.index[a.Name]; dup {
			return nil, fmt.Errorf("declare: duplicate attribute %q", a.Name)
		}
		d.index[a.Name] = i

		switch a.Role {
		case RoleParam:
			if a.Property == "" {
				return nil, fmt.Errorf("declare %s: param without property", a.Name)
			}
			op, err := ParseOperator(a.Operator)
			if err != nil {
				return nil, fmt.Errorf("declare %s: %w", a.Name, err)
			}
			d.ops[i] = op
		case RoleSort:
			if a.Direction != statement.Ascending && a.Direction != statement.Descending {
				return nil, fmt.Errorf("declare %s: unknown sort direction %q", a.Name, a.Direction)
			}
		case RoleBool:
			if !a.BoolOp.Valid() {
				return nil, fmt.Errorf("declare %s: unknown bool operator %q", a.Name, a.BoolOp)
			}
		default:
			return nil, fmt.Errorf("declare %s: unknown role %q", a.Name, a.Role)
		}
	}
	return d, nil
}

// MustDeclare is like Declare but panics on error. It is meant for
// package-level declarations.
func MustDeclare(attrs ...Attribute) *Declaration {
	d, err := Declare(attrs...)
	if err != nil {
		panic(err)
	}
	return d
}

// Attributes returns the declared attributes in order.
func (d *Declaration) Attributes() []Attribute {
	return append([]Attribute(nil), d.attrs...)
}

// Attribute looks up a declared attribute by name.
func (d *Declaration) Attribute(name string) (Attribute, bool) {
	i, ok := d.index[name]
	if !ok {
		return Attribute{}, false
	}
	return d.attrs[i], true
}

// New returns an empty record of this declaration.
func (d *Declaration) New() Record {
	return Record{decl: d}
}
