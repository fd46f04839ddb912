package query

import (
	"errors"
	"fmt"
	"maps"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// Record holds values bound to a declaration's attributes. The zero value
// of an attribute (nil) means unset.
type Record struct {
	decl   *Declaration
	values map[string]any
}

// Declaration returns the record's declaration.
func (r Record) Declaration() *Declaration {
	return r.decl
}

// With returns a copy of r with name bound to v. Binding nil unsets the
// attribute. Names are checked when the record is compiled.
func (r Record) With(name string, v any) Record {
	next := maps.Clone(r.values)
	if next == nil {
		next = make(map[string]any)
	}
	if v == nil {
		delete(next, name)
	} else {
		next[name] = v
	}
	r.values = next
	return r
}

// Get returns the value bound to name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// ToStatement compiles rec into a select over T.
func ToStatement[T any](rec Record) (statement.Statement[T], error) {
	desc, err := model.Describe[T]()
	if err != nil {
		return statement.Statement[T]{}, err
	}
	return ToStatementFor[T](desc, rec)
}

// ToStatementFor compiles rec into a select over desc.
func ToStatementFor[T any](desc *model.Descriptor, rec Record) (statement.Statement[T], error) {
	filters, err := rec.Filters()
	if err != nil {
		return statement.Statement[T]{}, err
	}
	sorts, err := rec.Sorts()
	if err != nil {
		return statement.Statement[T]{}, err
	}

	stmt := statement.SelectFor[T](desc)
	if len(filters) > 0 {
		stmt = stmt.Where(filters...)
	}
	for _, s := range sorts {
		if s.Direction == statement.Descending {
			stmt = stmt.Desc(s.Property)
		} else {
			stmt = stmt.Asc(s.Property)
		}
	}
	return stmt, nil
}

// Filters compiles the record's param and bool attributes in declaration
// order.
func (r Record) Filters() ([]expr.Expression, error) {
	if r.decl == nil {
		return nil, errors.New("record has no declaration")
	}
	if err := r.checkNames(); err != nil {
		return nil, err
	}

	var out []expr.Expression
	for i, a := range r.decl.attrs {
		v, ok := r.values[a.Name]
		if !ok {
			continue
		}
		switch a.Role {
		case RoleParam:
			f, set, err := r.param(a, r.decl.ops[i], v)
			if err != nil {
				return nil, err
			}
			if set {
				out = append(out, f)
			}
		case RoleBool:
			b, set, err := r.combine(a, v)
			if err != nil {
				return nil, err
			}
			if set {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// Sorts compiles the record's sort attributes in declaration order.
func (r Record) Sorts() ([]statement.Sort, error) {
	if r.decl == nil {
		return nil, errors.New("record has no declaration")
	}
	var out []statement.Sort
	for _, a := range r.decl.attrs {
		if a.Role != RoleSort {
			continue
		}
		v, ok := r.values[a.Name]
		if !ok {
			continue
		}
		var col expr.Column
		switch p := v.(type) {
		case string:
			if p == "" {
				continue
			}
			col = expr.Col(p)
		case expr.Property:
			col = expr.ColOf(p)
		default:
			return nil, &DecodeError{Path: a.Name, Reason: fmt.Sprintf("sort value must name a property, got %T", v)}
		}
		out = append(out, statement.Sort{Property: col, Direction: a.Direction})
	}
	return out, nil
}

func (r Record) checkNames() error {
	for name := range r.values {
		if _, ok := r.decl.index[name]; !ok {
			return &DecodeError{Path: name, Reason: "unknown attribute"}
		}
	}
	return nil
}

// param builds the filter of a param attribute. set is false when v
// converts to null.
func (r Record) param(a Attribute, op expr.Operator, v any) (expr.Expression, bool, error) {
	operand, err := ir.Of(v)
	if err != nil {
		return nil, false, &DecodeError{Path: a.Name, Reason: err.Error()}
	}
	if _, null := operand.(ir.Null); null {
		return nil, false, nil
	}
	col := expr.Col(a.Property)
	if op == expr.OpExists {
		// exists takes a flag: false tests absence.
		if b, ok := operand.(ir.Bool); ok && !bool(b) {
			return col.NotExists(), true, nil
		}
		return col.Exists(), true, nil
	}
	if op.TakesList() && !ir.IsList(operand) {
		return nil, false, &DecodeError{Path: a.Name, Reason: fmt.Sprintf("%s requires a list", op)}
	}
	return expr.Leaf{Property: col, Operator: op, Value: operand}, true, nil
}

// combine compiles the nested record of a bool attribute.
func (r Record) combine(a Attribute, v any) (expr.Bool, bool, error) {
	var nested Record
	switch n := v.(type) {
	case Record:
		nested = n
	case *Record:
		if n == nil {
			return expr.Bool{}, false, nil
		}
		nested = *n
	default:
		return expr.Bool{}, false, &DecodeError{Path: a.Name, Reason: fmt.Sprintf("expected a nested record, got %T", v)}
	}
	if nested.decl != r.decl {
		return expr.Bool{}, false, &DecodeError{Path: a.Name, Reason: "nested record belongs to another declaration"}
	}

	filters, err := nested.Filters()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return expr.Bool{}, false, &DecodeError{Path: a.Name + "." + de.Path, Reason: de.Reason}
		}
		return expr.Bool{}, false, err
	}
	if len(filters) == 0 {
		return expr.Bool{}, false, nil
	}
	if a.BoolOp == expr.BoolNot && len(filters) > 1 {
		return expr.Not(expr.And(filters[0], filters[1:]...)), true, nil
	}
	b, err := expr.NewBool(a.BoolOp, filters...)
	if err != nil {
		return expr.Bool{}, false, err
	}
	return b, true, nil
}
