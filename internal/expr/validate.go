package expr

import (
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// Validate checks a filter tree and reports every malformed node.
//
// Rules:
//  1. Leaves name a property and use a known operator
//  2. in, containsAny and containsAll take a list operand
//  3. exists takes no operand; nested takes an inner expression and no operand
//  4. Other operators take a non-null operand
//  5. Bool nodes use a known operator and have at least one filter; not has exactly one
//
// Validate returns nil or a *ConstructionError. It is a pure function.
func Validate(e Expression) error {
	v := &validator{}
	v.validate("", e)
	if len(v.problems) == 0 {
		return nil
	}
	return &ConstructionError{Problems: v.problems}
}

// ValidateAll validates each expression of a clause list.
func ValidateAll(exprs []Expression) error {
	v := &validator{}
	for i, e := range exprs {
		v.validate(fmt.Sprintf("[%d]", i), e)
	}
	if len(v.problems) == 0 {
		return nil
	}
	return &ConstructionError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(path, format string, args ...any) {
	if path == "" {
		path = "<root>"
	}
	v.problems = append(v.problems, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) validate(path string, e Expression) {
	switch n := e.(type) {
	case nil:
		v.addProblem(path, "nil expression")
	case Leaf:
		v.validateLeaf(path, n)
	case Bool:
		v.validateBool(path, n)
	default:
		v.addProblem(path, "unknown expression type %T", e)
	}
}

func (v *validator) validateLeaf(path string, l Leaf) {
	if l.Property.Property() == "" {
		v.addProblem(path, "leaf without property")
	}
	if !l.Operator.Valid() {
		v.addProblem(path, "unknown operator %q", l.Operator)
		return
	}

	switch {
	case l.Operator == OpNested:
		if l.Inner == nil {
			v.addProblem(path, "nested on %s without inner expression", l.Property)
			return
		}
		if hasOperand(l.Value) {
			v.addProblem(path, "nested on %s carries an operand", l.Property)
		}
		v.validate(path+".inner", l.Inner)
		return
	case l.Inner != nil:
		v.addProblem(path, "%s on %s carries an inner expression", l.Operator, l.Property)
	}

	switch {
	case l.Operator == OpExists:
		if hasOperand(l.Value) {
			v.addProblem(path, "exists on %s carries an operand", l.Property)
		}
	case l.Operator.TakesList():
		if !ir.IsList(l.Value) {
			v.addProblem(path, "%s on %s requires a list operand", l.Operator, l.Property)
		}
	case !hasOperand(l.Value):
		v.addProblem(path, "%s on %s requires an operand", l.Operator, l.Property)
	}
}

func (v *validator) validateBool(path string, b Bool) {
	if !b.Operator.Valid() {
		v.addProblem(path, "unknown bool operator %q", b.Operator)
	}
	switch {
	case len(b.Filters) == 0:
		v.addProblem(path, "%s without filters", b.Operator)
	case b.Operator == BoolNot && len(b.Filters) != 1:
		v.addProblem(path, "not with %d filters", len(b.Filters))
	}
	for i, f := range b.Filters {
		v.validate(fmt.Sprintf("%s.filters[%d]", path, i), f)
	}
}

func hasOperand(v ir.Value) bool {
	if v == nil {
		return false
	}
	_, null := v.(ir.Null)
	return !null
}
