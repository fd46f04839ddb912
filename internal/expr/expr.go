package expr

import (
	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEq          Operator = "=="
	OpLt          Operator = "<"
	OpLte         Operator = "<="
	OpGt          Operator = ">"
	OpGte         Operator = ">="
	OpIn          Operator = "in"
	OpContainsAny Operator = "containsAny"
	OpContainsAll Operator = "containsAll"
	OpPrefix      Operator = "prefix"
	OpExists      Operator = "exists"
	OpNested      Operator = "nested"
)

// Valid reports whether op is a known leaf operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpLt, OpLte, OpGt, OpGte, OpIn, OpContainsAny, OpContainsAll, OpPrefix, OpExists, OpNested:
		return true
	}
	return false
}

// TakesList reports whether op expects a list operand.
func (op Operator) TakesList() bool {
	return op == OpIn || op == OpContainsAny || op == OpContainsAll
}

// BoolOperator combines child expressions.
type BoolOperator string

const (
	BoolAnd BoolOperator = "and"
	BoolOr  BoolOperator = "or"
	BoolNot BoolOperator = "not"
)

// Valid reports whether op is a known combinator.
func (op BoolOperator) Valid() bool {
	return op == BoolAnd || op == BoolOr || op == BoolNot
}

// Expression is a node of a filter tree.
//
// This is a sealed interface: only Leaf and Bool implement it, so consumers
// can switch over the node kinds exhaustively.
type Expression interface {
	expression() // Marker method - seals interface to this package

	// And combines the receiver and other with "and".
	And(other Expression) Bool
	// Or combines the receiver and other with "or".
	Or(other Expression) Bool
}

// Leaf is a single condition on one property.
//
// Value holds the operand. It is nil for OpExists and OpNested; a nested
// leaf carries its sub-expression in Inner instead.
type Leaf struct {
	Property Column
	Operator Operator
	Value    ir.Value
	Inner    Expression
}

func (Leaf) expression() {}

func (l Leaf) And(other Expression) Bool { return And(l, other) }
func (l Leaf) Or(other Expression) Bool  { return Or(l, other) }

// Bool combines child expressions. Filters has at least one element; "not"
// has exactly one.
type Bool struct {
	Operator BoolOperator
	Filters  []Expression
}

func (Bool) expression() {}

func (b Bool) And(other Expression) Bool { return And(b, other) }
func (b Bool) Or(other Expression) Bool  { return Or(b, other) }

// And returns and(first, rest...). Operands are kept as given.
func And(first Expression, rest ...Expression) Bool {
	return Bool{Operator: BoolAnd, Filters: join(first, rest)}
}

// Or returns or(first, rest...).
func Or(first Expression, rest ...Expression) Bool {
	return Bool{Operator: BoolOr, Filters: join(first, rest)}
}

// Not returns not(e).
func Not(e Expression) Bool {
	return Bool{Operator: BoolNot, Filters: []Expression{e}}
}

// NewBool builds a combinator after checking its arity.
func NewBool(op BoolOperator, filters ...Expression) (Bool, error) {
	switch {
	case !op.Valid():
		return Bool{}, newConstructionError("unknown bool operator %q", op)
	case len(filters) == 0:
		return Bool{}, newConstructionError("%s requires at least one filter", op)
	case op == BoolNot && len(filters) != 1:
		return Bool{}, newConstructionError("not requires exactly one filter, got %d", len(filters))
	}
	for i, f := range filters {
		if f == nil {
			return Bool{}, newConstructionError("%s: filters[%d] is nil", op, i)
		}
	}
	return Bool{Operator: op, Filters: append([]Expression(nil), filters...)}, nil
}

// NewLeaf builds a leaf from an operator and a Go operand, the way
// declarative queries do. "eq" is accepted as an alias for "==".
func NewLeaf(property Property, op Operator, v any) (Leaf, error) {
	if op == "eq" {
		op = OpEq
	}
	if !op.Valid() {
		return Leaf{}, newConstructionError("unknown operator %q", op)
	}
	c := ColOf(property)
	switch op {
	case OpExists:
		return c.Exists(), nil
	case OpNested:
		inner, ok := v.(Expression)
		if !ok {
			return Leaf{}, newConstructionError("nested on %s requires an expression, got %T", c, v)
		}
		return c.Nested(inner), nil
	}
	value, err := ir.Of(v)
	if err != nil {
		return Leaf{}, newConstructionError("%s %s: %v", c, op, err)
	}
	return Leaf{Property: c, Operator: op, Value: value}, nil
}

func join(first Expression, rest []Expression) []Expression {
	out := make([]Expression, 0, 1+len(rest))
	out = append(out, first)
	return append(out, rest...)
}
