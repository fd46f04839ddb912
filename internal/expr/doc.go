// Package expr builds filter trees over view properties.
//
// A filter tree is made of two node kinds (Expression is a sealed
// interface):
//   - Leaf: one condition on one property, e.g. name == "pump"
//   - Bool: an and/or/not combinator over child expressions
//
// Go has no operator overloading, so conditions are built with explicit
// Column methods:
//
//	name := expr.Col("name")
//	f := expr.And(name.Eq("pump"), expr.Col("tags").ContainsAny([]string{"a"}))
//	f = f.Or(name.Prefix("valve-"))
//
// Combinators never flatten: And(Or(a, b), c) keeps the Or as a child.
// Column values stay ordinary comparable Go values; == on two columns
// compares their property paths and never builds an expression.
//
// Expressions are immutable values. Equal and Hash compare and fingerprint
// whole trees structurally.
package expr
