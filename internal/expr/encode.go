package expr

import (
	"bytes"
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// Encode returns the structural form of an expression:
//
//	leaf: {"property": ..., "operator": ..., "value": ...}
//	bool: {"operator": ..., "filters": [...]}
//
// A nested leaf encodes its inner expression as "value".
func Encode(e Expression) ir.Value {
	switch n := e.(type) {
	case Leaf:
		value := n.Value
		if n.Operator == OpNested && n.Inner != nil {
			value = Encode(n.Inner)
		}
		if value == nil {
			value = ir.Null{}
		}
		return ir.Object{
			"property": ir.String(n.Property.Property()),
			"operator": ir.String(n.Operator),
			"value":    value,
		}
	case Bool:
		filters := make(ir.List, len(n.Filters))
		for i, f := range n.Filters {
			filters[i] = Encode(f)
		}
		return ir.Object{
			"operator": ir.String(n.Operator),
			"filters":  filters,
		}
	default:
		return ir.Null{}
	}
}

// EncodeAll encodes a clause list.
func EncodeAll(exprs []Expression) ir.List {
	out := make(ir.List, len(exprs))
	for i, e := range exprs {
		out[i] = Encode(e)
	}
	return out
}

// Equal reports whether a and b are structurally equal trees.
func Equal(a, b Expression) bool {
	ca, errA := ir.MarshalCanonical(Encode(a))
	cb, errB := ir.MarshalCanonical(Encode(b))
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// Hash returns a stable content hash of the tree. Structurally equal trees
// hash equally, however their columns were obtained.
func Hash(e Expression) (string, error) {
	h, err := ir.ContentHash(ir.DomainExpression, Encode(e))
	if err != nil {
		return "", fmt.Errorf("hash expression: %w", err)
	}
	return h, nil
}

// MarshalJSON encodes the leaf in canonical form.
func (l Leaf) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(Encode(l))
}

// MarshalJSON encodes the combinator in canonical form.
func (b Bool) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(Encode(b))
}

func (l Leaf) String() string {
	if l.Operator == OpNested {
		return fmt.Sprintf("%s nested (%v)", l.Property, l.Inner)
	}
	if l.Operator == OpExists {
		return fmt.Sprintf("%s exists", l.Property)
	}
	v, err := ir.MarshalCanonical(l.Value)
	if err != nil {
		return fmt.Sprintf("%s %s <invalid>", l.Property, l.Operator)
	}
	return fmt.Sprintf("%s %s %s", l.Property, l.Operator, v)
}

func (b Bool) String() string {
	var buf bytes.Buffer
	buf.WriteString(string(b.Operator))
	buf.WriteByte('(')
	for i, f := range b.Filters {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprint(&buf, f)
	}
	buf.WriteByte(')')
	return buf.String()
}
