package querysql

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

var comparisons = map[expr.Operator]string{
	expr.OpEq:  "=",
	expr.OpLt:  "<",
	expr.OpLte: "<=",
	expr.OpGt:  ">",
	expr.OpGte: ">=",
}

// expression compiles a filter tree to a WHERE fragment.
// Operands are never interpolated.
func (c *compilation) expression(s scope, e expr.Expression) (string, []any, error) {
	switch x := e.(type) {
	case expr.Leaf:
		return c.leaf(s, x)
	case expr.Bool:
		return c.boolean(s, x)
	case nil:
		return "", nil, errors.New("nil expression")
	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (c *compilation) boolean(s scope, b expr.Bool) (string, []any, error) {
	if len(b.Filters) == 0 {
		return "", nil, fmt.Errorf("%s without filters", b.Operator)
	}

	parts := make([]string, len(b.Filters))
	var args []any
	for i, f := range b.Filters {
		sql, fArgs, err := c.expression(s, f)
		if err != nil {
			return "", nil, fmt.Errorf("%s[%d]: %w", b.Operator, i, err)
		}
		parts[i] = sql
		args = append(args, fArgs...)
	}

	switch b.Operator {
	case expr.BoolAnd:
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	case expr.BoolOr:
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	case expr.BoolNot:
		if len(parts) != 1 {
			return "", nil, fmt.Errorf("not takes exactly one filter, got %d", len(parts))
		}
		// A comparison against a missing property is NULL; negation counts
		// it as a match.
		return "NOT COALESCE(" + parts[0] + ", 0)", args, nil
	default:
		return "", nil, fmt.Errorf("unknown boolean operator %q", b.Operator)
	}
}

func (c *compilation) leaf(s scope, l expr.Leaf) (string, []any, error) {
	prop := l.Property.Property()
	if l.Operator == expr.OpNested {
		return c.nested(s, l)
	}

	col, err := s.column(prop)
	if err != nil {
		return "", nil, err
	}

	if op, ok := comparisons[l.Operator]; ok {
		p, err := sqlParam(l.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", prop, err)
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{p}, nil
	}

	switch l.Operator {
	case expr.OpExists:
		return col + " IS NOT NULL", nil, nil

	case expr.OpPrefix:
		str, ok := l.Value.(ir.String)
		if !ok {
			return "", nil, fmt.Errorf("%w: prefix on %s needs a string operand, got %T", ErrUnsupported, prop, l.Value)
		}
		return fmt.Sprintf("substr(%s, 1, length(?)) = ?", col), []any{string(str), string(str)}, nil

	case expr.OpIn:
		params, err := listParams(l.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", prop, err)
		}
		if len(params) == 0 {
			return "0 = 1", nil, nil
		}
		return fmt.Sprintf("%s IN (%s)", col, placeholders(len(params))), params, nil

	case expr.OpContainsAny, expr.OpContainsAll:
		return c.contains(s, l)
	}

	return "", nil, fmt.Errorf("unknown operator %q", l.Operator)
}

// contains compiles containsAny and containsAll against a list property.
func (c *compilation) contains(s scope, l expr.Leaf) (string, []any, error) {
	prop := l.Property.Property()
	path, err := s.path(prop)
	if err != nil {
		return "", nil, err
	}
	params, err := listParams(l.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", prop, err)
	}

	if l.Operator == expr.OpContainsAny {
		if len(params) == 0 {
			return "0 = 1", nil, nil
		}
		r := c.alias("j")
		sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, %s) %s WHERE %s.value IN (%s))",
			s.doc, sqlString(path), r, r, placeholders(len(params)))
		return sql, params, nil
	}

	params = distinct(params)
	if len(params) == 0 {
		return "1 = 1", nil, nil
	}
	r := c.alias("j")
	sql := fmt.Sprintf("(SELECT COUNT(DISTINCT %s.value) FROM json_each(%s, %s) %s WHERE %s.value IN (%s)) = ?",
		r, s.doc, sqlString(path), r, r, placeholders(len(params)))
	return sql, append(params, len(params)), nil
}

// nested compiles a filter over the instances reached through a relation.
// Relations to views are stored as {externalId, space} references and are
// joined; relations to plain nested types are inline objects.
func (c *compilation) nested(s scope, l expr.Leaf) (string, []any, error) {
	prop := l.Property.Property()
	if s.desc == nil {
		return "", nil, fmt.Errorf("%w: nested filter on %s outside a described view", ErrUnsupported, prop)
	}
	f, ok := s.desc.Field(prop)
	if !ok || !f.IsRelation() {
		return "", nil, fmt.Errorf("nested: %q is not a relation of %s", prop, s.desc)
	}
	if l.Inner == nil {
		return "", nil, fmt.Errorf("nested: %s has no inner filter", prop)
	}

	segments := slices.Concat(s.prefix, []string{f.Alias})
	path, err := jsonPath(segments)
	if err != nil {
		return "", nil, err
	}
	target := f.Target

	switch {
	case target.HasIdentity() && !f.List:
		n := c.alias("n")
		inner, args, err := c.expression(instanceAlias(target, n), l.Inner)
		if err != nil {
			return "", nil, fmt.Errorf("nested %s: %w", prop, err)
		}
		sql := fmt.Sprintf("EXISTS (SELECT 1 FROM instances %[1]s WHERE %[1]s.view = ? AND %[1]s.space = json_extract(%[2]s, %[3]s) AND %[1]s.external_id = json_extract(%[2]s, %[4]s) AND %[5]s)",
			n, s.doc, sqlString(path+`."space"`), sqlString(path+`."externalId"`), inner)
		return sql, append([]any{target.ViewExternalID()}, args...), nil

	case target.HasIdentity():
		r, n := c.alias("r"), c.alias("n")
		inner, args, err := c.expression(instanceAlias(target, n), l.Inner)
		if err != nil {
			return "", nil, fmt.Errorf("nested %s: %w", prop, err)
		}
		sql := fmt.Sprintf(`EXISTS (SELECT 1 FROM json_each(%[1]s, %[2]s) %[3]s JOIN instances %[4]s ON %[4]s.space = json_extract(%[3]s.value, '$."space"') AND %[4]s.external_id = json_extract(%[3]s.value, '$."externalId"') WHERE %[4]s.view = ? AND %[5]s)`,
			s.doc, sqlString(path), r, n, inner)
		return sql, append([]any{target.ViewExternalID()}, args...), nil

	case !f.List:
		inner, args, err := c.expression(scope{desc: target, doc: s.doc, prefix: segments}, l.Inner)
		if err != nil {
			return "", nil, fmt.Errorf("nested %s: %w", prop, err)
		}
		return "(" + inner + ")", args, nil

	default:
		r := c.alias("r")
		inner, args, err := c.expression(scope{desc: target, doc: r + ".value"}, l.Inner)
		if err != nil {
			return "", nil, fmt.Errorf("nested %s: %w", prop, err)
		}
		sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, %s) %s WHERE %s)", s.doc, sqlString(path), r, inner)
		return sql, args, nil
	}
}

func instanceAlias(desc *model.Descriptor, alias string) scope {
	return scope{desc: desc, table: alias, doc: alias + ".properties"}
}

// sqlParam converts an operand to a driver value. Lists and objects are
// compared as canonical JSON text, the form the store writes.
func sqlParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Time:
		return time.Time(val).UTC().Format(time.RFC3339Nano), nil
	case ir.Null, nil:
		return nil, nil
	case ir.List, ir.Object:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unsupported operand type %T", v)
	}
}

func listParams(v ir.Value) ([]any, error) {
	list, ok := v.(ir.List)
	if !ok {
		return nil, fmt.Errorf("operand must be a list, got %T", v)
	}
	out := make([]any, len(list))
	for i, elem := range list {
		p, err := sqlParam(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func distinct(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
