package querysql

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// ErrUnsupported is returned for statements the SQLite layout cannot express.
var ErrUnsupported = errors.New("unsupported by the sql compiler")

// Query is a compiled, parameterized statement.
type Query struct {
	SQL  string
	Args []any

	// Columns names the leading result columns of an aggregation, in order.
	// The aggregate itself follows as "value".
	Columns []string
}

// Compiler compiles statements to parameterized SQL for SQLite.
//
// Every select orders by the requested sort keys followed by space and
// external id, so pages are stable. Operands are always parameters; only
// property paths taken from view declarations appear in the SQL text.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Select compiles one page of a select. The query fetches Limit+1 rows so
// the caller can tell whether another page exists.
func (c *Compiler) Select(desc *model.Descriptor, v statement.Values) (Query, error) {
	offset, err := DecodeCursor(v.Cursor)
	if err != nil {
		return Query{}, err
	}

	comp := &compilation{}
	where, args, err := comp.where(desc, v)
	if err != nil {
		return Query{}, err
	}
	order, err := orderBy(instanceScope(desc), v.SortClauses)
	if err != nil {
		return Query{}, err
	}

	sql := fmt.Sprintf("SELECT i.space, i.external_id, i.properties FROM instances i WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		where, order)
	return Query{SQL: sql, Args: append(args, v.Limit+1, offset)}, nil
}

// Search compiles a text search. Every whitespace separated term must match
// (SearchOr: any term) one of the searched properties, case-insensitively
// for ASCII.
func (c *Compiler) Search(desc *model.Descriptor, v statement.SearchValues) (Query, error) {
	offset, err := DecodeCursor(v.Cursor)
	if err != nil {
		return Query{}, err
	}

	comp := &compilation{}
	where, args, err := comp.where(desc, v.Values)
	if err != nil {
		return Query{}, err
	}
	text, textArgs, err := textMatch(desc, v)
	if err != nil {
		return Query{}, err
	}
	if text != "" {
		where += " AND " + text
		args = append(args, textArgs...)
	}
	order, err := orderBy(instanceScope(desc), v.SortClauses)
	if err != nil {
		return Query{}, err
	}

	sql := fmt.Sprintf("SELECT i.space, i.external_id, i.properties FROM instances i WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		where, order)
	return Query{SQL: sql, Args: append(args, v.Limit, offset)}, nil
}

// Aggregate compiles an aggregation grouped by the group-by properties.
// Groups come back ordered by the group columns.
func (c *Compiler) Aggregate(desc *model.Descriptor, v statement.AggregationValues) (Query, error) {
	comp := &compilation{}
	where, args, err := comp.where(desc, v.Values)
	if err != nil {
		return Query{}, err
	}

	s := instanceScope(desc)
	selects := make([]string, 0, len(v.GroupByProperties)+1)
	groups := make([]string, 0, len(v.GroupByProperties))
	columns := make([]string, 0, len(v.GroupByProperties))
	for i, g := range v.GroupByProperties {
		col, err := s.column(g.Property())
		if err != nil {
			return Query{}, fmt.Errorf("group by: %w", err)
		}
		name := fmt.Sprintf("g%d", i)
		selects = append(selects, col+" AS "+name)
		groups = append(groups, name)
		columns = append(columns, g.Property())
	}

	agg, err := aggregateExpr(s, v)
	if err != nil {
		return Query{}, err
	}
	selects = append(selects, agg+" AS value")

	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s FROM instances i WHERE %s", strings.Join(selects, ", "), where)
	if len(groups) > 0 {
		fmt.Fprintf(&sql, " GROUP BY %s", strings.Join(groups, ", "))
		ordered := make([]string, len(groups))
		for i, g := range groups {
			ordered[i] = g + " ASC"
		}
		fmt.Fprintf(&sql, " ORDER BY %s", strings.Join(ordered, ", "))
	}
	sql.WriteString(" LIMIT ?")

	return Query{SQL: sql.String(), Args: append(args, v.Limit), Columns: columns}, nil
}

// Filter compiles a single expression against the instance row alias "i"
// of desc. It is exposed for callers composing their own SQL.
func (c *Compiler) Filter(desc *model.Descriptor, e expr.Expression) (string, []any, error) {
	comp := &compilation{}
	return comp.expression(instanceScope(desc), e)
}

func aggregateExpr(s scope, v statement.AggregationValues) (string, error) {
	if !v.Aggregate.Valid() {
		return "", fmt.Errorf("unknown aggregate %q", v.Aggregate)
	}
	if v.AggregationProperty == nil {
		if v.Aggregate != statement.Count {
			return "", fmt.Errorf("%s requires an aggregation property", v.Aggregate)
		}
		return "COUNT(*)", nil
	}
	col, err := s.column(v.AggregationProperty.Property())
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(string(v.Aggregate)), col), nil
}

// compilation holds the state of one statement compilation.
type compilation struct {
	aliases int
}

func (c *compilation) alias(prefix string) string {
	c.aliases++
	return fmt.Sprintf("%s%d", prefix, c.aliases)
}

// where returns the conjunction of the view, space, filter and edge
// filter constraints of a statement.
func (c *compilation) where(desc *model.Descriptor, v statement.Values) (string, []any, error) {
	s := instanceScope(desc)
	parts := []string{"i.view = ?"}
	args := []any{desc.ViewExternalID()}

	if sql, spaceArgs := spaceFilter(desc.Config); sql != "" {
		parts = append(parts, sql)
		args = append(args, spaceArgs...)
	}

	for i, e := range v.WhereClauses {
		sql, exprArgs, err := c.expression(s, e)
		if err != nil {
			return "", nil, fmt.Errorf("where[%d]: %w", i, err)
		}
		parts = append(parts, sql)
		args = append(args, exprArgs...)
	}

	for _, ef := range v.WhereEdgeClauses {
		sql, edgeArgs, err := c.edgeFilter(s, ef)
		if err != nil {
			return "", nil, fmt.Errorf("where edge %s: %w", ef.Relation, err)
		}
		parts = append(parts, sql)
		args = append(args, edgeArgs...)
	}

	return strings.Join(parts, " AND "), args, nil
}

// spaceFilter restricts rows to the configured instance spaces. An instance
// qualifies when it is in one of the listed spaces or its space starts with
// the configured prefix.
func spaceFilter(cfg model.ViewConfig) (string, []any) {
	var parts []string
	var args []any
	if len(cfg.InstanceSpaces) > 0 {
		parts = append(parts, fmt.Sprintf("i.space IN (%s)", placeholders(len(cfg.InstanceSpaces))))
		for _, sp := range cfg.InstanceSpaces {
			args = append(args, sp)
		}
	}
	if cfg.InstanceSpacesPrefix != "" {
		parts = append(parts, "substr(i.space, 1, length(?)) = ?")
		args = append(args, cfg.InstanceSpacesPrefix, cfg.InstanceSpacesPrefix)
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], args
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// edgeFilter matches instances with at least one edge of the relation that
// satisfies every filter.
func (c *compilation) edgeFilter(s scope, ef statement.EdgeFilter) (string, []any, error) {
	f, ok := s.desc.Field(ef.Relation.Property())
	if !ok || !f.IsRelation() {
		return "", nil, fmt.Errorf("%q is not a relation of %s", ef.Relation.Property(), s.desc)
	}
	if !f.Target.HasIdentity() {
		return "", nil, fmt.Errorf("%w: relation %q holds inline objects, not edges", ErrUnsupported, f.Alias)
	}

	e := c.alias("e")
	edges := scope{table: "", doc: e + ".properties"}
	parts := make([]string, 0, len(ef.Filters))
	args := []any{s.desc.EdgeType(f.Alias)}
	for i, filter := range ef.Filters {
		sql, filterArgs, err := c.expression(edges, filter)
		if err != nil {
			return "", nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		parts = append(parts, sql)
		args = append(args, filterArgs...)
	}

	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM edges %[1]s WHERE %[1]s.start_space = %[2]s.space AND %[1]s.start_external_id = %[2]s.external_id AND %[1]s.type_external_id = ? AND %[3]s)",
		e, s.table, strings.Join(parts, " AND "))
	return sql, args, nil
}

func orderBy(s scope, sorts []statement.Sort) (string, error) {
	parts := make([]string, 0, len(sorts)+2)
	for i, srt := range sorts {
		col, err := s.column(srt.Property.Property())
		if err != nil {
			return "", fmt.Errorf("sort[%d]: %w", i, err)
		}
		switch srt.Direction {
		case statement.Ascending:
			parts = append(parts, col+" ASC")
		case statement.Descending:
			parts = append(parts, col+" DESC")
		default:
			return "", fmt.Errorf("sort[%d]: unknown direction %q", i, srt.Direction)
		}
	}
	// Deterministic tiebreaker
	parts = append(parts, "i.space ASC COLLATE BINARY", "i.external_id ASC COLLATE BINARY")
	return strings.Join(parts, ", "), nil
}

func textMatch(desc *model.Descriptor, v statement.SearchValues) (string, []any, error) {
	terms := strings.Fields(v.Query)
	if len(terms) == 0 {
		return "", nil, nil
	}

	props := v.QueryProperties
	if props == nil {
		props = textProperties(desc)
	}
	if len(props) == 0 {
		return "0 = 1", nil, nil
	}

	s := instanceScope(desc)
	cols := make([]string, len(props))
	for i, p := range props {
		col, err := s.column(p)
		if err != nil {
			return "", nil, fmt.Errorf("query properties: %w", err)
		}
		cols[i] = col
	}

	joiner := " AND "
	if v.SearchOperator == statement.SearchOr {
		joiner = " OR "
	}

	var args []any
	termParts := make([]string, len(terms))
	for i, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		colParts := make([]string, len(cols))
		for j, col := range cols {
			colParts[j] = col + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		termParts[i] = "(" + strings.Join(colParts, " OR ") + ")"
	}
	return "(" + strings.Join(termParts, joiner) + ")", args, nil
}

// textProperties lists the single-valued string fields of desc other than
// the identity fields.
func textProperties(desc *model.Descriptor) []string {
	var out []string
	for _, f := range desc.Fields {
		if f.Type != model.TypeString || f.List {
			continue
		}
		if desc.HasIdentity() && (f.Alias == "externalId" || f.Alias == "space") {
			continue
		}
		out = append(out, f.Alias)
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scope is the document filters are compiled against.
type scope struct {
	// desc describes the document, nil when unknown (edges).
	desc *model.Descriptor

	// table is the alias of an instances row, "" inside inline objects.
	table string

	// doc is the SQL expression holding the JSON document.
	doc string

	// prefix locates an inline object inside doc.
	prefix []string
}

func instanceScope(desc *model.Descriptor) scope {
	return instanceAlias(desc, "i")
}

// column returns the SQL expression reading prop. prop is a wire name or
// a dotted path into inline objects.
func (s scope) column(prop string) (string, error) {
	if s.table != "" && len(s.prefix) == 0 {
		switch prop {
		case "externalId":
			return s.table + ".external_id", nil
		case "space":
			return s.table + ".space", nil
		}
	}
	path, err := s.path(prop)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("json_extract(%s, %s)", s.doc, sqlString(path)), nil
}

func (s scope) path(prop string) (string, error) {
	if prop == "" {
		return "", errors.New("empty property")
	}
	return jsonPath(slices.Concat(s.prefix, strings.Split(prop, ".")))
}

func jsonPath(segments []string) (string, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, `"\`) {
			return "", fmt.Errorf("invalid property segment %q", seg)
		}
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String(), nil
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
