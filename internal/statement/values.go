package statement

import (
	"fmt"
	"slices"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// DefaultLimit is the page size of a new statement.
const DefaultLimit = 1000

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Sort is one sort key. The first sort clause has the highest priority.
type Sort struct {
	Property  expr.Column
	Direction Direction
}

// EdgeFilter scopes filters to the edges reached through a relation.
type EdgeFilter struct {
	Relation expr.Column
	Filters  []expr.Expression
}

// SearchOperator combines search terms.
type SearchOperator string

const (
	SearchAnd SearchOperator = "AND"
	SearchOr  SearchOperator = "OR"
)

// AggregateFunc names an aggregation.
type AggregateFunc string

const (
	Count AggregateFunc = "count"
	Sum   AggregateFunc = "sum"
	Avg   AggregateFunc = "avg"
	Min   AggregateFunc = "min"
	Max   AggregateFunc = "max"
)

// Valid reports whether f is a known aggregation.
func (f AggregateFunc) Valid() bool {
	switch f {
	case Count, Sum, Avg, Min, Max:
		return true
	}
	return false
}

// Values is the configuration shared by every statement kind.
type Values struct {
	WhereClauses     []expr.Expression
	WhereEdgeClauses []EdgeFilter
	SortClauses      []Sort
	Limit            int
	Cursor           string // "" means no cursor
}

func newValues() Values {
	return Values{Limit: DefaultLimit}
}

// Clone returns a deep copy of the clause lists. Expressions are immutable
// and shared.
func (v Values) Clone() Values {
	v.WhereClauses = slices.Clone(v.WhereClauses)
	v.SortClauses = slices.Clone(v.SortClauses)
	edges := make([]EdgeFilter, len(v.WhereEdgeClauses))
	for i, e := range v.WhereEdgeClauses {
		edges[i] = EdgeFilter{Relation: e.Relation, Filters: slices.Clone(e.Filters)}
	}
	if v.WhereEdgeClauses == nil {
		edges = nil
	}
	v.WhereEdgeClauses = edges
	return v
}

// Validate checks the limit and every filter tree.
func (v Values) Validate() error {
	if v.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", v.Limit)
	}
	if err := expr.ValidateAll(v.WhereClauses); err != nil {
		return fmt.Errorf("where: %w", err)
	}
	for _, e := range v.WhereEdgeClauses {
		if len(e.Filters) == 0 {
			return fmt.Errorf("where edge %s: no filters", e.Relation)
		}
		if err := expr.ValidateAll(e.Filters); err != nil {
			return fmt.Errorf("where edge %s: %w", e.Relation, err)
		}
	}
	for i, s := range v.SortClauses {
		if s.Direction != Ascending && s.Direction != Descending {
			return fmt.Errorf("sort[%d]: unknown direction %q", i, s.Direction)
		}
	}
	return nil
}

// Encode returns the structural form used for display and hashing.
func (v Values) Encode() ir.Object {
	edges := make(ir.List, len(v.WhereEdgeClauses))
	for i, e := range v.WhereEdgeClauses {
		edges[i] = ir.Object{
			"relation": ir.String(e.Relation.Property()),
			"filters":  expr.EncodeAll(e.Filters),
		}
	}
	sorts := make(ir.List, len(v.SortClauses))
	for i, s := range v.SortClauses {
		sorts[i] = ir.Object{
			"property":  ir.String(s.Property.Property()),
			"direction": ir.String(s.Direction),
		}
	}
	return ir.Object{
		"where":     expr.EncodeAll(v.WhereClauses),
		"whereEdge": edges,
		"sort":      sorts,
		"limit":     ir.Int(v.Limit),
		"cursor":    optionalString(v.Cursor),
	}
}

// Hash returns a content hash of the values.
func (v Values) Hash() (string, error) {
	return ir.ContentHash(ir.DomainStatement, v.Encode())
}

func (v Values) where(exprs []expr.Expression) Values {
	v = v.Clone()
	v.WhereClauses = append(v.WhereClauses, exprs...)
	return v
}

func (v Values) whereEdge(relation expr.Property, exprs []expr.Expression) Values {
	v = v.Clone()
	v.WhereEdgeClauses = append(v.WhereEdgeClauses, EdgeFilter{
		Relation: expr.ColOf(relation),
		Filters:  slices.Clone(exprs),
	})
	return v
}

func (v Values) sort(p expr.Property, d Direction) Values {
	v = v.Clone()
	v.SortClauses = append(v.SortClauses, Sort{Property: expr.ColOf(p), Direction: d})
	return v
}

// SearchValues extends Values for full-text search.
type SearchValues struct {
	Values
	Query           string
	QueryProperties []string       // nil means every text property
	SearchOperator  SearchOperator // "" means the store default
}

// Clone returns a deep copy.
func (v SearchValues) Clone() SearchValues {
	v.Values = v.Values.Clone()
	v.QueryProperties = slices.Clone(v.QueryProperties)
	return v
}

// Validate checks the shared values and the search operator.
func (v SearchValues) Validate() error {
	if err := v.Values.Validate(); err != nil {
		return err
	}
	if v.SearchOperator != "" && v.SearchOperator != SearchAnd && v.SearchOperator != SearchOr {
		return fmt.Errorf("unknown search operator %q", v.SearchOperator)
	}
	return nil
}

// Encode returns the structural form used for display and hashing.
func (v SearchValues) Encode() ir.Object {
	out := v.Values.Encode()
	out["query"] = ir.String(v.Query)
	out["queryProperties"] = optionalStrings(v.QueryProperties)
	out["searchOperator"] = optionalString(string(v.SearchOperator))
	return out
}

// AggregationValues extends Values for aggregations.
type AggregationValues struct {
	Values
	Aggregate           AggregateFunc
	AggregationProperty *expr.Column  // nil for count
	GroupByProperties   []expr.Column // nil means unset
}

// Clone returns a deep copy.
func (v AggregationValues) Clone() AggregationValues {
	v.Values = v.Values.Clone()
	if v.AggregationProperty != nil {
		p := *v.AggregationProperty
		v.AggregationProperty = &p
	}
	v.GroupByProperties = slices.Clone(v.GroupByProperties)
	return v
}

// Validate checks the shared values and the aggregation.
func (v AggregationValues) Validate() error {
	if err := v.Values.Validate(); err != nil {
		return err
	}
	if !v.Aggregate.Valid() {
		return fmt.Errorf("unknown aggregate %q", v.Aggregate)
	}
	if v.Aggregate != Count && v.AggregationProperty == nil {
		return fmt.Errorf("%s requires an aggregation property", v.Aggregate)
	}
	return nil
}

// Encode returns the structural form used for display and hashing.
func (v AggregationValues) Encode() ir.Object {
	out := v.Values.Encode()
	out["aggregate"] = ir.String(v.Aggregate)
	out["aggregationProperty"] = ir.Null{}
	if v.AggregationProperty != nil {
		out["aggregationProperty"] = ir.String(v.AggregationProperty.Property())
	}
	if v.GroupByProperties == nil {
		out["groupByProperties"] = ir.Null{}
	} else {
		props := make([]string, len(v.GroupByProperties))
		for i, c := range v.GroupByProperties {
			props[i] = c.Property()
		}
		out["groupByProperties"] = optionalStrings(props)
	}
	return out
}

func optionalString(s string) ir.Value {
	if s == "" {
		return ir.Null{}
	}
	return ir.String(s)
}

func optionalStrings(ss []string) ir.Value {
	if ss == nil {
		return ir.Null{}
	}
	out := make(ir.List, len(ss))
	for i, s := range ss {
		out[i] = ir.String(s)
	}
	return out
}
