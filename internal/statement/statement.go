package statement

import (
	"slices"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// Statement is a select over the view described by T.
type Statement[T any] struct {
	desc   *model.Descriptor
	values Values
}

// Select starts a select over T. It panics if T is not a view model.
func Select[T any]() Statement[T] {
	return SelectFor[T](model.MustDescribe[T]())
}

// SelectFor starts a select over desc, decoding results into T. It serves
// views without a Go type, e.g. SelectFor[map[string]any](desc).
func SelectFor[T any](desc *model.Descriptor) Statement[T] {
	return Statement[T]{desc: desc, values: newValues()}
}

// Descriptor returns the view the statement targets.
func (s Statement[T]) Descriptor() *model.Descriptor { return s.desc }

// Values returns a snapshot of the statement configuration.
func (s Statement[T]) Values() Values { return s.values.Clone() }

// Where appends filters. Repeated calls accumulate.
func (s Statement[T]) Where(exprs ...expr.Expression) Statement[T] {
	s.values = s.values.where(exprs)
	return s
}

// WhereEdge appends filters on the edges reached through relation.
func (s Statement[T]) WhereEdge(relation expr.Property, exprs ...expr.Expression) Statement[T] {
	s.values = s.values.whereEdge(relation, exprs)
	return s
}

// Asc appends an ascending sort key.
func (s Statement[T]) Asc(p expr.Property) Statement[T] {
	s.values = s.values.sort(p, Ascending)
	return s
}

// Desc appends a descending sort key.
func (s Statement[T]) Desc(p expr.Property) Statement[T] {
	s.values = s.values.sort(p, Descending)
	return s
}

// Limit sets the page size.
func (s Statement[T]) Limit(n int) Statement[T] {
	s.values.Limit = n
	return s
}

// Cursor sets the pagination cursor. An empty cursor starts from the first page.
func (s Statement[T]) Cursor(c string) Statement[T] {
	s.values.Cursor = c
	return s
}

// SearchStatement is a full-text search over the view described by T.
type SearchStatement[T any] struct {
	desc   *model.Descriptor
	values SearchValues
}

// Search starts a search over T. It panics if T is not a view model.
func Search[T any]() SearchStatement[T] {
	return SearchFor[T](model.MustDescribe[T]())
}

// SearchFor starts a search over desc.
func SearchFor[T any](desc *model.Descriptor) SearchStatement[T] {
	return SearchStatement[T]{desc: desc, values: SearchValues{Values: newValues()}}
}

func (s SearchStatement[T]) Descriptor() *model.Descriptor { return s.desc }
func (s SearchStatement[T]) Values() SearchValues          { return s.values.Clone() }

func (s SearchStatement[T]) Where(exprs ...expr.Expression) SearchStatement[T] {
	s.values.Values = s.values.where(exprs)
	return s
}

func (s SearchStatement[T]) WhereEdge(relation expr.Property, exprs ...expr.Expression) SearchStatement[T] {
	s.values.Values = s.values.whereEdge(relation, exprs)
	return s
}

func (s SearchStatement[T]) Asc(p expr.Property) SearchStatement[T] {
	s.values.Values = s.values.sort(p, Ascending)
	return s
}

func (s SearchStatement[T]) Desc(p expr.Property) SearchStatement[T] {
	s.values.Values = s.values.sort(p, Descending)
	return s
}

func (s SearchStatement[T]) Limit(n int) SearchStatement[T] {
	s.values.Limit = n
	return s
}

func (s SearchStatement[T]) Cursor(c string) SearchStatement[T] {
	s.values.Cursor = c
	return s
}

// QueryBy sets the search text. props restricts the searched properties
// (nil searches every text property) and op combines the terms ("" uses
// the store default).
func (s SearchStatement[T]) QueryBy(text string, props []expr.Property, op SearchOperator) SearchStatement[T] {
	s.values = s.values.Clone()
	s.values.Query = text
	s.values.SearchOperator = op
	s.values.QueryProperties = nil
	if props != nil {
		s.values.QueryProperties = make([]string, len(props))
		for i, p := range props {
			s.values.QueryProperties[i] = p.PropertyPath()
		}
	}
	return s
}

// AggregationStatement aggregates the view described by T.
type AggregationStatement[T any] struct {
	desc   *model.Descriptor
	values AggregationValues
}

// Aggregate starts an aggregation over T. It panics if T is not a view model.
func Aggregate[T any](fn AggregateFunc) AggregationStatement[T] {
	return AggregateFor[T](model.MustDescribe[T](), fn)
}

// AggregateFor starts an aggregation over desc.
func AggregateFor[T any](desc *model.Descriptor, fn AggregateFunc) AggregationStatement[T] {
	return AggregationStatement[T]{
		desc:   desc,
		values: AggregationValues{Values: newValues(), Aggregate: fn},
	}
}

func (s AggregationStatement[T]) Descriptor() *model.Descriptor { return s.desc }
func (s AggregationStatement[T]) Values() AggregationValues     { return s.values.Clone() }

// Aggregate returns the aggregation function.
func (s AggregationStatement[T]) Aggregate() AggregateFunc { return s.values.Aggregate }

func (s AggregationStatement[T]) Where(exprs ...expr.Expression) AggregationStatement[T] {
	s.values.Values = s.values.where(exprs)
	return s
}

func (s AggregationStatement[T]) WhereEdge(relation expr.Property, exprs ...expr.Expression) AggregationStatement[T] {
	s.values.Values = s.values.whereEdge(relation, exprs)
	return s
}

func (s AggregationStatement[T]) Asc(p expr.Property) AggregationStatement[T] {
	s.values.Values = s.values.sort(p, Ascending)
	return s
}

func (s AggregationStatement[T]) Desc(p expr.Property) AggregationStatement[T] {
	s.values.Values = s.values.sort(p, Descending)
	return s
}

func (s AggregationStatement[T]) Limit(n int) AggregationStatement[T] {
	s.values.Limit = n
	return s
}

func (s AggregationStatement[T]) Cursor(c string) AggregationStatement[T] {
	s.values.Cursor = c
	return s
}

// AggregateBy sets the property the aggregation is computed over.
func (s AggregationStatement[T]) AggregateBy(p expr.Property) AggregationStatement[T] {
	c := expr.ColOf(p)
	s.values.AggregationProperty = &c
	return s
}

// GroupBy sets the group-by properties, replacing earlier ones.
func (s AggregationStatement[T]) GroupBy(props ...expr.Property) AggregationStatement[T] {
	cols := make([]expr.Column, len(props))
	for i, p := range props {
		cols[i] = expr.ColOf(p)
	}
	s.values.GroupByProperties = slices.Clip(cols)
	return s
}
