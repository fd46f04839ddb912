// Package queryfile reads YAML query files and compiles them into
// statements over a declared view. Both the command line and the scenario
// harness run queries through it.
package queryfile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lucasrosaalves/industrial-model/internal/engine"
	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/query"
	"github.com/lucasrosaalves/industrial-model/internal/querysql"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// Document is the entity type used by commands: views declared in CUE have
// no Go type, so instances decode into maps keyed by wire name.
type Document = map[string]any

// File is the YAML form of a query:
//
//	declare:
//	  - {name: nameIs, property: name, op: eq}
//	  - {name: orderBy, sort: ascending}
//	  - {name: either, bool: or}
//	values:
//	  nameIs: pump-1
//	  orderBy: name
//	limit: 10
//
// A search or aggregate section turns the select into that statement kind.
type File struct {
	Declare   []AttributeSpec `yaml:"declare"`
	Values    map[string]any  `yaml:"values"`
	Limit     int             `yaml:"limit"`
	Cursor    string          `yaml:"cursor"`
	Search    *SearchSpec     `yaml:"search"`
	Aggregate *AggregateSpec  `yaml:"aggregate"`
}

// AttributeSpec declares one query attribute. Exactly one of Op, Sort and
// Bool must be set.
type AttributeSpec struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
	Op       string `yaml:"op"`
	Sort     string `yaml:"sort"`
	Bool     string `yaml:"bool"`
}

// SearchSpec configures a search statement.
type SearchSpec struct {
	Query      string   `yaml:"query"`
	Properties []string `yaml:"properties"`
	Operator   string   `yaml:"operator"`
}

// AggregateSpec configures an aggregation statement. A missing groupBy
// falls back to the view's declared fields; an empty list disables grouping.
type AggregateSpec struct {
	Function string   `yaml:"function"`
	Property string   `yaml:"property"`
	GroupBy  []string `yaml:"groupBy"`
}

// Read parses a query file.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var q File
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &q, nil
}

// Validate checks the parts of the file that do not depend on a view.
func (q *File) Validate() error {
	if q.Search != nil && q.Aggregate != nil {
		return errors.New("search and aggregate are mutually exclusive")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", q.Limit)
	}
	return nil
}

// Declaration builds the query declaration of the file.
func (q *File) Declaration() (*query.Declaration, error) {
	attrs := make([]query.Attribute, 0, len(q.Declare))
	for i, a := range q.Declare {
		set := 0
		for _, s := range []string{a.Op, a.Sort, a.Bool} {
			if s != "" {
				set++
			}
		}
		if set != 1 {
			return nil, fmt.Errorf("declare[%d] %s: exactly one of op, sort and bool is required", i, a.Name)
		}
		switch {
		case a.Op != "":
			attrs = append(attrs, query.Param(a.Name, a.Property, a.Op))
		case a.Sort != "":
			attrs = append(attrs, query.Sort(a.Name, statement.Direction(a.Sort)))
		default:
			attrs = append(attrs, query.Bool(a.Name, expr.BoolOperator(a.Bool)))
		}
	}
	return query.Declare(attrs...)
}

// Plan is a query file compiled against one view.
type Plan struct {
	Kind string // "select", "search" or "aggregate"

	view      *model.Descriptor
	selection statement.Statement[Document]
	search    statement.SearchStatement[Document]
	aggregate statement.AggregationStatement[Document]
}

// Plan compiles the file into a statement over desc. defaultLimit applies
// when the file sets no limit.
func (q *File) Plan(desc *model.Descriptor, defaultLimit int) (*Plan, error) {
	decl, err := q.Declaration()
	if err != nil {
		return nil, err
	}
	rec, err := decl.Decode(q.Values)
	if err != nil {
		return nil, err
	}
	filters, err := rec.Filters()
	if err != nil {
		return nil, err
	}
	sorts, err := rec.Sorts()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	p := &Plan{view: desc}
	switch {
	case q.Search != nil:
		p.Kind = "search"
		s := statement.SearchFor[Document](desc).Limit(limit).Cursor(q.Cursor)
		if len(filters) > 0 {
			s = s.Where(filters...)
		}
		for _, o := range sorts {
			if o.Direction == statement.Descending {
				s = s.Desc(o.Property)
			} else {
				s = s.Asc(o.Property)
			}
		}
		p.search = s.QueryBy(q.Search.Query, properties(q.Search.Properties), statement.SearchOperator(q.Search.Operator))

	case q.Aggregate != nil:
		p.Kind = "aggregate"
		s := statement.AggregateFor[Document](desc, statement.AggregateFunc(q.Aggregate.Function)).Limit(limit).Cursor(q.Cursor)
		if len(filters) > 0 {
			s = s.Where(filters...)
		}
		for _, o := range sorts {
			if o.Direction == statement.Descending {
				s = s.Desc(o.Property)
			} else {
				s = s.Asc(o.Property)
			}
		}
		if q.Aggregate.Property != "" {
			s = s.AggregateBy(expr.Col(q.Aggregate.Property))
		}
		switch {
		case q.Aggregate.GroupBy != nil:
			s = s.GroupBy(properties(q.Aggregate.GroupBy)...)
		case desc.Kind == model.KindAggregated:
			s = s.GroupBy(properties(desc.GroupByFields())...)
		}
		p.aggregate = s

	default:
		p.Kind = "select"
		s := statement.SelectFor[Document](desc).Limit(limit).Cursor(q.Cursor)
		if len(filters) > 0 {
			s = s.Where(filters...)
		}
		for _, o := range sorts {
			if o.Direction == statement.Descending {
				s = s.Desc(o.Property)
			} else {
				s = s.Asc(o.Property)
			}
		}
		p.selection = s
	}
	return p, nil
}

func properties(names []string) []expr.Property {
	if names == nil {
		return nil
	}
	out := make([]expr.Property, len(names))
	for i, n := range names {
		out[i] = expr.Col(n)
	}
	return out
}

// Validate checks the compiled statement.
func (p *Plan) Validate() error {
	switch p.Kind {
	case "search":
		return p.search.Values().Validate()
	case "aggregate":
		return p.aggregate.Values().Validate()
	default:
		return p.selection.Values().Validate()
	}
}

// Values returns the structural form of the statement values.
func (p *Plan) Values() ir.Object {
	switch p.Kind {
	case "search":
		return p.search.Values().Encode()
	case "aggregate":
		return p.aggregate.Values().Encode()
	default:
		return p.selection.Values().Encode()
	}
}

// SQL compiles the statement for the SQLite store.
func (p *Plan) SQL(c *querysql.Compiler) (querysql.Query, error) {
	switch p.Kind {
	case "search":
		return c.Search(p.view, p.search.Values())
	case "aggregate":
		return c.Aggregate(p.view, p.aggregate.Values())
	default:
		return c.Select(p.view, p.selection.Values())
	}
}

// Result is what a plan returns when run.
type Result struct {
	Kind        string     `json:"kind" yaml:"kind"`
	Items       []Document `json:"items" yaml:"items"`
	HasNextPage bool       `json:"hasNextPage,omitempty" yaml:"hasNextPage,omitempty"`
	NextCursor  string     `json:"nextCursor,omitempty" yaml:"nextCursor,omitempty"`
}

// Run executes the statement. Selects return one page.
func (p *Plan) Run(ctx context.Context, e *engine.Engine) (Result, error) {
	res := Result{Kind: p.Kind}
	switch p.Kind {
	case "search":
		items, err := engine.Search(ctx, e, p.search)
		if err != nil {
			return res, err
		}
		res.Items = items
	case "aggregate":
		items, err := engine.Aggregate(ctx, e, p.aggregate)
		if err != nil {
			return res, err
		}
		res.Items = items
	default:
		page, err := engine.Query(ctx, e, p.selection)
		if err != nil {
			return res, err
		}
		res.Items = page.Data
		res.HasNextPage = page.HasNextPage
		res.NextCursor = page.NextCursor
	}
	if res.Items == nil {
		res.Items = []Document{}
	}
	return res, nil
}
