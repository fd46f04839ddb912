package engine

import (
	"context"

	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// Document is one instance as returned by a store: wire-named properties
// (including externalId and space for views with identity) plus optional
// edge metadata keyed by relation wire name.
type Document struct {
	Properties map[string]any
	Edges      map[string][]model.Edge
}

// QueryRequest asks for one page of a select statement.
type QueryRequest struct {
	View       *model.Descriptor
	Values     statement.Values
	Properties []string // flattened property paths
	Separator  string   // separator used in Properties
}

// QueryResponse is one page of documents.
type QueryResponse struct {
	Documents   []Document
	HasNextPage bool
	NextCursor  string
}

// SearchRequest asks for the documents matching a search statement.
type SearchRequest struct {
	View       *model.Descriptor
	Values     statement.SearchValues
	Properties []string
	Separator  string
}

// AggregateRequest asks for the groups of an aggregation statement. Each
// returned document holds the group-by properties and "value".
type AggregateRequest struct {
	View   *model.Descriptor
	Values statement.AggregationValues
}

// Adapter executes requests against a store.
type Adapter interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
	Search(ctx context.Context, req SearchRequest) ([]Document, error)
	Aggregate(ctx context.Context, req AggregateRequest) ([]Document, error)
}

// Writer is implemented by adapters that can store instances.
type Writer interface {
	Upsert(ctx context.Context, view *model.Descriptor, docs []Document) error
}
