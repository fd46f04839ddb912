package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/result"
	"github.com/lucasrosaalves/industrial-model/internal/schema"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// DefaultSeparator joins property path segments sent to adapters.
const DefaultSeparator = "|"

// Engine runs statements through an Adapter.
type Engine struct {
	adapter   Adapter
	logger    *slog.Logger
	separator string
	policy    schema.Policy
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSeparator sets the property path separator. Default: "|".
func WithSeparator(sep string) Option {
	return func(e *Engine) {
		e.separator = sep
	}
}

// WithPolicy sets the schema recursion policy used to compute property paths.
func WithPolicy(p schema.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// New creates an Engine over adapter.
func New(adapter Adapter, opts ...Option) *Engine {
	e := &Engine{
		adapter:   adapter,
		logger:    slog.Default(),
		separator: DefaultSeparator,
		policy:    schema.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Properties returns the property paths requested for desc.
func (e *Engine) Properties(desc *model.Descriptor) []string {
	return schema.Properties(desc, e.separator, schema.WithPolicy(e.policy))
}

// Query fetches one page of stmt.
func Query[T any](ctx context.Context, e *Engine, stmt statement.Statement[T]) (result.Page[T], error) {
	desc := stmt.Descriptor()
	view := desc.ViewExternalID()
	values := stmt.Values()
	if err := values.Validate(); err != nil {
		return result.Page[T]{}, &QueryError{Code: ErrCodeInvalidStatement, View: view, Err: err}
	}

	req := QueryRequest{
		View:       desc,
		Values:     values,
		Properties: e.Properties(desc),
		Separator:  e.separator,
	}
	e.logger.Debug("query",
		"view", view,
		"filters", len(values.WhereClauses),
		"limit", values.Limit,
		"cursor", values.Cursor,
	)

	resp, err := e.adapter.Query(ctx, req)
	if err != nil {
		e.logger.Error("query failed", "view", view, "error", err)
		return result.Page[T]{}, &QueryError{Code: ErrCodeAdapter, View: view, Err: err}
	}

	data, err := decodeAll[T](resp.Documents)
	if err != nil {
		return result.Page[T]{}, &QueryError{Code: ErrCodeDecode, View: view, Err: err}
	}

	e.logger.Debug("query done",
		"view", view,
		"count", len(data),
		"has_next_page", resp.HasNextPage,
	)
	return result.Page[T]{
		Data:        data,
		HasNextPage: resp.HasNextPage,
		NextCursor:  resp.NextCursor,
	}, nil
}

// QueryAllPages follows cursors from stmt until the last page and returns
// every instance.
func QueryAllPages[T any](ctx context.Context, e *Engine, stmt statement.Statement[T]) ([]T, error) {
	var all []T
	seen := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := Query(ctx, e, stmt)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasNextPage {
			return all, nil
		}
		if page.NextCursor == "" || seen[page.NextCursor] {
			return nil, &QueryError{
				Code: ErrCodeAdapter,
				View: stmt.Descriptor().ViewExternalID(),
				Err:  fmt.Errorf("cursor %q did not advance", page.NextCursor),
			}
		}
		seen[page.NextCursor] = true
		stmt = stmt.Cursor(page.NextCursor)
	}
}

// Search returns the instances matching stmt.
func Search[T any](ctx context.Context, e *Engine, stmt statement.SearchStatement[T]) ([]T, error) {
	desc := stmt.Descriptor()
	view := desc.ViewExternalID()
	values := stmt.Values()
	if err := values.Validate(); err != nil {
		return nil, &QueryError{Code: ErrCodeInvalidStatement, View: view, Err: err}
	}

	e.logger.Debug("search",
		"view", view,
		"query", values.Query,
		"filters", len(values.WhereClauses),
		"limit", values.Limit,
	)
	docs, err := e.adapter.Search(ctx, SearchRequest{
		View:       desc,
		Values:     values,
		Properties: e.Properties(desc),
		Separator:  e.separator,
	})
	if err != nil {
		e.logger.Error("search failed", "view", view, "error", err)
		return nil, &QueryError{Code: ErrCodeAdapter, View: view, Err: err}
	}

	data, err := decodeAll[T](docs)
	if err != nil {
		return nil, &QueryError{Code: ErrCodeDecode, View: view, Err: err}
	}
	return data, nil
}

// Aggregate returns one instance per group. When stmt sets no group-by
// properties, an aggregated view model groups by its declared fields.
func Aggregate[T any](ctx context.Context, e *Engine, stmt statement.AggregationStatement[T]) ([]T, error) {
	desc := stmt.Descriptor()
	view := desc.ViewExternalID()
	values := stmt.Values()
	if values.GroupByProperties == nil && desc.Kind == model.KindAggregated {
		values = stmt.GroupBy(groupByProperties(desc)...).Values()
	}
	if err := values.Validate(); err != nil {
		return nil, &QueryError{Code: ErrCodeInvalidStatement, View: view, Err: err}
	}

	e.logger.Debug("aggregate",
		"view", view,
		"aggregate", values.Aggregate,
		"group_by", len(values.GroupByProperties),
	)
	docs, err := e.adapter.Aggregate(ctx, AggregateRequest{View: desc, Values: values})
	if err != nil {
		e.logger.Error("aggregate failed", "view", view, "error", err)
		return nil, &QueryError{Code: ErrCodeAdapter, View: view, Err: err}
	}

	data, err := decodeAll[T](docs)
	if err != nil {
		return nil, &QueryError{Code: ErrCodeDecode, View: view, Err: err}
	}
	return data, nil
}

func groupByProperties(desc *model.Descriptor) []expr.Property {
	names := desc.GroupByFields()
	out := make([]expr.Property, len(names))
	for i, n := range names {
		out[i] = expr.Col(n)
	}
	return out
}

// Upsert writes entities of the view model T. The adapter must implement
// Writer.
func Upsert[T any](ctx context.Context, e *Engine, entities ...T) error {
	desc, err := model.Describe[T]()
	if err != nil {
		return &QueryError{Code: ErrCodeInvalidInstance, Err: err}
	}
	docs := make([]Document, len(entities))
	for i, entity := range entities {
		doc, err := encode(desc, entity)
		if err != nil {
			return &QueryError{Code: ErrCodeInvalidInstance, View: desc.ViewExternalID(), Err: fmt.Errorf("instance %d: %w", i, err)}
		}
		docs[i] = doc
	}
	return e.UpsertDocuments(ctx, desc, docs)
}

// UpsertDocuments writes wire-named documents of desc. Views with identity
// require externalId and space on every document.
func (e *Engine) UpsertDocuments(ctx context.Context, desc *model.Descriptor, docs []Document) error {
	view := desc.ViewExternalID()
	w, ok := e.adapter.(Writer)
	if !ok {
		return &QueryError{Code: ErrCodeUnsupported, View: view, Err: errors.New("adapter does not support writes")}
	}
	if desc.HasIdentity() {
		for i, doc := range docs {
			for _, key := range []string{"externalId", "space"} {
				if s, _ := doc.Properties[key].(string); s == "" {
					return &QueryError{Code: ErrCodeInvalidInstance, View: view, Err: fmt.Errorf("instance %d: missing %s", i, key)}
				}
			}
		}
	}

	if err := w.Upsert(ctx, desc, docs); err != nil {
		e.logger.Error("upsert failed", "view", view, "error", err)
		return &QueryError{Code: ErrCodeAdapter, View: view, Err: err}
	}
	e.logger.Info("instances upserted", "view", view, "count", len(docs))
	return nil
}

type edgeAttacher interface {
	AttachEdges(alias string, edges []model.Edge)
}

func decodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decode[T any](doc Document) (T, error) {
	var v T
	data, err := json.Marshal(doc.Properties)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	if len(doc.Edges) == 0 {
		return v, nil
	}

	a, ok := any(v).(edgeAttacher)
	if !ok {
		a, ok = any(&v).(edgeAttacher)
	}
	if ok {
		for alias, edges := range doc.Edges {
			a.AttachEdges(alias, edges)
		}
	}
	return v, nil
}

// encode converts entity into a wire-named document. Relations to views
// are written as {externalId, space} references. Writable models get
// one edge per reference of each list relation to a view, identified by
// the model's EdgeID.
func encode(desc *model.Descriptor, entity any) (Document, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return Document{}, err
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return Document{}, err
	}
	if props == nil {
		return Document{}, errors.New("instance encodes to null")
	}
	for _, f := range desc.Fields {
		if !f.IsRelation() || !f.Target.HasIdentity() {
			continue
		}
		switch v := props[f.Alias].(type) {
		case map[string]any:
			props[f.Alias] = reference(v)
		case []any:
			for i, item := range v {
				if obj, ok := item.(map[string]any); ok {
					v[i] = reference(obj)
				}
			}
		}
	}
	doc := Document{Properties: props}

	ider, ok := entity.(model.EdgeIDer)
	if !ok {
		return doc, nil
	}
	start := instanceID(props)
	for _, f := range desc.Fields {
		if !f.List || !f.IsRelation() || !f.Target.HasIdentity() {
			continue
		}
		items, _ := props[f.Alias].([]any)
		if len(items) == 0 {
			continue
		}
		edgeType := model.InstanceID{ExternalID: desc.EdgeType(f.Alias), Space: start.Space}
		edges := make([]model.Edge, 0, len(items))
		for i, item := range items {
			obj, _ := item.(map[string]any)
			end := instanceID(obj)
			if end.ExternalID == "" || end.Space == "" {
				return Document{}, fmt.Errorf("%s[%d]: reference needs externalId and space", f.Alias, i)
			}
			id := ider.EdgeID(end, edgeType)
			edges = append(edges, model.Edge{
				ExternalID: id.ExternalID,
				Space:      id.Space,
				Type:       edgeType,
				StartNode:  start,
				EndNode:    end,
			})
		}
		if doc.Edges == nil {
			doc.Edges = make(map[string][]model.Edge)
		}
		doc.Edges[f.Alias] = edges
	}
	return doc, nil
}

func reference(obj map[string]any) map[string]any {
	return map[string]any{"externalId": obj["externalId"], "space": obj["space"]}
}

func instanceID(props map[string]any) model.InstanceID {
	ext, _ := props["externalId"].(string)
	space, _ := props["space"].(string)
	return model.InstanceID{ExternalID: ext, Space: space}
}
