package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasrosaalves/industrial-model/internal/engine"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/querysql"
)

// Query returns one page of a select. Relations named in req.Properties are
// resolved and the documents are trimmed to the requested properties.
func (s *Store) Query(ctx context.Context, req engine.QueryRequest) (engine.QueryResponse, error) {
	q, err := s.compiler.Select(req.View, req.Values)
	if err != nil {
		return engine.QueryResponse{}, fmt.Errorf("compile select: %w", err)
	}
	offset, err := querysql.DecodeCursor(req.Values.Cursor)
	if err != nil {
		return engine.QueryResponse{}, err
	}

	docs, err := s.selectDocuments(ctx, q)
	if err != nil {
		return engine.QueryResponse{}, err
	}

	resp := engine.QueryResponse{}
	if len(docs) > req.Values.Limit {
		docs = docs[:req.Values.Limit]
		resp.HasNextPage = true
		resp.NextCursor = querysql.EncodeCursor(offset + req.Values.Limit)
	}

	if err := s.complete(ctx, req.View, docs, req.Properties, req.Separator); err != nil {
		return engine.QueryResponse{}, err
	}
	resp.Documents = docs
	return resp, nil
}

// Search returns the documents matching a text search.
func (s *Store) Search(ctx context.Context, req engine.SearchRequest) ([]engine.Document, error) {
	q, err := s.compiler.Search(req.View, req.Values)
	if err != nil {
		return nil, fmt.Errorf("compile search: %w", err)
	}
	docs, err := s.selectDocuments(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.complete(ctx, req.View, docs, req.Properties, req.Separator); err != nil {
		return nil, err
	}
	return docs, nil
}

// Aggregate returns one document per group holding the group-by properties
// and "value".
func (s *Store) Aggregate(ctx context.Context, req engine.AggregateRequest) ([]engine.Document, error) {
	q, err := s.compiler.Aggregate(req.View, req.Values)
	if err != nil {
		return nil, fmt.Errorf("compile aggregate: %w", err)
	}
	s.logger.Debug("sql", "query", q.SQL, "args", len(q.Args))

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregate: %w", err)
	}
	defer rows.Close()

	docs := []engine.Document{}
	for rows.Next() {
		values := make([]any, len(q.Columns)+1)
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}

		props := make(map[string]any, len(values))
		for i, col := range q.Columns {
			props[col] = sqlValue(values[i])
		}
		props["value"] = sqlValue(values[len(values)-1])
		docs = append(docs, engine.Document{Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate: %w", err)
	}
	return docs, nil
}

// Get returns the stored documents of view with the given ids, in the
// given order. Missing ids are skipped.
func (s *Store) Get(ctx context.Context, view *model.Descriptor, ids ...model.InstanceID) ([]engine.Document, error) {
	docs := make([]engine.Document, 0, len(ids))
	for _, id := range ids {
		props, found, err := s.get(ctx, view, id)
		if err != nil {
			return nil, err
		}
		if found {
			docs = append(docs, engine.Document{Properties: props})
		}
	}
	return docs, nil
}

func (s *Store) get(ctx context.Context, view *model.Descriptor, id model.InstanceID) (map[string]any, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT properties FROM instances WHERE view = ? AND space = ? AND external_id = ?
	`, view.ViewExternalID(), id.Space, id.ExternalID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}
	props, err := unmarshalProperties(data)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}
	return props, true, nil
}

func (s *Store) selectDocuments(ctx context.Context, q querysql.Query) ([]engine.Document, error) {
	s.logger.Debug("sql", "query", q.SQL, "args", len(q.Args))

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	docs := []engine.Document{}
	for rows.Next() {
		var space, externalID, data string
		if err := rows.Scan(&space, &externalID, &data); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		props, err := unmarshalProperties(data)
		if err != nil {
			return nil, fmt.Errorf("instance %s:%s: %w", space, externalID, err)
		}
		props["externalId"] = externalID
		props["space"] = space
		docs = append(docs, engine.Document{Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return docs, nil
}

// complete resolves relations, trims documents to the requested properties
// and attaches edge metadata.
func (s *Store) complete(ctx context.Context, view *model.Descriptor, docs []engine.Document, properties []string, sep string) error {
	if len(properties) > 0 {
		tree := buildTree(properties, sep)
		for _, doc := range docs {
			if err := s.shape(ctx, view, doc.Properties, tree); err != nil {
				return err
			}
		}
	}
	for i := range docs {
		if err := s.attachEdges(ctx, view, &docs[i]); err != nil {
			return err
		}
	}
	return nil
}

// pathTree is the set of requested property paths, one level per segment.
type pathTree map[string]pathTree

func buildTree(paths []string, sep string) pathTree {
	root := pathTree{}
	for _, p := range paths {
		segments := []string{p}
		if sep != "" {
			segments = strings.Split(p, sep)
		}
		node := root
		for _, seg := range segments {
			next, ok := node[seg]
			if !ok {
				next = pathTree{}
				node[seg] = next
			}
			node = next
		}
	}
	return root
}

// shape trims obj to the properties in tree and resolves the relations
// tree expands. Identity fields of views are always kept.
func (s *Store) shape(ctx context.Context, desc *model.Descriptor, obj map[string]any, tree pathTree) error {
	for key := range obj {
		if _, ok := tree[key]; ok {
			continue
		}
		if desc.HasIdentity() && (key == "externalId" || key == "space") {
			continue
		}
		delete(obj, key)
	}

	for _, f := range desc.Fields {
		sub := tree[f.Alias]
		if !f.IsRelation() || len(sub) == 0 || obj[f.Alias] == nil {
			continue
		}
		if !f.List {
			v, err := s.expand(ctx, f.Target, obj[f.Alias], sub)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Alias, err)
			}
			obj[f.Alias] = v
			continue
		}
		items, ok := obj[f.Alias].([]any)
		if !ok {
			continue
		}
		for i, item := range items {
			v, err := s.expand(ctx, f.Target, item, sub)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", f.Alias, i, err)
			}
			items[i] = v
		}
	}
	return nil
}

// expand resolves one relation value. References to missing instances are
// returned unchanged.
func (s *Store) expand(ctx context.Context, target *model.Descriptor, v any, tree pathTree) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	if target.HasIdentity() {
		id, ok := identity(obj)
		if !ok {
			return v, nil
		}
		resolved, found, err := s.get(ctx, target, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return v, nil
		}
		obj = resolved
	}
	if err := s.shape(ctx, target, obj, tree); err != nil {
		return nil, err
	}
	return obj, nil
}

// attachEdges loads the edges of every list relation to a view.
func (s *Store) attachEdges(ctx context.Context, view *model.Descriptor, doc *engine.Document) error {
	start, ok := identity(doc.Properties)
	if !ok {
		return nil
	}
	for _, f := range view.Fields {
		if !f.List || !f.IsRelation() || !f.Target.HasIdentity() {
			continue
		}
		edges, err := s.edges(ctx, start, view.EdgeType(f.Alias))
		if err != nil {
			return err
		}
		if len(edges) == 0 {
			continue
		}
		if doc.Edges == nil {
			doc.Edges = make(map[string][]model.Edge)
		}
		doc.Edges[f.Alias] = edges
	}
	return nil
}

func (s *Store) edges(ctx context.Context, start model.InstanceID, edgeType string) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT properties FROM edges
		WHERE start_space = ? AND start_external_id = ? AND type_external_id = ?
		ORDER BY position ASC, external_id ASC COLLATE BINARY
	`, start.Space, start.ExternalID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e, err := unmarshalEdge(data)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// sqlValue normalizes driver values for JSON decoding.
func sqlValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
