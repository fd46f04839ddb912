package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/engine"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// Upsert inserts or replaces documents of view in one transaction.
// Documents must carry externalId and space.
//
// For every list relation to a view, the start node's edges of that
// relation are replaced. Edges supplied in the document are used as given;
// otherwise one edge per reference is derived with a deterministic id.
func (s *Store) Upsert(ctx context.Context, view *model.Descriptor, docs []engine.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for i, doc := range docs {
		id, ok := identity(doc.Properties)
		if !ok {
			return fmt.Errorf("upsert: document %d: missing externalId or space", i)
		}
		if err := s.upsertOne(ctx, tx, view, id, doc); err != nil {
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert: commit: %w", err)
	}
	s.logger.Debug("upserted instances", "view", view.ViewExternalID(), "count", len(docs))
	return nil
}

func (s *Store) upsertOne(ctx context.Context, tx *sql.Tx, view *model.Descriptor, id model.InstanceID, doc engine.Document) error {
	props, err := marshalProperties(doc.Properties)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO instances (view, space, external_id, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(view, space, external_id) DO UPDATE SET properties = excluded.properties
	`, view.ViewExternalID(), id.Space, id.ExternalID, props)
	if err != nil {
		return fmt.Errorf("write instance: %w", err)
	}

	for _, f := range view.Fields {
		if !f.List || !f.IsRelation() || !f.Target.HasIdentity() {
			continue
		}
		edges, err := edgesFor(view, f, id, doc)
		if err != nil {
			return err
		}
		if err := writeEdges(ctx, tx, id, view.EdgeType(f.Alias), edges); err != nil {
			return fmt.Errorf("relation %s: %w", f.Alias, err)
		}
	}
	return nil
}

// edgesFor returns the edges of relation f for the document: the supplied
// ones, or one per reference.
func edgesFor(view *model.Descriptor, f model.Field, start model.InstanceID, doc engine.Document) ([]model.Edge, error) {
	if edges, ok := doc.Edges[f.Alias]; ok {
		return edges, nil
	}

	items, _ := doc.Properties[f.Alias].([]any)
	edgeType := model.InstanceID{ExternalID: view.EdgeType(f.Alias), Space: start.Space}
	node := model.WritableViewInstance{ViewInstance: model.ViewInstance{ExternalID: start.ExternalID, Space: start.Space}}

	edges := make([]model.Edge, 0, len(items))
	for i, item := range items {
		end, ok := identity(item)
		if !ok {
			return nil, fmt.Errorf("relation %s[%d]: reference needs externalId and space", f.Alias, i)
		}
		id := node.EdgeID(end, edgeType)
		edges = append(edges, model.Edge{
			ExternalID: id.ExternalID,
			Space:      id.Space,
			Type:       edgeType,
			StartNode:  start,
			EndNode:    end,
		})
	}
	return edges, nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, start model.InstanceID, edgeType string, edges []model.Edge) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM edges
		WHERE start_space = ? AND start_external_id = ? AND type_external_id = ?
	`, start.Space, start.ExternalID, edgeType)
	if err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}

	for pos, e := range edges {
		props, err := marshalEdge(e)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO edges
			(space, external_id, type_external_id, start_space, start_external_id, end_space, end_external_id, position, properties)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(space, external_id) DO UPDATE SET
				type_external_id = excluded.type_external_id,
				start_space = excluded.start_space,
				start_external_id = excluded.start_external_id,
				end_space = excluded.end_space,
				end_external_id = excluded.end_external_id,
				position = excluded.position,
				properties = excluded.properties
		`,
			e.Space,
			e.ExternalID,
			edgeType,
			start.Space,
			start.ExternalID,
			e.EndNode.Space,
			e.EndNode.ExternalID,
			pos,
			props,
		)
		if err != nil {
			return fmt.Errorf("write edge %s: %w", e.ID(), err)
		}
	}
	return nil
}

// Delete removes instances of view and their outgoing edges. It returns
// the number of instances removed; unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, view *model.Descriptor, ids ...model.InstanceID) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var removed int64
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM instances WHERE view = ? AND space = ? AND external_id = ?
		`, view.ViewExternalID(), id.Space, id.ExternalID)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", id, err)
		}
		removed += n

		_, err = tx.ExecContext(ctx, `
			DELETE FROM edges
			WHERE start_space = ? AND start_external_id = ? AND substr(type_external_id, 1, length(?)) = ?
		`, id.Space, id.ExternalID, view.ViewExternalID()+".", view.ViewExternalID()+".")
		if err != nil {
			return 0, fmt.Errorf("delete edges of %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete: commit: %w", err)
	}
	return removed, nil
}
