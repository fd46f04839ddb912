package store

import (
	"encoding/json"
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// marshalProperties converts a document to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal documents are stored identically and
// object operands compare as text.
func marshalProperties(props map[string]any) (string, error) {
	data, err := ir.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProperties parses stored JSON TEXT into a document.
func unmarshalProperties(data string) (map[string]any, error) {
	props := make(map[string]any)
	if data == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return props, nil
}

// marshalEdge converts edge metadata to canonical JSON TEXT.
func marshalEdge(e model.Edge) (string, error) {
	data, err := ir.MarshalCanonical(ir.Object{
		"externalId": ir.String(e.ExternalID),
		"space":      ir.String(e.Space),
		"type":       e.Type.IRValue(),
		"startNode":  e.StartNode.IRValue(),
		"endNode":    e.EndNode.IRValue(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal edge: %w", err)
	}
	return string(data), nil
}

func unmarshalEdge(data string) (model.Edge, error) {
	var e model.Edge
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return model.Edge{}, fmt.Errorf("unmarshal edge: %w", err)
	}
	return e, nil
}

// identity reads externalId and space from a document or reference.
func identity(v any) (model.InstanceID, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return model.InstanceID{}, false
	}
	ext, _ := m["externalId"].(string)
	space, _ := m["space"].(string)
	if ext == "" || space == "" {
		return model.InstanceID{}, false
	}
	return model.InstanceID{ExternalID: ext, Space: space}, true
}
