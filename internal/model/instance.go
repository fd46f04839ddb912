package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// InstanceID identifies a node or edge in the store.
// It is comparable and can be used as a map key.
type InstanceID struct {
	ExternalID string `json:"externalId"`
	Space      string `json:"space"`
}

// AsTuple returns the store-native key order (space, externalId).
func (id InstanceID) AsTuple() (space, externalID string) {
	return id.Space, id.ExternalID
}

// IRValue presents the identifier as a filter operand.
func (id InstanceID) IRValue() ir.Value {
	return ir.Object{
		"externalId": ir.String(id.ExternalID),
		"space":      ir.String(id.Space),
	}
}

func (id InstanceID) String() string {
	return id.Space + ":" + id.ExternalID
}

// Edge is the metadata of one edge reached through a relation field.
type Edge struct {
	ExternalID string     `json:"externalId"`
	Space      string     `json:"space"`
	Type       InstanceID `json:"type"`
	StartNode  InstanceID `json:"startNode"`
	EndNode    InstanceID `json:"endNode"`
}

// ID returns the edge's own identity.
func (e Edge) ID() InstanceID {
	return InstanceID{ExternalID: e.ExternalID, Space: e.Space}
}

// ViewInstance is embedded by every view model. It carries the instance
// identity and the edge metadata attached by the engine.
type ViewInstance struct {
	ExternalID string `json:"externalId"`
	Space      string `json:"space"`

	edges map[string][]Edge
}

// ID returns the instance identity.
func (v ViewInstance) ID() InstanceID {
	return InstanceID{ExternalID: v.ExternalID, Space: v.Space}
}

// Edges returns the edges attached for the relation with the given wire
// name, or nil when none were attached.
func (v ViewInstance) Edges(alias string) []Edge {
	return v.edges[alias]
}

// AttachEdges records edge metadata for the relation with the given wire name.
// The slice is copied.
func (v *ViewInstance) AttachEdges(alias string, edges []Edge) {
	next := maps.Clone(v.edges)
	if next == nil {
		next = make(map[string][]Edge)
	}
	next[alias] = slices.Clone(edges)
	v.edges = next
}

// edgeNamespace scopes derived edge identifiers.
var edgeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("industrial-model/edge"))

// WritableViewInstance is embedded by view models that can be upserted.
type WritableViewInstance struct {
	ViewInstance
}

// EdgeID derives the identity of the edge from this instance to target with
// the given edge type. The derivation is deterministic: the same inputs
// always produce the same identifier. Models may shadow it with their own
// EdgeID method.
func (w WritableViewInstance) EdgeID(target, edgeType InstanceID) InstanceID {
	name := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		w.Space, w.ExternalID,
		target.Space, target.ExternalID,
		edgeType.Space, edgeType.ExternalID,
	)
	return InstanceID{
		ExternalID: uuid.NewSHA1(edgeNamespace, []byte(name)).String(),
		Space:      w.Space,
	}
}

// EdgeIDer is implemented by writable view models.
type EdgeIDer interface {
	EdgeID(target, edgeType InstanceID) InstanceID
}

// AggregatedViewInstance is embedded by aggregation result models. Value
// holds the aggregation result; the remaining fields are group-by dimensions.
type AggregatedViewInstance struct {
	Value float64 `json:"value"`
}

// aggregationField is the wire name of AggregatedViewInstance.Value.
const aggregationField = "value"
