package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/schema"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

type describable struct {
	model.ViewInstance
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (describable) ViewConfig() model.ViewConfig {
	return model.ViewConfig{ViewExternalID: "CogniteDescribable"}
}

type asset struct {
	model.WritableViewInstance
	Name     string   `json:"name"`
	Parent   *asset   `json:"parent"`
	Children []*asset `json:"children"`
}

func newAsset(externalID, name string) *asset {
	a := &asset{Name: name}
	a.ExternalID = externalID
	a.Space = "sp"
	return a
}

type assetCount struct {
	model.AggregatedViewInstance
	Name string `json:"name"`
}

func (assetCount) ViewConfig() model.ViewConfig {
	return model.ViewConfig{ViewExternalID: "asset"}
}

// fakeAdapter serves pages from a fixed list and records requests.
type fakeAdapter struct {
	pages      []QueryResponse
	docs       []Document
	err        error
	queries    []QueryRequest
	searches   []SearchRequest
	aggregates []AggregateRequest
}

func (f *fakeAdapter) Query(_ context.Context, req QueryRequest) (QueryResponse, error) {
	f.queries = append(f.queries, req)
	if f.err != nil {
		return QueryResponse{}, f.err
	}
	i := 0
	if req.Values.Cursor != "" {
		fmt.Sscanf(req.Values.Cursor, "page-%d", &i)
	}
	if i >= len(f.pages) {
		return QueryResponse{}, nil
	}
	return f.pages[i], nil
}

func (f *fakeAdapter) Search(_ context.Context, req SearchRequest) ([]Document, error) {
	f.searches = append(f.searches, req)
	return f.docs, f.err
}

func (f *fakeAdapter) Aggregate(_ context.Context, req AggregateRequest) ([]Document, error) {
	f.aggregates = append(f.aggregates, req)
	return f.docs, f.err
}

type fakeWriter struct {
	fakeAdapter
	written map[string][]Document
}

func (f *fakeWriter) Upsert(_ context.Context, view *model.Descriptor, docs []Document) error {
	if f.written == nil {
		f.written = make(map[string][]Document)
	}
	f.written[view.ViewExternalID()] = append(f.written[view.ViewExternalID()], docs...)
	return f.err
}

func doc(externalID, name string) Document {
	return Document{Properties: map[string]any{
		"externalId": externalID,
		"space":      "sp",
		"name":       name,
	}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestQueryDecodesPage(t *testing.T) {
	a := &fakeAdapter{pages: []QueryResponse{{
		Documents:   []Document{doc("a", "first"), doc("b", "second")},
		HasNextPage: true,
		NextCursor:  "page-1",
	}}}
	e := New(a, WithLogger(quietLogger()))

	stmt := statement.Select[describable]().
		Where(expr.Col("name").Eq("first")).
		Limit(2)
	page, err := Query(context.Background(), e, stmt)
	require.NoError(t, err)

	require.Len(t, page.Data, 2)
	assert.Equal(t, "a", page.Data[0].ExternalID)
	assert.Equal(t, "sp", page.Data[0].Space)
	assert.Equal(t, "second", page.Data[1].Name)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "page-1", page.NextCursor)

	require.Len(t, a.queries, 1)
	req := a.queries[0]
	assert.Equal(t, "CogniteDescribable", req.View.ViewExternalID())
	assert.Equal(t, 2, req.Values.Limit)
	assert.Len(t, req.Values.WhereClauses, 1)
	assert.Equal(t, DefaultSeparator, req.Separator)
	assert.ElementsMatch(t, []string{"externalId", "space", "name", "description"}, req.Properties)
}

func TestQueryPropertiesFollowPolicy(t *testing.T) {
	a := &fakeAdapter{}
	policy := schema.Policy{SelfChainDepth: 1, MaxTypeVisits: 1}
	e := New(a, WithLogger(quietLogger()), WithSeparator("."), WithPolicy(policy))

	_, err := Query(context.Background(), e, statement.Select[asset]())
	require.NoError(t, err)

	require.Len(t, a.queries, 1)
	assert.Equal(t, ".", a.queries[0].Separator)
	assert.Equal(t, schema.Properties(model.MustDescribe[asset](), ".", schema.WithPolicy(policy)), a.queries[0].Properties)
}

func TestQueryAttachesEdges(t *testing.T) {
	edge := model.Edge{
		ExternalID: "e1",
		Space:      "sp",
		Type:       model.InstanceID{ExternalID: "parentOf", Space: "sp"},
		StartNode:  model.InstanceID{ExternalID: "a", Space: "sp"},
		EndNode:    model.InstanceID{ExternalID: "p", Space: "sp"},
	}
	d := doc("a", "child")
	d.Edges = map[string][]model.Edge{"parent": {edge}}
	a := &fakeAdapter{pages: []QueryResponse{{Documents: []Document{d}}}}

	page, err := Query(context.Background(), New(a, WithLogger(quietLogger())), statement.Select[asset]())
	require.NoError(t, err)

	require.Len(t, page.Data, 1)
	assert.Equal(t, []model.Edge{edge}, page.Data[0].Edges("parent"))
	assert.Nil(t, page.Data[0].Edges("children"))
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name    string
		adapter *fakeAdapter
		stmt    statement.Statement[describable]
		check   func(error) bool
	}{
		{
			name:    "invalid limit",
			adapter: &fakeAdapter{},
			stmt:    statement.Select[describable]().Limit(0),
			check:   IsInvalidStatement,
		},
		{
			name:    "invalid expression",
			adapter: &fakeAdapter{},
			stmt:    statement.Select[describable]().Where(expr.Leaf{Property: expr.Col("name"), Operator: expr.OpIn}),
			check:   IsInvalidStatement,
		},
		{
			name:    "adapter failure",
			adapter: &fakeAdapter{err: errors.New("boom")},
			stmt:    statement.Select[describable](),
			check:   IsAdapterError,
		},
		{
			name: "document does not fit",
			adapter: &fakeAdapter{pages: []QueryResponse{{Documents: []Document{
				{Properties: map[string]any{"name": 42}},
			}}}},
			stmt:  statement.Select[describable](),
			check: IsDecodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Query(context.Background(), New(tt.adapter, WithLogger(quietLogger())), tt.stmt)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, "CogniteDescribable", qe.View)
		})
	}
}

func TestInvalidStatementSkipsAdapter(t *testing.T) {
	a := &fakeAdapter{}
	_, err := Query(context.Background(), New(a, WithLogger(quietLogger())), statement.Select[describable]().Limit(-1))
	require.Error(t, err)
	assert.Empty(t, a.queries)
}

func TestQueryAllPages(t *testing.T) {
	a := &fakeAdapter{pages: []QueryResponse{
		{Documents: []Document{doc("a", "1"), doc("b", "2")}, HasNextPage: true, NextCursor: "page-1"},
		{Documents: []Document{doc("c", "3")}, HasNextPage: true, NextCursor: "page-2"},
		{Documents: []Document{doc("d", "4")}},
	}}
	e := New(a, WithLogger(quietLogger()))

	all, err := QueryAllPages(context.Background(), e, statement.Select[describable]().Limit(2))
	require.NoError(t, err)

	require.Len(t, all, 4)
	ids := make([]string, len(all))
	for i, v := range all {
		ids[i] = v.ExternalID
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	require.Len(t, a.queries, 3)
	assert.Equal(t, "", a.queries[0].Values.Cursor)
	assert.Equal(t, "page-1", a.queries[1].Values.Cursor)
	assert.Equal(t, "page-2", a.queries[2].Values.Cursor)
	for _, q := range a.queries {
		assert.Equal(t, 2, q.Values.Limit)
	}
}

func TestQueryAllPagesStopsOnStuckCursor(t *testing.T) {
	tests := []struct {
		name  string
		pages []QueryResponse
	}{
		{
			name:  "empty cursor",
			pages: []QueryResponse{{Documents: []Document{doc("a", "1")}, HasNextPage: true}},
		},
		{
			name: "repeated cursor",
			pages: []QueryResponse{
				{HasNextPage: true, NextCursor: "page-1"},
				{HasNextPage: true, NextCursor: "page-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAdapter{pages: tt.pages}
			_, err := QueryAllPages(context.Background(), New(a, WithLogger(quietLogger())), statement.Select[describable]())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "did not advance")
		})
	}
}

func TestQueryAllPagesHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &fakeAdapter{}
	_, err := QueryAllPages(ctx, New(a, WithLogger(quietLogger())), statement.Select[describable]())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.queries)
}

func TestSearch(t *testing.T) {
	a := &fakeAdapter{docs: []Document{doc("a", "pump 1")}}
	e := New(a, WithLogger(quietLogger()))

	stmt := statement.Search[describable]().
		QueryBy("pump", []expr.Property{expr.Col("name")}, statement.SearchOr)
	got, err := Search(context.Background(), e, stmt)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "pump 1", got[0].Name)
	require.Len(t, a.searches, 1)
	assert.Equal(t, "pump", a.searches[0].Values.Query)
	assert.Equal(t, []string{"name"}, a.searches[0].Values.QueryProperties)
	assert.NotEmpty(t, a.searches[0].Properties)
}

func TestSearchRejectsUnknownOperator(t *testing.T) {
	a := &fakeAdapter{}
	stmt := statement.Search[describable]().QueryBy("x", nil, statement.SearchOperator("XOR"))
	_, err := Search(context.Background(), New(a, WithLogger(quietLogger())), stmt)
	assert.True(t, IsInvalidStatement(err))
	assert.Empty(t, a.searches)
}

func TestAggregateDefaultsGroupBy(t *testing.T) {
	a := &fakeAdapter{docs: []Document{
		{Properties: map[string]any{"name": "pump", "value": 3}},
		{Properties: map[string]any{"name": "valve", "value": 1.5}},
	}}
	e := New(a, WithLogger(quietLogger()))

	got, err := Aggregate(context.Background(), e, statement.Aggregate[assetCount](statement.Count))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "pump", got[0].Name)
	assert.InDelta(t, 3.0, got[0].Value, 1e-9)
	assert.InDelta(t, 1.5, got[1].Value, 1e-9)

	require.Len(t, a.aggregates, 1)
	groupBy := a.aggregates[0].Values.GroupByProperties
	require.Len(t, groupBy, 1)
	assert.Equal(t, "name", groupBy[0].Property())
}

func TestAggregateKeepsExplicitGroupBy(t *testing.T) {
	a := &fakeAdapter{}
	stmt := statement.Aggregate[assetCount](statement.Sum).
		AggregateBy(expr.Col("value")).
		GroupBy()
	_, err := Aggregate(context.Background(), New(a, WithLogger(quietLogger())), stmt)
	require.NoError(t, err)

	require.Len(t, a.aggregates, 1)
	assert.NotNil(t, a.aggregates[0].Values.GroupByProperties)
	assert.Empty(t, a.aggregates[0].Values.GroupByProperties)
}

func TestAggregateRequiresProperty(t *testing.T) {
	a := &fakeAdapter{}
	_, err := Aggregate(context.Background(), New(a, WithLogger(quietLogger())), statement.Aggregate[assetCount](statement.Avg))
	assert.True(t, IsInvalidStatement(err))
	assert.Empty(t, a.aggregates)
}

func TestUpsert(t *testing.T) {
	w := &fakeWriter{}
	e := New(w, WithLogger(quietLogger()))

	a := asset{Name: "pump"}
	a.ExternalID = "a1"
	a.Space = "sp"
	require.NoError(t, Upsert(context.Background(), e, a))

	docs := w.written["asset"]
	require.Len(t, docs, 1)
	assert.Equal(t, "a1", docs[0].Properties["externalId"])
	assert.Equal(t, "sp", docs[0].Properties["space"])
	assert.Equal(t, "pump", docs[0].Properties["name"])
	assert.Nil(t, docs[0].Properties["parent"])
}

func TestUpsertWritesReferencesAndEdges(t *testing.T) {
	w := &fakeWriter{}
	e := New(w, WithLogger(quietLogger()))

	root := newAsset("root", "plant")
	root.Parent = newAsset("site", "site")
	root.Children = []*asset{newAsset("c1", "pump"), newAsset("c2", "valve")}
	require.NoError(t, Upsert(context.Background(), e, *root))

	docs := w.written["asset"]
	require.Len(t, docs, 1)
	props := docs[0].Properties
	assert.Equal(t, map[string]any{"externalId": "site", "space": "sp"}, props["parent"])
	assert.Equal(t, []any{
		map[string]any{"externalId": "c1", "space": "sp"},
		map[string]any{"externalId": "c2", "space": "sp"},
	}, props["children"])

	edges := docs[0].Edges["children"]
	require.Len(t, edges, 2)
	edgeType := model.InstanceID{ExternalID: "asset.children", Space: "sp"}
	for i, end := range []string{"c1", "c2"} {
		endID := model.InstanceID{ExternalID: end, Space: "sp"}
		assert.Equal(t, edgeType, edges[i].Type)
		assert.Equal(t, model.InstanceID{ExternalID: "root", Space: "sp"}, edges[i].StartNode)
		assert.Equal(t, endID, edges[i].EndNode)
		assert.Equal(t, root.EdgeID(endID, edgeType), edges[i].ID())
	}
	assert.NotContains(t, docs[0].Edges, "parent")
}

func TestUpsertErrors(t *testing.T) {
	valid := asset{Name: "pump"}
	valid.ExternalID = "a1"
	valid.Space = "sp"
	noSpace := asset{Name: "pump"}
	noSpace.ExternalID = "a1"

	tests := []struct {
		name    string
		adapter Adapter
		entity  asset
		code    QueryErrorCode
	}{
		{name: "read only adapter", adapter: &fakeAdapter{}, entity: valid, code: ErrCodeUnsupported},
		{name: "missing space", adapter: &fakeWriter{}, entity: noSpace, code: ErrCodeInvalidInstance},
		{name: "missing external id", adapter: &fakeWriter{}, entity: asset{Name: "x"}, code: ErrCodeInvalidInstance},
		{name: "writer failure", adapter: &fakeWriter{fakeAdapter: fakeAdapter{err: errors.New("disk full")}}, entity: valid, code: ErrCodeAdapter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Upsert(context.Background(), New(tt.adapter, WithLogger(quietLogger())), tt.entity)
			var qe *QueryError
			require.True(t, errors.As(err, &qe), "unexpected error: %v", err)
			assert.Equal(t, tt.code, qe.Code)
		})
	}
}

func TestUpsertDocumentsDynamicView(t *testing.T) {
	reg := model.NewRegistry()
	descs, err := reg.Define(model.NewDescriptor("Pump").
		Kind(model.KindWritable).
		Config(model.ViewConfig{ViewExternalID: "Pump"}).
		Field("name", "name", model.TypeString, false))
	require.NoError(t, err)

	w := &fakeWriter{}
	e := New(w, WithLogger(quietLogger()))
	err = e.UpsertDocuments(context.Background(), descs[0], []Document{doc("p1", "pump")})
	require.NoError(t, err)
	assert.Len(t, w.written["Pump"], 1)
}

func TestQueryDynamicViewIntoMaps(t *testing.T) {
	reg := model.NewRegistry()
	descs, err := reg.Define(model.NewDescriptor("Pump").
		Field("name", "name", model.TypeString, false))
	require.NoError(t, err)

	a := &fakeAdapter{pages: []QueryResponse{{Documents: []Document{doc("p1", "pump")}}}}
	page, err := Query(context.Background(), New(a, WithLogger(quietLogger())), statement.SelectFor[map[string]any](descs[0]))
	require.NoError(t, err)

	require.Len(t, page.Data, 1)
	assert.Equal(t, "pump", page.Data[0]["name"])
	assert.Equal(t, "p1", page.Data[0]["externalId"])
}
