package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct {
	ViewInstance
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Aliases     []string `json:"aliases"`
	Value       int      `json:"value"`
}

type testModelWithConfig struct {
	ViewInstance
	Name string `json:"name"`
}

func (testModelWithConfig) ViewConfig() ViewConfig {
	return ViewConfig{
		ViewExternalID:       "TestView",
		InstanceSpaces:       []string{"space1", "space2"},
		InstanceSpacesPrefix: "Test-",
		ViewCode:             "CODE",
	}
}

type testWritableModel struct {
	WritableViewInstance
	Name string `json:"name"`
}

type customEdgeModel struct {
	WritableViewInstance
	Name string `json:"name"`
}

func (m customEdgeModel) EdgeID(target, edgeType InstanceID) InstanceID {
	return InstanceID{
		ExternalID: m.ExternalID + "-" + target.ExternalID + "-" + edgeType.ExternalID,
		Space:      m.Space,
	}
}

type testAggregatedModel struct {
	AggregatedViewInstance
	Name string `json:"name"`
}

func (*testAggregatedModel) ViewConfig() ViewConfig {
	return ViewConfig{ViewExternalID: "TestView"}
}

type modelWithAlias struct {
	ViewInstance
	FieldName string `json:"camelCaseName"`
	Untagged  string
	Ignored   string `json:"-"`
	internal  string
}

type node struct {
	ViewInstance
	Parent   *node   `json:"parent"`
	Children []*node `json:"children"`
	Car      *car    `json:"car"`
}

type car struct {
	Model string    `json:"model"`
	Year  int       `json:"year"`
	Owner *node     `json:"owner"`
	Sold  time.Time `json:"sold"`
}

func TestDescribe(t *testing.T) {
	desc := MustDescribe[testModel]()

	assert.Equal(t, "testModel", desc.Name)
	assert.Equal(t, KindView, desc.Kind)
	assert.True(t, desc.HasIdentity())

	var aliases []string
	for _, f := range desc.Fields {
		aliases = append(aliases, f.Alias)
	}
	assert.Equal(t, []string{"externalId", "space", "name", "description", "aliases", "value"}, aliases)

	f, ok := desc.Field("Aliases")
	require.True(t, ok)
	assert.True(t, f.List)
	assert.Equal(t, TypeString, f.Type)
	assert.Equal(t, "testModel", f.View())

	f, ok = desc.Field("description")
	require.True(t, ok)
	assert.Equal(t, "Description", f.Name)
	assert.False(t, f.List)
}

func TestDescribeCachesPerType(t *testing.T) {
	a := MustDescribe[testModel]()
	b := MustDescribe[*testModel]()

	assert.Same(t, a, b)
}

func TestDescribeRejectsNonStruct(t *testing.T) {
	_, err := Describe[string]()
	require.Error(t, err)
}

func TestDescribeRecursiveTypes(t *testing.T) {
	desc := MustDescribe[node]()

	parent := desc.MustField("Parent")
	require.True(t, parent.IsRelation())
	assert.Same(t, desc, parent.Target)
	assert.False(t, parent.List)

	children := desc.MustField("children")
	assert.True(t, children.List)
	assert.Same(t, desc, children.Target)

	carField := desc.MustField("Car")
	require.NotNil(t, carField.Target)
	assert.Equal(t, KindNested, carField.Target.Kind)
	assert.Same(t, desc, carField.Target.MustField("owner").Target)
	assert.Equal(t, TypeTimestamp, carField.Target.MustField("sold").Type)
}

func TestDescribeAliases(t *testing.T) {
	desc := MustDescribe[modelWithAlias]()

	f, ok := desc.Field("camelCaseName")
	require.True(t, ok)
	assert.Equal(t, "FieldName", f.Name)

	f, ok = desc.Field("untagged")
	require.True(t, ok)
	assert.Equal(t, "Untagged", f.Name)

	_, ok = desc.Field("Ignored")
	assert.False(t, ok)
	_, ok = desc.Field("internal")
	assert.False(t, ok)
}

func TestMustFieldPanics(t *testing.T) {
	desc := MustDescribe[testModel]()

	assert.Panics(t, func() { desc.MustField("nonexistent") })
}

func TestViewExternalID(t *testing.T) {
	assert.Equal(t, "testModel", MustDescribe[testModel]().ViewExternalID())
	assert.Equal(t, "TestView", MustDescribe[testModelWithConfig]().ViewExternalID())
	assert.Equal(t, "TestView", MustDescribe[testAggregatedModel]().ViewExternalID(), "pointer receiver config")
}

func TestViewConfig(t *testing.T) {
	cfg := MustDescribe[testModelWithConfig]().Config

	assert.Equal(t, "TestView", cfg.ViewExternalID)
	assert.Equal(t, []string{"space1", "space2"}, cfg.InstanceSpaces)
	assert.Equal(t, "Test-", cfg.InstanceSpacesPrefix)
	assert.Equal(t, "CODE", cfg.ViewCode)
}

func TestGenerateModelID(t *testing.T) {
	plain := MustWrap(testModel{
		ViewInstance: ViewInstance{ExternalID: "test-1", Space: "test-space"},
		Name:         "Test Name",
	})
	coded := MustWrap(&testModelWithConfig{
		ViewInstance: ViewInstance{ExternalID: "test-1", Space: "test-space"},
		Name:         "Test Name",
	})
	desc := MustDescribe[testModel]()

	tests := []struct {
		name     string
		inst     *Instance
		fields   []FieldRef
		opts     []IDOption
		expected string
	}{
		{"single field", plain, Refs("name"), nil, "TestName"},
		{"go name", plain, Refs("Name"), nil, "TestName"},
		{"field handle", plain, []FieldRef{desc.MustField("Name")}, nil, "TestName"},
		{"multiple fields", plain, Refs("name", "externalId"), nil, "TestName-test-1"},
		{"custom separator", plain, Refs("name", "ExternalID"), []IDOption{WithSeparator("_")}, "TestName_test-1"},
		{"view code prefix", coded, Refs("name"), nil, "CODE-TestName"},
		{"view code custom separator", coded, Refs("name"), []IDOption{WithSeparator(":")}, "CODE:TestName"},
		{"without prefix", coded, Refs("name"), []IDOption{WithoutViewCodePrefix()}, "TestName"},
		{"nil pointer", plain, Refs("description"), nil, ""},
		{"int value", plain, Refs("name", "value"), nil, "TestName-0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.inst.GenerateModelID(tt.fields, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestGenerateModelIDTime(t *testing.T) {
	inst := MustWrap(car{Model: "Model T", Sold: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	id, err := inst.GenerateModelID(Refs("model", "sold"))
	require.NoError(t, err)
	assert.Equal(t, "ModelT-2024-01-01T00:00:00Z", id)
}

func TestGenerateModelIDUnknownField(t *testing.T) {
	inst := MustWrap(testModel{Name: "x"})

	_, err := inst.GenerateModelID(Refs("missing"))
	require.Error(t, err)
	assert.True(t, IsFieldNotFound(err))

	var fe *FieldNotFoundError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "missing", fe.Field)
	assert.Equal(t, "testModel", fe.View)
}

func TestWrapErrors(t *testing.T) {
	_, err := Wrap("not a struct")
	require.Error(t, err)

	var nilModel *testModel
	_, err = Wrap(nilModel)
	require.Error(t, err)

	assert.Panics(t, func() { MustWrap(42) })
}

func TestFieldNameAndAlias(t *testing.T) {
	inst := MustWrap(modelWithAlias{FieldName: "test"})

	name, ok := inst.FieldName("camelCaseName")
	require.True(t, ok)
	assert.Equal(t, "FieldName", name)

	alias, ok := inst.FieldAlias("FieldName")
	require.True(t, ok)
	assert.Equal(t, "camelCaseName", alias)

	_, ok = inst.FieldName("nonexistent")
	assert.False(t, ok)

	_, ok = inst.FieldAlias("nonexistent")
	assert.False(t, ok)

	_, ok = inst.FieldAlias("camelCaseName")
	assert.False(t, ok, "alias lookup is by name only")
}

func TestEdgeMetadata(t *testing.T) {
	m := &testModel{ViewInstance: ViewInstance{ExternalID: "test-1", Space: "test-space"}}
	desc := MustDescribe[testModel]()

	inst := MustWrap(m)
	assert.Equal(t, []Edge{}, inst.EdgeMetadata(Ref("name")))
	assert.Equal(t, []Edge{}, inst.EdgeMetadata(desc.MustField("Name")))
	assert.Nil(t, inst.EdgeMetadata(Ref("nonexistent")))

	edge := Edge{
		ExternalID: "e1",
		Space:      "test-space",
		Type:       InstanceID{ExternalID: "hasAlias", Space: "types"},
		StartNode:  m.ID(),
		EndNode:    InstanceID{ExternalID: "a1", Space: "test-space"},
	}
	m.AttachEdges("aliases", []Edge{edge})

	inst = MustWrap(m)
	assert.Equal(t, []Edge{edge}, inst.EdgeMetadata(Ref("aliases")))
	assert.Equal(t, []Edge{edge}, inst.EdgeMetadata(Ref("Aliases")))
	assert.Equal(t, InstanceID{ExternalID: "e1", Space: "test-space"}, edge.ID())
}

func TestAttachEdgesCopies(t *testing.T) {
	var v ViewInstance
	edges := []Edge{{ExternalID: "e1"}}
	v.AttachEdges("parent", edges)
	edges[0].ExternalID = "changed"

	assert.Equal(t, "e1", v.Edges("parent")[0].ExternalID)
	assert.Nil(t, v.Edges("children"))
}

func TestWritableEdgeID(t *testing.T) {
	m := testWritableModel{WritableViewInstance: WritableViewInstance{
		ViewInstance: ViewInstance{ExternalID: "test-1", Space: "test-space"},
	}}
	target := InstanceID{ExternalID: "target-1", Space: "test-space"}
	edgeType := InstanceID{ExternalID: "edge-type", Space: "test-space"}

	first := m.EdgeID(target, edgeType)
	assert.Equal(t, first, m.EdgeID(target, edgeType), "deterministic")
	assert.Equal(t, "test-space", first.Space)
	assert.Len(t, first.ExternalID, 36)
	assert.NotEqual(t, first, m.EdgeID(InstanceID{ExternalID: "target-2", Space: "test-space"}, edgeType))

	assert.Equal(t, KindWritable, MustDescribe[testWritableModel]().Kind)
}

func TestWritableEdgeIDOverride(t *testing.T) {
	m := customEdgeModel{WritableViewInstance: WritableViewInstance{
		ViewInstance: ViewInstance{ExternalID: "test-1", Space: "test-space"},
	}}

	var ider EdgeIDer = m
	id := ider.EdgeID(
		InstanceID{ExternalID: "target-1", Space: "test-space"},
		InstanceID{ExternalID: "edge-type", Space: "test-space"},
	)

	assert.Equal(t, InstanceID{ExternalID: "test-1-target-1-edge-type", Space: "test-space"}, id)
}

func TestAggregatedViewInstance(t *testing.T) {
	m := testAggregatedModel{AggregatedViewInstance: AggregatedViewInstance{Value: 42}, Name: "Test Name"}
	desc := MustDescribe[testAggregatedModel]()

	assert.Equal(t, 42.0, m.Value)
	assert.Equal(t, KindAggregated, desc.Kind)
	assert.False(t, desc.HasIdentity())
	assert.Equal(t, []string{"name"}, desc.GroupByFields())

	_, ok := desc.Field("externalId")
	assert.False(t, ok)
}

func TestInstanceID(t *testing.T) {
	id := InstanceID{ExternalID: "test-1", Space: "test-space"}

	assert.Equal(t, InstanceID{ExternalID: "test-1", Space: "test-space"}, id)
	assert.NotEqual(t, InstanceID{ExternalID: "test-2", Space: "test-space"}, id)

	set := map[InstanceID]bool{id: true}
	assert.True(t, set[InstanceID{ExternalID: "test-1", Space: "test-space"}])

	space, externalID := id.AsTuple()
	assert.Equal(t, "test-space", space)
	assert.Equal(t, "test-1", externalID)
	assert.Equal(t, "test-space:test-1", id.String())
}
