package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrosaalves/industrial-model/internal/expr"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

type testModel struct {
	model.ViewInstance
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Aliases     []string `json:"aliases"`
}

var (
	testDesc        = model.MustDescribe[testModel]()
	testName        = testDesc.MustField("Name")
	testDescription = testDesc.MustField("Description")
)

func TestSelectDefaults(t *testing.T) {
	s := Select[testModel]()
	v := s.Values()

	assert.Same(t, testDesc, s.Descriptor())
	assert.Empty(t, v.WhereClauses)
	assert.Empty(t, v.WhereEdgeClauses)
	assert.Empty(t, v.SortClauses)
	assert.Equal(t, DefaultLimit, v.Limit)
	assert.Equal(t, 1000, v.Limit)
	assert.Equal(t, "", v.Cursor)
}

func TestSelectPanicsForNonStruct(t *testing.T) {
	assert.Panics(t, func() { Select[int]() })
}

func TestWhere(t *testing.T) {
	s := Select[testModel]().Where(expr.Col(testName).Eq("test"))

	v := s.Values()
	require.Len(t, v.WhereClauses, 1)
	leaf, ok := v.WhereClauses[0].(expr.Leaf)
	require.True(t, ok)
	assert.Equal(t, expr.OpEq, leaf.Operator)
	assert.Equal(t, ir.String("test"), leaf.Value)
}

func TestWhereAccumulates(t *testing.T) {
	e1 := expr.Col(testName).Eq("test")
	e2 := expr.Col(testDescription).Exists()
	e3 := expr.Col("aliases").ContainsAny([]string{"a"})

	v := Select[testModel]().Where(e1).Where(e2, e3).Values()

	assert.Equal(t, []expr.Expression{e1, e2, e3}, v.WhereClauses)
}

func TestLimitAndCursor(t *testing.T) {
	s := Select[testModel]().Limit(50)
	assert.Equal(t, 50, s.Values().Limit)

	s = s.Cursor("cursor123")
	assert.Equal(t, "cursor123", s.Values().Cursor)

	s = s.Cursor("")
	assert.Equal(t, "", s.Values().Cursor)
}

func TestSorting(t *testing.T) {
	v := Select[testModel]().Asc(testName).Values()
	require.Len(t, v.SortClauses, 1)
	assert.Equal(t, Ascending, v.SortClauses[0].Direction)
	assert.Equal(t, "name", v.SortClauses[0].Property.Property())

	v = Select[testModel]().Desc(testName).Values()
	assert.Equal(t, Descending, v.SortClauses[0].Direction)

	v = Select[testModel]().Asc(testName).Desc(expr.Col("description")).Values()
	assert.Equal(t, []Sort{
		{Property: expr.Col("name"), Direction: Ascending},
		{Property: expr.Col("description"), Direction: Descending},
	}, v.SortClauses)
}

func TestWhereEdge(t *testing.T) {
	v := Select[testModel]().WhereEdge(testName, expr.Col(testName).Eq("test")).Values()

	require.Len(t, v.WhereEdgeClauses, 1)
	assert.Equal(t, "name", v.WhereEdgeClauses[0].Relation.Property())
	assert.Len(t, v.WhereEdgeClauses[0].Filters, 1)
}

func TestFluentChaining(t *testing.T) {
	v := Select[testModel]().
		Where(expr.Col(testName).Eq("test")).
		Where(expr.Col(testDescription).Exists()).
		Asc(testName).
		Desc(testDescription).
		Limit(50).
		Cursor("cursor123").
		Values()

	assert.Len(t, v.WhereClauses, 2)
	assert.Len(t, v.SortClauses, 2)
	assert.Equal(t, 50, v.Limit)
	assert.Equal(t, "cursor123", v.Cursor)
}

func TestCopyOnWrite(t *testing.T) {
	base := Select[testModel]().Where(expr.Col("a").Eq(1)).Asc(expr.Col("a"))

	// Appending from the same predecessor twice must not alias.
	left := base.Where(expr.Col("left").Exists())
	right := base.Where(expr.Col("right").Exists())

	assert.Len(t, base.Values().WhereClauses, 1)
	require.Len(t, left.Values().WhereClauses, 2)
	require.Len(t, right.Values().WhereClauses, 2)
	assert.Equal(t, "left", left.Values().WhereClauses[1].(expr.Leaf).Property.Property())
	assert.Equal(t, "right", right.Values().WhereClauses[1].(expr.Leaf).Property.Property())

	paged := base.Limit(10).Cursor("c1")
	assert.Equal(t, DefaultLimit, base.Values().Limit)
	assert.Equal(t, "", base.Values().Cursor)
	assert.Equal(t, 10, paged.Values().Limit)
}

func TestValuesSnapshotIsIndependent(t *testing.T) {
	s := Select[testModel]().Where(expr.Col("a").Eq(1)).WhereEdge(expr.Col("rel"), expr.Col("b").Eq(2))

	v := s.Values()
	v.WhereClauses[0] = expr.Col("mutated").Exists()
	v.WhereEdgeClauses[0].Filters[0] = expr.Col("mutated").Exists()

	again := s.Values()
	assert.Equal(t, "a", again.WhereClauses[0].(expr.Leaf).Property.Property())
	assert.Equal(t, "b", again.WhereEdgeClauses[0].Filters[0].(expr.Leaf).Property.Property())
}

func TestSearchStatement(t *testing.T) {
	s := Search[testModel]()
	assert.Same(t, testDesc, s.Descriptor())

	v := s.QueryBy("test query", nil, "").Values()
	assert.Equal(t, "test query", v.Query)
	assert.Nil(t, v.QueryProperties)
	assert.Equal(t, SearchOperator(""), v.SearchOperator)
	assert.Equal(t, DefaultLimit, v.Limit)
}

func TestSearchQueryByWithProperties(t *testing.T) {
	v := Search[testModel]().
		QueryBy("test query", []expr.Property{testName, testDescription}, SearchAnd).
		Where(expr.Col(testName).Eq("x")).
		Limit(10).
		Values()

	assert.Equal(t, "test query", v.Query)
	assert.Equal(t, []string{"name", "description"}, v.QueryProperties)
	assert.Equal(t, SearchAnd, v.SearchOperator)
	assert.Len(t, v.WhereClauses, 1)
	assert.Equal(t, 10, v.Limit)
	assert.NoError(t, v.Validate())
}

func TestAggregateStatement(t *testing.T) {
	s := Aggregate[testModel](Count)
	assert.Same(t, testDesc, s.Descriptor())
	assert.Equal(t, Count, s.Aggregate())
	assert.Nil(t, s.Values().GroupByProperties)
	assert.Nil(t, s.Values().AggregationProperty)

	v := s.GroupBy(expr.Col(testName)).Values()
	require.NotNil(t, v.GroupByProperties)
	require.Len(t, v.GroupByProperties, 1)
	assert.Equal(t, "name", v.GroupByProperties[0].Property())
}

func TestAggregateBy(t *testing.T) {
	v := Aggregate[testModel](Sum).AggregateBy(testName).Values()

	require.NotNil(t, v.AggregationProperty)
	assert.Equal(t, "name", v.AggregationProperty.Property())
}

func TestAggregateWhereAndLimit(t *testing.T) {
	s := Aggregate[testModel](Count).Where(expr.Col(testName).Eq("test")).Limit(10)

	assert.Len(t, s.Values().WhereClauses, 1)
	assert.Equal(t, 10, s.Values().Limit)
}

func TestAggregateSnapshotIsIndependent(t *testing.T) {
	s := Aggregate[testModel](Max).AggregateBy(expr.Col("a")).GroupBy(expr.Col("g"))

	v := s.Values()
	*v.AggregationProperty = expr.Col("mutated")
	v.GroupByProperties[0] = expr.Col("mutated")

	assert.Equal(t, "a", s.Values().AggregationProperty.Property())
	assert.Equal(t, "g", s.Values().GroupByProperties[0].Property())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"zero limit", Select[testModel]().Limit(0).Values().Validate(), "limit must be positive"},
		{"bad filter", Select[testModel]().Where(expr.Bool{Operator: expr.BoolNot}).Values().Validate(), "where:"},
		{"bad edge filter", Select[testModel]().WhereEdge(expr.Col("rel"), nil).Values().Validate(), "where edge rel"},
		{"bad search op", Search[testModel]().QueryBy("x", nil, "XOR").Values().Validate(), `unknown search operator "XOR"`},
		{"bad aggregate", Aggregate[testModel]("median").Values().Validate(), `unknown aggregate "median"`},
		{"sum without property", Aggregate[testModel](Sum).Values().Validate(), "sum requires an aggregation property"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}

	assert.NoError(t, Select[testModel]().Where(expr.Col("a").Eq(1)).Values().Validate())
	assert.NoError(t, Aggregate[testModel](Count).Values().Validate())
}

func TestEncode(t *testing.T) {
	v := Select[testModel]().Where(expr.Col("name").Eq("a")).Desc(expr.Col("name")).Limit(5).Values()

	data, err := ir.MarshalCanonical(v.Encode())
	require.NoError(t, err)
	assert.Equal(t,
		`{"cursor":null,"limit":5,"sort":[{"direction":"descending","property":"name"}],"where":[{"operator":"==","property":"name","value":"a"}],"whereEdge":[]}`,
		string(data))

	agg := Aggregate[testModel](Count).GroupBy(expr.Col("name")).Values().Encode()
	assert.Equal(t, ir.List{ir.String("name")}, agg["groupByProperties"])
	assert.Equal(t, ir.Null{}, agg["aggregationProperty"])

	search := Search[testModel]().QueryBy("pump", nil, SearchOr).Values().Encode()
	assert.Equal(t, ir.Null{}, search["queryProperties"])
	assert.Equal(t, ir.String("OR"), search["searchOperator"])
}

func TestHash(t *testing.T) {
	a, err := Select[testModel]().Where(expr.Col(testName).Eq("a")).Values().Hash()
	require.NoError(t, err)
	b, err := Select[testModel]().Where(expr.Col("name").Eq("a")).Values().Hash()
	require.NoError(t, err)
	c, err := Select[testModel]().Where(expr.Col("name").Eq("a")).Cursor("next").Values().Hash()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
