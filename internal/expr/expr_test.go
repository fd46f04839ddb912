package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
)

type testModel struct {
	model.ViewInstance
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Aliases     []string `json:"aliases"`
	Value       int      `json:"value"`
}

var (
	testDesc        = model.MustDescribe[testModel]()
	testName        = testDesc.MustField("Name")
	testDescription = testDesc.MustField("Description")
	testAliases     = testDesc.MustField("Aliases")
	testValue       = testDesc.MustField("Value")
)

func TestLeafCreation(t *testing.T) {
	e := Col(testName).Eq("test")

	assert.Equal(t, "name", e.Property.Property())
	assert.Equal(t, OpEq, e.Operator)
	assert.Equal(t, ir.String("test"), e.Value)
	assert.Nil(t, e.Inner)
}

func TestLeafOperators(t *testing.T) {
	name := Col(testName)

	tests := []struct {
		name     string
		leaf     Leaf
		operator Operator
	}{
		{"eq", name.Eq("test"), "=="},
		{"lt", name.Lt("z"), "<"},
		{"lte", name.Lte("z"), "<="},
		{"gt", name.Gt("a"), ">"},
		{"gte", name.Gte("a"), ">="},
		{"in", name.In([]string{"a", "b"}), "in"},
		{"containsAny", name.ContainsAny([]string{"a"}), "containsAny"},
		{"containsAll", name.ContainsAll([]string{"a"}), "containsAll"},
		{"prefix", name.Prefix("test"), "prefix"},
		{"exists", name.Exists(), "exists"},
		{"nested", name.Nested(Col(testDescription).Eq("x")), "nested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.operator, tt.leaf.Operator)
			assert.True(t, tt.leaf.Operator.Valid())
			assert.NoError(t, Validate(tt.leaf))
		})
	}
}

func TestNe(t *testing.T) {
	e := Col(testName).Ne("test")

	assert.Equal(t, BoolNot, e.Operator)
	require.Len(t, e.Filters, 1)
	leaf, ok := e.Filters[0].(Leaf)
	require.True(t, ok)
	assert.Equal(t, OpEq, leaf.Operator)
	assert.Equal(t, ir.String("test"), leaf.Value)
}

func TestExistsAndNotExists(t *testing.T) {
	e := Col(testDescription).Exists()
	assert.Equal(t, OpExists, e.Operator)
	assert.Nil(t, e.Value)

	ne := Col(testDescription).NotExists()
	assert.Equal(t, BoolNot, ne.Operator)
	assert.True(t, Equal(e, ne.Filters[0]))
}

func TestNested(t *testing.T) {
	inner := Col(testDescription).Eq("test")
	outer := Col(testName).Nested(inner)

	assert.Equal(t, OpNested, outer.Operator)
	assert.Nil(t, outer.Value)
	require.IsType(t, Leaf{}, outer.Inner)
	assert.True(t, Equal(inner, outer.Inner))
}

func TestColumnNot(t *testing.T) {
	name := Col(testName)

	e := name.Not(OpEq, "test")
	assert.Equal(t, BoolNot, e.Operator)
	require.Len(t, e.Filters, 1)
	assert.Equal(t, OpEq, e.Filters[0].(Leaf).Operator)

	e = name.Not(OpExists, nil)
	assert.True(t, Equal(name.NotExists(), e))

	inner := Col(testDescription).Eq("x")
	e = name.Not(OpNested, inner)
	assert.True(t, Equal(Not(name.Nested(inner)), e))
}

func TestColumnNotNestedRequiresExpression(t *testing.T) {
	name := Col(testName)

	for _, v := range []any{"x", nil, 3} {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r, "value %v", v)
				err, ok := r.(error)
				require.True(t, ok)
				assert.True(t, IsConstructionError(err))
				assert.Contains(t, err.Error(), "requires an expression")
			}()
			name.Not(OpNested, v)
		}()
	}
}

func TestBoolCreation(t *testing.T) {
	e1 := Col(testName).Eq("test1")
	e2 := Col(testName).Eq("test2")

	and := And(e1, e2)
	assert.Equal(t, BoolAnd, and.Operator)
	assert.Equal(t, []Expression{e1, e2}, and.Filters)

	or := Or(e1, e2)
	assert.Equal(t, BoolOr, or.Operator)
	assert.Equal(t, []Expression{e1, e2}, or.Filters)

	not := Not(e1)
	assert.Equal(t, BoolNot, not.Operator)
	assert.Equal(t, []Expression{e1}, not.Filters)
}

func TestInfixCombination(t *testing.T) {
	e1 := Col(testName).Eq("test1")
	e2 := Col(testName).Eq("test2")
	e3 := Col(testDescription).Exists()

	and := e1.And(e2)
	assert.Equal(t, BoolAnd, and.Operator)
	assert.Equal(t, []Expression{e1, e2}, and.Filters)

	or := e1.Or(e2)
	assert.Equal(t, BoolOr, or.Operator)

	complexExpr := e1.Or(e2).And(e3)
	assert.Equal(t, BoolAnd, complexExpr.Operator)
	require.Len(t, complexExpr.Filters, 2)
	assert.Equal(t, BoolOr, complexExpr.Filters[0].(Bool).Operator)
}

func TestNoFlattening(t *testing.T) {
	e1 := Col(testName).Eq("test1")
	e2 := Col(testName).Eq("test2")
	e3 := Col(testDescription).Exists()

	nested := And(Or(e1, e2), e3)

	assert.Equal(t, BoolAnd, nested.Operator)
	require.Len(t, nested.Filters, 2)
	inner, ok := nested.Filters[0].(Bool)
	require.True(t, ok)
	assert.Equal(t, BoolOr, inner.Operator)

	chained := And(e1, e2).And(e3)
	require.Len(t, chained.Filters, 2)
	assert.IsType(t, Bool{}, chained.Filters[0])
}

func TestNewBool(t *testing.T) {
	e1 := Col(testName).Eq("a")
	e2 := Col(testName).Eq("b")

	b, err := NewBool(BoolAnd, e1, e2)
	require.NoError(t, err)
	assert.Len(t, b.Filters, 2)

	_, err = NewBool(BoolNot, e1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		op      BoolOperator
		filters []Expression
	}{
		{"not with two", BoolNot, []Expression{e1, e2}},
		{"not with none", BoolNot, nil},
		{"and with none", BoolAnd, nil},
		{"unknown operator", "xor", []Expression{e1}},
		{"nil filter", BoolOr, []Expression{e1, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBool(tt.op, tt.filters...)
			require.Error(t, err)
			assert.True(t, IsConstructionError(err))
		})
	}
}

func TestNewBoolCopiesFilters(t *testing.T) {
	filters := []Expression{Col("a").Eq(1), Col("b").Eq(2)}
	b, err := NewBool(BoolOr, filters...)
	require.NoError(t, err)

	filters[0] = Col("c").Eq(3)
	assert.Equal(t, "a", b.Filters[0].(Leaf).Property.Property())
}

func TestNewLeaf(t *testing.T) {
	l, err := NewLeaf(testName, "eq", "x")
	require.NoError(t, err)
	assert.Equal(t, OpEq, l.Operator)

	l, err = NewLeaf(Col("externalId"), OpIn, []string{"123"})
	require.NoError(t, err)
	assert.Equal(t, ir.List{ir.String("123")}, l.Value)

	l, err = NewLeaf(model.Ref("name"), OpExists, "ignored")
	require.NoError(t, err)
	assert.Nil(t, l.Value)

	_, err = NewLeaf(testName, "like", "x")
	require.Error(t, err)

	_, err = NewLeaf(testName, OpNested, "not an expression")
	require.Error(t, err)

	_, err = NewLeaf(testName, OpEq, make(chan int))
	require.Error(t, err)
}

func TestColumnFromString(t *testing.T) {
	c1 := Col("name")
	assert.Equal(t, "name", c1.Property())

	c2 := Col(c1)
	assert.Equal(t, c1.Property(), c2.Property())
	assert.True(t, c1.SameAs(c2))
	assert.Equal(t, c1, c2)

	c3 := Col(testName)
	assert.Equal(t, "name", c3.Property())
	assert.Equal(t, c1, c3)

	assert.Equal(t, c1, ColOf(model.Ref("name")))
	assert.Equal(t, c1, ColOf(c1))
}

func TestColumnHash(t *testing.T) {
	c1 := Col(testName)
	c2 := Col("name")
	c3 := Col(testDescription)

	assert.Equal(t, c1.Hash(), c2.Hash())
	assert.NotEqual(t, c1.Hash(), c3.Hash())

	set := map[Column]int{c1: 1}
	set[c2]++
	set[c3]++
	assert.Len(t, set, 2)
	assert.Equal(t, 2, set[Col("name")])
}

func TestColumnIdentityIsNotExpression(t *testing.T) {
	c1 := Col(testName)
	c2 := Col(testName)
	c3 := Col(testDescription)

	// == on columns is plain value identity.
	assert.True(t, c1 == c2)
	assert.False(t, c1 == c3)
	assert.NotEqual(t, c1.Property(), c3.Property())
}

func TestValueTypes(t *testing.T) {
	dt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	id := model.InstanceID{ExternalID: "test", Space: "space"}

	tests := []struct {
		name     string
		leaf     Leaf
		expected ir.Value
	}{
		{"datetime", Col(testName).Gt(dt), ir.Time(dt)},
		{"instance id", Col(testName).Eq(id), ir.Object{"externalId": ir.String("test"), "space": ir.String("space")}},
		{"string list", Col(testName).In([]string{"a", "b", "c"}), ir.List{ir.String("a"), ir.String("b"), ir.String("c")}},
		{"int list", Col(testValue).In([]int{1, 2, 3}), ir.List{ir.Int(1), ir.Int(2), ir.Int(3)}},
		{"float list", Col(testValue).In([]float64{1.0, 2.0, 3.0}), ir.List{ir.Float(1), ir.Float(2), ir.Float(3)}},
		{
			"reference list",
			Col(testAliases).ContainsAny([]map[string]any{{"externalId": "test", "space": "space"}}),
			ir.List{ir.Object{"externalId": ir.String("test"), "space": ir.String("space")}},
		},
		{
			"instance id list",
			Col(testAliases).ContainsAny([]model.InstanceID{id}),
			ir.List{ir.Object{"externalId": ir.String("test"), "space": ir.String("space")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.leaf.Value)
		})
	}
}

func TestUnsupportedOperandPanics(t *testing.T) {
	assert.Panics(t, func() { Col("name").Eq(make(chan int)) })
}

func TestEqualAndHash(t *testing.T) {
	byField := And(Col(testName).Eq("a"), Col(testAliases).ContainsAny([]string{"x"}))
	byName := And(Col("name").Eq("a"), Col("aliases").ContainsAny([]string{"x"}))
	different := And(Col("name").Eq("b"), Col("aliases").ContainsAny([]string{"x"}))

	assert.True(t, Equal(byField, byName))
	assert.False(t, Equal(byField, different))
	assert.False(t, Equal(byField, Or(byName.Filters[0], byName.Filters[1])))

	h1, err := Hash(byField)
	require.NoError(t, err)
	h2, err := Hash(byName)
	require.NoError(t, err)
	h3, err := Hash(different)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestEqualTimeInstants(t *testing.T) {
	utc := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("X", 3600))

	assert.True(t, Equal(Col("t").Gt(utc), Col("t").Gt(local)))
}

func TestEncode(t *testing.T) {
	e := Col("parent").Nested(Col("externalId").Eq("PARENT-123")).And(Col("space").In([]string{"s"}))

	data, err := ir.MarshalCanonical(Encode(e))
	require.NoError(t, err)
	assert.Equal(t,
		`{"filters":[{"operator":"nested","property":"parent","value":{"operator":"==","property":"externalId","value":"PARENT-123"}},{"operator":"in","property":"space","value":["s"]}],"operator":"and"}`,
		string(data))

	data, err = Col("x").Exists().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"operator":"exists","property":"x","value":null}`, string(data))
}

func TestString(t *testing.T) {
	e := Or(Col("name").Eq("a"), Col("description").Exists())

	assert.Equal(t, `or(name == "a", description exists)`, e.String())
}
