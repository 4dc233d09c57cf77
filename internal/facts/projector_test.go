package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/token"
)

func smallSchema(t *testing.T) (*er.Schema, *er.Mapping) {
	t.Helper()
	doc := er.Document{
		Entities: []er.EntityDoc{
			{Name: "Dept", Attributes: []er.AttributeDoc{{Name: "id", Key: true, Type: "INTEGER"}}},
			{Name: "Emp", Attributes: []er.AttributeDoc{
				{Name: "id", Key: true},
				{Name: "pay", Type: "DOLLARS"},
			}},
		},
		Relationships: []er.RelationshipDoc{{Name: "In", Edges: []er.EdgeDoc{
			{Entity: "Emp", Cardinality: "1..1"},
			{Entity: "Dept", Cardinality: "0..N"},
		}}},
		Mapping: er.MappingDoc{
			Columns: []er.ColumnDoc{
				{Attribute: "Dept.id", Column: "dept.id"},
				{Attribute: "Emp.id", Column: "emp.id"},
				{Attribute: "Emp.pay", Column: "emp.pay"},
			},
			Joins: []er.JoinDoc{{Relationship: "In", Kind: "foreign-key", Keys: []er.KeyPairDoc{{PK: "dept.id", FK: "emp.dept"}}}},
		},
	}
	s, m, err := er.FromDocument(doc)
	require.NoError(t, err)
	return s, m
}

// selectTree builds root -> select[from[te emp e], where[pay > 10]].
func selectTree(t *testing.T) (*token.Tree, map[string]token.ID) {
	t.Helper()
	tr := token.New()
	ids := map[string]token.ID{}
	ids["select"] = tr.Add(token.Sequence{Role: token.RoleSelect})
	ids["from"] = tr.Add(token.Sequence{Role: token.RoleFrom})
	ids["where"] = tr.Add(token.Sequence{Role: token.RoleWhere})
	ids["te"] = tr.Add(token.TableEntity{Table: "emp", Alias: "e", Entity: "Emp", Resolved: true})
	ids["pay"] = tr.Add(token.Attribute{Alias: "e", Table: "emp", Column: "pay", Attribute: "Emp.pay", DataType: "DOLLARS", Resolved: true})
	ids["ten"] = tr.Add(token.Literal{Text: "10", POS: token.POSNum})

	require.NoError(t, tr.AppendChild(tr.Root(), ids["select"]))
	require.NoError(t, tr.AppendChild(ids["select"], ids["from"]))
	require.NoError(t, tr.AppendChild(ids["select"], ids["where"]))
	require.NoError(t, tr.AppendChild(ids["from"], ids["te"]))
	cmp, err := tr.AddComparison(">", ids["pay"], ids["ten"])
	require.NoError(t, err)
	ids["cmp"] = cmp
	require.NoError(t, tr.AppendChild(ids["where"], cmp))
	return tr, ids
}

func TestProject_TreeFacts(t *testing.T) {
	s, m := smallSchema(t)
	tr, ids := selectTree(t)

	fs, err := NewProjector(s, m).Project(Input{
		Tree:   tr,
		Labels: map[token.ID]Label{ids["te"]: {Singular: "employee", Plural: "employees"}},
	})
	require.NoError(t, err)

	r := func(name string) logic.Value { return logic.Ref(int(ids[name])) }
	assert.True(t, fs.Has(PredRoot, logic.Ref(int(tr.Root()))))
	assert.True(t, fs.Has(PredRole, r("where"), logic.Str("where")))
	assert.True(t, fs.Has(PredParent, r("cmp"), r("pay"), logic.Int(0)))
	assert.True(t, fs.Has(PredComparison, r("cmp"), logic.Str(">")))
	assert.True(t, fs.Has(PredColumnOf, r("pay"), logic.Str("emp.pay")))
	assert.True(t, fs.Has(PredAttrType, r("pay"), logic.Str("DOLLARS")))
	assert.True(t, fs.Has(PredAncestor, r("select"), r("pay"), logic.Int(3)))
	assert.True(t, fs.Has(PredNext, r("pay"), r("ten")))
	assert.True(t, fs.Has(PredLastChild, r("select"), r("where")))
	assert.True(t, fs.Has(PredLabel, r("te"), logic.Str("employee"), logic.Str("employees")))
	assert.True(t, fs.Has(PredDone, r("ten")))
	assert.False(t, fs.Has(PredDone, r("where")))
}

func TestProject_SchemaFacts(t *testing.T) {
	s, m := smallSchema(t)
	fs, err := NewProjector(s, m).Project(Input{})
	require.NoError(t, err)

	assert.True(t, fs.Has(PredEntity, logic.Str("Emp")))
	assert.True(t, fs.Has(PredKey, logic.Str("Emp.id")))
	assert.True(t, fs.Has(PredDataType, logic.Str("Emp.pay"), logic.Str("DOLLARS")))
	assert.True(t, fs.Has(PredFK, logic.Str("In"), logic.Str("dept.id"), logic.Str("emp.dept")))
	assert.True(t, fs.Has(PredTableEntity, logic.Str("emp"), logic.Str("Emp")))
	assert.True(t, fs.Has(PredEdge, logic.Str("In"), logic.Str("Dept"), logic.Str(""), logic.Int(0), logic.Int(er.Many)))
	assert.True(t, fs.Has(PredTotal, logic.Str("In"), logic.Int(0)))
	assert.False(t, fs.Has(PredTotal, logic.Str("In"), logic.Int(1)))
}

func TestProject_ExtraTops(t *testing.T) {
	tr, ids := selectTree(t)
	phrase := tr.Add(token.Sequence{Role: token.RolePhrase})
	a := tr.Add(token.Literal{Text: "each", POS: token.POSDet})
	b := tr.Add(token.Literal{Text: "project", POS: token.POSNoun})
	require.NoError(t, tr.AppendChild(phrase, a))
	require.NoError(t, tr.AppendChild(phrase, b))
	require.NoError(t, tr.AddExtra(phrase))

	fs, err := NewProjector(nil, nil).Project(Input{Tree: tr})
	require.NoError(t, err)

	r := func(id token.ID) logic.Value { return logic.Ref(int(id)) }
	assert.True(t, fs.Has(PredExtra, r(phrase)))
	assert.False(t, fs.Has(PredRoot, r(phrase)))
	assert.True(t, fs.Has(PredAttached, r(b)))
	assert.True(t, fs.Has(PredRole, r(phrase), logic.Str("phrase")))
	assert.True(t, fs.Has(PredParent, r(phrase), r(a), logic.Int(0)))
	assert.True(t, fs.Has(PredParent, r(phrase), r(b), logic.Int(1)))
	assert.True(t, fs.Has(PredAncestor, r(phrase), r(b), logic.Int(1)))
	assert.True(t, fs.Has(PredNext, r(phrase), r(a)))
	assert.True(t, fs.Has(PredNext, r(a), r(b)))
	assert.True(t, fs.Has(PredText, r(b), logic.Str("project")))

	// Pre-order chains stay within their own top.
	assert.False(t, fs.Has(PredNext, r(ids["ten"]), r(phrase)))
	assert.False(t, fs.Has(PredParent, r(tr.Root()), r(phrase), logic.Int(1)))
}

func TestProject_DetachedTokensInvisible(t *testing.T) {
	tr, ids := selectTree(t)
	require.NoError(t, tr.Delete(ids["cmp"]))

	fs, err := NewProjector(nil, nil).Project(Input{Tree: tr})
	require.NoError(t, err)
	assert.False(t, fs.Has(PredAttached, logic.Ref(int(ids["pay"]))))
}

func TestProject_ContributedFactsChecked(t *testing.T) {
	p := NewProjector(nil, nil)

	_, err := p.Project(Input{
		Declared: []logic.Predicate{{Name: "hint", Arity: 1}},
		Extra:    []Fact{{Pred: "hint", Args: []logic.Value{logic.Str("a"), logic.Str("b")}}},
	})
	assert.True(t, logic.IsArityError(err))

	_, err = p.Project(Input{Declared: []logic.Predicate{{Name: PredToken, Arity: 3}}})
	assert.True(t, logic.IsArityError(err), "contributions cannot redeclare the vocabulary")
}

func TestFindTableEntity_OuterScope(t *testing.T) {
	tr, ids := selectTree(t)

	inner := tr.Add(token.Sequence{Role: token.RoleSelect})
	innerFrom := tr.Add(token.Sequence{Role: token.RoleFrom})
	innerTE := tr.Add(token.TableEntity{Table: "dept", Alias: "d"})
	require.NoError(t, tr.AppendChild(ids["where"], inner))
	require.NoError(t, tr.AppendChild(inner, innerFrom))
	require.NoError(t, tr.AppendChild(innerFrom, innerTE))

	assert.Equal(t, innerTE, FindTableEntity(tr, innerFrom, "D"))
	assert.Equal(t, ids["te"], FindTableEntity(tr, innerFrom, "e"), "correlated reference resolves outward")
	assert.Equal(t, token.None, FindTableEntity(tr, ids["pay"], "d"), "inner tables are not visible outside")
	assert.Equal(t, []token.ID{ids["te"]}, TableEntities(tr, ids["select"]))
	assert.Equal(t, ids["select"], EnclosingSelect(tr, inner))
}
