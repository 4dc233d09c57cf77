package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xwb1989/sqlparser"
)

func lit(t *Tree, text string) ID {
	return t.Add(Literal{Text: text, POS: POSNoun})
}

// comparisonUnder builds root -> seq -> comparison(a, b).
func comparisonUnder(t *testing.T, tr *Tree) (seq, cmp, a, b ID) {
	t.Helper()
	seq = tr.Add(Sequence{Role: RoleWhere})
	require.NoError(t, tr.AppendChild(tr.Root(), seq))
	a, b = lit(tr, "a"), lit(tr, "b")
	cmp, err := tr.AddComparison("=", a, b)
	require.NoError(t, err)
	require.NoError(t, tr.AppendChild(seq, cmp))
	return seq, cmp, a, b
}

func TestTree_New(t *testing.T) {
	tr := New()
	assert.Equal(t, KindRoot, tr.Kind(tr.Root()))
	assert.Equal(t, None, tr.Parent(tr.Root()))
	assert.True(t, tr.Attached(tr.Root()))
}

func TestTree_AppendRejectsAttachedChild(t *testing.T) {
	tr := New()
	x := lit(tr, "x")
	require.NoError(t, tr.AppendChild(tr.Root(), x))

	seq := tr.Add(Sequence{Role: RolePhrase})
	err := tr.AppendChild(seq, x)
	assert.True(t, IsStructural(err, ErrCodeNotDetached))
	assert.Equal(t, tr.Root(), tr.Parent(x), "failed mutation leaves tree unchanged")
}

func TestTree_AppendRejectsCycle(t *testing.T) {
	tr := New()
	outer := tr.Add(Sequence{Role: RolePhrase})
	inner := tr.Add(Sequence{Role: RolePhrase})
	require.NoError(t, tr.AppendChild(outer, inner))

	err := tr.AppendChild(inner, outer)
	assert.True(t, IsStructural(err, ErrCodeCycle))
}

func TestTree_ComparisonChildrenFixed(t *testing.T) {
	tr := New()
	_, cmp, _, _ := comparisonUnder(t, tr)

	err := tr.AppendChild(cmp, lit(tr, "c"))
	assert.True(t, IsStructural(err, ErrCodeArity))
	assert.Equal(t, 2, tr.ChildCount(cmp))
}

func TestTree_DeleteComparisonOperandCollapses(t *testing.T) {
	tr := New()
	seq, cmp, a, b := comparisonUnder(t, tr)

	require.NoError(t, tr.Delete(a))

	assert.Equal(t, []ID{b}, tr.Children(seq))
	assert.Equal(t, seq, tr.Parent(b))
	assert.False(t, tr.Attached(cmp))
	assert.False(t, tr.Attached(a))
	assert.Equal(t, 0, tr.ChildCount(cmp), "detached comparison never keeps one child")
}

func TestTree_DeleteInNestedComparison(t *testing.T) {
	tr := New()
	seq, outer, a, _ := comparisonUnder(t, tr)

	// Replace operand a with a nested comparison (c = d).
	c, d := lit(tr, "c"), lit(tr, "d")
	inner, err := tr.AddComparison("=", c, d)
	require.NoError(t, err)
	require.NoError(t, tr.Replace(a, inner))

	require.NoError(t, tr.Delete(d))

	assert.Equal(t, []ID{outer}, tr.Children(seq))
	assert.Equal(t, c, tr.Child(outer, 0))
	assert.Equal(t, 2, tr.ChildCount(outer))
}

func TestTree_DeleteChildOfDetachedComparisonFails(t *testing.T) {
	tr := New()
	a, b := lit(tr, "a"), lit(tr, "b")
	cmp, err := tr.AddComparison("<", a, b)
	require.NoError(t, err)

	err = tr.Delete(a)
	var pe *ParentlessNodeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, cmp, pe.Token)
	assert.Equal(t, cmp, tr.Parent(a))
}

func TestTree_DeleteParentless(t *testing.T) {
	tr := New()
	x := lit(tr, "x")
	assert.True(t, IsParentless(tr.Delete(x)))
}

func TestTree_ReplaceWithNoneRemoves(t *testing.T) {
	tr := New()
	x, y := lit(tr, "x"), lit(tr, "y")
	require.NoError(t, tr.AppendChild(tr.Root(), x))
	require.NoError(t, tr.AppendChild(tr.Root(), y))

	require.NoError(t, tr.Replace(x, None))
	assert.Equal(t, []ID{y}, tr.Children(tr.Root()))
}

func TestTree_ReplaceParentlessFails(t *testing.T) {
	tr := New()
	x, y := lit(tr, "x"), lit(tr, "y")
	assert.True(t, IsParentless(tr.Replace(x, y)))
}

func TestTree_ReplaceComparisonOperandWithNoneFails(t *testing.T) {
	tr := New()
	_, cmp, a, _ := comparisonUnder(t, tr)
	err := tr.Replace(a, None)
	assert.True(t, IsStructural(err, ErrCodeArity))
	assert.Equal(t, 2, tr.ChildCount(cmp))
}

func TestTree_ReplaceWithDescendant(t *testing.T) {
	tr := New()
	seq := tr.Add(Sequence{Role: RolePhrase})
	require.NoError(t, tr.AppendChild(tr.Root(), seq))
	x := lit(tr, "x")
	require.NoError(t, tr.AppendChild(seq, x))

	require.NoError(t, tr.Replace(seq, x))
	assert.Equal(t, []ID{x}, tr.Children(tr.Root()))
	assert.Empty(t, tr.Children(seq))
}

func TestTree_SpliceAndRelease(t *testing.T) {
	tr := New()
	seq := tr.Add(Sequence{Role: RolePhrase})
	require.NoError(t, tr.AppendChild(tr.Root(), lit(tr, "first")))
	require.NoError(t, tr.AppendChild(tr.Root(), seq))
	x, y := lit(tr, "x"), lit(tr, "y")
	require.NoError(t, tr.AppendChild(seq, x))
	require.NoError(t, tr.AppendChild(seq, y))

	require.NoError(t, tr.Splice(seq))
	kids := tr.Children(tr.Root())
	require.Len(t, kids, 3)
	assert.Equal(t, []ID{x, y}, kids[1:])

	a, b := lit(tr, "a"), lit(tr, "b")
	cmp, err := tr.AddComparison("=", a, b)
	require.NoError(t, err)
	released, err := tr.Release(cmp)
	require.NoError(t, err)
	assert.Equal(t, []ID{a, b}, released)
	assert.Equal(t, None, tr.Parent(a))

	_, err = tr.Release(tr.Root())
	assert.True(t, IsStructural(err, ErrCodeNotDetached))
}

func TestTree_PreOrderNeighbours(t *testing.T) {
	tr := New()
	seq := tr.Add(Sequence{Role: RolePhrase})
	x, y, z := lit(tr, "x"), lit(tr, "y"), lit(tr, "z")
	require.NoError(t, tr.AppendChild(tr.Root(), seq))
	require.NoError(t, tr.AppendChild(seq, x))
	require.NoError(t, tr.AppendChild(seq, y))
	require.NoError(t, tr.AppendChild(tr.Root(), z))

	assert.Equal(t, []ID{tr.Root(), seq, x, y, z}, tr.PreOrder(tr.Root()))
	assert.Equal(t, y, tr.Following(x))
	assert.Equal(t, z, tr.Following(y))
	assert.Equal(t, seq, tr.Preceding(x))
	assert.Equal(t, None, tr.Following(z))
	assert.Equal(t, 2, tr.Depth(y))
	assert.True(t, tr.IsAncestor(seq, y))
	assert.False(t, tr.IsAncestor(y, seq))
}

func TestTree_Extras(t *testing.T) {
	tr := New()
	x := lit(tr, "x")
	require.NoError(t, tr.AddExtra(x))
	assert.True(t, tr.Attached(x))
	assert.Equal(t, []ID{x}, tr.Extras())

	assert.True(t, IsStructural(tr.AddExtra(x), ErrCodeNotDetached))

	y := lit(tr, "y")
	require.NoError(t, tr.Replace(x, y))
	assert.Equal(t, []ID{y}, tr.Extras())
	assert.False(t, tr.Attached(x))

	assert.True(t, IsParentless(tr.Delete(y)))
	assert.Equal(t, []ID{y}, tr.Extras())

	require.NoError(t, tr.RemoveExtra(y))
	assert.Empty(t, tr.Extras())
	assert.False(t, tr.Attached(y))
	assert.True(t, IsParentless(tr.RemoveExtra(y)))
}

func TestTree_SetPayload(t *testing.T) {
	tr := New()
	x := lit(tr, "x")
	v := tr.Version()
	require.NoError(t, tr.SetPayload(x, Literal{Text: "y"}))
	assert.Greater(t, tr.Version(), v)
	assert.Equal(t, "y", tr.Payload(x).(Literal).Text)

	assert.True(t, IsStructural(tr.SetPayload(tr.Root(), Literal{}), ErrCodeRootMutation))

	seq := tr.Add(Sequence{Role: RolePhrase})
	require.NoError(t, tr.AppendChild(seq, lit(tr, "only")))
	assert.True(t, IsStructural(tr.SetPayload(seq, Comparison{Op: "="}), ErrCodeArity))
}

func TestSplitConjuncts(t *testing.T) {
	stmt, err := sqlparser.Parse("select a from t where a = 1 and (b = 2 or c = 3) and d > 4")
	require.NoError(t, err)
	where := stmt.(*sqlparser.Select).Where.Expr

	parts := SplitConjuncts(where)
	require.Len(t, parts, 3)

	text := sqlparser.String(where)
	for i, p := range parts {
		assert.Equal(t, i, p.Scope.Index)
		rendered := sqlparser.String(p.Expr)
		assert.Equal(t, rendered, text[p.Scope.Start:p.Scope.Start+len(rendered)])
	}
	assert.Equal(t, "paren", ASTKind(parts[1].Expr))
}
