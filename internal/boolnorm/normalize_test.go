package boolnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xwb1989/sqlparser"
)

func whereOf(t *testing.T, sql string) sqlparser.Expr {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	require.NoError(t, err)
	sel, ok := stmt.(*sqlparser.Select)
	require.True(t, ok)
	require.NotNil(t, sel.Where)
	return sel.Where.Expr
}

func normalizeWhere(t *testing.T, cond string) string {
	t.Helper()
	out, err := Normalize(whereOf(t, "select * from t where "+cond))
	require.NoError(t, err)
	return sqlparser.String(out)
}

func TestNormalize_Rewrites(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain comparison untouched", "a = 1", "a = 1"},
		{"no boolean structure", "a", "a"},
		{"double negation", "not not a = 1", "a = 1"},
		{"invert equality", "not a = b", "a != b"},
		{"invert less than", "not (a < 3)", "a >= 3"},
		{"invert greater than", "not (a > 3)", "a <= 3"},
		{"invert in", "not a in (1, 2)", "a not in (1, 2)"},
		{"invert like", "not (name like 'J%')", "name not like 'J%'"},
		{"invert between", "not (a between 1 and 5)", "a not between 1 and 5"},
		{"invert is null", "not (a is null)", "a is not null"},
		{"de morgan and", "not (a = 1 and b = 2)", "a != 1 or b != 2"},
		{"de morgan or", "not (a = 1 or b = 2)", "a != 1 and b != 2"},
		{"or under and keeps parens", "a = 1 and (b = 2 or c = 3)", "a = 1 and (b = 2 or c = 3)"},
		{"and under or drops parens", "a = 1 or (b = 2 and c = 3)", "a = 1 or b = 2 and c = 3"},
		{"redundant parens", "((a = 1))", "a = 1"},
		{"null safe equality stays wrapped", "not (a <=> b)", "not (a <=> b)"},
		{"exists stays wrapped", "not exists (select 1 from u)", "not exists (select 1 from u)"},
		{"equals false", "a = false", "not a"},
		{"equals true", "a = true", "a"},
		{"not equals true", "a != true", "not a"},
		{"not equals false", "a != false", "a"},
		{"negated equals false", "not (a = false)", "a"},
		{"string boolean flipped", "a <> 't'", "a = 'f'"},
		{"negated string boolean", "not (a <> 'f')", "a = 'f'"},
		{"spelled out boolean", "a != 'TRUE'", "a = 'false'"},
		{"order preserved", "b = 2 and a = 1", "b = 2 and a = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeWhere(t, tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"not (a = 1 and (b = 2 or not c))",
		"not (not (a <=> b) or x = false)",
		"a = 1 or b = 2 and not (c in (1, 2) or d like 'x')",
		"not (a between 1 and 2) and not exists (select 1 from u where not u.x = 1)",
		"((a <> 't'))",
	}
	for _, in := range inputs {
		once := normalizeWhere(t, in)
		twice := normalizeWhere(t, once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalize_EquivalenceGroup(t *testing.T) {
	forms := []string{"a='f'", "(a='f')", "NOT(a<>'f')", "a<>'t'"}
	for _, f := range forms {
		assert.Equal(t, "a = 'f'", normalizeWhere(t, f), "form %q", f)
	}
}

func TestNormalizeQuery_EndToEnd(t *testing.T) {
	a, err := NormalizeQuery("SELECT * FROM t1 WHERE t1.a='f'")
	require.NoError(t, err)
	b, err := NormalizeQuery("SELECT * FROM t1 WHERE NOT (t1.a <> 'f')")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "select * from t1 where t1.a = 'f'", a)
}

func TestNormalizeQuery_Subqueries(t *testing.T) {
	out, err := NormalizeQuery("select * from t where exists (select 1 from u where not (u.a = t.a));")
	require.NoError(t, err)
	assert.Equal(t, "select * from t where exists (select 1 from u where u.a != t.a)", out)
}

func TestNormalizeQuery_ParseError(t *testing.T) {
	_, err := NormalizeQuery("select from where")
	assert.Error(t, err)
}

func TestNormalize_Malformed(t *testing.T) {
	_, err := Normalize(&sqlparser.AndExpr{Left: &sqlparser.ColName{Name: sqlparser.NewColIdent("a")}})
	assert.True(t, IsMalformed(err))

	_, err = Normalize(&sqlparser.NotExpr{})
	assert.True(t, IsMalformed(err))
}

func TestNormalize_MalformedNeverReachesPrinter(t *testing.T) {
	col := &sqlparser.ColName{Name: sqlparser.NewColIdent("a")}
	inputs := map[string]sqlparser.Expr{
		"and missing right":   &sqlparser.AndExpr{Left: col},
		"or missing left":     &sqlparser.OrExpr{Right: col},
		"comparison one side": &sqlparser.ComparisonExpr{Operator: sqlparser.EqualStr, Left: col},
		"nested under not": &sqlparser.NotExpr{Expr: &sqlparser.ParenExpr{
			Expr: &sqlparser.OrExpr{Left: col},
		}},
	}
	for name, expr := range inputs {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = Normalize(expr) })
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	expr := whereOf(t, "select * from t where not (a = 1 and b = 2)")
	before := sqlparser.String(expr)
	_, err := Normalize(expr)
	require.NoError(t, err)
	assert.Equal(t, before, sqlparser.String(expr))
}

func TestWithBooleanLiterals(t *testing.T) {
	n := New(WithBooleanLiterals(BoolPair{True: "y", False: "n"}))
	out, err := n.NormalizeQuery("select * from t where a <> 'y'")
	require.NoError(t, err)
	assert.Equal(t, "select * from t where a = 'n'", out)

	out, err = n.NormalizeQuery("select * from t where a <> 't'")
	require.NoError(t, err)
	assert.Equal(t, "select * from t where a != 't'", out, "default pairs are replaced")
}

func TestEquivalent(t *testing.T) {
	n := New()
	ok, err := n.Equivalent("select * from t where not (a = 1 or b = 2)", "select * from t where a != 1 and b != 2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = n.Equivalent("select * from t where a = 1 and b = 2", "select * from t where b = 2 and a = 1")
	require.NoError(t, err)
	assert.False(t, ok, "operand order is significant")
}

func TestParse_NFC(t *testing.T) {
	// "é" as e + combining acute, then precomposed.
	a, err := NormalizeQuery("select * from t where name = 'José'")
	require.NoError(t, err)
	b, err := NormalizeQuery("select * from t where name = 'José'")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
