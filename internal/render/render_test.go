package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqltutor/internal/token"
)

func words(t *testing.T, tree *token.Tree, parent token.ID, lits ...token.Literal) {
	t.Helper()
	for _, l := range lits {
		require.NoError(t, tree.AppendChild(parent, tree.Add(l)))
	}
}

func TestRender_JoinsWordsAndPunctuation(t *testing.T) {
	tree := token.New()
	words(t, tree, tree.Root(),
		token.Literal{Text: "Find", POS: token.POSVerb},
		token.Literal{Text: "each", POS: token.POSDet},
		token.Literal{Text: "employee", POS: token.POSNoun},
		token.Literal{Text: ".", POS: token.POSPunct},
	)

	got, err := Render(tree)
	require.NoError(t, err)
	assert.Equal(t, "Find each employee.", got)
}

func TestRender_NestedPhrases(t *testing.T) {
	tree := token.New()
	p := tree.Add(token.Sequence{Role: token.RolePhrase, Lowered: true})
	require.NoError(t, tree.AppendChild(tree.Root(), p))
	words(t, tree, p,
		token.Literal{Text: "1", POS: token.POSNum},
		token.Literal{Text: ",", POS: token.POSPunct},
		token.Literal{Text: "2", POS: token.POSNum},
	)
	words(t, tree, tree.Root(), token.Literal{Text: "or 3", POS: token.POSConj})

	got, err := Render(tree)
	require.NoError(t, err)
	assert.Equal(t, "1, 2 or 3", got)
}

func TestRender_EmptyTree(t *testing.T) {
	got, err := Render(token.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRender_RejectsUnloweredTokens(t *testing.T) {
	tree := token.New()
	require.NoError(t, tree.AppendChild(tree.Root(), tree.Add(token.Attribute{Alias: "e", Column: "name"})))

	_, err := Render(tree)
	require.Error(t, err)
	assert.True(t, token.IsUnhandled(err))

	tree = token.New()
	require.NoError(t, tree.AppendChild(tree.Root(), tree.Add(token.Sequence{Role: token.RoleWhere})))
	_, err = Render(tree)
	assert.True(t, token.IsUnhandled(err))
}
